package audit

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
)

func TestService_AppendRequiresTypeAndEntity(t *testing.T) {
	svc := NewService(NewMemoryRepo())

	if err := svc.Append(context.Background(), Event{EntityType: "call", EntityID: "c1"}); !errors.Is(err, ErrInvalidEvent) {
		t.Fatalf("expected ErrInvalidEvent, got %v", err)
	}
	if err := svc.Append(context.Background(), Event{Type: EventTypeCreated}); !errors.Is(err, ErrInvalidEvent) {
		t.Fatalf("expected ErrInvalidEvent, got %v", err)
	}
	if err := NewService(nil).Append(context.Background(), Event{}); !errors.Is(err, ErrNoRepository) {
		t.Fatalf("expected ErrNoRepository, got %v", err)
	}
}

func TestService_LogWriteCapturesActor(t *testing.T) {
	repo := NewMemoryRepo()
	svc := NewService(repo)

	ctx := WithActor(context.Background(), Actor{UserID: "u", Role: "agent", IP: "1.2.3.4"})
	if err := svc.LogWrite(ctx, ActorFrom(ctx), EventTypeCreated, "call", "c1", ""); err != nil {
		t.Fatalf("unexpected err: %v", err)
	}

	evs := repo.Events()
	if len(evs) != 1 {
		t.Fatalf("expected 1 event, got %d", len(evs))
	}
	if evs[0].IPAddress != "1.2.3.4" || evs[0].ActorRole != "agent" {
		t.Fatalf("expected actor captured, got %+v", evs[0])
	}
	if evs[0].ID == "" || evs[0].CreatedAt.IsZero() {
		t.Fatalf("expected id and timestamp assigned")
	}
}

func TestService_TrailIsPerEntity(t *testing.T) {
	svc := NewService(NewMemoryRepo())
	ctx := context.Background()
	actor := Actor{UserID: "u", Role: "agent"}

	_ = svc.LogWrite(ctx, actor, EventTypeCreated, "call", "c1", "")
	_ = svc.LogWrite(ctx, actor, EventTypeCreated, "email", "m1", "")
	_ = svc.LogWrite(ctx, actor, EventTypeUpdated, "call", "c1", `{"notes":"x"}`)

	trail, err := svc.Trail(ctx, "call", "c1")
	if err != nil {
		t.Fatalf("trail: %v", err)
	}
	if len(trail) != 2 || trail[0].Type != EventTypeCreated || trail[1].Type != EventTypeUpdated {
		t.Fatalf("unexpected trail: %+v", trail)
	}

	empty, err := svc.Trail(ctx, "chat", "h1")
	if err != nil || empty == nil || len(empty) != 0 {
		t.Fatalf("expected empty non-nil trail, got %v %v", empty, err)
	}
}

func TestPostgresRepo_Append(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer db.Close()

	now := time.Date(2024, 1, 2, 10, 0, 0, 0, time.UTC)
	mock.ExpectExec("INSERT INTO audit_events").
		WithArgs("e1", EventTypeUpdated, "u", "agent", "", "email", "m1", "updated", "", now).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err = NewPostgresRepo(db).Append(context.Background(), Event{
		ID: "e1", Type: EventTypeUpdated, ActorUserID: "u", ActorRole: "agent",
		EntityType: "email", EntityID: "m1", Message: "updated", CreatedAt: now,
	})
	if err != nil {
		t.Fatalf("append: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestPostgresRepo_ListForEntity(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer db.Close()

	now := time.Date(2024, 1, 2, 10, 0, 0, 0, time.UTC)
	cols := []string{"id", "type", "actor_user_id", "actor_role", "ip_address", "entity_type", "entity_id", "message", "metadata", "created_at"}
	mock.ExpectQuery("FROM audit_events").
		WithArgs("chat", "h1").
		WillReturnRows(sqlmock.NewRows(cols).
			AddRow("e1", "communication_created", "u", "agent", "", "chat", "h1", "communication_created", "", now).
			AddRow("e2", "chat_message_added", "", "telephony", "", "chat", "h1", "chat_message_added", `{"messageId":"m9"}`, now.Add(time.Minute)))

	events, err := NewPostgresRepo(db).ListForEntity(context.Background(), "chat", "h1")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(events) != 2 || events[1].Type != EventTypeMessage || events[1].Metadata != `{"messageId":"m9"}` {
		t.Fatalf("unexpected events: %+v", events)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}
