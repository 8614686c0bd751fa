package audit

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// Repository is append-only storage for events, readable per entity.
type Repository interface {
	Append(ctx context.Context, e Event) error
	ListForEntity(ctx context.Context, entityType, entityID string) ([]Event, error)
}

var (
	ErrInvalidEvent = errors.New("audit: event needs type, entity type and entity id")
	ErrNoRepository = errors.New("audit: repository not configured")
)

// Service writes and reads the communications audit trail. Writers treat
// LogWrite as best-effort; a failure must never undo the audited write.
type Service struct {
	repo  Repository
	clock func() time.Time
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo, clock: time.Now}
}

func (s *Service) Append(ctx context.Context, e Event) error {
	if s.repo == nil {
		return ErrNoRepository
	}
	if e.Type == "" || e.EntityType == "" || e.EntityID == "" {
		return ErrInvalidEvent
	}
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = s.clock().UTC()
	}
	return s.repo.Append(ctx, e)
}

// LogWrite records a create, update or chat message by actor.
func (s *Service) LogWrite(ctx context.Context, actor Actor, typ EventType, entityType, entityID, metadata string) error {
	return s.Append(ctx, Event{
		Type:        typ,
		ActorUserID: actor.UserID,
		ActorRole:   actor.Role,
		IPAddress:   actor.IP,
		EntityType:  entityType,
		EntityID:    entityID,
		Message:     string(typ),
		Metadata:    metadata,
	})
}

// Trail returns the events of one record, oldest first.
func (s *Service) Trail(ctx context.Context, entityType, entityID string) ([]Event, error) {
	if s.repo == nil {
		return nil, ErrNoRepository
	}
	events, err := s.repo.ListForEntity(ctx, entityType, entityID)
	if err != nil {
		return nil, err
	}
	if events == nil {
		events = []Event{}
	}
	return events, nil
}

type actorKey struct{}

// WithActor attaches the acting operator so the service layer can audit writes.
func WithActor(ctx context.Context, a Actor) context.Context {
	return context.WithValue(ctx, actorKey{}, a)
}

func ActorFrom(ctx context.Context) Actor {
	a, _ := ctx.Value(actorKey{}).(Actor)
	return a
}
