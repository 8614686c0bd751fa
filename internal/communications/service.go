package communications

import (
	"context"
	"encoding/json"
	"log/slog"
	"reflect"
	"strings"
	"time"

	"crm-platform/internal/audit"

	"github.com/google/uuid"
)

// Auditor records communication writes. *audit.Service implements it.
type Auditor interface {
	LogWrite(ctx context.Context, actor audit.Actor, typ audit.EventType, entityType, entityID, metadata string) error
}

// Service validates and persists communication records.
//
// Every write is validated before the repository is touched, so a
// ValidationError never leaves a partial write behind. Audit is best-effort.
type Service struct {
	repo    Repository
	auditor Auditor
	log     *slog.Logger

	// clock and newID are injectable for deterministic tests.
	clock func() time.Time
	newID func() string
}

func NewService(repo Repository, auditor Auditor, log *slog.Logger) *Service {
	if log == nil {
		log = slog.Default()
	}
	return &Service{
		repo:    repo,
		auditor: auditor,
		log:     log,
		clock:   time.Now,
		newID:   uuid.NewString,
	}
}

// --- Calls ---

func (s *Service) CreateCall(ctx context.Context, in CreateCallInput) (CallRecord, error) {
	in, err := ValidateCreateCall(in)
	if err != nil {
		return CallRecord{}, err
	}
	rec := CallRecord{
		ID:             s.newID(),
		ContactID:      in.ContactID,
		AccountID:      in.AccountID,
		CaseID:         in.CaseID,
		Direction:      in.Direction,
		PhoneNumber:    in.PhoneNumber,
		Duration:       *in.Duration,
		Outcome:        in.Outcome,
		Notes:          in.Notes,
		RecordingURL:   in.RecordingURL,
		ExternalCallID: in.ExternalCallID,
		Sentiment:      in.Sentiment,
		CreatedAt:      s.clock().UTC(),
	}
	out, err := s.repo.InsertCall(ctx, rec)
	if err != nil {
		return CallRecord{}, err
	}
	s.record(ctx, audit.EventTypeCreated, string(KindCall), out.ID, nil)
	return out, nil
}

// UpdateCall applies a partial update. An empty patch returns the stored record.
func (s *Service) UpdateCall(ctx context.Context, id string, in UpdateCallInput) (CallRecord, error) {
	if !isUUID(id) {
		return CallRecord{}, &NotFoundError{Entity: "call", ID: id}
	}
	in, err := ValidateUpdateCall(in)
	if err != nil {
		return CallRecord{}, err
	}
	if in.IsEmpty() {
		return s.repo.GetCall(ctx, id)
	}
	out, err := s.repo.UpdateCall(ctx, id, func(c *CallRecord) error {
		applyCallPatch(c, in)
		return nil
	})
	if err != nil {
		return CallRecord{}, err
	}
	s.record(ctx, audit.EventTypeUpdated, string(KindCall), out.ID, changedFields(in))
	return out, nil
}

func (s *Service) GetCall(ctx context.Context, id string) (CallRecord, error) {
	if !isUUID(id) {
		return CallRecord{}, &NotFoundError{Entity: "call", ID: id}
	}
	return s.repo.GetCall(ctx, id)
}

func (s *Service) ListCalls(ctx context.Context, f CommunicationsFilter) ([]CallRecord, error) {
	return s.repo.ListCalls(ctx, f)
}

func applyCallPatch(c *CallRecord, in UpdateCallInput) {
	if in.ContactID != nil {
		c.ContactID = in.ContactID
	}
	if in.AccountID != nil {
		c.AccountID = in.AccountID
	}
	if in.CaseID != nil {
		c.CaseID = in.CaseID
	}
	if in.Direction != nil {
		c.Direction = *in.Direction
	}
	if in.PhoneNumber != nil {
		c.PhoneNumber = *in.PhoneNumber
	}
	if in.Duration != nil {
		c.Duration = *in.Duration
	}
	if in.Outcome != nil {
		c.Outcome = *in.Outcome
	}
	if in.Notes != nil {
		c.Notes = in.Notes
	}
	if in.RecordingURL != nil {
		c.RecordingURL = in.RecordingURL
	}
	if in.ExternalCallID != nil {
		c.ExternalCallID = in.ExternalCallID
	}
	if in.Sentiment != nil {
		c.Sentiment = in.Sentiment
	}
}

// --- Emails ---

func (s *Service) CreateEmail(ctx context.Context, in CreateEmailInput) (EmailRecord, error) {
	in, err := ValidateCreateEmail(in)
	if err != nil {
		return EmailRecord{}, err
	}
	rec := EmailRecord{
		ID:          s.newID(),
		ContactID:   in.ContactID,
		AccountID:   in.AccountID,
		CaseID:      in.CaseID,
		Direction:   in.Direction,
		From:        in.From,
		To:          in.To,
		CC:          in.CC,
		Subject:     in.Subject,
		Body:        in.Body,
		HTMLBody:    in.HTMLBody,
		Attachments: attachments(in.Attachments),
		SentAt:      parseTime(in.SentAt),
		DeliveredAt: parseTime(in.DeliveredAt),
		OpenedAt:    parseTime(in.OpenedAt),
		Sentiment:   in.Sentiment,
		CreatedAt:   s.clock().UTC(),
	}
	out, err := s.repo.InsertEmail(ctx, rec)
	if err != nil {
		return EmailRecord{}, err
	}
	s.record(ctx, audit.EventTypeCreated, string(KindEmail), out.ID, nil)
	return out, nil
}

func (s *Service) UpdateEmail(ctx context.Context, id string, in UpdateEmailInput) (EmailRecord, error) {
	if !isUUID(id) {
		return EmailRecord{}, &NotFoundError{Entity: "email", ID: id}
	}
	in, err := ValidateUpdateEmail(in)
	if err != nil {
		return EmailRecord{}, err
	}
	if in.IsEmpty() {
		return s.repo.GetEmail(ctx, id)
	}
	out, err := s.repo.UpdateEmail(ctx, id, func(e *EmailRecord) error {
		applyEmailPatch(e, in)
		return nil
	})
	if err != nil {
		return EmailRecord{}, err
	}
	s.record(ctx, audit.EventTypeUpdated, string(KindEmail), out.ID, changedFields(in))
	return out, nil
}

func (s *Service) GetEmail(ctx context.Context, id string) (EmailRecord, error) {
	if !isUUID(id) {
		return EmailRecord{}, &NotFoundError{Entity: "email", ID: id}
	}
	return s.repo.GetEmail(ctx, id)
}

func (s *Service) ListEmails(ctx context.Context, f CommunicationsFilter) ([]EmailRecord, error) {
	return s.repo.ListEmails(ctx, f)
}

func applyEmailPatch(e *EmailRecord, in UpdateEmailInput) {
	if in.ContactID != nil {
		e.ContactID = in.ContactID
	}
	if in.AccountID != nil {
		e.AccountID = in.AccountID
	}
	if in.CaseID != nil {
		e.CaseID = in.CaseID
	}
	if in.Direction != nil {
		e.Direction = *in.Direction
	}
	if in.From != nil {
		e.From = *in.From
	}
	if in.To != nil {
		e.To = *in.To
	}
	if in.CC != nil {
		e.CC = in.CC
	}
	if in.Subject != nil {
		e.Subject = *in.Subject
	}
	if in.Body != nil {
		e.Body = *in.Body
	}
	if in.HTMLBody != nil {
		e.HTMLBody = in.HTMLBody
	}
	if in.Attachments != nil {
		e.Attachments = attachments(in.Attachments)
	}
	if in.SentAt != nil {
		e.SentAt = parseTime(in.SentAt)
	}
	if in.DeliveredAt != nil {
		e.DeliveredAt = parseTime(in.DeliveredAt)
	}
	if in.OpenedAt != nil {
		e.OpenedAt = parseTime(in.OpenedAt)
	}
	if in.Sentiment != nil {
		e.Sentiment = in.Sentiment
	}
}

func attachments(in []AttachmentInput) []Attachment {
	if in == nil {
		return nil
	}
	out := make([]Attachment, 0, len(in))
	for _, a := range in {
		out = append(out, Attachment{Filename: a.Filename, URL: a.URL, Size: *a.Size, MimeType: a.MimeType})
	}
	return out
}

// parseTime expects an already validated RFC 3339 value.
func parseTime(s *string) *time.Time {
	if s == nil {
		return nil
	}
	t, err := time.Parse(time.RFC3339, *s)
	if err != nil {
		return nil
	}
	t = t.UTC()
	return &t
}

// --- Chats ---

func (s *Service) CreateChat(ctx context.Context, in CreateChatInput) (ChatRecord, error) {
	in, err := ValidateCreateChat(in)
	if err != nil {
		return ChatRecord{}, err
	}
	rec := ChatRecord{
		ID:        s.newID(),
		ContactID: in.ContactID,
		AccountID: in.AccountID,
		CaseID:    in.CaseID,
		Channel:   in.Channel,
		Status:    in.Status,
		CreatedAt: s.clock().UTC(),
	}
	out, err := s.repo.InsertChat(ctx, rec)
	if err != nil {
		return ChatRecord{}, err
	}
	s.record(ctx, audit.EventTypeCreated, string(KindChat), out.ID, nil)
	return out, nil
}

func (s *Service) GetChat(ctx context.Context, id string) (ChatRecord, error) {
	if !isUUID(id) {
		return ChatRecord{}, &NotFoundError{Entity: "chat", ID: id}
	}
	return s.repo.GetChat(ctx, id)
}

func (s *Service) ListChats(ctx context.Context, f CommunicationsFilter) ([]ChatRecord, error) {
	return s.repo.ListChats(ctx, f)
}

// AddChatMessage appends a message to an existing chat.
func (s *Service) AddChatMessage(ctx context.Context, chatID string, in AddChatMessageInput) (ChatMessage, error) {
	if !isUUID(chatID) {
		return ChatMessage{}, &NotFoundError{Entity: "chat", ID: chatID}
	}
	in, err := ValidateAddChatMessage(in)
	if err != nil {
		return ChatMessage{}, err
	}
	msg := ChatMessage{
		ID:          s.newID(),
		ChatID:      chatID,
		Sender:      in.Sender,
		Message:     in.Message,
		MessageType: in.MessageType,
		Metadata:    in.Metadata,
		CreatedAt:   s.clock().UTC(),
	}
	out, err := s.repo.InsertChatMessage(ctx, msg)
	if err != nil {
		return ChatMessage{}, err
	}
	s.record(ctx, audit.EventTypeMessage, string(KindChat), chatID, map[string]any{"messageId": out.ID, "sender": out.Sender})
	return out, nil
}

func (s *Service) ListChatMessages(ctx context.Context, chatID string) ([]ChatMessage, error) {
	if !isUUID(chatID) {
		return nil, &NotFoundError{Entity: "chat", ID: chatID}
	}
	return s.repo.ListChatMessages(ctx, chatID)
}

// --- helpers ---

func (s *Service) record(ctx context.Context, typ audit.EventType, entityType, id string, meta any) {
	if s.auditor == nil {
		return
	}
	var metadata string
	if meta != nil {
		b, err := json.Marshal(meta)
		if err == nil {
			metadata = string(b)
		}
	}
	if err := s.auditor.LogWrite(ctx, audit.ActorFrom(ctx), typ, entityType, id, metadata); err != nil {
		s.log.WarnContext(ctx, "audit write failed", "type", typ, "entity_type", entityType, "entity_id", id, "err", err)
	}
}

// changedFields lists the wire names of the fields set in a patch.
func changedFields(patch any) map[string]any {
	v := reflect.ValueOf(patch)
	t := v.Type()
	fields := make([]string, 0, t.NumField())
	for i := 0; i < t.NumField(); i++ {
		if v.Field(i).IsZero() {
			continue
		}
		name := strings.SplitN(t.Field(i).Tag.Get("json"), ",", 2)[0]
		fields = append(fields, name)
	}
	return map[string]any{"fields": fields}
}

func isUUID(s string) bool {
	return uuid.Validate(s) == nil
}
