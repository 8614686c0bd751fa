package communications

import (
	"context"
	"maps"
	"slices"
	"sort"
	"sync"
	"time"
)

// MemoryRepo is an in-memory repository for tests and local development.
//
// When Contacts is non-nil it acts as the contacts table: links to unknown
// contacts are rejected and ContactName is filled from it.
type MemoryRepo struct {
	mu sync.Mutex

	Contacts map[string]string // contact id -> display name

	calls    map[string]CallRecord
	emails   map[string]EmailRecord
	chats    map[string]ChatRecord
	messages map[string][]ChatMessage // chat id -> messages
}

func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{
		calls:    map[string]CallRecord{},
		emails:   map[string]EmailRecord{},
		chats:    map[string]ChatRecord{},
		messages: map[string][]ChatMessage{},
	}
}

func (r *MemoryRepo) InsertCall(ctx context.Context, c CallRecord) (CallRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.checkContact(c.ContactID); err != nil {
		return CallRecord{}, err
	}
	c.ContactName = r.contactName(c.ContactID)
	r.calls[c.ID] = c
	return c, nil
}

func (r *MemoryRepo) UpdateCall(ctx context.Context, id string, fn func(*CallRecord) error) (CallRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.calls[id]
	if !ok {
		return CallRecord{}, &NotFoundError{Entity: "call", ID: id}
	}
	if err := fn(&c); err != nil {
		return CallRecord{}, err
	}
	if err := r.checkContact(c.ContactID); err != nil {
		return CallRecord{}, err
	}
	c.ContactName = r.contactName(c.ContactID)
	r.calls[id] = c
	return c, nil
}

func (r *MemoryRepo) GetCall(ctx context.Context, id string) (CallRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.calls[id]
	if !ok {
		return CallRecord{}, &NotFoundError{Entity: "call", ID: id}
	}
	return c, nil
}

func (r *MemoryRepo) ListCalls(ctx context.Context, f CommunicationsFilter) ([]CallRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]CallRecord, 0)
	for _, c := range r.calls {
		if f.Matches(c.ContactID, c.AccountID, c.CaseID, c.CreatedAt) {
			out = append(out, c)
		}
	}
	return window(sortByID(out, func(c CallRecord) string { return c.ID }), func(c CallRecord) time.Time { return c.CreatedAt }, f.Offset, f.Limit), nil
}

func (r *MemoryRepo) InsertEmail(ctx context.Context, e EmailRecord) (EmailRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.checkContact(e.ContactID); err != nil {
		return EmailRecord{}, err
	}
	e.ContactName = r.contactName(e.ContactID)
	r.emails[e.ID] = e
	return e, nil
}

func (r *MemoryRepo) UpdateEmail(ctx context.Context, id string, fn func(*EmailRecord) error) (EmailRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.emails[id]
	if !ok {
		return EmailRecord{}, &NotFoundError{Entity: "email", ID: id}
	}
	if err := fn(&e); err != nil {
		return EmailRecord{}, err
	}
	if err := r.checkContact(e.ContactID); err != nil {
		return EmailRecord{}, err
	}
	e.ContactName = r.contactName(e.ContactID)
	r.emails[id] = e
	return e, nil
}

func (r *MemoryRepo) GetEmail(ctx context.Context, id string) (EmailRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.emails[id]
	if !ok {
		return EmailRecord{}, &NotFoundError{Entity: "email", ID: id}
	}
	return e, nil
}

func (r *MemoryRepo) ListEmails(ctx context.Context, f CommunicationsFilter) ([]EmailRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]EmailRecord, 0)
	for _, e := range r.emails {
		if f.Matches(e.ContactID, e.AccountID, e.CaseID, e.CreatedAt) {
			out = append(out, e)
		}
	}
	return window(sortByID(out, func(e EmailRecord) string { return e.ID }), func(e EmailRecord) time.Time { return e.CreatedAt }, f.Offset, f.Limit), nil
}

func (r *MemoryRepo) InsertChat(ctx context.Context, c ChatRecord) (ChatRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.checkContact(&c.ContactID); err != nil {
		return ChatRecord{}, err
	}
	c.ContactName = r.contactName(&c.ContactID)
	r.chats[c.ID] = c
	return c, nil
}

func (r *MemoryRepo) GetChat(ctx context.Context, id string) (ChatRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.chats[id]
	if !ok {
		return ChatRecord{}, &NotFoundError{Entity: "chat", ID: id}
	}
	return c, nil
}

func (r *MemoryRepo) ListChats(ctx context.Context, f CommunicationsFilter) ([]ChatRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]ChatRecord, 0)
	for _, c := range r.chats {
		contactID := c.ContactID
		if f.Matches(&contactID, c.AccountID, c.CaseID, c.CreatedAt) {
			out = append(out, c)
		}
	}
	return window(sortByID(out, func(c ChatRecord) string { return c.ID }), func(c ChatRecord) time.Time { return c.CreatedAt }, f.Offset, f.Limit), nil
}

func (r *MemoryRepo) InsertChatMessage(ctx context.Context, m ChatMessage) (ChatMessage, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.chats[m.ChatID]; !ok {
		return ChatMessage{}, &NotFoundError{Entity: "chat", ID: m.ChatID}
	}
	if m.Metadata != nil {
		m.Metadata = maps.Clone(m.Metadata)
	}
	r.messages[m.ChatID] = append(r.messages[m.ChatID], m)
	return m, nil
}

func (r *MemoryRepo) ListChatMessages(ctx context.Context, chatID string) ([]ChatMessage, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.chats[chatID]; !ok {
		return nil, &NotFoundError{Entity: "chat", ID: chatID}
	}
	return slices.Clone(r.messages[chatID]), nil
}

// DeleteChat removes a chat together with its messages.
func (r *MemoryRepo) DeleteChat(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.chats[id]; !ok {
		return &NotFoundError{Entity: "chat", ID: id}
	}
	delete(r.chats, id)
	delete(r.messages, id)
	return nil
}

func (r *MemoryRepo) checkContact(id *string) error {
	if r.Contacts == nil || id == nil {
		return nil
	}
	if _, ok := r.Contacts[*id]; !ok {
		return &NotFoundError{Entity: "contact", ID: *id}
	}
	return nil
}

func (r *MemoryRepo) contactName(id *string) string {
	if r.Contacts == nil || id == nil {
		return ""
	}
	return r.Contacts[*id]
}

// sortByID gives map iteration a deterministic base order before the time sort.
func sortByID[T any](rows []T, id func(T) string) []T {
	sort.Slice(rows, func(i, j int) bool { return id(rows[i]) < id(rows[j]) })
	return rows
}
