package communications

import (
	"context"
	"sort"
	"time"
)

// Repository is the persistence contract for communication records.
//
// Lists honour the filter's links, date range, limit and offset and return
// newest first. Update* run fn against the current row under a row lock and
// persist the result. Referencing a missing contact/account/case/chat yields
// a *NotFoundError.
type Repository interface {
	InsertCall(ctx context.Context, r CallRecord) (CallRecord, error)
	UpdateCall(ctx context.Context, id string, fn func(*CallRecord) error) (CallRecord, error)
	GetCall(ctx context.Context, id string) (CallRecord, error)
	ListCalls(ctx context.Context, f CommunicationsFilter) ([]CallRecord, error)

	InsertEmail(ctx context.Context, r EmailRecord) (EmailRecord, error)
	UpdateEmail(ctx context.Context, id string, fn func(*EmailRecord) error) (EmailRecord, error)
	GetEmail(ctx context.Context, id string) (EmailRecord, error)
	ListEmails(ctx context.Context, f CommunicationsFilter) ([]EmailRecord, error)

	InsertChat(ctx context.Context, r ChatRecord) (ChatRecord, error)
	GetChat(ctx context.Context, id string) (ChatRecord, error)
	ListChats(ctx context.Context, f CommunicationsFilter) ([]ChatRecord, error)
	// DeleteChat removes a chat and, with it, all of its messages.
	DeleteChat(ctx context.Context, id string) error

	InsertChatMessage(ctx context.Context, m ChatMessage) (ChatMessage, error)
	ListChatMessages(ctx context.Context, chatID string) ([]ChatMessage, error)
}

// window sorts newest first and applies offset/limit.
func window[T any](rows []T, created func(T) time.Time, offset, limit int) []T {
	sort.SliceStable(rows, func(i, j int) bool {
		return created(rows[i]).After(created(rows[j]))
	})
	if offset >= len(rows) {
		return []T{}
	}
	rows = rows[offset:]
	if limit > 0 && limit < len(rows) {
		rows = rows[:limit]
	}
	return rows
}
