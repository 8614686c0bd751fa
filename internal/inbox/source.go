package inbox

import (
	"context"

	"crm-platform/internal/communications"
)

// Lister is the read side of communications.Service.
type Lister interface {
	ListCalls(ctx context.Context, f communications.CommunicationsFilter) ([]communications.CallRecord, error)
	ListEmails(ctx context.Context, f communications.CommunicationsFilter) ([]communications.EmailRecord, error)
	ListChats(ctx context.Context, f communications.CommunicationsFilter) ([]communications.ChatRecord, error)
}

// RepositorySource reads the sources in-process.
type RepositorySource struct {
	lister Lister
}

func NewRepositorySource(l Lister) *RepositorySource { return &RepositorySource{lister: l} }

func (s *RepositorySource) FetchCalls(ctx context.Context, f communications.CommunicationsFilter) ([]communications.CallRecord, error) {
	return s.lister.ListCalls(ctx, f)
}

func (s *RepositorySource) FetchEmails(ctx context.Context, f communications.CommunicationsFilter) ([]communications.EmailRecord, error) {
	return s.lister.ListEmails(ctx, f)
}

func (s *RepositorySource) FetchChats(ctx context.Context, f communications.CommunicationsFilter) ([]communications.ChatRecord, error) {
	return s.lister.ListChats(ctx, f)
}
