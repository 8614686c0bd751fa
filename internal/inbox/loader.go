package inbox

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"crm-platform/internal/communications"
	"crm-platform/internal/observability"

	"golang.org/x/sync/errgroup"
)

// SourceName identifies one of the three inbox sources.
type SourceName string

const (
	SourceCalls  SourceName = "calls"
	SourceEmails SourceName = "emails"
	SourceChats  SourceName = "chats"
)

// Sources lists every source in aggregation order.
var Sources = []SourceName{SourceCalls, SourceEmails, SourceChats}

type Status string

const (
	StatusLoading Status = "loading"
	StatusReady   Status = "ready"
	StatusFailed  Status = "failed"
	StatusSkipped Status = "skipped"
)

// SourceState is the per-source indicator shown next to the inbox.
type SourceState struct {
	Status Status `json:"status"`
	Count  int    `json:"count"`
	Err    error  `json:"-"`
}

// Source fetches the three collections. Implementations: RepositorySource
// (in-process) and client.Client (HTTP).
type Source interface {
	FetchCalls(ctx context.Context, f communications.CommunicationsFilter) ([]communications.CallRecord, error)
	FetchEmails(ctx context.Context, f communications.CommunicationsFilter) ([]communications.EmailRecord, error)
	FetchChats(ctx context.Context, f communications.CommunicationsFilter) ([]communications.ChatRecord, error)
}

// Progress is called once per source as it changes state. Calls are serialized.
type Progress func(source SourceName, state SourceState)

// Result is one aggregated inbox page.
type Result struct {
	Items   []communications.UnifiedCommunication
	Sources map[SourceName]SourceState
	Limit   int
	Offset  int
}

// Degraded reports whether any requested source failed.
func (r Result) Degraded() bool {
	return len(r.Failed()) > 0
}

// Failed lists failed sources in aggregation order.
func (r Result) Failed() []SourceName {
	var out []SourceName
	for _, s := range Sources {
		if r.Sources[s].Status == StatusFailed {
			out = append(out, s)
		}
	}
	return out
}

// Loader runs the three fetches concurrently and merges what came back.
//
// A failing source contributes nothing and is reported as failed; the other
// sources are still merged. Validation and not-found errors from a source are
// returned as-is since they point at a bad request rather than an outage.
type Loader struct {
	src     Source
	metrics *observability.Metrics
	log     *slog.Logger
	clock   func() time.Time
}

func NewLoader(src Source, metrics *observability.Metrics, log *slog.Logger) *Loader {
	if log == nil {
		log = slog.Default()
	}
	return &Loader{src: src, metrics: metrics, log: log, clock: time.Now}
}

// Load fetches, merges and pages the inbox for f.
//
// Each source is asked for the first offset+limit rows so the merged
// sequence can be cut at [offset, offset+limit). f.Channel restricts which
// sources are fetched; the others report StatusSkipped.
func (l *Loader) Load(ctx context.Context, f communications.CommunicationsFilter, progress Progress) (Result, error) {
	var mu sync.Mutex
	states := make(map[SourceName]SourceState, len(Sources))
	report := func(s SourceName, st SourceState) {
		mu.Lock()
		defer mu.Unlock()
		states[s] = st
		if progress != nil {
			progress(s, st)
		}
	}

	window := f
	window.Offset = 0
	window.Limit = 0
	if f.Limit > 0 {
		window.Limit = f.Offset + f.Limit
	}

	var (
		calls  []communications.CallRecord
		emails []communications.EmailRecord
		chats  []communications.ChatRecord
	)
	fetchers := map[SourceName]func(context.Context) (int, error){
		SourceCalls: func(ctx context.Context) (int, error) {
			rows, err := l.src.FetchCalls(ctx, window)
			if err != nil {
				return 0, err
			}
			calls = rows
			return len(rows), nil
		},
		SourceEmails: func(ctx context.Context) (int, error) {
			rows, err := l.src.FetchEmails(ctx, window)
			if err != nil {
				return 0, err
			}
			emails = rows
			return len(rows), nil
		},
		SourceChats: func(ctx context.Context) (int, error) {
			rows, err := l.src.FetchChats(ctx, window)
			if err != nil {
				return 0, err
			}
			chats = rows
			return len(rows), nil
		},
	}

	var g errgroup.Group
	for _, s := range Sources {
		if !requested(f.Channel, s) {
			report(s, SourceState{Status: StatusSkipped})
			continue
		}
		report(s, SourceState{Status: StatusLoading})
	}
	for _, s := range Sources {
		if !requested(f.Channel, s) {
			continue
		}
		fetch := fetchers[s]
		g.Go(func() error {
			start := l.clock()
			n, err := fetch(ctx)
			l.metrics.SourceFetched(string(s), err == nil, l.clock().Sub(start))
			if err == nil {
				report(s, SourceState{Status: StatusReady, Count: n})
				return nil
			}
			if errors.Is(err, communications.ErrValidation) || errors.Is(err, communications.ErrNotFound) {
				return err
			}
			var sfe *communications.SourceFetchError
			if !errors.As(err, &sfe) {
				err = &communications.SourceFetchError{Source: string(s), Err: err}
			}
			l.log.WarnContext(ctx, "inbox source failed", "source", s, "err", err)
			report(s, SourceState{Status: StatusFailed, Err: err})
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return Result{}, err
	}
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}

	// Failed sources left their slice nil, which Aggregate treats as empty.
	merged := communications.Aggregate(calls, emails, chats)
	items := communications.Page(merged, f.Offset, f.Limit)
	l.metrics.InboxLoaded(len(items))

	mu.Lock()
	defer mu.Unlock()
	out := Result{Items: items, Sources: make(map[SourceName]SourceState, len(states)), Limit: f.Limit, Offset: f.Offset}
	for k, v := range states {
		out.Sources[k] = v
	}
	return out, nil
}

func requested(ch communications.Channel, s SourceName) bool {
	switch ch {
	case "":
		return true
	case communications.ChannelPhone:
		return s == SourceCalls
	case communications.ChannelEmail:
		return s == SourceEmails
	case communications.ChannelChat:
		return s == SourceChats
	default:
		return false
	}
}
