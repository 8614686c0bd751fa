package client

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"crm-platform/internal/communications"

	"github.com/go-resty/resty/v2"
)

// Config for the communications API client.
type Config struct {
	// BaseURL includes the version prefix, e.g. http://localhost:8080/v1.
	BaseURL string
	Token   string
	Timeout time.Duration

	// Retries apply to reads only.
	RetryCount   int
	RetryWait    time.Duration
	RetryMaxWait time.Duration
}

func (c Config) withDefaults() Config {
	out := c
	if out.Timeout <= 0 {
		out.Timeout = 10 * time.Second
	}
	if out.RetryCount < 0 {
		out.RetryCount = 0
	}
	if out.RetryWait <= 0 {
		out.RetryWait = 200 * time.Millisecond
	}
	if out.RetryMaxWait <= 0 {
		out.RetryMaxWait = 2 * time.Second
	}
	return out
}

// Client talks to the communications API. It implements inbox.Source.
type Client struct {
	read  *resty.Client
	write *resty.Client
	log   *slog.Logger
}

func New(cfg Config, log *slog.Logger) *Client {
	cfg = cfg.withDefaults()
	if log == nil {
		log = slog.Default()
	}
	base := func() *resty.Client {
		c := resty.New().
			SetBaseURL(cfg.BaseURL).
			SetTimeout(cfg.Timeout).
			SetHeader("Content-Type", "application/json").
			SetHeader("Accept", "application/json")
		if cfg.Token != "" {
			c.SetAuthToken(cfg.Token)
		}
		return c
	}
	read := base().
		SetRetryCount(cfg.RetryCount).
		SetRetryWaitTime(cfg.RetryWait).
		SetRetryMaxWaitTime(cfg.RetryMaxWait).
		AddRetryCondition(func(r *resty.Response, err error) bool {
			return err != nil || r.StatusCode() >= http.StatusInternalServerError || r.StatusCode() == http.StatusTooManyRequests
		})
	return &Client{read: read, write: base(), log: log}
}

// StatusError is an unexpected non-2xx answer to a write.
type StatusError struct {
	Code    int
	Message string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("client: unexpected status %d: %s", e.Code, e.Message)
}

// apiError mirrors the API's error body.
type apiError struct {
	Error  string                      `json:"error"`
	Fields []communications.FieldError `json:"fields"`
	Entity string                      `json:"entity"`
	ID     string                      `json:"id"`
}

type envelope[T any] struct {
	Data []T `json:"data"`
}

// --- reads (inbox.Source) ---

// pageSize matches the server's maximum limit.
const pageSize = communications.MaxPageLimit

func (c *Client) FetchCalls(ctx context.Context, f communications.CommunicationsFilter) ([]communications.CallRecord, error) {
	return fetchAll[communications.CallRecord](ctx, c, "calls", f)
}

func (c *Client) FetchEmails(ctx context.Context, f communications.CommunicationsFilter) ([]communications.EmailRecord, error) {
	return fetchAll[communications.EmailRecord](ctx, c, "emails", f)
}

func (c *Client) FetchChats(ctx context.Context, f communications.CommunicationsFilter) ([]communications.ChatRecord, error) {
	return fetchAll[communications.ChatRecord](ctx, c, "chats", f)
}

// fetchAll pages through GET /communications/{source} in chunks of at most
// pageSize until f.Limit rows were read or the server runs dry. f.Limit == 0
// reads everything.
func fetchAll[T any](ctx context.Context, c *Client, source string, f communications.CommunicationsFilter) ([]T, error) {
	out := make([]T, 0)
	offset := f.Offset
	for {
		want := pageSize
		if f.Limit > 0 {
			remaining := f.Limit - len(out)
			if remaining <= 0 {
				return out, nil
			}
			want = min(remaining, pageSize)
		}
		page := f
		page.Limit = want
		page.Offset = offset

		var env envelope[T]
		resp, err := c.read.R().
			SetContext(ctx).
			SetQueryParamsFromValues(page.Query()).
			SetResult(&env).
			SetError(&apiError{}).
			Get("/communications/" + source)
		if err := readError(resp, err, source); err != nil {
			c.log.WarnContext(ctx, "fetch failed", "source", source, "err", err)
			return nil, err
		}
		out = append(out, env.Data...)
		if len(env.Data) < want {
			return out, nil
		}
		offset += len(env.Data)
	}
}

// ListChatMessages reads a chat transcript.
func (c *Client) ListChatMessages(ctx context.Context, chatID string) ([]communications.ChatMessage, error) {
	var env envelope[communications.ChatMessage]
	resp, err := c.read.R().
		SetContext(ctx).
		SetPathParam("id", chatID).
		SetResult(&env).
		SetError(&apiError{}).
		Get("/communications/chats/{id}/messages")
	if err := readError(resp, err, "chat messages"); err != nil {
		return nil, err
	}
	return env.Data, nil
}

func readError(resp *resty.Response, err error, source string) error {
	if err != nil {
		return &communications.SourceFetchError{Source: source, Err: err}
	}
	if resp.IsSuccess() {
		return nil
	}
	if mapped := clientError(resp); mapped != nil {
		return mapped
	}
	return &communications.SourceFetchError{Source: source, Err: &StatusError{Code: resp.StatusCode(), Message: message(resp)}}
}

// --- writes (never retried) ---

func (c *Client) CreateCall(ctx context.Context, in communications.CreateCallInput) (communications.CallRecord, error) {
	var out communications.CallRecord
	return out, c.send(ctx, http.MethodPost, "/communications/calls", "", in, &out)
}

func (c *Client) UpdateCall(ctx context.Context, id string, in communications.UpdateCallInput) (communications.CallRecord, error) {
	var out communications.CallRecord
	return out, c.send(ctx, http.MethodPatch, "/communications/calls/{id}", id, in, &out)
}

func (c *Client) CreateEmail(ctx context.Context, in communications.CreateEmailInput) (communications.EmailRecord, error) {
	var out communications.EmailRecord
	return out, c.send(ctx, http.MethodPost, "/communications/emails", "", in, &out)
}

func (c *Client) UpdateEmail(ctx context.Context, id string, in communications.UpdateEmailInput) (communications.EmailRecord, error) {
	var out communications.EmailRecord
	return out, c.send(ctx, http.MethodPatch, "/communications/emails/{id}", id, in, &out)
}

func (c *Client) CreateChat(ctx context.Context, in communications.CreateChatInput) (communications.ChatRecord, error) {
	var out communications.ChatRecord
	return out, c.send(ctx, http.MethodPost, "/communications/chats", "", in, &out)
}

func (c *Client) AddChatMessage(ctx context.Context, chatID string, in communications.AddChatMessageInput) (communications.ChatMessage, error) {
	var out communications.ChatMessage
	return out, c.send(ctx, http.MethodPost, "/communications/chats/{id}/messages", chatID, in, &out)
}

func (c *Client) send(ctx context.Context, method, path, id string, body, result any) error {
	req := c.write.R().
		SetContext(ctx).
		SetBody(body).
		SetResult(result).
		SetError(&apiError{})
	if id != "" {
		req.SetPathParam("id", id)
	}
	resp, err := req.Execute(method, path)
	if err != nil {
		return fmt.Errorf("client: %s %s: %w", method, path, err)
	}
	if resp.IsSuccess() {
		return nil
	}
	if mapped := clientError(resp); mapped != nil {
		return mapped
	}
	return &StatusError{Code: resp.StatusCode(), Message: message(resp)}
}

// clientError maps 400/404 answers to the domain error types.
func clientError(resp *resty.Response) error {
	switch resp.StatusCode() {
	case http.StatusBadRequest:
		ve := &communications.ValidationError{}
		if e, ok := resp.Error().(*apiError); ok && len(e.Fields) > 0 {
			ve.Fields = e.Fields
		} else {
			ve.Fields = []communications.FieldError{{Field: "body", Rule: "invalid", Message: message(resp)}}
		}
		return ve
	case http.StatusNotFound:
		nf := &communications.NotFoundError{Entity: "resource"}
		if e, ok := resp.Error().(*apiError); ok && e.Entity != "" {
			nf.Entity, nf.ID = e.Entity, e.ID
		}
		return nf
	default:
		return nil
	}
}

func message(resp *resty.Response) string {
	if e, ok := resp.Error().(*apiError); ok && e.Error != "" {
		return e.Error
	}
	return http.StatusText(resp.StatusCode())
}
