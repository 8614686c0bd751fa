package client

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync/atomic"
	"testing"
	"time"

	"crm-platform/internal/communications"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newClient(t *testing.T, h http.Handler) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return New(Config{
		BaseURL:    srv.URL + "/v1",
		Token:      "tok",
		RetryCount: 2,
		RetryWait:  time.Millisecond,
	}, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func TestFetchCalls_PagesThroughServerLimit(t *testing.T) {
	total := 130
	var requests []string
	c := newClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v1/communications/calls", r.URL.Path)
		require.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		requests = append(requests, r.URL.RawQuery)

		limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
		offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))
		require.LessOrEqual(t, limit, 100)
		data := []communications.CallRecord{}
		for i := offset; i < total && i < offset+limit; i++ {
			data = append(data, communications.CallRecord{ID: strconv.Itoa(i)})
		}
		writeJSON(w, http.StatusOK, map[string]any{"data": data})
	}))

	calls, err := c.FetchCalls(context.Background(), communications.CommunicationsFilter{Limit: 150})
	require.NoError(t, err)
	assert.Len(t, calls, total)
	assert.Equal(t, []string{"limit=100", "limit=50&offset=100"}, requests)
}

func TestFetchEmails_ForwardsFilter(t *testing.T) {
	contact := "5f0c6b8e-3a52-4c1e-9a7e-0c2a4c6f1b11"
	c := newClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, contact, r.URL.Query().Get("contactId"))
		assert.Equal(t, "email", r.URL.Query().Get("channel"))
		writeJSON(w, http.StatusOK, map[string]any{"data": []communications.EmailRecord{{ID: "e1", From: "a@example.com"}}})
	}))
	emails, err := c.FetchEmails(context.Background(), communications.CommunicationsFilter{
		ContactID: &contact, Channel: communications.ChannelEmail, Limit: 20,
	})
	require.NoError(t, err)
	require.Len(t, emails, 1)
	assert.Equal(t, "a@example.com", emails[0].From)
}

func TestFetchChats_RetriesServerErrors(t *testing.T) {
	var hits atomic.Int32
	c := newClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits.Add(1) == 1 {
			writeJSON(w, http.StatusServiceUnavailable, map[string]any{"error": "warming up"})
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"data": []communications.ChatRecord{{ID: "h1"}}})
	}))
	chats, err := c.FetchChats(context.Background(), communications.CommunicationsFilter{Limit: 20})
	require.NoError(t, err)
	assert.Len(t, chats, 1)
	assert.Equal(t, int32(2), hits.Load())
}

func TestFetch_PersistentFailureIsSourceFetchError(t *testing.T) {
	c := newClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusInternalServerError, map[string]any{"error": "db down"})
	}))
	_, err := c.FetchEmails(context.Background(), communications.CommunicationsFilter{Limit: 20})
	var sfe *communications.SourceFetchError
	require.ErrorAs(t, err, &sfe)
	assert.Equal(t, "emails", sfe.Source)
	var se *StatusError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, http.StatusInternalServerError, se.Code)
	assert.Equal(t, "db down", se.Message)
}

func TestFetch_TransportErrorIsSourceFetchError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	srv.Close()
	c := New(Config{BaseURL: srv.URL, RetryWait: time.Millisecond}, nil)

	_, err := c.FetchCalls(context.Background(), communications.CommunicationsFilter{Limit: 1})
	require.ErrorIs(t, err, communications.ErrSourceDown)
}

func TestCreateCall_ValidationErrorAndNoRetry(t *testing.T) {
	var hits atomic.Int32
	c := newClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		require.Equal(t, http.MethodPost, r.Method)
		writeJSON(w, http.StatusBadRequest, map[string]any{
			"error":  "validation failed",
			"fields": []map[string]string{{"field": "outcome", "rule": "oneof", "message": "must be one of ..."}},
		})
	}))
	_, err := c.CreateCall(context.Background(), communications.CreateCallInput{Outcome: "hung_up"})
	var ve *communications.ValidationError
	require.ErrorAs(t, err, &ve)
	assert.True(t, ve.Has("outcome"))
	assert.Equal(t, int32(1), hits.Load())
}

func TestWrites_ServerErrorIsNotRetried(t *testing.T) {
	var hits atomic.Int32
	c := newClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		writeJSON(w, http.StatusBadGateway, map[string]any{"error": "upstream"})
	}))
	_, err := c.CreateChat(context.Background(), communications.CreateChatInput{ContactID: "x"})
	var se *StatusError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, http.StatusBadGateway, se.Code)
	assert.Equal(t, int32(1), hits.Load())
}

func TestAddChatMessage_NotFound(t *testing.T) {
	c := newClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/communications/chats/h404/messages", r.URL.Path)
		writeJSON(w, http.StatusNotFound, map[string]any{"error": "not found", "entity": "chat", "id": "h404"})
	}))
	_, err := c.AddChatMessage(context.Background(), "h404", communications.AddChatMessageInput{Sender: "agent", Message: "x"})
	var nf *communications.NotFoundError
	require.ErrorAs(t, err, &nf)
	assert.Equal(t, "chat", nf.Entity)
	assert.Equal(t, "h404", nf.ID)
}

func TestUpdateCall_SendsPatch(t *testing.T) {
	c := newClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPatch, r.Method)
		assert.Equal(t, "/v1/communications/calls/c1", r.URL.Path)
		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "escalated", body["outcome"])
		writeJSON(w, http.StatusOK, communications.CallRecord{ID: "c1", Outcome: communications.CallOutcomeEscalated})
	}))
	out := communications.CallOutcomeEscalated
	rec, err := c.UpdateCall(context.Background(), "c1", communications.UpdateCallInput{Outcome: &out})
	require.NoError(t, err)
	assert.Equal(t, communications.CallOutcomeEscalated, rec.Outcome)
}

func TestListChatMessages(t *testing.T) {
	c := newClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"data": []communications.ChatMessage{{ID: "m1", Message: "ciao"}}})
	}))
	msgs, err := c.ListChatMessages(context.Background(), "h1")
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, "ciao", msgs[0].Message)
}
