package main

import (
	"bytes"
	"context"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"crm-platform/internal/audit"
	"crm-platform/internal/auth"
	"crm-platform/internal/communications"
	"crm-platform/internal/config"
	"crm-platform/internal/httpapi"
	"crm-platform/internal/inbox"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

const (
	testSecret   = "cli-secret"
	contactMario = "6f1c2b9e-4a53-4d0e-9a8e-1f2d3c4b5a60"
)

type fixture struct {
	url   string
	token string
	call  communications.CallRecord
	email communications.EmailRecord
	chat  communications.ChatRecord
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	gin.SetMode(gin.TestMode)

	m, err := auth.NewManager(config.AuthConfig{JWTSecret: testSecret, AccessTokenTTL: time.Hour})
	require.NoError(t, err)

	repo := communications.NewMemoryRepo()
	repo.Contacts = map[string]string{contactMario: "Mario Rossi"}
	svc := communications.NewService(repo, audit.NewService(audit.NewMemoryRepo()), nil)

	h := httpapi.Handlers{Auth: m, Communications: svc, Inbox: inbox.NewLoader(inbox.NewRepositorySource(svc), nil, nil)}
	r := gin.New()
	h.Register(r.Group("/v1", auth.RequireAccessToken(m)))
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)

	ctx := context.Background()
	contact := contactMario
	dur := 65
	call, err := svc.CreateCall(ctx, communications.CreateCallInput{
		ContactID: &contact, Direction: communications.DirectionInbound, PhoneNumber: "+390212345678",
		Duration: &dur, Outcome: communications.CallOutcomeAnswered,
	})
	require.NoError(t, err)
	time.Sleep(2 * time.Millisecond)
	email, err := svc.CreateEmail(ctx, communications.CreateEmailInput{
		ContactID: &contact, Direction: communications.DirectionOutbound, From: "filiale@banca.it",
		To: "mario.rossi@example.com", Subject: "Estratto conto", Body: "In allegato.",
	})
	require.NoError(t, err)
	time.Sleep(2 * time.Millisecond)
	chat, err := svc.CreateChat(ctx, communications.CreateChatInput{ContactID: contact, Channel: communications.ChatChannelWhatsApp})
	require.NoError(t, err)
	_, err = svc.AddChatMessage(ctx, chat.ID, communications.AddChatMessageInput{Sender: communications.SenderContact, Message: "Salve, info sul mutuo"})
	require.NoError(t, err)

	tok, err := m.Issue(time.Now(), auth.Identity{UserID: "op-1", Role: "agent"})
	require.NoError(t, err)

	return fixture{url: srv.URL + "/v1", token: tok, call: call, email: email, chat: chat}
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := buildRootCmd()
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestList(t *testing.T) {
	fx := newFixture(t)

	out, err := run(t, "--api-url", fx.url, "--token", fx.token, "list")
	require.NoError(t, err)

	assert.Contains(t, out, "sources: calls=ready(1) emails=ready(1) chats=ready(1)")
	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 5) // sources, header, 3 rows
	assert.Contains(t, lines[2], fx.chat.ID)
	assert.Contains(t, lines[3], "Estratto conto")
	assert.Contains(t, lines[4], "Mario Rossi")
}

func TestList_ChannelFilterKeepsSelection(t *testing.T) {
	fx := newFixture(t)

	out, err := run(t, "--api-url", fx.url, "--token", fx.token, "list", "--channel", "email", "--select", fx.chat.ID)
	require.NoError(t, err)

	assert.Contains(t, out, fx.email.ID)
	assert.NotContains(t, out, fx.call.ID)
	// the chat is filtered out of the list but still shown as selected detail
	assert.Contains(t, out, `"id": "`+fx.chat.ID+`"`)
	assert.Contains(t, out, "Salve, info sul mutuo")
}

func TestList_InvalidFlags(t *testing.T) {
	fx := newFixture(t)

	_, err := run(t, "--api-url", fx.url, "--token", fx.token, "list", "--channel", "fax")
	assert.Error(t, err)

	_, err = run(t, "--api-url", fx.url, "--token", fx.token, "list", "--limit", "500")
	assert.ErrorIs(t, err, communications.ErrValidation)
}

func TestShow(t *testing.T) {
	fx := newFixture(t)

	out, err := run(t, "--api-url", fx.url, "--token", fx.token, "show", fx.call.ID)
	require.NoError(t, err)
	assert.Contains(t, out, `"type": "call"`)
	assert.Contains(t, out, "+390212345678")

	_, err = run(t, "--api-url", fx.url, "--token", fx.token, "show", "c0ffee00-0000-4000-8000-000000000000")
	assert.Error(t, err)
}

func TestExport(t *testing.T) {
	fx := newFixture(t)
	path := filepath.Join(t.TempDir(), "out.xlsx")

	out, err := run(t, "--api-url", fx.url, "--token", fx.token, "export", "--channel", "call", "--out", path)
	require.NoError(t, err)
	assert.Contains(t, out, "wrote 1 communications")

	f, err := excelize.OpenFile(path)
	require.NoError(t, err)
	defer f.Close()
	rows, err := f.GetRows("Communications")
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, fx.call.ID, rows[1][1])
}

func TestUnauthorized(t *testing.T) {
	fx := newFixture(t)

	out, err := run(t, "--api-url", fx.url, "--token", "bogus", "list")
	require.NoError(t, err) // every source failed, the inbox still renders
	assert.Contains(t, out, "calls=failed emails=failed chats=failed")
	assert.Contains(t, out, "no communications")
}

func TestToken(t *testing.T) {
	out, err := run(t, "token", "--user", "op-9", "--role", "supervisor", "--secret", testSecret)
	require.NoError(t, err)

	m, err := auth.NewManager(config.AuthConfig{JWTSecret: testSecret, AccessTokenTTL: time.Minute})
	require.NoError(t, err)
	claims, err := m.Verify(strings.TrimSpace(out), time.Now())
	require.NoError(t, err)
	assert.Equal(t, auth.Identity{UserID: "op-9", Role: "supervisor"}, claims.Identity())

	_, err = run(t, "token", "--user", "op-9", "--role", "owner", "--secret", testSecret)
	assert.Error(t, err)
}
