package httpapi

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"time"

	"crm-platform/internal/audit"
	"crm-platform/internal/auth"
	"crm-platform/internal/communications"
	"crm-platform/internal/inbox"
	"crm-platform/internal/observability"
	"crm-platform/internal/rbac"
	"crm-platform/internal/reporting"
	"crm-platform/pkg/logger"

	"github.com/gin-gonic/gin"
)

// Handlers groups HTTP handlers for dependency injection.
// Keep these thin: parse/validate input, call internal services, return JSON.
type Handlers struct {
	Auth           *auth.Manager
	Communications *communications.Service
	Inbox          *inbox.Loader
	Limiter        *inbox.Limiter
	Metrics        *observability.Metrics
	// Audit serves per-record trails. Nil leaves the trail routes unmounted.
	Audit *audit.Service
}

// --- Auth ---

type tokenRequest struct {
	UserID string `json:"user_id"`
	Role   string `json:"role"`
}

// IssueToken issues an operator access token.
//
// NOTE: development only. Real deployments get tokens from the identity provider.
func (h Handlers) IssueToken(c *gin.Context) {
	if h.Auth == nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "auth not configured"})
		return
	}
	var req tokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	if req.UserID == "" || req.Role == "" {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "user_id, role required"})
		return
	}
	if !rbac.IsKnownRole(req.Role) {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "unknown role"})
		return
	}
	tok, err := h.Auth.Issue(time.Now(), auth.Identity{UserID: req.UserID, Role: req.Role})
	if err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "token issuance failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"access_token": tok, "token_type": "Bearer"})
}

// Actor copies the verified identity into the audit actor. Must run after
// auth.RequireAccessToken.
func Actor() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		id, _ := auth.FromContext(ctx)
		c.Request = c.Request.WithContext(audit.WithActor(ctx, audit.Actor{UserID: id.UserID, Role: id.Role, IP: c.ClientIP()}))
		c.Next()
	}
}

// --- Calls ---

func (h Handlers) CreateCall(c *gin.Context) {
	body, ok := h.body(c)
	if !ok {
		return
	}
	in, err := communications.DecodeCreateCall(body)
	if err == nil {
		var rec communications.CallRecord
		if rec, err = h.Communications.CreateCall(c.Request.Context(), in); err == nil {
			h.Metrics.Created(string(communications.KindCall), "api")
			c.JSON(http.StatusCreated, rec)
			return
		}
	}
	h.fail(c, "create_call", err)
}

func (h Handlers) UpdateCall(c *gin.Context) {
	body, ok := h.body(c)
	if !ok {
		return
	}
	in, err := communications.DecodeUpdateCall(body)
	if err == nil {
		var rec communications.CallRecord
		if rec, err = h.Communications.UpdateCall(c.Request.Context(), c.Param("id"), in); err == nil {
			c.JSON(http.StatusOK, rec)
			return
		}
	}
	h.fail(c, "update_call", err)
}

func (h Handlers) GetCall(c *gin.Context) {
	rec, err := h.Communications.GetCall(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.fail(c, "get_call", err)
		return
	}
	c.JSON(http.StatusOK, rec)
}

func (h Handlers) ListCalls(c *gin.Context) {
	f, ok := h.filter(c, "list_calls")
	if !ok {
		return
	}
	rows, err := h.Communications.ListCalls(c.Request.Context(), f)
	if err != nil {
		h.fail(c, "list_calls", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": rows})
}

// --- Emails ---

func (h Handlers) CreateEmail(c *gin.Context) {
	body, ok := h.body(c)
	if !ok {
		return
	}
	in, err := communications.DecodeCreateEmail(body)
	if err == nil {
		var rec communications.EmailRecord
		if rec, err = h.Communications.CreateEmail(c.Request.Context(), in); err == nil {
			h.Metrics.Created(string(communications.KindEmail), "api")
			c.JSON(http.StatusCreated, rec)
			return
		}
	}
	h.fail(c, "create_email", err)
}

func (h Handlers) UpdateEmail(c *gin.Context) {
	body, ok := h.body(c)
	if !ok {
		return
	}
	in, err := communications.DecodeUpdateEmail(body)
	if err == nil {
		var rec communications.EmailRecord
		if rec, err = h.Communications.UpdateEmail(c.Request.Context(), c.Param("id"), in); err == nil {
			c.JSON(http.StatusOK, rec)
			return
		}
	}
	h.fail(c, "update_email", err)
}

func (h Handlers) GetEmail(c *gin.Context) {
	rec, err := h.Communications.GetEmail(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.fail(c, "get_email", err)
		return
	}
	c.JSON(http.StatusOK, rec)
}

func (h Handlers) ListEmails(c *gin.Context) {
	f, ok := h.filter(c, "list_emails")
	if !ok {
		return
	}
	rows, err := h.Communications.ListEmails(c.Request.Context(), f)
	if err != nil {
		h.fail(c, "list_emails", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": rows})
}

// --- Chats ---

func (h Handlers) CreateChat(c *gin.Context) {
	body, ok := h.body(c)
	if !ok {
		return
	}
	in, err := communications.DecodeCreateChat(body)
	if err == nil {
		var rec communications.ChatRecord
		if rec, err = h.Communications.CreateChat(c.Request.Context(), in); err == nil {
			h.Metrics.Created(string(communications.KindChat), "api")
			c.JSON(http.StatusCreated, rec)
			return
		}
	}
	h.fail(c, "create_chat", err)
}

func (h Handlers) GetChat(c *gin.Context) {
	rec, err := h.Communications.GetChat(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.fail(c, "get_chat", err)
		return
	}
	c.JSON(http.StatusOK, rec)
}

func (h Handlers) ListChats(c *gin.Context) {
	f, ok := h.filter(c, "list_chats")
	if !ok {
		return
	}
	rows, err := h.Communications.ListChats(c.Request.Context(), f)
	if err != nil {
		h.fail(c, "list_chats", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": rows})
}

func (h Handlers) AddChatMessage(c *gin.Context) {
	body, ok := h.body(c)
	if !ok {
		return
	}
	in, err := communications.DecodeAddChatMessage(body)
	if err == nil {
		var msg communications.ChatMessage
		if msg, err = h.Communications.AddChatMessage(c.Request.Context(), c.Param("id"), in); err == nil {
			h.Metrics.Created("chat_message", "api")
			c.JSON(http.StatusCreated, msg)
			return
		}
	}
	h.fail(c, "add_chat_message", err)
}

func (h Handlers) ListChatMessages(c *gin.Context) {
	rows, err := h.Communications.ListChatMessages(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.fail(c, "list_chat_messages", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": rows})
}

// --- Unified inbox ---

// ListCommunications answers one aggregated inbox page. Failed sources do not
// fail the request; they show up as "failed" in sources.
func (h Handlers) ListCommunications(c *gin.Context) {
	f, ok := h.filter(c, "list_communications")
	if !ok {
		return
	}
	res, ok := h.load(c, "list_communications", f)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"data":    res.Items,
		"sources": sourceStatuses(res),
		"limit":   res.Limit,
		"offset":  res.Offset,
	})
}

// Summary reports over every communication matching the filter; limit and
// offset are ignored.
func (h Handlers) Summary(c *gin.Context) {
	f, ok := h.filter(c, "summary")
	if !ok {
		return
	}
	f.Limit, f.Offset = 0, 0
	res, ok := h.load(c, "summary", f)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"summary": reporting.Summarize(res.Items),
		"sources": sourceStatuses(res),
	})
}

// Export streams the filtered inbox as an XLSX workbook.
func (h Handlers) Export(c *gin.Context) {
	f, ok := h.filter(c, "export")
	if !ok {
		return
	}
	f.Limit, f.Offset = 0, 0
	res, ok := h.load(c, "export", f)
	if !ok {
		return
	}
	if res.Degraded() {
		// a partial export looks complete once downloaded
		c.AbortWithStatusJSON(http.StatusBadGateway, gin.H{"error": "source unavailable", "sources": sourceStatuses(res)})
		return
	}
	var buf bytes.Buffer
	if err := reporting.WriteXLSX(&buf, res.Items); err != nil {
		h.fail(c, "export", err)
		return
	}
	c.Header("Content-Disposition", `attachment; filename="communications.xlsx"`)
	c.Data(http.StatusOK, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", buf.Bytes())
}

func (h Handlers) load(c *gin.Context, op string, f communications.CommunicationsFilter) (inbox.Result, bool) {
	ctx := c.Request.Context()
	operator, _ := auth.FromContext(ctx)
	release, err := h.Limiter.Acquire(ctx, operator.UserID)
	if err != nil {
		if errors.Is(err, inbox.ErrBusy) {
			h.Metrics.InboxBusy()
		}
		h.fail(c, op, err)
		return inbox.Result{}, false
	}
	defer release()

	res, err := h.Inbox.Load(ctx, f, nil)
	if err != nil {
		h.fail(c, op, err)
		return inbox.Result{}, false
	}
	return res, true
}

func sourceStatuses(res inbox.Result) map[inbox.SourceName]inbox.Status {
	out := make(map[inbox.SourceName]inbox.Status, len(res.Sources))
	for name, st := range res.Sources {
		out[name] = st.Status
	}
	return out
}

// --- Audit trail ---

// AuditTrail lists the audit events of one call, email or chat. The record
// must exist, so a trail never confirms ids that were never written.
func (h Handlers) AuditTrail(kind communications.Kind) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		id := c.Param("id")

		var err error
		switch kind {
		case communications.KindCall:
			_, err = h.Communications.GetCall(ctx, id)
		case communications.KindEmail:
			_, err = h.Communications.GetEmail(ctx, id)
		case communications.KindChat:
			_, err = h.Communications.GetChat(ctx, id)
		}
		if err != nil {
			h.fail(c, "audit_trail", err)
			return
		}

		events, err := h.Audit.Trail(ctx, string(kind), id)
		if err != nil {
			h.fail(c, "audit_trail", err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"data": events})
	}
}

// --- helpers ---

func (h Handlers) body(c *gin.Context) ([]byte, bool) {
	body, err := c.GetRawData()
	if err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "unreadable body"})
		return nil, false
	}
	return body, true
}

func (h Handlers) filter(c *gin.Context, op string) (communications.CommunicationsFilter, bool) {
	f, err := communications.ValidateCommunicationsFilter(communications.FilterInputFromQuery(c.Request.URL.Query()))
	if err != nil {
		h.fail(c, op, err)
		return communications.CommunicationsFilter{}, false
	}
	return f, true
}

// fail maps domain errors to status codes. Anything unexpected is logged and
// reported as 500 without detail.
func (h Handlers) fail(c *gin.Context, op string, err error) {
	var (
		ve  *communications.ValidationError
		nf  *communications.NotFoundError
		sfe *communications.SourceFetchError
	)
	switch {
	case errors.As(err, &ve):
		h.Metrics.ValidationFailed(op)
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "validation failed", "fields": ve.Fields})
	case errors.As(err, &nf):
		c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "not found", "entity": nf.Entity, "id": nf.ID})
	case errors.Is(err, inbox.ErrBusy):
		c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "too many concurrent inbox loads"})
	case errors.As(err, &sfe):
		logger.FromGin(c).Warn("source unavailable", "op", op, "source", sfe.Source, "err", err)
		c.AbortWithStatusJSON(http.StatusBadGateway, gin.H{"error": "source unavailable"})
	case errors.Is(err, context.Canceled):
		c.Abort()
	default:
		logger.FromGin(c).Error("request failed", "op", op, "err", err)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}
