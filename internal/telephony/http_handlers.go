package telephony

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"crm-platform/internal/audit"
	"crm-platform/internal/communications"
	"crm-platform/internal/observability"
	"crm-platform/pkg/logger"

	"github.com/gin-gonic/gin"
)

// CallCreator persists call records. *communications.Service implements it.
type CallCreator interface {
	CreateCall(ctx context.Context, in communications.CreateCallInput) (communications.CallRecord, error)
}

// TwilioStatusHandler turns finished Twilio calls into call records.
//
// No business logic here: parse, verify, map, delegate.
type TwilioStatusHandler struct {
	Calls   CallCreator
	Metrics *observability.Metrics

	// AuthToken enables X-Twilio-Signature verification when set.
	AuthToken string
	// PublicBaseURL is the scheme+host Twilio was configured with. Empty means
	// derive it from the request.
	PublicBaseURL string
}

func (h TwilioStatusHandler) HandleStatusCallback(c *gin.Context) {
	log := logger.FromGin(c)

	if h.Calls == nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "call service not configured"})
		return
	}

	form, err := ParseTwilioStatusCallback(c.Request)
	if err != nil {
		log.Warn("twilio webhook parse failed", "err", err)
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid form"})
		return
	}

	if h.AuthToken != "" {
		if !validTwilioSignature(h.AuthToken, h.fullURL(c), c.Request.PostForm, c.GetHeader(headerTwilioSignature)) {
			log.Warn("twilio signature rejected", "call_sid", form.CallSid)
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "invalid signature"})
			return
		}
	}

	in, err := form.ToCreateCallInput()
	if errors.Is(err, ErrNotTerminal) {
		c.Status(http.StatusNoContent)
		return
	}
	if err != nil {
		log.Warn("twilio status mapping failed", "call_sid", form.CallSid, "err", err)
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ctx := audit.WithActor(c.Request.Context(), audit.Actor{Role: "telephony", IP: c.ClientIP()})
	rec, err := h.Calls.CreateCall(ctx, in)
	if err != nil {
		var ve *communications.ValidationError
		if errors.As(err, &ve) {
			h.Metrics.ValidationFailed("telephony_status")
			log.Warn("twilio call rejected", "call_sid", form.CallSid, "err", err)
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "validation failed", "fields": ve.Fields})
			return
		}
		log.Error("twilio call persist failed", "call_sid", form.CallSid, "err", err)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "persist failed"})
		return
	}
	h.Metrics.Created(string(communications.KindCall), "telephony")
	log.Info("call logged from twilio", "call_sid", form.CallSid, "call_id", rec.ID, "outcome", rec.Outcome)
	c.JSON(http.StatusCreated, rec)
}

func (h TwilioStatusHandler) fullURL(c *gin.Context) string {
	base := strings.TrimRight(h.PublicBaseURL, "/")
	if base == "" {
		scheme := "https"
		if c.Request.TLS == nil && c.GetHeader("X-Forwarded-Proto") != "https" {
			scheme = "http"
		}
		base = scheme + "://" + c.Request.Host
	}
	return base + c.Request.URL.RequestURI()
}
