package telephony

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"crm-platform/internal/communications"
)

var ErrNotTerminal = errors.New("telephony: call not finished")

// TwilioStatusForm captures the status callback fields we map onto a call record.
// Twilio sends application/x-www-form-urlencoded by default.
// Ref: https://www.twilio.com/docs/voice/api/call-resource#statuscallback
type TwilioStatusForm struct {
	CallSid      string
	AccountSid   string
	From         string
	To           string
	Direction    string // inbound, outbound-api, outbound-dial
	CallStatus   string
	CallDuration string // seconds, only on completed
	RecordingURL string
	AnsweredBy   string // set when answering machine detection is on
}

func ParseTwilioStatusCallback(r *http.Request) (TwilioStatusForm, error) {
	if err := r.ParseForm(); err != nil {
		return TwilioStatusForm{}, err
	}
	return TwilioStatusForm{
		CallSid:      r.PostFormValue("CallSid"),
		AccountSid:   r.PostFormValue("AccountSid"),
		From:         strings.TrimSpace(r.PostFormValue("From")),
		To:           strings.TrimSpace(r.PostFormValue("To")),
		Direction:    r.PostFormValue("Direction"),
		CallStatus:   r.PostFormValue("CallStatus"),
		CallDuration: r.PostFormValue("CallDuration"),
		RecordingURL: r.PostFormValue("RecordingUrl"),
		AnsweredBy:   r.PostFormValue("AnsweredBy"),
	}, nil
}

// Terminal reports whether Twilio will send no further status for the call.
func (f TwilioStatusForm) Terminal() bool {
	switch f.CallStatus {
	case "completed", "busy", "no-answer", "failed", "canceled":
		return true
	}
	return false
}

// ToCreateCallInput maps a finished call onto a call record payload. The
// phone number is the remote party: From for inbound calls, To otherwise.
func (f TwilioStatusForm) ToCreateCallInput() (communications.CreateCallInput, error) {
	if !f.Terminal() {
		return communications.CreateCallInput{}, ErrNotTerminal
	}

	in := communications.CreateCallInput{
		Direction:   communications.DirectionOutbound,
		PhoneNumber: f.To,
		Outcome:     f.outcome(),
	}
	if f.Direction == "inbound" {
		in.Direction = communications.DirectionInbound
		in.PhoneNumber = f.From
	}

	duration := 0
	if f.CallDuration != "" {
		n, err := strconv.Atoi(f.CallDuration)
		if err != nil || n < 0 {
			return communications.CreateCallInput{}, errors.New("telephony: invalid CallDuration")
		}
		duration = n
	}
	in.Duration = &duration

	if f.CallSid != "" {
		sid := f.CallSid
		in.ExternalCallID = &sid
	}
	if f.RecordingURL != "" {
		u := f.RecordingURL
		in.RecordingURL = &u
	}
	return in, nil
}

func (f TwilioStatusForm) outcome() communications.CallOutcome {
	switch f.CallStatus {
	case "completed":
		if strings.HasPrefix(f.AnsweredBy, "machine") {
			return communications.CallOutcomeVoicemail
		}
		return communications.CallOutcomeAnswered
	case "busy":
		return communications.CallOutcomeBusy
	case "failed":
		return communications.CallOutcomeFailed
	default: // no-answer, canceled
		return communications.CallOutcomeNoAnswer
	}
}
