package communications

import "time"

// CallRecord is a logged phone call with a customer.
//
// Contact/account/case links are optional foreign identifiers (UUID strings).
// ContactName is display-only; repositories fill it from the contacts table.
type CallRecord struct {
	ID        string  `json:"id" db:"id"`
	ContactID *string `json:"contactId,omitempty" db:"contact_id"`
	AccountID *string `json:"accountId,omitempty" db:"account_id"`
	CaseID    *string `json:"caseId,omitempty" db:"case_id"`

	Direction   Direction   `json:"direction" db:"direction"`
	PhoneNumber string      `json:"phoneNumber" db:"phone_number"`
	Duration    int         `json:"duration" db:"duration"` // seconds
	Outcome     CallOutcome `json:"outcome" db:"outcome"`

	Notes          *string    `json:"notes,omitempty" db:"notes"`
	RecordingURL   *string    `json:"recordingUrl,omitempty" db:"recording_url"`
	ExternalCallID *string    `json:"externalCallId,omitempty" db:"external_call_id"`
	Sentiment      *Sentiment `json:"sentiment,omitempty" db:"sentiment"`

	ContactName string    `json:"contactName,omitempty" db:"-"`
	CreatedAt   time.Time `json:"createdAt" db:"created_at"`
}

// EmailRecord is an inbound or outbound email tied to a customer.
type EmailRecord struct {
	ID        string  `json:"id" db:"id"`
	ContactID *string `json:"contactId,omitempty" db:"contact_id"`
	AccountID *string `json:"accountId,omitempty" db:"account_id"`
	CaseID    *string `json:"caseId,omitempty" db:"case_id"`

	Direction Direction `json:"direction" db:"direction"`
	From      string    `json:"from" db:"from_address"`
	To        string    `json:"to" db:"to_address"`
	CC        []string  `json:"cc,omitempty" db:"cc_addresses"`

	Subject  string  `json:"subject" db:"subject"`
	Body     string  `json:"body" db:"body"`
	HTMLBody *string `json:"htmlBody,omitempty" db:"html_body"`

	// Attachments keep the order they were submitted in.
	Attachments []Attachment `json:"attachments,omitempty" db:"attachments"`

	SentAt      *time.Time `json:"sentAt,omitempty" db:"sent_at"`
	DeliveredAt *time.Time `json:"deliveredAt,omitempty" db:"delivered_at"`
	OpenedAt    *time.Time `json:"openedAt,omitempty" db:"opened_at"`
	Sentiment   *Sentiment `json:"sentiment,omitempty" db:"sentiment"`

	ContactName string    `json:"contactName,omitempty" db:"-"`
	CreatedAt   time.Time `json:"createdAt" db:"created_at"`
}

type Attachment struct {
	Filename string `json:"filename"`
	URL      string `json:"url"`
	Size     int64  `json:"size"` // bytes
	MimeType string `json:"mimeType"`
}

// ChatRecord is a conversation on a messaging channel. A chat owns its
// messages; deleting the chat deletes them.
type ChatRecord struct {
	ID        string  `json:"id" db:"id"`
	ContactID string  `json:"contactId" db:"contact_id"`
	AccountID *string `json:"accountId,omitempty" db:"account_id"`
	CaseID    *string `json:"caseId,omitempty" db:"case_id"`

	Channel ChatChannel `json:"channel" db:"channel"`
	Status  ChatStatus  `json:"status" db:"status"`

	ContactName string    `json:"contactName,omitempty" db:"-"`
	CreatedAt   time.Time `json:"createdAt" db:"created_at"`
}

type ChatMessage struct {
	ID          string         `json:"id" db:"id"`
	ChatID      string         `json:"chatId" db:"chat_id"`
	Sender      MessageSender  `json:"sender" db:"sender"`
	Message     string         `json:"message" db:"message"`
	MessageType MessageType    `json:"messageType" db:"message_type"`
	Metadata    map[string]any `json:"metadata,omitempty" db:"metadata"`
	CreatedAt   time.Time      `json:"createdAt" db:"created_at"`
}

type Direction string

const (
	DirectionInbound  Direction = "inbound"
	DirectionOutbound Direction = "outbound"
)

type CallOutcome string

const (
	CallOutcomeAnswered  CallOutcome = "answered"
	CallOutcomeNoAnswer  CallOutcome = "no_answer"
	CallOutcomeVoicemail CallOutcome = "voicemail"
	CallOutcomeBusy      CallOutcome = "busy"
	CallOutcomeFailed    CallOutcome = "failed"
	CallOutcomeResolved  CallOutcome = "resolved"
	CallOutcomeEscalated CallOutcome = "escalated"
)

// CallOutcomes lists every outcome in display order.
var CallOutcomes = []CallOutcome{
	CallOutcomeAnswered,
	CallOutcomeNoAnswer,
	CallOutcomeVoicemail,
	CallOutcomeBusy,
	CallOutcomeFailed,
	CallOutcomeResolved,
	CallOutcomeEscalated,
}

type Sentiment string

const (
	SentimentPositive Sentiment = "positive"
	SentimentNeutral  Sentiment = "neutral"
	SentimentNegative Sentiment = "negative"
)

type ChatChannel string

const (
	ChatChannelWhatsApp  ChatChannel = "whatsapp"
	ChatChannelMessenger ChatChannel = "messenger"
	ChatChannelWebchat   ChatChannel = "webchat"
	ChatChannelInstagram ChatChannel = "instagram"
)

type ChatStatus string

const (
	ChatStatusActive  ChatStatus = "active"
	ChatStatusWaiting ChatStatus = "waiting"
	ChatStatusClosed  ChatStatus = "closed"
)

type MessageSender string

const (
	SenderAgent   MessageSender = "agent"
	SenderContact MessageSender = "contact"
	SenderBot     MessageSender = "bot"
)

type MessageType string

const (
	MessageTypeText     MessageType = "text"
	MessageTypeImage    MessageType = "image"
	MessageTypeFile     MessageType = "file"
	MessageTypeCarousel MessageType = "carousel"
)
