package communications

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/url"
	"reflect"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

const (
	DefaultPageLimit = 20
	MaxPageLimit     = 100
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	// Report wire names ("phoneNumber") instead of Go names ("PhoneNumber").
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		return jsonName(fld)
	})
	if err := v.RegisterValidation("rfc3339", func(fl validator.FieldLevel) bool {
		_, err := time.Parse(time.RFC3339, fl.Field().String())
		return err == nil
	}); err != nil {
		panic(err)
	}
	return v
}

// --- Calls ---

type CreateCallInput struct {
	ContactID *string `json:"contactId" validate:"omitempty,uuid"`
	AccountID *string `json:"accountId" validate:"omitempty,uuid"`
	CaseID    *string `json:"caseId" validate:"omitempty,uuid"`

	Direction   Direction   `json:"direction" validate:"required,oneof=inbound outbound"`
	PhoneNumber string      `json:"phoneNumber" validate:"required,max=20"`
	Duration    *int        `json:"duration" validate:"required,min=0"`
	Outcome     CallOutcome `json:"outcome" validate:"required,oneof=answered no_answer voicemail busy failed resolved escalated"`

	Notes          *string    `json:"notes"`
	RecordingURL   *string    `json:"recordingUrl" validate:"omitempty,url"`
	ExternalCallID *string    `json:"externalCallId" validate:"omitempty,max=255"`
	Sentiment      *Sentiment `json:"sentiment" validate:"omitempty,oneof=positive neutral negative"`
}

type UpdateCallInput struct {
	ContactID *string `json:"contactId" validate:"omitempty,uuid"`
	AccountID *string `json:"accountId" validate:"omitempty,uuid"`
	CaseID    *string `json:"caseId" validate:"omitempty,uuid"`

	Direction   *Direction   `json:"direction" validate:"omitempty,oneof=inbound outbound"`
	PhoneNumber *string      `json:"phoneNumber" validate:"omitempty,max=20"`
	Duration    *int         `json:"duration" validate:"omitempty,min=0"`
	Outcome     *CallOutcome `json:"outcome" validate:"omitempty,oneof=answered no_answer voicemail busy failed resolved escalated"`

	Notes          *string    `json:"notes"`
	RecordingURL   *string    `json:"recordingUrl" validate:"omitempty,url"`
	ExternalCallID *string    `json:"externalCallId" validate:"omitempty,max=255"`
	Sentiment      *Sentiment `json:"sentiment" validate:"omitempty,oneof=positive neutral negative"`
}

// IsEmpty reports a no-op update.
func (in UpdateCallInput) IsEmpty() bool {
	return reflect.ValueOf(in).IsZero()
}

func ValidateCreateCall(in CreateCallInput) (CreateCallInput, error) {
	if err := check(in); err != nil {
		return CreateCallInput{}, err
	}
	return in, nil
}

func ValidateUpdateCall(in UpdateCallInput) (UpdateCallInput, error) {
	if err := check(in); err != nil {
		return UpdateCallInput{}, err
	}
	return in, nil
}

// --- Emails ---

type AttachmentInput struct {
	Filename string `json:"filename" validate:"required,max=255"`
	URL      string `json:"url" validate:"required,url"`
	Size     *int64 `json:"size" validate:"required,min=0"`
	MimeType string `json:"mimeType" validate:"required"`
}

type CreateEmailInput struct {
	ContactID *string `json:"contactId" validate:"omitempty,uuid"`
	AccountID *string `json:"accountId" validate:"omitempty,uuid"`
	CaseID    *string `json:"caseId" validate:"omitempty,uuid"`

	Direction Direction `json:"direction" validate:"required,oneof=inbound outbound"`
	From      string    `json:"from" validate:"required,email"`
	To        string    `json:"to" validate:"required,email"`
	CC        []string  `json:"cc" validate:"omitempty,dive,email"`

	Subject     string            `json:"subject" validate:"required,max=255"`
	Body        string            `json:"body" validate:"required"`
	HTMLBody    *string           `json:"htmlBody"`
	Attachments []AttachmentInput `json:"attachments" validate:"omitempty,dive"`

	SentAt      *string    `json:"sentAt" validate:"omitempty,rfc3339"`
	DeliveredAt *string    `json:"deliveredAt" validate:"omitempty,rfc3339"`
	OpenedAt    *string    `json:"openedAt" validate:"omitempty,rfc3339"`
	Sentiment   *Sentiment `json:"sentiment" validate:"omitempty,oneof=positive neutral negative"`
}

type UpdateEmailInput struct {
	ContactID *string `json:"contactId" validate:"omitempty,uuid"`
	AccountID *string `json:"accountId" validate:"omitempty,uuid"`
	CaseID    *string `json:"caseId" validate:"omitempty,uuid"`

	Direction *Direction `json:"direction" validate:"omitempty,oneof=inbound outbound"`
	From      *string    `json:"from" validate:"omitempty,email"`
	To        *string    `json:"to" validate:"omitempty,email"`
	CC        []string   `json:"cc" validate:"omitempty,dive,email"`

	Subject     *string           `json:"subject" validate:"omitempty,max=255"`
	Body        *string           `json:"body" validate:"omitempty,min=1"`
	HTMLBody    *string           `json:"htmlBody"`
	Attachments []AttachmentInput `json:"attachments" validate:"omitempty,dive"`

	SentAt      *string    `json:"sentAt" validate:"omitempty,rfc3339"`
	DeliveredAt *string    `json:"deliveredAt" validate:"omitempty,rfc3339"`
	OpenedAt    *string    `json:"openedAt" validate:"omitempty,rfc3339"`
	Sentiment   *Sentiment `json:"sentiment" validate:"omitempty,oneof=positive neutral negative"`
}

func (in UpdateEmailInput) IsEmpty() bool {
	return reflect.ValueOf(in).IsZero()
}

func ValidateCreateEmail(in CreateEmailInput) (CreateEmailInput, error) {
	if err := check(in); err != nil {
		return CreateEmailInput{}, err
	}
	return in, nil
}

func ValidateUpdateEmail(in UpdateEmailInput) (UpdateEmailInput, error) {
	if err := check(in); err != nil {
		return UpdateEmailInput{}, err
	}
	return in, nil
}

// --- Chats ---

type CreateChatInput struct {
	ContactID string  `json:"contactId" validate:"required,uuid"`
	AccountID *string `json:"accountId" validate:"omitempty,uuid"`
	CaseID    *string `json:"caseId" validate:"omitempty,uuid"`

	Channel ChatChannel `json:"channel" validate:"omitempty,oneof=whatsapp messenger webchat instagram"`
	Status  ChatStatus  `json:"status" validate:"omitempty,oneof=active waiting closed"`
}

type AddChatMessageInput struct {
	Sender      MessageSender  `json:"sender" validate:"required,oneof=agent contact bot"`
	Message     string         `json:"message" validate:"required"`
	MessageType MessageType    `json:"messageType" validate:"omitempty,oneof=text image file carousel"`
	Metadata    map[string]any `json:"metadata"`
}

// ValidateCreateChat applies channel=webchat and status=active when absent.
func ValidateCreateChat(in CreateChatInput) (CreateChatInput, error) {
	if err := check(in); err != nil {
		return CreateChatInput{}, err
	}
	if in.Channel == "" {
		in.Channel = ChatChannelWebchat
	}
	if in.Status == "" {
		in.Status = ChatStatusActive
	}
	return in, nil
}

// ValidateAddChatMessage applies messageType=text when absent.
func ValidateAddChatMessage(in AddChatMessageInput) (AddChatMessageInput, error) {
	if err := check(in); err != nil {
		return AddChatMessageInput{}, err
	}
	if in.MessageType == "" {
		in.MessageType = MessageTypeText
	}
	return in, nil
}

// --- Query filter ---

// Channel is the query-side name of a communication medium.
type Channel string

const (
	ChannelPhone Channel = "phone"
	ChannelEmail Channel = "email"
	ChannelChat  Channel = "chat"
)

// Kind maps a query channel to the unified record type. Empty means all.
func (c Channel) Kind() Kind {
	switch c {
	case ChannelPhone:
		return KindCall
	case ChannelEmail:
		return KindEmail
	case ChannelChat:
		return KindChat
	default:
		return ""
	}
}

// CommunicationsFilterInput carries the raw (string) query parameters.
type CommunicationsFilterInput struct {
	ContactID string
	AccountID string
	CaseID    string
	Channel   string
	StartDate string
	EndDate   string
	Limit     string
	Offset    string
}

// FilterInputFromQuery reads the filter parameters from a URL query.
func FilterInputFromQuery(q url.Values) CommunicationsFilterInput {
	return CommunicationsFilterInput{
		ContactID: q.Get("contactId"),
		AccountID: q.Get("accountId"),
		CaseID:    q.Get("caseId"),
		Channel:   q.Get("channel"),
		StartDate: q.Get("startDate"),
		EndDate:   q.Get("endDate"),
		Limit:     q.Get("limit"),
		Offset:    q.Get("offset"),
	}
}

// CommunicationsFilter is a validated, typed query.
type CommunicationsFilter struct {
	ContactID *string
	AccountID *string
	CaseID    *string
	Channel   Channel
	StartDate *time.Time
	EndDate   *time.Time
	Limit     int
	Offset    int
}

// Query renders the filter back to URL parameters.
func (f CommunicationsFilter) Query() url.Values {
	q := url.Values{}
	setIf := func(k string, v *string) {
		if v != nil && *v != "" {
			q.Set(k, *v)
		}
	}
	setIf("contactId", f.ContactID)
	setIf("accountId", f.AccountID)
	setIf("caseId", f.CaseID)
	if f.Channel != "" {
		q.Set("channel", string(f.Channel))
	}
	if f.StartDate != nil {
		q.Set("startDate", f.StartDate.UTC().Format(time.RFC3339))
	}
	if f.EndDate != nil {
		q.Set("endDate", f.EndDate.UTC().Format(time.RFC3339))
	}
	if f.Limit > 0 {
		q.Set("limit", strconv.Itoa(f.Limit))
	}
	if f.Offset > 0 {
		q.Set("offset", strconv.Itoa(f.Offset))
	}
	return q
}

// Matches reports whether the record links and creation time satisfy the filter.
// Limit, offset and channel are not considered.
func (f CommunicationsFilter) Matches(contactID, accountID, caseID *string, createdAt time.Time) bool {
	if !matchID(f.ContactID, contactID) || !matchID(f.AccountID, accountID) || !matchID(f.CaseID, caseID) {
		return false
	}
	if f.StartDate != nil && createdAt.Before(*f.StartDate) {
		return false
	}
	if f.EndDate != nil && createdAt.After(*f.EndDate) {
		return false
	}
	return true
}

func matchID(want, got *string) bool {
	if want == nil {
		return true
	}
	return got != nil && *got == *want
}

type filterCheck struct {
	ContactID string `json:"contactId" validate:"omitempty,uuid"`
	AccountID string `json:"accountId" validate:"omitempty,uuid"`
	CaseID    string `json:"caseId" validate:"omitempty,uuid"`
	Channel   string `json:"channel" validate:"omitempty,oneof=phone email chat"`
	StartDate string `json:"startDate" validate:"omitempty,rfc3339"`
	EndDate   string `json:"endDate" validate:"omitempty,rfc3339"`
	Limit     int    `json:"limit" validate:"min=1,max=100"`
	Offset    int    `json:"offset" validate:"min=0"`
}

// ValidateCommunicationsFilter coerces limit/offset to integers (defaults 20/0),
// enforces limit in [1,100] and offset >= 0, and checks ids, channel and dates.
func ValidateCommunicationsFilter(in CommunicationsFilterInput) (CommunicationsFilter, error) {
	ve := &ValidationError{}
	fc := filterCheck{
		ContactID: strings.TrimSpace(in.ContactID),
		AccountID: strings.TrimSpace(in.AccountID),
		CaseID:    strings.TrimSpace(in.CaseID),
		Channel:   strings.TrimSpace(in.Channel),
		StartDate: strings.TrimSpace(in.StartDate),
		EndDate:   strings.TrimSpace(in.EndDate),
		Limit:     DefaultPageLimit,
	}
	if n, ok := coerceInt(ve, "limit", in.Limit); ok {
		fc.Limit = n
	}
	if n, ok := coerceInt(ve, "offset", in.Offset); ok {
		fc.Offset = n
	}
	if err := validate.Struct(fc); err != nil {
		collect(ve, err)
	}

	out := CommunicationsFilter{
		ContactID: optional(fc.ContactID),
		AccountID: optional(fc.AccountID),
		CaseID:    optional(fc.CaseID),
		Channel:   Channel(fc.Channel),
		Limit:     fc.Limit,
		Offset:    fc.Offset,
	}
	if !ve.Has("startDate") && fc.StartDate != "" {
		t, _ := time.Parse(time.RFC3339, fc.StartDate)
		out.StartDate = &t
	}
	if !ve.Has("endDate") && fc.EndDate != "" {
		t, _ := time.Parse(time.RFC3339, fc.EndDate)
		out.EndDate = &t
	}
	if out.StartDate != nil && out.EndDate != nil && out.EndDate.Before(*out.StartDate) {
		ve.add("endDate", "gtefield", "must not be before startDate")
	}

	if err := ve.orNil(); err != nil {
		return CommunicationsFilter{}, err
	}
	return out, nil
}

func coerceInt(ve *ValidationError, field, raw string) (int, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, false
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		ve.add(field, "type", "must be an integer")
		return 0, false
	}
	return n, true
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// --- JSON decoding ---

// DecodeCreateCall decodes a request body. Wrong-typed values become field errors.
func DecodeCreateCall(body []byte) (CreateCallInput, error) {
	var in CreateCallInput
	return in, decodeJSON(body, &in)
}

func DecodeUpdateCall(body []byte) (UpdateCallInput, error) {
	var in UpdateCallInput
	return in, decodeJSON(body, &in)
}

func DecodeCreateEmail(body []byte) (CreateEmailInput, error) {
	var in CreateEmailInput
	return in, decodeJSON(body, &in)
}

func DecodeUpdateEmail(body []byte) (UpdateEmailInput, error) {
	var in UpdateEmailInput
	return in, decodeJSON(body, &in)
}

func DecodeCreateChat(body []byte) (CreateChatInput, error) {
	var in CreateChatInput
	return in, decodeJSON(body, &in)
}

func DecodeAddChatMessage(body []byte) (AddChatMessageInput, error) {
	var in AddChatMessageInput
	return in, decodeJSON(body, &in)
}

// decodeJSON fills dst from a JSON object body. Unknown keys are ignored.
// Every wrong-typed value is reported with its indexed path
// ("attachments[0].size"), together with the constraint violations of the
// fields that did decode, so a single response lists all problems.
func decodeJSON(body []byte, dst any) error {
	if len(bytes.TrimSpace(body)) == 0 {
		return nil
	}
	ve := &ValidationError{}
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(body, &obj); err != nil {
		ve.add("body", "json", "must be a valid JSON object")
		return ve
	}

	typeCheckObject(ve, "", obj, reflect.TypeOf(dst).Elem())
	if len(ve.Fields) == 0 {
		if err := json.Unmarshal(body, dst); err != nil {
			ve.add("body", "json", "must be a valid JSON object")
			return ve
		}
		return nil
	}

	// Best effort: json skips the wrong-typed values and fills the rest.
	_ = json.Unmarshal(body, dst)
	if err := validate.Struct(dst); err != nil {
		rest := &ValidationError{}
		collect(rest, err)
		typed := slices.Clone(ve.Fields)
		for _, f := range rest.Fields {
			if !underTypeError(typed, f.Field) {
				ve.Fields = append(ve.Fields, f)
			}
		}
	}
	return ve
}

func typeCheckObject(ve *ValidationError, prefix string, obj map[string]json.RawMessage, t reflect.Type) {
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		name := jsonName(f)
		if name == "" {
			continue
		}
		raw, ok := lookupKey(obj, name)
		if !ok {
			continue
		}
		path := name
		if prefix != "" {
			path = prefix + "." + name
		}
		typeCheck(ve, path, raw, f.Type)
	}
}

func typeCheck(ve *ValidationError, path string, raw json.RawMessage, t reflect.Type) {
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if string(bytes.TrimSpace(raw)) == "null" {
		return
	}
	switch t.Kind() {
	case reflect.Struct:
		var obj map[string]json.RawMessage
		if err := json.Unmarshal(raw, &obj); err != nil {
			ve.add(path, "type", typeMessage(t))
			return
		}
		typeCheckObject(ve, path, obj, t)
	case reflect.Slice:
		var items []json.RawMessage
		if err := json.Unmarshal(raw, &items); err != nil {
			ve.add(path, "type", typeMessage(t))
			return
		}
		for i, item := range items {
			typeCheck(ve, path+"["+strconv.Itoa(i)+"]", item, t.Elem())
		}
	default:
		if err := json.Unmarshal(raw, reflect.New(t).Interface()); err != nil {
			ve.add(path, "type", typeMessage(t))
		}
	}
}

// lookupKey matches keys the way encoding/json does: exact first, then case-insensitive.
func lookupKey(obj map[string]json.RawMessage, name string) (json.RawMessage, bool) {
	if raw, ok := obj[name]; ok {
		return raw, true
	}
	for k, raw := range obj {
		if strings.EqualFold(k, name) {
			return raw, true
		}
	}
	return nil, false
}

func jsonName(f reflect.StructField) string {
	if !f.IsExported() {
		return ""
	}
	name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
	switch name {
	case "-":
		return ""
	case "":
		return f.Name
	}
	return name
}

// underTypeError reports whether field is, or sits below, a wrong-typed value.
func underTypeError(typed []FieldError, field string) bool {
	for _, te := range typed {
		if field == te.Field || strings.HasPrefix(field, te.Field+".") || strings.HasPrefix(field, te.Field+"[") {
			return true
		}
	}
	return false
}

func typeMessage(t reflect.Type) string {
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	switch t.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return "must be an integer"
	case reflect.String:
		return "must be a string"
	case reflect.Slice, reflect.Array:
		return "must be an array"
	case reflect.Map, reflect.Struct:
		return "must be an object"
	default:
		return "has the wrong type"
	}
}

// --- validator glue ---

func check(in any) error {
	err := validate.Struct(in)
	if err == nil {
		return nil
	}
	ve := &ValidationError{}
	collect(ve, err)
	return ve.orNil()
}

func collect(ve *ValidationError, err error) {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		// InvalidValidationError: a non-struct was passed, which is a programming error.
		panic(err)
	}
	for _, fe := range verrs {
		ve.add(fieldPath(fe.Namespace()), fe.Tag(), fieldMessage(fe))
	}
}

// fieldPath drops the Go type prefix: "CreateEmailInput.attachments[0].size" -> "attachments[0].size".
func fieldPath(ns string) string {
	if i := strings.IndexByte(ns, '.'); i >= 0 {
		return ns[i+1:]
	}
	return ns
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "oneof":
		return "must be one of " + strings.ReplaceAll(fe.Param(), " ", ", ")
	case "max":
		if fe.Kind() == reflect.String {
			return "must be at most " + fe.Param() + " characters"
		}
		return "must be at most " + fe.Param()
	case "min":
		if fe.Kind() == reflect.String {
			return "must not be empty"
		}
		return "must be at least " + fe.Param()
	case "email":
		return "must be a valid email address"
	case "uuid":
		return "must be a valid UUID"
	case "url":
		return "must be a valid URL"
	case "rfc3339":
		return "must be an RFC 3339 date-time"
	default:
		return "failed " + fe.Tag() + " check"
	}
}
