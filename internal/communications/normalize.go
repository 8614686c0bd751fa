package communications

import (
	"encoding/json"
	"fmt"
	"time"
)

// Kind tags a unified communication with its source record type.
type Kind string

const (
	KindCall  Kind = "call"
	KindEmail Kind = "email"
	KindChat  Kind = "chat"
)

// Record is implemented only by CallRecord, EmailRecord and ChatRecord.
type Record interface {
	Kind() Kind
	RecordID() string
	Created() time.Time
	isRecord()
}

func (CallRecord) Kind() Kind           { return KindCall }
func (r CallRecord) RecordID() string   { return r.ID }
func (r CallRecord) Created() time.Time { return r.CreatedAt }
func (CallRecord) isRecord()            {}

func (EmailRecord) Kind() Kind           { return KindEmail }
func (r EmailRecord) RecordID() string   { return r.ID }
func (r EmailRecord) Created() time.Time { return r.CreatedAt }
func (EmailRecord) isRecord()            {}

func (ChatRecord) Kind() Kind           { return KindChat }
func (r ChatRecord) RecordID() string   { return r.ID }
func (r ChatRecord) Created() time.Time { return r.CreatedAt }
func (ChatRecord) isRecord()            {}

// UnifiedCommunication is the inbox projection of one call, email or chat.
// It is rebuilt on every aggregation and never persisted.
type UnifiedCommunication struct {
	ID          string
	Type        Kind
	Timestamp   time.Time
	Direction   *Direction // nil for chats
	ContactName string
	Detail      Record
}

// Call returns the detail as a call record.
func (u UnifiedCommunication) Call() (CallRecord, bool) {
	r, ok := u.Detail.(CallRecord)
	return r, ok
}

func (u UnifiedCommunication) Email() (EmailRecord, bool) {
	r, ok := u.Detail.(EmailRecord)
	return r, ok
}

func (u UnifiedCommunication) Chat() (ChatRecord, bool) {
	r, ok := u.Detail.(ChatRecord)
	return r, ok
}

type unifiedJSON struct {
	ID          string     `json:"id"`
	Type        Kind       `json:"type"`
	Timestamp   time.Time  `json:"timestamp"`
	Direction   *Direction `json:"direction,omitempty"`
	ContactName string     `json:"contactName,omitempty"`
	Detail      Record     `json:"detail"`
}

func (u UnifiedCommunication) MarshalJSON() ([]byte, error) {
	return json.Marshal(unifiedJSON(u))
}

func (u *UnifiedCommunication) UnmarshalJSON(data []byte) error {
	var raw struct {
		Type   Kind            `json:"type"`
		Detail json.RawMessage `json:"detail"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	var rec Record
	switch raw.Type {
	case KindCall:
		var r CallRecord
		if err := json.Unmarshal(raw.Detail, &r); err != nil {
			return err
		}
		rec = r
	case KindEmail:
		var r EmailRecord
		if err := json.Unmarshal(raw.Detail, &r); err != nil {
			return err
		}
		rec = r
	case KindChat:
		var r ChatRecord
		if err := json.Unmarshal(raw.Detail, &r); err != nil {
			return err
		}
		rec = r
	default:
		return fmt.Errorf("communications: unknown communication type %q", raw.Type)
	}
	*u = Normalize(rec)
	return nil
}

// Normalize projects a record into the unified shape, keeping the record as Detail.
func Normalize(rec Record) UnifiedCommunication {
	switch r := rec.(type) {
	case CallRecord:
		return NormalizeCall(r)
	case EmailRecord:
		return NormalizeEmail(r)
	case ChatRecord:
		return NormalizeChat(r)
	default:
		panic(fmt.Sprintf("communications: unsupported record %T", rec))
	}
}

func NormalizeCall(r CallRecord) UnifiedCommunication {
	dir := r.Direction
	return UnifiedCommunication{
		ID:          r.ID,
		Type:        KindCall,
		Timestamp:   r.CreatedAt,
		Direction:   &dir,
		ContactName: r.ContactName,
		Detail:      r,
	}
}

func NormalizeEmail(r EmailRecord) UnifiedCommunication {
	dir := r.Direction
	return UnifiedCommunication{
		ID:          r.ID,
		Type:        KindEmail,
		Timestamp:   r.CreatedAt,
		Direction:   &dir,
		ContactName: r.ContactName,
		Detail:      r,
	}
}

func NormalizeChat(r ChatRecord) UnifiedCommunication {
	return UnifiedCommunication{
		ID:          r.ID,
		Type:        KindChat,
		Timestamp:   r.CreatedAt,
		ContactName: r.ContactName,
		Detail:      r,
	}
}
