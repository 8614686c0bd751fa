package audit

import "time"

// Event records one write against a communication record. Events are
// append-only: nothing updates or deletes them.
type Event struct {
	ID   string    `json:"id" db:"id"`
	Type EventType `json:"type" db:"type"`

	// Actor fields are best-effort. Webhook writes carry only a role.
	ActorUserID string `json:"actorUserId,omitempty" db:"actor_user_id"`
	ActorRole   string `json:"actorRole,omitempty" db:"actor_role"`
	IPAddress   string `json:"ipAddress,omitempty" db:"ip_address"`

	// EntityType is call, email or chat. Chat messages are audited on their chat.
	EntityType string `json:"entityType" db:"entity_type"`
	EntityID   string `json:"entityId" db:"entity_id"`

	Message string `json:"message,omitempty" db:"message"`
	// Metadata is a JSON object, e.g. the changed fields of an update.
	Metadata string `json:"metadata,omitempty" db:"metadata"`

	CreatedAt time.Time `json:"createdAt" db:"created_at"`
}

type EventType string

const (
	EventTypeCreated EventType = "communication_created"
	EventTypeUpdated EventType = "communication_updated"
	EventTypeMessage EventType = "chat_message_added"
)

// Actor identifies who performed a write.
type Actor struct {
	UserID string
	Role   string
	IP     string
}
