package audit

import (
	"context"
	"database/sql"
	"fmt"
)

// PostgresRepo stores events in audit_events. The table is expected to
// grant INSERT and SELECT only.
type PostgresRepo struct {
	db *sql.DB
}

func NewPostgresRepo(db *sql.DB) *PostgresRepo { return &PostgresRepo{db: db} }

func (r *PostgresRepo) Append(ctx context.Context, e Event) error {
	const q = `
INSERT INTO audit_events (
  id, type, actor_user_id, actor_role, ip_address, entity_type, entity_id, message, metadata, created_at
) VALUES (
  $1,$2,NULLIF($3,''),NULLIF($4,''),NULLIF($5,''),$6,$7,NULLIF($8,''),NULLIF($9,'')::jsonb,$10
)`
	_, err := r.db.ExecContext(ctx, q,
		e.ID, e.Type, e.ActorUserID, e.ActorRole, e.IPAddress,
		e.EntityType, e.EntityID, e.Message, e.Metadata, e.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("append audit event: %w", err)
	}
	return nil
}

func (r *PostgresRepo) ListForEntity(ctx context.Context, entityType, entityID string) ([]Event, error) {
	const q = `
SELECT id, type, COALESCE(actor_user_id, ''), COALESCE(actor_role, ''), COALESCE(ip_address, ''),
       entity_type, entity_id, COALESCE(message, ''), COALESCE(metadata::text, ''), created_at
FROM audit_events
WHERE entity_type = $1 AND entity_id = $2
ORDER BY created_at, id`
	rows, err := r.db.QueryContext(ctx, q, entityType, entityID)
	if err != nil {
		return nil, fmt.Errorf("list audit events: %w", err)
	}
	defer rows.Close()

	var out []Event
	for rows.Next() {
		var e Event
		if err := rows.Scan(
			&e.ID, &e.Type, &e.ActorUserID, &e.ActorRole, &e.IPAddress,
			&e.EntityType, &e.EntityID, &e.Message, &e.Metadata, &e.CreatedAt,
		); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
