package communications

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"crm-platform/pkg/utils"
)

// NOTE: This repository assumes the following tables exist:
// - contacts (id, first_name, last_name)
// - calls, emails, chats (FKs to contacts/accounts/cases)
// - chat_messages (chat_id REFERENCES chats(id) ON DELETE CASCADE)
//
// emails.cc_addresses, emails.attachments and chat_messages.metadata are JSONB.

// PostgresRepo implements Repository on database/sql (pgx stdlib driver).
type PostgresRepo struct {
	db *sql.DB
}

func NewPostgresRepo(db *sql.DB) *PostgresRepo {
	return &PostgresRepo{db: db}
}

const contactNameExpr = `COALESCE(NULLIF(TRIM(COALESCE(ct.first_name, '') || ' ' || COALESCE(ct.last_name, '')), ''), '')`

// --- Calls ---

const callColumns = `c.id, c.contact_id, c.account_id, c.case_id, c.direction, c.phone_number, c.duration,
       c.outcome, c.notes, c.recording_url, c.external_call_id, c.sentiment, c.created_at, ` + contactNameExpr

func (r *PostgresRepo) InsertCall(ctx context.Context, c CallRecord) (CallRecord, error) {
	const q = `
INSERT INTO calls (
  id, contact_id, account_id, case_id, direction, phone_number, duration,
  outcome, notes, recording_url, external_call_id, sentiment, created_at
) VALUES (
  $1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13
)
`
	_, err := r.db.ExecContext(ctx, q,
		c.ID,
		c.ContactID,
		c.AccountID,
		c.CaseID,
		c.Direction,
		c.PhoneNumber,
		c.Duration,
		c.Outcome,
		c.Notes,
		c.RecordingURL,
		c.ExternalCallID,
		sentimentArg(c.Sentiment),
		c.CreatedAt,
	)
	if err != nil {
		return CallRecord{}, mapWriteErr(err)
	}
	return c, nil
}

func (r *PostgresRepo) UpdateCall(ctx context.Context, id string, fn func(*CallRecord) error) (CallRecord, error) {
	var out CallRecord
	err := utils.WithTx(ctx, r.db, &sql.TxOptions{}, func(ctx context.Context, tx *sql.Tx) error {
		q := `SELECT ` + callColumns + ` FROM calls c LEFT JOIN contacts ct ON ct.id = c.contact_id WHERE c.id = $1 FOR UPDATE OF c`
		cur, err := scanCall(tx.QueryRowContext(ctx, q, id))
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return &NotFoundError{Entity: "call", ID: id}
			}
			return err
		}
		if err := fn(&cur); err != nil {
			return err
		}
		const upd = `
UPDATE calls SET
  contact_id = $2, account_id = $3, case_id = $4, direction = $5, phone_number = $6,
  duration = $7, outcome = $8, notes = $9, recording_url = $10, external_call_id = $11, sentiment = $12
WHERE id = $1
`
		if _, err := tx.ExecContext(ctx, upd,
			cur.ID,
			cur.ContactID,
			cur.AccountID,
			cur.CaseID,
			cur.Direction,
			cur.PhoneNumber,
			cur.Duration,
			cur.Outcome,
			cur.Notes,
			cur.RecordingURL,
			cur.ExternalCallID,
			sentimentArg(cur.Sentiment),
		); err != nil {
			return mapWriteErr(err)
		}
		// Re-read so contact_name follows a changed contact_id.
		out, err = scanCall(tx.QueryRowContext(ctx, `SELECT `+callColumns+` FROM calls c LEFT JOIN contacts ct ON ct.id = c.contact_id WHERE c.id = $1`, id))
		return err
	})
	return out, err
}

func (r *PostgresRepo) GetCall(ctx context.Context, id string) (CallRecord, error) {
	q := `SELECT ` + callColumns + ` FROM calls c LEFT JOIN contacts ct ON ct.id = c.contact_id WHERE c.id = $1`
	c, err := scanCall(r.db.QueryRowContext(ctx, q, id))
	if errors.Is(err, sql.ErrNoRows) {
		return CallRecord{}, &NotFoundError{Entity: "call", ID: id}
	}
	return c, err
}

func (r *PostgresRepo) ListCalls(ctx context.Context, f CommunicationsFilter) ([]CallRecord, error) {
	where, args := filterClause(f, "c")
	q := `SELECT ` + callColumns + ` FROM calls c LEFT JOIN contacts ct ON ct.id = c.contact_id` + where + pageClause(f, "c", &args)
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]CallRecord, 0)
	for rows.Next() {
		c, err := scanCall(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// --- Emails ---

const emailColumns = `e.id, e.contact_id, e.account_id, e.case_id, e.direction, e.from_address, e.to_address,
       e.cc_addresses, e.subject, e.body, e.html_body, e.attachments, e.sent_at, e.delivered_at, e.opened_at,
       e.sentiment, e.created_at, ` + contactNameExpr

func (r *PostgresRepo) InsertEmail(ctx context.Context, e EmailRecord) (EmailRecord, error) {
	cc, atts, err := emailJSON(e)
	if err != nil {
		return EmailRecord{}, err
	}
	const q = `
INSERT INTO emails (
  id, contact_id, account_id, case_id, direction, from_address, to_address, cc_addresses,
  subject, body, html_body, attachments, sent_at, delivered_at, opened_at, sentiment, created_at
) VALUES (
  $1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17
)
`
	_, err = r.db.ExecContext(ctx, q,
		e.ID,
		e.ContactID,
		e.AccountID,
		e.CaseID,
		e.Direction,
		e.From,
		e.To,
		cc,
		e.Subject,
		e.Body,
		e.HTMLBody,
		atts,
		e.SentAt,
		e.DeliveredAt,
		e.OpenedAt,
		sentimentArg(e.Sentiment),
		e.CreatedAt,
	)
	if err != nil {
		return EmailRecord{}, mapWriteErr(err)
	}
	return e, nil
}

func (r *PostgresRepo) UpdateEmail(ctx context.Context, id string, fn func(*EmailRecord) error) (EmailRecord, error) {
	var out EmailRecord
	err := utils.WithTx(ctx, r.db, &sql.TxOptions{}, func(ctx context.Context, tx *sql.Tx) error {
		q := `SELECT ` + emailColumns + ` FROM emails e LEFT JOIN contacts ct ON ct.id = e.contact_id WHERE e.id = $1 FOR UPDATE OF e`
		cur, err := scanEmail(tx.QueryRowContext(ctx, q, id))
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return &NotFoundError{Entity: "email", ID: id}
			}
			return err
		}
		if err := fn(&cur); err != nil {
			return err
		}
		cc, atts, err := emailJSON(cur)
		if err != nil {
			return err
		}
		const upd = `
UPDATE emails SET
  contact_id = $2, account_id = $3, case_id = $4, direction = $5, from_address = $6, to_address = $7,
  cc_addresses = $8, subject = $9, body = $10, html_body = $11, attachments = $12,
  sent_at = $13, delivered_at = $14, opened_at = $15, sentiment = $16
WHERE id = $1
`
		if _, err := tx.ExecContext(ctx, upd,
			cur.ID,
			cur.ContactID,
			cur.AccountID,
			cur.CaseID,
			cur.Direction,
			cur.From,
			cur.To,
			cc,
			cur.Subject,
			cur.Body,
			cur.HTMLBody,
			atts,
			cur.SentAt,
			cur.DeliveredAt,
			cur.OpenedAt,
			sentimentArg(cur.Sentiment),
		); err != nil {
			return mapWriteErr(err)
		}
		out, err = scanEmail(tx.QueryRowContext(ctx, `SELECT `+emailColumns+` FROM emails e LEFT JOIN contacts ct ON ct.id = e.contact_id WHERE e.id = $1`, id))
		return err
	})
	return out, err
}

func (r *PostgresRepo) GetEmail(ctx context.Context, id string) (EmailRecord, error) {
	q := `SELECT ` + emailColumns + ` FROM emails e LEFT JOIN contacts ct ON ct.id = e.contact_id WHERE e.id = $1`
	e, err := scanEmail(r.db.QueryRowContext(ctx, q, id))
	if errors.Is(err, sql.ErrNoRows) {
		return EmailRecord{}, &NotFoundError{Entity: "email", ID: id}
	}
	return e, err
}

func (r *PostgresRepo) ListEmails(ctx context.Context, f CommunicationsFilter) ([]EmailRecord, error) {
	where, args := filterClause(f, "e")
	q := `SELECT ` + emailColumns + ` FROM emails e LEFT JOIN contacts ct ON ct.id = e.contact_id` + where + pageClause(f, "e", &args)
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]EmailRecord, 0)
	for rows.Next() {
		e, err := scanEmail(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// --- Chats ---

const chatColumns = `h.id, h.contact_id, h.account_id, h.case_id, h.channel, h.status, h.created_at, ` + contactNameExpr

func (r *PostgresRepo) InsertChat(ctx context.Context, c ChatRecord) (ChatRecord, error) {
	const q = `
INSERT INTO chats (id, contact_id, account_id, case_id, channel, status, created_at)
VALUES ($1,$2,$3,$4,$5,$6,$7)
`
	if _, err := r.db.ExecContext(ctx, q, c.ID, c.ContactID, c.AccountID, c.CaseID, c.Channel, c.Status, c.CreatedAt); err != nil {
		return ChatRecord{}, mapWriteErr(err)
	}
	return c, nil
}

func (r *PostgresRepo) GetChat(ctx context.Context, id string) (ChatRecord, error) {
	q := `SELECT ` + chatColumns + ` FROM chats h LEFT JOIN contacts ct ON ct.id = h.contact_id WHERE h.id = $1`
	c, err := scanChat(r.db.QueryRowContext(ctx, q, id))
	if errors.Is(err, sql.ErrNoRows) {
		return ChatRecord{}, &NotFoundError{Entity: "chat", ID: id}
	}
	return c, err
}

func (r *PostgresRepo) ListChats(ctx context.Context, f CommunicationsFilter) ([]ChatRecord, error) {
	where, args := filterClause(f, "h")
	q := `SELECT ` + chatColumns + ` FROM chats h LEFT JOIN contacts ct ON ct.id = h.contact_id` + where + pageClause(f, "h", &args)
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]ChatRecord, 0)
	for rows.Next() {
		c, err := scanChat(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// DeleteChat leaves message removal to the chat_messages ON DELETE CASCADE.
func (r *PostgresRepo) DeleteChat(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM chats WHERE id = $1`, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return &NotFoundError{Entity: "chat", ID: id}
	}
	return nil
}

func (r *PostgresRepo) InsertChatMessage(ctx context.Context, m ChatMessage) (ChatMessage, error) {
	var meta []byte
	if m.Metadata != nil {
		b, err := json.Marshal(m.Metadata)
		if err != nil {
			return ChatMessage{}, err
		}
		meta = b
	}
	const q = `
INSERT INTO chat_messages (id, chat_id, sender, message, message_type, metadata, created_at)
VALUES ($1,$2,$3,$4,$5,$6,$7)
`
	if _, err := r.db.ExecContext(ctx, q, m.ID, m.ChatID, m.Sender, m.Message, m.MessageType, meta, m.CreatedAt); err != nil {
		if utils.IsPgCode(err, utils.PgForeignKeyViolation) {
			return ChatMessage{}, &NotFoundError{Entity: "chat", ID: m.ChatID}
		}
		return ChatMessage{}, err
	}
	return m, nil
}

func (r *PostgresRepo) ListChatMessages(ctx context.Context, chatID string) ([]ChatMessage, error) {
	if _, err := r.GetChat(ctx, chatID); err != nil {
		return nil, err
	}
	const q = `
SELECT id, chat_id, sender, message, message_type, metadata, created_at
FROM chat_messages
WHERE chat_id = $1
ORDER BY created_at ASC, id ASC
`
	rows, err := r.db.QueryContext(ctx, q, chatID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]ChatMessage, 0)
	for rows.Next() {
		var m ChatMessage
		var meta []byte
		if err := rows.Scan(&m.ID, &m.ChatID, &m.Sender, &m.Message, &m.MessageType, &meta, &m.CreatedAt); err != nil {
			return nil, err
		}
		if len(meta) > 0 {
			if err := json.Unmarshal(meta, &m.Metadata); err != nil {
				return nil, fmt.Errorf("chat message %s metadata: %w", m.ID, err)
			}
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// --- helpers ---

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCall(row rowScanner) (CallRecord, error) {
	var c CallRecord
	var sentiment sql.NullString
	if err := row.Scan(
		&c.ID,
		&c.ContactID,
		&c.AccountID,
		&c.CaseID,
		&c.Direction,
		&c.PhoneNumber,
		&c.Duration,
		&c.Outcome,
		&c.Notes,
		&c.RecordingURL,
		&c.ExternalCallID,
		&sentiment,
		&c.CreatedAt,
		&c.ContactName,
	); err != nil {
		return CallRecord{}, err
	}
	c.Sentiment = sentimentFrom(sentiment)
	return c, nil
}

func scanEmail(row rowScanner) (EmailRecord, error) {
	var e EmailRecord
	var cc, atts []byte
	var sentAt, deliveredAt, openedAt sql.NullTime
	var sentiment sql.NullString
	if err := row.Scan(
		&e.ID,
		&e.ContactID,
		&e.AccountID,
		&e.CaseID,
		&e.Direction,
		&e.From,
		&e.To,
		&cc,
		&e.Subject,
		&e.Body,
		&e.HTMLBody,
		&atts,
		&sentAt,
		&deliveredAt,
		&openedAt,
		&sentiment,
		&e.CreatedAt,
		&e.ContactName,
	); err != nil {
		return EmailRecord{}, err
	}
	if len(cc) > 0 {
		if err := json.Unmarshal(cc, &e.CC); err != nil {
			return EmailRecord{}, fmt.Errorf("email %s cc: %w", e.ID, err)
		}
	}
	if len(atts) > 0 {
		if err := json.Unmarshal(atts, &e.Attachments); err != nil {
			return EmailRecord{}, fmt.Errorf("email %s attachments: %w", e.ID, err)
		}
	}
	e.SentAt = timeFrom(sentAt)
	e.DeliveredAt = timeFrom(deliveredAt)
	e.OpenedAt = timeFrom(openedAt)
	e.Sentiment = sentimentFrom(sentiment)
	return e, nil
}

func scanChat(row rowScanner) (ChatRecord, error) {
	var c ChatRecord
	if err := row.Scan(
		&c.ID,
		&c.ContactID,
		&c.AccountID,
		&c.CaseID,
		&c.Channel,
		&c.Status,
		&c.CreatedAt,
		&c.ContactName,
	); err != nil {
		return ChatRecord{}, err
	}
	return c, nil
}

// filterClause builds the WHERE clause for links and date range on table alias a.
func filterClause(f CommunicationsFilter, a string) (string, []any) {
	var conds []string
	var args []any
	add := func(cond string, v any) {
		args = append(args, v)
		conds = append(conds, fmt.Sprintf(cond, a, len(args)))
	}
	if f.ContactID != nil {
		add("%s.contact_id = $%d", *f.ContactID)
	}
	if f.AccountID != nil {
		add("%s.account_id = $%d", *f.AccountID)
	}
	if f.CaseID != nil {
		add("%s.case_id = $%d", *f.CaseID)
	}
	if f.StartDate != nil {
		add("%s.created_at >= $%d", *f.StartDate)
	}
	if f.EndDate != nil {
		add("%s.created_at <= $%d", *f.EndDate)
	}
	if len(conds) == 0 {
		return "", args
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

func pageClause(f CommunicationsFilter, a string, args *[]any) string {
	clause := fmt.Sprintf(" ORDER BY %[1]s.created_at DESC, %[1]s.id ASC", a)
	if f.Limit > 0 {
		*args = append(*args, f.Limit)
		clause += fmt.Sprintf(" LIMIT $%d", len(*args))
	}
	if f.Offset > 0 {
		*args = append(*args, f.Offset)
		clause += fmt.Sprintf(" OFFSET $%d", len(*args))
	}
	return clause
}

func emailJSON(e EmailRecord) (cc, atts []byte, err error) {
	if e.CC != nil {
		if cc, err = json.Marshal(e.CC); err != nil {
			return nil, nil, err
		}
	}
	if e.Attachments != nil {
		if atts, err = json.Marshal(e.Attachments); err != nil {
			return nil, nil, err
		}
	}
	return cc, atts, nil
}

func sentimentArg(s *Sentiment) any {
	if s == nil {
		return nil
	}
	return string(*s)
}

func sentimentFrom(ns sql.NullString) *Sentiment {
	if !ns.Valid {
		return nil
	}
	s := Sentiment(ns.String)
	return &s
}

func timeFrom(nt sql.NullTime) *time.Time {
	if !nt.Valid {
		return nil
	}
	t := nt.Time
	return &t
}

// mapWriteErr turns FK violations into NotFoundError naming the referenced entity.
func mapWriteErr(err error) error {
	pgErr, ok := utils.PgError(err)
	if !ok || pgErr.Code != utils.PgForeignKeyViolation {
		return err
	}
	entity := "reference"
	for _, name := range []string{"contact", "account", "case", "chat"} {
		if strings.Contains(pgErr.ConstraintName, name+"_id") {
			entity = name
			break
		}
	}
	return &NotFoundError{Entity: entity}
}
