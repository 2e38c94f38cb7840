package audit

import (
	"context"

	"medauth-service/internal/db"
)

// PostgresLog appends entries to the audit_entries table. The table has
// no UPDATE or DELETE path in this codebase; rows are write-once.
type PostgresLog struct {
	db *db.DB
}

func NewPostgresLog(db *db.DB) *PostgresLog {
	return &PostgresLog{db: db}
}

func (p *PostgresLog) Append(ctx context.Context, e Entry) error {
	_, err := p.db.ExecContext(ctx, `
		INSERT INTO audit_entries (session_id, seq, event, detail, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`, e.SessionID, e.Seq, string(e.Event), e.Detail, e.Timestamp)

	return err
}

func (p *PostgresLog) Entries(ctx context.Context, sessionID string) ([]Entry, error) {
	rows, err := p.db.QueryContext(ctx, `
		SELECT session_id, seq, event, detail, created_at
		FROM audit_entries
		WHERE session_id = $1
		ORDER BY seq ASC
	`, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var e Entry
		var event string
		if err := rows.Scan(&e.SessionID, &e.Seq, &event, &e.Detail, &e.Timestamp); err != nil {
			return nil, err
		}
		e.Event = Event(event)
		out = append(out, e)
	}

	return out, rows.Err()
}
