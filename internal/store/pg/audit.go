package pg

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/vidunsterling-afk/itroom-sub000/internal/audit"
)

var (
	_ audit.Store      = (*Store)(nil)
	_ audit.EventStore = (*Store)(nil)
)

const auditColumns = `id, actor_user_id, actor_username, action, module, status, entity_type, entity_id,
	summary, before, after, ip, user_agent, request_id, created_at`

func (s *Store) AppendAuditEntry(ctx context.Context, e audit.Entry) error {
	if s.db == nil {
		return errNoDB
	}
	_, err := s.db.ExecContext(ctx, `
		insert into audit_log (`+auditColumns+`)
		values ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
	`,
		e.ID,
		nullIfEmpty(e.ActorUserID),
		nullIfEmpty(e.ActorUsername),
		e.Action,
		e.Module,
		string(e.Status),
		nullIfEmpty(e.EntityType),
		nullIfEmpty(e.EntityID),
		nullIfEmpty(e.Summary),
		nullJSON(e.Before),
		nullJSON(e.After),
		nullIfEmpty(e.IP),
		nullIfEmpty(e.UserAgent),
		nullIfEmpty(e.RequestID),
		e.CreatedAt,
	)
	return err
}

// ListAuditEntries returns the filtered page newest first and the total match count.
func (s *Store) ListAuditEntries(ctx context.Context, f audit.Filter) ([]audit.Entry, int, error) {
	if s.db == nil {
		return nil, 0, errNoDB
	}
	where, args := auditWhere(f)

	var total int
	if err := s.db.QueryRowContext(ctx, `select count(*) from audit_log`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}
	if total == 0 || f.Offset >= total {
		return []audit.Entry{}, total, nil
	}

	query := fmt.Sprintf(`select %s from audit_log%s order by created_at desc, id desc limit $%d offset $%d`,
		auditColumns, where, len(args)+1, len(args)+2)
	rows, err := s.db.QueryContext(ctx, query, append(args, f.Limit, f.Offset)...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	result := []audit.Entry{}
	for rows.Next() {
		var (
			e                                  audit.Entry
			actorID, actorName, entType, entID sql.NullString
			summary, ip, userAgent, requestID  sql.NullString
			before, after                      []byte
		)
		if err := rows.Scan(&e.ID, &actorID, &actorName, &e.Action, &e.Module, &e.Status, &entType, &entID,
			&summary, &before, &after, &ip, &userAgent, &requestID, &e.CreatedAt); err != nil {
			return nil, 0, err
		}
		e.ActorUserID = actorID.String
		e.ActorUsername = actorName.String
		e.EntityType = entType.String
		e.EntityID = entID.String
		e.Summary = summary.String
		e.IP = ip.String
		e.UserAgent = userAgent.String
		e.RequestID = requestID.String
		e.Before = rawOrNil(before)
		e.After = rawOrNil(after)
		result = append(result, e)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	return result, total, nil
}

func auditWhere(f audit.Filter) (string, []any) {
	var (
		clauses []string
		args    []any
	)
	add := func(clause string, v any) {
		args = append(args, v)
		clauses = append(clauses, fmt.Sprintf(clause, len(args)))
	}
	if f.Module != "" {
		add("module = $%d", f.Module)
	}
	if f.ActorUserID != "" {
		add("actor_user_id = $%d", f.ActorUserID)
	}
	if f.Status != "" {
		add("status = $%d", string(f.Status))
	}
	if f.EntityType != "" {
		add("entity_type = $%d", f.EntityType)
	}
	if f.EntityID != "" {
		add("entity_id = $%d", f.EntityID)
	}
	if !f.From.IsZero() {
		add("created_at >= $%d", f.From)
	}
	if !f.To.IsZero() {
		add("created_at < $%d", f.To)
	}
	if len(clauses) == 0 {
		return "", nil
	}
	return " where " + strings.Join(clauses, " and "), args
}

func (s *Store) AppendEvent(ctx context.Context, e audit.Event) error {
	if s.db == nil {
		return errNoDB
	}
	_, err := s.db.ExecContext(ctx, `
		insert into entity_events (id, kind, entity_id, type, before, after, note, actor_user_id, actor_username, created_at)
		values ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`,
		e.ID,
		string(e.Kind),
		e.EntityID,
		string(e.Type),
		nullJSON(e.Before),
		nullJSON(e.After),
		nullIfEmpty(e.Note),
		nullIfEmpty(e.ActorUserID),
		nullIfEmpty(e.ActorUsername),
		e.CreatedAt,
	)
	return err
}

func (s *Store) ListEvents(ctx context.Context, kind audit.Kind, entityID string, limit, offset int) ([]audit.Event, error) {
	if s.db == nil {
		return nil, errNoDB
	}
	rows, err := s.db.QueryContext(ctx, `
		select id, kind, entity_id, type, before, after, note, actor_user_id, actor_username, created_at
		from entity_events
		where kind = $1 and entity_id = $2
		order by created_at desc, id desc
		limit $3 offset $4
	`, string(kind), entityID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := []audit.Event{}
	for rows.Next() {
		var (
			e                        audit.Event
			note, actorID, actorName sql.NullString
			before, after            []byte
		)
		if err := rows.Scan(&e.ID, &e.Kind, &e.EntityID, &e.Type, &before, &after, &note, &actorID, &actorName, &e.CreatedAt); err != nil {
			return nil, err
		}
		e.Note = note.String
		e.ActorUserID = actorID.String
		e.ActorUsername = actorName.String
		e.Before = rawOrNil(before)
		e.After = rawOrNil(after)
		result = append(result, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func rawOrNil(b []byte) []byte {
	if len(b) == 0 {
		return nil
	}
	return append([]byte(nil), b...)
}
