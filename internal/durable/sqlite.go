package durable

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/danphilibin/relay/pkg/api"
)

// SQLiteHistory is a HistoryStore backed by SQLite through the pure Go
// modernc.org/sqlite driver
type SQLiteHistory struct {
	db *sql.DB
}

var _ HistoryStore = (*SQLiteHistory)(nil)

// OpenSQLiteHistory opens (or creates) the database at path. Use
// ":memory:" for a throwaway database
func OpenSQLiteHistory(path string) (*SQLiteHistory, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// SQLite allows one writer; a single connection also keeps ":memory:"
	// databases from splitting across the pool
	db.SetMaxOpenConns(1)
	return NewSQLiteHistory(db)
}

// NewSQLiteHistory initializes the required schema in db
func NewSQLiteHistory(db *sql.DB) (*SQLiteHistory, error) {
	s := &SQLiteHistory{db: db}
	if err := s.initSchema(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *SQLiteHistory) initSchema() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS instances (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			params BLOB,
			status TEXT NOT NULL,
			error TEXT NOT NULL DEFAULT '',
			created_at INTEGER NOT NULL,
			updated_at INTEGER NOT NULL
		);
		CREATE INDEX IF NOT EXISTS instances_status ON instances (status);
		CREATE TABLE IF NOT EXISTS steps (
			instance_id TEXT NOT NULL,
			position INTEGER NOT NULL,
			name TEXT NOT NULL,
			kind TEXT NOT NULL,
			result BLOB,
			deadline INTEGER NOT NULL DEFAULT 0,
			PRIMARY KEY (instance_id, position)
		);
		CREATE TABLE IF NOT EXISTS events (
			seq INTEGER PRIMARY KEY AUTOINCREMENT,
			instance_id TEXT NOT NULL,
			name TEXT NOT NULL,
			payload BLOB
		);
		CREATE INDEX IF NOT EXISTS events_instance ON events (instance_id);`,
	)
	return err
}

func (s *SQLiteHistory) CreateInstance(
	ctx context.Context, inst *Instance,
) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO instances (
			id, name, params, status, error, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		string(inst.ID),
		inst.Name,
		[]byte(inst.Params),
		string(inst.Status),
		inst.Error,
		inst.CreatedAt.UnixNano(),
		inst.UpdatedAt.UnixNano(),
	)
	if err != nil && isUniqueViolation(err) {
		return fmt.Errorf("%w: %s", ErrInstanceExists, inst.ID)
	}
	return err
}

func (s *SQLiteHistory) GetInstance(
	ctx context.Context, id api.RunID,
) (*Instance, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, name, params, status, error, created_at, updated_at
		FROM instances WHERE id = ?`,
		string(id),
	)
	inst, err := scanInstance(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrInstanceNotFound, id)
	}
	return inst, err
}

func (s *SQLiteHistory) UpdateInstance(
	ctx context.Context, inst *Instance,
) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE instances
		SET status = ?, error = ?, updated_at = ?
		WHERE id = ?`,
		string(inst.Status),
		inst.Error,
		inst.UpdatedAt.UnixNano(),
		string(inst.ID),
	)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", ErrInstanceNotFound, inst.ID)
	}
	return nil
}

func (s *SQLiteHistory) ListInstances(
	ctx context.Context, status Status,
) ([]*Instance, error) {
	query := `
		SELECT id, name, params, status, error, created_at, updated_at
		FROM instances`
	var args []any
	if status != "" {
		query += ` WHERE status = ?`
		args = append(args, string(status))
	}
	query += ` ORDER BY created_at`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var res []*Instance
	for rows.Next() {
		inst, err := scanInstance(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, inst)
	}
	return res, rows.Err()
}

func (s *SQLiteHistory) AppendStep(
	ctx context.Context, id api.RunID, rec *StepRecord,
) error {
	var deadline int64
	if !rec.Deadline.IsZero() {
		deadline = rec.Deadline.UnixNano()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO steps (instance_id, position, name, kind, result, deadline)
		VALUES (?, ?, ?, ?, ?, ?)`,
		string(id),
		rec.Position,
		rec.Name,
		string(rec.Kind),
		[]byte(rec.Result),
		deadline,
	)
	return err
}

func (s *SQLiteHistory) Steps(
	ctx context.Context, id api.RunID,
) ([]*StepRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT position, name, kind, result, deadline
		FROM steps WHERE instance_id = ? ORDER BY position`,
		string(id),
	)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var res []*StepRecord
	for rows.Next() {
		var (
			rec      StepRecord
			kind     string
			result   []byte
			deadline int64
		)
		err := rows.Scan(&rec.Position, &rec.Name, &kind, &result, &deadline)
		if err != nil {
			return nil, err
		}
		rec.Kind = StepKind(kind)
		if len(result) > 0 {
			rec.Result = result
		}
		if deadline != 0 {
			rec.Deadline = time.Unix(0, deadline)
		}
		res = append(res, &rec)
	}
	return res, rows.Err()
}

func (s *SQLiteHistory) AppendEvent(
	ctx context.Context, id api.RunID, ev *EventRecord,
) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO events (instance_id, name, payload) VALUES (?, ?, ?)`,
		string(id), ev.Name, []byte(ev.Payload),
	)
	return err
}

func (s *SQLiteHistory) Events(
	ctx context.Context, id api.RunID,
) ([]*EventRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT name, payload FROM events WHERE instance_id = ? ORDER BY seq`,
		string(id),
	)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var res []*EventRecord
	for rows.Next() {
		var (
			ev      EventRecord
			payload []byte
		)
		if err := rows.Scan(&ev.Name, &payload); err != nil {
			return nil, err
		}
		if len(payload) > 0 {
			ev.Payload = payload
		}
		res = append(res, &ev)
	}
	return res, rows.Err()
}

func (s *SQLiteHistory) Close() error {
	return s.db.Close()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanInstance(row scanner) (*Instance, error) {
	var (
		inst             Instance
		id, status       string
		params           []byte
		created, updated int64
	)
	err := row.Scan(
		&id, &inst.Name, &params, &status, &inst.Error, &created, &updated,
	)
	if err != nil {
		return nil, err
	}
	inst.ID = api.RunID(id)
	inst.Status = Status(status)
	if len(params) > 0 {
		inst.Params = params
	}
	inst.CreatedAt = time.Unix(0, created)
	inst.UpdatedAt = time.Unix(0, updated)
	return &inst, nil
}

func isUniqueViolation(err error) bool {
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}
