package responder

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/nerrad567/gray-logic-dmx/internal/rdm"
)

// Repository defines persistence for discovered responders.
type Repository interface {
	// Upsert records that uid was seen on universe at seen. A new row takes
	// seen as first_seen; an existing row keeps first_seen and its muted flag.
	Upsert(ctx context.Context, uid rdm.UID, universe int, source Source, seen time.Time) error

	// GetByUID returns ErrResponderNotFound if uid is unknown.
	GetByUID(ctx context.Context, uid rdm.UID) (*Responder, error)

	// List returns responders ordered by UID. A universe of 0 lists all.
	List(ctx context.Context, universe int) ([]Responder, error)

	// SetMuted sets the muted flag. Returns ErrResponderNotFound if uid is unknown.
	SetMuted(ctx context.Context, uid rdm.UID, muted bool) error

	// ClearMuted clears the muted flag of every responder on universe and
	// returns how many rows changed.
	ClearMuted(ctx context.Context, universe int) (int64, error)

	// Delete removes uid. Returns ErrResponderNotFound if uid is unknown.
	Delete(ctx context.Context, uid rdm.UID) error
}

// SQLiteRepository implements Repository on the rdm_responders table.
type SQLiteRepository struct {
	db *sql.DB
}

var _ Repository = (*SQLiteRepository)(nil)

// NewSQLiteRepository returns a repository over an open, migrated database.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

const selectColumns = `SELECT uid, universe, first_seen, last_seen, muted, source FROM rdm_responders`

func checkUID(uid rdm.UID) error {
	if uid.IsBroadcast() {
		return fmt.Errorf("%w: %s is a broadcast address", ErrInvalidUID, uid)
	}
	return nil
}

// Upsert inserts or refreshes a responder row.
func (r *SQLiteRepository) Upsert(ctx context.Context, uid rdm.UID, universe int, source Source, seen time.Time) error {
	if err := checkUID(uid); err != nil {
		return err
	}
	ts := seen.UTC().Format(time.RFC3339Nano)

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO rdm_responders (uid, manufacturer, device, universe, first_seen, last_seen, muted, source)
		VALUES (?, ?, ?, ?, ?, ?, 0, ?)
		ON CONFLICT(uid) DO UPDATE SET
			universe = excluded.universe,
			last_seen = excluded.last_seen,
			source = excluded.source`,
		uid.String(), int64(uid.Manufacturer), int64(uid.Device), universe, ts, ts, string(source),
	)
	if err != nil {
		return fmt.Errorf("upserting responder %s: %w", uid, err)
	}
	return nil
}

// GetByUID retrieves one responder.
func (r *SQLiteRepository) GetByUID(ctx context.Context, uid rdm.UID) (*Responder, error) {
	row := r.db.QueryRowContext(ctx, selectColumns+` WHERE uid = ?`, uid.String())

	resp, err := scanResponder(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrResponderNotFound
		}
		return nil, fmt.Errorf("querying responder %s: %w", uid, err)
	}
	return resp, nil
}

// List retrieves responders, optionally filtered by universe.
func (r *SQLiteRepository) List(ctx context.Context, universe int) ([]Responder, error) {
	query := selectColumns
	var args []any
	if universe != 0 {
		query += ` WHERE universe = ?`
		args = append(args, universe)
	}
	query += ` ORDER BY manufacturer, device`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing responders: %w", err)
	}
	defer rows.Close()

	var out []Responder
	for rows.Next() {
		resp, err := scanResponder(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning responder: %w", err)
		}
		out = append(out, *resp)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating responders: %w", err)
	}
	return out, nil
}

// SetMuted updates the muted flag of one responder.
func (r *SQLiteRepository) SetMuted(ctx context.Context, uid rdm.UID, muted bool) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE rdm_responders SET muted = ? WHERE uid = ?`, boolToInt(muted), uid.String())
	if err != nil {
		return fmt.Errorf("updating muted flag: %w", err)
	}
	return requireRow(result)
}

// ClearMuted unmutes every responder on universe.
func (r *SQLiteRepository) ClearMuted(ctx context.Context, universe int) (int64, error) {
	result, err := r.db.ExecContext(ctx,
		`UPDATE rdm_responders SET muted = 0 WHERE universe = ? AND muted = 1`, universe)
	if err != nil {
		return 0, fmt.Errorf("clearing muted flags: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("checking rows affected: %w", err)
	}
	return n, nil
}

// Delete removes a responder.
func (r *SQLiteRepository) Delete(ctx context.Context, uid rdm.UID) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM rdm_responders WHERE uid = ?`, uid.String())
	if err != nil {
		return fmt.Errorf("deleting responder: %w", err)
	}
	return requireRow(result)
}

func requireRow(result sql.Result) error {
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking rows affected: %w", err)
	}
	if n == 0 {
		return ErrResponderNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanResponder(s rowScanner) (*Responder, error) {
	var (
		uidText, firstSeen, lastSeen, source string
		muted                                int
		resp                                 Responder
	)
	if err := s.Scan(&uidText, &resp.Universe, &firstSeen, &lastSeen, &muted, &source); err != nil {
		return nil, err
	}

	uid, err := rdm.ParseUID(uidText)
	if err != nil {
		return nil, fmt.Errorf("%w: stored value %q", ErrInvalidUID, uidText)
	}
	resp.UID = uid
	resp.Muted = muted != 0
	resp.Source = Source(source)
	resp.FirstSeen, _ = time.Parse(time.RFC3339Nano, firstSeen) //nolint:errcheck // Format is controlled
	resp.LastSeen, _ = time.Parse(time.RFC3339Nano, lastSeen)   //nolint:errcheck // Format is controlled

	return &resp, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
