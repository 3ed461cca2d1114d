package history

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/handiism/audiobatch/internal/model"

	_ "modernc.org/sqlite"
)

// ErrNotFound is returned by Get for an unknown batch id.
var ErrNotFound = errors.New("batch not found")

const timeLayout = time.RFC3339Nano

// Batch is the summary row of one recorded batch.
type Batch struct {
	ID         string
	Source     string
	StartedAt  time.Time
	FinishedAt time.Time
	References []string
	Items      int
	Succeeded  int
	Failed     int
	Unresolved int
	Archive    string
}

// Duration returns how long the batch ran.
func (b Batch) Duration() time.Duration {
	return b.FinishedAt.Sub(b.StartedAt)
}

// ItemRecord is the stored form of one outcome.
type ItemRecord struct {
	Index      int
	Title      string
	FetchRef   string
	Container  string
	Status     string
	Artifact   string
	Reason     string
	Attempts   int
	FinishedAt time.Time
}

// Record is a batch with all of its outcomes.
type Record struct {
	Batch
	Outcomes   []ItemRecord
	Unresolved []model.ResolutionFailure
}

// NewID returns a time-ordered batch id.
func NewID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}

// NewRecord converts a finished batch into a Record. Outcomes are stored in
// flat-list order.
func NewRecord(id, source string, refs []string, started, finished time.Time, result *model.BatchResult) Record {
	rec := Record{
		Batch: Batch{
			ID:         id,
			Source:     source,
			StartedAt:  started,
			FinishedAt: finished,
			References: refs,
			Items:      result.Items(),
			Succeeded:  len(result.Successes),
			Failed:     len(result.Failures),
			Unresolved: len(result.ResolutionFailures),
		},
		Unresolved: result.ResolutionFailures,
	}

	outcomes := make([]ItemRecord, result.Items())
	for _, list := range [][]model.Outcome{result.Successes, result.Failures} {
		for _, o := range list {
			if o.Index < 0 || o.Index >= len(outcomes) {
				continue
			}
			outcomes[o.Index] = ItemRecord{
				Index:      o.Index,
				Title:      o.Item.Title,
				FetchRef:   o.Item.FetchRef,
				Container:  o.Item.Container,
				Status:     o.Status.String(),
				Artifact:   o.FileName(),
				Reason:     o.Reason,
				Attempts:   o.Attempts,
				FinishedAt: o.FinishedAt,
			}
		}
	}
	rec.Outcomes = outcomes
	return rec
}

// Store persists batch history in SQLite.
//
// Example:
//
//	store, err := history.Open(ctx, "/home/me/.local/share/audiobatch/history.db")
//	if err != nil {
//	    return err
//	}
//	defer store.Close()
//	batches, err := store.List(ctx, 20)
type Store struct {
	db *sql.DB
}

// Open opens (creating if needed) the database at path and applies pending
// migrations.
func Open(ctx context.Context, path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)")
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite: %w", err)
	}
	// a single writer avoids SQLITE_BUSY between concurrent recorders
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to sqlite: %w", err)
	}

	s := &Store{db: db}
	if err := s.applyMigrations(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("could not migrate database: %w", err)
	}
	return s, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Record stores a finished batch.
func (s *Store) Record(ctx context.Context, rec Record) error {
	refs, err := json.Marshal(rec.References)
	if err != nil {
		return fmt.Errorf("failed to encode references: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO batches (id, source, started_at, finished_at, refs, items, succeeded, failed, unresolved, archive)
         VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID,
		rec.Source,
		rec.StartedAt.UTC().Format(timeLayout),
		rec.FinishedAt.UTC().Format(timeLayout),
		string(refs),
		rec.Items,
		rec.Succeeded,
		rec.Failed,
		rec.Unresolved,
		rec.Archive,
	)
	if err != nil {
		return fmt.Errorf("insert batch: %w", err)
	}

	for _, o := range rec.Outcomes {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO outcomes (batch_id, idx, title, fetch_ref, container, status, artifact, reason, attempts, finished_at)
             VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			rec.ID, o.Index, o.Title, o.FetchRef, o.Container, o.Status, o.Artifact, o.Reason, o.Attempts,
			o.FinishedAt.UTC().Format(timeLayout),
		)
		if err != nil {
			return fmt.Errorf("insert outcome %d: %w", o.Index, err)
		}
	}

	for i, f := range rec.Unresolved {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO resolution_failures (batch_id, seq, reference, title, reason) VALUES (?, ?, ?, ?, ?)`,
			rec.ID, i, f.Reference, f.Title, f.Reason,
		)
		if err != nil {
			return fmt.Errorf("insert resolution failure: %w", err)
		}
	}

	return tx.Commit()
}

// SetArchive records the archive name of a stored batch.
func (s *Store) SetArchive(ctx context.Context, id, archive string) error {
	res, err := s.db.ExecContext(ctx, `UPDATE batches SET archive = ? WHERE id = ?`, archive, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// List returns the most recent batches first. limit <= 0 returns all.
func (s *Store) List(ctx context.Context, limit int) ([]Batch, error) {
	query := `SELECT id, source, started_at, finished_at, refs, items, succeeded, failed, unresolved, archive
              FROM batches ORDER BY started_at DESC, id DESC`
	args := []any{}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var batches []Batch
	for rows.Next() {
		b, err := scanBatch(rows)
		if err != nil {
			return nil, err
		}
		batches = append(batches, b)
	}
	return batches, rows.Err()
}

// Get loads one batch with its outcomes.
func (s *Store) Get(ctx context.Context, id string) (*Record, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, source, started_at, finished_at, refs, items, succeeded, failed, unresolved, archive
         FROM batches WHERE id = ? LIMIT 1`, id)
	b, err := scanBatch(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	rec := &Record{Batch: b}
	if rec.Outcomes, err = s.outcomes(ctx, id); err != nil {
		return nil, err
	}
	if rec.Unresolved, err = s.resolutionFailures(ctx, id); err != nil {
		return nil, err
	}
	return rec, nil
}

func (s *Store) outcomes(ctx context.Context, id string) ([]ItemRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT idx, title, fetch_ref, container, status, artifact, reason, attempts, finished_at
         FROM outcomes WHERE batch_id = ? ORDER BY idx`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []ItemRecord
	for rows.Next() {
		var o ItemRecord
		var finished string
		if err := rows.Scan(&o.Index, &o.Title, &o.FetchRef, &o.Container, &o.Status, &o.Artifact, &o.Reason, &o.Attempts, &finished); err != nil {
			return nil, err
		}
		o.FinishedAt = parseTime(finished)
		out = append(out, o)
	}
	return out, rows.Err()
}

func (s *Store) resolutionFailures(ctx context.Context, id string) ([]model.ResolutionFailure, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT reference, title, reason FROM resolution_failures WHERE batch_id = ? ORDER BY seq`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.ResolutionFailure
	for rows.Next() {
		var f model.ResolutionFailure
		if err := rows.Scan(&f.Reference, &f.Title, &f.Reason); err != nil {
			return nil, err
		}
		out = append(out, f)
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanBatch(row scanner) (Batch, error) {
	var b Batch
	var started, finished, refs string
	if err := row.Scan(&b.ID, &b.Source, &started, &finished, &refs, &b.Items, &b.Succeeded, &b.Failed, &b.Unresolved, &b.Archive); err != nil {
		return Batch{}, err
	}
	b.StartedAt = parseTime(started)
	b.FinishedAt = parseTime(finished)
	if err := json.Unmarshal([]byte(refs), &b.References); err != nil {
		return Batch{}, fmt.Errorf("decode references of %s: %w", b.ID, err)
	}
	return b, nil
}

func parseTime(s string) time.Time {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		return time.Time{}
	}
	return t
}
