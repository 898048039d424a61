package metadata

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/pressly/goose/v3"
	_ "modernc.org/sqlite"

	"github.com/your-org/clipline/internal/metadata/migrations"
)

// ErrNotFound is returned when an event id has no row.
var ErrNotFound = errors.New("event not found")

// Store manages event and variant persistence backed by SQLite.
type Store struct {
	db   *sql.DB
	path string
}

// Open initializes or connects to the metadata database.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	// foreign_keys and busy_timeout are per-connection pragmas; a single
	// pooled connection keeps them in force for every statement.
	db.SetMaxOpenConns(1)

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	return &Store{db: db, path: path}, nil
}

// Migrate applies all pending schema migrations.
func (s *Store) Migrate(ctx context.Context) error {
	if err := prepareGoose(); err != nil {
		return err
	}
	if err := goose.UpContext(ctx, s.db, "."); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}
	return nil
}

// Reset rolls every migration back and reapplies them, dropping all rows.
func (s *Store) Reset(ctx context.Context) error {
	if err := prepareGoose(); err != nil {
		return err
	}
	if err := goose.DownToContext(ctx, s.db, ".", 0); err != nil {
		return fmt.Errorf("roll back migrations: %w", err)
	}
	if err := goose.UpContext(ctx, s.db, "."); err != nil {
		return fmt.Errorf("reapply migrations: %w", err)
	}
	return nil
}

// prepareGoose points goose at the embedded migrations. Goose logs to
// stdout by default, which would interleave with structured log output.
func prepareGoose() error {
	goose.SetBaseFS(migrations.FS)
	goose.SetLogger(goose.NopLogger())
	if err := goose.SetDialect("sqlite3"); err != nil {
		return fmt.Errorf("set goose dialect: %w", err)
	}
	return nil
}

// Close releases the database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// CreatePlaceholderEvent inserts an event row with no media so its id can
// namespace storage keys while ingestion runs.
func (s *Store) CreatePlaceholderEvent(ctx context.Context, draft Draft) (int64, error) {
	createdAt := draft.EventDate
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	res, err := s.db.ExecContext(ctx,
		`INSERT INTO events (slug, title, body, video_url, created_at) VALUES (?, ?, ?, '', ?)`,
		nullableString(draft.Slug), draft.Title, draft.Body, formatTime(createdAt),
	)
	if err != nil {
		return 0, fmt.Errorf("insert placeholder event: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("placeholder event id: %w", err)
	}
	return id, nil
}

// UpdateEventMedia publishes an event's media URLs in a single write.
func (s *Store) UpdateEventMedia(ctx context.Context, eventID int64, update MediaUpdate) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE events SET video_url = ?, thumbnail_url = ?, original_clip_url = ? WHERE id = ?`,
		update.VideoURL, nullableString(update.ThumbnailURL), nullableString(update.OriginalClipURL), eventID,
	)
	if err != nil {
		return fmt.Errorf("update event media: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update event media: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

// AddVideoVariant records one stored rendition for an event.
func (s *Store) AddVideoVariant(ctx context.Context, v VideoVariant) (int64, error) {
	createdAt := v.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	res, err := s.db.ExecContext(ctx,
		`INSERT INTO event_videos (event_id, quality_label, mime, filesize, duration_s, storage_key, public_url, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		v.EventID, v.QualityLabel, v.MIME, v.FileSize, v.DurationS, v.StorageKey, v.PublicURL, formatTime(createdAt),
	)
	if err != nil {
		return 0, fmt.Errorf("insert video variant: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("video variant id: %w", err)
	}
	return id, nil
}

// DeleteEvent removes the event row; variants cascade.
func (s *Store) DeleteEvent(ctx context.Context, eventID int64) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM events WHERE id = ?`, eventID)
	if err != nil {
		return fmt.Errorf("delete event: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete event: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

// ListVariantKeys returns the storage keys recorded for an event's
// variants. Deletion uses this as the explicit key list before sweeping
// the prefix.
func (s *Store) ListVariantKeys(ctx context.Context, eventID int64) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT storage_key FROM event_videos WHERE event_id = ? ORDER BY id`, eventID)
	if err != nil {
		return nil, fmt.Errorf("list variant keys: %w", err)
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			return nil, fmt.Errorf("scan variant key: %w", err)
		}
		keys = append(keys, key)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list variant keys: %w", err)
	}
	return keys, nil
}

// GetEvent loads a single event row.
func (s *Store) GetEvent(ctx context.Context, eventID int64) (*Event, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, slug, title, body, video_url, original_clip_url, thumbnail_url, created_at
		 FROM events WHERE id = ?`, eventID)
	ev, err := scanEvent(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get event: %w", err)
	}
	return ev, nil
}

// ListEvents returns every event, newest timeline position first.
func (s *Store) ListEvents(ctx context.Context) ([]*Event, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, slug, title, body, video_url, original_clip_url, thumbnail_url, created_at
		 FROM events ORDER BY created_at DESC, id DESC`)
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	defer rows.Close()

	var events []*Event
	for rows.Next() {
		ev, err := scanEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		events = append(events, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	return events, nil
}

// ListVariants returns an event's variants ordered best rendition first.
func (s *Store) ListVariants(ctx context.Context, eventID int64) ([]VideoVariant, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, event_id, quality_label, mime, filesize, duration_s, storage_key, public_url, created_at
		 FROM event_videos WHERE event_id = ? ORDER BY id`, eventID)
	if err != nil {
		return nil, fmt.Errorf("list variants: %w", err)
	}
	defer rows.Close()

	var variants []VideoVariant
	for rows.Next() {
		var (
			v       VideoVariant
			created string
		)
		if err := rows.Scan(&v.ID, &v.EventID, &v.QualityLabel, &v.MIME, &v.FileSize, &v.DurationS, &v.StorageKey, &v.PublicURL, &created); err != nil {
			return nil, fmt.Errorf("scan variant: %w", err)
		}
		v.CreatedAt = parseTime(created)
		variants = append(variants, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list variants: %w", err)
	}

	SortVariants(variants)
	return variants, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEvent(row rowScanner) (*Event, error) {
	var (
		ev       Event
		slug     sql.NullString
		clipURL  sql.NullString
		thumbURL sql.NullString
		created  string
	)
	if err := row.Scan(&ev.ID, &slug, &ev.Title, &ev.Body, &ev.VideoURL, &clipURL, &thumbURL, &created); err != nil {
		return nil, err
	}
	ev.Slug = slug.String
	ev.OriginalClipURL = clipURL.String
	ev.ThumbnailURL = thumbURL.String
	ev.CreatedAt = parseTime(created)
	return &ev, nil
}

func nullableString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

func parseTime(s string) time.Time {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}
	}
	return t
}
