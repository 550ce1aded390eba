package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"easel/internal/config"
	"easel/internal/queue"
)

// Store is the SQLite-backed ledger of finished jobs.
type Store struct {
	db   *sql.DB
	path string
}

// Entry is one finished request.
type Entry struct {
	ID            int64        `json:"id"`
	RequestID     string       `json:"request_id"`
	CorrelationID string       `json:"correlation_id,omitempty"`
	PromptID      string       `json:"prompt_id,omitempty"`
	Profile       string       `json:"profile"`
	Requester     string       `json:"requester,omitempty"`
	Channel       string       `json:"channel,omitempty"`
	Mode          string       `json:"mode,omitempty"`
	OriginalText  string       `json:"original_text,omitempty"`
	FinalText     string       `json:"final_text,omitempty"`
	Status        queue.Status `json:"status"`
	ErrorKind     string       `json:"error_kind,omitempty"`
	ErrorMessage  string       `json:"error_message,omitempty"`
	OutputCount   int          `json:"output_count"`
	EnqueuedAt    *time.Time   `json:"enqueued_at,omitempty"`
	StartedAt     *time.Time   `json:"started_at,omitempty"`
	FinishedAt    time.Time    `json:"finished_at"`
}

// Duration returns how long the job ran, or zero when the start is unknown.
func (e Entry) Duration() time.Duration {
	if e.StartedAt == nil || e.FinishedAt.IsZero() {
		return 0
	}
	return e.FinishedAt.Sub(*e.StartedAt)
}

const (
	sqliteBusyCode          = 5
	busyRetryAttempts       = 5
	busyRetryInitialBackoff = 10 * time.Millisecond
	busyRetryMaxBackoff     = 200 * time.Millisecond

	// DefaultRecentLimit bounds Recent when the caller passes no limit.
	DefaultRecentLimit = 20
	maxRecentLimit     = 500
)

const entryColumns = `id, request_id, correlation_id, prompt_id, profile, requester, channel, mode,
	original_text, final_text, status, error_kind, error_message, output_count,
	enqueued_at, started_at, finished_at`

func ensureContext(ctx context.Context) context.Context {
	if ctx != nil {
		return ctx
	}
	return context.Background()
}

func isSQLiteBusy(err error) bool {
	if err == nil {
		return false
	}
	var coder interface{ Code() int }
	if errors.As(err, &coder) && coder.Code() == sqliteBusyCode {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "SQLITE_BUSY") || strings.Contains(msg, "database is locked")
}

func retryOnBusy(ctx context.Context, op func() error) error {
	delay := busyRetryInitialBackoff
	var lastErr error
	for attempt := 0; attempt < busyRetryAttempts; attempt++ {
		lastErr = op()
		if lastErr == nil {
			return nil
		}
		if !isSQLiteBusy(lastErr) || attempt == busyRetryAttempts-1 {
			break
		}
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
		if next := delay * 2; next <= busyRetryMaxBackoff {
			delay = next
		}
	}
	return lastErr
}

func (s *Store) execWithRetry(ctx context.Context, query string, args ...any) (sql.Result, error) {
	ctx = ensureContext(ctx)
	var (
		res     sql.Result
		execErr error
	)
	if err := retryOnBusy(ctx, func() error {
		res, execErr = s.db.ExecContext(ctx, query, args...)
		return execErr
	}); err != nil {
		return nil, err
	}
	return res, nil
}

// Open initializes or connects to the history database.
func Open(cfg *config.Config) (*Store, error) {
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("ensure directories: %w", err)
	}

	dbPath := cfg.HistoryPath()
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	store := &Store{db: db, path: dbPath}
	if err := store.initSchema(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}

	return store, nil
}

// Path returns the database location.
func (s *Store) Path() string {
	return s.path
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Record appends a finished request. Only terminal statuses are accepted.
func (s *Store) Record(ctx context.Context, entry Entry) (int64, error) {
	if strings.TrimSpace(entry.RequestID) == "" {
		return 0, errors.New("record history: request id required")
	}
	if !entry.Status.IsTerminal() {
		return 0, fmt.Errorf("record history: status %q is not terminal", entry.Status)
	}
	if entry.FinishedAt.IsZero() {
		entry.FinishedAt = time.Now().UTC()
	}
	finished := entry.FinishedAt
	res, err := s.execWithRetry(ctx, `INSERT INTO jobs (
		request_id, correlation_id, prompt_id, profile, requester, channel, mode,
		original_text, final_text, status, error_kind, error_message, output_count,
		enqueued_at, started_at, finished_at
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		entry.RequestID,
		nullableString(entry.CorrelationID),
		nullableString(entry.PromptID),
		entry.Profile,
		nullableString(entry.Requester),
		nullableString(entry.Channel),
		nullableString(entry.Mode),
		nullableString(entry.OriginalText),
		nullableString(entry.FinalText),
		entry.Status,
		nullableString(entry.ErrorKind),
		nullableString(entry.ErrorMessage),
		entry.OutputCount,
		nullableTime(entry.EnqueuedAt),
		nullableTime(entry.StartedAt),
		nullableTime(&finished),
	)
	if err != nil {
		return 0, fmt.Errorf("record history: %w", err)
	}
	return res.LastInsertId()
}

// Recent returns the newest entries first. A non-positive limit falls back to
// DefaultRecentLimit.
func (s *Store) Recent(ctx context.Context, limit int) ([]Entry, error) {
	ctx = ensureContext(ctx)
	if limit <= 0 {
		limit = DefaultRecentLimit
	}
	if limit > maxRecentLimit {
		limit = maxRecentLimit
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+entryColumns+` FROM jobs ORDER BY finished_at DESC, id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list history: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

// Get returns the entry recorded for requestID, or nil when absent.
func (s *Store) Get(ctx context.Context, requestID string) (*Entry, error) {
	ctx = ensureContext(ctx)
	row := s.db.QueryRowContext(ctx, `SELECT `+entryColumns+` FROM jobs WHERE request_id = ?`, requestID)
	entry, err := scanEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &entry, nil
}

// Stats returns a count of entries grouped by status.
func (s *Store) Stats(ctx context.Context) (map[queue.Status]int, error) {
	ctx = ensureContext(ctx)
	rows, err := s.db.QueryContext(ctx, `SELECT status, COUNT(1) FROM jobs GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("history stats: %w", err)
	}
	defer rows.Close()

	stats := make(map[queue.Status]int)
	for rows.Next() {
		var status queue.Status
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, err
		}
		stats[status] = count
	}
	return stats, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanEntry(row scanner) (Entry, error) {
	var (
		entry                                       Entry
		correlationID, promptID, requester, channel sql.NullString
		mode, originalText, finalText               sql.NullString
		errorKind, errorMessage                     sql.NullString
		enqueuedRaw, startedRaw                     sql.NullString
		finishedRaw                                 string
	)
	if err := row.Scan(
		&entry.ID,
		&entry.RequestID,
		&correlationID,
		&promptID,
		&entry.Profile,
		&requester,
		&channel,
		&mode,
		&originalText,
		&finalText,
		&entry.Status,
		&errorKind,
		&errorMessage,
		&entry.OutputCount,
		&enqueuedRaw,
		&startedRaw,
		&finishedRaw,
	); err != nil {
		return Entry{}, err
	}
	entry.CorrelationID = correlationID.String
	entry.PromptID = promptID.String
	entry.Requester = requester.String
	entry.Channel = channel.String
	entry.Mode = mode.String
	entry.OriginalText = originalText.String
	entry.FinalText = finalText.String
	entry.ErrorKind = errorKind.String
	entry.ErrorMessage = errorMessage.String
	if enqueuedRaw.Valid {
		if t, err := parseTimeString(enqueuedRaw.String); err == nil {
			entry.EnqueuedAt = &t
		}
	}
	if startedRaw.Valid {
		if t, err := parseTimeString(startedRaw.String); err == nil {
			entry.StartedAt = &t
		}
	}
	if t, err := parseTimeString(finishedRaw); err == nil {
		entry.FinishedAt = t
	}
	return entry, nil
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}

func nullableTime(value *time.Time) any {
	if value == nil || value.IsZero() {
		return nil
	}
	return value.UTC().Format(time.RFC3339Nano)
}

func parseTimeString(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, errors.New("empty")
	}
	if t, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02 15:04:05", value)
}
