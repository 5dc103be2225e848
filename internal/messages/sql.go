package messages

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"

	"beacon/internal/config"
	"beacon/internal/constants"
	pkgerrors "beacon/pkg/errors"
	"beacon/pkg/metrics"
	"beacon/pkg/migrations"
	"beacon/pkg/models"
)

const (
	sqliteBusyCode          = 5
	busyRetryAttempts       = 5
	busyRetryInitialBackoff = 10 * time.Millisecond
	busyRetryMaxBackoff     = 200 * time.Millisecond
)

const messageColumns = `id, created_at, group_name, title, subtitle, body, icon, url, image, host, level, ttl_days, is_read, other`

// SQLStore persists messages in SQLite or PostgreSQL. Timestamps are stored as
// unix milliseconds so both drivers sort and compare them the same way.
type SQLStore struct {
	db     *sql.DB
	driver string
}

// Open connects to the database named by cfg.Driver and, when configured,
// applies the embedded migrations.
func Open(ctx context.Context, cfg config.DatabaseConfig) (*SQLStore, error) {
	driver := cfg.Driver
	if driver == "" {
		driver = "sqlite"
	}

	var (
		db  *sql.DB
		err error
	)
	switch driver {
	case "sqlite":
		db, err = openSQLite(cfg.SQLite.Path)
	case "postgres":
		db, err = openPostgres(cfg.Postgres)
	default:
		return nil, fmt.Errorf("unsupported database driver: %s", driver)
	}
	if err != nil {
		return nil, err
	}

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if cfg.RunMigrations || driver == "sqlite" {
		if err := migrations.Up(db, driver); err != nil {
			_ = db.Close()
			return nil, err
		}
	}

	return NewSQLStore(db, driver), nil
}

func NewSQLStore(db *sql.DB, driver string) *SQLStore {
	return &SQLStore{db: db, driver: driver}
}

func openSQLite(path string) (*sql.DB, error) {
	if path == "" {
		path = constants.DefaultSQLitePath
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create database dir: %w", err)
	}
	q := url.Values{}
	q.Add("_pragma", "journal_mode(WAL)")
	q.Add("_pragma", "busy_timeout(5000)")
	db, err := sql.Open("sqlite", "file:"+path+"?"+q.Encode())
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	return db, nil
}

func openPostgres(cfg config.PostgresConfig) (*sql.DB, error) {
	dsn := fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		cfg.User, cfg.Password, cfg.Host, cfg.Port, cfg.DBName, cfg.SSLMode,
	)
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	return db, nil
}

func (s *SQLStore) Add(ctx context.Context, m models.PersistedMessage) error {
	var expires interface{}
	if at, ok := m.ExpiresAt(); ok {
		expires = at.UnixMilli()
	}

	query := `
		INSERT INTO messages (` + messageColumns + `, expires_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			created_at = excluded.created_at,
			group_name = excluded.group_name,
			title = excluded.title,
			subtitle = excluded.subtitle,
			body = excluded.body,
			icon = excluded.icon,
			url = excluded.url,
			image = excluded.image,
			host = excluded.host,
			level = excluded.level,
			ttl_days = excluded.ttl_days,
			is_read = excluded.is_read,
			other = excluded.other,
			expires_at = excluded.expires_at
	`
	_, err := s.exec(ctx, "add", query,
		m.ID, m.CreatedAt.UnixMilli(), m.Group, m.Title, m.Subtitle, m.Body,
		m.Icon, m.URL, m.Image, m.Host, m.Level, m.TTLDays, m.Read, m.Other, expires,
	)
	if err != nil {
		return fmt.Errorf("failed to add message: %w", err)
	}
	return nil
}

func (s *SQLStore) Get(ctx context.Context, id string) (*models.PersistedMessage, error) {
	start := time.Now()
	row := s.db.QueryRowContext(ctx, s.rebind(`SELECT `+messageColumns+` FROM messages WHERE id = ?`), id)
	m, err := scanMessage(row)
	if errors.Is(err, sql.ErrNoRows) {
		metrics.ObserveDatabaseQuery(s.driver, "get", nil, time.Since(start))
		return nil, pkgerrors.ErrNotFound.WithCause(err).WithMessage(fmt.Sprintf("message %s not found", id))
	}
	metrics.ObserveDatabaseQuery(s.driver, "get", err, time.Since(start))
	if err != nil {
		return nil, fmt.Errorf("failed to get message: %w", err)
	}
	return m, nil
}

func (s *SQLStore) List(ctx context.Context, f Filter) ([]models.PersistedMessage, error) {
	var (
		where []string
		args  []interface{}
	)
	if f.Group != "" {
		where = append(where, "group_name = ?")
		args = append(args, f.Group)
	}
	if f.UnreadOnly {
		where = append(where, "is_read = ?")
		args = append(args, false)
	}
	if f.Search != "" {
		like := "%" + f.Search + "%"
		where = append(where, "(title LIKE ? OR subtitle LIKE ? OR body LIKE ?)")
		args = append(args, like, like, like)
	}

	limit := f.Limit
	if limit <= 0 {
		limit = constants.DefaultLimit
	}
	if limit > constants.MaxLimit {
		limit = constants.MaxLimit
	}

	query := `SELECT ` + messageColumns + ` FROM messages`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	query += ` ORDER BY created_at DESC, id LIMIT ? OFFSET ?`
	args = append(args, limit, f.Offset)

	start := time.Now()
	rows, err := s.db.QueryContext(ctx, s.rebind(query), args...)
	if err != nil {
		metrics.ObserveDatabaseQuery(s.driver, "list", err, time.Since(start))
		return nil, fmt.Errorf("failed to list messages: %w", err)
	}
	defer rows.Close()

	var out []models.PersistedMessage
	for rows.Next() {
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("context cancelled: %w", ctx.Err())
		default:
		}
		m, err := scanMessage(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan message: %w", err)
		}
		out = append(out, *m)
	}
	err = rows.Err()
	metrics.ObserveDatabaseQuery(s.driver, "list", err, time.Since(start))
	if err != nil {
		return nil, fmt.Errorf("failed to list messages: %w", err)
	}
	return out, nil
}

func (s *SQLStore) UnreadCount(ctx context.Context) (int, error) {
	start := time.Now()
	var n int
	err := s.db.QueryRowContext(ctx, s.rebind(`SELECT COUNT(*) FROM messages WHERE is_read = ?`), false).Scan(&n)
	metrics.ObserveDatabaseQuery(s.driver, "unread_count", err, time.Since(start))
	if err != nil {
		return 0, fmt.Errorf("failed to count unread messages: %w", err)
	}
	return n, nil
}

func (s *SQLStore) MarkRead(ctx context.Context, id string) error {
	res, err := s.exec(ctx, "mark_read", `UPDATE messages SET is_read = ? WHERE id = ?`, true, id)
	if err != nil {
		return fmt.Errorf("failed to mark message read: %w", err)
	}
	return requireRow(res, id)
}

func (s *SQLStore) MarkAllRead(ctx context.Context) (int64, error) {
	res, err := s.exec(ctx, "mark_all_read", `UPDATE messages SET is_read = ? WHERE is_read = ?`, true, false)
	if err != nil {
		return 0, fmt.Errorf("failed to mark messages read: %w", err)
	}
	return res.RowsAffected()
}

func (s *SQLStore) Delete(ctx context.Context, id string) error {
	res, err := s.exec(ctx, "delete", `DELETE FROM messages WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete message: %w", err)
	}
	return requireRow(res, id)
}

func (s *SQLStore) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	res, err := s.exec(ctx, "sweep",
		`DELETE FROM messages WHERE expires_at IS NOT NULL AND expires_at < ?`, now.UnixMilli())
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired messages: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	metrics.AddSwept(n)
	return n, nil
}

func (s *SQLStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *SQLStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// DB exposes the handle for health checks.
func (s *SQLStore) DB() *sql.DB { return s.db }

func (s *SQLStore) exec(ctx context.Context, op, query string, args ...interface{}) (sql.Result, error) {
	query = s.rebind(query)
	start := time.Now()
	var (
		res     sql.Result
		execErr error
	)
	err := retryOnBusy(ctx, func() error {
		res, execErr = s.db.ExecContext(ctx, query, args...)
		return execErr
	})
	metrics.ObserveDatabaseQuery(s.driver, op, err, time.Since(start))
	if err != nil {
		return nil, err
	}
	return res, nil
}

// rebind turns ? placeholders into $n for postgres.
func (s *SQLStore) rebind(query string) string {
	if s.driver != "postgres" {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteString("$" + strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanMessage(row scanner) (*models.PersistedMessage, error) {
	var (
		m       models.PersistedMessage
		created int64
	)
	if err := row.Scan(
		&m.ID, &created, &m.Group, &m.Title, &m.Subtitle, &m.Body,
		&m.Icon, &m.URL, &m.Image, &m.Host, &m.Level, &m.TTLDays, &m.Read, &m.Other,
	); err != nil {
		return nil, err
	}
	m.CreatedAt = time.UnixMilli(created)
	return &m, nil
}

func requireRow(res sql.Result, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return pkgerrors.ErrNotFound.WithMessage(fmt.Sprintf("message %s not found", id))
	}
	return nil
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
