package persistence

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/lib/pq"
	"github.com/mattn/go-sqlite3"

	"github.com/molpadia/molpastudio/internal/domain/entity"
	"github.com/molpadia/molpastudio/internal/domain/repository"
	"github.com/molpadia/molpastudio/internal/logging"
)

// Default timeout for a single statement.
const defaultTimeout = 5 * time.Second

// Dialect captures the differences between the supported SQL databases.
type Dialect struct {
	Driver string
	// Numbered placeholders ($1, $2, ...) instead of "?".
	numbered bool
	schema   []string
}

var (
	SQLite = Dialect{
		Driver: "sqlite3",
		schema: []string{
			`CREATE TABLE IF NOT EXISTS videos (
				id TEXT PRIMARY KEY,
				public_id TEXT NOT NULL,
				title TEXT NOT NULL,
				description TEXT NOT NULL DEFAULT '',
				original_size INTEGER NOT NULL DEFAULT 0,
				compressed_size INTEGER NOT NULL DEFAULT 0,
				duration REAL NOT NULL DEFAULT -1,
				created_at INTEGER NOT NULL,
				updated_at INTEGER NOT NULL
			)`,
			`CREATE INDEX IF NOT EXISTS idx_videos_created_at ON videos(created_at DESC)`,
			`CREATE INDEX IF NOT EXISTS idx_videos_public_id ON videos(public_id)`,
			`CREATE TABLE IF NOT EXISTS users (
				id TEXT PRIMARY KEY,
				email TEXT NOT NULL UNIQUE,
				password_hash TEXT NOT NULL,
				created_at INTEGER NOT NULL
			)`,
		},
	}
	Postgres = Dialect{
		Driver:   "postgres",
		numbered: true,
		schema: []string{
			`CREATE TABLE IF NOT EXISTS videos (
				id TEXT PRIMARY KEY,
				public_id TEXT NOT NULL,
				title TEXT NOT NULL,
				description TEXT NOT NULL DEFAULT '',
				original_size BIGINT NOT NULL DEFAULT 0,
				compressed_size BIGINT NOT NULL DEFAULT 0,
				duration DOUBLE PRECISION NOT NULL DEFAULT -1,
				created_at BIGINT NOT NULL,
				updated_at BIGINT NOT NULL
			)`,
			`CREATE INDEX IF NOT EXISTS idx_videos_created_at ON videos(created_at DESC)`,
			`CREATE INDEX IF NOT EXISTS idx_videos_public_id ON videos(public_id)`,
			`CREATE TABLE IF NOT EXISTS users (
				id TEXT PRIMARY KEY,
				email TEXT NOT NULL UNIQUE,
				password_hash TEXT NOT NULL,
				created_at BIGINT NOT NULL
			)`,
		},
	}
	MySQL = Dialect{
		Driver: "mysql",
		schema: []string{
			`CREATE TABLE IF NOT EXISTS videos (
				id VARCHAR(64) PRIMARY KEY,
				public_id VARCHAR(255) NOT NULL,
				title VARCHAR(255) NOT NULL,
				description TEXT NOT NULL,
				original_size BIGINT NOT NULL DEFAULT 0,
				compressed_size BIGINT NOT NULL DEFAULT 0,
				duration DOUBLE NOT NULL DEFAULT -1,
				created_at BIGINT NOT NULL,
				updated_at BIGINT NOT NULL,
				INDEX idx_videos_created_at (created_at),
				INDEX idx_videos_public_id (public_id)
			)`,
			`CREATE TABLE IF NOT EXISTS users (
				id VARCHAR(64) PRIMARY KEY,
				email VARCHAR(255) NOT NULL UNIQUE,
				password_hash VARCHAR(255) NOT NULL,
				created_at BIGINT NOT NULL
			)`,
		},
	}
)

// Rewrite "?" placeholders for dialects that number them.
func (d Dialect) rebind(query string) string {
	if !d.numbered {
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

// Report whether err is a unique constraint violation in any supported driver.
func isUniqueViolation(err error) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique ||
			sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23505"
	}
	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) {
		return myErr.Number == 1062
	}
	return false
}

// SQLStore owns the connection shared by the SQL repositories.
type SQLStore struct {
	db      *sql.DB
	dialect Dialect
}

type SQLVideoRepository struct{ *SQLStore }

type SQLUserRepository struct{ *SQLStore }

var (
	_ repository.VideoRepository = SQLVideoRepository{}
	_ repository.UserRepository  = SQLUserRepository{}
)

func (s *SQLStore) Videos() SQLVideoRepository { return SQLVideoRepository{s} }

func (s *SQLStore) Users() SQLUserRepository { return SQLUserRepository{s} }

// OpenSQL connects to the database and creates the schema if needed.
func OpenSQL(ctx context.Context, dialect Dialect, dsn string) (*SQLStore, error) {
	if dialect.Driver == SQLite.Driver && !strings.Contains(dsn, "?") {
		dsn += "?_busy_timeout=5000&_journal_mode=WAL"
	}
	db, err := sql.Open(dialect.Driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	pingCtx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	s := &SQLStore{db: db, dialect: dialect}
	if err := s.migrate(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize database schema: %w", err)
	}
	logging.Info("%s database ready", dialect.Driver)
	return s, nil
}

func (s *SQLStore) migrate(ctx context.Context) error {
	for _, stmt := range s.dialect.schema {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

func (s *SQLStore) Close() error { return s.db.Close() }

func (s *SQLStore) Ping(ctx context.Context) error { return s.db.PingContext(ctx) }

const videoColumns = "id, public_id, title, description, original_size, compressed_size, duration, created_at, updated_at"

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanVideo(row scanner) (*entity.Video, error) {
	var (
		v                    entity.Video
		original, compressed int64
		duration             float64
		created, updated     int64
	)
	err := row.Scan(&v.Id, &v.PublicId, &v.Title, &v.Description, &original, &compressed, &duration, &created, &updated)
	if err != nil {
		return nil, err
	}
	v.OriginalSize = entity.Size(original)
	v.CompressedSize = entity.Size(compressed)
	v.Duration = entity.Seconds(duration)
	v.CreatedAt = time.UnixMilli(created).UTC()
	v.UpdatedAt = time.UnixMilli(updated).UTC()
	return &v, nil
}

// List all videos, newest first.
func (s SQLVideoRepository) List(ctx context.Context) ([]*entity.Video, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()
	rows, err := s.db.QueryContext(ctx, "SELECT "+videoColumns+" FROM videos ORDER BY created_at DESC, id")
	if err != nil {
		return nil, fmt.Errorf("failed to query videos: %w", err)
	}
	defer rows.Close()

	videos := []*entity.Video{}
	for rows.Next() {
		v, err := scanVideo(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan video: %w", err)
		}
		videos = append(videos, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating videos: %w", err)
	}
	return videos, nil
}

// Get the video by the video ID.
func (s SQLVideoRepository) GetById(ctx context.Context, id string) (*entity.Video, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()
	row := s.db.QueryRowContext(ctx, s.dialect.rebind("SELECT "+videoColumns+" FROM videos WHERE id = ?"), id)
	v, err := scanVideo(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read video %s: %w", id, err)
	}
	return v, nil
}

// Save an entity to the persistence, replacing an existing row with the same ID.
func (s SQLVideoRepository) Save(ctx context.Context, v *entity.Video) error {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, s.dialect.rebind("DELETE FROM videos WHERE id = ?"), v.Id); err != nil {
		return fmt.Errorf("failed to replace video %s: %w", v.Id, err)
	}
	_, err = tx.ExecContext(ctx, s.dialect.rebind("INSERT INTO videos ("+videoColumns+") VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)"),
		v.Id, v.PublicId, v.Title, v.Description,
		int64(v.OriginalSize), int64(v.CompressedSize), float64(v.Duration),
		v.CreatedAt.UnixMilli(), v.UpdatedAt.UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert video %s: %w", v.Id, err)
	}
	return tx.Commit()
}

// Delete the video by the video ID.
func (s SQLVideoRepository) Delete(ctx context.Context, id string) error {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()
	res, err := s.db.ExecContext(ctx, s.dialect.rebind("DELETE FROM videos WHERE id = ?"), id)
	if err != nil {
		return fmt.Errorf("failed to delete video %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if n == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func (s SQLVideoRepository) UpdateCompressedSize(ctx context.Context, publicId string, size int64) error {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()
	res, err := s.db.ExecContext(ctx, s.dialect.rebind("UPDATE videos SET compressed_size = ?, updated_at = ? WHERE public_id = ?"),
		size, time.Now().UnixMilli(), publicId)
	if err != nil {
		return fmt.Errorf("failed to update compressed size: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func (s SQLUserRepository) GetByEmail(ctx context.Context, email string) (*entity.User, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()
	var (
		u       entity.User
		created int64
	)
	err := s.db.QueryRowContext(ctx, s.dialect.rebind("SELECT id, email, password_hash, created_at FROM users WHERE email = ?"), email).
		Scan(&u.Id, &u.Email, &u.PasswordHash, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read user: %w", err)
	}
	u.CreatedAt = time.UnixMilli(created).UTC()
	return &u, nil
}

// Save a new user. Returns ErrDuplicate if the email is taken.
func (s SQLUserRepository) Save(ctx context.Context, u *entity.User) error {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()
	_, err := s.db.ExecContext(ctx, s.dialect.rebind("INSERT INTO users (id, email, password_hash, created_at) VALUES (?, ?, ?, ?)"),
		u.Id, u.Email, u.PasswordHash, u.CreatedAt.UnixMilli())
	if isUniqueViolation(err) {
		return repository.ErrDuplicate
	}
	if err != nil {
		return fmt.Errorf("failed to create user: %w", err)
	}
	return nil
}
