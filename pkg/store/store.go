// Package store provides SQLite-backed persistence for users and rooms.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/NicolasHaas/roomchat/pkg/crypto"
	"github.com/NicolasHaas/roomchat/pkg/model"
)

const dbTimeLayout = "2006-01-02 15:04:05"

// pragmas are applied by the driver to every pooled connection.
const pragmas = "?_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"

// Store provides database access for users and rooms.
type Store struct {
	db   *sql.DB
	opts options
}

// New opens (or creates) a SQLite database and runs migrations.
func New(dbPath string, opts ...Option) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath+pragmas)
	if err != nil {
		return nil, fmt.Errorf("store: open db: %w", err)
	}
	// SQLite allows a single writer.
	db.SetMaxOpenConns(1)
	if err := db.PingContext(context.Background()); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("store: open db: %w", err)
	}

	s := &Store{db: db, opts: buildOptions(opts)}
	if err := s.migrate(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("store: migrate: %w", err)
	}
	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	const schema = `
	CREATE TABLE IF NOT EXISTS users (
		id            INTEGER PRIMARY KEY AUTOINCREMENT,
		username      TEXT    NOT NULL UNIQUE CHECK(length(username) > 0 AND length(username) <= 31),
		password_hash TEXT    NOT NULL,
		created_at    TEXT    NOT NULL DEFAULT (datetime('now'))
	);

	CREATE TABLE IF NOT EXISTS rooms (
		id         TEXT    PRIMARY KEY CHECK(length(id) = 36),
		name       TEXT    NOT NULL CHECK(length(name) > 0 AND length(name) <= 63),
		owner_id   INTEGER REFERENCES users(id) ON DELETE SET NULL,
		created_at TEXT    NOT NULL DEFAULT (datetime('now'))
	);
	`
	ctx := context.Background()
	if err := s.ensureSchemaMigrations(ctx); err != nil {
		return err
	}
	currentVersion, err := s.getSchemaVersion(ctx)
	if err != nil {
		return err
	}

	migrations := []struct {
		version      int
		statements   []string
		ignoreErrors bool
	}{
		{
			version:    1,
			statements: []string{schema},
		},
		{
			version: 2,
			statements: []string{
				"CREATE INDEX IF NOT EXISTS idx_rooms_name ON rooms(name)",
			},
			ignoreErrors: true,
		},
	}

	for _, m := range migrations {
		if m.version <= currentVersion {
			continue
		}
		for _, stmt := range m.statements {
			if err := s.execMigration(ctx, stmt, m.ignoreErrors); err != nil {
				return err
			}
		}
		if err := s.setSchemaVersion(ctx, m.version); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) ensureSchemaMigrations(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, "CREATE TABLE IF NOT EXISTS schema_migrations (version INTEGER NOT NULL)"); err != nil {
		return fmt.Errorf("store: create schema_migrations: %w", err)
	}
	var count int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM schema_migrations").Scan(&count); err != nil {
		return fmt.Errorf("store: check schema_migrations: %w", err)
	}
	if count == 0 {
		if _, err := s.db.ExecContext(ctx, "INSERT INTO schema_migrations (version) VALUES (0)"); err != nil {
			return fmt.Errorf("store: init schema_migrations: %w", err)
		}
	}
	return nil
}

func (s *Store) getSchemaVersion(ctx context.Context) (int, error) {
	var version int
	if err := s.db.QueryRowContext(ctx, "SELECT version FROM schema_migrations LIMIT 1").Scan(&version); err != nil {
		return 0, fmt.Errorf("store: read schema version: %w", err)
	}
	return version, nil
}

func (s *Store) setSchemaVersion(ctx context.Context, version int) error {
	if _, err := s.db.ExecContext(ctx, "UPDATE schema_migrations SET version = ?", version); err != nil {
		return fmt.Errorf("store: update schema version: %w", err)
	}
	return nil
}

func (s *Store) execMigration(ctx context.Context, stmt string, ignoreErrors bool) error {
	if _, err := s.db.ExecContext(ctx, stmt); err != nil {
		if ignoreErrors {
			return nil
		}
		return fmt.Errorf("store: migrate: %w", err)
	}
	return nil
}

func formatDBTime(t time.Time) string {
	return t.UTC().Format(dbTimeLayout)
}

func parseDBTime(value string) (time.Time, error) {
	return time.ParseInLocation(dbTimeLayout, value, time.UTC)
}

func isUniqueViolation(err error) bool {
	var se *sqlite.Error
	if !errors.As(err, &se) {
		return false
	}
	switch se.Code() {
	case sqlite3.SQLITE_CONSTRAINT_UNIQUE, sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY:
		return true
	case sqlite3.SQLITE_CONSTRAINT:
		// connection without extended result codes
		return strings.Contains(se.Error(), "UNIQUE")
	}
	return false
}

// ---- Users ----

// RegisterUser validates the credentials, hashes the password and inserts the user.
// The UNIQUE constraint on username decides concurrent registrations of one name.
func (s *Store) RegisterUser(username, password string) (int64, error) {
	if err := validateCredentials(username, password); err != nil {
		return 0, fmt.Errorf("store: register user: %w", err)
	}
	hash, err := crypto.HashPasswordWith(password, s.opts.hashParams)
	if err != nil {
		return 0, fmt.Errorf("store: register user: %w", err)
	}
	res, err := s.db.ExecContext(context.Background(),
		"INSERT INTO users (username, password_hash, created_at) VALUES (?, ?, ?)",
		username, hash, formatDBTime(time.Now()))
	if err != nil {
		if isUniqueViolation(err) {
			return 0, fmt.Errorf("store: register user: %w", model.ErrUserExists)
		}
		return 0, fmt.Errorf("store: register user: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("store: register user: %w", err)
	}
	return id, nil
}

// Authenticate checks a password against the stored hash.
func (s *Store) Authenticate(username, password string) (bool, error) {
	u, err := s.GetUserByUsername(username)
	if err != nil {
		return false, err
	}
	if u == nil {
		return false, nil
	}
	ok, err := crypto.VerifyPassword(password, u.PasswordHash)
	if err != nil {
		return false, fmt.Errorf("store: authenticate %q: %w", username, err)
	}
	return ok, nil
}

// GetUserID returns the ID of a user.
func (s *Store) GetUserID(username string) (int64, error) {
	var id int64
	err := s.db.QueryRowContext(context.Background(), "SELECT id FROM users WHERE username = ?", username).Scan(&id)
	if err == sql.ErrNoRows {
		return 0, model.ErrUserNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("store: get user id: %w", err)
	}
	return id, nil
}

// GetUserByUsername retrieves a user by username.
func (s *Store) GetUserByUsername(username string) (*model.User, error) {
	u := &model.User{}
	var createdAt string
	err := s.db.QueryRowContext(context.Background(), "SELECT id, username, password_hash, created_at FROM users WHERE username = ?", username).
		Scan(&u.ID, &u.Username, &u.PasswordHash, &createdAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("store: get user: %w", err)
	}
	if u.CreatedAt, err = parseDBTime(createdAt); err != nil {
		return nil, fmt.Errorf("store: get user: %w", err)
	}
	return u, nil
}

// ListUsers returns all users.
func (s *Store) ListUsers() ([]model.User, error) {
	rows, err := s.db.QueryContext(context.Background(), "SELECT id, username, password_hash, created_at FROM users ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("store: list users: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var users []model.User
	for rows.Next() {
		var u model.User
		var createdAt string
		if err := rows.Scan(&u.ID, &u.Username, &u.PasswordHash, &createdAt); err != nil {
			return nil, fmt.Errorf("store: scan user: %w", err)
		}
		if u.CreatedAt, err = parseDBTime(createdAt); err != nil {
			return nil, fmt.Errorf("store: scan user: %w", err)
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

// ---- Rooms ----

// CreateRoom stores a new room under a generated id.
func (s *Store) CreateRoom(name string, ownerID int64) (string, error) {
	room := model.NewRoom(name, ownerID)
	if err := s.InsertRoom(room); err != nil {
		return "", err
	}
	return room.ID, nil
}

// InsertRoom stores a room with the id already set. CreatedAt is filled in when zero.
func (s *Store) InsertRoom(room *model.Room) error {
	if err := room.Validate(); err != nil {
		return fmt.Errorf("store: insert room: %w", err)
	}
	if room.CreatedAt.IsZero() {
		room.CreatedAt = time.Now().UTC().Truncate(time.Second)
	}
	owner := sql.NullInt64{Int64: room.OwnerID, Valid: room.OwnerID != 0}
	_, err := s.db.ExecContext(context.Background(),
		"INSERT INTO rooms (id, name, owner_id, created_at) VALUES (?, ?, ?, ?)",
		room.ID, room.Name, owner, formatDBTime(room.CreatedAt))
	if err != nil {
		return fmt.Errorf("store: insert room: %w", err)
	}
	return nil
}

const roomColumns = "id, name, owner_id, created_at"

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRoom(row rowScanner) (*model.Room, error) {
	r := &model.Room{}
	var owner sql.NullInt64
	var createdAt string
	if err := row.Scan(&r.ID, &r.Name, &owner, &createdAt); err != nil {
		return nil, err
	}
	r.OwnerID = owner.Int64
	parsed, err := parseDBTime(createdAt)
	if err != nil {
		return nil, err
	}
	r.CreatedAt = parsed
	return r, nil
}

// GetRoom retrieves a room by id.
func (s *Store) GetRoom(id string) (*model.Room, error) {
	r, err := scanRoom(s.db.QueryRowContext(context.Background(), "SELECT "+roomColumns+" FROM rooms WHERE id = ?", id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("store: get room: %w", err)
	}
	return r, nil
}

// GetRoomByName retrieves the oldest room with the given name.
func (s *Store) GetRoomByName(name string) (*model.Room, error) {
	r, err := scanRoom(s.db.QueryRowContext(context.Background(), "SELECT "+roomColumns+" FROM rooms WHERE name = ? ORDER BY rowid LIMIT 1", name))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("store: get room by name: %w", err)
	}
	return r, nil
}

// RoomExists reports whether a room id is known.
func (s *Store) RoomExists(id string) (bool, error) {
	var n int
	if err := s.db.QueryRowContext(context.Background(), "SELECT COUNT(*) FROM rooms WHERE id = ?", id).Scan(&n); err != nil {
		return false, fmt.Errorf("store: room exists: %w", err)
	}
	return n > 0, nil
}

// GetRoomName returns the name of a room.
func (s *Store) GetRoomName(id string) (string, error) {
	var name string
	err := s.db.QueryRowContext(context.Background(), "SELECT name FROM rooms WHERE id = ?", id).Scan(&name)
	if err == sql.ErrNoRows {
		return "", model.ErrRoomNotFound
	}
	if err != nil {
		return "", fmt.Errorf("store: get room name: %w", err)
	}
	return name, nil
}

// ListRooms returns all rooms in creation order.
func (s *Store) ListRooms() ([]model.Room, error) {
	rows, err := s.db.QueryContext(context.Background(), "SELECT "+roomColumns+" FROM rooms ORDER BY rowid")
	if err != nil {
		return nil, fmt.Errorf("store: list rooms: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var rooms []model.Room
	for rows.Next() {
		r, err := scanRoom(rows)
		if err != nil {
			return nil, fmt.Errorf("store: scan room: %w", err)
		}
		rooms = append(rooms, *r)
	}
	return rooms, rows.Err()
}
