package credstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	// SQL drivers
	_ "github.com/go-sql-driver/mysql"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
)

// SQLStore implements Store using a SQL database.
// Concurrency is handled by database-level locking.
type SQLStore struct {
	db      *sql.DB
	dialect string
}

const createCredentialsSchemaSQL = `
CREATE TABLE IF NOT EXISTS credentials (
    service VARCHAR(255) NOT NULL,
    user_id VARCHAR(255) NOT NULL,
    payload_json TEXT NOT NULL,
    updated_at TIMESTAMP NOT NULL,
    PRIMARY KEY (service, user_id)
)`

const createCredentialsIndexSQL = `
CREATE INDEX IF NOT EXISTS idx_credentials_user ON credentials(user_id)`

// NewSQLStore creates a SQL-backed credential store and initializes its
// schema. Supported dialects: sqlite3, postgres, mysql.
func NewSQLStore(db *sql.DB, dialect string) (*SQLStore, error) {
	if db == nil {
		return nil, fmt.Errorf("database connection is required")
	}

	switch dialect {
	case "postgres", "mysql", "sqlite", "sqlite3":
		if dialect == "sqlite3" {
			dialect = "sqlite"
		}
	default:
		return nil, fmt.Errorf("unsupported dialect: %s (supported: postgres, mysql, sqlite)", dialect)
	}

	s := &SQLStore{db: db, dialect: dialect}
	if err := s.initSchema(); err != nil {
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return s, nil
}

// Open opens a database connection for the given driver and DSN and
// returns a store over it.
func Open(driver, dsn string) (*SQLStore, error) {
	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	return NewSQLStore(db, driver)
}

func (s *SQLStore) initSchema() error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	// Execute each statement separately for SQLite compatibility
	for _, stmt := range []string{createCredentialsSchemaSQL, createCredentialsIndexSQL} {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to execute schema statement: %w", err)
		}
	}
	return nil
}

// Close closes the database connection.
func (s *SQLStore) Close() error {
	return s.db.Close()
}

// Upsert stores or replaces the payload for (service, userID).
func (s *SQLStore) Upsert(ctx context.Context, service, userID string, payload map[string]string) error {
	if service == "" || userID == "" {
		return newStoreError("upsert", service, "service and user id are required", nil)
	}

	payloadJSON, err := json.Marshal(payload)
	if err != nil {
		return newStoreError("upsert", service, "failed to marshal payload", err)
	}

	_, err = s.db.ExecContext(ctx, s.upsertQuery(), service, userID, string(payloadJSON), time.Now())
	if err != nil {
		return newStoreError("upsert", service, "failed to write credential", err)
	}
	return nil
}

// Get returns the payload for (service, userID).
func (s *SQLStore) Get(ctx context.Context, service, userID string) (map[string]string, bool, error) {
	query := `SELECT payload_json FROM credentials WHERE service = ? AND user_id = ?`
	if s.dialect == "postgres" {
		query = convertToPostgresPlaceholders(query)
	}

	var payloadJSON string
	err := s.db.QueryRowContext(ctx, query, service, userID).Scan(&payloadJSON)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, newStoreError("get", service, "failed to read credential", err)
	}

	var payload map[string]string
	if err := json.Unmarshal([]byte(payloadJSON), &payload); err != nil {
		return nil, false, newStoreError("get", service, "failed to unmarshal payload", err)
	}
	return payload, true, nil
}

// Delete removes the record for (service, userID). Idempotent.
func (s *SQLStore) Delete(ctx context.Context, service, userID string) error {
	query := `DELETE FROM credentials WHERE service = ? AND user_id = ?`
	if s.dialect == "postgres" {
		query = convertToPostgresPlaceholders(query)
	}
	if _, err := s.db.ExecContext(ctx, query, service, userID); err != nil {
		return newStoreError("delete", service, "failed to delete credential", err)
	}
	return nil
}

func (s *SQLStore) upsertQuery() string {
	switch s.dialect {
	case "postgres":
		return `INSERT INTO credentials (service, user_id, payload_json, updated_at)
                VALUES ($1, $2, $3, $4)
                ON CONFLICT (service, user_id) DO UPDATE SET payload_json = $3, updated_at = $4`
	case "mysql":
		return `INSERT INTO credentials (service, user_id, payload_json, updated_at)
                VALUES (?, ?, ?, ?)
                ON DUPLICATE KEY UPDATE payload_json = VALUES(payload_json), updated_at = VALUES(updated_at)`
	default: // sqlite
		return `INSERT INTO credentials (service, user_id, payload_json, updated_at)
                VALUES (?, ?, ?, ?)
                ON CONFLICT (service, user_id) DO UPDATE SET payload_json = excluded.payload_json, updated_at = excluded.updated_at`
	}
}

// convertToPostgresPlaceholders converts ? to $1, $2, etc. in a single pass.
func convertToPostgresPlaceholders(query string) string {
	var out []byte
	paramNum := 1
	for i := 0; i < len(query); i++ {
		if query[i] == '?' {
			out = append(out, fmt.Sprintf("$%d", paramNum)...)
			paramNum++
		} else {
			out = append(out, query[i])
		}
	}
	return string(out)
}

// Compile-time interface check
var _ Store = (*SQLStore)(nil)
