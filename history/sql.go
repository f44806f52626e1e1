package history

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	// SQL drivers
	_ "github.com/go-sql-driver/mysql"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
)

// SQLStore implements Store using a SQL database.
// Concurrency is handled by database-level locking (transactions).
type SQLStore struct {
	db      *sql.DB
	dialect string
}

const createMessagesSchemaSQL = `
CREATE TABLE IF NOT EXISTS conversation_messages (
    user_id VARCHAR(255) NOT NULL,
    session_id VARCHAR(255) NOT NULL,
    sequence_num INTEGER NOT NULL,
    role VARCHAR(50) NOT NULL,
    content TEXT NOT NULL,
    created_at TIMESTAMP NOT NULL,
    PRIMARY KEY (user_id, session_id, sequence_num)
)`

const createMessagesIndexSQL = `
CREATE INDEX IF NOT EXISTS idx_messages_created_at ON conversation_messages(user_id, session_id, created_at)`

// NewSQLStore creates a SQL-backed history store and initializes its
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
	for _, stmt := range []string{createMessagesSchemaSQL, createMessagesIndexSQL} {
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

// Append adds a message to the (userID, sessionID) conversation.
func (s *SQLStore) Append(ctx context.Context, userID, sessionID string, msg Message) error {
	sessionID = NormalizeSessionID(sessionID)
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now()
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback() // Rollback if not committed

	seqQuery := `SELECT COALESCE(MAX(sequence_num), 0) + 1 FROM conversation_messages
              WHERE user_id = ? AND session_id = ?`
	if s.dialect == "postgres" {
		seqQuery = convertToPostgresPlaceholders(seqQuery)
	}

	var seqNum int
	if err := tx.QueryRowContext(ctx, seqQuery, userID, sessionID).Scan(&seqNum); err != nil {
		return fmt.Errorf("failed to get sequence number: %w", err)
	}

	insertQuery := `INSERT INTO conversation_messages (user_id, session_id, sequence_num, role, content, created_at)
              VALUES (?, ?, ?, ?, ?, ?)`
	if s.dialect == "postgres" {
		insertQuery = convertToPostgresPlaceholders(insertQuery)
	}

	if _, err := tx.ExecContext(ctx, insertQuery, userID, sessionID, seqNum, msg.Role, msg.Content, msg.CreatedAt); err != nil {
		return fmt.Errorf("failed to insert message: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// Recent returns up to count most recent messages in chronological order.
func (s *SQLStore) Recent(ctx context.Context, userID, sessionID string, count int) ([]Message, error) {
	sessionID = NormalizeSessionID(sessionID)

	var query string
	var args []any

	if count > 0 {
		// Subquery fetches the N most recent, outer query restores order
		query = `SELECT role, content, created_at FROM (
			SELECT role, content, created_at, sequence_num FROM conversation_messages
			WHERE user_id = ? AND session_id = ?
			ORDER BY sequence_num DESC LIMIT ?
		) sub ORDER BY sequence_num ASC`
		args = []any{userID, sessionID, count}
	} else {
		query = `SELECT role, content, created_at FROM conversation_messages
              WHERE user_id = ? AND session_id = ?
              ORDER BY sequence_num ASC`
		args = []any{userID, sessionID}
	}

	if s.dialect == "postgres" {
		query = convertToPostgresPlaceholders(query)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query messages: %w", err)
	}
	defer rows.Close()

	var msgs []Message
	for rows.Next() {
		var msg Message
		if err := rows.Scan(&msg.Role, &msg.Content, &msg.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan message: %w", err)
		}
		msgs = append(msgs, msg)
	}
	return msgs, rows.Err()
}

// Clear removes the (userID, sessionID) conversation. Idempotent.
func (s *SQLStore) Clear(ctx context.Context, userID, sessionID string) error {
	sessionID = NormalizeSessionID(sessionID)

	query := `DELETE FROM conversation_messages WHERE user_id = ? AND session_id = ?`
	if s.dialect == "postgres" {
		query = convertToPostgresPlaceholders(query)
	}
	if _, err := s.db.ExecContext(ctx, query, userID, sessionID); err != nil {
		return fmt.Errorf("failed to clear conversation: %w", err)
	}
	return nil
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
