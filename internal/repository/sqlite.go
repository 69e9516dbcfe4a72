package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/xiaot623/gogo/convo/internal/domain"
)

// SQLiteStore persists conversations, messages, branches and events.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens dsn and migrates the schema.
func NewSQLiteStore(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// For in-memory SQLite, multiple connections create separate databases.
	// Keep a single connection to avoid schema/data disappearing across goroutines.
	if dsn == ":memory:" || strings.Contains(dsn, "mode=memory") {
		db.SetMaxOpenConns(1)
		db.SetMaxIdleConns(1)
	}

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	store := &SQLiteStore{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return store, nil
}

func (s *SQLiteStore) migrate() error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS conversations (
			conversation_id TEXT PRIMARY KEY,
			user_id TEXT NOT NULL,
			title TEXT NOT NULL DEFAULT '',
			active INTEGER NOT NULL DEFAULT 1,
			pinned INTEGER NOT NULL DEFAULT 0,
			archived INTEGER NOT NULL DEFAULT 0,
			message_count INTEGER NOT NULL DEFAULT 0,
			token_total INTEGER NOT NULL DEFAULT 0,
			last_activity_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE INDEX IF NOT EXISTS idx_conversations_user ON conversations(user_id, last_activity_at)`,
		`CREATE TABLE IF NOT EXISTS messages (
			message_id TEXT PRIMARY KEY,
			conversation_id TEXT NOT NULL,
			role TEXT NOT NULL,
			content TEXT NOT NULL,
			branch_id TEXT,
			parent_message_id TEXT,
			created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			metadata TEXT,
			FOREIGN KEY (conversation_id) REFERENCES conversations(conversation_id)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_messages_conversation ON messages(conversation_id, created_at)`,
		`CREATE TABLE IF NOT EXISTS branches (
			branch_id TEXT PRIMARY KEY,
			conversation_id TEXT NOT NULL,
			parent_message_id TEXT NOT NULL,
			label TEXT NOT NULL DEFAULT '',
			depth INTEGER NOT NULL DEFAULT 1,
			created_by TEXT,
			created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			FOREIGN KEY (conversation_id) REFERENCES conversations(conversation_id)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_branches_conversation ON branches(conversation_id)`,
		`CREATE TABLE IF NOT EXISTS events (
			event_id TEXT PRIMARY KEY,
			conversation_id TEXT NOT NULL,
			user_id TEXT,
			ts INTEGER NOT NULL,
			type TEXT NOT NULL,
			payload TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS idx_events_conversation ON events(conversation_id, ts)`,
	}

	for _, m := range migrations {
		if _, err := s.db.Exec(m); err != nil {
			return fmt.Errorf("migration failed: %w\n%s", err, m)
		}
	}

	// Columns added after the first release (SQLite has limited ALTER TABLE support).
	if err := s.ensureColumn("messages", "tokens", "ALTER TABLE messages ADD COLUMN tokens INTEGER NOT NULL DEFAULT 0"); err != nil {
		return err
	}
	if err := s.ensureColumn("messages", "reaction_count", "ALTER TABLE messages ADD COLUMN reaction_count INTEGER NOT NULL DEFAULT 0"); err != nil {
		return err
	}
	if _, err := s.db.Exec(`CREATE INDEX IF NOT EXISTS idx_messages_branch ON messages(branch_id)`); err != nil {
		return err
	}
	return nil
}

func (s *SQLiteStore) ensureColumn(tableName, columnName, ddl string) error {
	rows, err := s.db.Query(fmt.Sprintf("PRAGMA table_info(%s)", tableName))
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var cid int
		var name, ctype string
		var notnull int
		var dfltValue sql.NullString
		var pk int
		if err := rows.Scan(&cid, &name, &ctype, &notnull, &dfltValue, &pk); err != nil {
			return err
		}
		if name == columnName {
			return nil
		}
	}
	if err := rows.Err(); err != nil {
		return err
	}

	_, err = s.db.Exec(ddl)
	return err
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Ping checks the database is reachable.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// CreateConversation inserts a conversation.
func (s *SQLiteStore) CreateConversation(ctx context.Context, c *domain.Conversation) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO conversations (conversation_id, user_id, title, active, pinned, archived, message_count, token_total, last_activity_at, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		c.ConversationID, c.UserID, c.Title, c.Active, c.Pinned, c.Archived, c.MessageCount, c.TokenTotal, c.LastActivityAt, c.CreatedAt)
	return err
}

const conversationColumns = `conversation_id, user_id, title, active, pinned, archived, message_count, token_total, last_activity_at, created_at`

func scanConversation(row interface{ Scan(...any) error }) (*domain.Conversation, error) {
	var c domain.Conversation
	err := row.Scan(&c.ConversationID, &c.UserID, &c.Title, &c.Active, &c.Pinned, &c.Archived,
		&c.MessageCount, &c.TokenTotal, &c.LastActivityAt, &c.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// GetConversation retrieves a conversation by ID.
func (s *SQLiteStore) GetConversation(ctx context.Context, conversationID string) (*domain.Conversation, error) {
	c, err := scanConversation(s.db.QueryRowContext(ctx,
		`SELECT `+conversationColumns+` FROM conversations WHERE conversation_id = ?`, conversationID))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return c, err
}

// FindConversation returns the conversation only if userID owns it.
func (s *SQLiteStore) FindConversation(ctx context.Context, conversationID, userID string) (*domain.Conversation, error) {
	c, err := scanConversation(s.db.QueryRowContext(ctx,
		`SELECT `+conversationColumns+` FROM conversations WHERE conversation_id = ? AND user_id = ?`, conversationID, userID))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return c, err
}

// ListConversations returns a user's conversations, most recently active first.
func (s *SQLiteStore) ListConversations(ctx context.Context, userID string, includeArchived bool, limit int) ([]domain.Conversation, error) {
	query := `SELECT ` + conversationColumns + ` FROM conversations WHERE user_id = ?`
	if !includeArchived {
		query += ` AND archived = 0`
	}
	query += ` ORDER BY pinned DESC, last_activity_at DESC`
	if limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", limit)
	}

	rows, err := s.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Conversation
	for rows.Next() {
		c, err := scanConversation(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *c)
	}
	return out, rows.Err()
}

// UpdateConversationCounters adds to the message and token counters and
// bumps the last activity time.
func (s *SQLiteStore) UpdateConversationCounters(ctx context.Context, conversationID string, messages, tokens int, at time.Time) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE conversations SET message_count = message_count + ?, token_total = token_total + ?, last_activity_at = ? WHERE conversation_id = ?`,
		messages, tokens, at, conversationID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("conversation %s not found", conversationID)
	}
	return nil
}

// UpdateConversationFlags sets the pinned and archived flags. A nil flag is left as is.
func (s *SQLiteStore) UpdateConversationFlags(ctx context.Context, conversationID string, pinned, archived *bool) error {
	var sets []string
	var args []interface{}
	if pinned != nil {
		sets = append(sets, "pinned = ?")
		args = append(args, *pinned)
	}
	if archived != nil {
		sets = append(sets, "archived = ?", "active = ?")
		args = append(args, *archived, !*archived)
	}
	if len(sets) == 0 {
		return nil
	}
	args = append(args, conversationID)
	_, err := s.db.ExecContext(ctx,
		`UPDATE conversations SET `+strings.Join(sets, ", ")+` WHERE conversation_id = ?`, args...)
	return err
}

// DeleteConversation removes a conversation with its messages and branches.
func (s *SQLiteStore) DeleteConversation(ctx context.Context, conversationID string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, q := range []string{
		`DELETE FROM messages WHERE conversation_id = ?`,
		`DELETE FROM branches WHERE conversation_id = ?`,
		`DELETE FROM conversations WHERE conversation_id = ?`,
	} {
		if _, err := tx.ExecContext(ctx, q, conversationID); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// CreateMessage inserts a message.
func (s *SQLiteStore) CreateMessage(ctx context.Context, m *domain.Message) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO messages (message_id, conversation_id, role, content, branch_id, parent_message_id, tokens, reaction_count, created_at, metadata)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		m.MessageID, m.ConversationID, m.Role, m.Content, nullString(m.BranchID), nullString(m.ParentMessageID),
		m.Tokens, m.ReactionCount, m.CreatedAt, nullStringBytes(m.Metadata))
	return err
}

const messageColumns = `message_id, conversation_id, role, content, branch_id, parent_message_id, tokens, reaction_count, created_at, metadata`

func scanMessage(row interface{ Scan(...any) error }) (*domain.Message, error) {
	var m domain.Message
	var branchID, parentID, metadata sql.NullString
	if err := row.Scan(&m.MessageID, &m.ConversationID, &m.Role, &m.Content, &branchID, &parentID,
		&m.Tokens, &m.ReactionCount, &m.CreatedAt, &metadata); err != nil {
		return nil, err
	}
	m.BranchID = branchID.String
	m.ParentMessageID = parentID.String
	if metadata.Valid {
		m.Metadata = json.RawMessage(metadata.String)
	}
	return &m, nil
}

// GetMessage retrieves a message by ID.
func (s *SQLiteStore) GetMessage(ctx context.Context, messageID string) (*domain.Message, error) {
	m, err := scanMessage(s.db.QueryRowContext(ctx,
		`SELECT `+messageColumns+` FROM messages WHERE message_id = ?`, messageID))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return m, err
}

// ListMessages returns every message of a conversation across all branches, oldest first.
func (s *SQLiteStore) ListMessages(ctx context.Context, conversationID string) ([]domain.Message, error) {
	return s.queryMessages(ctx, `SELECT `+messageColumns+` FROM messages WHERE conversation_id = ? ORDER BY created_at ASC, rowid ASC`, conversationID)
}

// ListBranchMessages returns the messages of one line; an empty branchID is the trunk.
func (s *SQLiteStore) ListBranchMessages(ctx context.Context, conversationID, branchID string, limit int) ([]domain.Message, error) {
	query := `SELECT ` + messageColumns + ` FROM messages WHERE conversation_id = ?`
	args := []interface{}{conversationID}
	if branchID == "" {
		query += ` AND branch_id IS NULL`
	} else {
		query += ` AND branch_id = ?`
		args = append(args, branchID)
	}
	query += ` ORDER BY created_at ASC, rowid ASC`
	if limit > 0 {
		// Newest limit messages, still returned oldest first.
		query = `SELECT * FROM (` + strings.Replace(query, "ASC, rowid ASC", "DESC, rowid DESC", 1) +
			fmt.Sprintf(" LIMIT %d", limit) + `) ORDER BY created_at ASC`
	}
	return s.queryMessages(ctx, query, args...)
}

func (s *SQLiteStore) queryMessages(ctx context.Context, query string, args ...interface{}) ([]domain.Message, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var messages []domain.Message
	for rows.Next() {
		m, err := scanMessage(rows)
		if err != nil {
			return nil, err
		}
		messages = append(messages, *m)
	}
	return messages, rows.Err()
}

// DeleteMessage removes one message. Used to compensate a half-written turn.
func (s *SQLiteStore) DeleteMessage(ctx context.Context, messageID string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM messages WHERE message_id = ?`, messageID)
	return err
}

// AddReaction adjusts a message's reaction count, never below zero.
func (s *SQLiteStore) AddReaction(ctx context.Context, messageID string, delta int) (int, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE messages SET reaction_count = MAX(0, reaction_count + ?) WHERE message_id = ?`, delta, messageID)
	if err != nil {
		return 0, err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return 0, sql.ErrNoRows
	}
	var count int
	err = s.db.QueryRowContext(ctx, `SELECT reaction_count FROM messages WHERE message_id = ?`, messageID).Scan(&count)
	return count, err
}

// CreateBranch inserts a branch.
func (s *SQLiteStore) CreateBranch(ctx context.Context, b *domain.Branch) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO branches (branch_id, conversation_id, parent_message_id, label, depth, created_by, created_at) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		b.BranchID, b.ConversationID, b.ParentMessageID, b.Label, b.Depth, nullString(b.CreatedBy), b.CreatedAt)
	return err
}

const branchColumns = `branch_id, conversation_id, parent_message_id, label, depth, created_by, created_at`

func scanBranch(row interface{ Scan(...any) error }) (*domain.Branch, error) {
	var b domain.Branch
	var createdBy sql.NullString
	if err := row.Scan(&b.BranchID, &b.ConversationID, &b.ParentMessageID, &b.Label, &b.Depth, &createdBy, &b.CreatedAt); err != nil {
		return nil, err
	}
	b.CreatedBy = createdBy.String
	return &b, nil
}

// GetBranch retrieves a branch by ID.
func (s *SQLiteStore) GetBranch(ctx context.Context, branchID string) (*domain.Branch, error) {
	b, err := scanBranch(s.db.QueryRowContext(ctx, `SELECT `+branchColumns+` FROM branches WHERE branch_id = ?`, branchID))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return b, err
}

// ListBranches returns a conversation's branches, oldest first.
func (s *SQLiteStore) ListBranches(ctx context.Context, conversationID string) ([]domain.Branch, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+branchColumns+` FROM branches WHERE conversation_id = ? ORDER BY created_at ASC, rowid ASC`, conversationID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Branch
	for rows.Next() {
		b, err := scanBranch(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *b)
	}
	return out, rows.Err()
}

// CountBranches counts a conversation's branches.
func (s *SQLiteStore) CountBranches(ctx context.Context, conversationID string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM branches WHERE conversation_id = ?`, conversationID).Scan(&n)
	return n, err
}

// DeleteBranch removes a branch and its own messages and returns how many
// messages went with it. Child branches are not touched.
func (s *SQLiteStore) DeleteBranch(ctx context.Context, branchID string) (int64, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `DELETE FROM messages WHERE branch_id = ?`, branchID)
	if err != nil {
		return 0, err
	}
	n, _ := res.RowsAffected()
	if _, err := tx.ExecContext(ctx, `DELETE FROM branches WHERE branch_id = ?`, branchID); err != nil {
		return 0, err
	}
	return n, tx.Commit()
}

// CreateEvent appends an event.
func (s *SQLiteStore) CreateEvent(ctx context.Context, event *domain.Event) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO events (event_id, conversation_id, user_id, ts, type, payload) VALUES (?, ?, ?, ?, ?, ?)`,
		event.EventID, event.ConversationID, nullString(event.UserID), event.Ts, event.Type, nullStringBytes(event.Payload))
	return err
}

// ListEvents retrieves events for a conversation.
func (s *SQLiteStore) ListEvents(ctx context.Context, conversationID string, afterTs int64, types []string, limit int) ([]domain.Event, error) {
	query := `SELECT event_id, conversation_id, user_id, ts, type, payload FROM events WHERE conversation_id = ?`
	args := []interface{}{conversationID}

	if afterTs > 0 {
		query += ` AND ts > ?`
		args = append(args, afterTs)
	}

	if len(types) > 0 {
		placeholders := make([]string, len(types))
		for i, t := range types {
			placeholders[i] = "?"
			args = append(args, t)
		}
		query += fmt.Sprintf(" AND type IN (%s)", strings.Join(placeholders, ","))
	}

	query += ` ORDER BY ts ASC`
	if limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []domain.Event
	for rows.Next() {
		var event domain.Event
		var userID, payload sql.NullString
		if err := rows.Scan(&event.EventID, &event.ConversationID, &userID, &event.Ts, &event.Type, &payload); err != nil {
			return nil, err
		}
		event.UserID = userID.String
		if payload.Valid {
			event.Payload = json.RawMessage(payload.String)
		}
		events = append(events, event)
	}
	return events, rows.Err()
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func nullStringBytes(b []byte) sql.NullString {
	if len(b) == 0 {
		return sql.NullString{}
	}
	return sql.NullString{String: string(b), Valid: true}
}
