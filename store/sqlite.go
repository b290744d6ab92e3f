package store

import (
	"database/sql"
	"time"

	"github.com/agusx1211/crewdeck/model"
	_ "modernc.org/sqlite"
)

type SQLiteStore struct {
	db            *sql.DB
	Conversations ConversationStore
	Messages      MessageStore
}

type sqliteConversationStore struct {
	db *sql.DB
}

type sqliteMessageStore struct {
	db *sql.DB
}

var _ ConversationStore = (*sqliteConversationStore)(nil)
var _ MessageStore = (*sqliteMessageStore)(nil)

type rowScanner interface {
	Scan(dest ...any) error
}

func OpenSQLite(path string) (*SQLiteStore, error) {

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	s := &SQLiteStore{db: db}
	s.Conversations = &sqliteConversationStore{db: db}
	s.Messages = &sqliteMessageStore{db: db}

	return s, nil
}

func (s *SQLiteStore) Close() error {

	return s.db.Close()
}

func initSchema(db *sql.DB) error {

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		return err
	}
	if _, err := db.Exec(schemaConversations); err != nil {
		return err
	}
	if _, err := db.Exec(schemaMessages); err != nil {
		return err
	}
	if _, err := db.Exec(schemaMessagesIndex); err != nil {
		return err
	}

	return nil
}

const schemaConversations = `
CREATE TABLE IF NOT EXISTS conversations (
	id TEXT PRIMARY KEY,
	title TEXT,
	created_at DATETIME
)`

const schemaMessages = `
CREATE TABLE IF NOT EXISTS messages (
	id TEXT PRIMARY KEY,
	conversation_id TEXT,
	role TEXT,
	kind TEXT,
	content TEXT,
	tool TEXT,
	tool_input TEXT,
	tool_output TEXT,
	agent_id TEXT,
	timestamp DATETIME,
	FOREIGN KEY(conversation_id) REFERENCES conversations(id) ON DELETE CASCADE
)`

const schemaMessagesIndex = `
CREATE INDEX IF NOT EXISTS idx_messages_conversation ON messages(conversation_id, timestamp)`

func (s *sqliteConversationStore) Create(c *model.Conversation) error {

	_, err := s.db.Exec(
		`INSERT INTO conversations (id, title, created_at) VALUES (?, ?, ?)`,
		c.ID,
		c.Title,
		timeToDB(c.CreatedAt),
	)
	return err
}

func (s *sqliteConversationStore) Get(id string) (*model.Conversation, error) {

	row := s.db.QueryRow(
		`SELECT id, title, created_at FROM conversations WHERE id = ?`,
		id,
	)
	return scanConversation(row)
}

func (s *sqliteConversationStore) List(limit, offset int) ([]*model.Conversation, error) {

	rows, err := s.db.Query(
		`SELECT id, title, created_at FROM conversations
		 ORDER BY created_at, id LIMIT ? OFFSET ?`,
		limit,
		offset,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]*model.Conversation, 0)
	for rows.Next() {
		v, err := scanConversation(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return out, nil
}

func (s *sqliteConversationStore) Delete(id string) error {

	_, err := s.db.Exec(`DELETE FROM conversations WHERE id = ?`, id)
	return err
}

func (s *sqliteMessageStore) Append(conversationID string, msg *model.Message) error {

	_, err := s.db.Exec(
		`INSERT INTO messages (
			id, conversation_id, role, kind, content,
			tool, tool_input, tool_output, agent_id, timestamp
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		msg.ID,
		conversationID,
		string(msg.Role),
		string(msg.Kind),
		msg.Content,
		msg.Tool,
		msg.ToolInput,
		msg.ToolOutput,
		msg.AgentID,
		timeToDB(msg.Timestamp),
	)
	return err
}

func (s *sqliteMessageStore) ListByConversation(conversationID string, limit, offset int) ([]*model.Message, error) {

	rows, err := s.db.Query(
		`SELECT id, role, kind, content, tool, tool_input, tool_output, agent_id, timestamp
		 FROM messages WHERE conversation_id = ?
		 ORDER BY timestamp, id LIMIT ? OFFSET ?`,
		conversationID,
		limit,
		offset,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]*model.Message, 0)
	for rows.Next() {
		v, err := scanMessage(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return out, nil
}

func (s *sqliteMessageStore) DeleteByConversation(conversationID string) error {

	_, err := s.db.Exec(`DELETE FROM messages WHERE conversation_id = ?`, conversationID)
	return err
}

func (s *sqliteMessageStore) CountByConversation(conversationID string) (int, error) {

	var n int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM messages WHERE conversation_id = ?`, conversationID).Scan(&n)
	if err != nil {
		return 0, err
	}

	return n, nil
}

func scanConversation(r rowScanner) (*model.Conversation, error) {

	v := &model.Conversation{}
	var createdAt string
	if err := r.Scan(&v.ID, &v.Title, &createdAt); err != nil {
		return nil, err
	}
	created, err := timeFromDB(createdAt)
	if err != nil {
		return nil, err
	}
	v.CreatedAt = created

	return v, nil
}

func scanMessage(r rowScanner) (*model.Message, error) {

	v := &model.Message{}
	var role string
	var kind string
	var timestamp string
	err := r.Scan(
		&v.ID,
		&role,
		&kind,
		&v.Content,
		&v.Tool,
		&v.ToolInput,
		&v.ToolOutput,
		&v.AgentID,
		&timestamp,
	)
	if err != nil {
		return nil, err
	}
	v.Role = model.Role(role)
	v.Kind = model.Kind(kind)
	ts, err := timeFromDB(timestamp)
	if err != nil {
		return nil, err
	}
	v.Timestamp = ts

	return v, nil
}

func timeToDB(v time.Time) string {

	return v.UTC().Format(time.RFC3339Nano)
}

func timeFromDB(v string) (time.Time, error) {

	t, err := time.Parse(time.RFC3339Nano, v)
	if err != nil {
		return time.Time{}, err
	}

	return t, nil
}
