package sqlstore

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "github.com/lib/pq"           // Postgres driver
	_ "github.com/mattn/go-sqlite3" // SQLite driver

	"github.com/Programmist999/kyst/internal/models"
	"github.com/Programmist999/kyst/internal/store"
)

type SQLStore struct {
	db         *sql.DB
	driverName string
}

func New(driverName, dataSourceName string) (*SQLStore, error) {
	db, err := sql.Open(driverName, dataSourceName)
	if err != nil {
		return nil, err
	}
	if err = db.Ping(); err != nil {
		return nil, err
	}

	s := &SQLStore{db: db, driverName: driverName}
	s.createTables()
	return s, nil
}

func (s *SQLStore) createTables() {
	// Simplified for brevity, ideally use migrations
	query := `
	CREATE TABLE IF NOT EXISTS users (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		email TEXT UNIQUE NOT NULL,
		password TEXT,
		username TEXT UNIQUE NOT NULL,
		display_name TEXT,
		avatar TEXT,
		bio TEXT,
		status TEXT DEFAULT 'online',
		public_key TEXT,
		private_key TEXT,
		encrypted BOOLEAN DEFAULT TRUE,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS chats (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT,
		description TEXT,
		type TEXT CHECK(type IN ('private', 'group', 'channel')),
		admin_id INTEGER REFERENCES users(id)
	);

	CREATE TABLE IF NOT EXISTS chat_participants (
		chat_id INTEGER,
		user_id INTEGER,
		role TEXT DEFAULT 'member',
		joined_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		PRIMARY KEY (chat_id, user_id),
		FOREIGN KEY (chat_id) REFERENCES chats(id),
		FOREIGN KEY (user_id) REFERENCES users(id)
	);

	CREATE TABLE IF NOT EXISTS messages (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		chat_id INTEGER,
		user_id INTEGER,
		content TEXT NOT NULL,
		type TEXT DEFAULT 'text',
		file_url TEXT,
		reply_to INTEGER,
		forwarded_from INTEGER,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		encrypted BOOLEAN DEFAULT FALSE,
		FOREIGN KEY (chat_id) REFERENCES chats(id),
		FOREIGN KEY (user_id) REFERENCES users(id)
	);
	`

	if s.driverName == "postgres" {
		// Adjust for Postgres syntax
		query = strings.ReplaceAll(query, "INTEGER PRIMARY KEY AUTOINCREMENT", "SERIAL PRIMARY KEY")
		query = strings.ReplaceAll(query, "DATETIME", "TIMESTAMP")
	}

	_, err := s.db.Exec(query)
	if err != nil {
		panic(err)
	}
}

// Helper to handle placeholders
func (s *SQLStore) rebind(query string) string {
	if s.driverName == "postgres" {
		// Replace ? with $1, $2, etc.
		n := strings.Count(query, "?")
		for i := 1; i <= n; i++ {
			query = strings.Replace(query, "?", fmt.Sprintf("$%d", i), 1)
		}
	}
	return query
}

const userColumns = `id, email, COALESCE(password, ''), username, COALESCE(display_name, ''),
	COALESCE(avatar, ''), COALESCE(bio, ''), COALESCE(status, 'online'),
	COALESCE(public_key, ''), COALESCE(private_key, ''), encrypted, created_at`

func scanUser(row *sql.Row) (*models.User, error) {
	var u models.User
	err := row.Scan(&u.ID, &u.Email, &u.Password, &u.Username, &u.DisplayName,
		&u.Avatar, &u.Bio, &u.Status, &u.PublicKey, &u.PrivateKey, &u.Encrypted, &u.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func (s *SQLStore) CreateUser(user *models.User) error {
	if user.Status == "" {
		user.Status = "online"
	}
	user.CreatedAt = time.Now().UTC()
	query := s.rebind(`INSERT INTO users (email, password, username, display_name, avatar, bio, status, public_key, private_key, encrypted, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?) RETURNING id`)
	return s.db.QueryRow(query, user.Email, user.Password, user.Username, user.DisplayName,
		user.Avatar, user.Bio, user.Status, user.PublicKey, user.PrivateKey, user.Encrypted, user.CreatedAt).Scan(&user.ID)
}

func (s *SQLStore) GetUserByID(id int) (*models.User, error) {
	query := s.rebind("SELECT " + userColumns + " FROM users WHERE id = ?")
	return scanUser(s.db.QueryRow(query, id))
}

func (s *SQLStore) GetUserByEmail(email string) (*models.User, error) {
	query := s.rebind("SELECT " + userColumns + " FROM users WHERE email = ?")
	return scanUser(s.db.QueryRow(query, email))
}

func (s *SQLStore) GetUserByUsername(username string) (*models.User, error) {
	query := s.rebind("SELECT " + userColumns + " FROM users WHERE username = ?")
	return scanUser(s.db.QueryRow(query, username))
}

func (s *SQLStore) SearchUsers(queryStr string, excludeID int) ([]models.User, error) {
	query := s.rebind(`SELECT id, email, username, COALESCE(display_name, ''), COALESCE(avatar, ''),
		COALESCE(status, 'online'), COALESCE(public_key, '')
		FROM users
		WHERE (username LIKE ? OR display_name LIKE ? OR email LIKE ?) AND id != ?
		LIMIT 20`)
	term := "%" + queryStr + "%"
	rows, err := s.db.Query(query, term, term, term, excludeID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []models.User
	for rows.Next() {
		var u models.User
		if err := rows.Scan(&u.ID, &u.Email, &u.Username, &u.DisplayName, &u.Avatar, &u.Status, &u.PublicKey); err != nil {
			return nil, err
		}
		u.Email = maskEmail(u.Email)
		users = append(users, u)
	}
	return users, rows.Err()
}

func (s *SQLStore) UpdateStatus(userID int, status string) error {
	query := s.rebind("UPDATE users SET status = ? WHERE id = ?")
	result, err := s.db.Exec(query, status, userID)
	if err != nil {
		return err
	}
	n, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (s *SQLStore) CreateChat(name, description, chatType string, adminID int) (int64, error) {
	var id int64
	query := s.rebind("INSERT INTO chats (name, description, type, admin_id) VALUES (?, ?, ?, ?) RETURNING id")
	err := s.db.QueryRow(query, name, description, chatType, adminID).Scan(&id)
	if err != nil {
		return 0, err
	}
	return id, nil
}

// FindPrivateChat returns the private chat shared by exactly this pair,
// if one exists. Private chats are unique per unordered pair.
func (s *SQLStore) FindPrivateChat(userA, userB int) (*models.Chat, error) {
	var chat models.Chat
	query := s.rebind(`
		SELECT c.id, COALESCE(c.name, ''), COALESCE(c.description, ''), c.type, c.admin_id
		FROM chats c
		JOIN chat_participants p1 ON c.id = p1.chat_id
		JOIN chat_participants p2 ON c.id = p2.chat_id
		WHERE c.type = 'private' AND p1.user_id = ? AND p2.user_id = ? AND p1.user_id != p2.user_id
	`)
	err := s.db.QueryRow(query, userA, userB).Scan(&chat.ID, &chat.Name, &chat.Description, &chat.Type, &chat.AdminID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &chat, nil
}

func (s *SQLStore) AddParticipant(chatID, userID int, role string) error {
	if role == "" {
		role = "member"
	}
	query := s.rebind("INSERT INTO chat_participants (chat_id, user_id, role) VALUES (?, ?, ?)")
	_, err := s.db.Exec(query, chatID, userID, role)
	return err
}

func (s *SQLStore) RemoveParticipant(chatID, userID int) error {
	query := s.rebind("DELETE FROM chat_participants WHERE chat_id = ? AND user_id = ?")
	_, err := s.db.Exec(query, chatID, userID)
	return err
}

func (s *SQLStore) IsParticipant(chatID, userID int) (bool, error) {
	var exists bool
	query := s.rebind("SELECT EXISTS(SELECT 1 FROM chat_participants WHERE chat_id = ? AND user_id = ?)")
	err := s.db.QueryRow(query, chatID, userID).Scan(&exists)
	return exists, err
}

func (s *SQLStore) GetParticipantIDs(chatID int) ([]int, error) {
	query := s.rebind("SELECT user_id FROM chat_participants WHERE chat_id = ? ORDER BY user_id")
	rows, err := s.db.Query(query, chatID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []int
	for rows.Next() {
		var id int
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (s *SQLStore) GetChatParticipants(chatID int) ([]models.User, error) {
	query := s.rebind(`
		SELECT u.id, u.email, u.username, COALESCE(u.display_name, ''), COALESCE(u.avatar, ''),
			COALESCE(u.status, 'online'), COALESCE(u.public_key, '')
		FROM users u
		JOIN chat_participants p ON u.id = p.user_id
		WHERE p.chat_id = ?
	`)
	rows, err := s.db.Query(query, chatID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []models.User
	for rows.Next() {
		var u models.User
		if err := rows.Scan(&u.ID, &u.Email, &u.Username, &u.DisplayName, &u.Avatar, &u.Status, &u.PublicKey); err != nil {
			return nil, err
		}
		u.Email = maskEmail(u.Email)
		users = append(users, u)
	}
	return users, rows.Err()
}

func (s *SQLStore) GetUserChats(userID int) ([]models.Chat, error) {
	query := s.rebind(`
		SELECT c.id, COALESCE(c.name, ''), COALESCE(c.description, ''), c.type, c.admin_id
		FROM chats c
		JOIN chat_participants p ON c.id = p.chat_id
		WHERE p.user_id = ?
	`)
	rows, err := s.db.Query(query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var chats []models.Chat
	for rows.Next() {
		var chat models.Chat
		if err := rows.Scan(&chat.ID, &chat.Name, &chat.Description, &chat.Type, &chat.AdminID); err != nil {
			return nil, err
		}
		chats = append(chats, chat)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range chats {
		ids, err := s.GetParticipantIDs(chats[i].ID)
		if err != nil {
			return nil, err
		}
		chats[i].Participants = ids
	}
	return chats, nil
}

func (s *SQLStore) DeleteChat(chatID int) error {
	// Delete messages first (foreign key constraint)
	query := s.rebind("DELETE FROM messages WHERE chat_id = ?")
	if _, err := s.db.Exec(query, chatID); err != nil {
		return err
	}

	query = s.rebind("DELETE FROM chat_participants WHERE chat_id = ?")
	if _, err := s.db.Exec(query, chatID); err != nil {
		return err
	}

	query = s.rebind("DELETE FROM chats WHERE id = ?")
	_, err := s.db.Exec(query, chatID)
	return err
}

func (s *SQLStore) SaveMessage(m *models.Message) error {
	if m.Type == "" {
		m.Type = models.MessageText
	}
	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now().UTC()
	}
	query := s.rebind(`INSERT INTO messages (chat_id, user_id, content, type, file_url, reply_to, forwarded_from, created_at, encrypted)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?) RETURNING id`)
	return s.db.QueryRow(query, m.ChatID, m.UserID, m.Content, m.Type, nullIfEmpty(m.FileURL),
		m.ReplyTo, m.ForwardedFrom, m.CreatedAt, m.Encrypted).Scan(&m.ID)
}

func (s *SQLStore) GetChatMessages(chatID int) ([]models.Message, error) {
	query := s.rebind(`
		SELECT m.id, m.chat_id, m.user_id, u.username, COALESCE(u.display_name, ''), COALESCE(u.avatar, ''),
			m.content, m.type, COALESCE(m.file_url, ''), m.reply_to, m.forwarded_from, m.created_at, m.encrypted
		FROM messages m
		JOIN users u ON m.user_id = u.id
		WHERE m.chat_id = ?
		ORDER BY m.created_at ASC, m.id ASC
	`)
	rows, err := s.db.Query(query, chatID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var messages []models.Message
	for rows.Next() {
		var m models.Message
		if err := rows.Scan(&m.ID, &m.ChatID, &m.UserID, &m.Username, &m.DisplayName, &m.Avatar,
			&m.Content, &m.Type, &m.FileURL, &m.ReplyTo, &m.ForwardedFrom, &m.CreatedAt, &m.Encrypted); err != nil {
			return nil, err
		}
		if m.DisplayName == "" {
			m.DisplayName = m.Username
		}
		messages = append(messages, m)
	}
	return messages, rows.Err()
}

// DeleteMessage hard-deletes one message. Deleting a nonexistent message
// is reported, not swallowed.
func (s *SQLStore) DeleteMessage(messageID int) error {
	query := s.rebind("DELETE FROM messages WHERE id = ?")
	result, err := s.db.Exec(query, messageID)
	if err != nil {
		return err
	}
	n, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return store.ErrNotFound
	}
	return nil
}

func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func maskEmail(email string) string {
	if email == "" {
		return ""
	}
	parts := strings.Split(email, "@")
	if len(parts) != 2 {
		return email
	}
	local, domain := parts[0], parts[1]
	length := len(local)
	visible := 1
	if length > 2 {
		visible = length / 2
		if visible > 3 {
			visible = 3
		}
	}
	maskedLocal := local[:visible] + strings.Repeat("*", length-visible)
	return maskedLocal + "@" + domain
}
