package store

import "github.com/Programmist999/kyst/internal/models"

// Store is the persistence boundary. The realtime core treats it as an
// external collaborator: everything here is plain CRUD by user, chat and
// message id.
type Store interface {
	// User operations
	CreateUser(user *models.User) error
	GetUserByID(id int) (*models.User, error)
	GetUserByEmail(email string) (*models.User, error)
	GetUserByUsername(username string) (*models.User, error)
	SearchUsers(query string, excludeID int) ([]models.User, error)
	UpdateStatus(userID int, status string) error

	// Chat operations
	CreateChat(name, description, chatType string, adminID int) (int64, error)
	FindPrivateChat(userA, userB int) (*models.Chat, error)
	AddParticipant(chatID, userID int, role string) error
	RemoveParticipant(chatID, userID int) error
	IsParticipant(chatID, userID int) (bool, error)
	GetParticipantIDs(chatID int) ([]int, error)
	GetChatParticipants(chatID int) ([]models.User, error)
	GetUserChats(userID int) ([]models.Chat, error)
	DeleteChat(chatID int) error

	// Message operations
	SaveMessage(m *models.Message) error
	GetChatMessages(chatID int) ([]models.Message, error)
	DeleteMessage(messageID int) error
}
