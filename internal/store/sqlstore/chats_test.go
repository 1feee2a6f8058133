package sqlstore

import (
	"errors"
	"testing"

	"github.com/Programmist999/kyst/internal/models"
	"github.com/Programmist999/kyst/internal/store"
)

func seedUser(t *testing.T, email, username string) *models.User {
	t.Helper()
	u := &models.User{Email: email, Username: username}
	if err := testStore.CreateUser(u); err != nil {
		t.Fatalf("Failed to seed user %s: %v", username, err)
	}
	return u
}

func TestCreatePrivateChatAndFindPair(t *testing.T) {
	SetupTestDB(t)
	defer TeardownTestDB()

	a := seedUser(t, "a@example.com", "a")
	b := seedUser(t, "b@example.com", "b")

	chatID, err := testStore.CreateChat("b", "", models.ChatPrivate, a.ID)
	if err != nil {
		t.Fatalf("Failed to create chat: %v", err)
	}
	testStore.AddParticipant(int(chatID), a.ID, "")
	testStore.AddParticipant(int(chatID), b.ID, "")

	chat, err := testStore.FindPrivateChat(a.ID, b.ID)
	if err != nil {
		t.Fatalf("FindPrivateChat failed: %v", err)
	}
	if chat.ID != int(chatID) {
		t.Errorf("Expected chat %d, got %d", chatID, chat.ID)
	}

	// Reversed pair finds the same chat.
	chat, err = testStore.FindPrivateChat(b.ID, a.ID)
	if err != nil || chat.ID != int(chatID) {
		t.Errorf("Expected same chat for reversed pair, got %v, %v", chat, err)
	}

	c := seedUser(t, "c@example.com", "c")
	if _, err := testStore.FindPrivateChat(a.ID, c.ID); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("Expected ErrNotFound for unrelated pair, got %v", err)
	}
}

func TestParticipants(t *testing.T) {
	SetupTestDB(t)
	defer TeardownTestDB()

	a := seedUser(t, "a@example.com", "a")
	b := seedUser(t, "b@example.com", "b")

	chatID, _ := testStore.CreateChat("group", "", models.ChatGroup, a.ID)
	testStore.AddParticipant(int(chatID), a.ID, "admin")
	testStore.AddParticipant(int(chatID), b.ID, "")

	ok, err := testStore.IsParticipant(int(chatID), b.ID)
	if err != nil || !ok {
		t.Errorf("Expected b to be participant, got %v, %v", ok, err)
	}

	ids, err := testStore.GetParticipantIDs(int(chatID))
	if err != nil {
		t.Fatalf("GetParticipantIDs failed: %v", err)
	}
	if len(ids) != 2 {
		t.Errorf("Expected 2 participants, got %d", len(ids))
	}

	testStore.RemoveParticipant(int(chatID), b.ID)
	ok, _ = testStore.IsParticipant(int(chatID), b.ID)
	if ok {
		t.Error("Expected b to be removed")
	}
}

func TestGetUserChatsIncludesParticipantIDs(t *testing.T) {
	SetupTestDB(t)
	defer TeardownTestDB()

	a := seedUser(t, "a@example.com", "a")
	b := seedUser(t, "b@example.com", "b")

	chatID, _ := testStore.CreateChat("pair", "", models.ChatPrivate, a.ID)
	testStore.AddParticipant(int(chatID), a.ID, "")
	testStore.AddParticipant(int(chatID), b.ID, "")

	chats, err := testStore.GetUserChats(a.ID)
	if err != nil {
		t.Fatalf("GetUserChats failed: %v", err)
	}
	if len(chats) != 1 {
		t.Fatalf("Expected 1 chat, got %d", len(chats))
	}
	if len(chats[0].Participants) != 2 {
		t.Errorf("Expected 2 participant ids, got %v", chats[0].Participants)
	}
}

func TestDeleteChat(t *testing.T) {
	SetupTestDB(t)
	defer TeardownTestDB()

	a := seedUser(t, "a@example.com", "a")
	chatID, _ := testStore.CreateChat("doomed", "", models.ChatGroup, a.ID)
	testStore.AddParticipant(int(chatID), a.ID, "")
	testStore.SaveMessage(&models.Message{ChatID: int(chatID), UserID: a.ID, Content: "bye"})

	if err := testStore.DeleteChat(int(chatID)); err != nil {
		t.Fatalf("DeleteChat failed: %v", err)
	}

	ok, _ := testStore.IsParticipant(int(chatID), a.ID)
	if ok {
		t.Error("Expected participant rows to be deleted")
	}
	messages, _ := testStore.GetChatMessages(int(chatID))
	if len(messages) != 0 {
		t.Error("Expected messages to be deleted")
	}
}
