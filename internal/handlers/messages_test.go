package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"

	"github.com/gorilla/mux"
	_ "github.com/mattn/go-sqlite3"

	"github.com/Programmist999/kyst/internal/messaging"
	"github.com/Programmist999/kyst/internal/models"
	"github.com/Programmist999/kyst/internal/store"
	"github.com/Programmist999/kyst/internal/store/sqlstore"
	"github.com/Programmist999/kyst/internal/ws"
)

func newMessageHandler(t *testing.T) (*MessageHandler, store.Store) {
	t.Helper()
	st, err := sqlstore.New("sqlite3", ":memory:")
	if err != nil {
		t.Fatal(err)
	}
	hub := ws.NewHub()
	return &MessageHandler{Pipeline: messaging.NewPipeline(st, hub)}, st
}

func seedPrivateChat(t *testing.T, st store.Store) (chatID int, a, b *models.User) {
	t.Helper()
	a = seedPlainUser(t, st, "dmitri")
	b = seedPlainUser(t, st, "elena")
	id, err := st.CreateChat("", "", models.ChatPrivate, a.ID)
	if err != nil {
		t.Fatal(err)
	}
	st.AddParticipant(int(id), a.ID, "admin")
	st.AddParticipant(int(id), b.ID, "member")
	return int(id), a, b
}

func messageRouter(h *MessageHandler) *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/api/messages/send-encrypted", h.SendEncrypted).Methods("POST")
	r.HandleFunc("/api/messages/{chatId:[0-9]+}", h.GetChatMessages).Methods("GET")
	r.HandleFunc("/api/messages/{id:[0-9]+}", h.DeleteMessage).Methods("DELETE")
	return r
}

func TestSendAndFetchMessage(t *testing.T) {
	h, st := newMessageHandler(t)
	chatID, a, b := seedPrivateChat(t, st)
	r := messageRouter(h)

	body, _ := json.Marshal(map[string]any{"chatId": chatID, "userId": a.ID, "content": "privyet"})
	req := httptest.NewRequest("POST", "/api/messages/send-encrypted", bytes.NewBuffer(body))
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)

	if rr.Code != http.StatusCreated {
		t.Fatalf("handler returned wrong status code: got %v want %v", rr.Code, http.StatusCreated)
	}
	var msg models.Message
	json.Unmarshal(rr.Body.Bytes(), &msg)
	if msg.Content != "privyet" {
		t.Errorf("Response should carry the plaintext body, got %q", msg.Content)
	}
	if msg.ID == 0 {
		t.Error("Response should carry the persisted id")
	}

	req = httptest.NewRequest("GET", "/api/messages/"+strconv.Itoa(chatID)+"?userId="+strconv.Itoa(b.ID), nil)
	rr = httptest.NewRecorder()
	r.ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("handler returned wrong status code: got %v want %v", rr.Code, http.StatusOK)
	}
	var msgs []models.Message
	json.Unmarshal(rr.Body.Bytes(), &msgs)
	if len(msgs) != 1 || msgs[0].Content != "privyet" {
		t.Errorf("Expected the message back decrypted, got %+v", msgs)
	}
}

func TestSendRejectsOutsider(t *testing.T) {
	h, st := newMessageHandler(t)
	chatID, _, _ := seedPrivateChat(t, st)
	outsider := seedPlainUser(t, st, "fyodor")
	r := messageRouter(h)

	body, _ := json.Marshal(map[string]any{"chatId": chatID, "userId": outsider.ID, "content": "let me in"})
	req := httptest.NewRequest("POST", "/api/messages/send-encrypted", bytes.NewBuffer(body))
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)

	if rr.Code != http.StatusForbidden {
		t.Errorf("handler returned wrong status code: got %v want %v", rr.Code, http.StatusForbidden)
	}
}

func TestDeleteMessageNotFound(t *testing.T) {
	h, st := newMessageHandler(t)
	chatID, a, _ := seedPrivateChat(t, st)
	r := messageRouter(h)

	body, _ := json.Marshal(map[string]any{"chatId": chatID, "userId": a.ID, "content": "oops"})
	req := httptest.NewRequest("POST", "/api/messages/send-encrypted", bytes.NewBuffer(body))
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)
	var msg models.Message
	json.Unmarshal(rr.Body.Bytes(), &msg)

	req = httptest.NewRequest("DELETE", "/api/messages/"+strconv.Itoa(msg.ID), nil)
	rr = httptest.NewRecorder()
	r.ServeHTTP(rr, req)
	if rr.Code != http.StatusNoContent {
		t.Fatalf("handler returned wrong status code: got %v want %v", rr.Code, http.StatusNoContent)
	}

	req = httptest.NewRequest("DELETE", "/api/messages/"+strconv.Itoa(msg.ID), nil)
	rr = httptest.NewRecorder()
	r.ServeHTTP(rr, req)
	if rr.Code != http.StatusNotFound {
		t.Errorf("Expected 404 for a deleted message, got %v", rr.Code)
	}
}
