package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/Programmist999/kyst/internal/models"
	"github.com/Programmist999/kyst/internal/store"
	"github.com/Programmist999/kyst/internal/ws"
)

type ChatHandler struct {
	Store store.Store
	Hub   *ws.Hub
}

type CreateChatRequest struct {
	Name         string `json:"name"`
	Description  string `json:"description"`
	Type         string `json:"type"`
	UserID       int    `json:"userId"`
	Participants []int  `json:"participants"`
}

// CreateChat creates a private, group or channel chat. Creating a
// private chat with a pair that already shares one returns the existing
// chat instead of a duplicate.
func (h *ChatHandler) CreateChat(w http.ResponseWriter, r *http.Request) {
	var req CreateChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if req.UserID == 0 {
		http.Error(w, "userId is required", http.StatusBadRequest)
		return
	}

	switch req.Type {
	case models.ChatPrivate, "":
		req.Type = models.ChatPrivate
		if len(req.Participants) != 1 {
			http.Error(w, "A private chat needs exactly one other participant", http.StatusBadRequest)
			return
		}
		peer := req.Participants[0]

		existing, err := h.Store.FindPrivateChat(req.UserID, peer)
		if err == nil {
			json.NewEncoder(w).Encode(existing)
			return
		}
		if !errors.Is(err, store.ErrNotFound) {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
	case models.ChatGroup, models.ChatChannel:
	default:
		http.Error(w, "Unknown chat type", http.StatusBadRequest)
		return
	}

	chatID, err := h.Store.CreateChat(req.Name, req.Description, req.Type, req.UserID)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	if err := h.Store.AddParticipant(int(chatID), req.UserID, "admin"); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	for _, id := range req.Participants {
		if id == req.UserID {
			continue
		}
		if err := h.Store.AddParticipant(int(chatID), id, "member"); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		// Let the invitee's live devices refresh their chat list.
		h.Hub.SendToUser(id, models.EventChatCreated, map[string]int64{"chatId": chatID})
	}

	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(map[string]any{"id": chatID, "type": req.Type})
}

func (h *ChatHandler) GetUserChats(w http.ResponseWriter, r *http.Request) {
	userID, err := strconv.Atoi(mux.Vars(r)["userId"])
	if err != nil {
		http.Error(w, "Invalid user id", http.StatusBadRequest)
		return
	}

	chats, err := h.Store.GetUserChats(userID)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	json.NewEncoder(w).Encode(chats)
}

func (h *ChatHandler) GetParticipants(w http.ResponseWriter, r *http.Request) {
	chatID, err := strconv.Atoi(mux.Vars(r)["chatId"])
	if err != nil {
		http.Error(w, "Invalid chat id", http.StatusBadRequest)
		return
	}

	users, err := h.Store.GetChatParticipants(chatID)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	json.NewEncoder(w).Encode(users)
}

func (h *ChatHandler) DeleteChat(w http.ResponseWriter, r *http.Request) {
	chatID, err := strconv.Atoi(mux.Vars(r)["chatId"])
	if err != nil {
		http.Error(w, "Invalid chat id", http.StatusBadRequest)
		return
	}

	switch err := h.Store.DeleteChat(chatID); {
	case errors.Is(err, store.ErrNotFound):
		http.Error(w, "Chat not found", http.StatusNotFound)
	case err != nil:
		http.Error(w, err.Error(), http.StatusInternalServerError)
	default:
		w.WriteHeader(http.StatusNoContent)
	}
}
