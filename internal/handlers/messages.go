package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/Programmist999/kyst/internal/messaging"
	"github.com/Programmist999/kyst/internal/store"
)

type MessageHandler struct {
	Pipeline *messaging.Pipeline
}

// SendEncrypted runs the full message pipeline and answers with the
// created message, body in sender-visible plaintext.
func (h *MessageHandler) SendEncrypted(w http.ResponseWriter, r *http.Request) {
	type SendMessageRequest struct {
		ChatID        int    `json:"chatId"`
		UserID        int    `json:"userId"`
		Content       string `json:"content"`
		Type          string `json:"type"`
		FileURL       string `json:"fileUrl"`
		ReplyTo       *int   `json:"replyTo"`
		ForwardedFrom *int   `json:"forwardedFrom"`
	}

	var req SendMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if req.ChatID == 0 || req.UserID == 0 {
		http.Error(w, "chatId and userId are required", http.StatusBadRequest)
		return
	}

	msg, err := h.Pipeline.Send(messaging.SendRequest{
		ChatID:        req.ChatID,
		UserID:        req.UserID,
		Content:       req.Content,
		Type:          req.Type,
		FileURL:       req.FileURL,
		ReplyTo:       req.ReplyTo,
		ForwardedFrom: req.ForwardedFrom,
	})
	switch {
	case errors.Is(err, messaging.ErrNotParticipant):
		http.Error(w, "Forbidden", http.StatusForbidden)
		return
	case err != nil:
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(msg)
}

func (h *MessageHandler) GetChatMessages(w http.ResponseWriter, r *http.Request) {
	chatID, err := strconv.Atoi(mux.Vars(r)["chatId"])
	if err != nil {
		http.Error(w, "Invalid chat id", http.StatusBadRequest)
		return
	}
	userID, err := strconv.Atoi(r.URL.Query().Get("userId"))
	if err != nil {
		http.Error(w, "userId query parameter is required", http.StatusBadRequest)
		return
	}

	messages, err := h.Pipeline.Fetch(chatID, userID)
	switch {
	case errors.Is(err, messaging.ErrNotParticipant):
		http.Error(w, "Forbidden", http.StatusForbidden)
		return
	case err != nil:
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	json.NewEncoder(w).Encode(messages)
}

func (h *MessageHandler) DeleteMessage(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.Atoi(mux.Vars(r)["id"])
	if err != nil {
		http.Error(w, "Invalid message id", http.StatusBadRequest)
		return
	}

	switch err := h.Pipeline.Delete(id); {
	case errors.Is(err, store.ErrNotFound):
		http.Error(w, "Message not found", http.StatusNotFound)
	case err != nil:
		http.Error(w, err.Error(), http.StatusInternalServerError)
	default:
		w.WriteHeader(http.StatusNoContent)
	}
}
