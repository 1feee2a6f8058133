package handlers

import (
	"encoding/json"
	"log"
	"net/http"
	"strconv"
	"strings"

	"github.com/gorilla/mux"
	"golang.org/x/crypto/bcrypt"

	"github.com/Programmist999/kyst/internal/auth"
	"github.com/Programmist999/kyst/internal/crypto"
	"github.com/Programmist999/kyst/internal/models"
	"github.com/Programmist999/kyst/internal/store"
)

type Credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type AuthHandler struct {
	Store store.Store
}

// usernameFrom derives a login-safe username from the display name,
// falling back to the mailbox part of the email.
func usernameFrom(displayName, email string) string {
	name := strings.ToLower(strings.TrimSpace(displayName))
	name = strings.Join(strings.Fields(name), "_")
	if name != "" {
		return name
	}
	if at := strings.Index(email, "@"); at > 0 {
		return strings.ToLower(email[:at])
	}
	return email
}

// Signup creates an account with a server-side RSA keypair. A keygen
// failure aborts the signup: an account without keys would silently
// break encryption for every chat it joins.
func (h *AuthHandler) Signup(w http.ResponseWriter, r *http.Request) {
	type SignupRequest struct {
		Email       string `json:"email"`
		Password    string `json:"password"`
		DisplayName string `json:"display_name"`
	}

	var req SignupRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if req.Email == "" || req.Password == "" {
		http.Error(w, "Email and password are required", http.StatusBadRequest)
		return
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	publicKey, privateKey, err := crypto.GenerateKeyPair()
	if err != nil {
		log.Printf("signup: keygen failed: %v", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	user := &models.User{
		Email:       req.Email,
		Username:    usernameFrom(req.DisplayName, req.Email),
		DisplayName: req.DisplayName,
		Password:    string(hashedPassword),
		PublicKey:   publicKey,
		PrivateKey:  privateKey,
		Encrypted:   true,
	}

	if err := h.Store.CreateUser(user); err != nil {
		http.Error(w, "Email or username already exists", http.StatusConflict)
		return
	}

	setSessionCookie(w, user.ID)
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(user)
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var creds Credentials
	if err := json.NewDecoder(r.Body).Decode(&creds); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	user, err := h.Store.GetUserByEmail(creds.Email)
	if err != nil {
		http.Error(w, "Invalid credentials", http.StatusUnauthorized)
		return
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(creds.Password)); err != nil {
		http.Error(w, "Invalid credentials", http.StatusUnauthorized)
		return
	}

	setSessionCookie(w, user.ID)
	json.NewEncoder(w).Encode(user)
}

func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, &http.Cookie{
		Name:     "session",
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
	})
	w.WriteHeader(http.StatusNoContent)
}

func (h *AuthHandler) SearchUsers(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("q")
	if query == "" {
		json.NewEncoder(w).Encode([]models.User{})
		return
	}
	selfID, _ := strconv.Atoi(r.URL.Query().Get("userId"))

	users, err := h.Store.SearchUsers(query, selfID)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	json.NewEncoder(w).Encode(users)
}

func (h *AuthHandler) GetUser(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.Atoi(mux.Vars(r)["id"])
	if err != nil {
		http.Error(w, "Invalid user id", http.StatusBadRequest)
		return
	}

	user, err := h.Store.GetUserByID(id)
	if err != nil {
		http.Error(w, "User not found", http.StatusNotFound)
		return
	}
	json.NewEncoder(w).Encode(user)
}

// GetPublicKey serves the key peers need to verify fanout locally. The
// private key never leaves the server.
func (h *AuthHandler) GetPublicKey(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.Atoi(mux.Vars(r)["id"])
	if err != nil {
		http.Error(w, "Invalid user id", http.StatusBadRequest)
		return
	}

	user, err := h.Store.GetUserByID(id)
	if err != nil {
		http.Error(w, "User not found", http.StatusNotFound)
		return
	}

	json.NewEncoder(w).Encode(map[string]string{"public_key": user.PublicKey})
}

func (h *AuthHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	type StatusRequest struct {
		UserID int    `json:"userId"`
		Status string `json:"status"`
	}

	var req StatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	if err := h.Store.UpdateStatus(req.UserID, req.Status); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusOK)
}

func setSessionCookie(w http.ResponseWriter, userID int) {
	http.SetCookie(w, &http.Cookie{
		Name:     "session",
		Value:    auth.SignCookie(strconv.Itoa(userID)),
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}
