package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"

	"github.com/gorilla/mux"
	_ "github.com/mattn/go-sqlite3"

	"github.com/Programmist999/kyst/internal/auth"
	"github.com/Programmist999/kyst/internal/models"
	"github.com/Programmist999/kyst/internal/store/sqlstore"
)

func newAuthHandler(t *testing.T) *AuthHandler {
	t.Helper()
	store, err := sqlstore.New("sqlite3", ":memory:")
	if err != nil {
		t.Fatal(err)
	}
	return &AuthHandler{Store: store}
}

func signup(t *testing.T, h *AuthHandler, email, password, displayName string) *httptest.ResponseRecorder {
	t.Helper()
	body, _ := json.Marshal(map[string]string{
		"email":        email,
		"password":     password,
		"display_name": displayName,
	})
	req := httptest.NewRequest("POST", "/api/auth/signup", bytes.NewBuffer(body))
	rr := httptest.NewRecorder()
	http.HandlerFunc(h.Signup).ServeHTTP(rr, req)
	return rr
}

func TestSignupCreatesKeyedAccount(t *testing.T) {
	h := newAuthHandler(t)

	rr := signup(t, h, "anna@example.com", "password123", "Anna K")
	if rr.Code != http.StatusCreated {
		t.Fatalf("handler returned wrong status code: got %v want %v", rr.Code, http.StatusCreated)
	}

	var user models.User
	if err := json.Unmarshal(rr.Body.Bytes(), &user); err != nil {
		t.Fatalf("Bad signup response: %v", err)
	}
	if user.Username != "anna_k" {
		t.Errorf("Expected derived username anna_k, got %q", user.Username)
	}
	if !strings.Contains(user.PublicKey, "BEGIN PUBLIC KEY") {
		t.Error("Signup response should carry the generated public key")
	}
	if strings.Contains(rr.Body.String(), "PRIVATE KEY") {
		t.Error("Private key must never appear in a response")
	}

	stored, err := h.Store.GetUserByID(user.ID)
	if err != nil {
		t.Fatalf("Stored user missing: %v", err)
	}
	if stored.PrivateKey == "" || !stored.Encrypted {
		t.Error("Stored account should hold a private key and the encrypted flag")
	}
}

func TestSignupDuplicateConflict(t *testing.T) {
	h := newAuthHandler(t)

	signup(t, h, "anna@example.com", "password123", "Anna")
	rr := signup(t, h, "anna@example.com", "password123", "Anna")
	if rr.Code != http.StatusConflict {
		t.Errorf("handler returned wrong status code for duplicate user: got %v want %v", rr.Code, http.StatusConflict)
	}
}

func TestLoginByEmail(t *testing.T) {
	h := newAuthHandler(t)
	signup(t, h, "anna@example.com", "password123", "Anna")

	body, _ := json.Marshal(Credentials{Email: "anna@example.com", Password: "password123"})
	req := httptest.NewRequest("POST", "/api/auth/login", bytes.NewBuffer(body))
	rr := httptest.NewRecorder()
	http.HandlerFunc(h.Login).ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("handler returned wrong status code: got %v want %v", rr.Code, http.StatusOK)
	}

	var session string
	for _, c := range rr.Result().Cookies() {
		if c.Name == "session" {
			session = c.Value
		}
	}
	if session == "" {
		t.Fatal("Login should set a session cookie")
	}
	if _, err := auth.UserIDFromCookie(session); err != nil {
		t.Errorf("Session cookie should verify: %v", err)
	}
}

func TestLoginWrongPassword(t *testing.T) {
	h := newAuthHandler(t)
	signup(t, h, "anna@example.com", "password123", "Anna")

	body, _ := json.Marshal(Credentials{Email: "anna@example.com", Password: "wrong"})
	req := httptest.NewRequest("POST", "/api/auth/login", bytes.NewBuffer(body))
	rr := httptest.NewRecorder()
	http.HandlerFunc(h.Login).ServeHTTP(rr, req)

	if rr.Code != http.StatusUnauthorized {
		t.Errorf("handler returned wrong status code: got %v want %v", rr.Code, http.StatusUnauthorized)
	}
}

func TestGetPublicKey(t *testing.T) {
	h := newAuthHandler(t)
	rr := signup(t, h, "anna@example.com", "password123", "Anna")
	var user models.User
	json.Unmarshal(rr.Body.Bytes(), &user)

	r := mux.NewRouter()
	r.HandleFunc("/api/users/{id}/public-key", h.GetPublicKey).Methods("GET")

	req := httptest.NewRequest("GET", "/api/users/"+strconv.Itoa(user.ID)+"/public-key", nil)
	rr = httptest.NewRecorder()
	r.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("handler returned wrong status code: got %v want %v", rr.Code, http.StatusOK)
	}
	var resp map[string]string
	json.Unmarshal(rr.Body.Bytes(), &resp)
	if !strings.Contains(resp["public_key"], "BEGIN PUBLIC KEY") {
		t.Error("Expected a PEM public key in the response")
	}

	req = httptest.NewRequest("GET", "/api/users/9999/public-key", nil)
	rr = httptest.NewRecorder()
	r.ServeHTTP(rr, req)
	if rr.Code != http.StatusNotFound {
		t.Errorf("Expected 404 for an unknown user, got %v", rr.Code)
	}
}

func TestUpdateStatus(t *testing.T) {
	h := newAuthHandler(t)
	rr := signup(t, h, "anna@example.com", "password123", "Anna")
	var user models.User
	json.Unmarshal(rr.Body.Bytes(), &user)

	body, _ := json.Marshal(map[string]any{"userId": user.ID, "status": "online"})
	req := httptest.NewRequest("POST", "/api/user/status", bytes.NewBuffer(body))
	rr = httptest.NewRecorder()
	http.HandlerFunc(h.UpdateStatus).ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("handler returned wrong status code: got %v want %v", rr.Code, http.StatusOK)
	}
	stored, _ := h.Store.GetUserByID(user.ID)
	if stored.Status != "online" {
		t.Errorf("Expected status online, got %q", stored.Status)
	}
}

func TestUsernameDerivation(t *testing.T) {
	cases := []struct {
		display, email, want string
	}{
		{"Anna K", "anna@example.com", "anna_k"},
		{"  Spaced   Out  ", "x@example.com", "spaced_out"},
		{"", "anna@example.com", "anna"},
		{"", "weird-no-at", "weird-no-at"},
	}
	for _, c := range cases {
		if got := usernameFrom(c.display, c.email); got != c.want {
			t.Errorf("usernameFrom(%q, %q) = %q, want %q", c.display, c.email, got, c.want)
		}
	}
}
