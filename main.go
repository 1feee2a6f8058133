package main

import (
	"flag"
	"log"
	"net/http"

	"github.com/gorilla/mux"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"

	"github.com/Programmist999/kyst/internal/call"
	"github.com/Programmist999/kyst/internal/handlers"
	"github.com/Programmist999/kyst/internal/messaging"
	"github.com/Programmist999/kyst/internal/middleware"
	"github.com/Programmist999/kyst/internal/store/sqlstore"
	"github.com/Programmist999/kyst/internal/ws"
)

var (
	addr     = flag.String("addr", ":8080", "http service address")
	dbDriver = flag.String("db-driver", "sqlite3", "database driver (sqlite3 or postgres)")
	dbSource = flag.String("db", "kyst.db", "database connection string")
)

func main() {
	flag.Parse()
	log.SetFlags(log.LstdFlags | log.Lshortfile)

	store, err := sqlstore.New(*dbDriver, *dbSource)
	if err != nil {
		log.Fatal(err)
	}

	hub := ws.NewHub()
	manager := call.NewManager(hub)
	hub.SetCallRouter(manager)

	pipeline := messaging.NewPipeline(store, hub)

	authHandler := &handlers.AuthHandler{Store: store}
	chatHandler := &handlers.ChatHandler{Store: store, Hub: hub}
	messageHandler := &handlers.MessageHandler{Pipeline: pipeline}

	r := mux.NewRouter()
	r.Use(middleware.Logging)

	r.HandleFunc("/api/auth/signup", authHandler.Signup).Methods("POST")
	r.HandleFunc("/api/auth/login", authHandler.Login).Methods("POST")
	r.HandleFunc("/api/auth/logout", authHandler.Logout).Methods("POST")

	r.HandleFunc("/api/users/search", authHandler.SearchUsers).Methods("GET")
	r.HandleFunc("/api/users/{id:[0-9]+}", authHandler.GetUser).Methods("GET")
	r.HandleFunc("/api/users/{id:[0-9]+}/public-key", authHandler.GetPublicKey).Methods("GET")
	r.HandleFunc("/api/user/status", authHandler.UpdateStatus).Methods("POST")

	// Chat and message routes require a signed session.
	api := r.NewRoute().Subrouter()
	api.Use(middleware.Auth)

	api.HandleFunc("/api/chats/create", chatHandler.CreateChat).Methods("POST")
	api.HandleFunc("/api/chats/{userId:[0-9]+}", chatHandler.GetUserChats).Methods("GET")
	api.HandleFunc("/api/chats/{chatId:[0-9]+}/participants", chatHandler.GetParticipants).Methods("GET")
	api.HandleFunc("/api/chats/{chatId:[0-9]+}", chatHandler.DeleteChat).Methods("DELETE")

	api.HandleFunc("/api/messages/send-encrypted", messageHandler.SendEncrypted).Methods("POST")
	api.HandleFunc("/api/messages/{chatId:[0-9]+}", messageHandler.GetChatMessages).Methods("GET")
	api.HandleFunc("/api/messages/{id:[0-9]+}", messageHandler.DeleteMessage).Methods("DELETE")

	r.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
		ws.ServeWs(hub, w, r)
	})

	log.Println("Starting server on", *addr)
	log.Fatal(http.ListenAndServe(*addr, r))
}
