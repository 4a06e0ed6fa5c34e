package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/mahaj/baithak/pkg/auth"
	"github.com/mahaj/baithak/pkg/config"
	"github.com/mahaj/baithak/pkg/events"
	"github.com/mahaj/baithak/pkg/model"
	"github.com/mahaj/baithak/pkg/presence"
	"github.com/mahaj/baithak/pkg/realtime"
	"github.com/mahaj/baithak/pkg/snowflake"
	"github.com/mahaj/baithak/pkg/store"
)

// userDirectory and chatDirectory are the store surfaces the handlers
// depend on; tests substitute in-memory fakes.
type userDirectory interface {
	Create(ctx context.Context, u *model.User) error
	FindByID(ctx context.Context, id string) (*model.User, error)
	FindIdentity(ctx context.Context, id string) (*model.Identity, error)
	FindByUsername(ctx context.Context, username string) (*model.User, error)
	FindByEmail(ctx context.Context, email string) (*model.User, error)
	FindIdentities(ctx context.Context, ids []string) ([]model.Identity, error)
	SetRefreshToken(ctx context.Context, id, token string) error
}

type chatDirectory interface {
	Create(ctx context.Context, c *model.Chat) error
	FindByID(ctx context.Context, id string) (*model.Chat, error)
	ListForUser(ctx context.Context, userID string) ([]model.Chat, error)
	FindDirectBetween(ctx context.Context, userID, otherID string) (*model.Chat, error)
	Rename(ctx context.Context, id, name string) error
	SetLastMessage(ctx context.Context, id string, messageID int64) error
	AddMember(ctx context.Context, id, userID string) error
	RemoveMember(ctx context.Context, id, userID string) error
	Delete(ctx context.Context, c *model.Chat) error
}

// api bundles everything the HTTP handlers need.
type api struct {
	users     userDirectory
	chats     chatDirectory
	messages  *store.MessageStore
	counters  *store.CounterStore
	issuer    *auth.Issuer
	notifier  *realtime.Notifier
	presence  *presence.Tracker
	publisher *events.Publisher
	ids       *snowflake.Generator
	validate  *validator.Validate
	uploadDir string
	baseURL   string
	tokenTTL  time.Duration
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	session, err := store.NewSession(cfg.ScyllaHosts, cfg.Keyspace, cfg.ScyllaTimeout)
	if err != nil {
		log.Fatalf("Failed to connect to ScyllaDB: %v", err)
	}
	defer session.Close()

	ids, err := snowflake.New(cfg.SnowflakeNode)
	if err != nil {
		log.Fatalf("Failed to initialize snowflake generator: %v", err)
	}

	tracker := presence.NewTracker(cfg.RedisAddr)
	defer tracker.Close()

	publisher := events.NewPublisher(cfg.KafkaBrokers, cfg.KafkaTopic)
	defer publisher.Close()

	issuer := auth.NewIssuer(cfg.JWTSecret, cfg.TokenTTL)
	users := store.NewUserStore(session)

	registry := realtime.NewRegistry()
	resolver := realtime.NewResolver(issuer, users)
	socket := realtime.NewSocketServer(registry, resolver, tracker)

	a := &api{
		users:     users,
		chats:     store.NewChatStore(session),
		messages:  store.NewMessageStore(session),
		counters:  store.NewCounterStore(session),
		issuer:    issuer,
		notifier:  realtime.NewNotifier(registry),
		presence:  tracker,
		publisher: publisher,
		ids:       ids,
		validate:  validator.New(),
		uploadDir: cfg.UploadDir,
		baseURL:   cfg.PublicBaseURL,
		tokenTTL:  cfg.TokenTTL,
	}

	mux := http.NewServeMux()

	// Public endpoints
	mux.HandleFunc("POST /api/v1/users/register", a.RegisterHandler)
	mux.HandleFunc("POST /api/v1/users/login", a.LoginHandler)

	// Protected endpoints
	authed := func(h http.HandlerFunc) http.Handler { return a.AuthMiddleware(h) }
	mux.Handle("POST /api/v1/users/logout", authed(a.LogoutHandler))
	mux.Handle("GET /api/v1/users/me", authed(a.CurrentUserHandler))
	mux.Handle("GET /api/v1/users/online", authed(a.OnlineUsersHandler))

	mux.Handle("GET /api/v1/chats", authed(a.ListChatsHandler))
	mux.Handle("POST /api/v1/chats/direct/{receiverId}", authed(a.DirectChatHandler))
	mux.Handle("POST /api/v1/chats/group", authed(a.CreateGroupHandler))
	mux.Handle("GET /api/v1/chats/group/{chatId}", authed(a.GetGroupHandler))
	mux.Handle("PATCH /api/v1/chats/group/{chatId}", authed(a.RenameGroupHandler))
	mux.Handle("DELETE /api/v1/chats/group/{chatId}", authed(a.DeleteGroupHandler))
	mux.Handle("DELETE /api/v1/chats/group/{chatId}/leave", authed(a.LeaveGroupHandler))
	mux.Handle("POST /api/v1/chats/group/{chatId}/members/{memberId}", authed(a.AddMemberHandler))
	mux.Handle("DELETE /api/v1/chats/group/{chatId}/members/{memberId}", authed(a.RemoveMemberHandler))
	mux.Handle("POST /api/v1/chats/{chatId}/read", authed(a.MarkReadHandler))

	mux.Handle("GET /api/v1/messages/{chatId}", authed(a.ListMessagesHandler))
	mux.Handle("POST /api/v1/messages/{chatId}", authed(a.SendMessageHandler))
	mux.Handle("DELETE /api/v1/messages/{chatId}/{messageId}", authed(a.DeleteMessageHandler))

	// Websocket endpoint; it authenticates its own handshake.
	mux.Handle("GET /ws", socket)

	// Static attachments
	mux.Handle("GET /uploads/", http.StripPrefix("/uploads/", http.FileServer(http.Dir(cfg.UploadDir))))

	server := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: CORSMiddleware(mux),
	}

	go func() {
		log.Printf("Server starting on %s...", cfg.HTTPAddr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	log.Println("Shutting down...")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		log.Printf("HTTP shutdown: %v", err)
	}
	registry.Drain()
}
