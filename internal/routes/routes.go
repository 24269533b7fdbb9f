package routes

import (
	"github.com/AyeshaaMaalik/WhatsappChatApp/internal/cache"
	"github.com/AyeshaaMaalik/WhatsappChatApp/internal/chatsync"
	"github.com/AyeshaaMaalik/WhatsappChatApp/internal/config"
	"github.com/AyeshaaMaalik/WhatsappChatApp/internal/feed"
	"github.com/AyeshaaMaalik/WhatsappChatApp/internal/handlers"
	"github.com/AyeshaaMaalik/WhatsappChatApp/internal/middleware"
	"github.com/AyeshaaMaalik/WhatsappChatApp/internal/repository"
	"github.com/AyeshaaMaalik/WhatsappChatApp/internal/services"
	chatws "github.com/AyeshaaMaalik/WhatsappChatApp/internal/websocket"
	websocket "github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
)

// Dependencies are the long-lived components owned by the server process.
// Cache, Storage and Janitor are nil when their backend is not configured.
type Dependencies struct {
	Config  *config.Config
	DB      *pgxpool.Pool
	Feed    *feed.Store
	Hub     *chatws.Hub
	Cache   cache.Cache
	Storage services.StorageService
	Janitor chatsync.BlobJanitor
	Log     zerolog.Logger
}

func RegisterRoutes(app *fiber.App, deps Dependencies) error {
	cfg := deps.Config

	participantRepo := repository.NewParticipantRepository(deps.DB)
	contactRepo := repository.NewContactRepository(deps.DB)

	var blobs chatsync.BlobStore
	if deps.Storage != nil {
		blobs = deps.Storage
	}

	verificationService := services.NewVerificationService(
		deps.Cache,
		participantRepo,
		services.LogCodeSender{Log: deps.Log},
		cfg.VerificationTTL,
	)
	profileService := services.NewProfileService(participantRepo, deps.Cache, deps.Log)
	contactService := services.NewContactService(participantRepo, contactRepo, deps.Cache, cfg.ProfileCacheTTL, deps.Log)
	pipeline := chatsync.NewPipeline(blobs, chatsync.NewSubmitter(deps.Feed), deps.Janitor, deps.Log)
	chatService := services.NewChatService(participantRepo, deps.Feed, pipeline)

	newSession := func(userID string, opts ...chatsync.SessionOption) *chatsync.Session {
		opts = append(opts, chatsync.WithJanitor(deps.Janitor))
		return chatsync.NewSession(services.ParticipantIdentity(participantRepo, userID), deps.Feed, blobs, opts...)
	}

	authHandler := handlers.NewAuthHandler(participantRepo, verificationService, cfg.JWTSecret, deps.Log)
	profileHandler := handlers.NewProfileHandler(profileService, participantRepo, deps.Storage, deps.Log)
	contactHandler := handlers.NewContactHandler(contactService)
	chatHandler := handlers.NewChatHandler(chatService, deps.Storage, deps.Hub, newSession, cfg.JWTSecret, deps.Log)

	if err := registerDocsRoutes(app, cfg); err != nil {
		return err
	}

	api := app.Group("/api")
	requireAuth := middleware.AuthRequired(cfg.JWTSecret)

	auth := api.Group("/auth")
	auth.Post("/register", authHandler.Register)
	auth.Post("/login", authHandler.Login)
	auth.Get("/me", requireAuth, authHandler.Me)
	auth.Post("/verify", requireAuth, authHandler.Verify)
	auth.Get("/verification", requireAuth, authHandler.VerificationStatus)
	auth.Post("/verification/resend", requireAuth, authHandler.ResendVerification)

	// Registered ahead of the /v1 group so browsers can pass the token in
	// the query string.
	api.Use("/v1/ws", chatHandler.WebSocketAuth)
	api.Get("/v1/ws", websocket.New(chatHandler.HandleWebSocket))

	authProtected := api.Group("/v1", requireAuth)

	profile := authProtected.Group("/profile")
	profile.Get("", profileHandler.GetProfile)
	profile.Patch("", profileHandler.UpdateProfile)
	profile.Post("/avatar", profileHandler.UploadAvatar)

	contacts := authProtected.Group("/contacts")
	contacts.Get("", contactHandler.List)
	contacts.Post("", contactHandler.Add)
	contacts.Get("/lookup", contactHandler.Lookup)

	chats := authProtected.Group("/chats")
	chats.Get("/:contact/messages", chatHandler.GetMessages)
	chats.Post("/:contact/attachments", chatHandler.UploadAttachment)

	authProtected.Get("/files/signed-url", chatHandler.SignedURL)

	return nil
}
