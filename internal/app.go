package internal

import (
	"chat-relay/auth"
	"chat-relay/infrastructure/httpapi"
	"chat-relay/infrastructure/ws"
	"chat-relay/moderation"
	"chat-relay/observability"
	"chat-relay/repositories"
	"chat-relay/runtime"
	"chat-relay/runtime/workers"
	"chat-relay/services"
	"chat-relay/storage"
	"context"
	"fmt"
	"log/slog"

	"github.com/blugelabs/bluge"
	"github.com/dgraph-io/badger/v4"
)

// App holds every component of a running relay. Stores are opened by the caller,
// App only borrows them.
type App struct {
	Log          *slog.Logger
	Registry     *runtime.Registry
	Monitoring   *observability.MonitoringManager
	Messages     *repositories.MessageRepository
	Hub          *ws.Hub
	Orchestrator *runtime.Orchestrator
	Chat         *services.ChatService
	Accounts     *services.AuthService
	Server       *httpapi.Server
}

// NewApp wires the delivery core, the services and the HTTP surface together.
func NewApp(config Config, log *slog.Logger, db *badger.DB, index *bluge.Writer) (*App, error) {
	registry := runtime.NewRegistry()
	monitoring := observability.NewMonitoringManager(registry.OnlineCount)

	messageRepository, err := repositories.NewMessageRepository(db, log)
	if err != nil {
		return nil, err
	}
	userRepository := repositories.NewUserRepository(db)
	contacts := repositories.NewContactIndex(index, log)
	if err = rebuildContacts(userRepository, contacts, log); err != nil {
		_ = messageRepository.Close()
		return nil, err
	}

	var moderator *moderation.Moderator
	if config.EnableModeration {
		moderator, err = buildModerator(config, log)
		if err != nil {
			_ = messageRepository.Close()
			return nil, err
		}
	}

	hub := ws.NewHub(log, monitoring, ws.HubConfig{
		BufferSize:     config.ConnectionBufferSize,
		WriteTimeout:   config.WriteTimeout,
		AllowedOrigins: config.Origins(),
	})
	supervisor := workers.NewSupervisor(log, config.RestartInterval)
	orchestrator := runtime.NewOrchestrator(log, supervisor, registry, hub, monitoring,
		config.BufferSize, config.HeartbeatInterval)

	delivery := runtime.NewDeliveryMachine(log, messageRepository, registry, orchestrator, monitoring, config.StoreRetries)
	aggregator := runtime.NewConversationAggregator(log, messageRepository, userRepository, config.StoreRetries)
	pager := runtime.NewPager(log, messageRepository, config.StoreRetries)

	tokens := auth.NewTokens(config.AuthSecret, config.AuthTokenDuration)
	chat := services.NewChatService(log, registry, delivery, aggregator, pager,
		userRepository, contacts, moderator, services.ChatLimits{
			MaxContentLength: config.MaxContentLength,
			DefaultPageSize:  config.DefaultPageSize,
			MaxPageSize:      config.MaxPageSize,
			SearchLimit:      config.SearchLimit,
		})
	attachments := storage.NewDiskStore(config.UploadDir, config.MaxUploadSize, log)
	accounts := services.NewAuthService(log, userRepository, contacts, attachments, tokens)

	server := httpapi.NewServer(log, chat, accounts, attachments, hub, monitoring,
		tokens, config.MaxUploadSize, config.Origins())

	return &App{
		Log:          log,
		Registry:     registry,
		Monitoring:   monitoring,
		Messages:     messageRepository,
		Hub:          hub,
		Orchestrator: orchestrator,
		Chat:         chat,
		Accounts:     accounts,
		Server:       server,
	}, nil
}

// Close stops the workers, drops every connection and releases the message sequence.
func (a *App) Close() error {
	a.Orchestrator.Stop()
	a.Hub.Close()
	return a.Messages.Close()
}

// rebuildContacts feeds every stored account to the contact index. Accounts are the
// source of truth, the index may be fresh, in memory, or behind after a crash.
func rebuildContacts(users *repositories.UserRepository, contacts *repositories.ContactIndex, log *slog.Logger) error {
	profiles, err := users.AllProfiles(context.Background())
	if err != nil {
		return fmt.Errorf("load accounts: %w", err)
	}
	if err = contacts.IndexAll(profiles); err != nil {
		return err
	}
	log.Info("Contact index rebuilt", "contacts", len(profiles))
	return nil
}

func buildModerator(config Config, log *slog.Logger) (*moderation.Moderator, error) {
	char, err := CharacterRune(config.CharReplacement)
	if err != nil {
		return nil, err
	}
	data, err := moderation.NewCensoredLoader(moderation.Dictionaries).LoadAll(moderation.DictionaryDir)
	if err != nil {
		return nil, fmt.Errorf("censored words: %w", err)
	}
	log.Debug("Censored dictionaries loaded", "languages", data.Languages, "words", len(data.Words))
	return moderation.NewModerator(data.Words, char, log)
}
