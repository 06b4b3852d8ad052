package app

import (
	"context"
	"fmt"
	stdhttp "net/http"
	"time"

	"github.com/rs/zerolog"
	"github.com/tripline/chat-server/internal/auth"
	"github.com/tripline/chat-server/internal/blob"
	blobcloudinary "github.com/tripline/chat-server/internal/blob/cloudinary"
	blobfs "github.com/tripline/chat-server/internal/blob/fs"
	"github.com/tripline/chat-server/internal/chat"
	"github.com/tripline/chat-server/internal/config"
	"github.com/tripline/chat-server/internal/realtime"
	"github.com/tripline/chat-server/internal/store"
	"github.com/tripline/chat-server/internal/store/sqlite"
	transporthttp "github.com/tripline/chat-server/internal/transport/http"
)

// App wires together the chat core and transport layers.
type App struct {
	server          *stdhttp.Server
	shutdownTimeout time.Duration
	store           store.Store
	broker          realtime.Broker
	log             *zerolog.Logger
}

// New constructs the application with provided configuration.
func New(ctx context.Context, cfg *config.Config, logger *zerolog.Logger) (*App, error) {
	st, err := sqlite.New(cfg.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("init store: %w", err)
	}
	logger.Info().Str("db_path", cfg.DatabasePath).Msg("database initialized")

	broker, err := newBroker(ctx, cfg, logger)
	if err != nil {
		_ = st.Close()
		return nil, err
	}

	blobs, err := newBlobStore(cfg)
	if err != nil {
		_ = st.Close()
		return nil, err
	}

	jwtConfig := &auth.JWTConfig{
		Secret:   []byte(cfg.JWTSecret),
		Issuer:   cfg.JWTIssuer,
		Audience: cfg.JWTAudience,
		TTL:      24 * time.Hour,
	}

	messages := chat.NewMessageLog(st, broker, logger)
	svc := transporthttp.Services{
		Directory: chat.NewDirectory(st, logger),
		Messages:  messages,
		Presence:  chat.NewPresence(broker, logger),
		Groups:    chat.NewGroups(st, broker, logger),
		ChatList:  chat.NewChatList(st, logger),
		Uploader:  chat.NewUploader(blobs, messages, cfg.UploadMaxBytes, logger),
		JWTConfig: jwtConfig,
	}

	server := transporthttp.NewServer(svc, *cfg, logger)

	return &App{
		server:          server,
		shutdownTimeout: cfg.ShutdownTimeout,
		store:           st,
		broker:          broker,
		log:             logger,
	}, nil
}

func newBroker(ctx context.Context, cfg *config.Config, logger *zerolog.Logger) (realtime.Broker, error) {
	if cfg.RedisAddr == "" {
		logger.Info().Msg("using in-process event broker")
		return realtime.NewMemoryBroker(), nil
	}
	broker, err := realtime.NewRedisBroker(ctx, cfg.RedisAddr, logger)
	if err != nil {
		return nil, fmt.Errorf("init redis broker: %w", err)
	}
	logger.Info().Str("redis_addr", cfg.RedisAddr).Msg("redis broker connected")
	return broker, nil
}

func newBlobStore(cfg *config.Config) (blob.Store, error) {
	if cfg.UseCloudinary() {
		blobs, err := blobcloudinary.New(cfg.CloudinaryCloudName, cfg.CloudinaryAPIKey, cfg.CloudinaryAPISecret, "chat")
		if err != nil {
			return nil, fmt.Errorf("init cloudinary store: %w", err)
		}
		return blobs, nil
	}
	blobs, err := blobfs.New(cfg.UploadDir, cfg.UploadBaseURL)
	if err != nil {
		return nil, fmt.Errorf("init upload dir: %w", err)
	}
	return blobs, nil
}

// Run starts the HTTP server and blocks until context cancellation or fatal error.
func (a *App) Run(ctx context.Context) error {
	serverErr := make(chan error, 1)

	go func() {
		if err := a.server.ListenAndServe(); err != nil && err != stdhttp.ErrServerClosed {
			serverErr <- err
			return
		}
		serverErr <- nil
	}()

	a.log.Info().Str("addr", a.server.Addr).Msg("http server started")

	select {
	case err := <-serverErr:
		a.cleanup()
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), a.shutdownTimeout)
		defer cancel()

		a.log.Info().Msg("shutting down http server")
		if err := a.server.Shutdown(shutdownCtx); err != nil {
			a.cleanup()
			return err
		}

		a.cleanup()
		return <-serverErr
	}
}

// cleanup closes the store and broker.
func (a *App) cleanup() {
	if closer, ok := a.broker.(interface{ Close() error }); ok {
		if err := closer.Close(); err != nil {
			a.log.Warn().Err(err).Msg("failed to close broker")
		}
	}
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			a.log.Warn().Err(err).Msg("failed to close store")
		} else {
			a.log.Info().Msg("store closed")
		}
	}
}
