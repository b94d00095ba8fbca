package server

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/openboard/openboard/config"
	"github.com/openboard/openboard/internal/db"
	"github.com/openboard/openboard/internal/events"
	"github.com/openboard/openboard/internal/handlers"
	"github.com/openboard/openboard/internal/logging"
	"github.com/openboard/openboard/internal/mq"
	"github.com/openboard/openboard/internal/services"
	"github.com/openboard/openboard/internal/social"
	"github.com/openboard/openboard/internal/storage"
	"github.com/openboard/openboard/internal/store"
	"github.com/openboard/openboard/internal/token"
)

const (
	generalRateMax    = 100
	generalRateWindow = 15 * time.Minute
	loginRateMax      = 5
	loginRateWindow   = 5 * time.Minute
)

// Server wraps the HTTP server, router, and owned connections.
type Server struct {
	httpServer *http.Server
	router     *chi.Mux
	db         *sql.DB
	queue      *mq.Queue
	limiters   []*handlers.RateLimiter
	log        logging.Logger
}

// New constructs a fully wired Server.
func New(ctx context.Context, cfg config.Config) (*Server, error) {
	if cfg.JWT.AccessSecret == "" || cfg.JWT.RefreshSecret == "" {
		return nil, errors.New("JWT_SECRET and JWT_REFRESH_SECRET are required")
	}

	log := logging.NewDefault()

	dbConn, err := db.Open(ctx, cfg.Database)
	if err != nil {
		return nil, err
	}

	imageStore, err := newObjectStorage(ctx, cfg)
	if err != nil {
		_ = dbConn.Close()
		return nil, err
	}
	if err := imageStore.EnsureBucket(ctx); err != nil {
		_ = dbConn.Close()
		return nil, fmt.Errorf("ensure bucket: %w", err)
	}

	queue, publisher, err := newEventPublisher(ctx, cfg, log)
	if err != nil {
		_ = dbConn.Close()
		return nil, err
	}

	userRepo := store.NewUserRepository(dbConn)
	refreshRepo := store.NewRefreshTokenRepository(dbConn)
	boardRepo := store.NewBoardRepository(dbConn)

	tokenService := token.NewService(refreshRepo, userRepo, cfg.JWT.AccessSecret, cfg.JWT.RefreshSecret, cfg.JWT.AccessTTL, cfg.JWT.RefreshTTL)
	userService := services.NewUserService(userRepo, tokenService, publisher)
	boardService := services.NewBoardService(boardRepo, imageStore, publisher)
	exchanger := social.NewExchanger(cfg.Social, cfg.FrontendURL)

	authenticator := handlers.NewAuthenticator(tokenService, userService)

	var generalLimiter, loginLimiter *handlers.RateLimiter
	if cfg.RateLimit {
		generalLimiter = handlers.NewRateLimiter(generalRateMax, generalRateWindow, "too many requests, try again later")
		loginLimiter = handlers.NewRateLimiter(loginRateMax, loginRateWindow, "too many login attempts, try again later")
	}

	router := chi.NewRouter()
	router.Use(
		middleware.RequestID,
		middleware.RealIP,
		recoverer(log, cfg.Env == "dev"),
		middleware.Logger,
		errorLogger(log),
		middleware.Timeout(60*time.Second),
	)
	if generalLimiter != nil {
		router.Use(generalLimiter.Handler)
	}
	router.Get("/healthz", handlers.Healthz)
	router.Route("/auth", func(r chi.Router) {
		handlers.AuthRouter(r, userService, tokenService, authenticator, loginLimiter)
	})
	router.Route("/social", func(r chi.Router) {
		handlers.SocialRouter(r, userService, exchanger, loginLimiter)
	})
	router.Route("/boards", func(r chi.Router) {
		handlers.BoardRouter(r, boardService, authenticator)
	})
	router.Route("/uploads", func(r chi.Router) {
		handlers.UploadsRouter(r, boardService)
	})

	port := cfg.ServerPort
	if port == 0 {
		port = 8080
	}

	httpServer := &http.Server{
		Addr:         fmt.Sprintf(":%d", port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	var limiters []*handlers.RateLimiter
	if generalLimiter != nil {
		limiters = append(limiters, generalLimiter, loginLimiter)
	}

	return &Server{
		httpServer: httpServer,
		router:     router,
		db:         dbConn,
		queue:      queue,
		limiters:   limiters,
		log:        log,
	}, nil
}

// Router exposes the chi router for route registration.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// Start runs the HTTP server.
func (s *Server) Start() error {
	return s.httpServer.ListenAndServe()
}

// Shutdown drains in-flight requests until ctx expires, then releases the
// server's connections.
func (s *Server) Shutdown(ctx context.Context) error {
	err := s.httpServer.Shutdown(ctx)
	for _, rl := range s.limiters {
		rl.Stop()
	}
	if s.queue != nil {
		_ = s.queue.Close()
	}
	if s.db != nil {
		_ = s.db.Close()
	}
	return err
}

func newObjectStorage(ctx context.Context, cfg config.Config) (*storage.Storage, error) {
	switch cfg.Storage.Backend {
	case "minio":
		client, err := storage.NewMinioClient(cfg.Storage.Minio)
		if err != nil {
			return nil, fmt.Errorf("init minio: %w", err)
		}
		return storage.NewStorage(client), nil
	case "gcs":
		client, err := storage.NewGCSClient(ctx, cfg.Storage.GCS)
		if err != nil {
			return nil, fmt.Errorf("init gcs: %w", err)
		}
		return storage.NewStorage(client), nil
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Storage.Backend)
	}
}

// newEventPublisher builds the domain event publisher. With the "none"
// backend the returned publisher is nil, which disables publishing.
func newEventPublisher(ctx context.Context, cfg config.Config, log logging.Logger) (*mq.Queue, *events.Publisher, error) {
	switch cfg.MQ.Backend {
	case "", "none":
		return nil, nil, nil
	case "rabbitmq":
		client, err := mq.NewRabbitMQClient(cfg.MQ.RabbitMQ)
		if err != nil {
			return nil, nil, fmt.Errorf("init rabbitmq: %w", err)
		}
		queue := mq.New(client)
		return queue, events.NewPublisher(queue, cfg.MQ.EventChannel, log), nil
	case "pubsub":
		client, err := mq.NewPubSubClient(ctx, cfg.MQ.PubSub)
		if err != nil {
			return nil, nil, fmt.Errorf("init pubsub: %w", err)
		}
		queue := mq.New(client)
		return queue, events.NewPublisher(queue, cfg.MQ.EventChannel, log), nil
	default:
		return nil, nil, fmt.Errorf("unknown mq backend %q", cfg.MQ.Backend)
	}
}
