package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"quizclash/internal/cache"
	"quizclash/internal/config"
	"quizclash/internal/repository"
	"quizclash/internal/service"
	"quizclash/internal/transport/rest"
	"quizclash/internal/transport/ws"
)

func newCmd(cfg *config.Config) *cobra.Command {
	v := viper.New()
	v.SetEnvPrefix("QUIZCLASH")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	cmd := &cobra.Command{
		Use:           "quizclash",
		Short:         "Live multi-party trivia session server.",
		Args:          cobra.ExactArgs(0),
		SilenceErrors: true,
		SilenceUsage:  true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := cfg.Validate(); err != nil {
				return err
			}
			return run(cmd.Context(), cfg)
		},
	}

	fs := cmd.Flags()

	fs.StringVarP(&cfg.Bind, "bind", "b", "0.0.0.0", "address to bind to (env: QUIZCLASH_BIND)")
	fs.IntVarP(&cfg.Port, "port", "p", 8080, "port to listen on (env: QUIZCLASH_PORT)")
	fs.StringVar(&cfg.StaticDir, "static-dir", "", "directory of browser client assets to serve at / (env: QUIZCLASH_STATIC_DIR)")
	fs.StringVar(&cfg.Store, "store", config.StoreMongo, "session store backend, mongo or memory (env: QUIZCLASH_STORE)")
	fs.StringVar(&cfg.MongoURI, "mongo-uri", "mongodb://localhost:27017", "MongoDB connection string (env: QUIZCLASH_MONGO_URI)")
	fs.StringVar(&cfg.MongoDB, "mongo-db", "quizclash", "MongoDB database name (env: QUIZCLASH_MONGO_DB)")
	fs.StringVar(&cfg.RedisURI, "redis-uri", "", "Redis address for the scoreboard mirror, empty to disable (env: QUIZCLASH_REDIS_URI)")
	fs.StringVar(&cfg.AdminUsername, "admin-username", "admin", "admin API username (env: QUIZCLASH_ADMIN_USERNAME)")
	fs.StringVar(&cfg.AdminPassword, "admin-password", "password123", "admin API password (env: QUIZCLASH_ADMIN_PASSWORD)")
	fs.StringVar(&cfg.JWTSecret, "jwt-secret", "super-secret-key-change-in-production", "secret for admin tokens (env: QUIZCLASH_JWT_SECRET)")

	fs.VisitAll(func(f *pflag.Flag) {
		_ = v.BindPFlag(f.Name, f)
		_ = v.BindEnv(f.Name)
		if !f.Changed && v.IsSet(f.Name) {
			_ = fs.Set(f.Name, fmt.Sprintf("%v", v.Get(f.Name)))
		}
	})

	cmd.CompletionOptions.HiddenDefaultCmd = true
	cmd.SetHelpCommand(&cobra.Command{Hidden: true})

	return cmd
}

func run(ctx context.Context, cfg *config.Config) error {
	var sessionRepo repository.SessionRepo
	var memberRepo repository.MemberRepo

	if cfg.Store == config.StoreMongo {
		mongoClient, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.MongoURI))
		if err != nil {
			return fmt.Errorf("failed to connect to MongoDB: %w", err)
		}
		defer mongoClient.Disconnect(ctx)

		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		if err := mongoClient.Ping(pingCtx, nil); err != nil {
			return fmt.Errorf("failed to ping MongoDB: %w", err)
		}
		log.Println("Connected to MongoDB")

		db := mongoClient.Database(cfg.MongoDB)
		sessionRepo = repository.NewSessionRepo(db)
		memberRepo = repository.NewMemberRepo(db)
	} else {
		log.Println("Using in-memory session store")
		sessionRepo = repository.NewMemorySessionRepo()
		memberRepo = repository.NewMemoryMemberRepo()
	}

	scores := cache.NewNoopScoreboard()
	if cfg.RedisURI != "" {
		addr := strings.TrimPrefix(cfg.RedisURI, "redis://")
		rdb := redis.NewClient(&redis.Options{Addr: addr})
		defer rdb.Close()

		if _, err := rdb.Ping(ctx).Result(); err != nil {
			return fmt.Errorf("failed to ping Redis: %w", err)
		}
		log.Println("Connected to Redis")
		scores = cache.NewScoreboardCache(rdb)
	}

	wsHub := ws.NewHub()
	log.Println("WebSocket hub started")

	sessionSvc := service.NewSessionService(sessionRepo, memberRepo, scores)
	sessionSvc.SetBroadcaster(wsHub)
	dispatcher := service.NewDispatcher(sessionSvc)

	authSvc := service.NewAuthService(cfg.AdminUsername, cfg.AdminPassword, cfg.JWTSecret)

	router := rest.NewRouter(&rest.Container{
		AuthService: authSvc,
		Dispatcher:  dispatcher,
		WSHub:       wsHub,
		StaticDir:   cfg.StaticDir,
	})

	srv := &http.Server{
		Addr:    fmt.Sprintf("%s:%d", cfg.Bind, cfg.Port),
		Handler: router,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Printf("Server starting on %s", srv.Addr)
		log.Println("Endpoints:")
		log.Println("  GET  /health")
		log.Println("  GET  /v1/ws")
		log.Println("  POST /v1/admin/login")
		log.Println("  GET  /v1/admin/sessions/{id}")
		log.Println("  POST /v1/admin/sessions/{id}/rotate")
		log.Println("  GET  /v1/admin/sessions/{id}/scoreboard")

		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case err := <-errCh:
		return err
	case <-quit:
	}
	log.Println("Shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	log.Println("Server exited")
	return nil
}

func main() {
	cfg := &config.Config{}
	cobra.CheckErr(newCmd(cfg).Execute())
}
