package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"

	redis "github.com/redis/go-redis/v9"

	"github.com/quill-visionfairy/ai-secretary/auth"
	"github.com/quill-visionfairy/ai-secretary/calendar"
	"github.com/quill-visionfairy/ai-secretary/config"
	"github.com/quill-visionfairy/ai-secretary/query"
	"github.com/quill-visionfairy/ai-secretary/server"
	"github.com/quill-visionfairy/ai-secretary/session"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	cfg, err := config.Load()
	if err != nil {
		logger.Error("invalid configuration", "err", err)
		os.Exit(1)
	}

	opts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		logger.Error("invalid REDIS_URL", "err", err)
		os.Exit(1)
	}
	opts.DialTimeout = cfg.CacheTimeout
	opts.ReadTimeout = cfg.CacheTimeout
	opts.WriteTimeout = cfg.CacheTimeout
	rdb := redis.NewClient(opts)
	defer func() {
		_ = rdb.Close()
	}()

	ctx, cancel := context.WithTimeout(context.Background(), cfg.CacheTimeout)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		logger.Error("failed to connect to redis", "err", err)
		os.Exit(1)
	}
	logger.Info("connected to redis")

	providerClient := &http.Client{Timeout: cfg.ProviderTimeout}
	provider := auth.GoogleProvider(cfg.GoogleClientID, cfg.GoogleClientSecret, cfg.OAuthRedirectURI)

	store := auth.NewRedisTokenStore(rdb)
	mgr := auth.NewManager(provider, store, providerClient, cfg.TokenTTL, logger)
	calendars := calendar.NewService(mgr, providerClient, logger)
	sessions := session.NewClient(cfg.SessionSecret, cfg.SessionTTL)

	// The natural-language layer is an external collaborator; the default
	// interpreter answers with the current day until one is plugged in.
	var interp query.Interpreter = &query.MockInterpreter{}

	srv := server.NewServer(mgr, calendars, sessions, interp, logger)

	logger.Info("server starting", "addr", cfg.ListenAddr)
	if err := http.ListenAndServe(cfg.ListenAddr, srv.Routes()); err != nil {
		logger.Error("server stopped", "err", err)
		os.Exit(1)
	}
}
