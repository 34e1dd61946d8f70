package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/Sternrassler/fetch-scheduler/internal/config"
	"github.com/Sternrassler/fetch-scheduler/pkg/cache"
	"github.com/Sternrassler/fetch-scheduler/pkg/client"
	"github.com/Sternrassler/fetch-scheduler/pkg/logging"
	"github.com/Sternrassler/fetch-scheduler/pkg/provider"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

func main() {
	configPath := flag.String("config", "", "path to a YAML config file")
	flag.Parse()

	if err := run(*configPath); err != nil {
		log.Fatal().Err(err).Msg("api-proxy failed")
	}
}

func run(configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger, err := logging.Setup(logging.Config{
		Level:   cfg.Log.Level,
		Format:  cfg.Log.Format,
		Service: "api-proxy",
		Output:  os.Stderr,
	})
	if err != nil {
		logger.Warn().Err(err).Msg("Falling back to info level")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var redisClient *redis.Client
	var cacheManager *cache.Manager
	if cfg.Redis.URL != "" {
		opts, err := redis.ParseURL(cfg.Redis.URL)
		if err != nil {
			return fmt.Errorf("parse redis url: %w", err)
		}
		if cfg.Redis.DB != 0 {
			opts.DB = cfg.Redis.DB
		}
		redisClient = redis.NewClient(opts)
		defer redisClient.Close()

		if err := redisClient.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("connect to redis: %w", err)
		}
		cacheManager = cache.NewManager(redisClient)
		logger.Info().Str("addr", opts.Addr).Int("db", opts.DB).Msg("Connected to Redis")
	}

	clients, err := buildClients(ctx, cfg, cacheManager)
	if err != nil {
		return err
	}
	defer func() {
		for _, c := range clients {
			c.Close()
		}
	}()

	srv := newServer(clients, redisClient)
	httpServer := &http.Server{
		Addr:         ":" + strconv.Itoa(cfg.Server.Port),
		Handler:      srv.routes(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info().
			Str("addr", httpServer.Addr).
			Str("user_agent", cfg.UserAgent).
			Int("providers", len(clients)).
			Msg("Starting API proxy server")
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info().Msg("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

// buildClients creates one client, and so one scheduler, per enabled provider.
func buildClients(ctx context.Context, cfg *config.Config, cacheManager *cache.Manager) (map[string]*client.Client, error) {
	clients := make(map[string]*client.Client)
	for name, pc := range cfg.Providers.All() {
		if !pc.Enabled {
			continue
		}

		preset, err := pc.Apply(name)
		if err != nil {
			return nil, err
		}

		creds := pc.Credentials()
		if name == provider.NameIGDB && creds.AccessToken == "" && pc.ClientSecret != "" {
			tokenCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
			tok, err := provider.FetchTwitchToken(tokenCtx, nil, provider.TwitchTokenURL, pc.ClientID, pc.ClientSecret)
			cancel()
			if err != nil {
				return nil, fmt.Errorf("igdb token: %w", err)
			}
			creds.AccessToken = tok.AccessToken
			log.Info().Dur("expires_in", tok.ExpiresIn).Msg("Obtained Twitch access token")
		}

		ccfg := preset.ClientConfig(cfg.UserAgent, creds)
		ccfg.Cache = cacheManager
		ccfg.CacheTTL = cfg.Redis.TTL

		c, err := client.New(ccfg)
		if err != nil {
			return nil, fmt.Errorf("create %s client: %w", name, err)
		}
		clients[name] = c
	}
	return clients, nil
}
