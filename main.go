package main

import (
	"crypto/tls"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo-contrib/echoprometheus"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"

	"kanban-api/ai"
	"kanban-api/api"
	"kanban-api/storage"
)

const defaultDBPath = "data/pm.db"

func main() {
	if dbg, err := strconv.ParseBool(os.Getenv("DEBUG")); err == nil && dbg {
		log.SetLevel(log.DebugLevel)
	}

	dbPath := os.Getenv("PM_DB_PATH")
	if dbPath == "" {
		dbPath = defaultDBPath
	}
	store, err := storage.New(dbPath)
	if err != nil {
		log.Fatalf("storage: %v", err)
	}
	defer store.Close()

	aiLimit := api.AIRateLimit
	if v := os.Getenv("AI_RATE_LIMIT"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			log.Fatalf("invalid AI_RATE_LIMIT: %v", v)
		}
		aiLimit = n
	}

	var boardStore api.Storage = store
	var sessions api.SessionStore
	var aiLimiter, loginLimiter api.RateLimiter

	if redisConn := os.Getenv("REDIS_CONNECTION_STRING"); redisConn != "" {
		rc := redis.NewClient(redisOptions(redisConn))
		cacheTTL := 30 * time.Second
		if v := os.Getenv("BOARD_CACHE_TTL"); v != "" {
			d, err := time.ParseDuration(v)
			if err != nil || d < 0 {
				log.Fatalf("invalid BOARD_CACHE_TTL: %v", err)
			}
			cacheTTL = d
		}
		boardStore = storage.NewCache(store, rc, cacheTTL)
		sessions = api.NewRedisSessionStore(rc, api.SessionTTL)
		aiLimiter = api.NewRedisRateLimiter(rc, aiLimit, api.RateLimitWindow, "ai:")
		loginLimiter = api.NewRedisRateLimiter(rc, api.LoginRateLimit, api.RateLimitWindow, "login:")
	} else {
		sessions = api.NewMemorySessionStore()
		aiLimiter = api.NewMemoryRateLimiter(aiLimit, api.RateLimitWindow)
		loginLimiter = api.NewMemoryRateLimiter(api.LoginRateLimit, api.RateLimitWindow)
	}

	gateway := ai.NewGateway(os.Getenv("OPENROUTER_API_KEY"), os.Getenv("OPENROUTER_MODEL"))
	logger := log.New()
	parser := ai.NewParser(logger)

	cfg := api.Config{
		Username:      os.Getenv("PM_USERNAME"),
		Password:      os.Getenv("PM_PASSWORD"),
		SecureCookies: strings.EqualFold(os.Getenv("SECURE_COOKIES"), "true"),
	}
	if cfg.Username == "" || cfg.Password == "" {
		log.Warn("PM_USERNAME/PM_PASSWORD not set; logins will fail with server_misconfigured")
	}

	e := echo.New()
	e.Use(middleware.Recover())
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins:     []string{"*"},
		AllowHeaders:     []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept},
		AllowCredentials: false,
	}))
	e.Use(echoprometheus.NewMiddleware("kanban_api"))
	e.GET("/metrics", echoprometheus.NewHandler())
	e.Use(api.GzipRequestMiddleware())

	api.Register(e, boardStore, gateway, sessions, aiLimiter, loginLimiter, parser, cfg, logger)

	if dir := os.Getenv("STATIC_DIR"); dir != "" {
		e.Static("/", dir)
	}

	listenAddr := ":8080"
	if val, ok := os.LookupEnv("PORT"); ok {
		listenAddr = ":" + val
	}
	e.Logger.Fatal(e.Start(listenAddr))
}

// redisOptions parses a redis URL, falling back to the comma-separated
// host,password=...,ssl=... form used by managed offerings.
func redisOptions(conn string) *redis.Options {
	opts, err := redis.ParseURL(conn)
	if err == nil {
		return opts
	}
	parts := strings.Split(conn, ",")
	opts = &redis.Options{Addr: parts[0]}
	for _, p := range parts[1:] {
		kv := strings.SplitN(p, "=", 2)
		if len(kv) != 2 {
			continue
		}
		switch strings.ToLower(kv[0]) {
		case "password":
			opts.Password = kv[1]
		case "ssl":
			if strings.ToLower(kv[1]) == "true" {
				opts.TLSConfig = &tls.Config{}
			}
		}
	}
	return opts
}
