package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"time"

	_ "academyhub/docs" // swagger docs

	"github.com/labstack/echo/v4"

	"academyhub/internal/auth"
	"academyhub/internal/cache"
	"academyhub/internal/config"
	"academyhub/internal/db"
	"academyhub/internal/handler"
	"academyhub/internal/router"
	"academyhub/internal/session"
	"academyhub/internal/storage"
	"academyhub/internal/upstream"
)

// @title Academy Portal API
// @version 1.0
// @description Role-based portal for a youth football academy: session management, access guards, and proxied academy data.
// @host localhost:8080
// @BasePath /
// @schemes http
func main() {
	cfg := config.Load()

	e := echo.New()
	e.HideBanner = true

	gormDB, err := db.NewMySQL(cfg.MySQLDSN)
	if err != nil {
		log.Fatalf("database init: %v", err)
	}

	// Drop the session table if RESET_DB environment variable is set
	if os.Getenv("RESET_DB") == "true" {
		log.Println("RESET_DB=true detected, dropping session table...")
		if err := gormDB.Migrator().DropTable(&storage.PersistedEntry{}); err != nil {
			log.Printf("Warning: Failed to drop table (may not exist): %v", err)
		}
	}

	if err := gormDB.AutoMigrate(&storage.PersistedEntry{}); err != nil {
		log.Fatalf("auto-migrate: %v", err)
	}

	cacheClient := cache.New(cfg.RedisAddr, cfg.RedisPass, cfg.RedisDB)
	pingCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	if err := cacheClient.Ping(pingCtx); err != nil {
		log.Printf("Warning: redis unreachable, session-scoped logins will not persist: %v", err)
	}
	cancel()

	academy := upstream.NewClient(cfg.UpstreamBaseURL)
	cookies := auth.NewCookieService(cfg.CookieSecret)

	registry := auth.NewRegistry(func(sid string) *session.Store {
		return session.NewStore(
			academy,
			storage.NewMySQLVault(gormDB, sid),
			storage.NewRedisVault(cacheClient, sid, cfg.SessionTTL),
		)
	}, cfg.SessionTTL)

	authHandler := handler.NewAuthHandler(registry)
	academyHandler := handler.NewAcademyHandler(academy)

	router.Register(e, cookies, registry, authHandler, academyHandler)

	swaggerHost := cfg.SwaggerHost
	if swaggerHost == "" {
		swaggerHost = "http://localhost:" + cfg.ServerPort
	}
	log.Printf("Swagger documentation available at: %s/swagger/index.html", swaggerHost)

	addr := ":" + cfg.ServerPort
	if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
		log.Fatalf("server start: %v", err)
	}
}
