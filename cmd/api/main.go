package main

import (
	"context"
	"database/sql"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"tavolo.org/internal/auth"
	"tavolo.org/internal/httpapi"
	"tavolo.org/internal/obs"
)

var version = "0.3.1"

func main() {
	obs.Init()
	obs.InitBuildInfo(version, os.Getenv("TAVOLO_COMMIT"))

	key := []byte(os.Getenv("TAVOLO_AUTH_SECRET"))
	if len(key) < auth.MinKeyBytes {
		log.Fatalf("TAVOLO_AUTH_SECRET must be at least %d bytes", auth.MinKeyBytes)
	}

	var db *sql.DB
	var store auth.Store
	if dsn := os.Getenv("TAVOLO_PG_DSN"); dsn != "" {
		var err error
		db, err = sql.Open("pgx", dsn)
		if err != nil {
			log.Fatalf("open db: %v", err)
		}
		db.SetMaxOpenConns(10)
		db.SetMaxIdleConns(10)
		db.SetConnMaxLifetime(30 * time.Minute)
		store = auth.NewPGStore(db)
	} else {
		log.Printf("TAVOLO_PG_DSN not set, using in-memory store")
		store = auth.NewMemStore()
	}

	opts := []auth.ServiceOption{
		auth.WithAccessTTL(envDuration("TAVOLO_ACCESS_TTL")),
		auth.WithRefreshTTL(envDuration("TAVOLO_REFRESH_TTL")),
		auth.WithServiceVerificationTTL(envDuration("TAVOLO_VERIFICATION_TTL")),
		auth.WithServiceResetTTL(envDuration("TAVOLO_RESET_TTL")),
		auth.WithFailureThreshold(
			envInt("TAVOLO_LOGIN_MAX_FAILURES"),
			envDuration("TAVOLO_LOGIN_BLOCK_WINDOW"),
		),
	}
	service, err := auth.NewService(key, store, opts...)
	if err != nil {
		log.Fatalf("auth service: %v", err)
	}

	api := httpapi.New(service, httpapi.ReadyProbe{DB: db}, version)

	addr := os.Getenv("TAVOLO_LISTEN_ADDR")
	if addr == "" {
		addr = ":8080"
	}
	srv := &http.Server{
		Addr:              addr,
		Handler:           api.Handler(),
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	log.Printf("Starting tavolo-auth %s on %s", version, srv.Addr)

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	<-stop
	log.Println("Shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_ = srv.Shutdown(ctx)
	if db != nil {
		_ = db.Close()
	}
	log.Println("Stopped")
}

// envDuration returns the parsed duration or zero, letting the service
// fall back to its default.
func envDuration(name string) time.Duration {
	raw := os.Getenv(name)
	if raw == "" {
		return 0
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		log.Fatalf("%s: %v", name, err)
	}
	return d
}

func envInt(name string) int {
	raw := os.Getenv(name)
	if raw == "" {
		return 0
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		log.Fatalf("%s: %v", name, err)
	}
	return n
}
