package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"protrack/api"
	"protrack/lifecycle"
	"protrack/model"
	"protrack/pricing"
	"protrack/store"

	"github.com/joho/godotenv"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Printf("Warning: Failed to load .env file: %v", err)
	}

	addr := os.Getenv("SERVER_ADDR")
	if addr == "" {
		addr = ":8080"
	}

	ctx := context.Background()

	var tableStore store.TableStore
	if url := os.Getenv("DATABASE_URL"); url != "" {
		pg, err := store.OpenPostgres(ctx, url)
		if err != nil {
			log.Fatalf("Failed to open Postgres store: %v", err)
		}
		defer pg.Close()
		tableStore = pg
	} else {
		log.Printf("Warning: DATABASE_URL not set, using in-memory store")
		tableStore = store.NewMemory()
	}

	if redisAddr := os.Getenv("REDIS_ADDR"); redisAddr != "" {
		client, err := store.NewRedisClient(ctx, redisAddr)
		if err != nil {
			log.Printf("Warning: mirror unavailable at %s: %v", redisAddr, err)
		} else {
			tableStore = store.NewMirrored(tableStore, client)
		}
	}

	if err := seedTables(ctx, tableStore); err != nil {
		log.Fatalf("Failed to seed tables: %v", err)
	}

	engine := lifecycle.New(tableStore)
	server := api.NewServer(addr, engine)

	go func() {
		log.Printf("Starting server on %s", addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("HTTP server error: %v", err)
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	log.Println("Shutdown signal received")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("HTTP server shutdown error: %v", err)
	}
}

// seedTables creates the three backing tables on first run: the default
// price list and empty worker and task tables.
func seedTables(ctx context.Context, s store.TableStore) error {
	if err := store.Ensure(ctx, s, store.TableRules, model.RuleColumns, pricing.DefaultRuleRows()); err != nil {
		return err
	}
	if err := store.Ensure(ctx, s, store.TableWorkers, model.WorkerColumns, nil); err != nil {
		return err
	}
	return store.Ensure(ctx, s, store.TableTasks, model.TaskColumns, nil)
}
