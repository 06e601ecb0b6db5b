// Command maintenance runs one housekeeping pass and exits. It is meant for
// cron or a scheduled task when the API runs with MAINTENANCE_INTERVAL=0.
package main

import (
	"context"
	"log"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/valid-names/internal/app"
	"github.com/valid-names/internal/config"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, reading from environment")
	}

	cfg := config.Load()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	a, err := app.New(ctx, cfg)
	if err != nil {
		log.Fatalf("startup: %v", err)
	}

	rep, err := a.Runner.RunOnce(ctx)
	a.Close()
	if err != nil {
		log.Printf("maintenance failed: %v", err)
		os.Exit(1)
	}
	log.Printf("maintenance done: rate_limits=%d tokens=%d checks=%d",
		rep.RateLimitsDeleted, rep.TokensDeleted, rep.ChecksRefreshed)
}
