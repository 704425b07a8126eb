// Package main implements a one-shot seed command that adds a monitored
// server row directly to the gswatch database, bypassing the chat command
// surface. Useful for bootstrapping an instance or for local testing.
//
// Usage:
//
//	go run ./cmd/seed \
//	  --guild 1234 \
//	  --channel 5678 \
//	  --game tf2 \
//	  --address play.example.com \
//	  --query-port 27015
//
// Environment variables:
//
//	DB_CONNECTION  Database type: sqlite or pgsql (default: sqlite)
//	DATABASE_URL   Connection url, or SQLite file path (default: ./gswatch.db)
package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
	gormlogger "gorm.io/gorm/logger"

	"github.com/gswatch-io/gswatch/internal/catalog"
	"github.com/gswatch-io/gswatch/internal/db"
	"github.com/gswatch-io/gswatch/internal/messenger"
	"github.com/gswatch-io/gswatch/internal/repositories"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	guildID := flag.Int64("guild", 0, "Guild id (required)")
	channelID := flag.Int64("channel", 0, "Channel id (required)")
	gameID := flag.String("game", "", "Game id from the catalog (required)")
	address := flag.String("address", "", "Server address (required)")
	queryPort := flag.Int("query-port", 0, "Query port (default: the game's default port)")
	styleID := flag.String("style", messenger.DefaultStyleID, "Display style id")
	flag.Parse()

	if *guildID == 0 {
		return fmt.Errorf("--guild is required")
	}
	if *channelID == 0 {
		return fmt.Errorf("--channel is required")
	}
	if *gameID == "" {
		return fmt.Errorf("--game is required")
	}
	if *address == "" {
		return fmt.Errorf("--address is required")
	}

	games, err := catalog.Load()
	if err != nil {
		return err
	}
	if _, ok := games.Find(*gameID); !ok {
		return fmt.Errorf("unknown game id %q", *gameID)
	}
	if *queryPort == 0 {
		*queryPort = games.DefaultPort(*gameID)
	}

	_ = godotenv.Load()

	logger, err := zap.NewProduction()
	if err != nil {
		return err
	}
	defer logger.Sync() //nolint:errcheck

	driver := "sqlite"
	dsn := os.Getenv("DATABASE_URL")
	if os.Getenv("DB_CONNECTION") == "pgsql" {
		driver = "postgres"
	} else if dsn == "" {
		dsn = "gswatch.db"
	}

	database, err := db.New(db.Config{
		Driver:   driver,
		DSN:      dsn,
		Logger:   logger,
		LogLevel: gormlogger.Warn,
	})
	if err != nil {
		return err
	}

	servers := repositories.NewServerRepository(database)
	row, err := servers.AddServer(context.Background(), &db.Server{
		GuildID:    *guildID,
		ChannelID:  *channelID,
		GameID:     *gameID,
		Address:    *address,
		QueryPort:  *queryPort,
		QueryExtra: db.JSONMap{},
		StyleID:    *styleID,
		StyleData:  db.JSONMap{},
	})
	if err != nil {
		return err
	}

	fmt.Printf("added %s %s:%d to channel %d (position %d)\n",
		row.GameID, row.Address, row.QueryPort, row.ChannelID, row.Position)
	return nil
}
