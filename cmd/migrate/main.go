package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/Osyna/QuestionAir/internal/config"
	"github.com/Osyna/QuestionAir/internal/database"
	"github.com/Osyna/QuestionAir/internal/logger"
	"go.uber.org/zap"
)

func main() {
	configPath := flag.String("config", "", "path to config.yaml")
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "Usage: %s [-config config.yaml] [up|down]\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()

	direction := database.Up
	if flag.NArg() > 0 {
		direction = database.Direction(flag.Arg(0))
	}

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	if err := logger.Initialize(cfg.Logger); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	l := logger.Get()
	defer l.Sync()

	db, err := database.Connect(context.Background(), cfg, l)
	if err != nil {
		l.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer db.Close()

	if err := database.RunMigrations(db, cfg.DB.Driver, direction, l); err != nil {
		l.Fatal("Failed to run migrations", zap.String("direction", string(direction)), zap.Error(err))
	}
	l.Info("Migrations applied", zap.String("driver", cfg.DB.Driver), zap.String("direction", string(direction)))
}
