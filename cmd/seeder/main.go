// Package main applies the schema migrations and loads the seed files.
package main

import (
	"context"
	"flag"
	"os"
	"path/filepath"
	"sort"

	"go.uber.org/zap"

	"github.com/unclebandit/shopnotify-backend/internal/config"
	"github.com/unclebandit/shopnotify-backend/internal/db"
)

func main() {
	seedDir := flag.String("seed", "seed", "directory of *.sql seed files, applied in name order")
	migrateOnly := flag.Bool("migrate-only", false, "apply migrations and skip seeding")
	flag.Parse()

	logger, _ := zap.NewDevelopment()
	defer logger.Sync()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("load config", zap.Error(err))
	}

	ctx := context.Background()
	conn, err := db.Open(ctx, cfg.Database.DSN(), logger)
	if err != nil {
		logger.Fatal("database", zap.Error(err))
	}
	defer conn.Close()

	if err := db.Migrate(ctx, conn); err != nil {
		logger.Fatal("migrate", zap.Error(err))
	}
	logger.Info("migrations applied")
	if *migrateOnly {
		return
	}

	files, err := filepath.Glob(filepath.Join(*seedDir, "*.sql"))
	if err != nil {
		logger.Fatal("list seed files", zap.Error(err))
	}
	sort.Strings(files)
	for _, file := range files {
		content, err := os.ReadFile(file)
		if err != nil {
			logger.Fatal("read seed file", zap.String("file", file), zap.Error(err))
		}
		if _, err := conn.ExecContext(ctx, string(content)); err != nil {
			logger.Fatal("execute seed file", zap.String("file", file), zap.Error(err))
		}
		logger.Info("seeded", zap.String("file", file))
	}
	logger.Info("database seeding completed", zap.Int("files", len(files)))
}
