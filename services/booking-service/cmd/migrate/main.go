package main

import (
	"database/sql"
	"errors"
	"os"
	"strconv"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/md-rashed-zaman/queueline/libs/config"
	"github.com/md-rashed-zaman/queueline/libs/runtime"
	"github.com/md-rashed-zaman/queueline/services/booking-service/migrations"
)

// Usage: migrate [up|down|force <version>]. Default is up.
func main() {
	_ = config.LoadDotEnv()
	logger := runtime.NewLogger("booking-migrate", config.String("LOG_LEVEL", "info"))

	databaseURL, err := config.RequiredString("DATABASE_URL")
	if err != nil {
		logger.Error("config error", "err", err)
		os.Exit(1)
	}

	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		logger.Error("open db failed", "err", err)
		os.Exit(1)
	}
	defer func() { _ = db.Close() }()

	if err := db.Ping(); err != nil {
		logger.Error("ping db failed", "err", err)
		os.Exit(1)
	}

	dbDriver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		logger.Error("db driver failed", "err", err)
		os.Exit(1)
	}
	srcDriver, err := iofs.New(migrations.FS, ".")
	if err != nil {
		logger.Error("source driver failed", "err", err)
		os.Exit(1)
	}
	m, err := migrate.NewWithInstance("iofs", srcDriver, "postgres", dbDriver)
	if err != nil {
		logger.Error("create migrator failed", "err", err)
		os.Exit(1)
	}
	defer func() { _, _ = m.Close() }()

	cmd := "up"
	if len(os.Args) >= 2 {
		cmd = os.Args[1]
	}
	switch cmd {
	case "force":
		if len(os.Args) < 3 {
			logger.Error("force needs a version")
			os.Exit(2)
		}
		version, err := strconv.Atoi(os.Args[2])
		if err != nil {
			logger.Error("invalid version", "value", os.Args[2])
			os.Exit(2)
		}
		if err := m.Force(version); err != nil {
			logger.Error("force failed", "err", err)
			os.Exit(1)
		}
		logger.Info("forced version", "version", version)
		return
	case "down":
		err = m.Down()
	case "up":
		err = m.Up()
	default:
		logger.Error("unknown command", "command", cmd)
		os.Exit(2)
	}
	if err != nil && !errors.Is(err, migrate.ErrNoChange) {
		logger.Error("migrate failed", "command", cmd, "err", err)
		os.Exit(1)
	}
	logger.Info("migrations complete", "command", cmd)
}
