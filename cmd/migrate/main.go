// Command migrate applies the embedded MySQL schema migrations.
//
//	migrate up | down | goto <version> | status
package main

import (
	"errors"
	"fmt"
	"os"
	"strconv"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/mysql"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/joho/godotenv"

	"github.com/iliyamo/marriage-hall-ledger/internal/database"
	"github.com/iliyamo/marriage-hall-ledger/internal/logging"
	"github.com/iliyamo/marriage-hall-ledger/migrations"
)

func main() {
	_ = godotenv.Load()
	log := logging.NewLoggerWithService("migrate", os.Getenv("LOG_LEVEL"))

	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	src, err := iofs.New(migrations.FS, ".")
	if err != nil {
		log.WithError(err).Fatal("open embedded migrations")
	}
	dsn := database.DSN(os.Getenv("DB_USER"), os.Getenv("DB_PASS"), os.Getenv("DB_HOST"),
		os.Getenv("DB_PORT"), os.Getenv("DB_NAME")) + "&multiStatements=true"
	m, err := migrate.NewWithSourceInstance("iofs", src, "mysql://"+dsn)
	if err != nil {
		log.WithError(err).Fatal("init migrate")
	}
	defer func() {
		if srcErr, dbErr := m.Close(); srcErr != nil || dbErr != nil {
			log.WithFields(logging.Fields{"source": srcErr, "database": dbErr}).Warn("close migrate")
		}
	}()

	switch os.Args[1] {
	case "up":
		report(log, m.Up(), "migrations applied")
	case "down":
		report(log, m.Steps(-1), "last migration rolled back")
	case "goto":
		if len(os.Args) < 3 {
			log.Fatal("goto needs a version")
		}
		v, err := strconv.ParseUint(os.Args[2], 10, 64)
		if err != nil {
			log.WithError(err).Fatal("invalid version")
		}
		report(log, m.Migrate(uint(v)), fmt.Sprintf("migrated to version %d", v))
	case "status":
		v, dirty, err := m.Version()
		switch {
		case errors.Is(err, migrate.ErrNilVersion):
			log.Info("no migrations applied yet")
		case err != nil:
			log.WithError(err).Fatal("read version")
		default:
			log.WithFields(logging.Fields{"version": v, "dirty": dirty}).Info("schema version")
		}
	default:
		printUsage()
		os.Exit(1)
	}
}

func report(log logging.Logger, err error, done string) {
	switch {
	case errors.Is(err, migrate.ErrNoChange):
		log.Info("no change: schema is up to date")
	case err != nil:
		log.WithError(err).Fatal("migration failed")
	default:
		log.Info(done)
	}
}

func printUsage() {
	fmt.Println("usage: migrate <command>")
	fmt.Println("  up            apply all pending migrations")
	fmt.Println("  down          roll back the last migration")
	fmt.Println("  goto <ver>    migrate to a specific version")
	fmt.Println("  status        print the current version")
}
