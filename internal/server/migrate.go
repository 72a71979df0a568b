package server

import (
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
)

// Migrate applies database migrations from the given directory.
// dir example: file://migrations
func Migrate(dir string, dsn string, direction string, steps int) error {
	if dir == "" {
		dir = "file://migrations"
	}
	m, err := migrate.New(dir, dsn)
	if err != nil {
		return err
	}
	var migrateErr error
	switch direction {
	case "up":
		if steps > 0 {
			migrateErr = m.Steps(steps)
		} else {
			migrateErr = m.Up()
		}
	case "down":
		if steps > 0 {
			migrateErr = m.Steps(-steps)
		} else {
			migrateErr = m.Down()
		}
	default:
		return fmt.Errorf("unknown direction: %s", direction)
	}
	if errors.Is(migrateErr, migrate.ErrNoChange) {
		return nil
	}
	return migrateErr
}
