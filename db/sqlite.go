// Package db opens kaybee's primary SQLite store and applies its fixed
// migrations, mirroring how the teacher's db package chooses between a
// local file dialector and a remote libsql/Turso one based on the DSN shape
// (db/sqlite.go).
package db

import (
	"database/sql"
	"database/sql/driver"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	glebarez "github.com/glebarez/sqlite"
	libsql "github.com/tursodatabase/libsql-client-go/libsql"
	gormlibsql "gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/tg1482/kaybee/internal/kerr"
	"github.com/tg1482/kaybee/models"
)

// AuthTokenEnv names the environment variable carrying a remote libsql/Turso
// auth token, read the same way the teacher reads MORFX_LIBSQL_AUTH_TOKEN.
const AuthTokenEnv = "KAYBEE_LIBSQL_AUTH_TOKEN"

// Connect opens dsn as kaybee's primary store, runs the fixed migrations,
// and enforces that the database's recorded storage layout (spec.md
// invariant 5) matches layout. A brand-new database adopts layout as its
// own. debug turns on gorm's verbose SQL logger.
func Connect(dsn, layout string, debug bool) (*gorm.DB, error) {
	if !isURL(dsn) {
		if dir := filepath.Dir(dsn); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("failed to create database directory: %w", err)
			}
		}
	}

	config := &gorm.Config{}
	if debug {
		config.Logger = logger.Default.LogMode(logger.Info)
	}

	var (
		dialector gorm.Dialector
		conn      *sql.DB
	)
	if isURL(dsn) {
		var (
			connector driver.Connector
			err       error
		)
		if token := os.Getenv(AuthTokenEnv); token != "" {
			connector, err = libsql.NewConnector(dsn, libsql.WithAuthToken(token))
		} else {
			connector, err = libsql.NewConnector(dsn)
		}
		if err != nil {
			return nil, fmt.Errorf("failed to create libsql connector: %w", err)
		}
		conn = sql.OpenDB(connector)
		dialector = gormlibsql.New(gormlibsql.Config{
			DriverName: "libsql",
			Conn:       conn,
			DSN:        dsn,
		})
	} else {
		// Local storage uses the pure-Go glebarez driver, so opening a
		// database never requires cgo.
		dialector = glebarez.Open(dsn)
	}

	gdb, err := gorm.Open(dialector, config)
	if err != nil {
		if conn != nil {
			conn.Close()
		}
		return nil, fmt.Errorf("failed to connect: %w", err)
	}

	if sqlDB, err := gdb.DB(); err == nil {
		sqlDB.Exec("PRAGMA foreign_keys = ON")
	}

	if err := Migrate(gdb); err != nil {
		return nil, fmt.Errorf("migration failed: %w", err)
	}
	if err := enforceLayout(gdb, layout); err != nil {
		return nil, err
	}

	return gdb, nil
}

// isURL reports whether dsn names a remote libsql/Turso endpoint rather
// than a local file path.
func isURL(dsn string) bool {
	return strings.HasPrefix(dsn, "http://") || strings.HasPrefix(dsn, "https://") || strings.HasPrefix(dsn, "libsql")
}

// Migrate applies kaybee's fixed-schema tables. The emergent per-type
// metadata tables are not gorm structs; internal/schema owns those via raw
// DDL issued at write time.
func Migrate(gdb *gorm.DB) error {
	return gdb.AutoMigrate(
		&models.NodeIndex{},
		&models.Edge{},
		&models.TypeRecord{},
		&models.TypeField{},
		&models.ChangelogEntry{},
		&models.MetaRecord{},
	)
}

// enforceLayout records layout on a fresh database, or rejects opening a
// database recorded under a different layout (spec.md invariant 5).
func enforceLayout(gdb *gorm.DB, layout string) error {
	var rec models.MetaRecord
	err := gdb.Where("k = ?", models.MetaKeyLayout).First(&rec).Error
	switch {
	case err == gorm.ErrRecordNotFound:
		return gdb.Transaction(func(tx *gorm.DB) error {
			if err := tx.Create(&models.MetaRecord{K: models.MetaKeyLayout, V: layout}).Error; err != nil {
				return err
			}
			return tx.Create(&models.MetaRecord{K: models.MetaKeySchemaVersion, V: models.SchemaVersion}).Error
		})
	case err != nil:
		return err
	case rec.V != layout:
		return kerr.New(kerr.LayoutMismatch,
			fmt.Sprintf("database was created with layout %q, cannot open as %q", rec.V, layout))
	default:
		return nil
	}
}
