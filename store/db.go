// Package store is the downstream audit writer for Signal, CompositeSignal,
// and RegimeTransition records (spec §6.4): "the core writes nothing to the
// TS store directly; downstream writers persist every emitted Signal,
// Composite, and Regime transition verbatim." It is out of the core's
// signal-generation scope per spec §1, but still needs a concrete
// collaborator, so KASS implements one grounded directly on the teacher's
// database package.
package store

import (
	"fmt"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// DB holds the GORM connection, mirroring the teacher's database.Database
// wrapper (database/models.go's Connect/Close).
type DB struct {
	db *gorm.DB
}

func Connect(host string, port string, dbname, user, password string) (*DB, error) {
	dsn := fmt.Sprintf("host=%s port=%s dbname=%s user=%s password=%s sslmode=disable",
		host, port, dbname, user, password)

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("store: connect: %w", err)
	}
	return &DB{db: db}, nil
}

func (d *DB) Close() error {
	sqlDB, err := d.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// InitSchema auto-migrates the three append-only audit tables.
func (d *DB) InitSchema() error {
	return d.db.AutoMigrate(&SignalRecord{}, &CompositeRecord{}, &RegimeTransitionRecord{})
}
