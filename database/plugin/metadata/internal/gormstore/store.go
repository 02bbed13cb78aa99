// Copyright 2026 Blink Labs Software
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package gormstore implements the metadata store operations shared by every
// gorm-backed metadata plugin.
package gormstore

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/blinklabs-io/arbiter/database/models"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"gorm.io/gorm"
	"gorm.io/plugin/opentelemetry/tracing"
)

// Store wraps a gorm connection. Every accessor takes an optional *gorm.DB
// transaction and falls back to the store connection when it is nil.
type Store struct {
	db     *gorm.DB
	logger *slog.Logger
}

// New configures tracing on db and migrates the metadata schema
func New(db *gorm.DB, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		// Create logger to throw away logs
		// We do this so we don't have to add guards around every log operation
		logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	s := &Store{
		db:     db,
		logger: logger,
	}
	// Configure tracing for GORM
	if err := s.db.Use(tracing.NewPlugin(tracing.WithoutMetrics())); err != nil {
		return nil, err
	}
	if err := s.migrate(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Store) migrate() error {
	allModels := append([]any{&CommitTimestamp{}}, models.MigrateModels...)
	for _, model := range allModels {
		s.logger.Debug(
			fmt.Sprintf("creating table: %T", model),
			"component", "database",
		)
		if err := s.db.AutoMigrate(model); err != nil {
			return fmt.Errorf("migrate %T: %w", model, err)
		}
	}
	return nil
}

// RegisterMetrics exposes connection pool gauges labeled with the dialect name
func (s *Store) RegisterMetrics(registry prometheus.Registerer, dialect string) {
	if registry == nil {
		return
	}
	promauto.With(registry).NewGaugeFunc(
		prometheus.GaugeOpts{
			Name:        "arbiter_metadata_open_connections",
			Help:        "open connections to the metadata database",
			ConstLabels: prometheus.Labels{"dialect": dialect},
		},
		func() float64 {
			sqlDb, err := s.db.DB()
			if err != nil {
				return 0
			}
			return float64(sqlDb.Stats().OpenConnections)
		},
	)
}

// DB returns the underlying connection
func (s *Store) DB() *gorm.DB {
	return s.db
}

// Transaction begins a new transaction
func (s *Store) Transaction() *gorm.DB {
	return s.db.Begin()
}

// Close closes the underlying connection pool
func (s *Store) Close() error {
	sqlDb, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDb.Close()
}

func (s *Store) resolveDB(txn *gorm.DB) *gorm.DB {
	if txn != nil {
		return txn
	}
	return s.db
}
