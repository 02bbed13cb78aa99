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

package mysql

import (
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/blinklabs-io/arbiter/database/plugin/metadata/internal/gormstore"
	"github.com/prometheus/client_golang/prometheus"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// MetadataStoreMysql is a MySQL-based implementation of the metadata store
type MetadataStoreMysql struct {
	*gormstore.Store
	promRegistry prometheus.Registerer
	logger       *slog.Logger
	host         string
	user         string
	password     string
	database     string
	dsn          string
	port         uint
}

// NewWithOptions creates a MySQL metadata store from option functions
func NewWithOptions(opts ...MysqlOptionFunc) (*MetadataStoreMysql, error) {
	db := &MetadataStoreMysql{}
	for _, opt := range opts {
		opt(db)
	}
	if db.logger == nil {
		// Create logger to throw away logs
		// We do this so we don't have to add guards around every log operation
		db.logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	dsn, err := db.buildDSN()
	if err != nil {
		return nil, err
	}
	metadataDb, err := gorm.Open(
		mysql.Open(dsn),
		&gorm.Config{
			Logger:                 gormlogger.Discard,
			SkipDefaultTransaction: true,
		},
	)
	if err != nil {
		return nil, err
	}
	store, err := gormstore.New(metadataDb, db.logger)
	if err != nil {
		return nil, err
	}
	db.Store = store
	db.RegisterMetrics(db.promRegistry, "mysql")
	return db, nil
}

func (d *MetadataStoreMysql) buildDSN() (string, error) {
	if d.dsn != "" {
		return d.dsn, nil
	}
	if d.password == "" {
		return "", errors.New("mysql password is required when no DSN is given")
	}
	return fmt.Sprintf(
		"%s:%s@tcp(%s:%d)/%s?charset=utf8mb4&parseTime=True&loc=UTC",
		d.user,
		d.password,
		d.host,
		d.port,
		d.database,
	), nil
}

// Start implements the plugin.Plugin interface
func (d *MetadataStoreMysql) Start() error {
	return nil
}

// Stop implements the plugin.Plugin interface
func (d *MetadataStoreMysql) Stop() error {
	return d.Close()
}
