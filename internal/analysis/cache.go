/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package analysis

import (
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// CachedAnalysis is a track's analyzed BPM and beat offset, keyed by the
// file state it was computed from. It is explicitly not a playlist or
// library store — just a memo for analysis results.
type CachedAnalysis struct {
	Path       string `gorm:"primaryKey"`
	Size       int64  `gorm:"primaryKey"`
	ModTime    int64  `gorm:"primaryKey"` // unix seconds
	BPM        float64
	BeatOffset float64
}

func (CachedAnalysis) TableName() string { return "cached_analyses" }

// Cache persists analysis results keyed by (path, size, mtime) so reloading
// an unchanged file skips re-analysis.
type Cache struct {
	db *gorm.DB
}

// OpenCache opens (creating if needed) a sqlite-backed analysis cache at dsn.
func OpenCache(dsn string, debug bool) (*Cache, error) {
	gormConfig := &gorm.Config{Logger: logger.Default.LogMode(logger.Warn)}
	if debug {
		gormConfig.Logger = logger.Default.LogMode(logger.Info)
	}

	db, err := gorm.Open(sqlite.Open(dsn), gormConfig)
	if err != nil {
		return nil, err
	}
	if err := db.AutoMigrate(&CachedAnalysis{}); err != nil {
		return nil, err
	}
	return &Cache{db: db}, nil
}

// Close releases the underlying database connection.
func (c *Cache) Close() error {
	sqlDB, err := c.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Lookup returns a cached analysis for path at the given size/modTime, and
// whether one was found. A size or modTime mismatch against what was stored
// is treated as a miss, since the file has since changed.
func (c *Cache) Lookup(path string, size int64, modTime time.Time) (CachedAnalysis, bool) {
	var row CachedAnalysis
	result := c.db.Where("path = ? AND size = ? AND mod_time = ?", path, size, modTime.Unix()).First(&row)
	if result.Error != nil {
		return CachedAnalysis{}, false
	}
	return row, true
}

// Store records an analysis result, replacing any prior entry with the same
// (path, size, modTime) key. Entries stored for the same path under a
// different size or modTime are left in place.
func (c *Cache) Store(path string, size int64, modTime time.Time, bpm, beatOffset float64) error {
	row := CachedAnalysis{
		Path:       path,
		Size:       size,
		ModTime:    modTime.Unix(),
		BPM:        bpm,
		BeatOffset: beatOffset,
	}
	return c.db.Save(&row).Error
}
