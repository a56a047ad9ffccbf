package cache

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"
)

// DB is the sqlite database file backing persistent stores
type DB struct{ *gorm.DB }

// entry is one cached value, JSON encoded
type entry struct {
	Namespace string `gorm:"primaryKey"`
	Key       string `gorm:"column:cache_key;primaryKey"`
	Value     []byte
	CachedAt  time.Time
}

func (entry) TableName() string { return "cache_entries" }

// Open returns a connection to a migrated sqlite database file on disk,
// creating the file if necessary.
func Open(filename string) (*DB, error) {
	gdb, err := gorm.Open(sqlite.Open(filename), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("error opening cache db at '%s': %w", filename, err)
	}

	if err := gdb.AutoMigrate(&entry{}); err != nil {
		return nil, fmt.Errorf("error migrating cache db at '%s': %w", filename, err)
	}

	return &DB{gdb}, nil
}

// Close closes the underlying connection pool
func (db *DB) Close() error {
	sqlDB, err := db.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// SQLiteStore is a Store persisted in one namespace of a DB
type SQLiteStore[V any] struct {
	db        *DB
	namespace string
}

// NewSQLiteStore creates a store for namespace in db
func NewSQLiteStore[V any](db *DB, namespace string) *SQLiteStore[V] {
	return &SQLiteStore[V]{db: db, namespace: namespace}
}

func (s *SQLiteStore[V]) Get(key string) (V, bool, error) {
	var zero V
	var e entry
	err := s.db.
		Where("namespace = ? AND cache_key = ?", s.namespace, key).
		Take(&e).
		Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return zero, false, nil
	}
	if err != nil {
		return zero, false, fmt.Errorf("error reading cache entry '%s/%s': %w", s.namespace, key, err)
	}

	var v V
	if err := json.Unmarshal(e.Value, &v); err != nil {
		return zero, false, fmt.Errorf("error decoding cache entry '%s/%s': %w", s.namespace, key, err)
	}
	return v, true, nil
}

func (s *SQLiteStore[V]) Set(key string, value V) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("error encoding cache entry '%s/%s': %w", s.namespace, key, err)
	}

	e := entry{Namespace: s.namespace, Key: key, Value: data, CachedAt: time.Now().UTC()}
	if err := s.db.
		Clauses(clause.OnConflict{UpdateAll: true}).
		Create(&e).
		Error; err != nil {
		return fmt.Errorf("error writing cache entry '%s/%s': %w", s.namespace, key, err)
	}
	return nil
}

func (s *SQLiteStore[V]) Len() int {
	var n int64
	if err := s.db.Model(&entry{}).Where("namespace = ?", s.namespace).Count(&n).Error; err != nil {
		return 0
	}
	return int(n)
}
