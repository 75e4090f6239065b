package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const DefaultDBFile = "ayascan.sqlite3"
const errDBClientNil = "db client is nil"

// Result is one row of the results table.
type Result struct {
	ID        int64  `gorm:"primaryKey;autoIncrement" json:"id"`
	Letter    string `gorm:"type:text;not null" json:"letter"`
	Number    string `gorm:"type:text;not null" json:"number"`
	Timestamp int64  `gorm:"not null;index:idx_results_timestamp" json:"timestamp"`
}

func (Result) TableName() string { return "results" }

// DBClient is the SQLite-backed results table.
type DBClient struct {
	DB  *gorm.DB
	db  *sql.DB
	now func() time.Time
}

func NewDBClientWithPath(dbPath string) (*DBClient, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating db dir: %w", err)
		}
	}

	gormConfig := &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	}

	db, err := gorm.Open(sqlite.Open(dbPath+"?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"), gormConfig)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite db: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("getting sql.DB from gorm: %w", err)
	}

	// One writer at a time; readers share the pool.
	sqlDB.SetMaxOpenConns(4)
	sqlDB.SetMaxIdleConns(2)
	sqlDB.SetConnMaxLifetime(time.Hour)

	if err := db.AutoMigrate(&Result{}); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("auto migrate: %w", err)
	}

	return &DBClient{DB: db, db: sqlDB, now: time.Now}, nil
}

func (c *DBClient) Close() error {
	if c == nil || c.db == nil {
		return nil
	}
	return c.db.Close()
}

// SetClock replaces the wall clock used for new rows.
func (c *DBClient) SetClock(now func() time.Time) {
	c.now = now
}

// Insert appends one row stamped with the current wall-clock time.
func (c *DBClient) Insert(ctx context.Context, letter, number string) (Result, error) {
	if c == nil || c.DB == nil {
		return Result{}, errors.New(errDBClientNil)
	}

	row := Result{Letter: letter, Number: number, Timestamp: c.now().UnixMilli()}
	if err := c.DB.WithContext(ctx).Create(&row).Error; err != nil {
		return Result{}, fmt.Errorf("inserting result: %w", err)
	}
	return row, nil
}

// GetAll returns every row, newest first.
func (c *DBClient) GetAll(ctx context.Context) ([]Result, error) {
	if c == nil || c.DB == nil {
		return nil, errors.New(errDBClientNil)
	}

	var rows []Result
	if err := c.DB.WithContext(ctx).Order("timestamp DESC, id DESC").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("listing results: %w", err)
	}
	return rows, nil
}

// Search returns rows whose letter contains q case-insensitively or whose
// number contains q, newest first. q is matched literally.
func (c *DBClient) Search(ctx context.Context, q string) ([]Result, error) {
	if c == nil || c.DB == nil {
		return nil, errors.New(errDBClientNil)
	}

	pattern := LikePattern(q)
	var rows []Result
	err := c.DB.WithContext(ctx).
		Where(`UPPER(letter) LIKE UPPER(?) ESCAPE '\' OR number LIKE ? ESCAPE '\'`, pattern, pattern).
		Order("timestamp DESC, id DESC").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("searching results: %w", err)
	}
	return rows, nil
}

// Count returns the number of stored rows.
func (c *DBClient) Count(ctx context.Context) (int64, error) {
	if c == nil || c.DB == nil {
		return 0, errors.New(errDBClientNil)
	}
	var n int64
	if err := c.DB.WithContext(ctx).Model(&Result{}).Count(&n).Error; err != nil {
		return 0, fmt.Errorf("counting results: %w", err)
	}
	return n, nil
}

// LikePattern wraps q in % wildcards after escaping LIKE metacharacters
// with a backslash.
func LikePattern(q string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return "%" + r.Replace(q) + "%"
}
