package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/himanishpuri/Empreinte/internal/fingerprint"
	"github.com/himanishpuri/Empreinte/internal/model"
)

const DefaultDBFile = "empreinte.sqlite3"
const errDBClientNil = "db client is nil"

// DBClient is the SQLite-backed Index.
type DBClient struct {
	DB *gorm.DB
	db *sql.DB

	// writeMu serializes catalog writes from this process so the existence
	// check and the insert see the same state.
	writeMu sync.Mutex
}

type Song struct {
	ID           string `gorm:"primaryKey" json:"id"`
	Fingerprints int    `json:"fingerprints"`
	DurationMs   int    `json:"duration_ms"`
	CreatedAt    time.Time
}

// Fingerprint rows keep the key fields in separate columns under one
// composite index.
type Fingerprint struct {
	ID         uint   `gorm:"primaryKey;autoIncrement"`
	FreqAnchor uint16 `gorm:"index:idx_key,priority:1" json:"freq_anchor"`
	FreqTarget uint16 `gorm:"index:idx_key,priority:2" json:"freq_target"`
	DeltaTime  uint16 `gorm:"index:idx_key,priority:3" json:"delta_time"`
	SongID     string `gorm:"index:idx_song" json:"song_id"`
	AnchorTime uint32 `json:"anchor_time"`
}

// isDuplicateKey reports a primary-key or unique constraint violation.
func isDuplicateKey(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}

func NewDBClient() (*DBClient, error) {
	dbPath := os.Getenv("EMPREINTE_DB_PATH")
	if dbPath == "" {
		dbPath = DefaultDBFile
	}
	return NewDBClientWithPath(dbPath)
}

func NewDBClientWithPath(dbPath string) (*DBClient, error) {
	if dbPath == "" {
		dbPath = DefaultDBFile
	}
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, storageErr("creating db dir", err)
		}
	}

	gormConfig := &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	}

	db, err := gorm.Open(sqlite.Open(dbPath+"?_pragma=busy_timeout(5000)"), gormConfig)
	if err != nil {
		return nil, storageErr("opening sqlite db", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, storageErr("getting sql.DB from gorm", err)
	}

	sqlDB.SetMaxOpenConns(25)
	sqlDB.SetMaxIdleConns(5)
	sqlDB.SetConnMaxLifetime(time.Hour)

	if err := db.AutoMigrate(&Song{}, &Fingerprint{}); err != nil {
		sqlDB.Close()
		return nil, storageErr("auto migrate", err)
	}

	return &DBClient{DB: db, db: sqlDB}, nil
}

func (c *DBClient) Close() error {
	if c == nil || c.db == nil {
		return nil
	}
	return c.db.Close()
}

// Insert writes the song row and all fingerprint rows in one transaction.
func (c *DBClient) Insert(ctx context.Context, song model.Song, fps []fingerprint.Fingerprint) error {
	if c == nil || c.DB == nil {
		return storageErr("insert", errors.New(errDBClientNil))
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	err := c.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing int64
		if err := tx.Model(&Song{}).Where("id = ?", song.ID).Count(&existing).Error; err != nil {
			return storageErr("querying existing song", err)
		}
		if existing > 0 {
			return fmt.Errorf("%w: %s", model.ErrSongExists, song.ID)
		}

		row := Song{ID: song.ID, Fingerprints: song.Fingerprints, DurationMs: song.DurationMs}
		if err := tx.Create(&row).Error; err != nil {
			if isDuplicateKey(err) {
				return fmt.Errorf("%w: %s", model.ErrSongExists, song.ID)
			}
			return storageErr("creating song", err)
		}

		entries := make([]Fingerprint, 0, min(len(fps), 1000))
		for _, fp := range fps {
			entries = append(entries, Fingerprint{
				FreqAnchor: fp.FreqAnchor,
				FreqTarget: fp.FreqTarget,
				DeltaTime:  fp.DeltaTime,
				SongID:     song.ID,
				AnchorTime: fp.AnchorTime,
			})
			if len(entries) >= 1000 {
				if err := tx.CreateInBatches(entries, 500).Error; err != nil {
					return storageErr("batch insert fingerprints", err)
				}
				entries = entries[:0]
			}
		}
		if len(entries) > 0 {
			if err := tx.CreateInBatches(entries, 500).Error; err != nil {
				return storageErr("batch insert last fingerprints", err)
			}
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, model.ErrSongExists) || errors.Is(err, model.ErrStorageFailure) {
			return err
		}
		return storageErr("insert transaction", err)
	}
	return nil
}

// Lookup returns occurrences for key in insertion order.
func (c *DBClient) Lookup(ctx context.Context, key uint64) ([]model.Occurrence, error) {
	if c == nil || c.DB == nil {
		return nil, storageErr("lookup", errors.New(errDBClientNil))
	}
	fa, ft, dt := fingerprint.UnpackKey(key)
	var rows []Fingerprint
	err := c.DB.WithContext(ctx).
		Where("freq_anchor = ? AND freq_target = ? AND delta_time = ?", fa, ft, dt).
		Order("id").
		Find(&rows).Error
	if err != nil {
		return nil, storageErr("querying fingerprints", err)
	}
	out := make([]model.Occurrence, 0, len(rows))
	for _, r := range rows {
		out = append(out, model.Occurrence{SongID: r.SongID, AnchorTime: r.AnchorTime})
	}
	return out, nil
}

func (c *DBClient) Songs(ctx context.Context) ([]model.Song, error) {
	if c == nil || c.DB == nil {
		return nil, storageErr("list songs", errors.New(errDBClientNil))
	}
	var rows []Song
	if err := c.DB.WithContext(ctx).Order("created_at, id").Find(&rows).Error; err != nil {
		return nil, storageErr("listing songs", err)
	}
	out := make([]model.Song, 0, len(rows))
	for _, r := range rows {
		out = append(out, model.Song{ID: r.ID, Fingerprints: r.Fingerprints, DurationMs: r.DurationMs})
	}
	return out, nil
}

func (c *DBClient) Delete(ctx context.Context, songID string) error {
	if c == nil || c.DB == nil {
		return storageErr("delete", errors.New(errDBClientNil))
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	err := c.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Where("id = ?", songID).Delete(&Song{})
		if res.Error != nil {
			return storageErr("deleting song", res.Error)
		}
		if res.RowsAffected == 0 {
			return fmt.Errorf("%w: %s", model.ErrSongNotFound, songID)
		}
		if err := tx.Where("song_id = ?", songID).Delete(&Fingerprint{}).Error; err != nil {
			return storageErr("deleting fingerprints", err)
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, model.ErrSongNotFound) || errors.Is(err, model.ErrStorageFailure) {
			return err
		}
		return storageErr("delete transaction", err)
	}
	return nil
}
