package storage

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"gorm.io/gorm"

	"github.com/himanishpuri/Empreinte/internal/fingerprint"
	"github.com/himanishpuri/Empreinte/internal/model"
)

// Helper function to create a temporary test database
func setupTestDB(t *testing.T) (*DBClient, string) {
	t.Helper()

	dbPath := filepath.Join(t.TempDir(), "test_empreinte.sqlite3")
	t.Setenv("EMPREINTE_DB_PATH", dbPath)

	client, err := NewDBClient()
	if err != nil {
		t.Fatalf("Failed to create test DB client: %v", err)
	}

	t.Cleanup(func() {
		client.Close()
	})

	return client, dbPath
}

func TestNewDBClient(t *testing.T) {
	client, dbPath := setupTestDB(t)

	if client.DB == nil {
		t.Fatal("Expected non-nil GORM DB handle")
	}
	if client.db == nil {
		t.Fatal("Expected non-nil sql.DB handle")
	}
	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		t.Errorf("Database file was not created at %s", dbPath)
	}
}

func TestNewDBClientWithCustomPath(t *testing.T) {
	customPath := filepath.Join(t.TempDir(), "subdir", "custom.db")

	client, err := NewDBClientWithPath(customPath)
	if err != nil {
		t.Fatalf("Failed to create DB with custom path: %v", err)
	}
	defer client.Close()

	if _, err := os.Stat(customPath); os.IsNotExist(err) {
		t.Errorf("Database file was not created at custom path %s", customPath)
	}
}

func TestSQLiteInsertStoresKeyColumns(t *testing.T) {
	client, _ := setupTestDB(t)
	ctx := context.Background()

	fp := fingerprint.Fingerprint{FreqAnchor: 100, FreqTarget: 200, DeltaTime: 10, AnchorTime: 42}
	if err := client.Insert(ctx, model.Song{ID: "song-a", Fingerprints: 1}, []fingerprint.Fingerprint{fp}); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}

	var rows []Fingerprint
	if err := client.DB.Find(&rows).Error; err != nil {
		t.Fatalf("Failed to read fingerprints: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("Expected 1 fingerprint row, got %d", len(rows))
	}
	r := rows[0]
	if r.FreqAnchor != 100 || r.FreqTarget != 200 || r.DeltaTime != 10 {
		t.Errorf("Expected key columns (100, 200, 10), got (%d, %d, %d)", r.FreqAnchor, r.FreqTarget, r.DeltaTime)
	}
	if r.SongID != "song-a" || r.AnchorTime != 42 {
		t.Errorf("Unexpected row: %+v", r)
	}

	if !client.DB.Migrator().HasIndex(&Fingerprint{}, "idx_key") {
		t.Error("Expected composite index idx_key on fingerprints")
	}

	occ, err := client.Lookup(ctx, fingerprint.PackKey(100, 200, 10))
	if err != nil {
		t.Fatalf("Lookup failed: %v", err)
	}
	if len(occ) != 1 || occ[0] != (model.Occurrence{SongID: "song-a", AnchorTime: 42}) {
		t.Errorf("Unexpected occurrences: %+v", occ)
	}
}

func TestSQLiteConcurrentDuplicateInsert(t *testing.T) {
	client, _ := setupTestDB(t)
	ctx := context.Background()
	fps := sampleFingerprints(200, 0)

	const writers = 8
	errs := make(chan error, writers)
	var wg sync.WaitGroup
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs <- client.Insert(ctx, model.Song{ID: "same", Fingerprints: len(fps)}, fps)
		}()
	}
	wg.Wait()
	close(errs)

	ok := 0
	for err := range errs {
		switch {
		case err == nil:
			ok++
		case !errors.Is(err, model.ErrSongExists):
			t.Errorf("Expected ErrSongExists for the losing writers, got %v", err)
		}
	}
	if ok != 1 {
		t.Errorf("Expected exactly one successful insert, got %d", ok)
	}

	occ, err := client.Lookup(ctx, fps[0].Key())
	if err != nil {
		t.Fatalf("Lookup failed: %v", err)
	}
	if len(occ) != 1 {
		t.Errorf("Expected 1 occurrence, got %d", len(occ))
	}
}

func TestIsDuplicateKey(t *testing.T) {
	client, _ := setupTestDB(t)

	if err := client.DB.Create(&Song{ID: "x"}).Error; err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	err := client.DB.Create(&Song{ID: "x"}).Error
	if err == nil {
		t.Fatal("Expected primary key violation")
	}
	if !isDuplicateKey(err) {
		t.Errorf("Expected duplicate key error, got %v", err)
	}
	if isDuplicateKey(errors.New("disk full")) {
		t.Error("Unrelated error reported as duplicate key")
	}
}

func TestSQLiteInsertRollsBack(t *testing.T) {
	client, _ := setupTestDB(t)

	// Fail every fingerprint batch after it has been written.
	err := client.DB.Callback().Create().After("gorm:create").Register("test:fail_fingerprints", func(db *gorm.DB) {
		if db.Statement.Table == "fingerprints" {
			db.AddError(errors.New("disk full"))
		}
	})
	if err != nil {
		t.Fatalf("Failed to register callback: %v", err)
	}

	err = client.Insert(context.Background(), model.Song{ID: "song-a"}, sampleFingerprints(3000, 0))
	if !errors.Is(err, model.ErrStorageFailure) {
		t.Fatalf("Expected ErrStorageFailure, got %v", err)
	}

	var songs, fps int64
	client.DB.Model(&Song{}).Count(&songs)
	client.DB.Model(&Fingerprint{}).Count(&fps)
	if songs != 0 || fps != 0 {
		t.Errorf("Expected empty tables after rollback, got %d songs and %d fingerprints", songs, fps)
	}
}

func TestNilDBClient(t *testing.T) {
	var client *DBClient

	if err := client.Close(); err != nil {
		t.Errorf("Expected nil error closing nil client, got %v", err)
	}
	if _, err := client.Lookup(context.Background(), 1); !errors.Is(err, model.ErrStorageFailure) {
		t.Errorf("Expected ErrStorageFailure from nil client, got %v", err)
	}
}
