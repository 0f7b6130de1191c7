package storage

import (
	"bytes"
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"

	badger "github.com/dgraph-io/badger/v3"

	"github.com/himanishpuri/Empreinte/internal/fingerprint"
	"github.com/himanishpuri/Empreinte/internal/model"
)

// Key layout:
//
//	f | key (6 bytes BE) | anchor (4 bytes BE) | song id   -> uint32 count
//	s | song id                                             -> JSON model.Song
const (
	fpPrefix   = 'f'
	songPrefix = 's'
	fpKeyLen   = 1 + 6 + 4
)

// BadgerIndex is the embedded key-value Index.
type BadgerIndex struct {
	db *badger.DB

	// deleteChunk caps deletes per transaction; 0 means one transaction
	// unless badger reports it too big.
	deleteChunk int
}

func NewBadgerIndex(dir string) (*BadgerIndex, error) {
	opts := badger.DefaultOptions(dir).
		WithLogger(nil).
		WithMemTableSize(256 << 20)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, storageErr("opening badger", err)
	}
	return &BadgerIndex{db: db}, nil
}

func (b *BadgerIndex) Close() error {
	if b == nil || b.db == nil {
		return nil
	}
	return b.db.Close()
}

func lookupPrefix(key uint64) []byte {
	p := make([]byte, 7)
	p[0] = fpPrefix
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], key)
	copy(p[1:], buf[2:])
	return p
}

func fpKey(key uint64, anchor uint32, songID string) []byte {
	k := make([]byte, fpKeyLen, fpKeyLen+len(songID))
	copy(k, lookupPrefix(key))
	binary.BigEndian.PutUint32(k[7:], anchor)
	return append(k, songID...)
}

func songKey(songID string) []byte {
	return append([]byte{songPrefix}, songID...)
}

type occurrenceKey struct {
	key    uint64
	anchor uint32
}

// Insert writes every entry of one song in a single transaction. Songs
// large enough to exceed badger's transaction limit fail with
// ErrStorageFailure and leave nothing behind.
func (b *BadgerIndex) Insert(ctx context.Context, song model.Song, fps []fingerprint.Fingerprint) error {
	if err := ctx.Err(); err != nil {
		return storageErr("insert", err)
	}

	// identical (key, anchor) pairs within a song collapse into one counted entry
	counts := make(map[occurrenceKey]uint32, len(fps))
	order := make([]occurrenceKey, 0, len(fps))
	for _, fp := range fps {
		oc := occurrenceKey{key: fp.Key(), anchor: fp.AnchorTime}
		if counts[oc] == 0 {
			order = append(order, oc)
		}
		counts[oc]++
	}

	meta, err := json.Marshal(song)
	if err != nil {
		return storageErr("encoding song", err)
	}

	err = b.db.Update(func(txn *badger.Txn) error {
		if _, err := txn.Get(songKey(song.ID)); err == nil {
			return fmt.Errorf("%w: %s", model.ErrSongExists, song.ID)
		} else if !errors.Is(err, badger.ErrKeyNotFound) {
			return storageErr("querying existing song", err)
		}

		val := make([]byte, 4)
		for _, oc := range order {
			binary.BigEndian.PutUint32(val, counts[oc])
			if err := txn.Set(fpKey(oc.key, oc.anchor, song.ID), bytes.Clone(val)); err != nil {
				return storageErr("writing fingerprint", err)
			}
		}
		if err := txn.Set(songKey(song.ID), meta); err != nil {
			return storageErr("writing song", err)
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, model.ErrSongExists) || errors.Is(err, model.ErrStorageFailure) {
			return err
		}
		return storageErr("commit", err)
	}
	return nil
}

func (b *BadgerIndex) Lookup(ctx context.Context, key uint64) ([]model.Occurrence, error) {
	if err := ctx.Err(); err != nil {
		return nil, storageErr("lookup", err)
	}

	var out []model.Occurrence
	prefix := lookupPrefix(key)
	err := b.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			item := it.Item()
			k := item.Key()
			if len(k) < fpKeyLen {
				continue
			}
			anchor := binary.BigEndian.Uint32(k[7:fpKeyLen])
			songID := string(k[fpKeyLen:])

			var count uint32
			if err := item.Value(func(v []byte) error {
				if len(v) != 4 {
					return fmt.Errorf("malformed count for %x", k)
				}
				count = binary.BigEndian.Uint32(v)
				return nil
			}); err != nil {
				return err
			}
			for i := uint32(0); i < count; i++ {
				out = append(out, model.Occurrence{SongID: songID, AnchorTime: anchor})
			}
		}
		return nil
	})
	if err != nil {
		return nil, storageErr("lookup", err)
	}
	return out, nil
}

func (b *BadgerIndex) Songs(ctx context.Context) ([]model.Song, error) {
	if err := ctx.Err(); err != nil {
		return nil, storageErr("listing songs", err)
	}
	var out []model.Song
	prefix := []byte{songPrefix}
	err := b.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			var s model.Song
			if err := it.Item().Value(func(v []byte) error {
				return json.Unmarshal(v, &s)
			}); err != nil {
				return err
			}
			out = append(out, s)
		}
		return nil
	})
	if err != nil {
		return nil, storageErr("listing songs", err)
	}
	return out, nil
}

// Delete removes songID's fingerprints and then its catalog row inside one
// read-write transaction. When the song is too large for a single
// transaction the fingerprints are committed in chunks and the catalog row
// goes last, so an interrupted delete leaves the song listed and retryable.
func (b *BadgerIndex) Delete(ctx context.Context, songID string) error {
	if err := ctx.Err(); err != nil {
		return storageErr("delete", err)
	}

	txn := b.db.NewTransaction(true)
	defer func() { txn.Discard() }()

	if _, err := txn.Get(songKey(songID)); errors.Is(err, badger.ErrKeyNotFound) {
		return fmt.Errorf("%w: %s", model.ErrSongNotFound, songID)
	} else if err != nil {
		return storageErr("querying song", err)
	}

	doomed, err := songFingerprintKeys(ctx, txn, songID)
	if err != nil {
		return storageErr("scanning fingerprints", err)
	}

	pending := 0
	del := func(k []byte) error {
		if b.deleteChunk > 0 && pending >= b.deleteChunk {
			if err := txn.Commit(); err != nil {
				return err
			}
			txn = b.db.NewTransaction(true)
			pending = 0
		}
		err := txn.Delete(k)
		if errors.Is(err, badger.ErrTxnTooBig) {
			if err := txn.Commit(); err != nil {
				return err
			}
			txn = b.db.NewTransaction(true)
			pending = 0
			err = txn.Delete(k)
		}
		if err == nil {
			pending++
		}
		return err
	}

	for _, k := range doomed {
		if err := ctx.Err(); err != nil {
			return storageErr("deleting fingerprints", err)
		}
		if err := del(k); err != nil {
			return storageErr("deleting fingerprint", err)
		}
	}
	if err := del(songKey(songID)); err != nil {
		return storageErr("deleting song", err)
	}
	if err := txn.Commit(); err != nil {
		return storageErr("commit", err)
	}
	return nil
}

func songFingerprintKeys(ctx context.Context, txn *badger.Txn, songID string) ([][]byte, error) {
	var keys [][]byte
	prefix := []byte{fpPrefix}
	opts := badger.DefaultIteratorOptions
	opts.Prefix = prefix
	opts.PrefetchValues = false
	it := txn.NewIterator(opts)
	defer it.Close()

	for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		k := it.Item().Key()
		if len(k) > fpKeyLen && string(k[fpKeyLen:]) == songID {
			keys = append(keys, it.Item().KeyCopy(nil))
		}
	}
	return keys, nil
}
