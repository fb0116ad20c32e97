// Package journal records installed content blocks in a bbolt database,
// with a BLAKE3 digest of every installed file, so local damage can be
// detected after the fact.
package journal

import (
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"go.etcd.io/bbolt"
	"lukechampine.com/blake3"

	"github.com/javanhut/contentsync/internal/storage"
)

// Buckets
var (
	BucketBlocks = []byte("blocks") // block id -> Record JSON
	BucketMeta   = []byte("meta")   // free-form key -> value
)

// Meta keys
const (
	MetaLastCheck  = "last_check"
	MetaLastUpdate = "last_update"
)

// ErrNotFound is returned for unknown blocks and meta keys.
var ErrNotFound = errors.New("journal: not found")

// Record is the journal entry for one installed block.
type Record struct {
	ID          string            `json:"id"`
	Hash        string            `json:"hash"`
	InstalledAt time.Time         `json:"installed_at"`
	Files       map[string]string `json:"files"` // path -> blake3 hex
}

// SortedFiles returns the record's file paths in order.
func (r Record) SortedFiles() []string {
	files := make([]string, 0, len(r.Files))
	for f := range r.Files {
		files = append(files, f)
	}
	sort.Strings(files)
	return files
}

// Digest returns the hex BLAKE3-256 digest of data.
func Digest(data []byte) string {
	sum := blake3.Sum256(data)
	return hex.EncodeToString(sum[:])
}

type DB struct {
	*bbolt.DB
	log *slog.Logger
	now func() time.Time
}

// Open opens (creating if needed) the journal at path.
func Open(path string, log *slog.Logger) (*DB, error) {
	bdb, err := bbolt.Open(path, 0644, &bbolt.Options{Timeout: 2 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("open journal: %w", err)
	}
	// Ensure buckets exist
	if err := bdb.Update(func(tx *bbolt.Tx) error {
		if _, e := tx.CreateBucketIfNotExists(BucketBlocks); e != nil {
			return e
		}
		if _, e := tx.CreateBucketIfNotExists(BucketMeta); e != nil {
			return e
		}
		return nil
	}); err != nil {
		_ = bdb.Close()
		return nil, err
	}
	if log == nil {
		log = slog.Default()
	}
	return &DB{DB: bdb, log: log, now: time.Now}, nil
}

func (db *DB) Close() error { return db.DB.Close() }

// PutRecord stores r, replacing any previous record for the block.
func (db *DB) PutRecord(r Record) error {
	data, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("encode record: %w", err)
	}
	return db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(BucketBlocks).Put([]byte(r.ID), data)
	})
}

// Record looks up the journal entry for a block.
func (db *DB) Record(id string) (Record, error) {
	var r Record
	err := db.View(func(tx *bbolt.Tx) error {
		v := tx.Bucket(BucketBlocks).Get([]byte(id))
		if v == nil {
			return fmt.Errorf("%w: block %s", ErrNotFound, id)
		}
		return json.Unmarshal(v, &r)
	})
	return r, err
}

// Records returns every journal entry ordered by block id.
func (db *DB) Records() ([]Record, error) {
	var out []Record
	err := db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket(BucketBlocks).ForEach(func(k, v []byte) error {
			var r Record
			if err := json.Unmarshal(v, &r); err != nil {
				return fmt.Errorf("decode record %s: %w", k, err)
			}
			out = append(out, r)
			return nil
		})
	})
	return out, err
}

// DeleteRecord removes the journal entry for a block.
func (db *DB) DeleteRecord(id string) error {
	return db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(BucketBlocks).Delete([]byte(id))
	})
}

// PutMeta stores a metadata value.
func (db *DB) PutMeta(key, value string) error {
	return db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(BucketMeta).Put([]byte(key), []byte(value))
	})
}

// Meta retrieves a metadata value.
func (db *DB) Meta(key string) (string, error) {
	var value string
	err := db.View(func(tx *bbolt.Tx) error {
		v := tx.Bucket(BucketMeta).Get([]byte(key))
		if v == nil {
			return fmt.Errorf("%w: meta %s", ErrNotFound, key)
		}
		value = string(v)
		return nil
	})
	return value, err
}

// Touch stamps a metadata key with the current time.
func (db *DB) Touch(key string) error {
	return db.PutMeta(key, db.now().UTC().Format(time.RFC3339))
}

// BlockInstalled records an install. It satisfies the updater's observer
// interface; failures are logged because installs never abort on journal errors.
// Files the block declares but that were not written get an empty digest,
// which Verify reports as damage.
func (db *DB) BlockInstalled(lb storage.LocalBlock, written map[string][]byte) {
	r := Record{
		ID:          lb.ID,
		Hash:        lb.Hash,
		InstalledAt: db.now().UTC(),
		Files:       make(map[string]string, len(lb.Files)),
	}
	for _, p := range lb.Files {
		if data, ok := written[p]; ok {
			r.Files[p] = Digest(data)
		} else {
			r.Files[p] = ""
		}
	}
	if err := db.PutRecord(r); err != nil {
		db.log.Warn("journal install record failed", "block", lb.ID, "error", err)
	}
}

// BlockRemoved drops the record of a removed block.
func (db *DB) BlockRemoved(id string) {
	if err := db.DeleteRecord(id); err != nil {
		db.log.Warn("journal removal failed", "block", id, "error", err)
	}
}
