// Package store persists per-torrent resume state in a BoltDB file,
// so an interrupted download does not re-verify pieces it already
// completed.
package store

import (
	"fmt"
	"path/filepath"

	"github.com/boltdb/bolt"

	"github.com/drivasperez/torrent/bitfield"
)

const verifiedKey = "verified"

// Store is a resume-state handle scoped to one torrent's info_hash.
// It is safe for concurrent use: Bolt serializes writes internally.
type Store struct {
	db     *bolt.DB
	bucket []byte
}

// Open opens (creating if necessary) a BoltDB file under dir, scoped
// to infoHash's own bucket so multiple torrents can share one
// database file.
func Open(dir string, infoHash [20]byte) (*Store, error) {
	path := filepath.Join(dir, "resume.db")
	db, err := bolt.Open(path, 0o600, nil)
	if err != nil {
		return nil, fmt.Errorf("store: open %s: %w", path, err)
	}

	bucket := []byte(fmt.Sprintf("%x", infoHash))
	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucket)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("store: create bucket: %w", err)
	}

	return &Store{db: db, bucket: bucket}, nil
}

// Close releases the underlying database file.
func (s *Store) Close() error {
	return s.db.Close()
}

// Load returns the bitfield of pieces already verified in a previous
// run. An empty bitfield (all pieces missing) is returned, not an
// error, when no resume state exists yet.
func (s *Store) Load(numPieces int) (bitfield.Bitfield, error) {
	bf := bitfield.New(numPieces)
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(s.bucket)
		v := b.Get([]byte(verifiedKey))
		copy(bf, v)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("store: load: %w", err)
	}
	return bf, nil
}

// MarkVerified records that piece index has passed its integrity
// check and durably commits the updated bitfield.
func (s *Store) MarkVerified(index int, numPieces int) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(s.bucket)
		bf := bitfield.New(numPieces)
		copy(bf, b.Get([]byte(verifiedKey)))
		bf.Set(index)
		return b.Put([]byte(verifiedKey), bf)
	})
}
