package storage

import (
	"encoding/binary"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	bolt "go.etcd.io/bbolt"
)

var (
	seenUsersBucket = []byte("seen_users")

	errBucketMissing = errors.New("seen_users bucket missing")
)

// boltStore maps user id to the unix second its "seen" mark lapses.
type boltStore struct {
	db *bolt.DB

	ttl   time.Duration
	every time.Duration
	now   func() time.Time

	sweepMu   sync.Mutex
	lastSweep atomic.Int64
}

func openBolt(path string, opts Options) (Store, error) {
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create storage directory: %w", err)
		}
	}

	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("open bbolt db: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(seenUsersBucket)
		return err
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("init bucket: %w", err)
	}

	s := &boltStore{db: db, ttl: opts.UserTTL, every: opts.CleanupInterval, now: time.Now}
	s.lastSweep.Store(s.now().Unix())
	return s, nil
}

func (b *boltStore) Close() error {
	if b == nil || b.db == nil {
		return nil
	}
	return b.db.Close()
}

// SeenUser reports whether id carries a mark that has not lapsed yet.
// Lapsed marks are left for the periodic sweep.
func (b *boltStore) SeenUser(id int) (bool, error) {
	if b == nil || b.db == nil {
		return false, nil
	}
	now := b.now()
	if err := b.sweepIfDue(now); err != nil {
		return false, err
	}

	var seen bool
	err := b.db.View(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(seenUsersBucket)
		if bucket == nil {
			return errBucketMissing
		}
		until, ok := decodeExpiry(bucket.Get(userKey(id)))
		seen = ok && until.After(now)
		return nil
	})
	return seen, err
}

// MarkUser (re)marks id until now+TTL.
func (b *boltStore) MarkUser(id int) error {
	if b == nil || b.db == nil {
		return nil
	}
	now := b.now()
	if err := b.sweepIfDue(now); err != nil {
		return err
	}

	return b.update(func(bucket *bolt.Bucket) error {
		return bucket.Put(userKey(id), encodeExpiry(now.Add(b.ttl)))
	})
}

func (b *boltStore) update(fn func(*bolt.Bucket) error) error {
	return b.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(seenUsersBucket)
		if bucket == nil {
			return errBucketMissing
		}
		return fn(bucket)
	})
}

func (b *boltStore) due(now time.Time) bool {
	return now.Sub(time.Unix(b.lastSweep.Load(), 0)) >= b.every
}

// sweepIfDue drops lapsed marks, at most once per cleanup interval.
func (b *boltStore) sweepIfDue(now time.Time) error {
	if !b.due(now) {
		return nil
	}
	b.sweepMu.Lock()
	defer b.sweepMu.Unlock()
	if !b.due(now) {
		return nil
	}

	if err := b.update(func(bucket *bolt.Bucket) error {
		return sweep(bucket, now)
	}); err != nil {
		return fmt.Errorf("sweep seen users: %w", err)
	}
	b.lastSweep.Store(now.Unix())
	return nil
}

// sweep deletes keys whose mark has lapsed or cannot be decoded. Keys are
// copied first; bolt forbids mutating a bucket while a cursor walks it.
func sweep(bucket *bolt.Bucket, now time.Time) error {
	var stale [][]byte
	err := bucket.ForEach(func(k, v []byte) error {
		if until, ok := decodeExpiry(v); !ok || !until.After(now) {
			stale = append(stale, append([]byte(nil), k...))
		}
		return nil
	})
	if err != nil {
		return err
	}
	for _, k := range stale {
		if err := bucket.Delete(k); err != nil {
			return err
		}
	}
	return nil
}

func userKey(id int) []byte {
	return []byte(strconv.Itoa(id))
}

func encodeExpiry(t time.Time) []byte {
	return binary.BigEndian.AppendUint64(nil, uint64(t.Unix()))
}

func decodeExpiry(raw []byte) (time.Time, bool) {
	if len(raw) != 8 {
		return time.Time{}, false
	}
	sec := int64(binary.BigEndian.Uint64(raw))
	if sec <= 0 {
		return time.Time{}, false
	}
	return time.Unix(sec, 0), true
}
