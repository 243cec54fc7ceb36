package chain

import (
	"encoding/binary"
	"fmt"

	"github.com/dgraph-io/badger/v4"
)

// TimestampCache maps block numbers to their block timestamp (ms since
// epoch), so the Watcher never re-fetches a header it has already seen
// (spec.md §4.5 step 5). Backed by its own badger keyspace rather than the
// main Store: a bundled cold-cache file for chainId==1 can be bulk-loaded
// into this database independently of community state.
type TimestampCache struct {
	db *badger.DB
}

// OpenTimestampCache opens (creating if absent) the timestamp cache at dbPath.
func OpenTimestampCache(dbPath string) (*TimestampCache, error) {
	db, err := badger.Open(badger.DefaultOptions(dbPath))
	if err != nil {
		return nil, fmt.Errorf("chain: open timestamp cache: %w", err)
	}
	return &TimestampCache{db: db}, nil
}

// Close releases the underlying badger database.
func (c *TimestampCache) Close() error {
	return c.db.Close()
}

func key(blockNumber uint64) []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, blockNumber)
	return b
}

// Get returns the cached timestamp for blockNumber, or ok=false if absent.
func (c *TimestampCache) Get(blockNumber uint64) (ms int64, ok bool, err error) {
	err = c.db.View(func(txn *badger.Txn) error {
		item, getErr := txn.Get(key(blockNumber))
		if getErr == badger.ErrKeyNotFound {
			return nil
		}
		if getErr != nil {
			return getErr
		}
		ok = true
		return item.Value(func(val []byte) error {
			ms = int64(binary.BigEndian.Uint64(val))
			return nil
		})
	})
	if err != nil {
		return 0, false, fmt.Errorf("chain: read timestamp cache: %w", err)
	}
	return ms, ok, nil
}

// Put caches the timestamp for blockNumber.
func (c *TimestampCache) Put(blockNumber uint64, ms int64) error {
	val := make([]byte, 8)
	binary.BigEndian.PutUint64(val, uint64(ms))
	err := c.db.Update(func(txn *badger.Txn) error {
		return txn.Set(key(blockNumber), val)
	})
	if err != nil {
		return fmt.Errorf("chain: write timestamp cache: %w", err)
	}
	return nil
}

// LoadBundled bulk-loads a cold-cache of (blockNumber -> timestampMs) pairs,
// e.g. precomputed timestamps for chainId==1 historical blocks. The
// repository ships no such cold-cache file, and cmd/operator does not call
// LoadBundled.
func (c *TimestampCache) LoadBundled(entries map[uint64]int64) error {
	wb := c.db.NewWriteBatch()
	defer wb.Cancel()
	for blockNumber, ms := range entries {
		val := make([]byte, 8)
		binary.BigEndian.PutUint64(val, uint64(ms))
		if err := wb.Set(key(blockNumber), val); err != nil {
			return fmt.Errorf("chain: stage bundled timestamp entry: %w", err)
		}
	}
	if err := wb.Flush(); err != nil {
		return fmt.Errorf("chain: flush bundled timestamp cache: %w", err)
	}
	return nil
}
