// Package store implements the ledger.Store contract on top of
// dgraph-io/badger/v4: namespaced keys, JSON-encoded values, a latest-state
// pointer per community. Adapted from the teacher's
// internal/infra/storage/badger_client.go (epoch-snapshot keyspace) to the
// two-record shape (state, block) the ledger engine actually persists.
package store

import (
	"encoding/json"
	"fmt"
	"math/big"
	"strings"

	"github.com/dgraph-io/badger/v4"
	"github.com/go-pkgz/lgr"

	"github.com/andrey/dataunion-core/internal/ledger"
)

// Store is a badger-backed implementation of ledger.Store, scoped to a
// single community by keyPrefix.
type Store struct {
	db        *badger.DB
	logger    lgr.L
	keyPrefix string
}

// Open opens (creating if absent) a badger database at dbPath and returns a
// Store namespaced for the given community identifier.
func Open(logger lgr.L, dbPath, community string) (*Store, error) {
	opts := badger.DefaultOptions(dbPath)
	opts.Logger = newBadgerLogger(logger)

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("store: open badger database: %w", err)
	}

	return &Store{
		db:        db,
		logger:    logger,
		keyPrefix: strings.ToLower(community),
	}, nil
}

// Close releases the underlying badger database.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) stateKey() []byte {
	return []byte(fmt.Sprintf("%s:state", s.keyPrefix))
}

func (s *Store) blockKey(blockNumber int64) []byte {
	// Zero-padded so lexicographic and numeric key order agree, matching
	// the teacher's epoch-snapshot key convention.
	return []byte(fmt.Sprintf("%s:block:%020d", s.keyPrefix, blockNumber))
}

// LoadState implements ledger.Store.
func (s *Store) LoadState() (ledger.StateRecord, bool, error) {
	var rec ledger.StateRecord
	found := true
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(s.stateKey())
		if err == badger.ErrKeyNotFound {
			found = false
			return nil
		}
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &rec)
		})
	})
	if err != nil {
		return ledger.StateRecord{}, false, fmt.Errorf("store: load state: %w", err)
	}
	return rec, found, nil
}

// SaveState implements ledger.Store.
func (s *Store) SaveState(rec ledger.StateRecord) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("store: marshal state: %w", err)
	}
	err = s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(s.stateKey(), data)
	})
	if err != nil {
		return fmt.Errorf("store: save state: %w", err)
	}
	return nil
}

// blockRecord is the JSON wire shape for a persisted Block. ledger.Block
// carries a private lazy-build cache that must not round-trip through JSON.
type blockRecord struct {
	BlockNumber      int64           `json:"blockNumber"`
	Timestamp        int64           `json:"timestamp"`
	Members          []ledger.Record `json:"members"`
	AdminAddress     string          `json:"adminAddress"`
	AdminFeeFraction string          `json:"adminFeeFraction"`
}

// LoadBlock implements ledger.Store.
func (s *Store) LoadBlock(blockNumber int64) (*ledger.Block, error) {
	var rec blockRecord
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(s.blockKey(blockNumber))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &rec)
		})
	})
	if err == badger.ErrKeyNotFound {
		return nil, ledger.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("store: load block %d: %w", blockNumber, err)
	}
	return blockFromRecord(rec)
}

// SaveBlock implements ledger.Store. Blocks are immutable once stored:
// a repeated save of the same blockNumber is only accepted if the payload
// is byte-identical to what is already there.
func (s *Store) SaveBlock(b *ledger.Block) error {
	rec := toBlockRecord(b)
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("store: marshal block %d: %w", b.BlockNumber, err)
	}

	return s.db.Update(func(txn *badger.Txn) error {
		key := s.blockKey(b.BlockNumber)
		existing, err := txn.Get(key)
		if err == badger.ErrKeyNotFound {
			return txn.Set(key, data)
		}
		if err != nil {
			return err
		}
		return existing.Value(func(val []byte) error {
			if string(val) != string(data) {
				return fmt.Errorf("store: block %d already saved with different contents", b.BlockNumber)
			}
			return nil
		})
	})
}

func toBlockRecord(b *ledger.Block) blockRecord {
	members := make([]ledger.Record, len(b.Members))
	for i, m := range b.Members {
		members[i] = m.ToRecord()
	}
	return blockRecord{
		BlockNumber:      b.BlockNumber,
		Timestamp:        b.Timestamp,
		Members:          members,
		AdminAddress:     b.AdminAddress,
		AdminFeeFraction: b.AdminFeeFraction.String(),
	}
}

func blockFromRecord(rec blockRecord) (*ledger.Block, error) {
	members := make(map[string]*ledger.Member, len(rec.Members))
	for _, r := range rec.Members {
		m, err := ledger.MemberFromRecord(r)
		if err != nil {
			return nil, fmt.Errorf("store: decode block member: %w", err)
		}
		members[m.Address] = m
	}
	feeFraction, ok := new(big.Int).SetString(rec.AdminFeeFraction, 10)
	if !ok {
		return nil, fmt.Errorf("store: invalid admin fee fraction %q", rec.AdminFeeFraction)
	}
	return ledger.NewBlock(rec.BlockNumber, rec.Timestamp, members, rec.AdminAddress, feeFraction), nil
}

// badgerLogger adapts lgr.L to badger's Logger interface.
type badgerLogger struct {
	lgr lgr.L
}

func newBadgerLogger(l lgr.L) *badgerLogger {
	return &badgerLogger{lgr: l}
}

func (l *badgerLogger) Errorf(format string, args ...interface{})   { l.lgr.Logf("ERROR "+format, args...) }
func (l *badgerLogger) Warningf(format string, args ...interface{}) { l.lgr.Logf("WARN "+format, args...) }
func (l *badgerLogger) Infof(format string, args ...interface{})    { l.lgr.Logf("INFO "+format, args...) }
func (l *badgerLogger) Debugf(format string, args ...interface{})   { l.lgr.Logf("DEBUG "+format, args...) }
