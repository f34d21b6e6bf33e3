package storage

import (
	"fmt"
	"sync"

	"github.com/ethereum/go-ethereum/rlp"
)

// Ledger sequence arithmetic mirrors the hosting ledger's notion of time: one
// sequence number per committed ledger close, roughly 17280 per day.
const (
	DayInLedgers              = 17280
	InstanceLifetimeThreshold = DayInLedgers * 30
	InstanceBumpAmount        = DayInLedgers * 30
	BalanceLifetimeThreshold  = DayInLedgers * 30
	BalanceBumpAmount         = DayInLedgers * 30
)

var seqKey = []byte("ledger/seq")

// entry is the persisted envelope for a ledger value. LiveUntil is the last
// sequence number at which the entry is still readable.
type entry struct {
	LiveUntil uint64
	Value     []byte
}

// Ledger is a key-value store whose entries carry an expiration horizon
// expressed in ledger sequence numbers. Reads treat expired entries as absent;
// writes grant a fresh default lifetime; ExtendTTL refreshes the horizon once
// the remaining lifetime drops below a threshold. This mirrors the archival
// model of ledgers that rent out state and expect periodic lifetime bumps.
type Ledger struct {
	mu              sync.RWMutex
	db              Database
	seq             uint64
	defaultLifetime uint64
}

// NewLedger creates a ledger store over db. The current sequence number is
// restored from the backing store when present so lifetimes survive restarts.
func NewLedger(db Database, defaultLifetime uint64) (*Ledger, error) {
	if db == nil {
		return nil, fmt.Errorf("storage: ledger requires a database")
	}
	if defaultLifetime == 0 {
		defaultLifetime = InstanceBumpAmount
	}
	l := &Ledger{db: db, defaultLifetime: defaultLifetime}
	raw, err := db.Get(seqKey)
	switch err {
	case nil:
		if err := rlp.DecodeBytes(raw, &l.seq); err != nil {
			return nil, fmt.Errorf("storage: decode ledger sequence: %w", err)
		}
	case ErrNotFound:
	default:
		return nil, err
	}
	return l, nil
}

// CurrentSeq returns the ledger sequence number entries are judged against.
func (l *Ledger) CurrentSeq() uint64 {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.seq
}

// AdvanceSeq moves the ledger clock forward by n sequence numbers and persists
// the new position.
func (l *Ledger) AdvanceSeq(n uint64) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.seq += n
	encoded, err := rlp.EncodeToBytes(l.seq)
	if err != nil {
		return err
	}
	return l.db.Put(seqKey, encoded)
}

func (l *Ledger) load(key []byte) (*entry, error) {
	raw, err := l.db.Get(key)
	if err == ErrNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	ent := new(entry)
	if err := rlp.DecodeBytes(raw, ent); err != nil {
		return nil, fmt.Errorf("storage: decode ledger entry: %w", err)
	}
	return ent, nil
}

func (l *Ledger) store(key []byte, ent *entry) error {
	encoded, err := rlp.EncodeToBytes(ent)
	if err != nil {
		return err
	}
	return l.db.Put(key, encoded)
}

// Get returns the value for key. Entries whose lifetime has elapsed are
// reported as absent.
func (l *Ledger) Get(key []byte) ([]byte, bool, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	ent, err := l.load(key)
	if err != nil {
		return nil, false, err
	}
	if ent == nil || ent.LiveUntil < l.seq {
		return nil, false, nil
	}
	return ent.Value, true, nil
}

// Has reports whether a live entry exists for key.
func (l *Ledger) Has(key []byte) (bool, error) {
	_, ok, err := l.Get(key)
	return ok, err
}

// Set writes value under key with a fresh default lifetime.
func (l *Ledger) Set(key, value []byte) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	buf := make([]byte, len(value))
	copy(buf, value)
	return l.store(key, &entry{LiveUntil: l.seq + l.defaultLifetime, Value: buf})
}

// Remove deletes the entry for key if present.
func (l *Ledger) Remove(key []byte) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.db.Delete(key)
}

// Batch accumulates ledger mutations and commits them in one atomic write.
// Sets carry the same threshold/bump window semantics as Set followed by
// ExtendTTL on a fresh entry; removals mirror Remove.
type Batch struct {
	ledger *Ledger
	ops    []batchEntry
}

type batchEntry struct {
	remove    bool
	key       []byte
	value     []byte
	threshold uint64
	bump      uint64
}

// NewBatch creates an empty batch against the ledger.
func (l *Ledger) NewBatch() *Batch {
	return &Batch{ledger: l}
}

// Set queues a write of value under key with the given lifetime window.
func (b *Batch) Set(key, value []byte, threshold, bump uint64) {
	k := make([]byte, len(key))
	copy(k, key)
	v := make([]byte, len(value))
	copy(v, value)
	b.ops = append(b.ops, batchEntry{key: k, value: v, threshold: threshold, bump: bump})
}

// Remove queues a deletion of key.
func (b *Batch) Remove(key []byte) {
	k := make([]byte, len(key))
	copy(k, key)
	b.ops = append(b.ops, batchEntry{remove: true, key: k})
}

// Write commits the queued mutations through a single backend batch. Either
// every mutation lands or none does.
func (b *Batch) Write() error {
	if len(b.ops) == 0 {
		return nil
	}
	l := b.ledger
	l.mu.Lock()
	defer l.mu.Unlock()
	ops := make([]BatchOp, 0, len(b.ops))
	for _, op := range b.ops {
		if op.remove {
			ops = append(ops, BatchOp{Delete: true, Key: op.key})
			continue
		}
		// A fresh write below the threshold would be bumped immediately, so
		// the batch grants the bumped horizon up front.
		lifetime := l.defaultLifetime
		if lifetime < op.threshold {
			lifetime = op.bump
		}
		encoded, err := rlp.EncodeToBytes(&entry{LiveUntil: l.seq + lifetime, Value: op.value})
		if err != nil {
			return err
		}
		ops = append(ops, BatchOp{Key: op.key, Value: encoded})
	}
	return l.db.WriteBatch(ops)
}

// ExtendTTL bumps the entry's expiration horizon to seq+amount, but only when
// the remaining lifetime has fallen below threshold. Extending an absent or
// already-expired entry is a no-op, matching host ledger semantics where the
// archived entry must be restored through a write first.
func (l *Ledger) ExtendTTL(key []byte, threshold, amount uint64) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	ent, err := l.load(key)
	if err != nil {
		return err
	}
	if ent == nil || ent.LiveUntil < l.seq {
		return nil
	}
	if ent.LiveUntil-l.seq >= threshold {
		return nil
	}
	ent.LiveUntil = l.seq + amount
	return l.store(key, ent)
}
