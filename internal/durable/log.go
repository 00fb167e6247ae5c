package durable

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"

	"github.com/deluthium/dexmon/internal/model"
)

// Key layout: prefix byte, entity name, 0x00 separator, 8-byte big-endian
// UnixNano of ObservedAt. Big-endian timestamps make the per-entity keyspace
// iterate in chronological order.
const (
	healthKeyPrefix  byte = 0x01
	latencyKeyPrefix byte = 0x02
)

// Log is an append-only record of every probe outcome and latency sample,
// persisted in a Badger database.
type Log struct {
	db *badger.DB
}

// Open opens (or creates) the log at dir. An open failure means the durable
// backend is unusable and should be treated as fatal by callers that were
// configured with one.
func Open(dir string) (*Log, error) {
	opts := badger.DefaultOptions(dir).WithLogger(nil)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("durable: open %q: %w", dir, err)
	}
	return &Log{db: db}, nil
}

// Close releases the underlying database.
func (l *Log) Close() error {
	return l.db.Close()
}

// AppendOutcome appends one health probe outcome.
func (l *Log) AppendOutcome(o model.ProbeOutcome) error {
	val, err := json.Marshal(o)
	if err != nil {
		return fmt.Errorf("durable: encode outcome: %w", err)
	}
	key := makeKey(healthKeyPrefix, o.Endpoint, o.ObservedAt)
	err = l.db.Update(func(txn *badger.Txn) error {
		return txn.Set(key, val)
	})
	if err != nil {
		return fmt.Errorf("durable: append outcome: %w", err)
	}
	return nil
}

// AppendSample appends one latency sample.
func (l *Log) AppendSample(s model.LatencySample) error {
	val, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("durable: encode sample: %w", err)
	}
	key := makeKey(latencyKeyPrefix, s.Operation, s.ObservedAt)
	err = l.db.Update(func(txn *badger.Txn) error {
		return txn.Set(key, val)
	})
	if err != nil {
		return fmt.Errorf("durable: append sample: %w", err)
	}
	return nil
}

// OutcomesSince returns all outcomes for endpoint observed at or after since,
// in chronological order.
func (l *Log) OutcomesSince(endpoint string, since time.Time) ([]model.ProbeOutcome, error) {
	var out []model.ProbeOutcome
	err := l.scanSince(healthKeyPrefix, endpoint, since, func(val []byte) error {
		var o model.ProbeOutcome
		if err := json.Unmarshal(val, &o); err != nil {
			return err
		}
		out = append(out, o)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("durable: read outcomes for %q: %w", endpoint, err)
	}
	return out, nil
}

// SamplesSince returns all samples for operation observed at or after since,
// in chronological order.
func (l *Log) SamplesSince(operation string, since time.Time) ([]model.LatencySample, error) {
	var out []model.LatencySample
	err := l.scanSince(latencyKeyPrefix, operation, since, func(val []byte) error {
		var s model.LatencySample
		if err := json.Unmarshal(val, &s); err != nil {
			return err
		}
		out = append(out, s)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("durable: read samples for %q: %w", operation, err)
	}
	return out, nil
}

// scanSince iterates the per-entity keyspace starting at the since timestamp
// and hands each value to decode. Seeking directly to the cutoff key skips
// the older portion of the log entirely.
func (l *Log) scanSince(prefix byte, name string, since time.Time, decode func([]byte) error) error {
	keyPrefix := entityPrefix(prefix, name)
	start := makeKey(prefix, name, since)

	return l.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		for it.Seek(start); it.ValidForPrefix(keyPrefix); it.Next() {
			val, err := it.Item().ValueCopy(nil)
			if err != nil {
				return err
			}
			if err := decode(val); err != nil {
				return err
			}
		}
		return nil
	})
}

func entityPrefix(prefix byte, name string) []byte {
	key := make([]byte, 0, len(name)+2)
	key = append(key, prefix)
	key = append(key, name...)
	return append(key, 0x00)
}

func makeKey(prefix byte, name string, ts time.Time) []byte {
	key := entityPrefix(prefix, name)
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], uint64(ts.UnixNano()))
	return append(key, buf[:]...)
}
