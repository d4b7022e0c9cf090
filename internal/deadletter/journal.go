package deadletter

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"log"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"go.etcd.io/bbolt"

	"github.com/lizhaowen72/eventbridge/pkg/models"
)

const abandonedBucket = "abandoned"

// Entry is one event whose handler failed on every attempt.
type Entry struct {
	Seq         uint64           `json:"seq"`
	EventID     string           `json:"eventId"`
	EventType   models.EventType `json:"eventType"`
	AggregateID string           `json:"aggregateId"`
	Attempts    int              `json:"attempts"`
	Error       string           `json:"error"`
	AbandonedAt time.Time        `json:"abandonedAt"`
	Payload     json.RawMessage  `json:"payload"`
}

// lockTimeout bounds how long an operation waits for another process holding
// the file.
const lockTimeout = 5 * time.Second

// Journal is an append-only BoltDB record of abandoned events. It is kept for
// inspection only; entries are never replayed. The file is opened for each
// operation and closed afterwards, so several services and the CLI can share
// one path.
type Journal struct {
	path string
	mu   sync.Mutex
	now  func() time.Time
}

// Open prepares the journal at path, creating the file and its bucket if
// needed.
func Open(path string) (*Journal, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("dead letter path is required")
	}

	j := &Journal{path: filepath.Clean(path), now: func() time.Time { return time.Now().UTC() }}
	err := j.update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(abandonedBucket))
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("create abandoned bucket: %w", err)
	}
	return j, nil
}

// Path returns the journal file location.
func (j *Journal) Path() string { return j.path }

func (j *Journal) update(fn func(*bbolt.Tx) error) error {
	return j.with(false, func(db *bbolt.DB) error { return db.Update(fn) })
}

func (j *Journal) view(fn func(*bbolt.Tx) error) error {
	return j.with(true, func(db *bbolt.DB) error { return db.View(fn) })
}

func (j *Journal) with(readOnly bool, fn func(*bbolt.DB) error) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	db, err := bbolt.Open(j.path, 0o600, &bbolt.Options{Timeout: lockTimeout, ReadOnly: readOnly})
	if err != nil {
		return fmt.Errorf("open dead letter journal: %w", err)
	}
	if err := fn(db); err != nil {
		_ = db.Close()
		return err
	}
	return db.Close()
}

// Abandon appends evt to the journal.
func (j *Journal) Abandon(ctx context.Context, evt models.Event, attempts int, cause error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	payload, err := models.MarshalEvent(evt)
	if err != nil {
		return err
	}
	meta := evt.Meta()
	entry := Entry{
		EventID:     meta.EventID,
		EventType:   evt.Type(),
		AggregateID: meta.AggregateID,
		Attempts:    attempts,
		AbandonedAt: j.now(),
		Payload:     payload,
	}
	if cause != nil {
		entry.Error = cause.Error()
	}

	return j.update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(abandonedBucket))
		if bucket == nil {
			return fmt.Errorf("abandoned bucket is missing")
		}
		seq, err := bucket.NextSequence()
		if err != nil {
			return err
		}
		entry.Seq = seq
		body, err := json.Marshal(entry)
		if err != nil {
			return fmt.Errorf("marshal entry: %w", err)
		}
		if err := bucket.Put(seqKey(seq), body); err != nil {
			return err
		}
		log.Printf("[DeadLetter] Recorded abandoned event: seq=%d event_id=%s", seq, entry.EventID)
		return nil
	})
}

// List returns up to limit entries, newest first. A limit of zero or less
// returns every entry.
func (j *Journal) List(ctx context.Context, limit int) ([]Entry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	entries := []Entry{}
	err := j.view(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(abandonedBucket))
		if bucket == nil {
			return fmt.Errorf("abandoned bucket is missing")
		}
		c := bucket.Cursor()
		for k, v := c.Last(); k != nil; k, v = c.Prev() {
			if limit > 0 && len(entries) >= limit {
				break
			}
			var e Entry
			if err := json.Unmarshal(v, &e); err != nil {
				return fmt.Errorf("unmarshal entry %d: %w", binary.BigEndian.Uint64(k), err)
			}
			entries = append(entries, e)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return entries, nil
}

// Count returns the number of journaled events.
func (j *Journal) Count(ctx context.Context) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	var n int
	err := j.view(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(abandonedBucket))
		if bucket == nil {
			return fmt.Errorf("abandoned bucket is missing")
		}
		n = bucket.Stats().KeyN
		return nil
	})
	return n, err
}

func seqKey(seq uint64) []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, seq)
	return b
}
