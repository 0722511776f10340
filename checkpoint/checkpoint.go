// Package checkpoint persists Gibbs chain state into a bolt database so a
// long-running chain can be frozen and resumed at an iteration boundary.
package checkpoint

import (
	"encoding/json"
	"time"

	"github.com/op/go-logging"
	bolt "go.etcd.io/bbolt"

	"github.com/statbio/prsinfer/model"
)

// log is the package logger.
var log = logging.MustGetLogger("checkpoint")

// mainBucket is the bucket name holding every run's snapshots.
var mainBucket = []byte("main")

// Snapshot is everything needed to resume a chain at an iteration boundary:
// the effect state, the hyperparameter snapshot, the posterior accumulator,
// and the iteration to continue from. Final marks a completed run. The
// generator state is not captured, so a resumed chain is a valid but not
// bit-identical continuation.
type Snapshot struct {
	Iter    int
	Effects []float64
	Hyper   model.Hyper
	AccN    int64
	AccMean []float64
	AccM2   []float64
	Final   bool
}

// IO reads and writes snapshots for one run key, rate-limiting saves to at
// most one per the configured number of seconds.
type IO struct {
	db      *bolt.DB
	key     []byte
	last    time.Time
	seconds float64
}

// NewIO creates checkpoint IO over an open bolt database.
func NewIO(db *bolt.DB, key []byte, seconds float64) *IO {
	return &IO{
		db:      db,
		key:     key,
		seconds: seconds,
	}
}

// Save serializes the snapshot under the run key.
func (s *IO) Save(snap *Snapshot) error {
	// Even if saving fails, we do not want to run this code too often.
	s.SetNow()

	data, err := json.Marshal(snap)
	if err != nil {
		log.Error("Error serializing checkpoint", err)
		return err
	}
	err = SaveData(s.db, s.key, data)
	if err != nil {
		log.Error("Error saving checkpoint", err)
	}
	return err
}

// Load returns the stored snapshot for the run key, or nil when there is
// none.
func (s *IO) Load() (*Snapshot, error) {
	b, err := LoadData(s.db, s.key)
	if err != nil || b == nil {
		return nil, err
	}

	var snap *Snapshot
	if err := json.Unmarshal(b, &snap); err != nil {
		return nil, err
	}
	if snap == nil || len(snap.Effects) == 0 {
		return nil, nil
	}

	if snap.Final {
		log.Noticef("Found finished chain checkpoint (iter=%v)", snap.Iter)
	} else {
		log.Noticef("Found unfinished chain checkpoint (iter=%v)", snap.Iter)
	}

	return snap, nil
}

// Old returns true if the last checkpoint save was too long ago.
func (s *IO) Old() bool {
	return time.Since(s.last).Seconds() > s.seconds
}

// SetNow sets the last checkpoint time to now.
func (s *IO) SetNow() {
	s.last = time.Now()
}

// SaveData saves a value in the bolt database.
func SaveData(db *bolt.DB, key []byte, data []byte) error {
	if db == nil {
		return nil
	}
	return db.Update(func(tx *bolt.Tx) error {
		b, err := tx.CreateBucketIfNotExists(mainBucket)
		if err != nil {
			return err
		}
		return b.Put(key, data)
	})
}

// LoadData loads a value from the bolt database.
func LoadData(db *bolt.DB, key []byte) ([]byte, error) {
	var data []byte
	if db == nil {
		return nil, nil
	}
	err := db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(mainBucket)
		if b == nil {
			return nil
		}

		if v := b.Get(key); v != nil {
			data = make([]byte, len(v))
			copy(data, v)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return data, nil
}
