package sampler

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	bolt "go.etcd.io/bbolt"

	"github.com/statbio/prsinfer/checkpoint"
	"github.com/statbio/prsinfer/prior"
)

func testCheckpointDB(t *testing.T) *bolt.DB {
	t.Helper()

	db, err := bolt.Open(filepath.Join(t.TempDir(), "chain.db"), 0600, nil)
	if err != nil {
		t.Fatalf("could not open bolt db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestGibbsCheckpointSaves(t *testing.T) {
	assert := assert.New(t)

	db := testCheckpointDB(t)
	io := checkpoint.NewIO(db, []byte("chain"), 0) // save at every boundary

	part := testPartition(t, []float64{0.3, -0.1, 0.2}, 0.1, 3, 0)
	pm := testPrior(t, prior.Infinitesimal, 3)

	eng, err := NewGibbs(part, pm, Config{BurnIn: 5, Samples: 10, Seed: 2})
	assert.NoError(err)
	eng.SetCheckpointer(io)

	ps, err := eng.Run()
	assert.NoError(err)
	assert.Equal(15, ps.Iterations)

	// the final snapshot is marked finished and matches the run
	snap, err := io.Load()
	assert.NoError(err)
	assert.NotNil(snap)
	assert.True(snap.Final)
	assert.Equal(15, snap.Iter)
	assert.Equal(int64(10), snap.AccN)
}

func TestGibbsResume(t *testing.T) {
	assert := assert.New(t)

	db := testCheckpointDB(t)
	io := checkpoint.NewIO(db, []byte("chain"), 3600)

	part := testPartition(t, []float64{0.3, -0.1}, 0.1, 2, 0)
	pm := testPrior(t, prior.Infinitesimal, 2)

	// pretend a prior run froze after 8 of 15 iterations with 3 retained
	assert.NoError(io.Save(&checkpoint.Snapshot{
		Iter:    8,
		Effects: []float64{0.05, -0.02},
		Hyper:   pm.Init(),
		AccN:    3,
		AccMean: []float64{0.04, -0.02},
		AccM2:   []float64{0.001, 0.001},
	}))

	eng, err := NewGibbs(part, pm, Config{BurnIn: 5, Samples: 10, Seed: 2})
	assert.NoError(err)
	eng.SetCheckpointer(io)

	ps, err := eng.Run()
	assert.NoError(err)
	assert.Equal(15, ps.Iterations)

	// 7 fresh sampling iterations on top of the 3 restored ones
	snap, err := io.Load()
	assert.NoError(err)
	assert.True(snap.Final)
	assert.Equal(int64(10), snap.AccN)
}

func TestGibbsResumeLengthMismatch(t *testing.T) {
	assert := assert.New(t)

	db := testCheckpointDB(t)
	io := checkpoint.NewIO(db, []byte("chain"), 3600)

	part := testPartition(t, []float64{0.3, -0.1}, 0.1, 2, 0)
	pm := testPrior(t, prior.Infinitesimal, 2)

	assert.NoError(io.Save(&checkpoint.Snapshot{
		Iter:    3,
		Effects: []float64{0.1, 0.2, 0.3}, // wrong variant count
		Hyper:   pm.Init(),
	}))

	eng, err := NewGibbs(part, pm, Config{BurnIn: 2, Samples: 5, Seed: 2})
	assert.NoError(err)
	eng.SetCheckpointer(io)

	_, err = eng.Run()
	assert.Error(err)
}
