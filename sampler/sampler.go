// Package sampler holds the two inference engines: the Gibbs sampler and
// the variational EM engine. Both walk the same block partition with the
// same partial-residual machinery; they differ only in how a variant's new
// effect is produced (a conditional draw vs a deterministic coordinate
// update) and in how the posterior summary is formed (running average over
// retained iterations vs the final iterate).
package sampler

import (
	stderrors "errors"
	"math"
	"runtime"
	"sync"
	"sync/atomic"

	"github.com/op/go-logging"
	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"

	"github.com/statbio/prsinfer/model"
	"github.com/statbio/prsinfer/prior"
	"github.com/statbio/prsinfer/stats"
)

// log is the package logger.
var log = logging.MustGetLogger("sampler")

// defaultWindow is the convergence-diagnostic window size when the caller
// does not set one.
const defaultWindow = 20

// State names an engine's lifecycle phase.
type State int32

// Engine states. BurningIn/Sampling/Finalizing belong to the Gibbs engine;
// Iterating/Converged/MaxIterReached to the variational engine.
const (
	StateInitializing State = iota
	StateBurningIn
	StateSampling
	StateIterating
	StateConverged
	StateMaxIterReached
	StateFinalizing
	StateDone
)

func (s State) String() string {
	switch s {
	case StateInitializing:
		return "Initializing"
	case StateBurningIn:
		return "Burning-In"
	case StateSampling:
		return "Sampling"
	case StateIterating:
		return "Iterating"
	case StateConverged:
		return "Converged"
	case StateMaxIterReached:
		return "MaxIterReached"
	case StateFinalizing:
		return "Finalizing"
	case StateDone:
		return "Done"
	}
	return "Unknown"
}

// Engine is one configured inference run over a block partition.
type Engine interface {
	Run() (*model.PosteriorSummary, error)
	State() State
	Stop()
	Iteration() int
	Delta() float64
	Diag() model.Diagnostics
}

// Config carries the recognized engine options. Engine selection and the
// prior family/initial hyperparameters live with the constructors
// (NewGibbs/NewVEM and prior.Spec) - they are fixed per run, never switched
// mid-run.
type Config struct {
	BurnIn  int     // Gibbs: discarded warm-up iterations
	Samples int     // Gibbs: retained sampling iterations
	MaxIter int     // variational: iteration cap
	Tol     float64 // variational: convergence tolerance on the L1 effect delta
	Seed    int64   // Gibbs only
	Threads int     // parallel block workers; <=0 means NumCPU
	Window  int     // convergence-diagnostic window; <=0 means default
}

func (c *Config) threads() int {
	if c.Threads > 0 {
		return c.Threads
	}
	return runtime.NumCPU()
}

func (c *Config) window() int {
	if c.Window > 0 {
		return c.Window
	}
	return defaultWindow
}

// core is the state both engines share: the read-only inputs, the mutable
// effect state, the current hyperparameter snapshot, and the atomics the
// monitor reads.
type core struct {
	part *model.Partition
	pm   prior.Model
	cfg  Config

	bhat []float64 // marginal estimates in genome-wide order
	se   []float64 // standard errors in genome-wide order
	eff  []float64 // current effect state, owned by the running engine

	hyper model.Hyper // current frozen snapshot, replaced only at the barrier

	// mu guards the window and diagnostics, which outside callers may poll
	// while the engine goroutine is writing them
	mu   sync.Mutex
	win  *stats.Circular
	diag model.Diagnostics

	state int32
	stop  int32
	iter  int64
	delta uint64
}

func newCore(part *model.Partition, pm prior.Model, cfg Config) (*core, error) {
	if part == nil {
		return nil, errors.New("No partition supplied")
	}
	if pm == nil {
		return nil, errors.New("No prior model supplied")
	}

	p := len(part.Variants)
	c := &core{
		part: part,
		pm:   pm,
		cfg:  cfg,
		bhat: make([]float64, p),
		se:   make([]float64, p),
		eff:  make([]float64, p),
		win:  stats.NewCircular(cfg.window()),
	}
	for i, v := range part.Variants {
		c.bhat[i] = v.Beta
		c.se[i] = v.SE
	}

	c.hyper = pm.Init()
	if err := pm.CheckHyper(&c.hyper); err != nil {
		return nil, err
	}

	c.setState(StateInitializing)
	return c, nil
}

// WarmStart replaces the zero-initialized effect state. Only valid before
// Run.
func (c *core) WarmStart(eff []float64) error {
	if len(eff) != len(c.eff) {
		return errors.Errorf("Warm start has %d effects, want %d", len(eff), len(c.eff))
	}
	copy(c.eff, eff)
	return nil
}

// State returns the engine's current lifecycle phase.
func (c *core) State() State {
	return State(atomic.LoadInt32(&c.state))
}

func (c *core) setState(s State) {
	atomic.StoreInt32(&c.state, int32(s))
}

// Stop requests termination. It takes effect only at an iteration boundary;
// there is no mid-iteration cancellation.
func (c *core) Stop() {
	atomic.StoreInt32(&c.stop, 1)
}

func (c *core) stopped() bool {
	return atomic.LoadInt32(&c.stop) != 0
}

// Iteration returns the number of completed iterations.
func (c *core) Iteration() int {
	return int(atomic.LoadInt64(&c.iter))
}

// Delta returns the last iteration's L1 change in effect state.
func (c *core) Delta() float64 {
	return math.Float64frombits(atomic.LoadUint64(&c.delta))
}

// record closes out one iteration: it publishes the delta, advances the
// iteration count, and refreshes the diagnostics from the folded sufficient
// statistics and the just-published hyperparameter snapshot. Called from the
// engine goroutine only, after the barrier.
func (c *core) record(delta float64, s *prior.Suff) {
	atomic.StoreUint64(&c.delta, math.Float64bits(delta))
	n := atomic.AddInt64(&c.iter, 1)

	sum := 0.0
	for _, e := range c.eff {
		sum += math.Abs(e)
	}

	occ := make([]float64, len(s.Incl))
	if s.N > 0 {
		for i, x := range s.Incl {
			occ[i] = x / float64(s.N)
		}
	}
	propCausal := 1.0
	if c.pm.NullComponent() && len(occ) > 0 {
		propCausal = 1 - occ[0]
	}

	c.mu.Lock()
	c.win.Add(delta)
	c.diag = model.Diagnostics{
		Iterations:    int(n),
		Delta:         delta,
		MeanAbsEffect: sum / float64(len(c.eff)),
		ResidVar:      c.hyper.ResidVar,
		PropCausal:    propCausal,
		Occupancy:     occ,
	}
	c.mu.Unlock()
}

// Diag returns a copy of the latest per-iteration diagnostics. Safe to call
// while the engine is running.
func (c *core) Diag() model.Diagnostics {
	c.mu.Lock()
	defer c.mu.Unlock()

	d := c.diag
	d.Occupancy = append([]float64(nil), c.diag.Occupancy...)
	return d
}

// Trend reports the mean convergence delta over the older and newer halves
// of the diagnostic window. ok is false until the window fills. Safe to call
// while the engine is running.
func (c *core) Trend() (older float64, newer float64, ok bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.win.HalfMeans()
}

// pass runs one parallel sweep over all blocks. upd builds each block's
// per-variant update function around that block's sufficient statistics.
// Blocks never read each other's state, so the only synchronization is the
// barrier implied by Wait; the per-block statistics are folded in block
// order afterward so the result is independent of worker scheduling.
func (c *core) pass(iter int, upd func(bi int, s *prior.Suff) func(j int, resid, se float64) float64) (*prior.Suff, error) {
	suffs := make([]*prior.Suff, len(c.part.Blocks))

	var g errgroup.Group
	g.SetLimit(c.cfg.threads())
	for bi, b := range c.part.Blocks {
		bi, b := bi, b
		s := prior.NewSuff(c.pm.Components())
		suffs[bi] = s
		g.Go(func() error {
			return scanBlock(iter, b, c.bhat, c.se, c.eff, upd(bi, s), s)
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	total := prior.NewSuff(c.pm.Components())
	for _, s := range suffs {
		total.Merge(s)
	}
	return total, nil
}

// tagIter stamps the iteration index onto typed errors that carry one.
func tagIter(err error, iter int) error {
	var pd *model.PriorDegeneracyError
	if stderrors.As(err, &pd) {
		pd.Iter = iter
	}
	return err
}
