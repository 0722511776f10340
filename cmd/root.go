package cmd

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/op/go-logging"
	"github.com/spf13/cobra"

	"github.com/statbio/prsinfer/model"
	"github.com/statbio/prsinfer/prior"
)

// log is the package logger.
var log = logging.MustGetLogger("cmd")

// startupParams gathers every flag the CLI recognizes.
type startupParams struct {
	verbose bool

	sumFile string
	ldFile  string

	engineName string
	priorName  string

	burnIn  int
	samples int
	maxIter int
	tol     float64

	randomSeed int64
	threads    int
	window     int

	initSigma2 float64
	initTau2   float64
	initPi     float64
	mixScales  string
	mixWeights string

	monitorAddr string
	ckptFile    string
	ckptSec     float64
}

// hyperOverride builds the initial-hyperparameter snapshot from flags, or
// nil when the family defaults should be used. The mixture family takes its
// configuration from the scales/weights flags instead.
func (sp *startupParams) hyperOverride() *model.Hyper {
	if sp.initSigma2 <= 0 || sp.initTau2 <= 0 {
		return nil
	}

	switch sp.priorName {
	case prior.SpikeSlab:
		pi := sp.initPi
		if pi <= 0 || pi >= 1 {
			pi = 0.1
		}
		return &model.Hyper{
			ResidVar:  sp.initSigma2,
			EffectVar: []float64{sp.initTau2},
			Weights:   []float64{1 - pi, pi},
		}
	case prior.Infinitesimal, prior.Shrinkage:
		return &model.Hyper{
			ResidVar:  sp.initSigma2,
			EffectVar: []float64{sp.initTau2},
			Weights:   []float64{1},
		}
	}
	return nil
}

// parseFloats handles the comma-delimited list flags.
func parseFloats(s string) ([]float64, error) {
	if s == "" {
		return nil, nil
	}
	parts := strings.Split(s, ",")
	vals := make([]float64, len(parts))
	for i, p := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return nil, err
		}
		vals[i] = v
	}
	return vals, nil
}

func setupLogging(verbose bool) {
	format := logging.MustStringFormatter(`%{time:15:04:05.000} %{module} %{level:.4s} %{message}`)
	backend := logging.NewBackendFormatter(logging.NewLogBackend(os.Stderr, "", 0), format)
	leveled := logging.AddModuleLevel(backend)
	if verbose {
		leveled.SetLevel(logging.DEBUG, "")
	} else {
		leveled.SetLevel(logging.NOTICE, "")
	}
	logging.SetBackend(leveled)
}

// Execute adds all child commands to the root command and sets flags
// appropriately. This is called by main.main().
func Execute() {
	sp := &startupParams{}

	rootCmd := &cobra.Command{
		Use:   "prsinfer",
		Short: "Bayesian effect-size estimation for polygenic risk scores",
		Long: `prsinfer estimates per-variant effect sizes from GWAS summary
statistics and block-wise LD correlation matrices. Among other features:

  - A block-parallel Gibbs sampler with exact conditional draws
  - A variational EM engine converging to a deterministic fixed point
  - Spike-and-slab, continuous-shrinkage, infinitesimal, and mixture priors
`,
	}

	pf := rootCmd.PersistentFlags()
	pf.BoolVarP(&sp.verbose, "verbose", "v", false, "Verbose logging (default is much more parsimonious)")
	pf.StringVarP(&sp.sumFile, "sumstats", "s", "", "Summary statistics file to read")
	pf.StringVarP(&sp.ldFile, "ld", "l", "", "LD block file to read")
	pf.StringVarP(&sp.engineName, "engine", "e", "gibbs", "Engine to use: gibbs or variational")
	pf.StringVarP(&sp.priorName, "prior", "p", prior.SpikeSlab, "Prior family: spike_slab, shrinkage, infinitesimal, or mixture")

	pf.IntVarP(&sp.burnIn, "burnin", "b", 500, "Burn-in iterations (gibbs)")
	pf.IntVarP(&sp.samples, "samples", "n", 2000, "Sampling iterations (gibbs)")
	pf.IntVarP(&sp.maxIter, "maxiter", "m", 1000, "Maximum iterations (variational)")
	pf.Float64VarP(&sp.tol, "tol", "t", 1e-6, "Convergence tolerance (variational)")
	pf.Int64VarP(&sp.randomSeed, "seed", "r", 1, "Random seed (gibbs)")
	pf.IntVarP(&sp.threads, "threads", "j", 0, "Parallel block workers (0 means all CPUs)")
	pf.IntVarP(&sp.window, "window", "w", 0, "Convergence diagnostic window size")

	pf.Float64Var(&sp.initSigma2, "init-sigma2", 0, "Initial residual variance (0 means family default)")
	pf.Float64Var(&sp.initTau2, "init-tau2", 0, "Initial effect variance (0 means family default)")
	pf.Float64Var(&sp.initPi, "init-pi", 0, "Initial causal proportion (spike_slab)")
	pf.StringVar(&sp.mixScales, "mix-scales", "0,0.01,0.1,1", "Mixture component variance scales")
	pf.StringVar(&sp.mixWeights, "mix-weights", "", "Mixture starting weights (default uniform)")

	pf.StringVar(&sp.monitorAddr, "monitor", "", "Address for the expvar progress monitor (empty disables)")
	pf.StringVar(&sp.ckptFile, "checkpoint", "", "Bolt database file for chain checkpoints (gibbs)")
	pf.Float64Var(&sp.ckptSec, "checkpoint-sec", 30, "Minimum seconds between checkpoint saves")

	fitCmd := &cobra.Command{
		Use:   "fit",
		Short: "Run inference and write per-variant posterior estimates",
		RunE: func(cmd *cobra.Command, args []string) error {
			setupLogging(sp.verbose)
			return FitRun(sp)
		},
	}
	rootCmd.AddCommand(fitCmd)

	rootCmd.MarkPersistentFlagRequired("sumstats")
	rootCmd.MarkPersistentFlagRequired("ld")

	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}
