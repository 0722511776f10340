package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/pkg/errors"
	bolt "go.etcd.io/bbolt"

	"github.com/statbio/prsinfer/checkpoint"
	"github.com/statbio/prsinfer/model"
	"github.com/statbio/prsinfer/prior"
	"github.com/statbio/prsinfer/sampler"
)

// FitRun loads the inputs, builds the selected engine and prior family, and
// runs inference to completion, writing per-variant posterior estimates to
// stdout.
func FitRun(sp *startupParams) error {
	log.Noticef("reading summary stats from %s, LD blocks from %s", sp.sumFile, sp.ldFile)
	part, err := model.NewPartitionFromFiles(sp.sumFile, sp.ldFile)
	if err != nil {
		return err
	}
	log.Noticef("partition has %d variants in %d blocks", len(part.Variants), len(part.Blocks))

	spec := prior.Spec{
		Family: sp.priorName,
		Hyper:  sp.hyperOverride(),
	}
	if sp.priorName == prior.Mixture {
		if spec.Scales, err = parseFloats(sp.mixScales); err != nil {
			return errors.Wrap(err, "Could not parse mixture scales")
		}
		if spec.Weights, err = parseFloats(sp.mixWeights); err != nil {
			return errors.Wrap(err, "Could not parse mixture weights")
		}
	}

	pm, err := prior.New(spec, len(part.Variants))
	if err != nil {
		return err
	}

	cfg := sampler.Config{
		BurnIn:  sp.burnIn,
		Samples: sp.samples,
		MaxIter: sp.maxIter,
		Tol:     sp.tol,
		Seed:    sp.randomSeed,
		Threads: sp.threads,
		Window:  sp.window,
	}

	var eng sampler.Engine
	var db *bolt.DB

	switch sp.engineName {
	case "gibbs":
		gibbs, err := sampler.NewGibbs(part, pm, cfg)
		if err != nil {
			return err
		}
		if sp.ckptFile != "" {
			db, err = bolt.Open(sp.ckptFile, 0666, nil)
			if err != nil {
				return errors.Wrapf(err, "Could not open checkpoint database %s", sp.ckptFile)
			}
			defer db.Close()

			key := filepath.Base(sp.sumFile) + "|" + pm.Name()
			gibbs.SetCheckpointer(checkpoint.NewIO(db, []byte(key), sp.ckptSec))
		}
		eng = gibbs
	case "variational":
		eng, err = sampler.NewVEM(part, pm, cfg)
		if err != nil {
			return err
		}
	default:
		return errors.Errorf("Unknown engine %q (want gibbs or variational)", sp.engineName)
	}

	// a stop request is honored at the next iteration boundary
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigs
		log.Notice("interrupt: requesting stop at next iteration boundary")
		eng.Stop()
	}()
	defer signal.Stop(sigs)

	mon := &monitor{}
	if sp.monitorAddr != "" {
		if err := mon.Start(sp.monitorAddr, eng); err != nil {
			return err
		}
		defer mon.Stop()
	}

	ps, err := eng.Run()
	if err != nil {
		return err
	}

	log.Noticef("run %s after %d iterations (delta %g)", ps.Term, ps.Iterations, ps.Delta)
	log.Noticef("residual variance %g, effect variance %v, weights %v",
		ps.Hyper.ResidVar, ps.Hyper.EffectVar, ps.Hyper.Weights)

	d := eng.Diag()
	log.Noticef("mean |effect| %g, proportion causal %g, occupancy %v",
		d.MeanAbsEffect, d.PropCausal, d.Occupancy)

	for i := range ps.Mean {
		fmt.Printf("%d\t%.8g\t%.8g\n", i, ps.Mean[i], ps.Variance[i])
	}

	return nil
}
