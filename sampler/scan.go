package sampler

import (
	"math"

	"github.com/statbio/prsinfer/model"
	"github.com/statbio/prsinfer/prior"
)

// scanBlock runs one iteration's sweep over a single block. Variants are
// visited strictly in their fixed within-block order: each variant's partial
// residual is its marginal estimate minus the LD-weighted effects of every
// other variant in the block, using values already updated earlier in the
// same sweep. A non-finite new effect is fatal - the chain cannot recover
// from it.
func scanBlock(iter int, b *model.Block, bhat, se, eff []float64,
	upd func(j int, resid, se float64) float64, s *prior.Suff) error {

	m := b.Size()
	for i := 0; i < m; i++ {
		j := b.Vars[i]

		resid := bhat[j]
		for k := 0; k < m; k++ {
			if k == i {
				continue
			}
			resid -= b.Corr.At(i, k) * eff[b.Vars[k]]
		}

		newEff := upd(j, resid, se[j])
		if math.IsNaN(newEff) || math.IsInf(newEff, 0) {
			return &model.NumericDivergenceError{Iter: iter, Block: b.ID, Variant: j}
		}

		eff[j] = newEff
		s.AddResid(resid, newEff, se[j])
	}

	return nil
}
