package model

import (
	"math"

	"github.com/pkg/errors"
)

// Variant is one variant's summary-statistic record: its position in the
// genome-wide ordering, the marginal effect estimate, its standard error,
// and (optionally) the allele frequency. Variants are read-only inputs -
// they are never mutated once a Partition is built over them.
type Variant struct {
	Index int     // position in the genome-wide ordering
	Beta  float64 // marginal effect estimate
	SE    float64 // standard error of Beta
	Freq  float64 // allele frequency, NaN when not supplied
}

// NewVariant is our standard way to create a variant record. Freq starts
// unknown; set it explicitly when the source provides one.
func NewVariant(index int, beta float64, se float64) (Variant, error) {
	v := Variant{
		Index: index,
		Beta:  beta,
		SE:    se,
		Freq:  math.NaN(),
	}

	if err := v.Check(); err != nil {
		return Variant{}, errors.Wrapf(err, "Could not create variant %d", index)
	}

	return v, nil
}

// Check returns an error if any problem is found
func (v Variant) Check() error {
	if v.Index < 0 {
		return errors.Errorf("Variant has invalid index %d", v.Index)
	}
	if math.IsNaN(v.Beta) || math.IsInf(v.Beta, 0) {
		return errors.Errorf("Variant %d has non-finite effect estimate %f", v.Index, v.Beta)
	}
	if !(v.SE > 0) || math.IsInf(v.SE, 0) {
		return errors.Errorf("Variant %d has invalid standard error %f", v.Index, v.SE)
	}
	if !math.IsNaN(v.Freq) && (v.Freq < 0 || v.Freq > 1) {
		return errors.Errorf("Variant %d has allele frequency %f outside [0,1]", v.Index, v.Freq)
	}
	return nil
}
