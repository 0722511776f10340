package model

import (
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"
)

// FieldReader is just a simple reader for basic file formats.
type FieldReader struct {
	Pos    int
	Fields []string
}

// NewFieldReader constructs a new field reader around the given data
func NewFieldReader(data string) *FieldReader {
	return &FieldReader{0, strings.Fields(data)}
}

// Read returns the next space-delimited field/token
func (fr *FieldReader) Read() (string, error) {
	if fr.Pos >= len(fr.Fields) {
		return "", io.EOF
	}
	p := fr.Pos
	fr.Pos++
	return fr.Fields[p], nil
}

// ReadInt reads the next token as an int
func (fr *FieldReader) ReadInt() (int, error) {
	s, err := fr.Read()
	if err != nil {
		return 0, err
	}

	i, err := strconv.ParseInt(s, 10, 0)
	return int(i), err
}

// ReadFloat reads the next token as a float
func (fr *FieldReader) ReadFloat() (float64, error) {
	s, err := fr.Read()
	if err != nil {
		return 0, err
	}

	return strconv.ParseFloat(s, 64)
}

// ReadSumStats parses a whitespace-delimited summary-statistics stream:
// a header of "variantCount fieldCount" where fieldCount is 2 (beta se) or 3
// (beta se freq), followed by that many records in genome-wide order. The
// engines never read files themselves - this exists for the CLI shell.
func ReadSumStats(data []byte) ([]Variant, error) {
	fr := NewFieldReader(string(data))

	p, err := fr.ReadInt()
	if err != nil {
		return nil, errors.Wrap(err, "Could not read variant count")
	}
	nf, err := fr.ReadInt()
	if err != nil {
		return nil, errors.Wrap(err, "Could not read field count")
	}
	if p < 1 {
		return nil, errors.Errorf("Invalid variant count %d", p)
	}
	if nf != 2 && nf != 3 {
		return nil, errors.Errorf("Field count must be 2 (beta se) or 3 (beta se freq), got %d", nf)
	}

	variants := make([]Variant, p)
	for i := 0; i < p; i++ {
		beta, err := fr.ReadFloat()
		if err != nil {
			return nil, errors.Wrapf(err, "Could not read effect for variant %d", i)
		}
		se, err := fr.ReadFloat()
		if err != nil {
			return nil, errors.Wrapf(err, "Could not read standard error for variant %d", i)
		}

		v, err := NewVariant(i, beta, se)
		if err != nil {
			return nil, err
		}

		if nf == 3 {
			freq, err := fr.ReadFloat()
			if err != nil {
				return nil, errors.Wrapf(err, "Could not read frequency for variant %d", i)
			}
			v.Freq = freq
			if err := v.Check(); err != nil {
				return nil, err
			}
		}

		variants[i] = v
	}

	return variants, nil
}

// ReadLDBlocks parses an LD stream: a block count, then per block its
// variant count followed by the row-major correlation matrix entries.
func ReadLDBlocks(data []byte) ([]int, []*mat.SymDense, error) {
	fr := NewFieldReader(string(data))

	nb, err := fr.ReadInt()
	if err != nil {
		return nil, nil, errors.Wrap(err, "Could not read block count")
	}
	if nb < 1 {
		return nil, nil, errors.Errorf("Invalid block count %d", nb)
	}

	sizes := make([]int, nb)
	corrs := make([]*mat.SymDense, nb)
	for b := 0; b < nb; b++ {
		m, err := fr.ReadInt()
		if err != nil {
			return nil, nil, errors.Wrapf(err, "Could not read size of block %d", b)
		}
		if m < 1 {
			return nil, nil, errors.Errorf("Invalid size %d for block %d", m, b)
		}

		vals := make([]float64, m*m)
		for i := range vals {
			vals[i], err = fr.ReadFloat()
			if err != nil {
				return nil, nil, errors.Wrapf(err, "Could not read correlation %d of block %d", i, b)
			}
		}

		sizes[b] = m
		corrs[b] = mat.NewSymDense(m, vals)
	}

	return sizes, corrs, nil
}

// NewPartitionFromFiles reads a sum-stats file and an LD file and builds a
// validated contiguous partition from them.
func NewPartitionFromFiles(sumFile string, ldFile string) (*Partition, error) {
	sumData, err := os.ReadFile(sumFile)
	if err != nil {
		return nil, errors.Wrapf(err, "Could not READ summary stats from %s", sumFile)
	}
	variants, err := ReadSumStats(sumData)
	if err != nil {
		return nil, errors.Wrapf(err, "Could not PARSE summary stats from %s", sumFile)
	}

	ldData, err := os.ReadFile(ldFile)
	if err != nil {
		return nil, errors.Wrapf(err, "Could not READ LD blocks from %s", ldFile)
	}
	sizes, corrs, err := ReadLDBlocks(ldData)
	if err != nil {
		return nil, errors.Wrapf(err, "Could not PARSE LD blocks from %s", ldFile)
	}

	return NewContiguousPartition(variants, sizes, corrs)
}
