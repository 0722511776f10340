package model

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewVariant(t *testing.T) {
	assert := assert.New(t)

	v, err := NewVariant(0, 0.5, 0.1)
	assert.NoError(err)
	assert.Equal(0, v.Index)
	assert.Equal(0.5, v.Beta)
	assert.Equal(0.1, v.SE)
	assert.True(math.IsNaN(v.Freq))

	// zero effect is a perfectly valid observation
	v, err = NewVariant(3, 0.0, 1.0)
	assert.NoError(err)
	assert.NoError(v.Check())

	_, err = NewVariant(-1, 0.5, 0.1)
	assert.Error(err)

	_, err = NewVariant(0, math.NaN(), 0.1)
	assert.Error(err)

	_, err = NewVariant(0, math.Inf(1), 0.1)
	assert.Error(err)

	_, err = NewVariant(0, 0.5, 0.0)
	assert.Error(err)

	_, err = NewVariant(0, 0.5, -0.1)
	assert.Error(err)
}

func TestVariantFreq(t *testing.T) {
	assert := assert.New(t)

	v, err := NewVariant(0, 0.5, 0.1)
	assert.NoError(err)

	v.Freq = 0.25
	assert.NoError(v.Check())

	v.Freq = 1.25
	assert.Error(v.Check())

	v.Freq = -0.1
	assert.Error(v.Check())
}
