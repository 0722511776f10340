package rand

import (
	"math"

	"github.com/pkg/errors"
	"github.com/seehuhn/mt19937"
	exprand "golang.org/x/exp/rand"
	"gonum.org/v1/gonum/stat/distuv"
)

// source adapts the Mersenne twister to the rand.Source interface that the
// gonum distributions draw from.
type source struct {
	mt *mt19937.MT19937
}

func (s *source) Uint64() uint64 {
	return s.mt.Uint64()
}

func (s *source) Seed(seed uint64) {
	s.mt.Seed(int64(seed))
}

// A Generator owns all entropy for an inference run: a single seeded
// Mersenne twister behind the distribution samplers we need. Every engine
// receives its Generator explicitly - there is no ambient/global randomness
// anywhere in this package or its users.
type Generator struct {
	seed int64
	src  *source
	rnd  *exprand.Rand
	norm distuv.Normal
}

// NewGenerator returns a new seeded PRNG
func NewGenerator(seed int64) (*Generator, error) {
	mt := mt19937.New()
	mt.Seed(seed)

	src := &source{mt: mt}

	g := &Generator{
		seed: seed,
		src:  src,
		rnd:  exprand.New(src),
		norm: distuv.Normal{Mu: 0, Sigma: 1, Src: src},
	}

	return g, nil
}

// splitmix64 is the standard 64-bit finalizer used to decorrelate derived
// stream seeds from the root seed.
func splitmix64(z uint64) uint64 {
	z += 0x9e3779b97f4a7c15
	z = (z ^ (z >> 30)) * 0xbf58476d1ce4e5b9
	z = (z ^ (z >> 27)) * 0x94d049bb133111eb
	return z ^ (z >> 31)
}

// Derive returns an independent substream for the given stream index. Two
// generators derived with the same (seed, stream) pair are identical, so
// per-block substreams keep parallel runs reproducible at any worker count.
func (g *Generator) Derive(stream int64) *Generator {
	sub := int64(splitmix64(uint64(g.seed)) ^ splitmix64(uint64(stream)+0x632be59bd9b4e019))
	ng, err := NewGenerator(sub)
	if err != nil {
		// NewGenerator cannot currently fail, keep the API honest anyway
		panic(errors.Wrap(err, "Could not derive substream"))
	}
	return ng
}

// Seed returns the seed this generator was created with.
func (g *Generator) Seed() int64 {
	return g.seed
}

// Float64 returns a uniform draw from [0, 1).
func (g *Generator) Float64() float64 {
	return g.rnd.Float64()
}

// NormFloat64 returns a standard normal draw.
func (g *Generator) NormFloat64() float64 {
	return g.norm.Rand()
}

// Gamma returns a draw from Gamma(shape, rate). Draws from a near-zero
// shape can underflow to exactly 0; redraw rather than hand back a value the
// callers cannot use.
func (g *Generator) Gamma(shape, rate float64) float64 {
	d := distuv.Gamma{Alpha: shape, Beta: rate, Src: g.src}
	x := d.Rand()
	for x == 0 {
		x = d.Rand()
	}
	return x
}

// InvGamma returns a draw from InverseGamma(shape, rate) via the reciprocal
// of a Gamma draw. Denormal Gamma draws would invert to +Inf; redraw those
// too.
func (g *Generator) InvGamma(shape, rate float64) float64 {
	d := distuv.Gamma{Alpha: shape, Beta: rate, Src: g.src}
	inv := 1.0 / d.Rand()
	for math.IsInf(inv, 0) {
		inv = 1.0 / d.Rand()
	}
	return inv
}

// Beta returns a draw from Beta(a, b).
func (g *Generator) Beta(a, b float64) float64 {
	return distuv.Beta{Alpha: a, Beta: b, Src: g.src}.Rand()
}

// InvGaussian returns a draw from the inverse-Gaussian (Wald) distribution
// with mean mu and shape lambda using the Michael-Schucany-Haas transform.
// gonum's distuv has no inverse-Gaussian, so this composes its Normal with a
// uniform draw.
func (g *Generator) InvGaussian(mu, lambda float64) float64 {
	v := g.NormFloat64()
	y := v * v
	x := mu + mu*mu*y/(2*lambda) - mu/(2*lambda)*math.Sqrt(4*mu*lambda*y+mu*mu*y*y)
	if x <= 0 {
		// extreme tail round-off
		x = math.SmallestNonzeroFloat64
	}
	if g.Float64() <= mu/(mu+x) {
		return x
	}
	return mu * mu / x
}
