package stats

// Circular is a fixed-size circular buffer of float64 values with the
// ability to iterate over the first (oldest) and second (most recent) halves
// in the order the values were appended. The engines use it as a sliding
// window over per-iteration convergence deltas.
type Circular struct {
	buffer    []float64
	pos       int
	BufSize   int   // BufSize is the fixed number of values maintained in memory
	Count     int   // Count is the number of values in memory. Will always be <= BufSize
	TotalSeen int64 // TotalSeen is the total number of times Add has been called
}

// NewCircular creates a new circular buffer of totalSize. If totalSize is
// not a multiple of 2, it will be adjusted.
func NewCircular(totalSize int) *Circular {
	half := totalSize / 2
	total := half + half

	return &Circular{
		buffer:  make([]float64, total),
		pos:     0,
		BufSize: total,
		Count:   0,
	}
}

func (c *Circular) nextPos() int {
	return (c.pos + 1) % c.BufSize
}

// Add appends the given value to the buffer, overwriting the oldest entry
func (c *Circular) Add(x float64) {
	c.TotalSeen++

	c.buffer[c.pos] = x
	c.pos = c.nextPos()

	c.Count++
	if c.Count > c.BufSize {
		c.Count = c.BufSize // max out
	}
}

// FirstHalf returns an iterator over the first (oldest) half of the stored
// values. Will not return a valid iterator until Add has been called at
// least BufSize times
func (c *Circular) FirstHalf() *CircularIterator {
	if c.Count < c.BufSize {
		return nil
	}

	return &CircularIterator{
		buf:    c,
		curr:   c.pos, // Oldest is the one we're about to write
		remain: c.BufSize / 2,
	}
}

// SecondHalf returns an iterator over the second (most recent) half of the
// stored values. Will not return a valid iterator until Add has been called
// at least BufSize times
func (c *Circular) SecondHalf() *CircularIterator {
	if c.Count < c.BufSize {
		return nil
	}

	half := c.BufSize / 2
	pos := (c.pos + half) % c.BufSize

	return &CircularIterator{
		buf:    c,
		curr:   pos,
		remain: half,
	}
}

// HalfMeans returns the means of the two window halves. ok is false until
// the window has filled. A second-half mean at or below the first-half mean
// is the "still improving" signal the variational engine reports.
func (c *Circular) HalfMeans() (first float64, second float64, ok bool) {
	fi := c.FirstHalf()
	si := c.SecondHalf()
	if fi == nil || si == nil {
		return 0, 0, false
	}

	n := 0
	for fi.Next() {
		first += fi.Value()
		n++
	}
	first /= float64(n)

	n = 0
	for si.Next() {
		second += si.Value()
		n++
	}
	second /= float64(n)

	return first, second, true
}

// CircularIterator provides an iterator over a Circular buffer
type CircularIterator struct {
	buf    *Circular
	curr   int
	remain int
}

// Next returns True when there are more values to read via Value
func (i *CircularIterator) Next() bool {
	return i.remain > 0
}

// Value returns the next value to be read. Should only be called if Next()
// is True
func (i *CircularIterator) Value() float64 {
	v := i.buf.buffer[i.curr]
	i.curr = (i.curr + 1) % i.buf.BufSize
	i.remain--
	return v
}
