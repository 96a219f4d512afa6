// Package terrain holds the domain types shared by every hfwatch component:
// endpoint identities, heightfield snapshots, the Handle a refresher polls,
// and the wire codec the remote inspector speaks.
package terrain

import (
	"context"
	"encoding/binary"
	"fmt"
	"math"
	"time"

	"github.com/zeebo/xxh3"
)

// EndpointID names a remote endpoint. It is an SSH destination: a config
// alias, host, user@host, or host:port.
type EndpointID string

func (id EndpointID) String() string { return string(id) }

// Handle is a live connection to one endpoint. The refresher wrapping a
// handle owns it and closes it when polling stops.
type Handle interface {
	Endpoint() EndpointID

	// Fetch reads one snapshot. A nil snapshot with a nil error means the
	// remote had nothing to report this cycle.
	Fetch(ctx context.Context) (*Snapshot, error)

	Close() error
}

// Snapshot is one reading of the remote heightfield: a Size×Size grid of
// samples stored row-major. Samples may be ±Inf or NaN, which mark cells
// with no data. A snapshot must not be modified once broadcast.
type Snapshot struct {
	Endpoint  EndpointID
	Size      int
	Heights   []float32
	FetchedAt time.Time
}

// NewSnapshot builds a snapshot after checking len(heights) == size².
func NewSnapshot(endpoint EndpointID, size int, heights []float32) (*Snapshot, error) {
	if err := checkShape(size, len(heights)); err != nil {
		return nil, err
	}
	return &Snapshot{
		Endpoint:  endpoint,
		Size:      size,
		Heights:   heights,
		FetchedAt: time.Now(),
	}, nil
}

func checkShape(size, n int) error {
	if size < 0 {
		return fmt.Errorf("negative grid size %d", size)
	}
	if size > MaxSize {
		return fmt.Errorf("grid size %d exceeds the %d limit", size, MaxSize)
	}
	if n != size*size {
		return fmt.Errorf("grid size %d needs %d samples, got %d", size, size*size, n)
	}
	return nil
}

// MaxSize is the largest grid side accepted from the wire.
const MaxSize = 4096

// Empty reports whether there is nothing to show. Nil-safe.
func (s *Snapshot) Empty() bool {
	return s == nil || s.Size == 0 || len(s.Heights) == 0
}

// At returns the sample at column x, row y.
func (s *Snapshot) At(x, y int) float32 {
	return s.Heights[y*s.Size+x]
}

// IsNoData reports whether v marks a cell without data (±Inf or NaN).
func IsNoData(v float32) bool {
	f := float64(v)
	return math.IsInf(f, 0) || math.IsNaN(f)
}

// Stats summarizes the finite samples of a snapshot.
type Stats struct {
	Min    float32
	Max    float32
	Finite int
	NoData int
}

// Range is Max - Min, or 0 when there are no finite samples. It is
// computed in float64 since the float32 difference of two finite samples
// can overflow.
func (st Stats) Range() float64 {
	if st.Finite == 0 {
		return 0
	}
	return float64(st.Max) - float64(st.Min)
}

// Stats computes min and max over finite samples and counts no-data cells.
func (s *Snapshot) Stats() Stats {
	var st Stats
	if s == nil {
		return st
	}
	for _, v := range s.Heights {
		if IsNoData(v) {
			st.NoData++
			continue
		}
		if st.Finite == 0 || v < st.Min {
			st.Min = v
		}
		if st.Finite == 0 || v > st.Max {
			st.Max = v
		}
		st.Finite++
	}
	return st
}

// Digest is an xxh3 hash of the grid size and raw sample bits. Two snapshots
// with the same digest render identically; the endpoint and fetch time are
// not part of it.
func (s *Snapshot) Digest() uint64 {
	if s == nil {
		return 0
	}
	buf := make([]byte, 8+4*len(s.Heights))
	binary.LittleEndian.PutUint64(buf, uint64(s.Size))
	for i, v := range s.Heights {
		binary.LittleEndian.PutUint32(buf[8+4*i:], math.Float32bits(v))
	}
	return xxh3.Hash(buf)
}
