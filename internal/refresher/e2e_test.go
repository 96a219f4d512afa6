package refresher_test

import (
	"context"
	stderrors "errors"
	"math"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rileyhilliard/hfwatch/internal/attach"
	"github.com/rileyhilliard/hfwatch/internal/discovery"
	"github.com/rileyhilliard/hfwatch/internal/logger"
	"github.com/rileyhilliard/hfwatch/internal/refresher"
	"github.com/rileyhilliard/hfwatch/internal/terrain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// gridHandle serves three 4x4 grids, the second holding +Inf, then fails.
type gridHandle struct {
	id    terrain.EndpointID
	calls atomic.Int32
}

func (h *gridHandle) Endpoint() terrain.EndpointID { return h.id }

func (h *gridHandle) Fetch(context.Context) (*terrain.Snapshot, error) {
	n := int(h.calls.Add(1))
	if n > 3 {
		return nil, stderrors.New("endpoint shut down")
	}
	heights := make([]float32, 16)
	for i := range heights {
		heights[i] = float32(n*100 + i)
	}
	if n == 2 {
		heights[5] = float32(math.Inf(1))
	}
	return terrain.NewSnapshot(h.id, 4, heights)
}

func (h *gridHandle) Close() error { return nil }

// startingOwner builds and starts a refresher for each attached handle.
type startingOwner struct {
	listener refresher.Listener
	started  chan *refresher.Refresher
	failed   chan error
	attaches atomic.Int32
}

func (o *startingOwner) BackgroundOperationChanged(bool) {}

func (o *startingOwner) Attached(h terrain.Handle) {
	o.attaches.Add(1)
	r, err := refresher.New(h,
		refresher.WithInterval(5*time.Millisecond),
		refresher.WithLogger(logger.Noop()),
		refresher.WithListeners(o.listener))
	if err != nil {
		o.failed <- err
		return
	}
	r.Start(context.Background())
	o.started <- r
}

func (o *startingOwner) AttachFailed(err error) {
	o.attaches.Add(1)
	o.failed <- err
}

func TestEndToEnd_DiscoverAttachPoll(t *testing.T) {
	dir := discovery.NewDirectory(discovery.StaticSource{"B", "A"}, discovery.WithLogger(logger.Noop()))
	require.NoError(t, dir.Refresh())
	candidates := dir.Candidates()
	require.Equal(t, []terrain.EndpointID{"A", "B"}, candidates)

	events := refresher.NewChannelListener(16)
	owner := &startingOwner{
		listener: events,
		started:  make(chan *refresher.Refresher, 1),
		failed:   make(chan error, 1),
	}
	handles := map[terrain.EndpointID]*gridHandle{}
	var mu sync.Mutex
	m := attach.NewManager(attach.ConnectorFunc(func(_ context.Context, id terrain.EndpointID) (terrain.Handle, error) {
		mu.Lock()
		defer mu.Unlock()
		h := &gridHandle{id: id}
		handles[id] = h
		return h, nil
	}), owner, attach.WithLogger(logger.Noop()))

	require.True(t, m.Attach(context.Background(), candidates[0]))

	var r *refresher.Refresher
	select {
	case r = <-owner.started:
	case err := <-owner.failed:
		t.Fatalf("attach failed: %v", err)
	case <-time.After(2 * time.Second):
		t.Fatal("attach did not complete")
	}

	var got []refresher.Event
	for ev := range events.Events() {
		got = append(got, ev)
	}
	r.Wait()

	require.Len(t, got, 4)
	for i := 0; i < 3; i++ {
		require.Equal(t, refresher.EventSnapshot, got[i].Kind, "event %d", i)
		s := got[i].Snapshot
		assert.Equal(t, terrain.EndpointID("A"), s.Endpoint)
		assert.Equal(t, 4, s.Size)
		assert.Len(t, s.Heights, 16)
		assert.Equal(t, float32((i+1)*100), s.Heights[0])
	}
	assert.Equal(t, refresher.EventDisconnected, got[3].Kind)

	// The +Inf sample reaches listeners untouched.
	assert.True(t, math.IsInf(float64(got[1].Snapshot.Heights[5]), 1))
	assert.Equal(t, 1, got[1].Snapshot.Stats().NoData)

	mu.Lock()
	assert.Equal(t, int32(4), handles["A"].calls.Load())
	mu.Unlock()
	assert.Equal(t, int32(1), owner.attaches.Load())
}

func TestEndToEnd_AttachTwiceQuickly(t *testing.T) {
	release := make(chan struct{})
	owner := &startingOwner{
		listener: &refresher.ListenerFuncs{},
		started:  make(chan *refresher.Refresher, 2),
		failed:   make(chan error, 2),
	}
	m := attach.NewManager(attach.ConnectorFunc(func(_ context.Context, id terrain.EndpointID) (terrain.Handle, error) {
		<-release
		return &gridHandle{id: id}, nil
	}), owner, attach.WithLogger(logger.Noop()))

	assert.True(t, m.Attach(context.Background(), "A"))
	assert.False(t, m.Attach(context.Background(), "A"))
	close(release)
	m.Wait()

	assert.Equal(t, int32(1), owner.attaches.Load())
	r := <-owner.started
	r.Stop()
	r.Wait()
}
