// Package control owns the currently selected lookback window and
// granularity for one device+interface view, drives sample fetches on
// selection change and runs the aggregation pipeline on the result.
//
// Every selection gets a monotonically increasing token and its own
// cancellable context. A response is committed only if its token is still
// current, so a slow response to a superseded selection can never overwrite
// the result of a later one.
package control

import (
	"context"
	"sync"

	"github.com/opsdash/optelem/src/aggregate"
	"github.com/opsdash/optelem/src/source"
	"github.com/opsdash/optelem/src/telemetry"
)

// State is the controller lifecycle state.
type State int

const (
	StateIdle State = iota // no selection made yet
	StateLoading
	StateReady
	StateError
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateLoading:
		return "loading"
	case StateReady:
		return "ready"
	case StateError:
		return "error"
	}
	return "unknown"
}

// Selection pairs the lookback window with the bucket granularity.
type Selection struct {
	Range       telemetry.RangeSelection
	Granularity telemetry.Granularity
}

// Snapshot is the externally visible controller state at one instant.
// Series is non-nil only in StateReady; Err is non-nil only in StateError.
// While loading, the previously displayed series (if any) is retained so the
// view can keep showing it; a fetch failure clears it.
type Snapshot struct {
	State     State
	Selection Selection
	Series    *aggregate.TimeSeries
	Err       error
}

// RangeController drives the fetch -> bucketize -> summarize -> assemble
// pipeline for one device+interface. Methods are safe for concurrent use.
type RangeController struct {
	src      source.SampleSource
	device   string
	ifIndex  int
	onUpdate func(Snapshot) // optional; called outside the lock

	mu     sync.Mutex
	seq    uint64
	cancel context.CancelFunc
	snap   Snapshot
}

// New builds a controller in StateIdle. onUpdate, when non-nil, is invoked
// after every committed state change with the new snapshot.
func New(src source.SampleSource, device string, ifIndex int, onUpdate func(Snapshot)) *RangeController {
	return &RangeController{
		src:      src,
		device:   device,
		ifIndex:  ifIndex,
		onUpdate: onUpdate,
		snap:     Snapshot{State: StateIdle},
	}
}

// Snapshot returns the current state.
func (c *RangeController) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snap
}

// Select changes the active range/granularity. Any in-flight fetch is
// cancelled and its eventual response discarded. The fetch and pipeline run
// asynchronously; results arrive through OnUpdate and Snapshot.
func (c *RangeController) Select(ctx context.Context, sel Selection) {
	c.mu.Lock()
	if c.cancel != nil {
		c.cancel()
	}
	fctx, cancel := context.WithCancel(ctx)
	c.cancel = cancel
	c.seq++
	token := c.seq
	c.snap = Snapshot{State: StateLoading, Selection: sel, Series: c.snap.Series}
	snap := c.snap
	c.mu.Unlock()

	c.notify(snap)
	go c.fetch(fctx, token, sel)
}

// Close cancels any in-flight fetch. The controller can still be reused
// with a fresh Select afterwards.
func (c *RangeController) Close() {
	c.mu.Lock()
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
	c.mu.Unlock()
}

func (c *RangeController) fetch(ctx context.Context, token uint64, sel Selection) {
	readings, err := c.src.Fetch(ctx, c.device, c.ifIndex, sel.Range.Hours)
	if err != nil {
		// Fetch errors are terminal per request: surface the error state and
		// clear any previously displayed series. Recovery is a fresh Select.
		c.commit(token, Snapshot{State: StateError, Selection: sel, Err: err})
		return
	}
	ts := aggregate.AssembleSeries(readings, sel.Granularity)
	if ts.Dropped > 0 {
		source.Warnf("[%s if%d] dropped %d malformed readings", c.device, c.ifIndex, ts.Dropped)
	}
	c.commit(token, Snapshot{State: StateReady, Selection: sel, Series: &ts})
}

// commit installs a snapshot only if its originating selection is still the
// current one.
func (c *RangeController) commit(token uint64, snap Snapshot) {
	c.mu.Lock()
	if cur := c.seq; token != cur {
		c.mu.Unlock()
		source.Debugf("[%s if%d] discarding superseded response (token %d, current %d)",
			c.device, c.ifIndex, token, cur)
		return
	}
	c.snap = snap
	c.mu.Unlock()
	c.notify(snap)
}

func (c *RangeController) notify(snap Snapshot) {
	if c.onUpdate != nil {
		c.onUpdate(snap)
	}
}
