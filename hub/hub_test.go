package hub

import (
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeObserver struct {
	mu       sync.Mutex
	received [][]byte
	fail     bool
}

func (o *fakeObserver) Send(data []byte) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.fail {
		return errors.New("connection gone")
	}
	cp := make([]byte, len(data))
	copy(cp, data)
	o.received = append(o.received, cp)
	return nil
}

func (o *fakeObserver) count() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.received)
}

func (o *fakeObserver) last() []byte {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.received[len(o.received)-1]
}

func TestBroadcastEnvelope(t *testing.T) {
	h := New(nil)
	o := &fakeObserver{}
	h.Register(o)

	h.Broadcast(TickUpdate, map[string]float64{"bid": 2650.1})

	require.Equal(t, 1, o.count())
	var msg Message
	require.NoError(t, json.Unmarshal(o.last(), &msg))
	assert.Equal(t, TickUpdate, msg.Type)
	assert.NotEmpty(t, msg.Timestamp)

	data, ok := msg.Data.(map[string]interface{})
	require.True(t, ok)
	assert.InDelta(t, 2650.1, data["bid"].(float64), 1e-9)
}

func TestBroadcastDropsDeadObserver(t *testing.T) {
	h := New(nil)
	alive1 := &fakeObserver{}
	dead := &fakeObserver{fail: true}
	alive2 := &fakeObserver{}

	h.Register(alive1)
	h.Register(dead)
	h.Register(alive2)
	require.Equal(t, 3, h.Count())

	h.Broadcast(Status, "hello")

	// Live observers got the event; the dead one is gone.
	assert.Equal(t, 1, alive1.count())
	assert.Equal(t, 1, alive2.count())
	assert.Equal(t, 2, h.Count())

	// The next broadcast no longer tries the dead observer.
	h.Broadcast(Status, "again")
	assert.Equal(t, 2, alive1.count())
	assert.Equal(t, 2, alive2.count())
	assert.Equal(t, 2, h.Count())
}

func TestDeregister(t *testing.T) {
	h := New(nil)
	o := &fakeObserver{}
	oid := h.Register(o)

	h.Deregister(oid)
	h.Broadcast(Status, "x")

	assert.Zero(t, o.count())
	assert.Zero(t, h.Count())
}

func TestSendDirect(t *testing.T) {
	h := New(nil)
	a := &fakeObserver{}
	b := &fakeObserver{}
	aid := h.Register(a)
	h.Register(b)

	h.SendDirect(aid, Status, map[string]bool{"ok": true})

	assert.Equal(t, 1, a.count())
	assert.Zero(t, b.count(), "direct send must not reach other observers")
}

func TestSendDirectFailureDeregisters(t *testing.T) {
	h := New(nil)
	o := &fakeObserver{fail: true}
	oid := h.Register(o)

	h.SendDirect(oid, Status, "x")

	assert.Zero(t, h.Count())
}

func TestSendDirectUnknownObserver(t *testing.T) {
	h := New(nil)
	// Must not panic.
	h.SendDirect("missing", Status, "x")
}

func TestBroadcastUnmarshalableDropped(t *testing.T) {
	h := New(nil)
	o := &fakeObserver{}
	h.Register(o)

	h.Broadcast(Status, func() {}) // functions cannot be marshaled

	assert.Zero(t, o.count())
	assert.Equal(t, 1, h.Count(), "observer must survive a bad payload")
}

func TestConcurrentRegisterAndBroadcast(t *testing.T) {
	h := New(nil)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			h.Register(&fakeObserver{})
		}()
		go func() {
			defer wg.Done()
			h.Broadcast(TickUpdate, i)
		}()
	}
	wg.Wait()

	assert.Equal(t, 10, h.Count())
}
