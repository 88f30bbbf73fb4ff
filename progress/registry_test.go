package progress

import (
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// collect drains sub until the stream ends or the timeout hits.
func collect(t *testing.T, sub *Subscription, timeout time.Duration) []Event {
	t.Helper()

	var all []Event
	deadline := time.After(timeout)
	for {
		select {
		case <-sub.Ready():
			events, open := sub.Drain()
			all = append(all, events...)
			if !open {
				return all
			}
		case <-deadline:
			t.Fatalf("stream for %s did not end, got %v", sub.ID(), all)
			return all
		}
	}
}

func TestRegistry_Subscribe(t *testing.T) {
	r := NewRegistry()

	sub := r.Subscribe("taskA")
	events, open := sub.Drain()
	assert.True(t, open)
	assert.Equal(t, []Event{Connected()}, events)
	assert.True(t, r.Has("taskA"))
	assert.Equal(t, 1, r.Len())
}

func TestRegistry_PushWithoutSubscriber(t *testing.T) {
	r := NewRegistry()

	assert.NotPanics(t, func() {
		r.Push("nobody", Event{Percent: 10, Status: StatusDownloading})
		r.Close("nobody")
		r.Unsubscribe("nobody")
	})
	assert.False(t, r.Has("nobody"))
}

func TestRegistry_Resubscribe(t *testing.T) {
	r := NewRegistry()

	first := r.Subscribe("taskA")
	_, _ = first.Drain()

	second := r.Subscribe("taskA")
	r.Push("taskA", Event{Percent: 5, Status: StatusDownloading})

	events, open := first.Drain()
	assert.Empty(t, events)
	assert.True(t, open, "the replaced subscription is left to its owner")

	events, _ = second.Drain()
	assert.Equal(t, []Event{Connected(), {Percent: 5, Status: StatusDownloading}}, events)

	// the stale subscriber going away must not evict its replacement
	first.Cancel()
	assert.True(t, r.Has("taskA"))
	assert.Equal(t, 1, r.Len())
}

func TestRegistry_Close(t *testing.T) {
	r := NewRegistry()

	sub := r.Subscribe("taskA")
	r.Push("taskA", Completed())
	r.Close("taskA")

	events, open := sub.Drain()
	assert.False(t, open)
	assert.Equal(t, []Event{Connected(), Completed()}, events)
	assert.False(t, r.Has("taskA"))

	// writes after close are silent
	r.Push("taskA", Event{Percent: 1, Status: StatusDownloading})
	events, _ = sub.Drain()
	assert.Empty(t, events)
}

func TestRegistry_Unsubscribe(t *testing.T) {
	r := NewRegistry()

	sub := r.Subscribe("taskA")
	r.Unsubscribe("taskA")

	assert.NotPanics(t, func() {
		r.Push("taskA", Event{Percent: 50, Status: StatusDownloading})
	})
	events, open := sub.Drain()
	assert.Empty(t, events)
	assert.False(t, open)
	assert.False(t, r.Has("taskA"))
}

func TestRegistry_CoalescesQueuedProgress(t *testing.T) {
	r := NewRegistry()

	sub := r.Subscribe("taskA")
	for _, p := range []float64{10, 20, 30} {
		r.Push("taskA", Event{Percent: p, Status: StatusDownloading})
	}
	r.Push("taskA", Completed())

	events, _ := sub.Drain()
	assert.Equal(t, []Event{
		Connected(),
		{Percent: 30, Status: StatusDownloading},
		Completed(),
	}, events)
}

func TestRegistry_Shutdown(t *testing.T) {
	r := NewRegistry()

	sub := r.Subscribe("taskA")
	r.Shutdown()

	_, open := sub.Drain()
	assert.False(t, open)
	assert.Equal(t, 0, r.Len())

	late := r.Subscribe("taskB")
	events, open := late.Drain()
	assert.Empty(t, events)
	assert.False(t, open)
}

func TestReporter_ForwardsInOrder(t *testing.T) {
	r := NewRegistry()
	sub := r.Subscribe("taskA")

	rep := r.NewReporter("taskA")
	var bp ByteProgress
	for written := int64(0); written <= 1000; written += 100 {
		rep.Emit(bp.Sample(written, 1000))
	}
	rep.Complete()
	rep.Emit(Event{Percent: 1, Status: StatusDownloading})
	rep.Fail(errors.New("ignored after completion"))

	select {
	case <-rep.Done():
	case <-time.After(time.Second):
		t.Fatal("forwarder did not finish")
	}
	assert.True(t, rep.Finished())

	events := collect(t, sub, time.Second)
	require.GreaterOrEqual(t, len(events), 2)
	assert.Equal(t, Connected(), events[0])
	assert.Equal(t, Completed(), events[len(events)-1])

	prev := 0.0
	for _, ev := range events[1 : len(events)-1] {
		assert.Equal(t, StatusDownloading, ev.Status)
		assert.GreaterOrEqual(t, ev.Percent, prev)
		prev = ev.Percent
	}
	assert.False(t, r.Has("taskA"))
}

func TestReporter_Failure(t *testing.T) {
	r := NewRegistry()
	sub := r.Subscribe("taskA")

	rep := r.NewReporter("taskA")
	rep.Emit(Event{Percent: 12, Status: StatusProcessing})
	rep.Fail(errors.New("encoder exploded"))

	events := collect(t, sub, time.Second)
	last := events[len(events)-1]
	assert.Equal(t, StatusError, last.Status)
	assert.Equal(t, "encoder exploded", last.Message)
}

func TestReporter_UnsubscribeMidJob(t *testing.T) {
	r := NewRegistry()
	sub := r.Subscribe("taskA")
	rep := r.NewReporter("taskA")

	rep.Emit(Event{Percent: 1, Status: StatusDownloading})
	sub.Cancel()

	assert.NotPanics(t, func() {
		for i := 2; i <= 100; i++ {
			rep.Emit(Event{Percent: float64(i), Status: StatusDownloading})
		}
		rep.Complete()
	})

	select {
	case <-rep.Done():
	case <-time.After(time.Second):
		t.Fatal("forwarder did not finish")
	}
	assert.False(t, r.Has("taskA"))
}

func TestRegistry_ConcurrentTasks(t *testing.T) {
	r := NewRegistry()

	const tasks = 16
	subs := make([]*Subscription, tasks)
	for i := range subs {
		subs[i] = r.Subscribe(fmt.Sprintf("task-%d", i))
	}

	var wg sync.WaitGroup
	for i := 0; i < tasks; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			rep := r.NewReporter(fmt.Sprintf("task-%d", i))
			for p := 1; p <= 50; p++ {
				rep.Emit(Event{Percent: float64(p * 2), Status: StatusDownloading})
			}
			rep.Complete()
			<-rep.Done()
		}(i)
	}

	for _, sub := range subs {
		events := collect(t, sub, 2*time.Second)
		assert.Equal(t, Connected(), events[0])
		assert.Equal(t, Completed(), events[len(events)-1])
	}
	wg.Wait()
	assert.Equal(t, 0, r.Len())
}
