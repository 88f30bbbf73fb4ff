package progress

import "sync"

const reporterBuffer = 64

// Reporter is the producer end handed to a driver. Events travel over a
// channel to a forwarder owned by the registry, which pushes them to the
// task's subscriber and closes the stream after the terminal event.
type Reporter struct {
	id string
	ch chan Event

	mu       sync.Mutex
	finished bool
	result   Event

	done chan struct{}
}

// NewReporter starts a forwarder for id and returns its producer end.
func (r *Registry) NewReporter(id string) *Reporter {
	rep := &Reporter{
		id:   id,
		ch:   make(chan Event, reporterBuffer),
		done: make(chan struct{}),
	}
	go r.forward(rep)
	return rep
}

func (r *Registry) forward(rep *Reporter) {
	defer close(rep.done)

	for ev := range rep.ch {
		r.Push(rep.id, ev)
		if ev.Status.IsTerminal() {
			r.Close(rep.id)
		}
	}
}

func (rep *Reporter) TaskID() string {
	return rep.id
}

// Emit sends a non-terminal event. Terminal statuses are routed to Complete or Fail.
func (rep *Reporter) Emit(ev Event) {
	switch ev.Status {
	case StatusCompleted:
		rep.Complete()
	case StatusError:
		rep.send(ev, true)
	default:
		rep.send(ev, false)
	}
}

func (rep *Reporter) Complete() {
	rep.send(Completed(), true)
}

func (rep *Reporter) Fail(err error) {
	rep.send(Failed(err), true)
}

// Finished reports whether a terminal event was already sent.
func (rep *Reporter) Finished() bool {
	rep.mu.Lock()
	defer rep.mu.Unlock()

	return rep.finished
}

// Result returns the terminal event, ok is false while the driver is still running.
func (rep *Reporter) Result() (ev Event, ok bool) {
	rep.mu.Lock()
	defer rep.mu.Unlock()

	return rep.result, rep.finished
}

// Done is closed once the forwarder delivered everything, terminal event included.
func (rep *Reporter) Done() <-chan struct{} {
	return rep.done
}

func (rep *Reporter) send(ev Event, final bool) {
	rep.mu.Lock()
	defer rep.mu.Unlock()

	if rep.finished {
		return
	}
	rep.ch <- ev
	if final {
		rep.finished = true
		rep.result = ev
		close(rep.ch)
	}
}
