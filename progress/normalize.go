package progress

import "math"

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// ByteProgress normalizes a byte counter against a content length. When the
// length is unknown the last emitted percent is held.
type ByteProgress struct {
	last float64
}

func (b *ByteProgress) Sample(written, length int64) Event {
	if length > 0 && written >= 0 {
		p := round2(float64(written) / float64(length) * 100)
		b.last = clamp(p, b.last, 100)
	}
	return Event{Percent: b.last, Status: StatusDownloading}
}

// SwarmProgress accumulates delivered byte increments of a swarm and only
// reports when the rounded percent strictly increases.
type SwarmProgress struct {
	length int64
	total  int64
	last   float64
}

func NewSwarmProgress(length int64) *SwarmProgress {
	return &SwarmProgress{length: length}
}

// Add records delta delivered bytes. ok is false when nothing should be emitted.
func (s *SwarmProgress) Add(delta int64) (ev Event, ok bool) {
	if delta > 0 {
		s.total += delta
	}
	if s.length <= 0 {
		return Event{}, false
	}

	p := clamp(round2(float64(s.total)/float64(s.length)*100), 0, 100)
	if p <= s.last {
		return Event{}, false
	}
	s.last = p
	return Event{Percent: p, Status: StatusDownloading}, true
}

func (s *SwarmProgress) Total() int64 {
	return s.total
}

// FrameProgress normalizes the transcoder's own percent (already 0..100).
type FrameProgress struct {
	last float64
}

// Sample takes the native percent; ok is false when the engine did not report one.
func (f *FrameProgress) Sample(percent float64, ok bool) Event {
	p := 0.0
	if ok && !math.IsNaN(percent) && !math.IsInf(percent, 0) {
		p = round2(percent)
	}
	f.last = clamp(p, f.last, 100)
	return Event{Percent: f.last, Status: StatusProcessing}
}
