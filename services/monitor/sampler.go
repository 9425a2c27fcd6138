package monitor

import (
	"context"
	"time"

	"smartbin-go/drivers/hcsr04"
	"smartbin-go/errcode"
	"smartbin-go/services/hal/util"
)

// Ranger is the poll side of the distance sensor.
type Ranger interface {
	Start()
	DistanceCM() uint32
}

// Sampler turns single pings into one filtered distance.
type Sampler struct {
	r      Ranger
	n      int
	settle time.Duration

	// Sleep waits out the settle time. Defaults to util.Sleep.
	Sleep func(ctx context.Context, d time.Duration) error
}

func NewSampler(r Ranger, n int, settle time.Duration) *Sampler {
	return &Sampler{r: r, n: n, settle: settle, Sleep: util.Sleep}
}

// Measure fires n pings, each followed by the settle delay, and returns
// the median of the readings. A ping that gets no echo contributes the
// previous (stale) reading. Cancelling ctx aborts between pings.
func (s *Sampler) Measure(ctx context.Context) (float32, error) {
	if s.n < 1 {
		return 0, &errcode.E{C: errcode.EmptyWindow, Op: "sampler.measure"}
	}
	window := make([]uint32, s.n)
	for i := range window {
		if err := ctx.Err(); err != nil {
			return 0, err
		}
		s.r.Start()
		if err := s.Sleep(ctx, s.settle); err != nil {
			return 0, err
		}
		window[i] = s.r.DistanceCM()
	}
	v, err := hcsr04.Filter(window)
	if err != nil {
		return 0, errcode.Wrap(errcode.EmptyWindow, "sampler.measure", err)
	}
	return float32(v), nil
}
