package helpers

import (
	"strconv"
	"time"
)

// IntToString converts int64 to string.
func IntToString(i int64) string {
	return strconv.FormatInt(i, 10)
}

// WithLatestFrom emits once, after both input channels have emitted at
// least once.
func WithLatestFrom(ch, ch2 <-chan struct{}) (resCh chan struct{}) {
	resCh = make(chan struct{}, 1)
	results := make([]int, 2)

	go func() {
		for {
			select {
			case <-ch:
				results[0] = 1
			case <-ch2:
				results[1] = 1
			}

			if results[0] == 1 && results[1] == 1 {
				resCh <- struct{}{}
				return
			}
		}
	}()

	return resCh
}

// TimeToEmptyChan adapts a timer channel to a signal channel.
func TimeToEmptyChan(in <-chan time.Time) chan struct{} {
	out := make(chan struct{}, 1)

	go func() {
		for range in {
			out <- struct{}{}
		}
	}()

	return out
}
