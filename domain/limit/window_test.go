package limit

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func Test_FixedWindow_Allows_Up_To_Max(t *testing.T) {
	req := require.New(t)
	w := NewFixedWindow(time.Minute, 2)
	now := time.Now()

	req.True(w.Allow(now))
	req.True(w.Allow(now.Add(1 * time.Second)))
	req.False(w.Allow(now.Add(2 * time.Second)))
	req.False(w.Allow(now.Add(3 * time.Second)))
}

func Test_FixedWindow_Rejections_Keep_Counting(t *testing.T) {
	req := require.New(t)
	w := NewFixedWindow(time.Minute, 1)
	now := time.Now()

	req.True(w.Allow(now))
	// Flooding while rejected does not earn a fresh allowance.
	for i := 0; i < 10; i++ {
		req.False(w.Allow(now.Add(time.Duration(i) * time.Second)))
	}
}

func Test_FixedWindow_Resets_After_Expiry(t *testing.T) {
	req := require.New(t)
	w := NewFixedWindow(time.Minute, 1)
	now := time.Now()

	req.True(w.Allow(now))
	req.False(w.Allow(now.Add(30 * time.Second)))

	// Exactly at the window length the window is still active.
	req.False(w.Allow(now.Add(time.Minute)))

	// Strictly past it, a new window starts with count 1.
	req.True(w.Allow(now.Add(time.Minute + time.Nanosecond)))
}
