package limit

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func Test_InFlight_Caps_Concurrent_Slots(t *testing.T) {
	req := require.New(t)
	f := NewInFlight(2)

	release1, ok := f.TryAcquire()
	req.True(ok)
	_, ok = f.TryAcquire()
	req.True(ok)
	_, ok = f.TryAcquire()
	req.False(ok)
	req.Equal(2, f.Current())

	release1()
	req.Equal(1, f.Current())
	_, ok = f.TryAcquire()
	req.True(ok)
}

func Test_InFlight_Release_Is_Idempotent(t *testing.T) {
	req := require.New(t)
	f := NewInFlight(1)

	release, ok := f.TryAcquire()
	req.True(ok)
	release()
	release()
	req.Equal(0, f.Current())
}
