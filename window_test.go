package h2core

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestWindowAddWithinBounds(t *testing.T) {
	var w Window = 100
	require.NoError(t, w.Add(50))
	require.EqualValues(t, 150, w.Available())
}

func TestWindowAddOverflow(t *testing.T) {
	var w Window = maxWindowSize
	require.Error(t, w.Add(1))
}

func TestWindowCanGoNegativeOnSettingsShrink(t *testing.T) {
	var w Window = 100
	require.NoError(t, w.Add(-150))
	require.EqualValues(t, -50, w.Available())
}

func TestOutgoingWindowHandlerReserve(t *testing.T) {
	h := newOutgoingWindowHandler(10)
	got := h.Reserve(20)
	require.EqualValues(t, 10, got)
	require.EqualValues(t, 0, h.Get().Available())

	got = h.Reserve(5)
	require.EqualValues(t, 0, got)
}

func TestOutgoingWindowHandlerWaitWakesOnIncrease(t *testing.T) {
	h := newOutgoingWindowHandler(0)
	waitCh := h.Wait()

	select {
	case <-waitCh:
		t.Fatal("should not be ready yet")
	default:
	}

	require.NoError(t, h.Increase(10))

	select {
	case <-waitCh:
	default:
		t.Fatal("expected wait channel to close after Increase")
	}
	require.EqualValues(t, 10, h.Get().Available())
}

func TestIncomingWindowHandlerTopUp(t *testing.T) {
	h := newIncomingWindowHandler(100)
	require.NoError(t, h.Consume(60))

	inc, ok := h.NeedsTopUp()
	require.True(t, ok)
	require.EqualValues(t, 60, inc)

	require.NoError(t, h.ApplyTopUp(inc))
	_, ok = h.NeedsTopUp()
	require.False(t, ok)
}
