package reset

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestHandshake_InitialStateIsNotRequested(t *testing.T) {
	h := New()
	require.Equal(t, NotRequested, h.State())
}

func TestHandshake_RequestThenAcknowledge(t *testing.T) {
	h := New()
	h.Request()
	require.Equal(t, Requested, h.State())

	h.Acknowledge()
	require.Equal(t, Acknowledged, h.State())

	h.Clear()
	require.Equal(t, NotRequested, h.State())
}

func TestHandshake_WaitUnblocksOnAcknowledge(t *testing.T) {
	h := New()
	h.Request()

	var wg sync.WaitGroup
	wg.Add(1)
	done := make(chan struct{})
	go func() {
		defer wg.Done()
		h.Wait()
		close(done)
	}()

	time.Sleep(10 * time.Millisecond)
	select {
	case <-done:
		t.Fatal("Wait returned before Acknowledge")
	default:
	}

	h.Acknowledge()
	wg.Wait()

	select {
	case <-done:
	default:
		t.Fatal("Wait did not unblock after Acknowledge")
	}
}

func TestHandshake_SpinReturnsOnceAcknowledged(t *testing.T) {
	h := New()
	h.Request()

	go func() {
		time.Sleep(5 * time.Millisecond)
		h.Acknowledge()
	}()

	start := time.Now()
	h.Spin(2 * time.Millisecond)
	require.True(t, h.State() == Acknowledged)
	require.Less(t, time.Since(start), time.Second)
}
