//go:build unix

package cli

import (
	"context"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSignalContext(t *testing.T) {
	t.Run("Cancelled By Signal", func(t *testing.T) {
		sc := NewSignalContext(context.Background(), syscall.SIGUSR1)
		defer sc.Cancel()

		require.NoError(t, syscall.Kill(syscall.Getpid(), syscall.SIGUSR1))

		select {
		case <-sc.Done():
		case <-time.After(2 * time.Second):
			t.Fatal("context was not cancelled by the signal")
		}
		assert.Eventually(t, func() bool { return sc.Signal() == syscall.SIGUSR1 }, time.Second, 5*time.Millisecond)
	})

	t.Run("Parent Cancel Leaves No Signal", func(t *testing.T) {
		parent, cancel := context.WithCancel(context.Background())
		sc := NewSignalContext(parent, syscall.SIGUSR2)
		cancel()

		<-sc.Done()
		assert.Nil(t, sc.Signal())
		assert.ErrorIs(t, sc.Err(), context.Canceled)
	})
}
