package provider

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestFileProviderLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "agent.yaml")
	writeFile(t, path, "model: gpt-4o\n")

	p, err := NewFileProvider(path)
	require.NoError(t, err)
	defer p.Close()

	data, err := p.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "model: gpt-4o\n", string(data))
}

func TestFileProviderWatchSignalsChange(t *testing.T) {
	path := filepath.Join(t.TempDir(), "agent.yaml")
	writeFile(t, path, "a: 1\n")

	p, err := NewFileProvider(path)
	require.NoError(t, err)
	defer p.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	changes, err := p.Watch(ctx)
	require.NoError(t, err)

	writeFile(t, path, "a: 2\n")

	select {
	case _, ok := <-changes:
		assert.True(t, ok)
	case <-time.After(3 * time.Second):
		t.Fatal("no change signal received")
	}

	// Cancelling the context shuts the channel down.
	cancel()
	assert.Eventually(t, func() bool {
		select {
		case _, ok := <-changes:
			return !ok
		default:
			return false
		}
	}, 3*time.Second, 10*time.Millisecond)
}

func TestWatchSignalAfterShutdown(t *testing.T) {
	sig := newWatchSignal()

	assert.True(t, sig.notify())
	<-sig.ch

	sig.shutdown()

	// Late notifications after shutdown are dropped instead of sent on the
	// closed channel.
	assert.False(t, sig.notify())
	sig.shutdown()

	_, ok := <-sig.ch
	assert.False(t, ok)
}

func TestWatchSignalCoalesces(t *testing.T) {
	sig := newWatchSignal()

	assert.True(t, sig.notify())
	assert.False(t, sig.notify())

	<-sig.ch
	assert.True(t, sig.notify())
}
