package detector

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestNotifier_WakesOnWrite(t *testing.T) {
	dir := t.TempDir()
	n, err := NewNotifier(dir, Options{}, nil)
	require.NoError(t, err)
	defer func() { _ = n.Close() }()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go n.Run(ctx)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "x.txt"), []byte("x"), 0o644))
	select {
	case <-n.Wake():
	case <-time.After(3 * time.Second):
		t.Fatal("no wake-up after write")
	}
}

func TestNotifier_RecursiveWatchesNewSubdirs(t *testing.T) {
	dir := t.TempDir()
	n, err := NewNotifier(dir, Options{Recursive: true}, nil)
	require.NoError(t, err)
	defer func() { _ = n.Close() }()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go n.Run(ctx)

	sub := filepath.Join(dir, "sub")
	require.NoError(t, os.Mkdir(sub, 0o755))
	drain := func() bool {
		select {
		case <-n.Wake():
			return true
		case <-time.After(3 * time.Second):
			return false
		}
	}
	require.True(t, drain(), "no wake-up for mkdir")
	// Give Run a moment to register the new directory.
	time.Sleep(100 * time.Millisecond)
	for len(n.Wake()) > 0 {
		<-n.Wake()
	}

	require.NoError(t, os.WriteFile(filepath.Join(sub, "deep.txt"), []byte("x"), 0o644))
	require.True(t, drain(), "no wake-up for nested write")
}

func TestNewNotifier_MissingDir(t *testing.T) {
	_, err := NewNotifier(filepath.Join(t.TempDir(), "nope"), Options{}, nil)
	require.Error(t, err)
}
