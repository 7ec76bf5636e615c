package kvstore

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestFSStore_Watch(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	dir := t.TempDir()
	watched, err := NewFSStore(dir)
	require.NoError(t, err)
	// A second handle on the same directory stands in for another process.
	writer, err := NewFSStore(dir)
	require.NoError(t, err)

	changes := make(chan Change, 16)
	require.NoError(t, watched.Watch(ctx, func(c Change) { changes <- c }, "clientState"))

	require.NoError(t, writer.Set(ctx, "clientInitId", "0.5"))
	require.NoError(t, writer.Set(ctx, "clientState", "2"))

	waitFor := func(want Change) {
		t.Helper()
		deadline := time.After(5 * time.Second)
		for {
			select {
			case c := <-changes:
				require.Equal(t, "clientState", c.Key, "unwatched keys are filtered")
				if c == want {
					return
				}
			case <-deadline:
				t.Fatalf("timed out waiting for %+v", want)
			}
		}
	}
	waitFor(Change{Key: "clientState", Value: "2", Present: true})

	require.NoError(t, writer.Remove(ctx, "clientState"))
	waitFor(Change{Key: "clientState"})
}
