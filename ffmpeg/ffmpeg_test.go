package ffmpeg

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"mediahub/progress"
	"mediahub/storage"
)

// writeScript installs a fake engine binary.
func writeScript(t *testing.T, name, body string) string {
	t.Helper()

	if runtime.GOOS == "windows" {
		t.Skip("fake engine binaries are shell scripts")
	}
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\n"+body), 0o755))
	return path
}

func newStore(t *testing.T, files ...string) *storage.Store {
	t.Helper()

	store, err := storage.New(t.TempDir())
	require.NoError(t, err)
	for _, f := range files {
		require.NoError(t, os.WriteFile(filepath.Join(store.Dir(), f), []byte("media"), 0o644))
	}
	return store
}

// collect runs fn with a reporter for id and returns the subscriber's view.
func collect(t *testing.T, id string, fn func(rep *progress.Reporter)) []progress.Event {
	t.Helper()

	registry := progress.NewRegistry()
	sub := registry.Subscribe(id)
	rep := registry.NewReporter(id)

	done := make(chan []progress.Event, 1)
	go func() {
		var all []progress.Event
		for range sub.Ready() {
			events, open := sub.Drain()
			all = append(all, events...)
			if !open {
				break
			}
		}
		done <- all
	}()

	fn(rep)
	<-rep.Done()

	select {
	case all := <-done:
		return all
	case <-time.After(5 * time.Second):
		t.Fatal("stream did not end")
		return nil
	}
}

const probeJSON = `{
  "streams": [
    {"codec_name": "h264", "codec_type": "video", "width": 1920, "height": 1080},
    {"codec_name": "aac", "codec_type": "audio", "channels": 2},
    {"codec_name": "subrip", "codec_type": "subtitle", "tags": {"language": "eng"}},
    {"codec_name": "ass", "codec_type": "subtitle"}
  ],
  "format": {"format_name": "matroska,webm", "duration": "10.000000", "bit_rate": "1500000"}
}`

func fakeProbe(t *testing.T) string {
	t.Helper()
	return writeScript(t, "ffprobe", "cat <<'EOF'\n"+probeJSON+"\nEOF\n")
}
