package fetch

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mediahub/config"
	"mediahub/progress"
	"mediahub/storage"
	"mediahub/task"
)

func testConfig() *config.Config {
	return &config.Config{
		SampleInterval: 5 * time.Millisecond,
		UserAgent:      "mediahub-test",
	}
}

func newStore(t *testing.T) *storage.Store {
	t.Helper()

	store, err := storage.New(t.TempDir())
	require.NoError(t, err)
	return store
}

// runJob drives one job through a fresh registry and returns everything the
// subscriber saw.
func runJob(t *testing.T, drv task.Driver, job task.Job, taskID string) []progress.Event {
	t.Helper()

	registry := progress.NewRegistry()
	sub := registry.Subscribe(taskID)
	rep := registry.NewReporter(taskID)

	collected := make(chan []progress.Event, 1)
	go func() {
		var all []progress.Event
		for range sub.Ready() {
			events, open := sub.Drain()
			all = append(all, events...)
			if !open {
				break
			}
		}
		collected <- all
	}()

	drv.Run(context.Background(), job, rep)
	<-rep.Done()

	select {
	case all := <-collected:
		return all
	case <-time.After(5 * time.Second):
		t.Fatal("stream did not end")
		return nil
	}
}

func assertNonDecreasing(t *testing.T, events []progress.Event) {
	t.Helper()

	last := 0.0
	for _, ev := range events {
		assert.GreaterOrEqual(t, ev.Percent, last, "percent went backwards in %v", events)
		last = ev.Percent
	}
}

func slowHandler(payload []byte, chunks int, withLength bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if withLength {
			w.Header().Set("Content-Length", strconv.Itoa(len(payload)))
		}
		w.Header().Set("Content-Type", "video/mp4")
		w.WriteHeader(http.StatusOK)

		step := len(payload) / chunks
		for i := 0; i < len(payload); i += step {
			end := i + step
			if end > len(payload) {
				end = len(payload)
			}
			_, _ = w.Write(payload[i:end])
			if f, ok := w.(http.Flusher); ok {
				f.Flush()
			}
			time.Sleep(10 * time.Millisecond)
		}
	}
}

func TestDirect_Run(t *testing.T) {
	payload := bytes.Repeat([]byte("0123456789"), 4096)

	t.Run("known length reports progress and completes", func(t *testing.T) {
		srv := httptest.NewServer(slowHandler(payload, 8, true))
		defer srv.Close()

		store := newStore(t)
		drv := NewDirect(testConfig(), store)
		job := &task.URLJob{URL: srv.URL + "/video.mp4", Filename: "a.mp4", TaskID: "taskA"}

		events := runJob(t, drv, job, "taskA")
		require.GreaterOrEqual(t, len(events), 2)
		assert.Equal(t, progress.Connected(), events[0])
		assert.Equal(t, progress.Completed(), events[len(events)-1])
		for _, ev := range events[1 : len(events)-1] {
			assert.Equal(t, progress.StatusDownloading, ev.Status)
		}
		assertNonDecreasing(t, events)

		got, err := os.ReadFile(filepath.Join(store.Dir(), "a.mp4"))
		require.NoError(t, err)
		assert.Equal(t, payload, got)
	})

	t.Run("unknown length still completes", func(t *testing.T) {
		srv := httptest.NewServer(slowHandler(payload, 4, false))
		defer srv.Close()

		store := newStore(t)
		events := runJob(t, NewDirect(testConfig(), store),
			&task.URLJob{URL: srv.URL + "/v", Filename: "b.mp4", TaskID: "taskB"}, "taskB")

		assertNonDecreasing(t, events)
		assert.Equal(t, progress.Completed(), events[len(events)-1])
		assert.FileExists(t, filepath.Join(store.Dir(), "b.mp4"))
	})

	t.Run("http error ends with an error event", func(t *testing.T) {
		srv := httptest.NewServer(http.NotFoundHandler())
		defer srv.Close()

		events := runJob(t, NewDirect(testConfig(), newStore(t)),
			&task.URLJob{URL: srv.URL + "/missing.mp4", Filename: "c.mp4", TaskID: "taskC"}, "taskC")

		last := events[len(events)-1]
		assert.Equal(t, progress.StatusError, last.Status)
		assert.NotEmpty(t, last.Message)
	})

	t.Run("size limit rejects large inputs", func(t *testing.T) {
		srv := httptest.NewServer(slowHandler(payload, 1, true))
		defer srv.Close()

		cfg := testConfig()
		cfg.MaxInputSize = 1024
		events := runJob(t, NewDirect(cfg, newStore(t)),
			&task.URLJob{URL: srv.URL + "/big.mp4", Filename: "d.mp4", TaskID: "taskD"}, "taskD")

		last := events[len(events)-1]
		assert.Equal(t, progress.StatusError, last.Status)
		assert.Contains(t, last.Message, "exceeds limit")
	})

	t.Run("user agent is sent", func(t *testing.T) {
		agent := make(chan string, 1)
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			select {
			case agent <- r.UserAgent():
			default:
			}
			_, _ = w.Write([]byte("ok"))
		}))
		defer srv.Close()

		runJob(t, NewDirect(testConfig(), newStore(t)),
			&task.URLJob{URL: srv.URL + "/ua", Filename: "e.mp4", TaskID: "taskE"}, "taskE")
		assert.Equal(t, "mediahub-test", <-agent)
	})
}
