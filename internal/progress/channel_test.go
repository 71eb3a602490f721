package progress

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestEventsArriveInOrder(t *testing.T) {
	hub := NewHub()
	em, con, err := hub.Open("run-1")
	require.NoError(t, err)

	go func() {
		for _, stage := range []string{"Search", "Summarize", "Critique", "FactCheck", "Synthesize"} {
			em.Send(Event{Stage: stage, Status: StatusDone})
		}
		em.Send(Event{Stage: "Done", Status: StatusComplete})
		em.Close()
	}()

	var got []Event
	for ev := range con.Events(context.Background()) {
		got = append(got, ev)
	}
	require.Len(t, got, 6)
	for i, ev := range got {
		assert.Equal(t, i+1, ev.Seq)
		assert.Equal(t, "run-1", ev.RunID)
	}
	assert.True(t, got[5].Terminal())
	assert.Equal(t, 0, hub.OpenRuns())
}

func TestDrainReturnsFinalEvent(t *testing.T) {
	hub := NewHub()
	em, con, err := hub.Open("run-2")
	require.NoError(t, err)

	em.Send(Event{Stage: "Search", Status: StatusDone})
	em.Send(Event{Stage: "Synthesize", Status: StatusError, Message: "boom"})
	em.Close()

	final, err := con.Drain(context.Background())
	require.NoError(t, err)
	assert.Equal(t, StatusError, final.Status)
	assert.Equal(t, 2, final.Seq)
}

func TestDrainWithoutEvents(t *testing.T) {
	em, con, err := NewHub().Open("empty")
	require.NoError(t, err)
	em.Close()
	_, err = con.Drain(context.Background())
	assert.ErrorIs(t, err, ErrNoEvents)
}

func TestSendNeverBlocksWithoutReader(t *testing.T) {
	em, con, err := NewHub().Open("slow")
	require.NoError(t, err)

	for i := 0; i < 10000; i++ {
		require.True(t, em.Send(Event{Status: StatusThinking}))
	}
	em.Close()
	assert.False(t, em.Send(Event{Status: StatusThinking}), "send after close is a no-op")

	n := 0
	for {
		_, err := con.Next(context.Background())
		if errors.Is(err, io.EOF) {
			break
		}
		require.NoError(t, err)
		n++
	}
	assert.Equal(t, 10000, n)
}

func TestOpenRejectsDuplicateRun(t *testing.T) {
	hub := NewHub()
	em, _, err := hub.Open("dup")
	require.NoError(t, err)
	_, _, err = hub.Open("dup")
	assert.ErrorIs(t, err, ErrRunExists)

	em.Close()
	em.Close()
	_, _, err = hub.Open("dup")
	assert.NoError(t, err, "a closed run id can be reused")
}

func TestNextHonorsContext(t *testing.T) {
	em, con, err := NewHub().Open("ctx")
	require.NoError(t, err)
	defer em.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = con.Next(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestConcurrentRunsAreIsolated(t *testing.T) {
	hub := NewHub()
	var wg sync.WaitGroup
	for _, id := range []string{"a", "b", "c", "d"} {
		em, con, err := hub.Open(id)
		require.NoError(t, err)
		wg.Add(2)
		go func(id string) {
			defer wg.Done()
			for i := 0; i < 50; i++ {
				em.Send(Event{Stage: id, Status: StatusThinking})
			}
			em.Send(Event{Stage: id, Status: StatusComplete})
			em.Close()
		}(id)
		go func(id string) {
			defer wg.Done()
			n := 0
			for ev := range con.Events(context.Background()) {
				assert.Equal(t, id, ev.Stage)
				n++
			}
			assert.Equal(t, 51, n)
		}(id)
	}
	wg.Wait()
}
