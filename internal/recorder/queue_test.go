package recorder

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/guidesnap/guidesnap/internal/guide"
)

func submissionFor(url string) submission {
	return submission{
		event:  guide.UserEvent{EventType: guide.EventClick, PageURL: url},
		source: "tab-1",
	}
}

func TestEventQueue_EnqueueDequeue(t *testing.T) {
	q := newEventQueue()

	ok := q.Enqueue(submissionFor("https://example.com/a"))
	require.True(t, ok, "enqueue should succeed")

	got, ok := q.TryDequeue()
	require.True(t, ok, "dequeue should succeed")
	assert.Equal(t, "https://example.com/a", got.event.PageURL)
	assert.Equal(t, "tab-1", got.source)
}

func TestEventQueue_FIFO(t *testing.T) {
	q := newEventQueue()

	for _, url := range []string{"a", "b", "c"} {
		q.Enqueue(submissionFor(url))
	}

	for _, want := range []string{"a", "b", "c"} {
		got, ok := q.TryDequeue()
		require.True(t, ok)
		assert.Equal(t, want, got.event.PageURL)
	}
}

func TestEventQueue_TryDequeue_Empty(t *testing.T) {
	q := newEventQueue()

	_, ok := q.TryDequeue()
	assert.False(t, ok, "dequeue from empty queue should return false")
}

func TestEventQueue_Enqueue_AfterClose(t *testing.T) {
	q := newEventQueue()
	q.Close()

	ok := q.Enqueue(submissionFor("late"))
	assert.False(t, ok, "enqueue after close should fail")
}

func TestEventQueue_Close_Idempotent(t *testing.T) {
	q := newEventQueue()
	q.Close()
	q.Close()
	assert.True(t, q.Closed())
}

func TestEventQueue_Wait_SignalsOnEnqueue(t *testing.T) {
	q := newEventQueue()

	q.Enqueue(submissionFor("wake"))

	select {
	case <-q.Wait():
	default:
		t.Fatal("expected signal after enqueue")
	}
}

func TestEventQueue_CoalescedSignalOutlivesItem(t *testing.T) {
	q := newEventQueue()

	q.Enqueue(submissionFor("drained-first"))
	_, ok := q.TryDequeue()
	require.True(t, ok)

	// The buffered signal still fires even though the item is gone; an
	// open queue must not be mistaken for a closed one.
	select {
	case <-q.Wait():
	default:
		t.Fatal("expected the coalesced signal to remain buffered")
	}
	assert.False(t, q.Closed())
	assert.Zero(t, q.Len())
}

func TestEventQueue_Wait_ClosedChannelFires(t *testing.T) {
	q := newEventQueue()
	q.Close()

	select {
	case <-q.Wait():
	default:
		t.Fatal("closed queue should fire the wait channel")
	}
}

func TestEventQueue_ConcurrentEnqueue(t *testing.T) {
	q := newEventQueue()

	const producers = 8
	const perProducer = 50

	var wg sync.WaitGroup
	for p := 0; p < producers; p++ {
		wg.Add(1)
		go func(p int) {
			defer wg.Done()
			for i := 0; i < perProducer; i++ {
				q.Enqueue(submissionFor(fmt.Sprintf("p%d-%d", p, i)))
			}
		}(p)
	}
	wg.Wait()

	assert.Equal(t, producers*perProducer, q.Len())
}
