package notify

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type failingSink struct{}

func (failingSink) Send(Event) error { return errors.New("unreachable") }

// blockingSink holds delivery until release is closed.
type blockingSink struct {
	release chan struct{}
	rec     Recorder
}

func (b *blockingSink) Send(ev Event) error {
	<-b.release
	return b.rec.Send(ev)
}

func TestDispatcherDeliversInOrder(t *testing.T) {
	rec := &Recorder{}
	d := NewDispatcher(8, failingSink{}, rec)

	d.Notify(Event{Kind: KindInfo, Title: "start"})
	d.Notify(Event{Kind: KindSuccess, Title: "done"})
	d.Close()

	events := rec.Events()
	require.Len(t, events, 2)
	assert.Equal(t, "start", events[0].Title)
	assert.Equal(t, KindSuccess, events[1].Kind)
}

func TestDispatcherNeverBlocks(t *testing.T) {
	sink := &blockingSink{release: make(chan struct{})}
	d := NewDispatcher(1, sink)

	finished := make(chan struct{})
	go func() {
		for range 10 {
			d.Notify(Event{Kind: KindInfo, Title: "tick"})
		}
		close(finished)
	}()

	select {
	case <-finished:
	case <-time.After(time.Second):
		t.Fatal("Notify blocked on a slow sink")
	}

	close(sink.release)
	d.Close()
	assert.NotEmpty(t, sink.rec.Events())
	assert.Less(t, len(sink.rec.Events()), 10)
}

func TestDispatcherIgnoresAfterClose(t *testing.T) {
	rec := &Recorder{}
	d := NewDispatcher(1, rec)
	d.Close()
	d.Close()

	assert.NotPanics(t, func() { d.Notify(Event{Title: "late"}) })
	assert.Empty(t, rec.Events())
}

func TestLogSinkAcceptsAllKinds(t *testing.T) {
	for _, k := range []Kind{KindInfo, KindSuccess, KindError} {
		assert.NoError(t, LogSink{}.Send(Event{Kind: k, Title: "t", Message: "m"}))
	}
}
