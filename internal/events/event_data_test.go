package events

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSubscribeReceivesPublishedEvent(t *testing.T) {
	b := NewBus()
	received := make(chan *Event, 1)
	b.Subscribe(GapDetected, func(e *Event) { received <- e })

	b.EmitTyped(GapDetected, "gaps", map[string]interface{}{"instrument_id": "SSE:600000"})

	select {
	case e := <-received:
		assert.Equal(t, GapDetected, e.Type)
		assert.Equal(t, "gaps", e.Module)
		assert.Equal(t, "SSE:600000", e.Data["instrument_id"])
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event")
	}
}

func TestEmitMarshalsStructPayloadToMap(t *testing.T) {
	b := NewBus()
	received := make(chan *Event, 1)
	b.Subscribe(JobProgress, func(e *Event) { received <- e })

	type progress struct {
		Current int `json:"current"`
		Total   int `json:"total"`
	}
	b.Emit(string(JobProgress), progress{Current: 3, Total: 10})

	e := <-received
	assert.Equal(t, float64(3), e.Data["current"])
	assert.Equal(t, float64(10), e.Data["total"])
}

func TestSubscribersOnlyReceiveTheirEventType(t *testing.T) {
	b := NewBus()
	gapCh := make(chan *Event, 1)
	jobCh := make(chan *Event, 1)
	b.Subscribe(GapDetected, func(e *Event) { gapCh <- e })
	b.Subscribe(JobStarted, func(e *Event) { jobCh <- e })

	b.EmitTyped(GapDetected, "gaps", nil)

	select {
	case <-gapCh:
	case <-time.After(time.Second):
		t.Fatal("expected GapDetected subscriber to fire")
	}
	select {
	case <-jobCh:
		t.Fatal("JobStarted subscriber should not have fired")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestEmitWithNilDataProducesNilMap(t *testing.T) {
	b := NewBus()
	received := make(chan *Event, 1)
	b.Subscribe(JobFailed, func(e *Event) { received <- e })

	b.Emit(string(JobFailed), nil)

	e := <-received
	require.Nil(t, e.Data)
}
