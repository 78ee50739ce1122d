package callstate

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewStoreDefaults(t *testing.T) {
	assert.Equal(t, Status{State: Idle}, New().Snapshot())
}

func TestSubscribeDeliversCurrentThenLatest(t *testing.T) {
	store := New()
	ch, unsubscribe := store.Subscribe()
	defer unsubscribe()

	assert.Equal(t, Status{State: Idle}, <-ch)

	store.SetState(Connecting)
	store.Set(Connected, true)
	store.SetError("boom")

	// Slow reader only sees the newest value.
	assert.Equal(t, Status{State: Connected, Speaking: true, Error: "boom"}, <-ch)
	select {
	case st := <-ch:
		t.Fatalf("unexpected extra status %+v", st)
	default:
	}
}

func TestUnchangedUpdateDoesNotNotify(t *testing.T) {
	store := New()
	ch, unsubscribe := store.Subscribe()
	defer unsubscribe()
	<-ch

	store.SetSpeaking(false)
	select {
	case st := <-ch:
		t.Fatalf("unexpected status %+v", st)
	default:
	}
}

func TestUnsubscribeClosesChannel(t *testing.T) {
	store := New()
	ch, unsubscribe := store.Subscribe()
	<-ch

	unsubscribe()
	unsubscribe()

	_, ok := <-ch
	require.False(t, ok)

	store.SetState(Ended)
	assert.Equal(t, Ended, store.Snapshot().State)
}

func TestActive(t *testing.T) {
	assert.False(t, Idle.Active())
	assert.True(t, Connecting.Active())
	assert.True(t, Connected.Active())
	assert.False(t, Ended.Active())
}
