package session

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/mahaj/baithak/pkg/model"
	"github.com/mahaj/baithak/pkg/realtime"
)

type recordedEvent struct {
	event   string
	payload any
}

type fakeEmitter struct {
	mu     sync.Mutex
	events []recordedEvent
}

func (e *fakeEmitter) Emit(event string, payload any) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.events = append(e.events, recordedEvent{event: event, payload: payload})
	return nil
}

func (e *fakeEmitter) recorded() []recordedEvent {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]recordedEvent, len(e.events))
	copy(out, e.events)
	return out
}

func (e *fakeEmitter) count(event string) int {
	n := 0
	for _, ev := range e.recorded() {
		if ev.event == event {
			n++
		}
	}
	return n
}

func TestLifecycleTransitions(t *testing.T) {
	req := require.New(t)
	s := New(&fakeEmitter{}, 0)

	req.Equal(StateDisconnected, s.State())
	s.Connecting()
	req.Equal(StateConnecting, s.State())
	s.HandleConnected()
	req.Equal(StateConnected, s.State())
	s.HandleDisconnected()
	req.Equal(StateDisconnected, s.State())
}

func TestOpenChatJoinsOnce(t *testing.T) {
	req := require.New(t)
	em := &fakeEmitter{}
	s := New(em, 0)
	s.HandleConnected()

	req.NoError(s.OpenChat("c1"))
	req.NoError(s.OpenChat("c2"))
	req.NoError(s.OpenChat("c1")) // switching back, already joined

	req.Equal("c1", s.ActiveChat())

	// One joinChat per distinct chat; switching back emits nothing.
	req.Equal(2, em.count(realtime.EventJoinChat))
	events := em.recorded()
	req.Len(events, 2)
	req.Equal("c1", events[0].payload)
	req.Equal("c2", events[1].payload)
}

func TestTypingDebounceEmitsOneStopTyping(t *testing.T) {
	req := require.New(t)
	em := &fakeEmitter{}
	s := New(em, 40*time.Millisecond)
	s.HandleConnected()
	req.NoError(s.OpenChat("c1"))

	// A burst of keystrokes: one typing, timer re-armed each time.
	for i := 0; i < 5; i++ {
		req.NoError(s.InputChanged())
		time.Sleep(10 * time.Millisecond)
	}
	req.True(s.SelfTyping())
	req.Equal(1, em.count(realtime.EventTyping))
	req.Equal(0, em.count(realtime.EventStopTyping))

	// Let the debounce expire.
	req.Eventually(func() bool {
		return em.count(realtime.EventStopTyping) == 1 && !s.SelfTyping()
	}, time.Second, 5*time.Millisecond)

	// No further stopTyping after the slot cleared.
	time.Sleep(80 * time.Millisecond)
	req.Equal(1, em.count(realtime.EventStopTyping))
}

func TestTypingRestartsAfterExpiry(t *testing.T) {
	req := require.New(t)
	em := &fakeEmitter{}
	s := New(em, 20*time.Millisecond)
	s.HandleConnected()
	req.NoError(s.OpenChat("c1"))

	req.NoError(s.InputChanged())
	req.Eventually(func() bool { return !s.SelfTyping() }, time.Second, 5*time.Millisecond)

	req.NoError(s.InputChanged())
	req.Equal(2, em.count(realtime.EventTyping))
}

func TestComposerSentRetractsTypingImmediately(t *testing.T) {
	req := require.New(t)
	em := &fakeEmitter{}
	s := New(em, time.Hour) // would never expire on its own
	s.HandleConnected()
	req.NoError(s.OpenChat("c1"))

	req.NoError(s.InputChanged())
	req.True(s.SelfTyping())

	s.ComposerSent()
	req.False(s.SelfTyping())
	req.Eventually(func() bool {
		return em.count(realtime.EventStopTyping) == 1
	}, time.Second, 5*time.Millisecond)
}

func TestUnreadTracksInactiveChatsOnly(t *testing.T) {
	req := require.New(t)
	s := New(&fakeEmitter{}, 0)
	s.HandleConnected()
	req.NoError(s.OpenChat("c1"))

	s.HandleMessageReceived(model.Message{ID: 1, ChatID: "c1", Content: "visible"})
	s.HandleMessageReceived(model.Message{ID: 2, ChatID: "c2", Content: "pending"})
	s.HandleMessageReceived(model.Message{ID: 3, ChatID: "c2", Content: "pending too"})

	req.Len(s.Transcript("c1"), 1)
	req.Equal(0, s.Unread("c1"))
	req.Equal(2, s.Unread("c2"))
	req.Empty(s.Transcript("c2"))

	// Opening the chat clears its unread marker.
	req.NoError(s.OpenChat("c2"))
	req.Equal(0, s.Unread("c2"))
}

func TestPeerTypingIndicator(t *testing.T) {
	req := require.New(t)
	s := New(&fakeEmitter{}, 0)

	s.HandleTyping("c1")
	req.True(s.PeerTyping("c1"))
	req.False(s.PeerTyping("c2"))

	s.HandleStopTyping("c1")
	req.False(s.PeerTyping("c1"))
}

func TestDisconnectClearsTypingAndRooms(t *testing.T) {
	req := require.New(t)
	em := &fakeEmitter{}
	s := New(em, time.Hour)
	s.HandleConnected()
	req.NoError(s.OpenChat("c1"))
	req.NoError(s.InputChanged())

	s.HandleDisconnected()
	req.False(s.SelfTyping())
	// No stopTyping on a dead transport.
	req.Equal(0, em.count(realtime.EventStopTyping))

	// Re-opening after reconnect joins again.
	s.HandleConnected()
	req.NoError(s.OpenChat("c1"))
	req.Equal(2, em.count(realtime.EventJoinChat))
}
