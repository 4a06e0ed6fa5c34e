// Package session implements the client-side view of one chat connection:
// connection state, joined and active chats, the debounced self-typing
// indicator and unread tracking.
package session

import (
	"sync"
	"time"

	"github.com/mahaj/baithak/pkg/model"
	"github.com/mahaj/baithak/pkg/realtime"
)

// State is the connection lifecycle of the session.
type State string

const (
	StateDisconnected State = "disconnected"
	StateConnecting   State = "connecting"
	StateConnected    State = "connected"
)

// DefaultTypingDebounce is how long after the last keystroke the typing
// indicator is retracted.
const DefaultTypingDebounce = 3 * time.Second

// Emitter sends a protocol event to the server.
type Emitter interface {
	Emit(event string, payload any) error
}

// Session is the per-client state machine. All methods are safe for
// concurrent use; event handlers and UI input feed it from different
// goroutines.
type Session struct {
	emitter  Emitter
	debounce time.Duration

	mu         sync.Mutex
	state      State
	activeChat string
	joined     map[string]bool
	unread     map[string]int
	transcript map[string][]model.Message
	peerTyping map[string]bool

	selfTyping  bool
	typingTimer *time.Timer
}

func New(emitter Emitter, debounce time.Duration) *Session {
	if debounce <= 0 {
		debounce = DefaultTypingDebounce
	}
	return &Session{
		emitter:    emitter,
		debounce:   debounce,
		state:      StateDisconnected,
		joined:     make(map[string]bool),
		unread:     make(map[string]int),
		transcript: make(map[string][]model.Message),
		peerTyping: make(map[string]bool),
	}
}

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Session) ActiveChat() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.activeChat
}

// Connecting marks the transport dial in progress.
func (s *Session) Connecting() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = StateConnecting
}

// HandleConnected is wired to the server's connected event.
func (s *Session) HandleConnected() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = StateConnected
}

// HandleDisconnected resets the session on transport loss. Joined rooms are
// forgotten; a reconnect re-joins explicitly.
func (s *Session) HandleDisconnected() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = StateDisconnected
	s.joined = make(map[string]bool)
	s.peerTyping = make(map[string]bool)
	s.stopTypingLocked(false)
}

// OpenChat makes the chat the active one for rendering and unread
// suppression, joining its room if this session has not joined it yet.
// Previously opened chats stay joined.
func (s *Session) OpenChat(chatID string) error {
	s.mu.Lock()
	alreadyJoined := s.joined[chatID]
	s.joined[chatID] = true
	s.activeChat = chatID
	s.unread[chatID] = 0
	s.mu.Unlock()

	if alreadyJoined {
		return nil
	}
	return s.emitter.Emit(realtime.EventJoinChat, chatID)
}

// InputChanged reports a keystroke in the active chat's composer. The first
// keystroke emits typing; each one re-arms the single-slot debounce timer;
// expiry emits exactly one stopTyping.
func (s *Session) InputChanged() error {
	s.mu.Lock()
	chatID := s.activeChat
	if chatID == "" {
		s.mu.Unlock()
		return nil
	}

	emitTyping := !s.selfTyping
	s.selfTyping = true

	if s.typingTimer != nil {
		s.typingTimer.Stop()
	}
	s.typingTimer = time.AfterFunc(s.debounce, func() {
		s.typingExpired(chatID)
	})
	s.mu.Unlock()

	if emitTyping {
		return s.emitter.Emit(realtime.EventTyping, chatID)
	}
	return nil
}

func (s *Session) typingExpired(chatID string) {
	s.mu.Lock()
	if !s.selfTyping {
		s.mu.Unlock()
		return
	}
	s.selfTyping = false
	s.typingTimer = nil
	s.mu.Unlock()

	s.emitter.Emit(realtime.EventStopTyping, chatID)
}

// ComposerSent reports that the composer content was sent; the typing
// indicator retracts immediately instead of waiting out the debounce.
func (s *Session) ComposerSent() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopTypingLocked(true)
}

func (s *Session) stopTypingLocked(emit bool) {
	if s.typingTimer != nil {
		s.typingTimer.Stop()
		s.typingTimer = nil
	}
	if !s.selfTyping {
		return
	}
	s.selfTyping = false
	if emit && s.activeChat != "" {
		chatID := s.activeChat
		go s.emitter.Emit(realtime.EventStopTyping, chatID)
	}
}

// HandleMessageReceived routes an incoming message: into the transcript when
// its chat is the active one, otherwise into that chat's unread counter.
func (s *Session) HandleMessageReceived(msg model.Message) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if msg.ChatID == s.activeChat {
		s.transcript[msg.ChatID] = append(s.transcript[msg.ChatID], msg)
		return
	}
	s.unread[msg.ChatID]++
}

// HandleTyping and HandleStopTyping track the peer-typing indicator per
// chat.
func (s *Session) HandleTyping(chatID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.peerTyping[chatID] = true
}

func (s *Session) HandleStopTyping(chatID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.peerTyping, chatID)
}

func (s *Session) PeerTyping(chatID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.peerTyping[chatID]
}

// Unread returns the pending-message count for a chat.
func (s *Session) Unread(chatID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.unread[chatID]
}

// Transcript returns the received messages of a chat, in delivery order.
func (s *Session) Transcript(chatID string) []model.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.Message, len(s.transcript[chatID]))
	copy(out, s.transcript[chatID])
	return out
}

// SelfTyping reports whether the debounce timer is currently armed.
func (s *Session) SelfTyping() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.selfTyping
}
