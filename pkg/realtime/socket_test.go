package realtime

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"

	"github.com/mahaj/baithak/pkg/auth"
	"github.com/mahaj/baithak/pkg/model"
)

type fakePresence struct {
	mu           sync.Mutex
	connected    []string
	disconnected []string
}

func (p *fakePresence) Connected(_ context.Context, userID string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.connected = append(p.connected, userID)
	return nil
}

func (p *fakePresence) Disconnected(_ context.Context, userID string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.disconnected = append(p.disconnected, userID)
	return nil
}

func newTestSocketServer(presence PresenceTracker) (*SocketServer, *auth.Issuer) {
	issuer := auth.NewIssuer("secret", time.Hour)
	users := &fakeUsers{users: map[string]model.Identity{
		"u1": {ID: "u1", Username: "asha"},
		"u2": {ID: "u2", Username: "badal"},
	}}
	return NewSocketServer(NewRegistry(), NewResolver(issuer, users), presence), issuer
}

func TestAdmitJoinsIdentityRoomAndEmitsConnected(t *testing.T) {
	req := require.New(t)
	presence := &fakePresence{}
	srv, _ := newTestSocketServer(presence)

	c := newTestClient()
	c.setIdentity(&model.Identity{ID: "u1"})
	srv.admit(c, "u1")

	req.True(srv.Registry().InRoom(c, "u1"))

	env := nextFrame(t, c)
	req.Equal(EventConnected, env.Event)
	req.Equal([]string{"u1"}, presence.connected)
}

func TestJoinChatHandlerIsIdempotent(t *testing.T) {
	req := require.New(t)
	srv, _ := newTestSocketServer(nil)

	c := newTestClient()
	srv.admit(c, "u1")
	nextFrame(t, c) // connected

	join := c.handler(EventJoinChat)
	req.NotNil(join)

	join([]byte(`"c1"`))
	join([]byte(`"c1"`))

	req.True(srv.Registry().InRoom(c, "c1"))
	req.Equal(1, srv.Registry().RoomSize("c1"))
}

func TestTypingRelayExcludesSender(t *testing.T) {
	req := require.New(t)
	srv, _ := newTestSocketServer(nil)

	sender := newTestClient()
	viewer := newTestClient()
	srv.admit(sender, "u1")
	srv.admit(viewer, "u2")
	nextFrame(t, sender) // connected
	nextFrame(t, viewer) // connected

	viewer.handler(EventJoinChat)([]byte(`"c1"`))
	sender.handler(EventJoinChat)([]byte(`"c1"`))

	sender.handler(EventTyping)([]byte(`"c1"`))

	env := nextFrame(t, viewer)
	req.Equal(EventTyping, env.Event)
	req.Equal("c1", payloadString(t, env))
	noFrame(t, sender)

	sender.handler(EventStopTyping)([]byte(`"c1"`))
	env = nextFrame(t, viewer)
	req.Equal(EventStopTyping, env.Event)
	noFrame(t, sender)
}

func TestCloseReleasesRoomsAndPresence(t *testing.T) {
	req := require.New(t)
	presence := &fakePresence{}
	srv, _ := newTestSocketServer(presence)

	c := newTestClient()
	srv.admit(c, "u1")
	c.handler(EventJoinChat)([]byte(`"c1"`))

	c.Close()

	req.False(srv.Registry().InRoom(c, "u1"))
	req.False(srv.Registry().InRoom(c, "c1"))
	req.Equal([]string{"u1"}, presence.disconnected)

	// Later broadcasts never reach the dropped connection.
	srv.Registry().Broadcast("u1", "ping", nil, nil)
	srv.Registry().Broadcast("c1", "ping", nil, nil)
}

func TestHandshakeWithValidToken(t *testing.T) {
	req := require.New(t)
	srv, issuer := newTestSocketServer(nil)

	ts := httptest.NewServer(srv)
	defer ts.Close()

	token, err := issuer.GenerateToken("u1")
	req.NoError(err)

	url := "ws" + strings.TrimPrefix(ts.URL, "http")
	header := http.Header{}
	header.Set("Cookie", "accessToken="+token)

	conn, _, err := websocket.DefaultDialer.Dial(url, header)
	req.NoError(err)
	defer conn.Close()

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	req.NoError(err)

	env, err := DecodeEnvelope(data)
	req.NoError(err)
	req.Equal(EventConnected, env.Event)

	req.Eventually(func() bool {
		return srv.Registry().RoomSize("u1") == 1
	}, 2*time.Second, 10*time.Millisecond)
}

func TestHandshakeWithExpiredToken(t *testing.T) {
	req := require.New(t)
	srv, _ := newTestSocketServer(nil)

	ts := httptest.NewServer(srv)
	defer ts.Close()

	expired := auth.NewIssuer("secret", -time.Minute)
	token, err := expired.GenerateToken("u1")
	req.NoError(err)

	url := "ws" + strings.TrimPrefix(ts.URL, "http")
	header := http.Header{}
	header.Set("Cookie", "accessToken="+token)

	conn, _, err := websocket.DefaultDialer.Dial(url, header)
	req.NoError(err)
	defer conn.Close()

	// Exactly one socket_error, then the transport closes.
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	req.NoError(err)

	env, err := DecodeEnvelope(data)
	req.NoError(err)
	req.Equal(EventSocketError, env.Event)

	_, _, err = conn.ReadMessage()
	req.Error(err)

	// The rejected connection was never admitted to its identity room.
	req.Equal(0, srv.Registry().RoomSize("u1"))
}
