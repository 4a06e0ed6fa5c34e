package realtime

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/mahaj/baithak/pkg/model"
)

func TestFanOutSkipsActor(t *testing.T) {
	req := require.New(t)
	reg := NewRegistry()
	notifier := NewNotifier(reg)

	u1 := newTestClient()
	u2 := newTestClient()
	u3 := newTestClient()
	reg.Join(u1, "u1")
	reg.Join(u2, "u2")
	reg.Join(u3, "u3")

	notifier.FanOut([]string{"u1", "u2", "u3"}, "u1", EventNewChat, "c1")

	noFrame(t, u1)
	for _, c := range []*Client{u2, u3} {
		env := nextFrame(t, c)
		req.Equal(EventNewChat, env.Event)
	}
}

func TestFanOutDeduplicatesMembers(t *testing.T) {
	reg := NewRegistry()
	notifier := NewNotifier(reg)

	u2 := newTestClient()
	reg.Join(u2, "u2")

	notifier.FanOut([]string{"u2", "u2", "u2"}, "u1", EventLeaveChat, "c1")

	nextFrame(t, u2)
	noFrame(t, u2)
}

func TestMessageFanOutScenario(t *testing.T) {
	// U1 and U2 share chat C1. U1 sends "hi": the event reaches U2's
	// identity room and C1's chat room, and never echoes back to U1.
	req := require.New(t)
	reg := NewRegistry()
	notifier := NewNotifier(reg)

	u1 := newTestClient()
	u2 := newTestClient()
	reg.Join(u1, "u1")
	reg.Join(u2, "u2")
	reg.Join(u1, "c1")
	reg.Join(u2, "c1")

	msg := model.Message{ID: 42, ChatID: "c1", SenderID: "u1", Content: "hi"}
	notifier.FanOut([]string{"u1", "u2"}, "u1", EventMessageReceived, msg)

	env := nextFrame(t, u2)
	req.Equal(EventMessageReceived, env.Event)

	var got model.Message
	req.NoError(json.Unmarshal(env.Payload, &got))
	req.Equal("hi", got.Content)
	req.Equal("c1", got.ChatID)

	noFrame(t, u1)
}

func TestGroupRenameReachesEveryMember(t *testing.T) {
	// updateGroupName goes to every member's identity room including the
	// actor's, and including members not joined to the chat room.
	req := require.New(t)
	reg := NewRegistry()
	notifier := NewNotifier(reg)

	admin := newTestClient()
	member := newTestClient()
	offChat := newTestClient()
	reg.Join(admin, "u1")
	reg.Join(member, "u2")
	reg.Join(offChat, "u3")
	reg.Join(admin, "c1")
	reg.Join(member, "c1")
	// u3 never joined c1's room.

	summary := model.ChatSummary{ID: "c1", Name: "renamed"}
	for _, memberID := range []string{"u1", "u2", "u3"} {
		notifier.Emit(memberID, EventUpdateGroupName, summary)
	}

	for _, c := range []*Client{admin, member, offChat} {
		env := nextFrame(t, c)
		req.Equal(EventUpdateGroupName, env.Event)

		var got model.ChatSummary
		req.NoError(json.Unmarshal(env.Payload, &got))
		req.Equal("renamed", got.Name)
		noFrame(t, c) // exactly one per member
	}
}

func TestEmitToEmptyRoomDoesNotPanic(t *testing.T) {
	notifier := NewNotifier(NewRegistry())
	notifier.Emit("nobody", EventNewChat, "c1")
}
