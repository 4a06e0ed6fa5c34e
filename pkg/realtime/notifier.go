package realtime

import (
	"log"

	"github.com/samber/lo"
)

// Notifier is the single entry point REST handlers use to push events after
// a mutation has committed. Delivery is best-effort: an empty room or a
// framing failure is logged and never propagated, because the REST response
// has already succeeded.
type Notifier struct {
	registry *Registry
}

func NewNotifier(registry *Registry) *Notifier {
	return &Notifier{registry: registry}
}

// Emit delivers one event to one room.
func (n *Notifier) Emit(roomID, event string, payload any) {
	if err := n.registry.Broadcast(roomID, event, payload, nil); err != nil {
		log.Printf("Notify %s to room %s failed: %v", event, roomID, err)
	}
}

// FanOut emits once per member's identity room, skipping the acting user so
// actors never hear their own mutation. Callers pass the authoritative
// member list read back from the store after the commit.
func (n *Notifier) FanOut(memberIDs []string, actorID, event string, payload any) {
	for _, id := range lo.Uniq(memberIDs) {
		if id == actorID {
			continue
		}
		n.Emit(id, event, payload)
	}
}
