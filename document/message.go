package document

// Wire message types exchanged between clients and the relay. A client sends
// join, leave and push; the relay answers with deliver (a full snapshot) and
// roomUsers (current member count).
const (
	TypeJoin      = "join"
	TypeLeave     = "leave"
	TypePush      = "push"
	TypeDeliver   = "deliver"
	TypeRoomUsers = "roomUsers"
)

// Message is the JSON envelope for every websocket frame. Origin is only set
// on the relay-to-relay fanout channel so an instance can skip snapshots it
// published itself.
type Message struct {
	Type     string   `json:"type"`
	Room     string   `json:"room,omitempty"`
	Elements Snapshot `json:"elements,omitempty"`
	Count    int      `json:"count,omitempty"`
	Origin   string   `json:"origin,omitempty"`
}
