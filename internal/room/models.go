package room

// Status is the lifecycle state of a room.
type Status string

const (
	StatusWaiting   Status = "waiting"
	StatusPlaying   Status = "playing"
	StatusFinished  Status = "finished"
	StatusCancelled Status = "cancelled"
)

// Room is the shared record all participants subscribe to. Everything a
// client needs to render the match is derived from this one document.
type Room struct {
	Code         string             `json:"code"`
	Status       Status             `json:"status"`
	CreatedAt    int64              `json:"createdAt"` // ms epoch, authoritative for expiry
	StartedAt    int64              `json:"startedAt,omitempty"`
	ConfigBoards int                `json:"configBoards"`
	MaxPlayers   int                `json:"maxPlayers"`
	IsPublic     bool               `json:"isPublic"`
	Speedrun     bool               `json:"speedrun"`
	Solutions    []string           `json:"solutions"`
	RoomName     string             `json:"roomName,omitempty"`
	Players      map[string]*Player `json:"players"`
}

// Player is one participant's state, nested under Room.Players. Guesses and
// Ready are written only by the owning player; everything host-scoped lives
// on the Room itself.
type Player struct {
	Name     string   `json:"name"`
	IsHost   bool     `json:"isHost"`
	Ready    bool     `json:"ready"`
	JoinedAt int64    `json:"joinedAt"`
	Guesses  []string `json:"guesses,omitempty"`
	TimeMs   *int64   `json:"timeMs,omitempty"` // set once when finishing all boards in speedrun
}

// Host returns the current host's id and record, or empty when absent.
func (r *Room) Host() (string, *Player) {
	for id, p := range r.Players {
		if p.IsHost {
			return id, p
		}
	}
	return "", nil
}

// Player returns the player record for id, or nil.
func (r *Room) Player(id string) *Player {
	return r.Players[id]
}

// validTransitions are the only reachable status edges: rematch is the single
// non-monotonic one, resetting a finished room back to waiting.
var validTransitions = map[Status][]Status{
	StatusWaiting:  {StatusPlaying, StatusCancelled},
	StatusPlaying:  {StatusFinished},
	StatusFinished: {StatusWaiting},
}

// CanTransition reports whether the edge from → to is part of the lifecycle.
func CanTransition(from, to Status) bool {
	for _, next := range validTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// RoomPath returns the store path of a room document.
func RoomPath(code string) string {
	return "rooms/" + code
}

// ChatPath returns the store path of a room's chat log.
func ChatPath(code string) string {
	return "rooms/" + code + "/chat"
}

// RoomsPrefix is the store prefix covering all room data.
const RoomsPrefix = "rooms/"
