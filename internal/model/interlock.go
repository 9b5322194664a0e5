package model

// InterlockState is the last state the hardware reported (or was
// commanded into).  Unknown means the device could not be reached or
// replied with something unexpected; the state is never guessed.
type InterlockState int

const (
	StateUnknown  InterlockState = -1
	StateUnlocked InterlockState = 1
	StateLocked   InterlockState = 2
)

// String renders the state for diagnostics and JSON responses.
func (s InterlockState) String() string {
	switch s {
	case StateUnlocked:
		return "unlocked"
	case StateLocked:
		return "locked"
	}
	return "unknown"
}

// InterlockCard is a physical interlock controller that multiplexes
// several relay channels.  The category key selects the wire protocol
// driver.  Number and the even/odd ports are only meaningful for the
// stanford controller family.
type InterlockCard struct {
	ID       uint64 // interlock_cards.id
	Server   string // interlock_cards.server (host or URL base)
	Port     int    // interlock_cards.port
	Number   int    // interlock_cards.number
	EvenPort int    // interlock_cards.even_port
	OddPort  int    // interlock_cards.odd_port
	Username string // interlock_cards.username (web relay basic auth)
	Password string // interlock_cards.password
	Category string // interlock_cards.category (driver registry key)
	Enabled  bool   // interlock_cards.enabled
}

// Interlock is one relay channel on a card, wired to either a door
// strike or a tool power circuit.  An interlock is attached to a door
// or a tool, never both; the schema and the admin surface reject dual
// attachment.
type Interlock struct {
	ID              uint64         // interlocks.id
	CardID          uint64         // interlocks.card_id
	Channel         int            // interlocks.channel
	State           InterlockState // interlocks.state
	MostRecentReply string         // interlocks.most_recent_reply

	Card InterlockCard // loaded relation
}
