package domain

// Role identifies the author of a turn.
type Role string

const (
	RoleUser  Role = "user"
	RoleModel Role = "model"
)

// Turn is one unit of dialogue: a single user message or model reply.
type Turn struct {
	Role Role   `json:"role"`
	Text string `json:"text"`
}

// ExchangeOffset maps a zero-based exchange index (position in the
// user-turn sequence) to the offset of that user turn in the raw
// history slice. Each completed exchange occupies two turns.
func ExchangeOffset(exchangeIndex int) int {
	return exchangeIndex * 2
}

// Exchanges returns the number of completed user/model pairs in history.
func Exchanges(history []Turn) int {
	return len(history) / 2
}
