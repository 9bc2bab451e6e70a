package enum

// Action is the side of a trade intent.
type Action string

const (
	ActionBuy  Action = "buy"
	ActionSell Action = "sell"
)

func (a Action) IsAvailable() bool {
	return a == ActionBuy || a == ActionSell
}
