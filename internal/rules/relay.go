// internal/rules/relay.go
package rules

// RelayOracle accepts every move without inspection. SnakeRoyale resolves
// collisions in the game engine on the client side and reports eliminations
// as explicit terminal data on the move itself.
type RelayOracle struct{}

// NewRelayOracle returns an accept-all oracle.
func NewRelayOracle() *RelayOracle {
	return &RelayOracle{}
}

// Validate accepts the move. If the payload declares a terminal condition
// ({"terminal": {"winner": ..., "reason": ...}}), it is passed through.
func (o *RelayOracle) Validate(_ []Move, proposed Move) (Verdict, error) {
	v := Verdict{Legal: true}
	term, ok := proposed.Data["terminal"].(map[string]interface{})
	if !ok {
		return v, nil
	}
	winner, _ := term["winner"].(string)
	reason, _ := term["reason"].(string)
	if reason == "" {
		reason = "elimination"
	}
	v.Terminal = &Terminal{Winner: winner, Reason: reason}
	return v, nil
}
