package domain

import "fmt"

// InvalidTransition is returned when a requested state change is not in
// the legal transition table.
type InvalidTransition struct {
	From, To State
}

func (e *InvalidTransition) Error() string {
	return fmt.Sprintf("invalid transition from %v to %v", e.From, e.To)
}

// TransitionFields lists which Position fields a transition requires the
// caller to supply, so the repository can validate presence before
// committing. Field names match Position's JSON tags.
type TransitionFields []string

var legalTransitions = map[State]map[State]TransitionFields{
	StateWatching: {
		StateInitial: {"e1_shares", "e1_price", "stop_price"},
		StateClosed:  nil,
	},
	StateInitial: {
		StatePyramid1: {"e2_shares", "e2_price"},
		StateFull:     {"e2_shares", "e2_price", "e3_shares", "e3_price"},
		StateTP1:      {"tp1_sold", "tp1_price"},
		StateClosed:   {"exit_date", "exit_price", "exit_reason"},
		StateStoppedOut: {"exit_date", "exit_price"},
	},
	StatePyramid1: {
		StateFull:       {"e3_shares", "e3_price"},
		StateTP1:        {"tp1_sold", "tp1_price"},
		StateTP2:        {"tp2_sold", "tp2_price"},
		StateTrailing:   nil,
		StateClosed:     {"exit_date", "exit_price", "exit_reason"},
		StateStoppedOut: {"exit_date", "exit_price"},
	},
	StateFull: {
		StateTP2:        {"tp2_sold", "tp2_price"},
		StateTrailing:   nil,
		StateClosed:     {"exit_date", "exit_price", "exit_reason"},
		StateStoppedOut: {"exit_date", "exit_price"},
	},
	StateTP1: {
		StateTP2:        {"tp2_sold", "tp2_price"},
		StateTrailing:   nil,
		StateClosed:     {"exit_date", "exit_price", "exit_reason"},
		StateStoppedOut: {"exit_date", "exit_price"},
	},
	StateTP2: {
		StateClosed:     {"exit_date", "exit_price", "exit_reason"},
		StateStoppedOut: {"exit_date", "exit_price"},
	},
	StateTrailing: {
		StateClosed:     {"exit_date", "exit_price", "exit_reason"},
		StateStoppedOut: {"exit_date", "exit_price"},
	},
	StateStoppedOut: {
		StateWatchingExited: {"exit_price", "exit_reason"},
	},
	StateClosed: {
		StateWatchingExited: {"exit_price", "exit_reason"},
	},
	StateWatchingExited: {
		StateWatching:   {"new_pivot"},
		StateInitial:    {"e1_shares", "e1_price", "stop_price"},
		StateStoppedOut: nil, // auto-expire after 60 days, see ExpireWatchingExited
	},
}

// ValidateTransition reports whether from → to is legal, and if so which
// fields the caller must supply. It returns *InvalidTransition when the
// transition is not in the table.
func ValidateTransition(from, to State) (TransitionFields, error) {
	tos, ok := legalTransitions[from]
	if !ok {
		return nil, &InvalidTransition{From: from, To: to}
	}
	fields, ok := tos[to]
	if !ok {
		return nil, &InvalidTransition{From: from, To: to}
	}
	return fields, nil
}

// RequireFields reports whether every field in want is present (non-empty)
// in got, used by repositories to validate a transition's required-field
// set before committing.
func RequireFields(want TransitionFields, got map[string]any) error {
	for _, f := range want {
		v, present := got[f]
		if !present || v == nil {
			return fmt.Errorf("missing required field %q for transition", f)
		}
	}
	return nil
}
