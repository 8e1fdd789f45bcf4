package domain

import "time"

// ChangeSource records why a PositionHistory row was written.
type ChangeSource string

const (
	ChangeManualEdit     ChangeSource = "manual_edit"
	ChangeStateTransition ChangeSource = "state_transition"
	ChangeSystemCalc     ChangeSource = "system_calc"
	ChangePriceUpdate    ChangeSource = "price_update"
	ChangeCurrent        ChangeSource = "current"
)

// PositionHistory is an append-only audit row: one tracked-field mutation
// on a position. Never updated after insert; history reconstruction reads
// rows for a position in descending ChangedAt order.
type PositionHistory struct {
	ChangedAt    time.Time    `json:"changed_at"`
	PositionID   string       `json:"position_id"`
	FieldName    string       `json:"field_name"`
	OldValue     string       `json:"old_value"`
	NewValue     string       `json:"new_value"`
	ChangeSource ChangeSource `json:"change_source"`
}
