package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateTransitionStateFullRejectsFirstProfit(t *testing.T) {
	// First-profit (state 4) is only reachable from {1,2}; state 3 only
	// ever moves on to second-profit (5), trailing, or an exit.
	_, err := ValidateTransition(StateFull, StateTP1)
	require.Error(t, err)
	var invalid *InvalidTransition
	assert.ErrorAs(t, err, &invalid)
}

func TestValidateTransitionStateFullAllowsSecondProfit(t *testing.T) {
	fields, err := ValidateTransition(StateFull, StateTP2)
	require.NoError(t, err)
	assert.Equal(t, TransitionFields{"tp2_sold", "tp2_price"}, fields)
}
