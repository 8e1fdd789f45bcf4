package workers

import (
	"testing"

	"github.com/canslim/sentinel/internal/domain"
	"github.com/stretchr/testify/assert"
)

func TestRegimeChangedDetectsFirstEverAlert(t *testing.T) {
	current := domain.MarketRegimeAlert{Regime: domain.RegimeBullish}
	assert.True(t, regimeChanged(nil, current))
}

func TestRegimeChangedDetectsTransition(t *testing.T) {
	previous := &domain.MarketRegimeAlert{Regime: domain.RegimeNeutral}
	current := domain.MarketRegimeAlert{Regime: domain.RegimeBearish}
	assert.True(t, regimeChanged(previous, current))
}

func TestRegimeChangedFalseWhenUnchanged(t *testing.T) {
	previous := &domain.MarketRegimeAlert{Regime: domain.RegimeBullish}
	current := domain.MarketRegimeAlert{Regime: domain.RegimeBullish}
	assert.False(t, regimeChanged(previous, current))
}
