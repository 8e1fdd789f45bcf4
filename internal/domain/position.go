// Package domain holds the core value types and state machine for the
// monitoring engine: positions, their audit history, alerts, regime
// records, distribution days, and closed-position outcomes.
package domain

import "time"

// State is a position's lifecycle state. Numeric so the sentinel -1.5
// (WatchingExited) sorts between Closed and Watching.
type State float64

const (
	StateStoppedOut      State = -2
	StateWatchingExited  State = -1.5
	StateClosed          State = -1
	StateWatching        State = 0
	StateInitial         State = 1
	StatePyramid1        State = 2
	StateFull            State = 3
	StateTP1             State = 4
	StateTP2             State = 5
	StateTrailing        State = 6
)

// Default hard-stop and take-profit percentages applied to new entries
// that don't specify their own, per O'Neil's 7-8% sell-rule convention
// and the classic 20-25%/25-50% CAN-SLIM profit targets.
const (
	DefaultHardStopPct = 7.0
	DefaultTP1Pct      = 20.0
	DefaultTP2Pct      = 25.0
)

// Tranche is an entry or exit slot index (1, 2 or 3 for entries; 1 or 2
// for take-profits).
type Tranche int

const (
	Tranche1 Tranche = 1
	Tranche2 Tranche = 2
	Tranche3 Tranche = 3
)

// entry is one buy tranche: shares acquired, price paid, and date.
type entry struct {
	Date   time.Time `json:"date"`
	Shares float64   `json:"shares"`
	Price  float64   `json:"price"`
}

// exit is one sell tranche (TP1 or TP2): shares sold, price, and date.
type exit struct {
	Date  time.Time `json:"date"`
	Sold  float64   `json:"sold"`
	Price float64   `json:"price"`
}

// Position is a tracked instrument with a state machine, up to three
// entry tranches, two take-profit tranches, and cached derived and
// chart/rating fields. See the package doc and SPEC_FULL.md §3 for the
// full field catalogue and invariants.
type Position struct {
	PivotSetDate        time.Time `json:"pivot_set_date"`
	WatchingExitedSince time.Time `json:"watching_exited_since,omitempty"`
	LastPriceTime       time.Time `json:"last_price_time"`
	EarningsDate        time.Time `json:"earnings_date,omitempty"`

	ID        string `json:"id"`
	Symbol    string `json:"symbol"`
	Portfolio string `json:"portfolio"`

	State State `json:"state"`

	E1, E2, E3 entry `json:"-"`
	TP1, TP2   exit  `json:"-"`

	TotalShares   float64 `json:"total_shares"`
	AvgCost       float64 `json:"avg_cost"`
	CurrentPnLPct float64 `json:"current_pnl_pct"`

	// StopPrice, TP1Target and TP2Target are recomputed automatically on
	// tranche edits unless their matching *SetByUser flag is set, in
	// which case recomputation must leave the explicit value alone
	// (sticky-override invariant).
	StopPrice        float64 `json:"stop_price"`
	StopPriceSetByUser bool  `json:"-"`
	TP1Target        float64 `json:"tp1_target"`
	TP1TargetSetByUser bool  `json:"-"`
	TP2Target        float64 `json:"tp2_target"`
	TP2TargetSetByUser bool  `json:"-"`

	// HardStopPct, TP1Pct and TP2Pct drive the default-target recompute
	// formula (RecomputeTargets): stop = avg_cost*(1-pct/100), tp =
	// avg_cost*(1+pct/100). Per-position so a wider base can carry a
	// looser stop than the 7-8% O'Neil default.
	HardStopPct float64 `json:"hard_stop_pct"`
	TP1Pct      float64 `json:"tp1_pct"`
	TP2Pct      float64 `json:"tp2_pct"`

	Pattern        string  `json:"pattern"`
	BaseStage      string  `json:"base_stage"`
	BaseDepthPct   float64 `json:"base_depth"`
	BaseLengthWeek int     `json:"base_length"`
	Pivot          float64 `json:"pivot"`
	OriginalPivot  float64 `json:"original_pivot"`

	RSRating     int `json:"rs_rating"`
	EPSRating    int `json:"eps_rating"`
	CompRating   int `json:"comp_rating"`
	IndustryRank int `json:"industry_rank"`
	FundCount    int `json:"fund_count"`
	// ADRating is the IBD-style accumulation/distribution letter grade
	// (A+ down through E); stored as text, not a numeric rating.
	ADRating string `json:"ad_rating"`

	EntryGrade string  `json:"entry_grade"`
	EntryScore float64 `json:"entry_score"`

	LastPrice    float64 `json:"last_price"`
	// RunningHigh is the highest LastPrice ever observed for this
	// position; it only ratchets up, feeding the trailing-stop floor.
	RunningHigh  float64 `json:"running_high"`
	AvgVolume50D float64 `json:"avg_volume_50d"`

	NeedsSheetSync bool `json:"needs_sheet_sync"`
	MATestCount    int  `json:"ma_test_count"`

	ExitDate   time.Time `json:"exit_date,omitempty"`
	ExitPrice  float64   `json:"exit_price"`
	ExitReason string    `json:"exit_reason"`
}

// EntryTranche returns the requested entry tranche's shares, price and
// date. Tranche 1 is always the initial buy.
func (p *Position) EntryTranche(t Tranche) (shares, price float64, date time.Time) {
	switch t {
	case Tranche1:
		return p.E1.Shares, p.E1.Price, p.E1.Date
	case Tranche2:
		return p.E2.Shares, p.E2.Price, p.E2.Date
	case Tranche3:
		return p.E3.Shares, p.E3.Price, p.E3.Date
	default:
		return 0, 0, time.Time{}
	}
}

// SetEntryTranche records shares/price/date for an entry tranche. Callers
// go through the repository for change capture; this is the plain setter
// the repository's recompute logic drives.
func (p *Position) SetEntryTranche(t Tranche, shares, price float64, date time.Time) {
	e := entry{Shares: shares, Price: price, Date: date}
	switch t {
	case Tranche1:
		p.E1 = e
	case Tranche2:
		p.E2 = e
	case Tranche3:
		p.E3 = e
	}
}

// TPTranche returns the requested take-profit tranche's sold shares,
// price and date.
func (p *Position) TPTranche(n int) (sold, price float64, date time.Time) {
	switch n {
	case 1:
		return p.TP1.Sold, p.TP1.Price, p.TP1.Date
	case 2:
		return p.TP2.Sold, p.TP2.Price, p.TP2.Date
	default:
		return 0, 0, time.Time{}
	}
}

// SetTPTranche records sold shares/price/date for a take-profit tranche.
func (p *Position) SetTPTranche(n int, sold, price float64, date time.Time) {
	e := exit{Sold: sold, Price: price, Date: date}
	switch n {
	case 1:
		p.TP1 = e
	case 2:
		p.TP2 = e
	}
}

// Recompute derives TotalShares and AvgCost from the entry/exit tranches,
// per the invariant: total_shares = Σe.shares − Σtp.sold (≥ 0), and
// avg_cost is the weighted average price over acquired shares only —
// sells never affect it.
func (p *Position) Recompute() {
	acquiredShares := p.E1.Shares + p.E2.Shares + p.E3.Shares
	acquiredCost := p.E1.Shares*p.E1.Price + p.E2.Shares*p.E2.Price + p.E3.Shares*p.E3.Price
	sold := p.TP1.Sold + p.TP2.Sold

	p.TotalShares = acquiredShares - sold
	if p.TotalShares < 0 {
		p.TotalShares = 0
	}
	if acquiredShares > 0 {
		p.AvgCost = acquiredCost / acquiredShares
	} else {
		p.AvgCost = 0
	}
}

// UpdatePnL recomputes CurrentPnLPct from the given market price against
// AvgCost.
func (p *Position) UpdatePnL(price float64) {
	p.LastPrice = price
	if price > p.RunningHigh {
		p.RunningHigh = price
	}
	if p.AvgCost > 0 {
		p.CurrentPnLPct = (price - p.AvgCost) / p.AvgCost * 100
	}
}

// SetPivot sets Pivot and atomically stamps PivotSetDate, per the
// invariant that the two always change together.
func (p *Position) SetPivot(pivot float64, at time.Time) {
	p.Pivot = pivot
	p.PivotSetDate = at
}

// RecomputeTargets derives StopPrice, TP1Target and TP2Target from
// AvgCost and the position's HardStopPct/TP1Pct/TP2Pct, skipping any
// target whose *SetByUser flag is set (sticky-override invariant: an
// explicit caller-provided value survives future recomputes until the
// flag is cleared).
func (p *Position) RecomputeTargets() {
	if p.AvgCost <= 0 {
		return
	}
	if !p.StopPriceSetByUser {
		p.StopPrice = p.AvgCost * (1 - p.HardStopPct/100)
	}
	if !p.TP1TargetSetByUser {
		p.TP1Target = p.AvgCost * (1 + p.TP1Pct/100)
	}
	if !p.TP2TargetSetByUser {
		p.TP2Target = p.AvgCost * (1 + p.TP2Pct/100)
	}
}
