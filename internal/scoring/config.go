// Package scoring grades CAN-SLIM setups from static chart/fundamental
// factors and, when daily bars are supplied, dynamic price/volume
// indicators. The Scorer is a pure value function: no I/O, no side
// effects, deterministic for a pinned config version.
package scoring

import "strings"

// RatingTier is one band of a tiered rating table (RS, EPS).
type RatingTier struct {
	Name     string
	Min, Max int
	Score    float64
}

// PatternGroup scores a family of named chart patterns identically.
type PatternGroup struct {
	Names []string
	Tier  string
	Score float64
}

// DepthTier scores a base-depth percentage up to Max (ascending, first
// match wins).
type DepthTier struct {
	Name     string
	Max      float64
	Score    float64
}

// LengthTier scores a base length (weeks) at or above Min (checked
// descending by Min).
type LengthTier struct {
	Name  string
	Min   int
	Score float64
}

// Config is the scorer's entire rule table — versioned and hot-swappable
// as a whole snapshot, never mutated mid-evaluation.
type Config struct {
	Version string

	RSTiers          []RatingTier
	RSFloorEnabled   bool
	RSFloorThreshold int
	RSFloorMaxGrade  string

	Patterns            []PatternGroup
	PatternDefaultScore float64

	StageScores      map[string]float64
	BaseOnBaseBonus  float64

	DepthTiers  []DepthTier
	LengthTiers []LengthTier

	EPSTiers []RatingTier
	ADScores map[string]float64

	GradeBoundaries []GradeBoundary

	// Dynamic-factor windows, all expressed in trading days/weeks.
	UpDownVolumeWindow  int
	VolumeDryUpRecent   int
	VolumeDryUpBase     int
	TenWeekBounceWindow int
}

// GradeBoundary maps a minimum total score to a letter grade; Boundaries
// must be supplied in descending Min order.
type GradeBoundary struct {
	Grade string
	Min   float64
}

// DefaultConfig matches scoring_config.yaml v2.3, the rule table baked
// into the original monitor's scorer as its built-in fallback.
func DefaultConfig() Config {
	return Config{
		Version: "2.3",
		RSTiers: []RatingTier{
			{Name: "Elite", Min: 95, Max: 100, Score: 5},
			{Name: "Excellent", Min: 90, Max: 94, Score: 4},
			{Name: "Good", Min: 80, Max: 89, Score: 2},
			{Name: "Acceptable", Min: 70, Max: 79, Score: 0},
			{Name: "Weak", Min: 0, Max: 69, Score: -5},
		},
		RSFloorEnabled:   true,
		RSFloorThreshold: 70,
		RSFloorMaxGrade:  "C",

		Patterns: []PatternGroup{
			{Names: []string{"cup with handle", "cup w/handle", "cup w/ handle"}, Tier: "A", Score: 10},
			{Names: []string{"double bottom"}, Tier: "A", Score: 9},
			{Names: []string{"flat base", "high tight flag"}, Tier: "B", Score: 8},
			{Names: []string{"cup", "cup no handle", "ascending base", "ipo base"}, Tier: "B", Score: 7},
			{Names: []string{"consolidation", "base on base", "saucer", "saucer with handle", "saucer w/handle"}, Tier: "C", Score: 6},
			{Names: []string{"3 weeks tight", "three weeks tight", "shakeout +3", "shakeout plus 3"}, Tier: "C", Score: 6},
		},
		PatternDefaultScore: 5,

		StageScores: map[string]float64{
			"1": 0, "1(1)": 0,
			"2": -1, "2(2)": -1, "2(3)": -2, "2b": -1,
			"3": -4, "3(3)": -4, "3(4)": -5, "3b": -4,
			"4": -8, "4+": -10,
			"late": -10,
		},
		BaseOnBaseBonus: 2,

		DepthTiers: []DepthTier{
			{Name: "Shallow", Max: 15, Score: 1},
			{Name: "Normal", Max: 25, Score: 0},
			{Name: "Deep", Max: 35, Score: -2},
			{Name: "Very Deep", Max: 100, Score: -5},
		},
		LengthTiers: []LengthTier{
			{Name: "Ideal", Min: 7, Score: 1},
			{Name: "Acceptable", Min: 5, Score: 0},
			{Name: "Short", Min: 0, Score: -1},
		},

		EPSTiers: []RatingTier{
			{Name: "Elite", Min: 90, Score: 3},
			{Name: "Good", Min: 80, Score: 2},
			{Name: "Acceptable", Min: 70, Score: 1},
			{Name: "Weak", Min: 0, Score: 0},
		},
		ADScores: map[string]float64{
			"A+": 3, "A": 2, "A-": 2,
			"B+": 1, "B": 1, "B-": 0,
			"C+": 0, "C": 0, "C-": -1,
			"D+": -1, "D": -2, "D-": -2,
			"E": -3,
		},

		GradeBoundaries: []GradeBoundary{
			{Grade: "A+", Min: 20},
			{Grade: "A", Min: 15},
			{Grade: "B+", Min: 12},
			{Grade: "B", Min: 9},
			{Grade: "C+", Min: 7},
			{Grade: "C", Min: 5},
			{Grade: "D", Min: 3},
			{Grade: "F", Min: 0},
		},

		UpDownVolumeWindow:  20,
		VolumeDryUpRecent:   5,
		VolumeDryUpBase:     20,
		TenWeekBounceWindow: 10,
	}
}

var gradeOrder = []string{"A+", "A", "B+", "B", "C+", "C", "D", "F"}

// GradeRank maps a letter grade to its ordinal position within gradeOrder
// (lower is better), so callers can compare grades without relying on Go's
// lexicographic string ordering — which misranks e.g. "C+" against "C".
// An unrecognized grade ranks last (worst).
func GradeRank(grade string) int { return gradeRank(grade) }

func gradeRank(grade string) int {
	for i, g := range gradeOrder {
		if g == grade {
			return i
		}
	}
	return len(gradeOrder) - 1
}

// capGrade lowers grade to maxGrade if grade currently outranks it.
func capGrade(grade, maxGrade string) string {
	if gradeRank(grade) < gradeRank(maxGrade) {
		return maxGrade
	}
	return grade
}

func normalizePattern(p string) string {
	return strings.ToLower(strings.TrimSpace(p))
}
