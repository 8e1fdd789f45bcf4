package scoring

import (
	"strconv"
	"strings"

	"github.com/canslim/sentinel/pkg/indicators"
	"github.com/canslim/sentinel/pkg/stats"
)

// Input is the value-type view of a position's static attributes plus
// optional daily bars for dynamic scoring, converted at the repository
// boundary so the scorer never sees a duck-typed position.
type Input struct {
	RSRating   int
	EPSRating  int
	ADRating   string
	Pattern    string
	BaseStage  string
	BaseDepth  float64
	BaseLength int

	// Bars, when non-empty, enables dynamic scoring. IndexBars is the
	// reference index series (e.g. SPY) for the RS-trend factor.
	Bars      []indicators.Bar
	IndexBars []indicators.Bar
}

// Component is a single named scoring factor's contribution, kept for
// audit/detail display.
type Component struct {
	Name   string
	Points float64
	Reason string
}

// Detail is the full breakdown the scorer returns alongside (score, grade).
type Detail struct {
	ConfigVersion string
	StaticScore   float64
	DynamicScore  float64
	TotalScore    float64
	Grade         string
	Components    []Component
}

// Scorer evaluates Input against a pinned Config snapshot. Replace the
// config only at component boundaries (e.g. on a settings reload);
// never mutate mid-evaluation.
type Scorer struct {
	cfg Config
}

// New constructs a Scorer bound to cfg.
func New(cfg Config) *Scorer {
	return &Scorer{cfg: cfg}
}

// Score computes (score, grade, detail) for in. Bars absent or under 50
// entries skip dynamic scoring entirely — the static score stands alone,
// matching the source monitor's data-sufficiency gate. IndexBars under 50
// entries skip only the RS-trend factor.
func (s *Scorer) Score(in Input) (float64, string, Detail) {
	var components []Component

	rsScore, rsReason := s.scoreRS(in.RSRating)
	components = append(components, Component{"RS Rating", rsScore, rsReason})

	patternScore, patternReason := s.scorePattern(in.Pattern)
	components = append(components, Component{"Pattern", patternScore, patternReason})

	stageScore, stageReason := s.scoreStage(in.BaseStage)
	components = append(components, Component{"Stage", stageScore, stageReason})

	depthScore, depthReason := s.scoreDepth(in.BaseDepth)
	components = append(components, Component{"Depth", depthScore, depthReason})

	lengthScore, lengthReason := s.scoreLength(in.BaseLength)
	components = append(components, Component{"Length", lengthScore, lengthReason})

	epsScore, epsReason := s.scoreEPS(in.EPSRating)
	components = append(components, Component{"EPS Rating", epsScore, epsReason})

	adScore, adReason := s.scoreAD(in.ADRating)
	components = append(components, Component{"A/D Rating", adScore, adReason})

	staticTotal := rsScore + patternScore + stageScore + depthScore + lengthScore + epsScore + adScore

	dynamicTotal := 0.0
	if len(in.Bars) >= 50 {
		dynComponents := s.scoreDynamic(in)
		components = append(components, dynComponents...)
		for _, c := range dynComponents {
			dynamicTotal += c.Points
		}
	}

	total := staticTotal + dynamicTotal
	grade := s.scoreToGrade(total)
	if s.cfg.RSFloorEnabled && in.RSRating > 0 && in.RSRating < s.cfg.RSFloorThreshold {
		grade = capGrade(grade, s.cfg.RSFloorMaxGrade)
	}

	detail := Detail{
		ConfigVersion: s.cfg.Version,
		StaticScore:   staticTotal,
		DynamicScore:  dynamicTotal,
		TotalScore:    total,
		Grade:         grade,
		Components:    components,
	}
	return total, grade, detail
}

func (s *Scorer) scoreRS(rs int) (float64, string) {
	if rs <= 0 {
		return 0, "no RS rating"
	}
	for _, t := range s.cfg.RSTiers {
		if rs >= t.Min && rs <= t.Max {
			return t.Score, "RS " + strconv.Itoa(rs) + " (" + t.Name + ")"
		}
	}
	return 0, "RS " + strconv.Itoa(rs)
}

func (s *Scorer) scorePattern(pattern string) (float64, string) {
	if pattern == "" {
		return s.cfg.PatternDefaultScore, "no pattern specified"
	}
	norm := normalizePattern(pattern)
	for _, g := range s.cfg.Patterns {
		for _, name := range g.Names {
			if name == norm {
				return g.Score, pattern + " (Tier " + g.Tier + ")"
			}
		}
	}
	for _, g := range s.cfg.Patterns {
		for _, name := range g.Names {
			if strings.Contains(norm, name) || strings.Contains(name, norm) {
				return g.Score, pattern + " (Tier " + g.Tier + ")"
			}
		}
	}
	return s.cfg.PatternDefaultScore, pattern + " (unrecognized)"
}

func (s *Scorer) scoreStage(stage string) (float64, string) {
	if stage == "" {
		return 0, "no stage specified"
	}
	lower := strings.ToLower(strings.TrimSpace(stage))
	baseOnBase := strings.Contains(lower, "(")
	key := lower
	if idx := strings.Index(lower, "("); idx >= 0 {
		key = strings.TrimSpace(lower[:idx])
	}
	key = strings.TrimRight(key, "b")

	score, ok := s.cfg.StageScores[key]
	if !ok {
		if strings.Contains(lower, "late") {
			score = s.cfg.StageScores["late"]
		} else {
			score = -8 // stage 4+ fallback for unrecognized numeric stages
		}
	}
	reason := "stage " + stage
	if baseOnBase {
		score += s.cfg.BaseOnBaseBonus
		reason += " [base-on-base]"
	}
	return score, reason
}

func (s *Scorer) scoreDepth(depth float64) (float64, string) {
	if depth <= 0 {
		return 0, "no depth specified"
	}
	for _, t := range s.cfg.DepthTiers {
		if depth <= t.Max {
			return t.Score, strconv.FormatFloat(depth, 'f', 1, 64) + "% (" + t.Name + ")"
		}
	}
	return -5, strconv.FormatFloat(depth, 'f', 1, 64) + "% (Very Deep)"
}

func (s *Scorer) scoreLength(weeks int) (float64, string) {
	if weeks <= 0 {
		return 0, "no length specified"
	}
	var best *LengthTier
	for i, t := range s.cfg.LengthTiers {
		if weeks >= t.Min && (best == nil || t.Min > best.Min) {
			best = &s.cfg.LengthTiers[i]
		}
	}
	if best == nil {
		return -1, strconv.Itoa(weeks) + " weeks (Short)"
	}
	return best.Score, strconv.Itoa(weeks) + " weeks (" + best.Name + ")"
}

func (s *Scorer) scoreEPS(eps int) (float64, string) {
	if eps <= 0 {
		return 0, "no EPS rating"
	}
	var best *RatingTier
	for i, t := range s.cfg.EPSTiers {
		if eps >= t.Min && (best == nil || t.Min > best.Min) {
			best = &s.cfg.EPSTiers[i]
		}
	}
	if best == nil {
		return 0, "EPS " + strconv.Itoa(eps)
	}
	return best.Score, "EPS " + strconv.Itoa(eps) + " (" + best.Name + ")"
}

func (s *Scorer) scoreAD(ad string) (float64, string) {
	if ad == "" {
		return 0, "no A/D rating"
	}
	return s.cfg.ADScores[ad], "A/D " + ad
}

func (s *Scorer) scoreToGrade(total float64) string {
	for _, b := range s.cfg.GradeBoundaries {
		if total >= b.Min {
			return b.Grade
		}
	}
	return "F"
}

// scoreDynamic computes the five price/volume dynamic factors; the
// caller has already confirmed len(in.Bars) >= 50.
func (s *Scorer) scoreDynamic(in Input) []Component {
	var out []Component

	udRatio := indicators.UpDownVolumeRatio(in.Bars, s.cfg.UpDownVolumeWindow)
	udScore, udReason := scoreUpDownRatio(udRatio)
	out = append(out, Component{"Up/Down Vol Ratio", udScore, udReason})

	last := in.Bars[len(in.Bars)-1].Close
	ma50 := indicators.Last(indicators.SMA(in.Bars, 50))
	ma50Prev := indicators.Last(indicators.SMA(in.Bars[:len(in.Bars)-1], 50))
	maScore, maReason := scoreMAPosition(last, ma50, ma50Prev)
	out = append(out, Component{"50-MA Position", maScore, maReason})

	bounces := countTenWeekBounces(in.Bars, s.cfg.TenWeekBounceWindow)
	bounceScore, bounceReason := scoreTenWeekBounces(bounces)
	out = append(out, Component{"10W Support", bounceScore, bounceReason})

	if len(in.IndexBars) >= 50 {
		trendScore, trendReason := scoreRSTrend(in.Bars, in.IndexBars)
		out = append(out, Component{"RS Trend", trendScore, trendReason})
	}

	dryUp := indicators.VolumeDryUpRatio(in.Bars, s.cfg.VolumeDryUpRecent, s.cfg.VolumeDryUpBase)
	dryScore, dryReason := scoreVolumeDryUp(dryUp)
	out = append(out, Component{"Volume Dry-Up", dryScore, dryReason})

	return out
}

func scoreUpDownRatio(ratio float64) (float64, string) {
	switch {
	case ratio >= 1.5:
		return 3, "up/down ratio " + formatRatio(ratio)
	case ratio >= 1.2:
		return 2, "up/down ratio " + formatRatio(ratio)
	case ratio >= 1.1:
		return 1, "up/down ratio " + formatRatio(ratio)
	case ratio >= 0.9:
		return 0, "up/down ratio " + formatRatio(ratio)
	default:
		return -2, "up/down ratio " + formatRatio(ratio)
	}
}

func scoreMAPosition(price, ma, maPrev float64) (float64, string) {
	if ma <= 0 {
		return 0, "50-MA unavailable"
	}
	pctFromMA := (price - ma) / ma * 100
	rising := ma > maPrev
	switch {
	case price > ma && rising:
		return 2, "above rising 50-MA"
	case price > ma:
		return 1, "above flat 50-MA"
	case pctFromMA >= -2:
		return 0, "within 2% of 50-MA"
	case pctFromMA >= -8:
		return -1, "below 50-MA"
	default:
		return -2, "well below 50-MA"
	}
}

func countTenWeekBounces(bars []indicators.Bar, window int) int {
	weekly := indicators.WeeklyBars(bars, 5)
	if len(weekly) < window {
		return 0
	}
	ma := indicators.SMA(weekly, window)
	bounces := 0
	for i := len(weekly) - window; i < len(weekly); i++ {
		if i < 0 || i >= len(ma) {
			continue
		}
		m := ma[i]
		if m == 0 || m != m {
			continue
		}
		low := weekly[i].Close
		withinBand := low >= m*0.98 && low <= m*1.02
		closedAbove := weekly[i].Close > m
		if withinBand && closedAbove {
			bounces++
		}
	}
	return bounces
}

func scoreTenWeekBounces(n int) (float64, string) {
	switch {
	case n >= 3:
		return 3, "3+ support bounces"
	case n == 2:
		return 2, "2 support bounces"
	case n == 1:
		return 1, "1 support bounce"
	default:
		return 0, "no support bounces"
	}
}

func scoreRSTrend(bars, indexBars []indicators.Bar) (float64, string) {
	n := len(bars)
	if len(indexBars) < n {
		n = len(indexBars)
	}
	ratio := make([]float64, n)
	for i := 0; i < n; i++ {
		if indexBars[i].Close == 0 {
			continue
		}
		ratio[i] = bars[i].Close / indexBars[i].Close
	}
	slope := stats.LinearSlope(ratio)
	mean := stats.Mean(ratio)
	normalized := 0.0
	if mean != 0 {
		normalized = slope / mean
	}
	lookback := 63
	if lookback > n {
		lookback = n
	}
	atNewHigh := bars[n-1].Close == maxClose(bars[n-lookback:n])
	trend := stats.ClassifyTrend(normalized, atNewHigh)
	switch trend {
	case stats.TrendNewHigh:
		return 2, "RS at new high"
	case stats.TrendRising:
		return 1, "RS rising"
	case stats.TrendFalling:
		return -1, "RS falling"
	default:
		return 0, "RS flat"
	}
}

func maxClose(bars []indicators.Bar) float64 {
	if len(bars) == 0 {
		return 0
	}
	max := bars[0].Close
	for _, b := range bars {
		if b.Close > max {
			max = b.Close
		}
	}
	return max
}

func scoreVolumeDryUp(ratio float64) (float64, string) {
	switch {
	case ratio < 0.5:
		return 2, "volume dried up to " + formatRatio(ratio) + "x base"
	case ratio < 0.75:
		return 1, "volume below base at " + formatRatio(ratio) + "x"
	default:
		return 0, "volume normal at " + formatRatio(ratio) + "x"
	}
}

func formatRatio(r float64) string {
	return strconv.FormatFloat(r, 'f', 2, 64)
}
