package scoring

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestScoreStaticOnly(t *testing.T) {
	s := New(DefaultConfig())
	score, grade, detail := s.Score(Input{
		RSRating:   82,
		Pattern:    "Cup w/Handle",
		BaseStage:  "2(2)",
		BaseDepth:  18,
		BaseLength: 8,
	})
	// RS Good(+2) + Pattern Tier A(+10) + Stage 2 base-on-base(-1+2=+1) +
	// Depth Normal(0) + Length Ideal(+1) = 14
	assert.Equal(t, 14.0, score)
	assert.Equal(t, "B+", grade)
	assert.Equal(t, detail.TotalScore, score)
}

func TestScoreDeterministic(t *testing.T) {
	s := New(DefaultConfig())
	in := Input{RSRating: 95, Pattern: "double bottom", BaseStage: "1", BaseDepth: 10, BaseLength: 10}
	score1, grade1, _ := s.Score(in)
	score2, grade2, _ := s.Score(in)
	assert.Equal(t, score1, score2)
	assert.Equal(t, grade1, grade2)
}

func TestRSFloorCapsGrade(t *testing.T) {
	s := New(DefaultConfig())
	_, grade, _ := s.Score(Input{
		RSRating:   60, // below floor threshold of 70
		Pattern:    "cup with handle",
		BaseStage:  "1",
		BaseDepth:  10,
		BaseLength: 10,
	})
	assert.GreaterOrEqual(t, gradeRank(grade), gradeRank("C"))
}

func TestRSFloorDoesNotApplyWhenRSAbsent(t *testing.T) {
	s := New(DefaultConfig())
	_, grade, _ := s.Score(Input{
		Pattern:    "cup with handle",
		BaseStage:  "1",
		BaseDepth:  10,
		BaseLength: 10,
	})
	// RS 0 is "not scored" and the floor only applies when rs_rating > 0.
	// Pattern Tier A(+10) + Stage 1(0) + Depth Shallow(+1) + Length Ideal(+1)
	// = 12, so the grade stays B+ rather than being capped at C.
	assert.Equal(t, "B+", grade)
}

func TestScorePatternUnknownDefault(t *testing.T) {
	s := New(DefaultConfig())
	score, _, _ := s.scorePattern("some totally unseen pattern xyz")
	assert.Equal(t, s.cfg.PatternDefaultScore, score)
}

func TestGradeBoundaries(t *testing.T) {
	s := New(DefaultConfig())
	assert.Equal(t, "A+", s.scoreToGrade(20))
	assert.Equal(t, "A", s.scoreToGrade(15))
	assert.Equal(t, "F", s.scoreToGrade(-5))
}
