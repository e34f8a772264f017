package app_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"speaking-assessment-service/internal/app"
)

func TestPointsForAnswer(t *testing.T) {
	p := app.DefaultScoringPolicy()

	assert.Equal(t, 0, p.PointsForAnswer(false, time.Second))
	assert.Equal(t, 5, p.PointsForAnswer(true, 9*time.Second))
	assert.Equal(t, 3, p.PointsForAnswer(true, 10*time.Second))
	assert.Equal(t, 3, p.PointsForAnswer(true, time.Minute))
}

func TestEndOfSessionBonusTiers(t *testing.T) {
	p := app.DefaultScoringPolicy()

	assert.Equal(t, 15, p.EndOfSessionBonus(28*time.Minute))
	assert.Equal(t, 15, p.EndOfSessionBonus(30*time.Minute))
	assert.Equal(t, 8, p.EndOfSessionBonus(30*time.Minute+time.Second))
	assert.Equal(t, 8, p.EndOfSessionBonus(45*time.Minute))
	assert.Equal(t, 3, p.EndOfSessionBonus(60*time.Minute))
	assert.Equal(t, 0, p.EndOfSessionBonus(61*time.Minute))
}

func TestScoringScenario(t *testing.T) {
	p := app.DefaultScoringPolicy()

	// 10 answers, 7 correct, 3 of those quick, 28 minutes total
	score := 0
	for i := 0; i < 10; i++ {
		switch {
		case i < 3:
			score += p.PointsForAnswer(true, 5*time.Second)
		case i < 7:
			score += p.PointsForAnswer(true, time.Minute)
		default:
			score += p.PointsForAnswer(false, time.Minute)
		}
	}
	score += p.EndOfSessionBonus(28 * time.Minute)
	assert.Equal(t, 42, score)
}
