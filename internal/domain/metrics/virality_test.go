package metrics

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestScore_ExactBounds(t *testing.T) {
	// Everything saturated: 3 + 3 + 4.
	assert.InDelta(t, 10.0, Score(50, 5, 1.0, 1.0), 1e-9)

	// All-zero inputs.
	assert.InDelta(t, 0.0, Score(0, 0, 0.0, 0.0), 1e-9)
}

func TestScore_SaturatesAboveCaps(t *testing.T) {
	assert.InDelta(t, 10.0, Score(5000, 50, 1.0, 1.0), 1e-9)
}

func TestScore_PartialComponents(t *testing.T) {
	// Half reach (1.5), 2/5 depth (1.2), no engagement.
	assert.InDelta(t, 2.7, Score(25, 2, 0, 0), 1e-9)

	// Engagement only: (0.5+0.5)/2*4 = 2.
	assert.InDelta(t, 2.0, Score(0, 0, 0.5, 0.5), 1e-9)
}

func TestShareTree_Rates(t *testing.T) {
	tree := ShareTree{
		TotalReach: 10,
		MaxDepth:   2,
		Engagements: []Engagement{
			{Saved: true, Forwarded: true},
			{Saved: true},
			{Forwarded: true},
			{},
		},
	}

	assert.InDelta(t, 0.5, tree.SaveRate(), 1e-9)
	assert.InDelta(t, 0.5, tree.ForwardRate(), 1e-9)
}

func TestShareTree_EmptyEngagementsAreZero(t *testing.T) {
	tree := ShareTree{TotalReach: 50, MaxDepth: 5}

	assert.InDelta(t, 0.0, tree.SaveRate(), 1e-9)
	assert.InDelta(t, 0.0, tree.ForwardRate(), 1e-9)

	// Saturated reach and depth but no engagement: 6.0.
	assert.InDelta(t, 6.0, tree.ViralityScore(), 1e-9)
}

func TestShareTree_FullScore(t *testing.T) {
	tree := ShareTree{
		TotalReach: 50,
		MaxDepth:   5,
		Engagements: []Engagement{
			{Saved: true, Forwarded: true},
			{Saved: true, Forwarded: true},
		},
	}
	assert.InDelta(t, 10.0, tree.ViralityScore(), 1e-9)
}
