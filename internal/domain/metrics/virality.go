// Package metrics computes reach and virality figures from the follow
// graph and the phlock history log. Scoring is pure; data access lives
// in the query handlers.
package metrics

// Engagement is one non-root node's interaction record in a share tree.
type Engagement struct {
	Saved     bool `json:"saved"`
	Forwarded bool `json:"forwarded"`
}

// ShareTree summarizes a tree of propagated shares rooted at one pick.
type ShareTree struct {
	// TotalReach is the number of distinct users the share reached.
	TotalReach int `json:"total_reach"`

	// MaxDepth is the longest propagation chain from the root.
	MaxDepth int `json:"max_depth"`

	// Engagements are the non-root interaction records.
	Engagements []Engagement `json:"engagements"`
}

// Scoring weights. Reach and depth each contribute up to 3 points,
// engagement up to 4, for a total range of [0,10].
const (
	reachSaturation = 50.0
	depthSaturation = 5.0
	reachWeight     = 3.0
	depthWeight     = 3.0
	engageWeight    = 4.0
)

// SaveRate returns saves/total over non-root records, 0.0 when empty.
func (t ShareTree) SaveRate() float64 {
	return t.rate(func(e Engagement) bool { return e.Saved })
}

// ForwardRate returns forwards/total over non-root records, 0.0 when empty.
func (t ShareTree) ForwardRate() float64 {
	return t.rate(func(e Engagement) bool { return e.Forwarded })
}

func (t ShareTree) rate(pred func(Engagement) bool) float64 {
	if len(t.Engagements) == 0 {
		return 0.0
	}
	count := 0
	for _, e := range t.Engagements {
		if pred(e) {
			count++
		}
	}
	return float64(count) / float64(len(t.Engagements))
}

// ViralityScore is the weighted 0-10 composite:
// min(reach/50,1)*3 + min(depth/5,1)*3 + (saveRate+forwardRate)/2*4.
func (t ShareTree) ViralityScore() float64 {
	return Score(t.TotalReach, t.MaxDepth, t.SaveRate(), t.ForwardRate())
}

// Score computes the composite from already-derived figures.
func Score(totalReach, maxDepth int, saveRate, forwardRate float64) float64 {
	reach := clamp01(float64(totalReach)/reachSaturation) * reachWeight
	depth := clamp01(float64(maxDepth)/depthSaturation) * depthWeight
	engagement := (saveRate + forwardRate) / 2 * engageWeight
	return reach + depth + engagement
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// Reach is the pair of reach figures exposed by the aggregator.
// Historical counts distinct owners over all history rows and therefore
// never decreases; Current can.
type Reach struct {
	Current    int `json:"current"`
	Historical int `json:"historical"`
}
