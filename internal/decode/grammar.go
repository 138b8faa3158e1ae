package decode

// legalEdges lists the physically possible phase transitions. Self loops
// are implicit. DROP may either hike straight into the next rep or park the
// bell; PARK can restart a set without standing up first.
var legalEdges = [][2]Phase{
	{Standing, HandOnBell},
	{HandOnBell, Hike},
	{Hike, Pull},
	{Pull, Float},
	{Float, Lockout},
	{Lockout, Drop},
	{Drop, Hike},
	{Drop, Park},
	{Park, Standing},
	{Park, HandOnBell},
}

// Grammar encodes transition costs over the phase set: a positive bonus for
// staying put, zero for a legal switch, and a large finite penalty for an
// illegal one. The penalty is deliberately finite — a true -Inf would
// poison the dynamic program with non-numeric scores the moment every path
// crosses an illegal edge. Immutable after construction.
type Grammar struct {
	costs [PhaseCount][PhaseCount]float64
}

// NewSwingGrammar builds the grammar with the given self-transition bonus
// and illegal-edge penalty (both supplied as positive magnitudes).
func NewSwingGrammar(selfBonus, illegalPenalty float64) *Grammar {
	g := &Grammar{}
	for from := Phase(0); from < PhaseCount; from++ {
		for to := Phase(0); to < PhaseCount; to++ {
			g.costs[from][to] = -illegalPenalty
		}
		g.costs[from][from] = selfBonus
	}
	for _, e := range legalEdges {
		g.costs[e[0]][e[1]] = 0
	}
	return g
}

// Cost returns the transition score contribution from → to.
func (g *Grammar) Cost(from, to Phase) float64 {
	return g.costs[from][to]
}

// Legal reports whether from → to is grammar-legal (self loops included).
func (g *Grammar) Legal(from, to Phase) bool {
	if from == to {
		return true
	}
	return g.costs[from][to] == 0
}
