package decode

import (
	"fmt"

	"gonum.org/v1/gonum/floats"
)

// Decoder is a streaming Viterbi decoder: it carries its best phase across
// calls, so each Decode continues the dynamic program where the previous
// one ended instead of restarting from scratch. One decoder per session;
// single-writer, no internal locking.
type Decoder struct {
	grammar *Grammar
	steps   int
	current Phase
}

// NewDecoder returns a decoder expecting exactly steps score rows per
// Decode call, positioned at the canonical start phase.
func NewDecoder(grammar *Grammar, steps int) *Decoder {
	if steps < 1 {
		panic(fmt.Sprintf("decode: steps per call must be >= 1, got %d", steps))
	}
	return &Decoder{grammar: grammar, steps: steps, current: StartPhase}
}

// Current returns the persisted phase without decoding.
func (d *Decoder) Current() Phase {
	return d.current
}

// Reset returns the decoder to the canonical start phase.
func (d *Decoder) Reset() {
	d.current = StartPhase
}

// Override forcibly sets the persisted phase, bypassing the scored dynamic
// program. This is the documented side channel for the session referee to
// correct drift (e.g. snapping back to STANDING on session end); it is not
// for per-frame use.
func (d *Decoder) Override(p Phase) {
	if p < 0 || p >= PhaseCount {
		panic(fmt.Sprintf("decode: override with invalid phase %d", p))
	}
	d.current = p
}

// Decode consumes one batch of raw per-phase score rows and returns the new
// best phase, persisting it for the next call.
//
// The row count must equal the decoder's configured step count and every
// row must be PhaseCount wide; a mismatch panics. This contract is enforced
// loudly on purpose: silently decoding a single emission as if it were many
// rows once produced NaN-poisoned tracking that took days to trace.
func (d *Decoder) Decode(rows [][]float64) Phase {
	if len(rows) != d.steps {
		panic(fmt.Sprintf("decode: got %d score rows, decoder expects exactly %d", len(rows), d.steps))
	}

	var prev, next [PhaseCount]float64

	logp := logSoftmax(rows[0])
	for s := Phase(0); s < PhaseCount; s++ {
		prev[s] = d.grammar.Cost(d.current, s) + logp[s]
	}

	for t := 1; t < len(rows); t++ {
		logp = logSoftmax(rows[t])
		for s := Phase(0); s < PhaseCount; s++ {
			best := prev[0] + d.grammar.Cost(0, s)
			for p := Phase(1); p < PhaseCount; p++ {
				if score := prev[p] + d.grammar.Cost(p, s); score > best {
					best = score
				}
			}
			next[s] = best + logp[s]
		}
		prev = next
	}

	d.current = Phase(floats.MaxIdx(prev[:]))
	return d.current
}

// logSoftmax converts one row of raw, unbounded-magnitude scores into a
// log-probability distribution. floats.LogSumExp shifts by the row maximum
// internally, which is what keeps extreme logits from overflowing into Inf
// or NaN; this normalization is mandatory, not cosmetic.
func logSoftmax(row []float64) [PhaseCount]float64 {
	if len(row) != PhaseCount {
		panic(fmt.Sprintf("decode: score row has %d entries, want %d", len(row), PhaseCount))
	}
	lse := floats.LogSumExp(row)
	var out [PhaseCount]float64
	for i, v := range row {
		out[i] = v - lse
	}
	return out
}
