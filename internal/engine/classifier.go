package engine

import "github.com/swingdata/repwatch/internal/pose"

// Classifier is the engine's view of the external phase model. The model
// itself (weights, inference runtime) is an external collaborator; the
// engine only owns the cadence contract: Submit hands over one feature
// vector and returns false when a previous inference is still in flight —
// that frame is dropped from classification, never queued. Poll drains one
// completed score row, if any.
type Classifier interface {
	Submit(v pose.FeatureVector) bool
	Poll() (scores []float64, ok bool)
}

// SyncClassifier adapts a synchronous inference function. Submit never
// reports busy; the scores are available to Poll on the same frame. Infer
// may return ok=false while the model is still buffering context.
type SyncClassifier struct {
	Infer func(v [pose.FeatureCount]float64) (scores []float64, ok bool)

	pending []float64
	has     bool
}

func (c *SyncClassifier) Submit(v pose.FeatureVector) bool {
	scores, ok := c.Infer(v.Vector())
	if ok {
		c.pending = scores
		c.has = true
	}
	return true
}

func (c *SyncClassifier) Poll() ([]float64, bool) {
	if !c.has {
		return nil, false
	}
	c.has = false
	return c.pending, true
}

// AsyncClassifier runs a potentially slow inference function on its own
// goroutine with single-slot hand-off in both directions: bounded staleness
// instead of an unbounded queue.
type AsyncClassifier struct {
	in   chan [pose.FeatureCount]float64
	out  chan []float64
	done chan struct{}
}

// NewAsyncClassifier starts the inference worker.
func NewAsyncClassifier(infer func(v [pose.FeatureCount]float64) ([]float64, bool)) *AsyncClassifier {
	c := &AsyncClassifier{
		in:   make(chan [pose.FeatureCount]float64, 1),
		out:  make(chan []float64, 1),
		done: make(chan struct{}),
	}
	go func() {
		for {
			select {
			case <-c.done:
				return
			case v := <-c.in:
				if scores, ok := infer(v); ok {
					select {
					case c.out <- scores:
					case <-c.done:
						return
					}
				}
			}
		}
	}()
	return c
}

func (c *AsyncClassifier) Submit(v pose.FeatureVector) bool {
	select {
	case c.in <- v.Vector():
		return true
	default:
		return false // inference still in flight; drop this frame
	}
}

func (c *AsyncClassifier) Poll() ([]float64, bool) {
	select {
	case scores := <-c.out:
		return scores, true
	default:
		return nil, false
	}
}

// Close stops the inference worker.
func (c *AsyncClassifier) Close() {
	close(c.done)
}
