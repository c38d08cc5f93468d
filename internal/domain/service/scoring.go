package service

// DirectionScorer is the per-instrument classification capability: given a
// feature vector it returns a binary direction label, 1 meaning the target
// currency strengthens tomorrow. Implementations must be deterministic for
// a given vector and model version.
type DirectionScorer interface {
	Score(features []float64) (int, error)
	Close()
}
