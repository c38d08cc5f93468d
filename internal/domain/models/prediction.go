package models

// PairPrediction is one instrument's slice of a walk-forward emission.
// Predicted and Actual are nil when the pair could not be scored or the
// emission refers to the future; Accuracy is nil until Total > 0.
type PairPrediction struct {
	Name      string   `json:"name"`
	Predicted *int     `json:"pred"`
	Actual    *int     `json:"real"`
	Close     *float64 `json:"close"`
	NextClose *float64 `json:"next_close"`
	Correct   int      `json:"correct"`
	Total     int      `json:"total"`
	Accuracy  *float64 `json:"acc"`
}

// PredictionEmission is the cursor's per-advance output. Exactly one
// emission per sequence carries IsFuture=true: the one for the last
// common date, which has no known next-day outcome.
type PredictionEmission struct {
	Date     string           `json:"date"`
	IsFuture bool             `json:"is_future_prediction"`
	Pairs    []PairPrediction `json:"pairs"`
}

// Pair returns the named pair's prediction, or nil if absent.
func (e *PredictionEmission) Pair(name string) *PairPrediction {
	for i := range e.Pairs {
		if e.Pairs[i].Name == name {
			return &e.Pairs[i]
		}
	}
	return nil
}
