package scoring

import (
	"fmt"
	"os"
	"path/filepath"

	domsvc "FxPilot/internal/domain/service"
	"FxPilot/pkg/logger"
)

// Registry holds one scorer per instrument. A pair whose model file is
// missing or unloadable is left out with a diagnostic; the rest of the
// system continues without it.
type Registry struct {
	scorers map[string]domsvc.DirectionScorer
}

// NewRegistry loads <modelDir>/<PAIR>.onnx for every configured pair.
func NewRegistry(modelDir, onnxLib string, pairs []string, l *logger.Logger) (*Registry, error) {
	if err := InitializeORT(onnxLib); err != nil {
		return nil, fmt.Errorf("onnxruntime init: %w", err)
	}

	r := &Registry{scorers: make(map[string]domsvc.DirectionScorer, len(pairs))}
	for _, pair := range pairs {
		path := filepath.Join(modelDir, pair+".onnx")
		if _, err := os.Stat(path); err != nil {
			l.Warn("model file missing, pair excluded from scoring",
				logger.String("pair", pair), logger.String("path", path))
			continue
		}
		m, err := NewModel(path)
		if err != nil {
			l.Warn("model load failed, pair excluded from scoring",
				logger.String("pair", pair), logger.Error(err))
			continue
		}
		r.scorers[pair] = m
	}
	if len(r.scorers) == 0 {
		return nil, fmt.Errorf("no models could be loaded from %s", modelDir)
	}
	return r, nil
}

// Get returns the pair's scorer, or nil if the pair has no usable model.
func (r *Registry) Get(pair string) domsvc.DirectionScorer {
	return r.scorers[pair]
}

// Pairs lists the pairs with a usable model.
func (r *Registry) Pairs() []string {
	out := make([]string, 0, len(r.scorers))
	for p := range r.scorers {
		out = append(out, p)
	}
	return out
}

func (r *Registry) Close() {
	for _, s := range r.scorers {
		s.Close()
	}
}
