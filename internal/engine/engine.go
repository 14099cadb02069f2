package engine

import (
	"fmt"

	"github.com/lazypower/hippocampus/internal/transcript"
)

// Engine runs compaction passes with a fixed parameter set and classifier.
// It holds no mutable state and is safe for concurrent use.
type Engine struct {
	params     Params
	classifier *Classifier
}

// New validates p and returns an Engine using the default classifier.
func New(p Params) (*Engine, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return &Engine{params: p.Clone(), classifier: defaultClassifier}, nil
}

// WithClassifier returns a copy of e that classifies with c.
func (e *Engine) WithClassifier(c *Classifier) *Engine {
	return &Engine{params: e.params, classifier: c}
}

// Params returns a copy of the engine's parameters.
func (e *Engine) Params() Params {
	return e.params.Clone()
}

// Score classifies, scores and decays every message in order.
func (e *Engine) Score(msgs []transcript.Message) []ScoredEntry {
	return scoreAll(NewScorerWith(e.classifier, msgs), len(msgs), e.params)
}

// Compact scores msgs and renders the tiered digest, splicing previous in
// as prior context when it is non-empty.
func (e *Engine) Compact(msgs []transcript.Message, previous string) Digest {
	return Assemble(e.Score(msgs), msgs, e.params, previous)
}

// ScoreAll validates p and scores msgs with the default classifier.
func ScoreAll(msgs []transcript.Message, p Params) ([]ScoredEntry, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return scoreAll(NewScorer(msgs), len(msgs), p.Clone()), nil
}

// Compact runs the full pipeline once. Invalid params fail before anything
// is rendered.
func Compact(msgs []transcript.Message, p Params, previous string) (Digest, error) {
	eng, err := New(p)
	if err != nil {
		return Digest{}, fmt.Errorf("compact: %w", err)
	}
	return eng.Compact(msgs, previous), nil
}

func scoreAll(s *Scorer, n int, p Params) []ScoredEntry {
	entries := make([]ScoredEntry, n)
	for i := range entries {
		entries[i] = s.Entry(i, p)
	}
	return entries
}
