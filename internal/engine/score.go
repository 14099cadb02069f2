package engine

import (
	"strings"

	"github.com/lazypower/hippocampus/internal/transcript"
)

// baseImportance is the pre-modifier importance of each type.
var baseImportance = map[EntryType]float64{
	TypeDecision:   0.90,
	TypeUserIntent: 0.80,
	TypeContext:    0.50,
	TypeToolResult: 0.30,
	TypeEphemeral:  0.10,
	TypeUnknown:    0.40,
}

const (
	recencyWindow = 5
	recencyBonus  = 0.15

	largeTokens  = 10_000
	largePenalty = 0.15
	hugeTokens   = 30_000
	hugePenalty  = 0.10
	penaltyFloor = 0.1

	referencePrefixChars = 40
	referenceBonus       = 0.20

	previewChars = 500
)

// BaseImportance returns the unmodified importance of t.
func BaseImportance(t EntryType) float64 {
	if v, ok := baseImportance[t]; ok {
		return v
	}
	return baseImportance[TypeUnknown]
}

// Scorer scores the messages of one sequence. Extracted text is computed
// once so the cross-reference scan does not re-walk content blocks.
type Scorer struct {
	classifier *Classifier
	msgs       []transcript.Message
	texts      []string
}

// NewScorer prepares msgs for scoring with the default classifier.
func NewScorer(msgs []transcript.Message) *Scorer {
	return NewScorerWith(defaultClassifier, msgs)
}

// NewScorerWith prepares msgs for scoring with a custom classifier.
func NewScorerWith(c *Classifier, msgs []transcript.Message) *Scorer {
	texts := make([]string, len(msgs))
	for i, m := range msgs {
		texts[i] = transcript.ExtractText(m)
	}
	return &Scorer{classifier: c, msgs: msgs, texts: texts}
}

// Entry classifies, scores and decays the message at index i.
func (s *Scorer) Entry(i int, p Params) ScoredEntry {
	m := s.msgs[i]
	text := s.texts[i]
	t := s.classifier.classifyText(m, text)
	age := Age(i, len(s.msgs))
	tokens := transcript.EstimateTokens(m)
	preview := transcript.Head(text, previewChars)

	importance := s.importance(i, t, age, tokens, preview)

	return ScoredEntry{
		Index:      i,
		Age:        age,
		Type:       t,
		Role:       m.Role,
		Importance: importance,
		Retention:  Retention(importance, age, t, p),
		Tokens:     tokens,
		Preview:    preview,
	}
}

// Importance returns the modified importance of the message at index i.
func (s *Scorer) Importance(i int) float64 {
	m := s.msgs[i]
	text := s.texts[i]
	t := s.classifier.classifyText(m, text)
	return s.importance(i, t, Age(i, len(s.msgs)), transcript.EstimateTokens(m), transcript.Head(text, previewChars))
}

func (s *Scorer) importance(i int, t EntryType, age, tokens int, preview string) float64 {
	importance := BaseImportance(t)

	if age < recencyWindow {
		importance = clamp01(importance + recencyBonus)
	}

	if tokens > largeTokens {
		importance = max(penaltyFloor, importance-largePenalty)
	}
	if tokens > hugeTokens {
		importance = max(penaltyFloor, importance-hugePenalty)
	}

	if s.referencedLater(i, preview) {
		importance = clamp01(importance + referenceBonus)
	}

	return importance
}

// referencedLater reports whether the opening of this message's preview
// reappears in any later message. Quadratic in sequence length.
func (s *Scorer) referencedLater(i int, preview string) bool {
	prefix := strings.TrimSpace(transcript.Head(preview, referencePrefixChars))
	if prefix == "" {
		return false
	}
	for j := i + 1; j < len(s.texts); j++ {
		if strings.Contains(s.texts[j], prefix) {
			return true
		}
	}
	return false
}

// Score returns the importance of m at position index within all.
func Score(m transcript.Message, index int, all []transcript.Message) float64 {
	if index < 0 || index >= len(all) {
		return BaseImportance(Classify(m))
	}
	msgs := append([]transcript.Message(nil), all...)
	msgs[index] = m
	return NewScorer(msgs).Importance(index)
}

func clamp01(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	}
	return v
}
