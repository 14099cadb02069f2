package engine

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"
)

// EntryType is the semantic category of a conversational entry.
type EntryType string

const (
	TypeToolResult EntryType = "tool_result"
	TypeDecision   EntryType = "decision"
	TypeUserIntent EntryType = "user_intent"
	TypeEphemeral  EntryType = "ephemeral"
	TypeContext    EntryType = "context"
	TypeUnknown    EntryType = "unknown"
)

// EntryTypes lists every type in the order the decay table is rendered.
var EntryTypes = []EntryType{
	TypeDecision,
	TypeUserIntent,
	TypeContext,
	TypeToolResult,
	TypeEphemeral,
	TypeUnknown,
}

// ParseEntryType maps a configuration key to an EntryType.
func ParseEntryType(s string) (EntryType, error) {
	t := EntryType(strings.TrimSpace(s))
	for _, known := range EntryTypes {
		if t == known {
			return t, nil
		}
	}
	return "", fmt.Errorf("unknown entry type %q", s)
}

// ScoredEntry is one message after classification, scoring and decay.
type ScoredEntry struct {
	Index      int       `json:"index"`
	Age        int       `json:"age"`
	Type       EntryType `json:"type"`
	Role       string    `json:"role"`
	Importance float64   `json:"importance"`
	Retention  float64   `json:"retention"`
	Tokens     int       `json:"tokens"`
	Preview    string    `json:"preview"`
}

// DefaultDecayRate applies to types missing from Params.DecayRates.
const DefaultDecayRate = 0.15

// ErrInvalidParams is wrapped by every Params validation failure.
var ErrInvalidParams = errors.New("invalid compaction params")

// Params is the resolved configuration for one compaction pass. Treat it as
// a value: Compact clones the maps before reading them.
type Params struct {
	DecayRates           map[EntryType]float64
	SparseThreshold      float64
	CompressThreshold    float64
	RetentionFloor       map[EntryType]float64
	MaxSparseIndexTokens int
}

// DefaultParams returns the stock decay table and thresholds.
func DefaultParams() Params {
	return Params{
		DecayRates: map[EntryType]float64{
			TypeDecision:   0.03,
			TypeUserIntent: 0.05,
			TypeContext:    0.12,
			TypeToolResult: 0.20,
			TypeEphemeral:  0.35,
			TypeUnknown:    0.15,
		},
		SparseThreshold:   0.25,
		CompressThreshold: 0.65,
		RetentionFloor: map[EntryType]float64{
			TypeDecision:   0.50,
			TypeUserIntent: 0.35,
		},
		MaxSparseIndexTokens: 2500,
	}
}

// Validate rejects parameter sets the pipeline cannot honour.
func (p Params) Validate() error {
	for _, t := range sortedKeys(p.DecayRates) {
		rate := p.DecayRates[t]
		if math.IsNaN(rate) || math.IsInf(rate, 0) || rate <= 0 {
			return fmt.Errorf("%w: decay rate for %s must be positive, got %v", ErrInvalidParams, t, rate)
		}
	}
	if !unit(p.SparseThreshold) {
		return fmt.Errorf("%w: sparse threshold %v outside [0,1]", ErrInvalidParams, p.SparseThreshold)
	}
	if !unit(p.CompressThreshold) {
		return fmt.Errorf("%w: compress threshold %v outside [0,1]", ErrInvalidParams, p.CompressThreshold)
	}
	if p.SparseThreshold >= p.CompressThreshold {
		return fmt.Errorf("%w: sparse threshold %v must be below compress threshold %v",
			ErrInvalidParams, p.SparseThreshold, p.CompressThreshold)
	}
	for _, t := range sortedKeys(p.RetentionFloor) {
		if f := p.RetentionFloor[t]; !unit(f) {
			return fmt.Errorf("%w: retention floor for %s %v outside [0,1]", ErrInvalidParams, t, f)
		}
	}
	if p.MaxSparseIndexTokens <= 0 {
		return fmt.Errorf("%w: max sparse index tokens must be positive, got %d", ErrInvalidParams, p.MaxSparseIndexTokens)
	}
	return nil
}

// Rate returns λ for t.
func (p Params) Rate(t EntryType) float64 {
	if rate, ok := p.DecayRates[t]; ok {
		return rate
	}
	return DefaultDecayRate
}

// Floor returns the retention floor for t, 0 when unmapped.
func (p Params) Floor(t EntryType) float64 {
	return p.RetentionFloor[t]
}

// Clone returns a copy that shares no maps with p.
func (p Params) Clone() Params {
	out := p
	out.DecayRates = make(map[EntryType]float64, len(p.DecayRates))
	for k, v := range p.DecayRates {
		out.DecayRates[k] = v
	}
	out.RetentionFloor = make(map[EntryType]float64, len(p.RetentionFloor))
	for k, v := range p.RetentionFloor {
		out.RetentionFloor[k] = v
	}
	return out
}

func unit(v float64) bool {
	return !math.IsNaN(v) && v >= 0 && v <= 1
}

func sortedKeys(m map[EntryType]float64) []EntryType {
	keys := make([]EntryType, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}
