package engine

import "math"

// Decay model:
//   - retention = max(floor(type), importance × e^(−λ(type) × age))
//   - age counts back from the newest entry, which has age 0
//   - λ is per type; slow types (decision, user_intent) hold strength for
//     hundreds of turns, fast ones (tool_result, ephemeral) fall to their
//     floor within a few dozen
//   - a floor anchors its type even when importance was driven to zero
//   - importance modifiers are applied before decay, so a boosted entry
//     still decays at its type's rate

// Age returns how far index sits from the end of a sequence of length n.
func Age(index, n int) int {
	age := n - 1 - index
	if age < 0 {
		return 0
	}
	return age
}

// Retention applies exponential decay and the type's floor to importance.
func Retention(importance float64, age int, t EntryType, p Params) float64 {
	if age < 0 {
		age = 0
	}
	decayed := importance * math.Exp(-p.Rate(t)*float64(age))
	return clamp01(math.Max(p.Floor(t), decayed))
}
