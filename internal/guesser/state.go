package guesser

// State is the engine's position in the one-way training lifecycle. No
// transition skips a state and nothing un-finalizes; retraining requires a
// fresh engine.
type State int

const (
	StateEmpty State = iota
	StateVocabBuilding
	StateVocabFinal
	StateDocFreqScanning
	StateTrained
)

func (s State) String() string {
	switch s {
	case StateEmpty:
		return "empty"
	case StateVocabBuilding:
		return "vocab_building"
	case StateVocabFinal:
		return "vocab_final"
	case StateDocFreqScanning:
		return "docfreq_scanning"
	case StateTrained:
		return "trained"
	default:
		return "unknown"
	}
}
