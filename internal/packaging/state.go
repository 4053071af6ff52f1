package packaging

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// State is a pipeline state.
type State string

const (
	StateStaging           State = "staging"
	StateClassifying       State = "classifying"
	StateDeriving          State = "deriving"
	StateResolvingMetadata State = "resolving_metadata"
	StateBagging           State = "bagging"
	StateCompressing       State = "compressing"
	StateDelivering        State = "delivering"
	StatePurging           State = "purging"
	StateSucceeded         State = "succeeded"
	StateFailed            State = "failed"
)

// States lists every forward state in execution order, ending with succeeded.
func States() []State {
	return []State{
		StateStaging,
		StateClassifying,
		StateDeriving,
		StateResolvingMetadata,
		StateBagging,
		StateCompressing,
		StateDelivering,
		StatePurging,
		StateSucceeded,
	}
}

// Terminal reports whether s ends a run.
func (s State) Terminal() bool {
	return s == StateSucceeded || s == StateFailed
}

// Label renders the state for humans, e.g. "Resolving Metadata".
func (s State) Label() string {
	return Label(string(s))
}

// Label title-cases an underscore separated state name.
func Label(name string) string {
	name = strings.TrimSpace(strings.ReplaceAll(name, "_", " "))
	if name == "" {
		return ""
	}
	return cases.Title(language.English).String(name)
}
