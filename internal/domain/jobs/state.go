package jobs

import "fmt"

var allowedTransitions = map[Status]map[Status]struct{}{
	StatusStarted: {
		StatusExtracting: {},
		StatusFailed:     {},
	},
	StatusExtracting: {
		StatusAnalyzing: {},
		StatusFailed:    {},
	},
	StatusAnalyzing: {
		StatusGenerating: {},
		StatusFailed:     {},
	},
	StatusGenerating: {
		StatusCompleted: {},
		StatusFailed:    {},
	},
	StatusCompleted: {},
	StatusFailed:    {},
}

// IsTerminal reports whether no further transitions may follow s.
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

func ValidateStatus(s Status) error {
	if _, ok := allowedTransitions[s]; !ok {
		return fmt.Errorf("invalid job status: %q", s)
	}
	return nil
}

func ValidateTransition(from, to Status) error {
	if err := ValidateStatus(from); err != nil {
		return err
	}
	if err := ValidateStatus(to); err != nil {
		return err
	}
	if _, ok := allowedTransitions[from][to]; !ok {
		return fmt.Errorf("invalid job transition: %s -> %s", from, to)
	}
	return nil
}
