package parallel

import (
	"fmt"
	"strings"

	"github.com/subspace-cli/subspace/internal/resource"
)

// MalformedPairError reports an argument that is not an agent:task pair.
type MalformedPairError struct {
	Pair   string
	Reason string
}

func (e *MalformedPairError) Error() string {
	return fmt.Sprintf("invalid agent:task pair %q: %s", e.Pair, e.Reason)
}

// ParsePair splits "agent:task", "agent:\"task\"" or "agent:'task'". The
// agent name is validated; the task must not be empty.
func ParsePair(pair string) (string, string, error) {
	name, task, ok := strings.Cut(pair, ":")
	if !ok {
		return "", "", &MalformedPairError{Pair: pair, Reason: "expected agent:task"}
	}

	name, err := resource.ValidateName(resource.KindAgent, strings.TrimSpace(name))
	if err != nil {
		return "", "", err
	}

	task = unquote(strings.TrimSpace(task))
	if strings.TrimSpace(task) == "" {
		return "", "", &MalformedPairError{Pair: pair, Reason: fmt.Sprintf("task cannot be empty for agent %q", name)}
	}
	return name, task, nil
}

func unquote(s string) string {
	if len(s) >= 2 {
		if q := s[0]; (q == '"' || q == '\'') && s[len(s)-1] == q {
			return s[1 : len(s)-1]
		}
	}
	return s
}
