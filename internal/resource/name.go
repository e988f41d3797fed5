package resource

import (
	"regexp"
	"strings"
)

var namePattern = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

// ValidateName checks a user-supplied resource name and returns its
// normalized form. It never touches the filesystem.
//
// Agent names must match ^[A-Za-z0-9_-]+$ and must not start with a hyphen.
// Command names may additionally carry one leading "/" (stripped) and a
// single "namespace:name" separator; each segment follows the agent rule.
func ValidateName(kind Kind, name string) (string, error) {
	if name == "" {
		return "", &InvalidNameError{Kind: kind, Name: name, Reason: "name cannot be empty"}
	}

	clean := name
	if kind == KindCommand {
		clean = strings.TrimPrefix(clean, "/")
		if clean == "" {
			return "", &InvalidNameError{Kind: kind, Name: name, Reason: "name cannot be just '/'"}
		}
		if ns, base, ok := strings.Cut(clean, ":"); ok {
			if err := validateSegment(kind, name, ns); err != nil {
				return "", err
			}
			if err := validateSegment(kind, name, base); err != nil {
				return "", err
			}
			return clean, nil
		}
	}

	if err := validateSegment(kind, name, clean); err != nil {
		return "", err
	}
	return clean, nil
}

func validateSegment(kind Kind, name, segment string) error {
	if !namePattern.MatchString(segment) {
		return &InvalidNameError{
			Kind:   kind,
			Name:   name,
			Reason: "must contain only alphanumeric, hyphen, or underscore characters",
		}
	}
	if strings.HasPrefix(segment, "-") {
		return &InvalidNameError{Kind: kind, Name: name, Reason: "cannot start with hyphen"}
	}
	return nil
}
