package kscreen

import (
	"errors"
	"fmt"
	"regexp"
)

// ErrInvalidOutputName is returned when an output name cannot be placed on a
// shell command line safely. Retrying does not help.
var ErrInvalidOutputName = errors.New("invalid output name")

// outputNameRe accepts DRM connector names such as eDP-1, HDMI-A-1, DP-1-2
// and Virtual-1. Dots would break the output.<name>.priority.<n> syntax.
var outputNameRe = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9_-]*$`)

// ValidateOutputName checks that name contains only safe characters.
func ValidateOutputName(name string) error {
	if name == "" {
		return fmt.Errorf("%w: empty", ErrInvalidOutputName)
	}
	if len(name) > 255 {
		return fmt.Errorf("%w: too long: %d chars", ErrInvalidOutputName, len(name))
	}
	if !outputNameRe.MatchString(name) {
		return fmt.Errorf("%w: %q", ErrInvalidOutputName, name)
	}
	return nil
}

// ValidatePriority rejects priorities the compositor would not accept.
func ValidatePriority(p int) error {
	if p < 1 {
		return fmt.Errorf("priority must be positive, got %d", p)
	}
	return nil
}
