package permits

import (
	"errors"
	"fmt"
	"time"

	"github.com/vaxtify/vaxtifyd/internal/config"
)

// Fixed-message domain errors, following the teacher's
// internal/errors package style of sentinel vars for errors with no
// parameters (spec.md §6's error kinds PermitDoesNotExist and
// PermitIsNotActive).
var (
	ErrPermitDoesNotExist = errors.New("permit does not exist")
	ErrPermitIsNotActive  = errors.New("permit is not active")
)

// CooldownNotFinishedError reports that a permit's post-deactivation
// cooldown has not yet elapsed.
type CooldownNotFinishedError struct {
	Left time.Duration
}

func (e *CooldownNotFinishedError) Error() string {
	return fmt.Sprintf("cooldown not finished: %s remaining", e.Left.Round(time.Second))
}

// PermitExtensionRefusedError wraps a CooldownNotFinishedError raised
// while the permit is already active (the caller is trying to extend
// it rather than start it fresh) — spec.md §4.3, §9's Open Question.
type PermitExtensionRefusedError struct {
	Cause error
}

func (e *PermitExtensionRefusedError) Error() string {
	return fmt.Sprintf("permit extension refused: %v", e.Cause)
}

func (e *PermitExtensionRefusedError) Unwrap() error {
	return e.Cause
}

// CooldownAfterRestartError reports that the daemon-wide
// restart/reload safety gate for permits has not yet elapsed.
type CooldownAfterRestartError struct {
	Left time.Duration
}

func (e *CooldownAfterRestartError) Error() string {
	return fmt.Sprintf("cooldown after restart: %s remaining", e.Left.Round(time.Second))
}

// AvailableBadTimeError reports that the permit's daily availability
// window does not contain the current time.
type AvailableBadTimeError struct {
	Since, Until config.TimeOfDay
}

func (e *AvailableBadTimeError) Error() string {
	return fmt.Sprintf("available only between %02d:%02d and %02d:%02d",
		e.Since.Hour, e.Since.Min, e.Until.Hour, e.Until.Min)
}

// FormatError renders err as "<kind>: <details>" per spec.md §6, the
// shape the dbus and CLI boundaries surface to callers.
func FormatError(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrPermitDoesNotExist):
		return "PermitDoesNotExist: " + err.Error()
	case errors.Is(err, ErrPermitIsNotActive):
		return "PermitIsNotActive: " + err.Error()
	}
	var extension *PermitExtensionRefusedError
	if errors.As(err, &extension) {
		return "PermitExtensionRefused: " + err.Error()
	}
	var cooldown *CooldownNotFinishedError
	if errors.As(err, &cooldown) {
		return "CooldownNotFinished: " + err.Error()
	}
	var afterRestart *CooldownAfterRestartError
	if errors.As(err, &afterRestart) {
		return "CooldownAfterRestart: " + err.Error()
	}
	var badTime *AvailableBadTimeError
	if errors.As(err, &badTime) {
		return "AvailableBadTime: " + err.Error()
	}
	return err.Error()
}
