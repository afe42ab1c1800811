package builders

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrTimeout marks errors caused by the shared deadline running out.
// Match with errors.Is so callers can tell a timeout from a fatal failure.
var ErrTimeout = errors.New("deadline exceeded")

// TimeoutError is returned when the deadline expires while waiting on a
// specific builder.
type TimeoutError struct {
	Phase     string
	BuilderID string
	Elapsed   time.Duration
}

func (e *TimeoutError) Error() string {
	if e.BuilderID != "" {
		return fmt.Sprintf("timed out after %s during %s for builder %s", e.Elapsed.Round(time.Millisecond), e.Phase, e.BuilderID)
	}
	return fmt.Sprintf("timed out after %s during %s", e.Elapsed.Round(time.Millisecond), e.Phase)
}

func (e *TimeoutError) Is(target error) bool { return target == ErrTimeout }

// ProfilesExhaustedError is returned when the deadline runs out before any
// profile yields a builder assignment.
type ProfilesExhaustedError struct {
	Profiles []string
	Elapsed  time.Duration
}

func (e *ProfilesExhaustedError) Error() string {
	return fmt.Sprintf("no builders assigned within %s, profiles tried: %s",
		e.Elapsed.Round(time.Millisecond), strings.Join(e.Profiles, ", "))
}

func (e *ProfilesExhaustedError) Is(target error) bool { return target == ErrTimeout }

// FatalStatusError is a non-retryable response from the provisioning API.
type FatalStatusError struct {
	Profile    string
	StatusCode int
	Body       string
}

func (e *FatalStatusError) Error() string {
	return fmt.Sprintf("assign for profile %q failed with status %d: %s", e.Profile, e.StatusCode, e.Body)
}

// InitFailedError is returned when a builder reports the failed status.
// The provisioning service gave up on the machine; there is nothing to retry.
type InitFailedError struct {
	BuilderID string
}

func (e *InitFailedError) Error() string {
	return fmt.Sprintf("builder %s failed to initialize", e.BuilderID)
}

// MalformedResponseError is returned when a builder reports ready but the
// payload is missing required connection material.
type MalformedResponseError struct {
	BuilderID string
	Reason    string
}

func (e *MalformedResponseError) Error() string {
	return fmt.Sprintf("builder %s reported ready with an invalid payload: %s", e.BuilderID, e.Reason)
}
