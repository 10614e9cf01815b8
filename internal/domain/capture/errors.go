package capture

import "errors"

var (
	// ErrInvalidURL is returned when the requested URL fails syntax or
	// scheme validation.
	ErrInvalidURL = errors.New("invalid url")

	// ErrForbiddenTarget is returned when the target resolves to internal
	// infrastructure the renderer must not reach.
	ErrForbiddenTarget = errors.New("forbidden target")

	// ErrRenderTimeout is returned when navigation and capture exceed the
	// wall-clock budget.
	ErrRenderTimeout = errors.New("render timed out")

	// ErrExplicitContent is returned when the classifier finds disqualifying
	// content in the captured image.
	ErrExplicitContent = errors.New("explicit content detected")
)
