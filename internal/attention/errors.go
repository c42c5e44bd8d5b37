package attention

import "errors"

var (
	// ErrInvalidModel is returned for a model id missing from the catalog
	ErrInvalidModel = errors.New("invalid model")
	// ErrEmptyInput is returned when the text is blank
	ErrEmptyInput = errors.New("empty input")
	// ErrBackendUnavailable is returned when inference failed or timed out
	ErrBackendUnavailable = errors.New("backend unavailable")
	// ErrRenderTargetMissing is returned when rendering has nothing to draw into or from
	ErrRenderTargetMissing = errors.New("render target missing")
)

// Code returns a stable machine-readable code for an analysis error
func Code(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrInvalidModel):
		return "invalid_model"
	case errors.Is(err, ErrEmptyInput):
		return "empty_input"
	case errors.Is(err, ErrBackendUnavailable):
		return "backend_unavailable"
	case errors.Is(err, ErrRenderTargetMissing):
		return "render_target_missing"
	default:
		return "internal"
	}
}
