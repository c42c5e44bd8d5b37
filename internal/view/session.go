package view

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/kartoza/attention-is-key/internal/attention"
	"github.com/kartoza/attention-is-key/internal/evolution"
	"github.com/kartoza/attention-is-key/internal/heatmap"
	"github.com/kartoza/attention-is-key/internal/render"
)

var (
	// ErrAnalysisPending is returned when a submission arrives while another is in flight
	ErrAnalysisPending = errors.New("an analysis is already in progress")
	// ErrSessionClosed is returned for operations on a torn-down session
	ErrSessionClosed = errors.New("session closed")
)

// State is a snapshot of a session for the front-end
type State struct {
	ID        string            `json:"id"`
	Pending   bool              `json:"pending"`
	Result    *attention.Result `json:"-"`
	Layer     int               `json:"layer"`
	Error     string            `json:"error,omitempty"`
	Code      string            `json:"code,omitempty"`
	UpdatedAt time.Time         `json:"updated_at"`
}

// Session owns the view state of one visualisation page: the current
// result, the selected layer, the inline error and the two mounted charts.
type Session struct {
	id       string
	analyzer attention.Analyzer
	timeout  time.Duration

	mu        sync.Mutex
	pending   bool
	cancel    context.CancelFunc
	closed    bool
	result    *attention.Result
	layer     int
	lastErr   error
	updatedAt time.Time

	heatmap   *render.Surface
	evolution *render.Surface
}

// NewSession creates a session. A zero timeout means no per-request limit.
func NewSession(id string, analyzer attention.Analyzer, timeout time.Duration) *Session {
	return &Session{
		id:        id,
		analyzer:  analyzer,
		timeout:   timeout,
		updatedAt: time.Now(),
		heatmap:   render.NewSurface(),
		evolution: render.NewSurface(),
	}
}

// ID returns the session identifier
func (s *Session) ID() string {
	return s.id
}

// Submit runs an analysis. Only one may be in flight; on failure the
// previous result stays in place and the error is kept for display.
func (s *Session) Submit(ctx context.Context, req attention.Request) (*attention.Result, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, ErrSessionClosed
	}
	if s.pending {
		s.mu.Unlock()
		return nil, ErrAnalysisPending
	}
	var cancel context.CancelFunc
	if s.timeout > 0 {
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
	} else {
		ctx, cancel = context.WithCancel(ctx)
	}
	s.pending = true
	s.cancel = cancel
	s.updatedAt = time.Now()
	s.mu.Unlock()

	res, err := s.analyzer.Analyze(ctx, req)
	if err == nil && ctx.Err() != nil {
		// finished, but after the deadline or teardown
		err = fmt.Errorf("%w: %v", attention.ErrBackendUnavailable, ctx.Err())
	}
	if err != nil && !errors.Is(err, attention.ErrBackendUnavailable) &&
		(errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled)) {
		err = fmt.Errorf("%w: %v", attention.ErrBackendUnavailable, err)
	}
	cancel()

	s.mu.Lock()
	defer s.mu.Unlock()
	s.pending = false
	s.cancel = nil
	s.updatedAt = time.Now()

	if s.closed {
		return nil, ErrSessionClosed
	}
	if err != nil {
		s.lastErr = err
		return nil, err
	}

	s.result = res
	s.lastErr = nil
	s.layer = 0
	s.renderLocked()
	return res, nil
}

// renderLocked redraws both charts from the current result and layer
func (s *Session) renderLocked() {
	if s.result == nil {
		s.heatmap.Clear()
		s.evolution.Clear()
		return
	}
	if err := heatmap.Render(s.heatmap, s.result.Layer(s.layer), s.result.ModelName); err != nil {
		s.heatmap.Clear()
	}
	if s.result.Phrase == nil {
		s.evolution.Clear()
		return
	}
	if err := evolution.Render(s.evolution, s.result.Phrase); err != nil {
		s.evolution.Clear()
	}
}

// SelectLayer changes the displayed layer, clamped to the result's range,
// and returns the index actually selected.
func (s *Session) SelectLayer(index int) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return 0, ErrSessionClosed
	}
	if s.result == nil || len(s.result.Layers) == 0 {
		return 0, attention.ErrRenderTargetMissing
	}
	if index < 0 {
		index = 0
	}
	if last := len(s.result.Layers) - 1; index > last {
		index = last
	}
	s.layer = index
	s.updatedAt = time.Now()
	if err := heatmap.Render(s.heatmap, s.result.Layer(index), s.result.ModelName); err != nil {
		return index, err
	}
	return index, nil
}

// State returns a snapshot of the session
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := State{
		ID:        s.id,
		Pending:   s.pending,
		Result:    s.result,
		Layer:     s.layer,
		UpdatedAt: s.updatedAt,
	}
	if s.lastErr != nil {
		st.Error = s.lastErr.Error()
		st.Code = attention.Code(s.lastErr)
	}
	return st
}

// Heatmap returns the surface the attention matrix is mounted on
func (s *Session) Heatmap() *render.Surface {
	return s.heatmap
}

// Evolution returns the surface the phrase chart is mounted on
func (s *Session) Evolution() *render.Surface {
	return s.evolution
}

// ExportHeatmap returns the SVG of the current layer and its download name
func (s *Session) ExportHeatmap() (string, []byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := s.heatmap.Export()
	if err != nil {
		return "", nil, err
	}
	return heatmap.ExportFilename(s.layer), data, nil
}

// idleSince reports the last activity, and false while a request is pending
func (s *Session) idleSince() (time.Time, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.updatedAt, !s.pending
}

// Close tears the session down, cancelling any in-flight request.
// A result that arrives afterwards is discarded.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	if s.cancel != nil {
		s.cancel()
	}
	s.heatmap.Clear()
	s.evolution.Clear()
}
