package render

import (
	"bytes"
	"io"
	"sync"

	"github.com/kartoza/attention-is-key/internal/attention"
)

// Tooltip is the text shown while the pointer is over a target element
type Tooltip struct {
	Target string   `json:"target"`
	Lines  []string `json:"lines"`
}

// Scene is a fully computed visualisation that can be hovered and exported
type Scene interface {
	// TooltipFor returns the tooltip for an element id
	TooltipFor(target string) (Tooltip, bool)
	// WriteSVG serialises the scene as a standalone SVG document
	WriteSVG(w io.Writer) error
}

// Surface is a mount point. It holds at most one scene and at most one
// tooltip; mounting replaces everything previously drawn.
type Surface struct {
	mu      sync.Mutex
	scene   Scene
	tooltip *Tooltip
}

// NewSurface creates an empty mount point
func NewSurface() *Surface {
	return &Surface{}
}

// Mount replaces the current scene. A nil surface or scene is a no-op that
// reports ErrRenderTargetMissing.
func (s *Surface) Mount(scene Scene) error {
	if s == nil || scene == nil {
		return attention.ErrRenderTargetMissing
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.scene = scene
	s.tooltip = nil
	return nil
}

// Scene returns the mounted scene, if any
func (s *Surface) Scene() Scene {
	if s == nil {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.scene
}

// Clear removes the scene and any tooltip
func (s *Surface) Clear() {
	if s == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.scene = nil
	s.tooltip = nil
}

// HoverEnter removes any visible tooltip and shows the one for target.
// It reports whether a tooltip is now visible.
func (s *Surface) HoverEnter(target string) bool {
	if s == nil {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tooltip = nil
	if s.scene == nil {
		return false
	}
	tip, ok := s.scene.TooltipFor(target)
	if !ok {
		return false
	}
	s.tooltip = &tip
	return true
}

// HoverExit removes the visible tooltip
func (s *Surface) HoverExit() {
	if s == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tooltip = nil
}

// Tooltips returns the visible tooltips; there is never more than one
func (s *Surface) Tooltips() []Tooltip {
	if s == nil {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.tooltip == nil {
		return nil
	}
	return []Tooltip{*s.tooltip}
}

// Export writes the mounted scene as SVG
func (s *Surface) Export() ([]byte, error) {
	scene := s.Scene()
	if scene == nil {
		return nil, attention.ErrRenderTargetMissing
	}
	var buf bytes.Buffer
	if err := scene.WriteSVG(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
