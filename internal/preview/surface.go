// Package preview models the single display surface shared by the live
// camera feed and playback of the finalized recording.
package preview

import (
	"slices"
	"sync"
	"sync/atomic"

	"github.com/UtsahaJoshi/The-New-Hires/internal/recording"
)

// Mode is what the surface currently shows.
type Mode string

const (
	ModeBlank    Mode = "blank"
	ModeLive     Mode = "live"
	ModePlayback Mode = "playback"
)

// View is an immutable snapshot of the surface.
type View struct {
	Mode Mode
	// Source names the live input while Mode is ModeLive.
	Source string
	// Artifact is set only while Mode is ModePlayback.
	Artifact *recording.Artifact
	Controls bool
	Autoplay bool
	// Generation increases by one on every swap.
	Generation uint64
}

// Surface holds the current View. Readers never observe a partially updated
// view: each swap replaces the whole snapshot.
type Surface struct {
	current atomic.Pointer[View]

	mu        sync.Mutex
	listeners []func(View)
}

// NewSurface returns a blank surface.
func NewSurface() *Surface {
	s := &Surface{}
	s.current.Store(&View{Mode: ModeBlank})
	return s
}

// Current returns the view in effect.
func (s *Surface) Current() View {
	return *s.current.Load()
}

// OnChange registers fn to run after every swap. Listeners run on the
// goroutine performing the swap.
func (s *Surface) OnChange(fn func(View)) {
	if fn == nil {
		return
	}
	s.mu.Lock()
	s.listeners = append(s.listeners, fn)
	s.mu.Unlock()
}

// ShowLive points the surface at a live input.
func (s *Surface) ShowLive(source string) View {
	return s.swap(View{Mode: ModeLive, Source: source})
}

// ShowPlayback points the surface at a finalized recording with playback
// controls enabled and autoplay on.
func (s *Surface) ShowPlayback(artifact *recording.Artifact) View {
	return s.swap(View{Mode: ModePlayback, Artifact: artifact, Controls: true, Autoplay: true})
}

// Clear blanks the surface.
func (s *Surface) Clear() View {
	return s.swap(View{Mode: ModeBlank})
}

func (s *Surface) swap(next View) View {
	s.mu.Lock()
	prev := s.current.Load()
	next.Generation = prev.Generation + 1
	s.current.Store(&next)
	listeners := slices.Clone(s.listeners)
	s.mu.Unlock()

	for _, fn := range listeners {
		fn(next)
	}
	return next
}
