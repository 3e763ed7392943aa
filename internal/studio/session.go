package studio

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/raine/virtual-fitting-room/internal/fitting"
	"github.com/raine/virtual-fitting-room/internal/llm"
)

var (
	ErrSessionNotFound = errors.New("session not found")
	// ErrStaleResult is returned when the session changed while a fitting
	// was in flight. The late result has been discarded.
	ErrStaleResult = errors.New("session changed while fitting was in progress")
)

type modelPhoto struct {
	id       string
	image    fitting.Image
	analysis *fitting.ModelAnalysis
}

// Session is one user's fitting room: a model photo, an outfit and the
// derived prompt and renderings. Every user-visible mutation bumps the
// revision; results computed against an older revision are dropped.
type Session struct {
	ID string

	mu        sync.Mutex
	revision  uint64
	model     *modelPhoto
	outfit    *fitting.Outfit
	prompt    string
	rendering *llm.Rendering
	poses     []llm.PoseVariant
	updatedAt time.Time
}

// Snapshot is a consistent copy of a session's state.
type Snapshot struct {
	ID            string
	Revision      uint64
	ModelImageID  string
	ModelImage    fitting.Image
	ModelAnalysis *fitting.ModelAnalysis
	Items         []fitting.ClothingItem
	Prompt        string
	Rendering     *llm.Rendering
	Poses         []llm.PoseVariant
	UpdatedAt     time.Time
}

// HasModel reports whether a model image is present.
func (s Snapshot) HasModel() bool {
	return s.ModelImageID != ""
}

func newSession(now time.Time) *Session {
	return &Session{
		ID:        uuid.NewString(),
		outfit:    fitting.NewOutfit(),
		updatedAt: now,
	}
}

// touch must be called with mu held.
func (s *Session) touch(bump bool) {
	if bump {
		s.revision++
	}
	s.updatedAt = time.Now()
}

// Snapshot returns a copy of the current state.
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := Snapshot{
		ID:        s.ID,
		Revision:  s.revision,
		Items:     s.outfit.Items(),
		Prompt:    s.prompt,
		Rendering: s.rendering,
		Poses:     append([]llm.PoseVariant(nil), s.poses...),
		UpdatedAt: s.updatedAt,
	}
	if s.model != nil {
		snap.ModelImageID = s.model.id
		snap.ModelImage = s.model.image
		snap.ModelAnalysis = s.model.analysis
	}
	return snap
}

// Revision returns the current revision.
func (s *Session) Revision() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.revision
}

// LastActive returns the time of the last change.
func (s *Session) LastActive() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.updatedAt
}

// SetModelImage replaces the model photo. Its analysis, the prompt and any
// renderings are discarded.
func (s *Session) SetModelImage(img fitting.Image) string {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.model = &modelPhoto{id: uuid.NewString(), image: img}
	s.prompt = ""
	s.rendering = nil
	s.poses = nil
	s.touch(true)
	return s.model.id
}

// PutItem places a garment in slot, replacing whatever was there. The
// prompt and the last rendering are dropped.
func (s *Session) PutItem(slot fitting.BodyRegion, img fitting.Image, modifier string) (fitting.ClothingItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	item := fitting.ClothingItem{
		ID:       uuid.NewString(),
		Slot:     slot,
		Image:    img,
		Modifier: modifier,
	}
	if _, err := s.outfit.Put(item); err != nil {
		return fitting.ClothingItem{}, err
	}
	s.prompt = ""
	s.rendering = nil
	s.poses = nil
	s.touch(true)
	return item, nil
}

// SetModifier updates the free-text override of the garment in slot.
func (s *Session) SetModifier(slot fitting.BodyRegion, modifier string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.outfit.SetModifier(slot, modifier); err != nil {
		return err
	}
	s.prompt = ""
	s.touch(true)
	return nil
}

// RemoveItem removes the garment in slot.
func (s *Session) RemoveItem(slot fitting.BodyRegion) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.outfit.Remove(slot) {
		return fitting.ErrSlotEmpty
	}
	s.prompt = ""
	s.touch(true)
	return nil
}

// ResetClothing clears the outfit and everything derived from it but keeps
// the model photo and its analysis.
func (s *Session) ResetClothing() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.outfit.Clear()
	s.prompt = ""
	s.rendering = nil
	s.poses = nil
	s.touch(true)
}

// Reset clears the whole session.
func (s *Session) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.model = nil
	s.outfit.Clear()
	s.prompt = ""
	s.rendering = nil
	s.poses = nil
	s.touch(true)
}

// attachModelAnalysis stores analysis if modelID is still the current photo.
func (s *Session) attachModelAnalysis(modelID string, analysis *fitting.ModelAnalysis) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.model == nil || s.model.id != modelID {
		return false
	}
	s.model.analysis = analysis
	return true
}

// attachItemAnalysis stores analysis if the item is still in the outfit.
func (s *Session) attachItemAnalysis(itemID string, analysis *fitting.ClothingAnalysis) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.outfit.AttachAnalysis(itemID, analysis)
}

// storePrompt keeps prompt if the session is still at revision.
func (s *Session) storePrompt(revision uint64, prompt string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.revision != revision {
		return false
	}
	s.prompt = prompt
	return true
}

func (s *Session) storeRendering(revision uint64, rendering *llm.Rendering) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.revision != revision {
		return false
	}
	s.rendering = rendering
	s.poses = nil
	return true
}

func (s *Session) storePoses(revision uint64, poses []llm.PoseVariant) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.revision != revision {
		return false
	}
	s.poses = poses
	return true
}
