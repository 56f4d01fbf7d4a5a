// Package settings holds the user-configurable printer settings and their
// persistence contract.
package settings

import (
	"context"
	"fmt"
	"sync"
)

// Settings is an immutable snapshot of printer configuration. Each print call
// receives a copy; updates go through a Store.
type Settings struct {
	Enabled     bool    `json:"enabled"`
	Autoprint   bool    `json:"autoprint"`
	PrinterName string  `json:"printer_name"`
	PaperWidth  int     `json:"paper_width"`
	FontSize    int     `json:"font_size"`
	LineSpacing float64 `json:"line_spacing"`
	CutPaper    bool    `json:"cut_paper"`
	OpenDrawer  bool    `json:"open_drawer"`
	Copies      int     `json:"copies"`
}

// Default returns the settings used before the user has saved anything.
func Default() Settings {
	return Settings{
		Enabled:     true,
		Autoprint:   true,
		PaperWidth:  80,
		FontSize:    12,
		LineSpacing: 1.2,
		CutPaper:    true,
		OpenDrawer:  false,
		Copies:      1,
	}
}

// Validate rejects settings that the pipeline cannot honour.
func (s Settings) Validate() error {
	if s.PaperWidth != 58 && s.PaperWidth != 80 {
		return fmt.Errorf("paper_width must be 58 or 80, got %d", s.PaperWidth)
	}
	if s.Copies < 1 {
		return fmt.Errorf("copies must be at least 1, got %d", s.Copies)
	}
	return nil
}

// Store persists settings across daemon restarts.
type Store interface {
	Load(ctx context.Context) (Settings, error)
	Save(ctx context.Context, s Settings) error
}

// MemoryStore is a process-local Store used when no database is configured
// and in tests.
type MemoryStore struct {
	mu sync.Mutex
	s  Settings
}

// NewMemoryStore returns a MemoryStore seeded with defaults.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{s: Default()}
}

func (m *MemoryStore) Load(_ context.Context) (Settings, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.s, nil
}

func (m *MemoryStore) Save(_ context.Context, s Settings) error {
	if err := s.Validate(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.s = s
	return nil
}
