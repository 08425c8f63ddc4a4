package session

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"gopkg.in/yaml.v3"
)

// ThemeStore persists the theme preference between runs.
type ThemeStore interface {
	LoadTheme() Theme
	SaveTheme(Theme) error
}

// FileThemeStore keeps the preference in a small YAML file.
type FileThemeStore struct {
	path string
	mu   sync.Mutex
}

type themeFile struct {
	Theme Theme `yaml:"theme"`
}

func NewFileThemeStore(path string) *FileThemeStore {
	return &FileThemeStore{path: path}
}

// LoadTheme returns the stored theme, or DefaultTheme when the file is
// missing or unreadable.
func (s *FileThemeStore) LoadTheme() Theme {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path)
	if err != nil {
		return DefaultTheme
	}
	var f themeFile
	if err := yaml.Unmarshal(data, &f); err != nil || !f.Theme.Valid() {
		return DefaultTheme
	}
	return f.Theme
}

func (s *FileThemeStore) SaveTheme(t Theme) error {
	if !t.Valid() {
		return errors.New("invalid theme")
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if dir := filepath.Dir(s.path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create theme directory: %w", err)
		}
	}
	data, err := yaml.Marshal(themeFile{Theme: t})
	if err != nil {
		return fmt.Errorf("encode theme: %w", err)
	}
	if err := os.WriteFile(s.path, data, 0o644); err != nil {
		return fmt.Errorf("write theme file: %w", err)
	}
	return nil
}

// MemoryThemeStore keeps the preference for the lifetime of the process.
type MemoryThemeStore struct {
	mu    sync.Mutex
	theme Theme
}

func NewMemoryThemeStore(initial Theme) *MemoryThemeStore {
	return &MemoryThemeStore{theme: initial}
}

func (s *MemoryThemeStore) LoadTheme() Theme {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.theme
}

func (s *MemoryThemeStore) SaveTheme(t Theme) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.theme = t
	return nil
}
