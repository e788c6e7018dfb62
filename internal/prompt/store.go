// Package prompt holds the templates behind every LLM-facing
// operation. Defaults are baked into the binary with go:embed; an
// override directory can shadow individual templates, optionally with
// hot reload so prompt tuning does not require a rebuild.
package prompt

import (
	"bytes"
	"embed"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"text/template"

	"leannerd/internal/logging"

	"github.com/fsnotify/fsnotify"
)

//go:embed templates
var embeddedTemplates embed.FS

// Store renders named prompt templates.
type Store struct {
	mu        sync.RWMutex
	templates map[string]*template.Template

	overrideDir string
	watcher     *fsnotify.Watcher
	stopCh      chan struct{}
	doneCh      chan struct{}
}

// New builds a Store from the embedded defaults, then overlays any
// *.tmpl files found in overrideDir. With hotReload set, edits to the
// override directory take effect live.
func New(overrideDir string, hotReload bool) (*Store, error) {
	s := &Store{
		templates:   make(map[string]*template.Template),
		overrideDir: overrideDir,
	}

	err := fs.WalkDir(embeddedTemplates, "templates", func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !strings.HasSuffix(path, ".tmpl") {
			return nil
		}
		data, err := embeddedTemplates.ReadFile(path)
		if err != nil {
			return fmt.Errorf("failed to read embedded template %s: %w", path, err)
		}
		name := strings.TrimSuffix(filepath.Base(path), ".tmpl")
		tmpl, err := template.New(name).Parse(string(data))
		if err != nil {
			return fmt.Errorf("failed to parse embedded template %s: %w", path, err)
		}
		s.templates[name] = tmpl
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to load embedded templates: %w", err)
	}
	logging.Prompt("loaded %d embedded templates", len(s.templates))

	if overrideDir != "" {
		if err := s.loadOverrides(); err != nil {
			return nil, err
		}
		if hotReload {
			if err := s.startWatcher(); err != nil {
				return nil, err
			}
		}
	}

	return s, nil
}

// Render executes the named template with data.
func (s *Store) Render(name string, data any) (string, error) {
	s.mu.RLock()
	tmpl, ok := s.templates[name]
	s.mu.RUnlock()
	if !ok {
		return "", fmt.Errorf("unknown prompt template %q", name)
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("failed to render template %q: %w", name, err)
	}
	return buf.String(), nil
}

// Names returns the loaded template names, for diagnostics.
func (s *Store) Names() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	names := make([]string, 0, len(s.templates))
	for name := range s.templates {
		names = append(names, name)
	}
	return names
}

// Close stops the hot-reload watcher if one is running.
func (s *Store) Close() {
	if s.watcher == nil {
		return
	}
	close(s.stopCh)
	<-s.doneCh
	s.watcher.Close()
	s.watcher = nil
}

func (s *Store) loadOverrides() error {
	entries, err := os.ReadDir(s.overrideDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to read prompts dir %s: %w", s.overrideDir, err)
	}
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".tmpl") {
			continue
		}
		if err := s.loadOverrideFile(filepath.Join(s.overrideDir, entry.Name())); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) loadOverrideFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read template override %s: %w", path, err)
	}
	name := strings.TrimSuffix(filepath.Base(path), ".tmpl")
	tmpl, err := template.New(name).Parse(string(data))
	if err != nil {
		return fmt.Errorf("failed to parse template override %s: %w", path, err)
	}

	s.mu.Lock()
	s.templates[name] = tmpl
	s.mu.Unlock()

	logging.Prompt("template override loaded: %s", name)
	return nil
}

func (s *Store) startWatcher() error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create prompt watcher: %w", err)
	}
	if err := watcher.Add(s.overrideDir); err != nil {
		watcher.Close()
		return fmt.Errorf("failed to watch prompts dir %s: %w", s.overrideDir, err)
	}

	s.watcher = watcher
	s.stopCh = make(chan struct{})
	s.doneCh = make(chan struct{})
	go s.run()

	logging.Prompt("hot reload watching %s", s.overrideDir)
	return nil
}

func (s *Store) run() {
	defer close(s.doneCh)
	for {
		select {
		case <-s.stopCh:
			return
		case event, ok := <-s.watcher.Events:
			if !ok {
				return
			}
			if !strings.HasSuffix(event.Name, ".tmpl") {
				continue
			}
			if event.Op&(fsnotify.Create|fsnotify.Write) == 0 {
				continue
			}
			// A bad edit keeps the previous template in place.
			if err := s.loadOverrideFile(event.Name); err != nil {
				logging.Get(logging.CategoryPrompt).Warn("reload failed: %v", err)
			}
		case err, ok := <-s.watcher.Errors:
			if !ok {
				return
			}
			logging.Get(logging.CategoryPrompt).Error("watcher error: %v", err)
		}
	}
}
