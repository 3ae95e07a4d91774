package snippets

import (
	"embed"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
)

//go:embed builtin/*.lua
var builtinFS embed.FS

// Library holds the built-in snippets plus any loaded from a directory.
// Directory snippets override built-ins with the same name.
type Library struct {
	dir             string
	verifyIntegrity bool
	logger          zerolog.Logger

	mu       sync.RWMutex
	builtin  map[string]Snippet
	external map[string]Snippet

	watcher *fsnotify.Watcher
}

// New creates a Library with the built-ins loaded. dir may be empty.
func New(dir string, verifyIntegrity bool, logger zerolog.Logger) (*Library, error) {
	l := &Library{
		dir:             dir,
		verifyIntegrity: verifyIntegrity,
		logger:          logger.With().Str("component", "snippets").Logger(),
		builtin:         make(map[string]Snippet),
		external:        make(map[string]Snippet),
	}

	entries, err := fs.ReadDir(builtinFS, "builtin")
	if err != nil {
		return nil, fmt.Errorf("read builtin snippets: %w", err)
	}
	for _, e := range entries {
		data, err := fs.ReadFile(builtinFS, "builtin/"+e.Name())
		if err != nil {
			return nil, fmt.Errorf("read builtin %s: %w", e.Name(), err)
		}
		name := strings.TrimSuffix(e.Name(), ".lua")
		l.builtin[name] = Parse(name, "builtin", string(data))
	}
	return l, nil
}

// Get returns the snippet called name.
func (l *Library) Get(name string) (Snippet, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if s, ok := l.external[name]; ok {
		return s, true
	}
	s, ok := l.builtin[name]
	return s, ok
}

// List returns every available snippet sorted by name.
func (l *Library) List() []Snippet {
	l.mu.RLock()
	defer l.mu.RUnlock()
	merged := make(map[string]Snippet, len(l.builtin)+len(l.external))
	for k, v := range l.builtin {
		merged[k] = v
	}
	for k, v := range l.external {
		merged[k] = v
	}
	out := make([]Snippet, 0, len(merged))
	for _, s := range merged {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// LoadDir (re)reads every .lua file in the snippet directory. With integrity
// verification on, a missing manifest rejects all files and a mismatching
// file is skipped.
func (l *Library) LoadDir() error {
	if l.dir == "" {
		return nil
	}
	if err := os.MkdirAll(l.dir, 0o755); err != nil {
		return err
	}
	entries, err := os.ReadDir(l.dir)
	if err != nil {
		return err
	}

	var manifest *Manifest
	if l.verifyIntegrity {
		manifest, err = LoadManifest(l.dir)
		if err != nil {
			return err
		}
		if manifest == nil {
			l.logger.Error().Str("dir", l.dir).Msg("integrity verification enabled but no manifest found, skipping directory snippets")
		}
	}

	loaded := make(map[string]Snippet)
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".lua") {
			continue
		}
		if l.verifyIntegrity && manifest == nil {
			continue
		}
		path := filepath.Join(l.dir, entry.Name())
		s, err := l.readFile(path, manifest)
		if err != nil {
			l.logger.Error().Err(err).Str("file", entry.Name()).Msg("failed to load snippet")
			continue
		}
		loaded[s.Name] = s
	}

	l.mu.Lock()
	l.external = loaded
	l.mu.Unlock()

	l.logger.Info().Str("dir", l.dir).Int("count", len(loaded)).Msg("snippet directory loaded")
	return nil
}

func (l *Library) readFile(path string, manifest *Manifest) (Snippet, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Snippet{}, err
	}
	base := filepath.Base(path)
	if manifest != nil {
		if err := manifest.Verify(base, data); err != nil {
			return Snippet{}, fmt.Errorf("integrity check: %w", err)
		}
	}
	return Parse(strings.TrimSuffix(base, ".lua"), path, string(data)), nil
}

// StartWatcher watches the snippet directory and reloads changed files
// after a 500ms quiet period.
func (l *Library) StartWatcher() error {
	if l.dir == "" {
		return nil
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	if err := watcher.Add(l.dir); err != nil {
		watcher.Close()
		return err
	}
	l.watcher = watcher

	go l.watchLoop(watcher)

	l.logger.Info().Str("dir", l.dir).Msg("watching for snippet changes")
	return nil
}

// Stop closes the directory watcher.
func (l *Library) Stop() {
	if l.watcher != nil {
		l.watcher.Close()
	}
}

func (l *Library) watchLoop(watcher *fsnotify.Watcher) {
	var mu sync.Mutex
	pending := make(map[string]fsnotify.Op)
	var timer *time.Timer

	flush := func() {
		mu.Lock()
		batch := pending
		pending = make(map[string]fsnotify.Op)
		mu.Unlock()

		l.processBatch(batch)
	}

	for {
		select {
		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			mu.Lock()
			pending[event.Name] |= event.Op
			if timer != nil {
				timer.Stop()
			}
			timer = time.AfterFunc(500*time.Millisecond, flush)
			mu.Unlock()

		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			l.logger.Error().Err(err).Msg("watcher error")
		}
	}
}

func (l *Library) processBatch(batch map[string]fsnotify.Op) {
	manifestPath := filepath.Join(l.dir, ManifestFilename)
	if _, ok := batch[manifestPath]; ok {
		l.logger.Info().Msg("manifest changed, reloading all snippets")
		if err := l.LoadDir(); err != nil {
			l.logger.Error().Err(err).Msg("failed to reload snippets after manifest change")
		}
		return
	}

	var manifest *Manifest
	if l.verifyIntegrity {
		m, err := LoadManifest(l.dir)
		if err != nil || m == nil {
			l.logger.Error().Err(err).Msg("integrity verification enabled but manifest unavailable, ignoring changes")
			return
		}
		manifest = m
	}

	for path, op := range batch {
		base := filepath.Base(path)
		if !strings.HasSuffix(base, ".lua") {
			continue
		}
		name := strings.TrimSuffix(base, ".lua")

		if _, err := os.Stat(path); op&(fsnotify.Remove|fsnotify.Rename) != 0 && os.IsNotExist(err) {
			l.mu.Lock()
			delete(l.external, name)
			l.mu.Unlock()
			l.logger.Info().Str("file", base).Msg("snippet removed")
			continue
		}

		s, err := l.readFile(path, manifest)
		if err != nil {
			l.logger.Error().Err(err).Str("file", base).Msg("failed to reload snippet")
			continue
		}
		l.mu.Lock()
		l.external[name] = s
		l.mu.Unlock()
		l.logger.Info().Str("file", base).Msg("reloaded snippet")
	}
}
