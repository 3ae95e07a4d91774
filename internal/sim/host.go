// Package sim is an in-process editor host implementing editor.Engine. It
// keeps one editor world in memory and persists packages in SQLite.
package sim

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/sekia-ai/edbridge/internal/editor"
)

// Config controls the simulated host.
type Config struct {
	// StorePath is the SQLite file for packages. Empty keeps them in memory.
	StorePath  string
	StartLevel string
	// Headless hosts have no viewport.
	Headless         bool
	ViewportWidth    int
	ViewportHeight   int
	ScriptingEnabled bool
	ScriptTimeout    time.Duration
}

// DefaultConfig returns a scripting-enabled in-memory host.
func DefaultConfig() Config {
	return Config{
		StartLevel:       DefaultLevel,
		ViewportWidth:    640,
		ViewportHeight:   360,
		ScriptingEnabled: true,
		ScriptTimeout:    10 * time.Second,
	}
}

type world struct {
	level     string
	actors    []editor.Actor
	dirty     bool
	streaming []editor.StreamingLevel
}

// Host is the simulated editor. It is safe for concurrent use.
type Host struct {
	mu        sync.Mutex
	cfg       Config
	store     *Store
	logger    zerolog.Logger
	world     *world
	selection []string
	viewport  *Viewport
}

var _ editor.Engine = (*Host)(nil)

// New opens the package store, seeds it and loads cfg.StartLevel, creating it
// from the template level when it does not exist yet.
func New(ctx context.Context, cfg Config, logger zerolog.Logger) (*Host, error) {
	store, err := OpenStore(cfg.StorePath)
	if err != nil {
		return nil, err
	}
	if err := store.seed(ctx, seedPackages()); err != nil {
		store.Close()
		return nil, err
	}

	h := &Host{
		cfg:    cfg,
		store:  store,
		logger: logger.With().Str("component", "sim").Logger(),
	}
	if !cfg.Headless {
		h.viewport = newViewport(h, cfg.ViewportWidth, cfg.ViewportHeight)
	}

	if cfg.StartLevel != "" {
		exists, err := store.Exists(ctx, cfg.StartLevel)
		if err != nil {
			store.Close()
			return nil, err
		}
		if !exists {
			if err := store.Duplicate(ctx, TemplateLevel, cfg.StartLevel); err != nil {
				store.Close()
				return nil, fmt.Errorf("create start level: %w", err)
			}
		}
		if err := h.LoadLevel(ctx, cfg.StartLevel); err != nil {
			store.Close()
			return nil, err
		}
	}

	h.logger.Info().
		Str("level", cfg.StartLevel).
		Bool("scripting", cfg.ScriptingEnabled).
		Bool("headless", cfg.Headless).
		Msg("simulated editor ready")
	return h, nil
}

// Close releases the package store.
func (h *Host) Close() error {
	return h.store.Close()
}

// Store exposes the package store.
func (h *Host) Store() *Store {
	return h.store
}

func cloneActor(a editor.Actor) editor.Actor {
	out := a
	out.Components = append([]editor.Component(nil), a.Components...)
	out.Properties = make(map[string]editor.PropertyValue, len(a.Properties))
	for k, v := range a.Properties {
		out.Properties[k] = v
	}
	return out
}

func (h *Host) indexLocked(name string) int {
	for i, a := range h.world.actors {
		if a.Name == name {
			return i
		}
	}
	return -1
}

func actorPath(level, name string) string {
	return fmt.Sprintf("%s.%s:PersistentLevel.%s", level, path.Base(level), name)
}

func (h *Host) Actors(_ context.Context) ([]editor.Actor, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.actorsLocked()
}

func (h *Host) actorsLocked() ([]editor.Actor, error) {
	if h.world == nil {
		return nil, editor.ErrNoWorld
	}
	out := make([]editor.Actor, len(h.world.actors))
	for i, a := range h.world.actors {
		out[i] = cloneActor(a)
	}
	return out, nil
}

func (h *Host) SpawnActor(ctx context.Context, class, name string, xf editor.Transform) (editor.Actor, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.spawnLocked(ctx, class, name, xf)
}

func (h *Host) spawnLocked(ctx context.Context, class, name string, xf editor.Transform) (editor.Actor, error) {
	if h.world == nil {
		return editor.Actor{}, editor.ErrNoWorld
	}
	if strings.TrimSpace(name) == "" {
		return editor.Actor{}, fmt.Errorf("actor name is required")
	}
	if h.indexLocked(name) >= 0 {
		return editor.Actor{}, fmt.Errorf("actor %s already exists", name)
	}

	a := editor.Actor{
		Name:      name,
		Label:     name,
		Class:     class,
		Path:      actorPath(h.world.level, name),
		Transform: xf,
	}

	switch {
	case classProps[class] != nil:
		a.Components = builtinComponents(class)
		a.Properties = defaultProperties(schemaFor(class), name)
	case strings.HasSuffix(class, blueprintClass):
		bp, err := h.blueprintForClass(ctx, class)
		if err != nil {
			return editor.Actor{}, err
		}
		for _, c := range bp.Components {
			a.Components = append(a.Components, editor.Component(c))
		}
		schema := schemaFor(bp.ParentClass)
		a.Properties = defaultProperties(schema, name)
		for k, raw := range bp.Properties {
			if err := h.applyProperty(&a, schema, k, raw); err != nil {
				h.logger.Warn().Err(err).Str("class", class).Msg("ignoring blueprint default")
			}
		}
	default:
		return editor.Actor{}, fmt.Errorf("unknown actor class %s", class)
	}

	h.world.actors = append(h.world.actors, a)
	h.world.dirty = true
	return cloneActor(a), nil
}

func (h *Host) applyProperty(a *editor.Actor, schema map[string]propSpec, name string, raw any) error {
	value, err := editor.PropertyValueFromJSON(raw)
	if err != nil {
		return err
	}
	key, spec, ok := lookupProp(schema, name)
	if !ok {
		return fmt.Errorf("%w: %s", editor.ErrPropertyNotFound, name)
	}
	v, err := coerce(key, spec, value)
	if err != nil {
		return err
	}
	a.Properties[key] = v
	return nil
}

func builtinComponents(class string) []editor.Component {
	switch class {
	case "StaticMeshActor":
		return []editor.Component{{Name: "StaticMeshComponent0", Class: editor.ClassStaticMeshComponent}}
	case "PointLight":
		return []editor.Component{{Name: "LightComponent0", Class: "PointLightComponent"}}
	case "SpotLight":
		return []editor.Component{{Name: "LightComponent0", Class: "SpotLightComponent"}}
	case "DirectionalLight":
		return []editor.Component{{Name: "LightComponent0", Class: "DirectionalLightComponent"}}
	case "CameraActor":
		return []editor.Component{{Name: "CameraComponent", Class: "CameraComponent"}}
	default:
		return nil
	}
}

// blueprintForClass resolves a generated class such as BP_Lamp_C to its
// blueprint anywhere under /Game/Blueprints.
func (h *Host) blueprintForClass(ctx context.Context, class string) (blueprintData, error) {
	rec, err := h.store.Get(ctx, editor.BlueprintRoot+strings.TrimSuffix(class, blueprintClass))
	if err == nil {
		if bp, err := decodeBlueprint(rec.Data); err == nil && bp.GeneratedClass == class {
			return bp, nil
		}
	} else if !errors.Is(err, ErrAssetNotFound) {
		return blueprintData{}, fmt.Errorf("resolve class %s: %w", class, err)
	}

	recs, err := h.store.List(ctx, editor.BlueprintRoot)
	if err != nil {
		return blueprintData{}, fmt.Errorf("resolve class %s: %w", class, err)
	}
	for _, rec := range recs {
		if rec.Class != editor.ClassBlueprint {
			continue
		}
		bp, err := decodeBlueprint(rec.Data)
		if err != nil {
			continue
		}
		if bp.GeneratedClass == class {
			return bp, nil
		}
	}
	return blueprintData{}, fmt.Errorf("resolve class %s: %w: no blueprint generates it", class, ErrAssetNotFound)
}

// schemaOf returns the property schema of an existing actor.
func (h *Host) schemaOf(ctx context.Context, a editor.Actor) map[string]propSpec {
	if strings.HasSuffix(a.Class, blueprintClass) {
		if bp, err := h.blueprintForClass(ctx, a.Class); err == nil {
			return schemaFor(bp.ParentClass)
		}
	}
	return schemaFor(a.Class)
}

func (h *Host) DestroyActor(_ context.Context, name string) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.destroyLocked(name)
}

func (h *Host) destroyLocked(name string) error {
	if h.world == nil {
		return editor.ErrNoWorld
	}
	i := h.indexLocked(name)
	if i < 0 {
		return fmt.Errorf("actor %s not found", name)
	}
	h.world.actors = append(h.world.actors[:i], h.world.actors[i+1:]...)
	h.world.dirty = true

	sel := h.selection[:0]
	for _, s := range h.selection {
		if s != name {
			sel = append(sel, s)
		}
	}
	h.selection = sel
	return nil
}

func (h *Host) SetActorTransform(_ context.Context, name string, xf editor.Transform) (editor.Actor, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.world == nil {
		return editor.Actor{}, editor.ErrNoWorld
	}
	i := h.indexLocked(name)
	if i < 0 {
		return editor.Actor{}, fmt.Errorf("actor %s not found", name)
	}
	h.world.actors[i].Transform = xf
	h.world.dirty = true
	return cloneActor(h.world.actors[i]), nil
}

func (h *Host) SetActorProperty(ctx context.Context, name, property string, value editor.PropertyValue) (editor.Actor, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.world == nil {
		return editor.Actor{}, editor.ErrNoWorld
	}
	i := h.indexLocked(name)
	if i < 0 {
		return editor.Actor{}, fmt.Errorf("actor %s not found", name)
	}

	a := &h.world.actors[i]
	key, spec, ok := lookupProp(h.schemaOf(ctx, *a), property)
	if !ok {
		return editor.Actor{}, fmt.Errorf("%w: %s", editor.ErrPropertyNotFound, property)
	}
	v, err := coerce(key, spec, value)
	if err != nil {
		return editor.Actor{}, err
	}
	a.Properties[key] = v
	if key == "ActorLabel" {
		a.Label = v.String
	}
	h.world.dirty = true
	return cloneActor(*a), nil
}

func (h *Host) SetStaticMesh(ctx context.Context, actor, component, meshPath string) (editor.Actor, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.world == nil {
		return editor.Actor{}, editor.ErrNoWorld
	}
	i := h.indexLocked(actor)
	if i < 0 {
		return editor.Actor{}, fmt.Errorf("actor %s not found", actor)
	}

	rec, err := h.store.Get(ctx, meshPath)
	if err != nil {
		return editor.Actor{}, err
	}
	if rec.Class != editor.ClassStaticMesh {
		return editor.Actor{}, fmt.Errorf("%s is a %s, not a static mesh", rec.Path, rec.Class)
	}

	a := &h.world.actors[i]
	for j := range a.Components {
		if a.Components[j].Name == component && a.Components[j].Class == editor.ClassStaticMeshComponent {
			a.Components[j].StaticMesh = rec.Path
			h.world.dirty = true
			return cloneActor(*a), nil
		}
	}
	return editor.Actor{}, fmt.Errorf("component %s not found on %s", component, actor)
}

func (h *Host) AssetExists(ctx context.Context, path string) (bool, error) {
	return h.store.Exists(ctx, path)
}

func (h *Host) LoadAsset(ctx context.Context, path string) (editor.Asset, error) {
	rec, err := h.store.Get(ctx, path)
	if err != nil {
		return editor.Asset{}, err
	}
	asset := editor.Asset{Path: rec.Path, Class: rec.Class}
	if rec.Class == editor.ClassBlueprint {
		bp, err := decodeBlueprint(rec.Data)
		if err != nil {
			return editor.Asset{}, err
		}
		asset.GeneratedClass = bp.GeneratedClass
	}
	return asset, nil
}

func (h *Host) DuplicateAsset(ctx context.Context, src, dst string) (string, error) {
	if err := h.store.Duplicate(ctx, src, dst); err != nil {
		return "", err
	}
	return NormalizeAssetPath(dst), nil
}

func (h *Host) LoadLevel(ctx context.Context, levelPath string) error {
	rec, err := h.store.Get(ctx, levelPath)
	if err != nil {
		return err
	}
	if rec.Class != editor.ClassWorld {
		return fmt.Errorf("%s is a %s, not a level", rec.Path, rec.Class)
	}
	data, err := decodeLevel(rec.Data)
	if err != nil {
		return err
	}

	w := &world{level: rec.Path}
	for _, sa := range data.Actors {
		a := editor.Actor{
			Name:  sa.Name,
			Label: sa.Label,
			Class: sa.Class,
			Path:  actorPath(rec.Path, sa.Name),
			Transform: editor.Transform{
				Location: editor.Vector{X: sa.Location[0], Y: sa.Location[1], Z: sa.Location[2]},
				Rotation: editor.Rotator{Pitch: sa.Rotation[0], Yaw: sa.Rotation[1], Roll: sa.Rotation[2]},
				Scale:    editor.Vector{X: sa.Scale[0], Y: sa.Scale[1], Z: sa.Scale[2]},
			},
		}
		for _, c := range sa.Components {
			a.Components = append(a.Components, editor.Component(c))
		}
		schema := h.schemaOf(ctx, a)
		a.Properties = defaultProperties(schema, a.Label)
		for k, raw := range sa.Properties {
			if err := h.applyProperty(&a, schema, k, raw); err != nil {
				h.logger.Warn().Err(err).Str("actor", a.Name).Msg("ignoring stored property")
			}
		}
		w.actors = append(w.actors, a)
	}
	for _, sl := range data.Streaming {
		w.streaming = append(w.streaming, editor.StreamingLevel(sl))
	}

	h.mu.Lock()
	h.world = w
	h.selection = nil
	h.mu.Unlock()

	h.logger.Info().Str("level", rec.Path).Int("actors", len(w.actors)).Msg("level loaded")
	return nil
}

func (h *Host) SaveCurrentLevel(ctx context.Context) (string, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.world == nil {
		return "", editor.ErrNoWorld
	}
	if err := h.saveLocked(ctx); err != nil {
		return "", err
	}
	return h.world.level, nil
}

func (h *Host) saveLocked(ctx context.Context) error {
	data, err := encodeLevel(h.world.actors, h.world.streaming)
	if err != nil {
		return fmt.Errorf("encode level: %w", err)
	}
	if err := h.store.Put(ctx, Record{Path: h.world.level, Class: editor.ClassWorld, Data: data}); err != nil {
		return err
	}
	h.world.dirty = false
	return nil
}

func (h *Host) SaveDirtyPackages(ctx context.Context) (bool, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.world == nil || !h.world.dirty {
		return true, nil
	}
	if err := h.saveLocked(ctx); err != nil {
		return false, err
	}
	return true, nil
}

func (h *Host) CurrentLevel(_ context.Context) (editor.LevelInfo, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.levelInfoLocked()
}

func (h *Host) levelInfoLocked() (editor.LevelInfo, error) {
	if h.world == nil {
		return editor.LevelInfo{}, editor.ErrNoWorld
	}
	return editor.LevelInfo{
		PackagePath: h.world.level,
		ActorCount:  len(h.world.actors),
		Dirty:       h.world.dirty,
		Streaming:   append([]editor.StreamingLevel(nil), h.world.streaming...),
	}, nil
}

// AddStreamingLevel attaches a sub-level to the persistent level.
func (h *Host) AddStreamingLevel(pkg string, loaded, visible bool) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.world == nil {
		return editor.ErrNoWorld
	}
	h.world.streaming = append(h.world.streaming, editor.StreamingLevel{Package: pkg, Loaded: loaded, Visible: visible})
	h.world.dirty = true
	return nil
}

// CloseWorld unloads the current level, leaving the host without a world.
func (h *Host) CloseWorld() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.world = nil
	h.selection = nil
}

func (h *Host) ActiveViewport(_ context.Context) (editor.Viewport, error) {
	if h.viewport == nil {
		return nil, editor.ErrNoViewport
	}
	return h.viewport, nil
}

// Selection returns the selected actor names in selection order.
func (h *Host) Selection() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]string(nil), h.selection...)
}

// SelectActors replaces the selection. Unknown names are skipped; the
// number of selected actors is returned.
func (h *Host) SelectActors(names []string) (int, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.selectLocked(names)
}

func (h *Host) selectLocked(names []string) (int, error) {
	if h.world == nil {
		return 0, editor.ErrNoWorld
	}
	h.selection = h.selection[:0]
	seen := make(map[string]bool, len(names))
	for _, n := range names {
		if seen[n] || h.indexLocked(n) < 0 {
			continue
		}
		seen[n] = true
		h.selection = append(h.selection, n)
	}
	return len(h.selection), nil
}
