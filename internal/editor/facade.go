package editor

import (
	"context"
	"errors"
	"image"
)

// Precondition failures reported by an Engine.
var (
	ErrNoWorld              = errors.New("no editor world")
	ErrNoViewport           = errors.New("no active viewport")
	ErrScriptingUnavailable = errors.New("scripting plugin not available")
	ErrPropertyNotFound     = errors.New("property not found")
)

// Engine is the editor host as seen by command handlers. Implementations own
// all world, asset, level and viewport state; handlers only reference it by
// name or package path.
type Engine interface {
	// Actors returns every actor in the current editor world, in level order.
	Actors(ctx context.Context) ([]Actor, error)
	SpawnActor(ctx context.Context, class, name string, xf Transform) (Actor, error)
	DestroyActor(ctx context.Context, name string) error
	SetActorTransform(ctx context.Context, name string, xf Transform) (Actor, error)
	SetActorProperty(ctx context.Context, name, property string, value PropertyValue) (Actor, error)
	SetStaticMesh(ctx context.Context, actor, component, meshPath string) (Actor, error)

	AssetExists(ctx context.Context, path string) (bool, error)
	LoadAsset(ctx context.Context, path string) (Asset, error)
	// DuplicateAsset copies src to dst and returns the new package path.
	DuplicateAsset(ctx context.Context, src, dst string) (string, error)

	LoadLevel(ctx context.Context, path string) error
	// SaveCurrentLevel saves the persistent level and returns its package path.
	SaveCurrentLevel(ctx context.Context) (string, error)
	SaveDirtyPackages(ctx context.Context) (bool, error)
	CurrentLevel(ctx context.Context) (LevelInfo, error)

	ActiveViewport(ctx context.Context) (Viewport, error)

	RunScript(ctx context.Context, code string) (ScriptResult, error)
}

// Viewport is the active level editor viewport.
type Viewport interface {
	ViewLocation() Vector
	ViewRotation() Rotator
	SetViewLocation(Vector)
	SetViewRotation(Rotator)
	// Invalidate requests a redraw after the camera moved.
	Invalidate()
	ReadPixels() (image.Image, error)
}

// Asset is a loaded package from the engine's asset registry.
type Asset struct {
	Path  string
	Class string
	// GeneratedClass is the spawnable class of a Blueprint asset.
	GeneratedClass string
}

// Asset classes the handlers care about.
const (
	ClassWorld      = "World"
	ClassStaticMesh = "StaticMesh"
	ClassBlueprint  = "Blueprint"

	ClassStaticMeshComponent = "StaticMeshComponent"
)

// LevelInfo describes the persistent level of the editor world.
type LevelInfo struct {
	PackagePath string
	ActorCount  int
	Dirty       bool
	Streaming   []StreamingLevel
}

// StreamingLevel is one sub-level attached to the persistent level.
type StreamingLevel struct {
	Package string
	Loaded  bool
	Visible bool
}

// ScriptLogType classifies one line of script output.
type ScriptLogType int

const (
	ScriptInfo ScriptLogType = iota
	ScriptWarning
	ScriptError
)

// ScriptLogEntry is one line written by an executed script.
type ScriptLogEntry struct {
	Type   ScriptLogType
	Output string
}

// ScriptResult is the outcome of RunScript. A script that raised an error is
// reported with Success false, not with a Go error.
type ScriptResult struct {
	Success bool
	Log     []ScriptLogEntry
	// CommandResult holds the script's return value or its error trace.
	CommandResult string
}
