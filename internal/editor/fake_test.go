package editor

import (
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
)

// fakeEngine is an in-memory Engine with failure switches.
type fakeEngine struct {
	actors []Actor
	assets map[string]Asset
	level  LevelInfo
	vp     *fakeViewport

	noWorld     bool
	failLoad    bool
	failSave    bool
	scriptUnset bool
	script      func(code string) ScriptResult
	panicOn     string

	loaded     []string
	duplicated [][2]string
	savedDirty int
}

func newFakeEngine() *fakeEngine {
	return &fakeEngine{
		assets: map[string]Asset{
			"/Engine/Maps/Templates/Template_Default": {Path: "/Engine/Maps/Templates/Template_Default", Class: ClassWorld},
			"/Engine/BasicShapes/Cube":                {Path: "/Engine/BasicShapes/Cube", Class: ClassStaticMesh},
			"/Game/Maps/Existing":                     {Path: "/Game/Maps/Existing", Class: ClassWorld},
			"/Game/Blueprints/BP_Lamp":                {Path: "/Game/Blueprints/BP_Lamp", Class: ClassBlueprint, GeneratedClass: "BP_Lamp_C"},
		},
		level: LevelInfo{PackagePath: "/Game/Maps/Existing"},
		vp:    &fakeViewport{w: 8, h: 4},
	}
}

func (f *fakeEngine) Actors(context.Context) ([]Actor, error) {
	if f.noWorld {
		return nil, ErrNoWorld
	}
	if f.panicOn == "Actors" {
		panic("boom")
	}
	out := make([]Actor, len(f.actors))
	copy(out, f.actors)
	return out, nil
}

func (f *fakeEngine) index(name string) int {
	for i, a := range f.actors {
		if a.Name == name {
			return i
		}
	}
	return -1
}

func (f *fakeEngine) SpawnActor(_ context.Context, class, name string, xf Transform) (Actor, error) {
	a := Actor{Name: name, Label: name, Class: class, Path: "/Game/Maps/Existing." + name, Transform: xf, Properties: map[string]PropertyValue{}}
	if class == "StaticMeshActor" || class == "BP_Lamp_C" {
		a.Components = []Component{{Name: "StaticMeshComponent0", Class: ClassStaticMeshComponent}}
	}
	f.actors = append(f.actors, a)
	return a, nil
}

func (f *fakeEngine) DestroyActor(_ context.Context, name string) error {
	i := f.index(name)
	if i < 0 {
		return fmt.Errorf("no actor %s", name)
	}
	f.actors = append(f.actors[:i], f.actors[i+1:]...)
	return nil
}

func (f *fakeEngine) SetActorTransform(_ context.Context, name string, xf Transform) (Actor, error) {
	i := f.index(name)
	if i < 0 {
		return Actor{}, fmt.Errorf("no actor %s", name)
	}
	f.actors[i].Transform = xf
	return f.actors[i], nil
}

func (f *fakeEngine) SetActorProperty(_ context.Context, name, property string, value PropertyValue) (Actor, error) {
	i := f.index(name)
	if i < 0 {
		return Actor{}, fmt.Errorf("no actor %s", name)
	}
	if property != "bHidden" {
		return Actor{}, fmt.Errorf("%w: %s", ErrPropertyNotFound, property)
	}
	if value.Kind != KindBool {
		return Actor{}, fmt.Errorf("property %s expects bool, got %s", property, value.Kind)
	}
	f.actors[i].Properties[property] = value
	return f.actors[i], nil
}

func (f *fakeEngine) SetStaticMesh(_ context.Context, actor, component, meshPath string) (Actor, error) {
	i := f.index(actor)
	if i < 0 {
		return Actor{}, fmt.Errorf("no actor %s", actor)
	}
	for j := range f.actors[i].Components {
		if f.actors[i].Components[j].Name == component {
			f.actors[i].Components[j].StaticMesh = meshPath
		}
	}
	return f.actors[i], nil
}

func (f *fakeEngine) AssetExists(_ context.Context, path string) (bool, error) {
	_, ok := f.assets[path]
	return ok, nil
}

func (f *fakeEngine) LoadAsset(_ context.Context, path string) (Asset, error) {
	a, ok := f.assets[path]
	if !ok {
		return Asset{}, errors.New("asset not found")
	}
	return a, nil
}

func (f *fakeEngine) DuplicateAsset(_ context.Context, src, dst string) (string, error) {
	a, ok := f.assets[src]
	if !ok {
		return "", errors.New("asset not found")
	}
	a.Path = dst
	f.assets[dst] = a
	f.duplicated = append(f.duplicated, [2]string{src, dst})
	return dst, nil
}

func (f *fakeEngine) LoadLevel(_ context.Context, path string) error {
	if f.failLoad {
		return errors.New("load failed")
	}
	f.loaded = append(f.loaded, path)
	f.level.PackagePath = path
	return nil
}

func (f *fakeEngine) SaveCurrentLevel(context.Context) (string, error) {
	if f.noWorld {
		return "", ErrNoWorld
	}
	if f.failSave {
		return "", errors.New("disk full")
	}
	return f.level.PackagePath, nil
}

func (f *fakeEngine) SaveDirtyPackages(context.Context) (bool, error) {
	f.savedDirty++
	if f.failSave {
		return false, errors.New("disk full")
	}
	return true, nil
}

func (f *fakeEngine) CurrentLevel(context.Context) (LevelInfo, error) {
	if f.noWorld {
		return LevelInfo{}, ErrNoWorld
	}
	info := f.level
	info.ActorCount = len(f.actors)
	return info, nil
}

func (f *fakeEngine) ActiveViewport(context.Context) (Viewport, error) {
	if f.vp == nil {
		return nil, ErrNoViewport
	}
	return f.vp, nil
}

func (f *fakeEngine) RunScript(_ context.Context, code string) (ScriptResult, error) {
	if f.scriptUnset {
		return ScriptResult{}, ErrScriptingUnavailable
	}
	if f.script == nil {
		return ScriptResult{Success: true}, nil
	}
	return f.script(code), nil
}

type fakeViewport struct {
	loc         Vector
	rot         Rotator
	w, h        int
	invalidated int
}

func (v *fakeViewport) ViewLocation() Vector      { return v.loc }
func (v *fakeViewport) ViewRotation() Rotator     { return v.rot }
func (v *fakeViewport) SetViewLocation(l Vector)  { v.loc = l }
func (v *fakeViewport) SetViewRotation(r Rotator) { v.rot = r }
func (v *fakeViewport) Invalidate()               { v.invalidated++ }

func (v *fakeViewport) ReadPixels() (image.Image, error) {
	img := image.NewRGBA(image.Rect(0, 0, v.w, v.h))
	for y := 0; y < v.h; y++ {
		for x := 0; x < v.w; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x * 10), G: uint8(y * 10), B: 200, A: 255})
		}
	}
	return img, nil
}
