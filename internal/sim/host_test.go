package sim

import (
	"bytes"
	"context"
	"errors"
	"image/png"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/sekia-ai/edbridge/internal/editor"
)

func newTestHost(t *testing.T) *Host {
	t.Helper()
	h, err := New(context.Background(), DefaultConfig(), zerolog.Nop())
	if err != nil {
		t.Fatalf("new host: %v", err)
	}
	t.Cleanup(func() { h.Close() })
	return h
}

func TestNew_StartLevelFromTemplate(t *testing.T) {
	h := newTestHost(t)
	ctx := context.Background()

	info, err := h.CurrentLevel(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if info.PackagePath != DefaultLevel || info.ActorCount != 2 || info.Dirty {
		t.Errorf("level = %+v", info)
	}

	actors, _ := h.Actors(ctx)
	if actors[0].Name != "Floor" || actors[0].Components[0].StaticMesh != BasicShapes+"Plane" {
		t.Errorf("floor = %+v", actors[0])
	}
	if actors[0].Path != "/Game/Maps/Main.Main:PersistentLevel.Floor" {
		t.Errorf("path = %s", actors[0].Path)
	}
}

func TestSpawnAndProperties(t *testing.T) {
	h := newTestHost(t)
	ctx := context.Background()

	a, err := h.SpawnActor(ctx, "PointLight", "Key", editor.IdentityTransform())
	if err != nil {
		t.Fatal(err)
	}
	if a.Properties["Intensity"].Number != 5000 || a.Properties["ActorLabel"].String != "Key" {
		t.Errorf("defaults = %+v", a.Properties)
	}

	if _, err := h.SpawnActor(ctx, "PointLight", "Key", editor.IdentityTransform()); err == nil {
		t.Error("duplicate spawn should fail")
	}
	if _, err := h.SpawnActor(ctx, "Teapot", "T", editor.IdentityTransform()); err == nil {
		t.Error("unknown class should fail")
	}

	a, err = h.SetActorProperty(ctx, "Key", "intensity", editor.NumberValue(800))
	if err != nil {
		t.Fatal(err)
	}
	if a.Properties["Intensity"].Number != 800 {
		t.Errorf("Intensity = %v", a.Properties["Intensity"])
	}

	a, err = h.SetActorProperty(ctx, "Key", "Mobility", editor.NumberValue(0))
	if err != nil || a.Properties["Mobility"].String != "Static" {
		t.Errorf("Mobility by index: %v %v", a.Properties["Mobility"], err)
	}
	if _, err := h.SetActorProperty(ctx, "Key", "Mobility", editor.StringValue("Flying")); err == nil {
		t.Error("bad enum name should fail")
	}
	if _, err := h.SetActorProperty(ctx, "Key", "bHidden", editor.StringValue("yes")); err == nil || !strings.Contains(err.Error(), "expects a bool") {
		t.Errorf("kind mismatch err = %v", err)
	}
	if _, err := h.SetActorProperty(ctx, "Key", "FieldOfView", editor.NumberValue(60)); !errors.Is(err, editor.ErrPropertyNotFound) {
		t.Errorf("camera property on a light: err = %v", err)
	}

	a, _ = h.SetActorProperty(ctx, "Key", "ActorLabel", editor.StringValue("Key Light"))
	if a.Label != "Key Light" {
		t.Errorf("label = %s", a.Label)
	}
}

func TestSpawnBlueprintClass(t *testing.T) {
	h := newTestHost(t)
	ctx := context.Background()

	asset, err := h.LoadAsset(ctx, LampBlueprint)
	if err != nil {
		t.Fatal(err)
	}
	a, err := h.SpawnActor(ctx, asset.GeneratedClass, "Lamp", editor.IdentityTransform())
	if err != nil {
		t.Fatal(err)
	}
	if len(a.Components) != 2 || a.Components[0].StaticMesh != BasicShapes+"Cylinder" {
		t.Errorf("components = %+v", a.Components)
	}
	if a.Properties["Intensity"].Number != 2500 {
		t.Errorf("blueprint default Intensity = %v", a.Properties["Intensity"])
	}
	if _, err := h.SetActorProperty(ctx, "Lamp", "AttenuationRadius", editor.NumberValue(50)); err != nil {
		t.Errorf("parent-class property: %v", err)
	}
}

func TestSaveAndReloadLevel(t *testing.T) {
	h := newTestHost(t)
	ctx := context.Background()

	xf := editor.Transform{Location: editor.Vector{X: 1, Y: 2, Z: 3}, Scale: editor.Vector{X: 2, Y: 2, Z: 2}}
	if _, err := h.SpawnActor(ctx, "CameraActor", "Cam", xf); err != nil {
		t.Fatal(err)
	}
	h.SetActorProperty(ctx, "Cam", "FieldOfView", editor.NumberValue(70))
	h.SetStaticMesh(ctx, "Floor", "StaticMeshComponent0", BasicShapes+"Cube")

	if info, _ := h.CurrentLevel(ctx); !info.Dirty {
		t.Fatal("level should be dirty after edits")
	}
	path, err := h.SaveCurrentLevel(ctx)
	if err != nil || path != DefaultLevel {
		t.Fatalf("save = %s, %v", path, err)
	}

	// Unsaved edit is dropped by the reload.
	h.DestroyActor(ctx, "Sun")
	if err := h.LoadLevel(ctx, DefaultLevel); err != nil {
		t.Fatal(err)
	}

	actors, _ := h.Actors(ctx)
	if len(actors) != 3 {
		t.Fatalf("got %d actors after reload, want 3", len(actors))
	}
	cam := actors[2]
	if cam.Transform != xf || cam.Properties["FieldOfView"].Number != 70 {
		t.Errorf("camera = %+v", cam)
	}
	if actors[0].Components[0].StaticMesh != BasicShapes+"Cube" {
		t.Errorf("floor mesh = %s", actors[0].Components[0].StaticMesh)
	}
}

func TestSetStaticMesh_RejectsNonMesh(t *testing.T) {
	h := newTestHost(t)
	if _, err := h.SetStaticMesh(context.Background(), "Floor", "StaticMeshComponent0", LampBlueprint); err == nil {
		t.Error("blueprint accepted as static mesh")
	}
}

func TestNoWorld(t *testing.T) {
	h := newTestHost(t)
	ctx := context.Background()
	h.CloseWorld()

	if _, err := h.Actors(ctx); !errors.Is(err, editor.ErrNoWorld) {
		t.Errorf("Actors err = %v", err)
	}
	if _, err := h.SpawnActor(ctx, "PointLight", "L", editor.IdentityTransform()); !errors.Is(err, editor.ErrNoWorld) {
		t.Errorf("SpawnActor err = %v", err)
	}
	if _, err := h.SaveCurrentLevel(ctx); !errors.Is(err, editor.ErrNoWorld) {
		t.Errorf("SaveCurrentLevel err = %v", err)
	}
	if ok, err := h.SaveDirtyPackages(ctx); !ok || err != nil {
		t.Errorf("SaveDirtyPackages = %v, %v", ok, err)
	}
}

func TestHeadlessHasNoViewport(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Headless = true
	h, err := New(context.Background(), cfg, zerolog.Nop())
	if err != nil {
		t.Fatal(err)
	}
	defer h.Close()
	if _, err := h.ActiveViewport(context.Background()); !errors.Is(err, editor.ErrNoViewport) {
		t.Errorf("err = %v, want ErrNoViewport", err)
	}
}

func TestViewportRender(t *testing.T) {
	h := newTestHost(t)
	ctx := context.Background()
	vp, err := h.ActiveViewport(ctx)
	if err != nil {
		t.Fatal(err)
	}

	before, _ := vp.ReadPixels()
	h.SpawnActor(ctx, "PointLight", "Near", editor.Transform{Location: editor.Vector{X: -700, Z: 300}, Scale: editor.Vector{X: 1, Y: 1, Z: 1}})
	after, _ := vp.ReadPixels()

	if before.Bounds().Dx() != 640 || before.Bounds().Dy() != 360 {
		t.Errorf("bounds = %v", before.Bounds())
	}
	// The new light sits straight ahead of the default camera.
	if before.At(320, 180) == after.At(320, 180) {
		t.Error("spawned actor not visible at the viewport centre")
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, after); err != nil || buf.Len() == 0 {
		t.Errorf("png encode: %v", err)
	}
}

func TestRunScript(t *testing.T) {
	h := newTestHost(t)
	ctx := context.Background()

	res, err := h.RunScript(ctx, `
print("count", #editor.actors())
editor.spawn("SpotLight", "Spot", {location = {0, 0, 500}})
editor.warn("heads up")
editor.set_selection({"Spot", "Floor", "Ghost"})
return {selected = editor.get_selection(), level = editor.level().path}
`)
	if err != nil {
		t.Fatal(err)
	}
	if !res.Success {
		t.Fatalf("script failed: %s", res.CommandResult)
	}
	if len(res.Log) != 2 || res.Log[0].Output != "count\t2" || res.Log[1].Type != editor.ScriptWarning {
		t.Errorf("log = %+v", res.Log)
	}
	if res.CommandResult != `{"level":"/Game/Maps/Main","selected":["Spot","Floor"]}` {
		t.Errorf("result = %s", res.CommandResult)
	}
	if sel := h.Selection(); len(sel) != 2 {
		t.Errorf("selection = %v", sel)
	}

	res, _ = h.RunScript(ctx, `error("nope")`)
	if res.Success || !strings.Contains(res.CommandResult, "nope") {
		t.Errorf("failure result = %+v", res)
	}

	res, _ = h.RunScript(ctx, `os.exit(1)`)
	if res.Success {
		t.Error("os should not be reachable from scripts")
	}
}

func TestRunScript_TimeoutAndDisabled(t *testing.T) {
	cfg := DefaultConfig()
	cfg.ScriptTimeout = 50 * time.Millisecond
	h, err := New(context.Background(), cfg, zerolog.Nop())
	if err != nil {
		t.Fatal(err)
	}
	defer h.Close()

	res, err := h.RunScript(context.Background(), `while true do end`)
	if err != nil || res.Success || !strings.Contains(res.CommandResult, "timed out") {
		t.Errorf("res = %+v, err = %v", res, err)
	}

	cfg.ScriptingEnabled = false
	h2, err := New(context.Background(), cfg, zerolog.Nop())
	if err != nil {
		t.Fatal(err)
	}
	defer h2.Close()
	if _, err := h2.RunScript(context.Background(), `return 1`); !errors.Is(err, editor.ErrScriptingUnavailable) {
		t.Errorf("err = %v", err)
	}
}
