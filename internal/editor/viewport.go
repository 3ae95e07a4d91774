package editor

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image/png"
	"os"
	"path/filepath"
	"strings"

	"github.com/sekia-ai/edbridge/pkg/protocol"
)

// DefaultFocusDistance is the camera offset used by focus_viewport.
const DefaultFocusDistance = 1000.0

func viewportFailure(err error) protocol.Response {
	if errors.Is(err, ErrNoViewport) {
		return failf("Failed to get active viewport")
	}
	return failf("Failed to get active viewport: %v", err)
}

func (r *Router) focusViewport(ctx context.Context, params map[string]any) protocol.Response {
	target, ok := optString(params, "target", "")
	if !ok {
		return invalid("target")
	}
	location, ok := optVector(params, "location", Vector{})
	if !ok {
		return invalid("location")
	}
	hasLocation := hasParam(params, "location")
	distance, ok := optNumber(params, "distance", DefaultFocusDistance)
	if !ok {
		return invalid("distance")
	}
	orientation, ok := optRotator(params, "orientation", Rotator{})
	if !ok {
		return invalid("orientation")
	}
	hasOrientation := hasParam(params, "orientation")

	vp, err := r.engine.ActiveViewport(ctx)
	if err != nil {
		return viewportFailure(err)
	}

	var focus Vector
	focusedOn := "location"
	switch {
	case target != "":
		actors, err := r.engine.Actors(ctx)
		if err != nil {
			return worldFailure(err, "Failed to list actors")
		}
		actor, found := findActor(actors, target)
		if !found {
			return failf("Actor not found: %s", target)
		}
		focus = actor.Transform.Location
		focusedOn = target
	case hasLocation:
		focus = location
	default:
		return failf("Either 'target' or 'location' must be provided")
	}

	vp.SetViewLocation(focus.Sub(Vector{X: distance}))
	if hasOrientation {
		vp.SetViewRotation(orientation)
	}
	vp.Invalidate()

	return protocol.Response{
		"success":       true,
		"focused_on":    focusedOn,
		"view_location": vp.ViewLocation().JSON(),
		"view_rotation": vp.ViewRotation().JSON(),
	}
}

// ScreenshotPath appends the .png extension unless path already carries it.
func ScreenshotPath(path string) string {
	if strings.HasSuffix(strings.ToLower(path), ".png") {
		return path
	}
	return path + ".png"
}

func (r *Router) takeScreenshot(ctx context.Context, params map[string]any) protocol.Response {
	path, ok := extractString(params, "filepath")
	if !ok {
		return missing("filepath")
	}
	if strings.TrimSpace(path) == "" {
		return invalid("filepath")
	}
	path = ScreenshotPath(path)

	vp, err := r.engine.ActiveViewport(ctx)
	if err != nil {
		return viewportFailure(err)
	}

	if err := writeScreenshot(vp, path); err != nil {
		r.logger.Error().Err(err).Str("path", path).Msg("screenshot failed")
		return failf("Failed to take screenshot: %v", err)
	}
	return protocol.Response{"filepath": path}
}

func writeScreenshot(vp Viewport, path string) error {
	img, err := vp.ReadPixels()
	if err != nil {
		return fmt.Errorf("read pixels: %w", err)
	}
	b := img.Bounds()
	if b.Dx() == 0 || b.Dy() == 0 {
		return fmt.Errorf("viewport has no pixels")
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return fmt.Errorf("encode png: %w", err)
	}
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory: %w", err)
		}
	}
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("write file: %w", err)
	}
	return nil
}
