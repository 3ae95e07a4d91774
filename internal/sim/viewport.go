package sim

import (
	"hash/fnv"
	"image"
	"image/color"
	"math"
	"sync"

	"github.com/sekia-ai/edbridge/internal/editor"
)

// Viewport is the simulated level editor viewport. ReadPixels renders a sky
// and ground backdrop with one square marker per actor in front of the camera.
type Viewport struct {
	host *Host

	mu      sync.Mutex
	loc     editor.Vector
	rot     editor.Rotator
	width   int
	height  int
	redraws int
}

func newViewport(h *Host, width, height int) *Viewport {
	if width <= 0 {
		width = 640
	}
	if height <= 0 {
		height = 360
	}
	return &Viewport{
		host:   h,
		loc:    editor.Vector{X: -1000, Z: 300},
		width:  width,
		height: height,
	}
}

var _ editor.Viewport = (*Viewport)(nil)

func (v *Viewport) ViewLocation() editor.Vector {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.loc
}

func (v *Viewport) ViewRotation() editor.Rotator {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.rot
}

func (v *Viewport) SetViewLocation(l editor.Vector) {
	v.mu.Lock()
	v.loc = l
	v.mu.Unlock()
}

func (v *Viewport) SetViewRotation(r editor.Rotator) {
	v.mu.Lock()
	v.rot = r
	v.mu.Unlock()
}

func (v *Viewport) Invalidate() {
	v.mu.Lock()
	v.redraws++
	v.mu.Unlock()
}

// Redraws counts Invalidate calls.
func (v *Viewport) Redraws() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.redraws
}

func (v *Viewport) ReadPixels() (image.Image, error) {
	v.mu.Lock()
	loc, rot, w, hgt := v.loc, v.rot, v.width, v.height
	v.mu.Unlock()

	v.host.mu.Lock()
	var actors []editor.Actor
	if v.host.world != nil {
		actors, _ = v.host.actorsLocked()
	}
	v.host.mu.Unlock()

	img := image.NewRGBA(image.Rect(0, 0, w, hgt))
	horizon := hgt * 3 / 5
	for y := 0; y < hgt; y++ {
		var c color.RGBA
		if y < horizon {
			t := float64(y) / float64(horizon)
			c = color.RGBA{R: uint8(70 + 110*t), G: uint8(130 + 90*t), B: 235, A: 255}
		} else {
			c = color.RGBA{R: 74, G: 96, B: 62, A: 255}
		}
		for x := 0; x < w; x++ {
			img.SetRGBA(x, y, c)
		}
	}

	yaw := rot.Yaw * math.Pi / 180
	focal := float64(w) / 2
	for _, a := range actors {
		rel := a.Transform.Location.Sub(loc)
		forward := math.Cos(yaw)*rel.X + math.Sin(yaw)*rel.Y
		right := -math.Sin(yaw)*rel.X + math.Cos(yaw)*rel.Y
		if forward <= 1 {
			continue
		}
		px := int(float64(w)/2 + right/forward*focal)
		py := int(float64(hgt)/2 - rel.Z/forward*focal)
		size := int(math.Max(2, math.Min(40, 5000/forward)))
		fillSquare(img, px, py, size, markerColor(a.Class))
	}
	return img, nil
}

func fillSquare(img *image.RGBA, cx, cy, size int, c color.RGBA) {
	r := image.Rect(cx-size/2, cy-size/2, cx+size/2+1, cy+size/2+1).Intersect(img.Bounds())
	for y := r.Min.Y; y < r.Max.Y; y++ {
		for x := r.Min.X; x < r.Max.X; x++ {
			img.SetRGBA(x, y, c)
		}
	}
}

func markerColor(class string) color.RGBA {
	f := fnv.New32a()
	f.Write([]byte(class))
	sum := f.Sum32()
	return color.RGBA{R: uint8(sum), G: uint8(sum >> 8), B: uint8(sum >> 16), A: 255}
}
