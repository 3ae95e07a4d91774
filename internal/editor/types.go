package editor

// Vector is a location or scale in world units.
type Vector struct {
	X, Y, Z float64
}

// Sub returns v - o.
func (v Vector) Sub(o Vector) Vector {
	return Vector{X: v.X - o.X, Y: v.Y - o.Y, Z: v.Z - o.Z}
}

// JSON returns v as a [x, y, z] array.
func (v Vector) JSON() []any {
	return []any{v.X, v.Y, v.Z}
}

// Rotator is an orientation in degrees.
type Rotator struct {
	Pitch, Yaw, Roll float64
}

// JSON returns r as a [pitch, yaw, roll] array.
func (r Rotator) JSON() []any {
	return []any{r.Pitch, r.Yaw, r.Roll}
}

// Transform is an actor's placement in the world.
type Transform struct {
	Location Vector
	Rotation Rotator
	Scale    Vector
}

// IdentityTransform is the placement used when a spawn request omits fields.
func IdentityTransform() Transform {
	return Transform{Scale: Vector{X: 1, Y: 1, Z: 1}}
}

// Component is one component attached to an actor.
type Component struct {
	Name  string
	Class string
	// StaticMesh is the mesh asset path for static mesh components.
	StaticMesh string
}

// Actor is a snapshot of one actor in the editor world.
type Actor struct {
	Name       string
	Label      string
	Class      string
	Path       string
	Transform  Transform
	Components []Component
	Properties map[string]PropertyValue
}

// Spawnable actor classes accepted by spawn_actor.
var spawnableClasses = map[string]bool{
	"StaticMeshActor":  true,
	"PointLight":       true,
	"SpotLight":        true,
	"DirectionalLight": true,
	"CameraActor":      true,
}

// findActor returns the first actor whose name equals name exactly.
func findActor(actors []Actor, name string) (Actor, bool) {
	for _, a := range actors {
		if a.Name == name {
			return a, true
		}
	}
	return Actor{}, false
}
