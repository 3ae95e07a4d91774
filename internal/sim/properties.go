package sim

import (
	"fmt"
	"math"
	"strings"

	"github.com/sekia-ai/edbridge/internal/editor"
)

// propSpec describes one reflected property of an actor class.
type propSpec struct {
	kind editor.PropertyKind
	// enum lists the accepted names for enum properties, stored as strings.
	enum []string
	def  editor.PropertyValue
}

var mobility = []string{"Static", "Stationary", "Movable"}

var actorProps = map[string]propSpec{
	"bHidden":                {kind: editor.KindBool, def: editor.BoolValue(false)},
	"bCanBeDamaged":          {kind: editor.KindBool, def: editor.BoolValue(true)},
	"ActorLabel":             {kind: editor.KindString},
	"Mobility":               {kind: editor.KindString, enum: mobility, def: editor.StringValue("Static")},
	"InitialLifeSpan":        {kind: editor.KindNumber, def: editor.NumberValue(0)},
	"bGenerateOverlapEvents": {kind: editor.KindBool, def: editor.BoolValue(false)},
}

var lightProps = map[string]propSpec{
	"Intensity":     {kind: editor.KindNumber, def: editor.NumberValue(5000)},
	"bCastShadows":  {kind: editor.KindBool, def: editor.BoolValue(true)},
	"LightColorHex": {kind: editor.KindString, def: editor.StringValue("#FFFFFF")},
}

var classProps = map[string]map[string]propSpec{
	"StaticMeshActor": {
		"Mobility": {kind: editor.KindString, enum: mobility, def: editor.StringValue("Static")},
	},
	"PointLight": merge(lightProps, map[string]propSpec{
		"AttenuationRadius": {kind: editor.KindNumber, def: editor.NumberValue(1000)},
		"Mobility":          {kind: editor.KindString, enum: mobility, def: editor.StringValue("Movable")},
	}),
	"SpotLight": merge(lightProps, map[string]propSpec{
		"AttenuationRadius": {kind: editor.KindNumber, def: editor.NumberValue(1000)},
		"InnerConeAngle":    {kind: editor.KindNumber, def: editor.NumberValue(0)},
		"OuterConeAngle":    {kind: editor.KindNumber, def: editor.NumberValue(44)},
		"Mobility":          {kind: editor.KindString, enum: mobility, def: editor.StringValue("Movable")},
	}),
	"DirectionalLight": merge(lightProps, map[string]propSpec{
		"Intensity":           {kind: editor.KindNumber, def: editor.NumberValue(10)},
		"bAtmosphereSunLight": {kind: editor.KindBool, def: editor.BoolValue(true)},
		"Mobility":            {kind: editor.KindString, enum: mobility, def: editor.StringValue("Stationary")},
	}),
	"CameraActor": {
		"FieldOfView":           {kind: editor.KindNumber, def: editor.NumberValue(90)},
		"AspectRatio":           {kind: editor.KindNumber, def: editor.NumberValue(1.777778)},
		"bConstrainAspectRatio": {kind: editor.KindBool, def: editor.BoolValue(false)},
	},
}

func merge(maps ...map[string]propSpec) map[string]propSpec {
	out := make(map[string]propSpec)
	for _, m := range maps {
		for k, v := range m {
			out[k] = v
		}
	}
	return out
}

// schemaFor returns the property set of class. Blueprint classes inherit the
// schema of their parent.
func schemaFor(class string) map[string]propSpec {
	return merge(actorProps, classProps[class])
}

// defaultProperties builds the initial property values for a new actor.
func defaultProperties(schema map[string]propSpec, label string) map[string]editor.PropertyValue {
	props := make(map[string]editor.PropertyValue, len(schema))
	for name, spec := range schema {
		props[name] = spec.def
	}
	props["ActorLabel"] = editor.StringValue(label)
	return props
}

// lookupProp finds a property by name, ignoring case like reflected name lookup.
func lookupProp(schema map[string]propSpec, name string) (string, propSpec, bool) {
	if spec, ok := schema[name]; ok {
		return name, spec, true
	}
	for k, spec := range schema {
		if strings.EqualFold(k, name) {
			return k, spec, true
		}
	}
	return "", propSpec{}, false
}

// coerce checks value against spec and returns the value to store.
func coerce(name string, spec propSpec, value editor.PropertyValue) (editor.PropertyValue, error) {
	if len(spec.enum) > 0 {
		switch value.Kind {
		case editor.KindString:
			for _, e := range spec.enum {
				if strings.EqualFold(e, value.String) {
					return editor.StringValue(e), nil
				}
			}
			return editor.PropertyValue{}, fmt.Errorf("invalid value %q for enum property %s, expected one of %s",
				value.String, name, strings.Join(spec.enum, ", "))
		case editor.KindNumber:
			idx := int(value.Number)
			if value.Number != math.Trunc(value.Number) || idx < 0 || idx >= len(spec.enum) {
				return editor.PropertyValue{}, fmt.Errorf("enum index %v out of range for property %s", value.Number, name)
			}
			return editor.StringValue(spec.enum[idx]), nil
		}
	}
	if value.Kind != spec.kind {
		return editor.PropertyValue{}, fmt.Errorf("property %s expects a %s value, got %s", name, spec.kind, value.Kind)
	}
	return value, nil
}
