package editor

// ActorJSON is the summary form used in actor lists.
func ActorJSON(a Actor) map[string]any {
	return map[string]any{
		"name":     a.Name,
		"class":    a.Class,
		"location": a.Transform.Location.JSON(),
		"rotation": a.Transform.Rotation.JSON(),
		"scale":    a.Transform.Scale.JSON(),
	}
}

// ActorDetailsJSON adds label, path, components and reflected properties.
func ActorDetailsJSON(a Actor) map[string]any {
	obj := ActorJSON(a)
	obj["label"] = a.Label
	obj["path"] = a.Path

	components := make([]any, 0, len(a.Components))
	for _, c := range a.Components {
		co := map[string]any{"name": c.Name, "class": c.Class}
		if c.Class == ClassStaticMeshComponent {
			co["static_mesh"] = c.StaticMesh
		}
		components = append(components, co)
	}
	obj["components"] = components

	props := make(map[string]any, len(a.Properties))
	for k, v := range a.Properties {
		props[k] = v.JSON()
	}
	obj["properties"] = props
	return obj
}

func actorList(actors []Actor) []any {
	out := make([]any, 0, len(actors))
	for _, a := range actors {
		out = append(out, ActorJSON(a))
	}
	return out
}
