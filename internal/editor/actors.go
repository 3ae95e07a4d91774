package editor

import (
	"context"
	"errors"
	"strings"

	"github.com/sekia-ai/edbridge/pkg/protocol"
)

// BlueprintRoot is the content folder spawn_blueprint_actor resolves names under.
const BlueprintRoot = "/Game/Blueprints/"

func isNoWorld(err error) bool {
	return errors.Is(err, ErrNoWorld)
}

func (r *Router) getActorsInLevel(ctx context.Context, _ map[string]any) protocol.Response {
	actors, err := r.engine.Actors(ctx)
	if err != nil {
		return worldFailure(err, "Failed to list actors")
	}
	return protocol.Response{"actors": actorList(actors)}
}

func (r *Router) findActorsByName(ctx context.Context, params map[string]any) protocol.Response {
	pattern, ok := extractString(params, "pattern")
	if !ok {
		return missing("pattern")
	}

	actors, err := r.engine.Actors(ctx)
	if err != nil {
		return worldFailure(err, "Failed to list actors")
	}

	needle := strings.ToLower(pattern)
	matches := make([]Actor, 0)
	for _, a := range actors {
		if strings.Contains(strings.ToLower(a.Name), needle) {
			matches = append(matches, a)
		}
	}
	return protocol.Response{"actors": actorList(matches)}
}

// spawnTransform reads the optional location, rotation and scale fields.
func spawnTransform(params map[string]any) (Transform, protocol.Response) {
	xf := IdentityTransform()
	var ok bool
	if xf.Location, ok = optVector(params, "location", xf.Location); !ok {
		return xf, invalid("location")
	}
	if xf.Rotation, ok = optRotator(params, "rotation", xf.Rotation); !ok {
		return xf, invalid("rotation")
	}
	if xf.Scale, ok = optVector(params, "scale", xf.Scale); !ok {
		return xf, invalid("scale")
	}
	return xf, nil
}

func (r *Router) spawnActor(ctx context.Context, params map[string]any) protocol.Response {
	actorType, ok := extractString(params, "type")
	if !ok {
		return missing("type")
	}
	name, ok := extractString(params, "name")
	if !ok {
		return missing("name")
	}
	xf, fail := spawnTransform(params)
	if fail != nil {
		return fail
	}

	actors, err := r.engine.Actors(ctx)
	if err != nil {
		return worldFailure(err, "Failed to list actors")
	}
	if _, exists := findActor(actors, name); exists {
		return failf("Actor with name '%s' already exists", name)
	}
	if !spawnableClasses[actorType] {
		return failf("Unknown actor type: %s", actorType)
	}

	actor, err := r.engine.SpawnActor(ctx, actorType, name, xf)
	if err != nil {
		return worldFailure(err, "Failed to create actor")
	}
	r.logger.Debug().Str("actor", actor.Name).Str("class", actor.Class).Msg("actor spawned")
	return protocol.Response(ActorDetailsJSON(actor))
}

func (r *Router) deleteActor(ctx context.Context, params map[string]any) protocol.Response {
	name, ok := extractString(params, "name")
	if !ok {
		return missing("name")
	}

	actors, err := r.engine.Actors(ctx)
	if err != nil {
		return worldFailure(err, "Failed to list actors")
	}
	actor, found := findActor(actors, name)
	if !found {
		return failf("Actor not found: %s", name)
	}

	// Captured before destruction so the reply describes what was removed.
	info := ActorJSON(actor)
	if err := r.engine.DestroyActor(ctx, name); err != nil {
		return worldFailure(err, "Failed to delete actor '%s'", name)
	}
	return protocol.Response{"deleted_actor": info}
}

func (r *Router) setActorTransform(ctx context.Context, params map[string]any) protocol.Response {
	name, ok := extractString(params, "name")
	if !ok {
		return missing("name")
	}

	actors, err := r.engine.Actors(ctx)
	if err != nil {
		return worldFailure(err, "Failed to list actors")
	}
	actor, found := findActor(actors, name)
	if !found {
		return failf("Actor not found: %s", name)
	}

	xf := actor.Transform
	if xf.Location, ok = optVector(params, "location", xf.Location); !ok {
		return invalid("location")
	}
	if xf.Rotation, ok = optRotator(params, "rotation", xf.Rotation); !ok {
		return invalid("rotation")
	}
	if xf.Scale, ok = optVector(params, "scale", xf.Scale); !ok {
		return invalid("scale")
	}

	updated, err := r.engine.SetActorTransform(ctx, name, xf)
	if err != nil {
		return worldFailure(err, "Failed to set transform on '%s'", name)
	}
	return protocol.Response(ActorDetailsJSON(updated))
}

func (r *Router) getActorProperties(ctx context.Context, params map[string]any) protocol.Response {
	name, ok := extractString(params, "name")
	if !ok {
		return missing("name")
	}

	actors, err := r.engine.Actors(ctx)
	if err != nil {
		return worldFailure(err, "Failed to list actors")
	}
	actor, found := findActor(actors, name)
	if !found {
		return failf("Actor not found: %s", name)
	}
	return protocol.Response(ActorDetailsJSON(actor))
}

func (r *Router) setActorProperty(ctx context.Context, params map[string]any) protocol.Response {
	name, ok := extractString(params, "name")
	if !ok {
		return missing("name")
	}
	property, ok := extractString(params, "property_name")
	if !ok {
		return missing("property_name")
	}
	raw, ok := params["property_value"]
	if !ok {
		return missing("property_value")
	}
	value, err := PropertyValueFromJSON(raw)
	if err != nil {
		return invalid("property_value")
	}

	actors, err := r.engine.Actors(ctx)
	if err != nil {
		return worldFailure(err, "Failed to list actors")
	}
	if _, found := findActor(actors, name); !found {
		return failf("Actor not found: %s", name)
	}

	updated, err := r.engine.SetActorProperty(ctx, name, property, value)
	if errors.Is(err, ErrPropertyNotFound) {
		return failf("Property not found: %s", property)
	}
	if err != nil {
		return worldFailure(err, "Failed to set property '%s'", property)
	}
	return protocol.Response{
		"actor":         name,
		"property":      property,
		"success":       true,
		"actor_details": ActorDetailsJSON(updated),
	}
}

// staticMeshComponent picks the first static mesh component, or the one whose
// name matches component case-insensitively when component is set.
func staticMeshComponent(a Actor, component string) (Component, bool) {
	for _, c := range a.Components {
		if c.Class != ClassStaticMeshComponent {
			continue
		}
		if component == "" || strings.EqualFold(c.Name, component) {
			return c, true
		}
	}
	return Component{}, false
}

func hasStaticMeshComponent(a Actor) bool {
	_, ok := staticMeshComponent(a, "")
	return ok
}

func (r *Router) setActorStaticMesh(ctx context.Context, params map[string]any) protocol.Response {
	name, ok := extractString(params, "name")
	if !ok {
		return missing("name")
	}
	meshPath, ok := extractString(params, "static_mesh")
	if !ok {
		return missing("static_mesh")
	}
	componentName, ok := optString(params, "component_name", "")
	if !ok {
		return invalid("component_name")
	}

	actors, err := r.engine.Actors(ctx)
	if err != nil {
		return worldFailure(err, "Failed to list actors")
	}
	actor, found := findActor(actors, name)
	if !found {
		return failf("Actor not found: %s", name)
	}

	if !hasStaticMeshComponent(actor) {
		return failf("Actor '%s' has no StaticMeshComponent", name)
	}
	component, found := staticMeshComponent(actor, componentName)
	if !found {
		return failf("StaticMeshComponent '%s' not found on actor '%s'", componentName, name)
	}

	mesh, err := r.engine.LoadAsset(ctx, meshPath)
	if err != nil || mesh.Class != ClassStaticMesh {
		return failf("Failed to load static mesh from path: %s", meshPath)
	}

	updated, err := r.engine.SetStaticMesh(ctx, name, component.Name, mesh.Path)
	if err != nil {
		return worldFailure(err, "Failed to set static mesh on '%s'", name)
	}
	return protocol.Response{
		"success":       true,
		"actor":         name,
		"component":     component.Name,
		"static_mesh":   mesh.Path,
		"actor_details": ActorDetailsJSON(updated),
	}
}

func (r *Router) spawnBlueprintActor(ctx context.Context, params map[string]any) protocol.Response {
	blueprintName, ok := extractString(params, "blueprint_name")
	if !ok {
		return missing("blueprint_name")
	}
	actorName, ok := extractString(params, "actor_name")
	if !ok {
		return missing("actor_name")
	}
	if blueprintName == "" {
		return failf("Blueprint name is empty")
	}
	xf, fail := spawnTransform(params)
	if fail != nil {
		return fail
	}

	path := BlueprintRoot + blueprintName
	exists, err := r.engine.AssetExists(ctx, path)
	if err != nil {
		return failf("Failed to query asset registry: %v", err)
	}
	if !exists {
		return failf("Blueprint '%s' not found – it must reside under /Game/Blueprints", blueprintName)
	}
	bp, err := r.engine.LoadAsset(ctx, path)
	if err != nil || bp.Class != ClassBlueprint || bp.GeneratedClass == "" {
		return failf("Blueprint not found: %s", blueprintName)
	}

	actors, err := r.engine.Actors(ctx)
	if err != nil {
		return worldFailure(err, "Failed to list actors")
	}
	if _, exists := findActor(actors, actorName); exists {
		return failf("Actor with name '%s' already exists", actorName)
	}

	actor, err := r.engine.SpawnActor(ctx, bp.GeneratedClass, actorName, xf)
	if err != nil {
		return worldFailure(err, "Failed to spawn blueprint actor")
	}
	return protocol.Response(ActorDetailsJSON(actor))
}
