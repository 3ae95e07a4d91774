package editor

import (
	"context"
	"fmt"
	"sort"

	"github.com/rs/zerolog"

	"github.com/sekia-ai/edbridge/pkg/protocol"
)

// HandlerFunc handles one editor command. It always returns a response;
// failures are reported as protocol.ErrorResponse.
type HandlerFunc func(ctx context.Context, params map[string]any) protocol.Response

// Router maps command names to handlers operating on an Engine.
type Router struct {
	engine   Engine
	logger   zerolog.Logger
	handlers map[string]HandlerFunc
	aliases  map[string]string
	readOnly map[string]bool
}

// NewRouter creates a Router with the full editor command set registered.
func NewRouter(engine Engine, logger zerolog.Logger) *Router {
	r := &Router{
		engine:   engine,
		logger:   logger.With().Str("component", "router").Logger(),
		handlers: make(map[string]HandlerFunc),
		aliases:  make(map[string]string),
		readOnly: make(map[string]bool),
	}

	// Actors.
	r.register("get_actors_in_level", r.getActorsInLevel, true)
	r.register("find_actors_by_name", r.findActorsByName, true)
	r.register("spawn_actor", r.spawnActor, false)
	r.register("delete_actor", r.deleteActor, false)
	r.register("set_actor_transform", r.setActorTransform, false)
	r.register("get_actor_properties", r.getActorProperties, true)
	r.register("set_actor_property", r.setActorProperty, false)
	r.register("set_actor_static_mesh", r.setActorStaticMesh, false)
	r.register("spawn_blueprint_actor", r.spawnBlueprintActor, false)

	// Viewport.
	r.register("focus_viewport", r.focusViewport, false)
	r.register("take_screenshot", r.takeScreenshot, true)

	// Levels.
	r.register("create_level", r.createLevel, false)
	r.register("open_level", r.openLevel, false)
	r.register("save_current_level", r.saveCurrentLevel, false)
	r.register("save_all_levels", r.saveAllLevels, false)
	r.register("get_current_level_info", r.getCurrentLevelInfo, true)

	// Scripting.
	r.register("exec_editor_python", r.execEditorScript, false)

	r.aliases["create_actor"] = "spawn_actor"
	return r
}

func (r *Router) register(name string, h HandlerFunc, readOnly bool) {
	r.handlers[name] = h
	if readOnly {
		r.readOnly[name] = true
	}
}

// Dispatch runs command with params and returns exactly one response.
// Handler panics are recovered into an error response.
func (r *Router) Dispatch(ctx context.Context, command string, params map[string]any) (resp protocol.Response) {
	if params == nil {
		params = map[string]any{}
	}

	name := command
	if canonical, ok := r.aliases[command]; ok {
		r.logger.Warn().
			Str("command", command).
			Str("replacement", canonical).
			Msgf("'%s' command is deprecated and will be removed in a future version, use '%s' instead", command, canonical)
		name = canonical
	}

	h, ok := r.handlers[name]
	if !ok {
		return failf("Unknown editor command: %s", command)
	}

	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Error().Str("command", command).Interface("panic", rec).Msg("handler panicked")
			resp = failf("Internal error while handling '%s': %v", command, rec)
		}
	}()

	resp = h(ctx, params)
	if resp == nil {
		resp = protocol.Response{}
	}
	return resp
}

// Has reports whether command (or an alias of it) is registered.
func (r *Router) Has(command string) bool {
	if _, ok := r.aliases[command]; ok {
		return true
	}
	_, ok := r.handlers[command]
	return ok
}

// Mutates reports whether a successful run of command may change editor state.
func (r *Router) Mutates(command string) bool {
	if canonical, ok := r.aliases[command]; ok {
		command = canonical
	}
	if _, ok := r.handlers[command]; !ok {
		return false
	}
	return !r.readOnly[command]
}

// Commands lists the registered commands and aliases sorted by name.
func (r *Router) Commands() []protocol.CommandInfo {
	out := make([]protocol.CommandInfo, 0, len(r.handlers)+len(r.aliases))
	for name := range r.handlers {
		out = append(out, protocol.CommandInfo{Name: name, ReadOnly: r.readOnly[name]})
	}
	for alias, canonical := range r.aliases {
		out = append(out, protocol.CommandInfo{Name: alias, Deprecated: true, AliasOf: canonical, ReadOnly: r.readOnly[canonical]})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// worldFailure converts an engine error from a world query into a response.
func worldFailure(err error, format string, args ...any) protocol.Response {
	if isNoWorld(err) {
		return failf("Failed to get editor world")
	}
	return failf("%s: %v", fmt.Sprintf(format, args...), err)
}
