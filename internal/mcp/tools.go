package mcp

import (
	"context"
	"encoding/json"

	mcplib "github.com/mark3labs/mcp-go/mcp"

	"github.com/sekia-ai/edbridge/internal/snippets"
	"github.com/sekia-ai/edbridge/pkg/protocol"
)

type toolSpec struct {
	command     string
	description string
	readOnly    bool
	destructive bool
	args        []mcplib.ToolOption
}

func (t toolSpec) tool() mcplib.Tool {
	opts := []mcplib.ToolOption{mcplib.WithDescription(t.description)}
	if t.readOnly {
		opts = append(opts, mcplib.WithReadOnlyHintAnnotation(true))
	} else {
		opts = append(opts, mcplib.WithDestructiveHintAnnotation(t.destructive))
	}
	return mcplib.NewTool(t.command, append(opts, t.args...)...)
}

func vectorArg(name, desc string) mcplib.ToolOption {
	return mcplib.WithArray(name, mcplib.Description(desc), mcplib.Items(map[string]any{"type": "number"}))
}

// requiredUntypedArg declares a required argument that accepts any JSON type.
func requiredUntypedArg(name, desc string) mcplib.ToolOption {
	return func(t *mcplib.Tool) {
		t.InputSchema.Properties[name] = map[string]any{"description": desc}
		t.InputSchema.Required = append(t.InputSchema.Required, name)
	}
}

func transformArgs() []mcplib.ToolOption {
	return []mcplib.ToolOption{
		vectorArg("location", "World location [x, y, z]"),
		vectorArg("rotation", "Rotation [pitch, yaw, roll] in degrees"),
		vectorArg("scale", "Scale [x, y, z]"),
	}
}

func withArgs(first []mcplib.ToolOption, rest ...mcplib.ToolOption) []mcplib.ToolOption {
	return append(append([]mcplib.ToolOption{}, rest...), first...)
}

var editorTools = []toolSpec{
	{
		command:     "ping",
		description: "Check that the editor bridge is reachable",
		readOnly:    true,
	},
	{
		command:     "get_actors_in_level",
		description: "List every actor in the current level with its class and transform",
		readOnly:    true,
	},
	{
		command:     "find_actors_by_name",
		description: "Find actors whose name contains a pattern (case-insensitive)",
		readOnly:    true,
		args: []mcplib.ToolOption{
			mcplib.WithString("pattern", mcplib.Required(), mcplib.Description("Substring to match against actor names")),
		},
	},
	{
		command:     "spawn_actor",
		description: "Spawn a new actor of a built-in class",
		args: withArgs(transformArgs(),
			mcplib.WithString("type", mcplib.Required(), mcplib.Description("Actor class"),
				mcplib.Enum("StaticMeshActor", "PointLight", "SpotLight", "DirectionalLight", "CameraActor")),
			mcplib.WithString("name", mcplib.Required(), mcplib.Description("Unique actor name")),
		),
	},
	{
		command:     "delete_actor",
		description: "Delete an actor by name",
		destructive: true,
		args: []mcplib.ToolOption{
			mcplib.WithString("name", mcplib.Required(), mcplib.Description("Actor name")),
		},
	},
	{
		command:     "set_actor_transform",
		description: "Set any of an actor's location, rotation and scale; omitted parts are unchanged",
		args: withArgs(transformArgs(),
			mcplib.WithString("name", mcplib.Required(), mcplib.Description("Actor name")),
		),
	},
	{
		command:     "get_actor_properties",
		description: "Get an actor's details: label, path, components and properties",
		readOnly:    true,
		args: []mcplib.ToolOption{
			mcplib.WithString("name", mcplib.Required(), mcplib.Description("Actor name")),
		},
	},
	{
		command:     "set_actor_property",
		description: "Set a bool, number or string property on an actor",
		args: []mcplib.ToolOption{
			mcplib.WithString("name", mcplib.Required(), mcplib.Description("Actor name")),
			mcplib.WithString("property_name", mcplib.Required(), mcplib.Description("Property to set, for example bHidden or Intensity")),
			requiredUntypedArg("property_value", "New value: bool, number or string"),
		},
	},
	{
		command:     "set_actor_static_mesh",
		description: "Assign a static mesh asset to an actor's static mesh component",
		args: []mcplib.ToolOption{
			mcplib.WithString("name", mcplib.Required(), mcplib.Description("Actor name")),
			mcplib.WithString("static_mesh", mcplib.Required(), mcplib.Description("Mesh asset path, for example /Engine/BasicShapes/Cube")),
			mcplib.WithString("component_name", mcplib.Description("Component to change; defaults to the first static mesh component")),
		},
	},
	{
		command:     "spawn_blueprint_actor",
		description: "Spawn an actor from a blueprint under /Game/Blueprints",
		args: withArgs(transformArgs(),
			mcplib.WithString("blueprint_name", mcplib.Required(), mcplib.Description("Blueprint name or path")),
			mcplib.WithString("actor_name", mcplib.Required(), mcplib.Description("Unique actor name")),
		),
	},
	{
		command:     "focus_viewport",
		description: "Point the active viewport at an actor or a location",
		args: []mcplib.ToolOption{
			mcplib.WithString("target", mcplib.Description("Actor name to focus on")),
			vectorArg("location", "Location to focus on when no target is given"),
			mcplib.WithNumber("distance", mcplib.Description("Distance from the focus point"), mcplib.DefaultNumber(1000)),
			vectorArg("orientation", "View rotation [pitch, yaw, roll]"),
		},
	},
	{
		command:     "take_screenshot",
		description: "Save the active viewport as a PNG file",
		readOnly:    true,
		args: []mcplib.ToolOption{
			mcplib.WithString("filepath", mcplib.Required(), mcplib.Description("Output path; .png is appended if missing")),
		},
	},
	{
		command:     "create_level",
		description: "Create a new level from a template",
		args: []mcplib.ToolOption{
			mcplib.WithString("level_name", mcplib.Required(), mcplib.Description("Name of the new level")),
			mcplib.WithString("folder", mcplib.Description("Content folder"), mcplib.DefaultString("/Game/Maps")),
			mcplib.WithString("template_level", mcplib.Description("Template level to copy")),
			mcplib.WithBoolean("open_after_create", mcplib.Description("Open the level once created"), mcplib.DefaultBool(true)),
		},
	},
	{
		command:     "open_level",
		description: "Open a level by name or package path",
		args: []mcplib.ToolOption{
			mcplib.WithString("level", mcplib.Required(), mcplib.Description("Level name or path, for example MyMap or /Game/Maps/MyMap")),
			mcplib.WithBoolean("save_dirty", mcplib.Description("Save modified packages first"), mcplib.DefaultBool(true)),
		},
	},
	{
		command:     "save_current_level",
		description: "Save the current level",
	},
	{
		command:     "save_all_levels",
		description: "Save every modified level and asset",
	},
	{
		command:     "get_current_level_info",
		description: "Get the current level path, actor count, dirty flag and streaming levels",
		readOnly:    true,
		args: []mcplib.ToolOption{
			mcplib.WithBoolean("include_streaming", mcplib.Description("Include streaming levels"), mcplib.DefaultBool(true)),
		},
	},
	{
		command:     "exec_editor_python",
		description: "Run a script in the editor and return its output",
		destructive: true,
		args: []mcplib.ToolOption{
			mcplib.WithString("code", mcplib.Required(), mcplib.Description("Script source")),
		},
	},
}

// forward sends the tool arguments unchanged as command params.
func (s *MCPServer) forward(command string) func(context.Context, mcplib.CallToolRequest) (*mcplib.CallToolResult, error) {
	return func(ctx context.Context, req mcplib.CallToolRequest) (*mcplib.CallToolResult, error) {
		env, err := s.client.Send(ctx, command, req.GetArguments())
		if err != nil {
			s.logger.Warn().Err(err).Str("command", command).Msg("bridge unreachable")
			return textError("failed to reach the editor bridge: " + err.Error()), nil
		}
		return envelopeResult(env)
	}
}

func snippetTool(sn snippets.Snippet) mcplib.Tool {
	opts := []mcplib.ToolOption{mcplib.WithDescription(sn.Description)}
	for _, p := range sn.Params {
		var popts []mcplib.PropertyOption
		if p.Description != "" {
			popts = append(popts, mcplib.Description(p.Description))
		}
		if p.Required {
			popts = append(popts, mcplib.Required())
		}
		switch p.Type {
		case "list", "array":
			popts = append(popts, mcplib.Items(map[string]any{"type": "string"}))
			opts = append(opts, mcplib.WithArray(p.Name, popts...))
		case "number":
			opts = append(opts, mcplib.WithNumber(p.Name, popts...))
		case "bool", "boolean":
			opts = append(opts, mcplib.WithBoolean(p.Name, popts...))
		case "object":
			opts = append(opts, mcplib.WithObject(p.Name, popts...))
		default:
			opts = append(opts, mcplib.WithString(p.Name, popts...))
		}
	}
	return mcplib.NewTool(sn.Name, opts...)
}

func (s *MCPServer) runSnippet(name string) func(context.Context, mcplib.CallToolRequest) (*mcplib.CallToolResult, error) {
	return func(ctx context.Context, req mcplib.CallToolRequest) (*mcplib.CallToolResult, error) {
		env, err := s.lib.Execute(ctx, s.client, name, req.GetArguments())
		if err != nil {
			s.logger.Warn().Err(err).Str("snippet", name).Msg("bridge unreachable")
			return textError("failed to reach the editor bridge: " + err.Error()), nil
		}
		return envelopeResult(env)
	}
}

func (s *MCPServer) handleGetStatus(ctx context.Context, req mcplib.CallToolRequest) (*mcplib.CallToolResult, error) {
	status, err := s.api.GetStatus(ctx)
	if err != nil {
		return textError("failed to get status: " + err.Error()), nil
	}
	return textJSON(status)
}

// envelopeResult returns the result object on success and the error
// message, plus any details, as an error result otherwise.
func envelopeResult(env protocol.Envelope) (*mcplib.CallToolResult, error) {
	if env.OK() {
		return textJSON(env.Result)
	}
	msg := env.Error
	if len(env.Details) > 0 {
		if data, err := json.Marshal(env.Details); err == nil {
			msg += "\n" + string(data)
		}
	}
	return textError(msg), nil
}

// textResult returns a successful text result.
func textResult(text string) *mcplib.CallToolResult {
	return &mcplib.CallToolResult{
		Content: []mcplib.Content{
			mcplib.TextContent{Type: "text", Text: text},
		},
	}
}

// textError returns an error text result.
func textError(msg string) *mcplib.CallToolResult {
	return &mcplib.CallToolResult{
		Content: []mcplib.Content{
			mcplib.TextContent{Type: "text", Text: msg},
		},
		IsError: true,
	}
}

// textJSON marshals v to indented JSON and returns it as a text result.
func textJSON(v any) (*mcplib.CallToolResult, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return textError("failed to marshal response: " + err.Error()), nil
	}
	return textResult(string(data)), nil
}
