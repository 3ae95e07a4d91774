package editor

import (
	"context"
	"strings"

	"github.com/sekia-ai/edbridge/pkg/protocol"
)

// Level creation defaults.
const (
	DefaultLevelFolder    = "/Game/Maps"
	DefaultLevelTemplate  = "/Engine/Maps/Templates/Minimal_Default"
	FallbackLevelTemplate = "/Engine/Maps/Templates/Template_Default"
)

// NormalizeLevelPath resolves short level names under /Game/Maps and strips
// the .umap extension.
func NormalizeLevelPath(level string) string {
	if !strings.HasPrefix(level, "/Game/") {
		level = DefaultLevelFolder + "/" + level
	}
	return strings.ReplaceAll(level, ".umap", "")
}

func (r *Router) createLevel(ctx context.Context, params map[string]any) protocol.Response {
	levelName, ok := extractString(params, "level_name")
	if !ok {
		return missing("level_name")
	}
	folder, ok := optString(params, "folder", DefaultLevelFolder)
	if !ok {
		return invalid("folder")
	}
	template, ok := optString(params, "template_level", DefaultLevelTemplate)
	if !ok {
		return invalid("template_level")
	}
	openAfter, ok := optBool(params, "open_after_create", true)
	if !ok {
		return invalid("open_after_create")
	}

	dest := strings.TrimRight(folder, "/") + "/" + levelName
	exists, err := r.engine.AssetExists(ctx, dest)
	if err != nil {
		return failf("Failed to query asset registry: %v", err)
	}
	if exists {
		return failf("Level already exists: %s", dest)
	}

	found, err := r.engine.AssetExists(ctx, template)
	if err != nil {
		return failf("Failed to query asset registry: %v", err)
	}
	if !found {
		r.logger.Warn().Str("template", template).Str("fallback", FallbackLevelTemplate).Msg("template level missing, using fallback")
		template = FallbackLevelTemplate
		found, err = r.engine.AssetExists(ctx, template)
		if err != nil {
			return failf("Failed to query asset registry: %v", err)
		}
		if !found {
			return failf("Template level not found: %s", template)
		}
	}

	levelPath, err := r.engine.DuplicateAsset(ctx, template, dest)
	if err != nil {
		r.logger.Error().Err(err).Str("template", template).Str("dest", dest).Msg("duplicate level failed")
		return failf("Failed to duplicate template level from %s to %s", template, dest)
	}

	opened := false
	if openAfter {
		if err := r.engine.LoadLevel(ctx, levelPath); err != nil {
			r.logger.Warn().Err(err).Str("level", levelPath).Msg("created level could not be opened")
		} else {
			opened = true
		}
	}

	return protocol.Response{
		"level_path": levelPath,
		"level_name": levelName,
		"opened":     opened,
	}
}

func (r *Router) openLevel(ctx context.Context, params map[string]any) protocol.Response {
	level, ok := extractString(params, "level")
	if !ok {
		return missing("level")
	}
	saveDirty, ok := optBool(params, "save_dirty", true)
	if !ok {
		return invalid("save_dirty")
	}

	path := NormalizeLevelPath(level)
	exists, err := r.engine.AssetExists(ctx, path)
	if err != nil {
		return failf("Failed to query asset registry: %v", err)
	}
	if !exists {
		return failf("Level not found: %s", path)
	}

	if saveDirty {
		if saved, err := r.engine.SaveDirtyPackages(ctx); err != nil || !saved {
			r.logger.Warn().Err(err).Msg("saving dirty packages before level switch failed")
		}
	}

	if err := r.engine.LoadLevel(ctx, path); err != nil {
		r.logger.Error().Err(err).Str("level", path).Msg("load level failed")
		return failf("Failed to load level: %s", path)
	}
	return protocol.Response{"level_path": path, "success": true}
}

func (r *Router) saveCurrentLevel(ctx context.Context, _ map[string]any) protocol.Response {
	info, err := r.engine.CurrentLevel(ctx)
	if err != nil {
		return worldFailure(err, "Failed to read current level")
	}
	path, err := r.engine.SaveCurrentLevel(ctx)
	if err != nil {
		r.logger.Error().Err(err).Str("level", info.PackagePath).Msg("save level failed")
		return failf("Failed to save level: %s", info.PackagePath)
	}
	return protocol.Response{"level_path": path, "success": true}
}

func (r *Router) saveAllLevels(ctx context.Context, _ map[string]any) protocol.Response {
	saved, err := r.engine.SaveDirtyPackages(ctx)
	if err != nil {
		r.logger.Error().Err(err).Msg("save dirty packages failed")
		saved = false
	}
	return protocol.Response{"success": saved}
}

func (r *Router) getCurrentLevelInfo(ctx context.Context, params map[string]any) protocol.Response {
	includeStreaming, ok := optBool(params, "include_streaming", true)
	if !ok {
		return invalid("include_streaming")
	}

	info, err := r.engine.CurrentLevel(ctx)
	if err != nil {
		return worldFailure(err, "Failed to read current level")
	}

	resp := protocol.Response{
		"persistent_level_path": info.PackagePath,
		"actor_count":           info.ActorCount,
		"is_dirty":              info.Dirty,
	}
	if includeStreaming {
		levels := make([]any, 0, len(info.Streaming))
		for _, sl := range info.Streaming {
			levels = append(levels, map[string]any{
				"package": sl.Package,
				"loaded":  sl.Loaded,
				"visible": sl.Visible,
			})
		}
		resp["streaming_levels"] = levels
	}
	return resp
}
