package sim

import (
	"encoding/json"
	"fmt"

	"github.com/sekia-ai/edbridge/internal/editor"
)

// Seeded package paths.
const (
	TemplateLevel  = "/Engine/Maps/Templates/Template_Default"
	BasicShapes    = "/Engine/BasicShapes/"
	LampBlueprint  = "/Game/Blueprints/BP_Lamp"
	DefaultLevel   = "/Game/Maps/Main"
	blueprintClass = "_C"
)

type savedComponent struct {
	Name       string `json:"name"`
	Class      string `json:"class"`
	StaticMesh string `json:"static_mesh,omitempty"`
}

type savedActor struct {
	Name       string           `json:"name"`
	Label      string           `json:"label"`
	Class      string           `json:"class"`
	Location   [3]float64       `json:"location"`
	Rotation   [3]float64       `json:"rotation"`
	Scale      [3]float64       `json:"scale"`
	Components []savedComponent `json:"components,omitempty"`
	Properties map[string]any   `json:"properties,omitempty"`
}

type savedStreaming struct {
	Package string `json:"package"`
	Loaded  bool   `json:"loaded"`
	Visible bool   `json:"visible"`
}

// levelData is the stored form of a World package.
type levelData struct {
	Actors    []savedActor     `json:"actors"`
	Streaming []savedStreaming `json:"streaming,omitempty"`
}

// blueprintData is the stored form of a Blueprint package.
type blueprintData struct {
	GeneratedClass string           `json:"generated_class"`
	ParentClass    string           `json:"parent_class"`
	Components     []savedComponent `json:"components"`
	Properties     map[string]any   `json:"properties,omitempty"`
}

func encodeLevel(actors []editor.Actor, streaming []editor.StreamingLevel) ([]byte, error) {
	data := levelData{Actors: make([]savedActor, 0, len(actors))}
	for _, a := range actors {
		sa := savedActor{
			Name:     a.Name,
			Label:    a.Label,
			Class:    a.Class,
			Location: [3]float64{a.Transform.Location.X, a.Transform.Location.Y, a.Transform.Location.Z},
			Rotation: [3]float64{a.Transform.Rotation.Pitch, a.Transform.Rotation.Yaw, a.Transform.Rotation.Roll},
			Scale:    [3]float64{a.Transform.Scale.X, a.Transform.Scale.Y, a.Transform.Scale.Z},
		}
		for _, c := range a.Components {
			sa.Components = append(sa.Components, savedComponent(c))
		}
		if len(a.Properties) > 0 {
			sa.Properties = make(map[string]any, len(a.Properties))
			for k, v := range a.Properties {
				sa.Properties[k] = v.JSON()
			}
		}
		data.Actors = append(data.Actors, sa)
	}
	for _, sl := range streaming {
		data.Streaming = append(data.Streaming, savedStreaming(sl))
	}
	return json.Marshal(data)
}

func decodeLevel(raw []byte) (levelData, error) {
	var data levelData
	if len(raw) == 0 {
		return data, nil
	}
	if err := json.Unmarshal(raw, &data); err != nil {
		return data, fmt.Errorf("decode level: %w", err)
	}
	return data, nil
}

func decodeBlueprint(raw []byte) (blueprintData, error) {
	var data blueprintData
	if err := json.Unmarshal(raw, &data); err != nil {
		return data, fmt.Errorf("decode blueprint: %w", err)
	}
	return data, nil
}

func mustJSON(v any) []byte {
	data, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	return data
}

// seedPackages is the content every new store starts with.
func seedPackages() []Record {
	recs := []Record{
		{
			Path:  TemplateLevel,
			Class: editor.ClassWorld,
			Data: mustJSON(levelData{Actors: []savedActor{
				{
					Name: "Floor", Label: "Floor", Class: "StaticMeshActor",
					Scale:      [3]float64{20, 20, 1},
					Components: []savedComponent{{Name: "StaticMeshComponent0", Class: editor.ClassStaticMeshComponent, StaticMesh: BasicShapes + "Plane"}},
				},
				{
					Name: "Sun", Label: "Sun", Class: "DirectionalLight",
					Location:   [3]float64{0, 0, 1000},
					Rotation:   [3]float64{-45, 30, 0},
					Scale:      [3]float64{1, 1, 1},
					Components: []savedComponent{{Name: "LightComponent0", Class: "DirectionalLightComponent"}},
				},
			}}),
		},
		{
			Path:  LampBlueprint,
			Class: editor.ClassBlueprint,
			Data: mustJSON(blueprintData{
				GeneratedClass: "BP_Lamp" + blueprintClass,
				ParentClass:    "PointLight",
				Components: []savedComponent{
					{Name: "LampMesh", Class: editor.ClassStaticMeshComponent, StaticMesh: BasicShapes + "Cylinder"},
					{Name: "LampLight", Class: "PointLightComponent"},
				},
				Properties: map[string]any{"Intensity": 2500.0, "AttenuationRadius": 600.0},
			}),
		},
	}
	for _, shape := range []string{"Cube", "Sphere", "Cylinder", "Cone", "Plane"} {
		recs = append(recs, Record{
			Path:  BasicShapes + shape,
			Class: editor.ClassStaticMesh,
			Data:  mustJSON(map[string]any{"shape": shape}),
		})
	}
	return recs
}
