// Package model holds the declarative block-model schema and the resolver
// that flattens a model's parent chain into a concrete geometric description.
package model

import "encoding/json"

// Model is the JSON schema of one block model file.
type Model struct {
	Parent           string             `json:"parent"`
	AmbientOcclusion *bool              `json:"ambientocclusion"`
	Textures         map[string]string  `json:"textures"`
	Elements         []Element          `json:"elements"`
	Display          map[string]Display `json:"display"`
}

// Element is one cuboid of a model, spanning From..To in 0..16 model units.
type Element struct {
	From     [3]float32              `json:"from"`
	To       [3]float32              `json:"to"`
	Rotation *Rotation               `json:"rotation"`
	Shade    *bool                   `json:"shade"`
	Faces    map[string]*ElementFace `json:"faces"`
}

// FullCube reports whether the element spans the entire 16x16x16 block.
func (e *Element) FullCube() bool {
	return e.From == [3]float32{0, 0, 0} && e.To == [3]float32{16, 16, 16}
}

// ElementFace assigns a texture and UV sub-rectangle to one direction of an
// element. UV is nil when the model relies on the default 0,0,16,16 quad.
type ElementFace struct {
	UV        *[4]float32 `json:"uv"`
	Texture   string      `json:"texture"`
	CullFace  string      `json:"cullface"`
	Rotation  int         `json:"rotation"`
	TintIndex *int        `json:"tintindex"`
}

type Rotation struct {
	Origin  [3]float32 `json:"origin"`
	Angle   float32    `json:"angle"`
	Axis    string     `json:"axis"`
	Rescale bool       `json:"rescale"`
}

type Display struct {
	Rotation    [3]float32 `json:"rotation"`
	Translation [3]float32 `json:"translation"`
	Scale       [3]float32 `json:"scale"`
}

// BlockState maps variant property strings (e.g. "facing=north") to the
// models that render them.
type BlockState struct {
	Variants map[string]Variants `json:"variants"`
}

// Variants tolerates both a single variant object and an array of them,
// which block state files use interchangeably.
type Variants []Variant

func (v *Variants) UnmarshalJSON(data []byte) error {
	var list []Variant
	if err := json.Unmarshal(data, &list); err == nil {
		*v = list
		return nil
	}

	var single Variant
	if err := json.Unmarshal(data, &single); err != nil {
		return err
	}

	*v = []Variant{single}
	return nil
}

type Variant struct {
	Model  string `json:"model"`
	X      int    `json:"x"`
	Y      int    `json:"y"`
	Weight int    `json:"weight"`
}
