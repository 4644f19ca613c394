package core

import (
	"github.com/go-gl/mathgl/mgl32"
)

// ShaderPass is one named sub-pass of a shader. Source is WGSL.
type ShaderPass struct {
	Name   string
	Source string
}

// Shader is an authored shader asset: an identity plus its sub-passes.
// Compilation into GPU programs happens per keyword set through a Compiler.
type Shader struct {
	ID     ShaderID
	Name   string
	Passes []ShaderPass
}

func NewShader(name string, passes ...ShaderPass) *Shader {
	return &Shader{ID: NewShaderID(), Name: name, Passes: passes}
}

// PassIndex returns the index of the named sub-pass, or -1 when the shader
// defines no such pass.
func (s *Shader) PassIndex(name string) int {
	for i, p := range s.Passes {
		if p.Name == name {
			return i
		}
	}
	return -1
}

// CompiledPass is one GPU program of a compiled variant. Program is an
// opaque device handle (a *wgpu.RenderPipeline on the webgpu path).
type CompiledPass struct {
	Name    string
	Program any

	// ParamIndex maps parameter names to bind slots for this program.
	ParamIndex map[string]int

	// LightBuffer marks a pass whose shader reads the per-frame light
	// storage buffer and shadow atlas; the submitter binds them for it.
	LightBuffer bool
}

// Variant is the result of compiling a shader against one keyword set.
// Variants are immutable once built.
type Variant struct {
	Shader   ShaderID
	Keywords string // canonical merged keyword key
	Passes   []CompiledPass
}

// Compiler resolves a compiled per-pass program array for a (shader,
// keyword set) pair. Supplied by the device layer; tests use a stub.
type Compiler interface {
	Compile(shader *Shader, keywords KeywordSet) (*Variant, error)
}

// Material owns a shader reference and a set of named parameter overrides.
type Material struct {
	ID     MaterialID
	Name   string
	Shader *Shader

	// Local keyword flags, merged with the context's global set at
	// variant resolution time.
	Keywords KeywordSet

	Properties PropertyBlock

	// ShadowPass names the sub-pass used during shadow rendering.
	// Empty means "fall back to sub-pass 0".
	ShadowPass string

	// Parameter lookups are cached per compiled variant; a new variant
	// (different keyword set) invalidates the cache.
	cachedVariant *Variant
	cachedParams  map[string]int
}

func NewMaterial(name string, shader *Shader) *Material {
	return &Material{
		ID:       NewMaterialID(),
		Name:     name,
		Shader:   shader,
		Keywords: NewKeywordSet(),
	}
}

// ParamIndex returns the bind slot of the named parameter in the given
// pass of the compiled variant, or -1 when the variant does not expose it.
// Lookups are cached lazily; the cache is dropped when variant changes.
func (m *Material) ParamIndex(variant *Variant, pass int, name string) int {
	if variant != m.cachedVariant {
		m.cachedVariant = variant
		m.cachedParams = make(map[string]int)
	}
	cacheKey := variant.Passes[pass].Name + "\x00" + name
	if idx, ok := m.cachedParams[cacheKey]; ok {
		return idx
	}
	idx, ok := variant.Passes[pass].ParamIndex[name]
	if !ok {
		idx = -1
	}
	m.cachedParams[cacheKey] = idx
	return idx
}

// PropertyBlock is a pure value bag of shader parameters, applied
// immediately before a draw. It holds no shader ownership.
type PropertyBlock struct {
	Floats   map[string]float32
	Vectors  map[string]mgl32.Vec4
	Matrices map[string]mgl32.Mat4
	Textures map[string]TextureID
}

func NewPropertyBlock() PropertyBlock {
	return PropertyBlock{
		Floats:   make(map[string]float32),
		Vectors:  make(map[string]mgl32.Vec4),
		Matrices: make(map[string]mgl32.Mat4),
		Textures: make(map[string]TextureID),
	}
}

func (pb *PropertyBlock) SetFloat(name string, v float32) {
	if pb.Floats == nil {
		pb.Floats = make(map[string]float32)
	}
	pb.Floats[name] = v
}

func (pb *PropertyBlock) SetVector(name string, v mgl32.Vec4) {
	if pb.Vectors == nil {
		pb.Vectors = make(map[string]mgl32.Vec4)
	}
	pb.Vectors[name] = v
}

func (pb *PropertyBlock) SetMatrix(name string, v mgl32.Mat4) {
	if pb.Matrices == nil {
		pb.Matrices = make(map[string]mgl32.Mat4)
	}
	pb.Matrices[name] = v
}

func (pb *PropertyBlock) SetTexture(name string, tex TextureID) {
	if pb.Textures == nil {
		pb.Textures = make(map[string]TextureID)
	}
	pb.Textures[name] = tex
}

// Empty reports whether the block carries no overrides.
func (pb *PropertyBlock) Empty() bool {
	return len(pb.Floats) == 0 && len(pb.Vectors) == 0 &&
		len(pb.Matrices) == 0 && len(pb.Textures) == 0
}
