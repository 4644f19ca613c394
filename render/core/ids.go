package core

import (
	"github.com/google/uuid"
)

// Resource identities are opaque strings, unique per process run.
type (
	ShaderID   string
	MaterialID string
	MeshID     string
	TextureID  string
)

func NewShaderID() ShaderID     { return ShaderID(uuid.NewString()) }
func NewMaterialID() MaterialID { return MaterialID(uuid.NewString()) }
func NewMeshID() MeshID         { return MeshID(uuid.NewString()) }
func NewTextureID() TextureID   { return TextureID(uuid.NewString()) }
