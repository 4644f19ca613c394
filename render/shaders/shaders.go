package shaders

import (
	_ "embed"
)

//go:embed forward.wgsl
var ForwardWGSL string

//go:embed shadow.wgsl
var ShadowWGSL string

//go:embed skybox.wgsl
var SkyboxWGSL string

//go:embed grid.wgsl
var GridWGSL string

//go:embed gizmo.wgsl
var GizmoWGSL string

//go:embed tonemap.wgsl
var TonemapWGSL string
