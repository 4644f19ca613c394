package ember

import (
	"reflect"
)

type AppBuilder struct {
	app     *App
	modules []Module
}

func NewAppBuilder() *AppBuilder {
	stages := []Stage{PreUpdate, Update, PostUpdate, PreRender, RenderOp, PostRender}
	systems := make(map[string][]systemFn, len(stages))
	for _, s := range stages {
		systems[s.Name] = make([]systemFn, 0)
	}
	return &AppBuilder{app: &App{
		stages:    stages,
		systems:   systems,
		resources: make(map[reflect.Type]any),
	}}
}

func (b *AppBuilder) UseModule(modules ...Module) *AppBuilder {
	b.modules = append(b.modules, modules...)
	return b
}

// Build installs every module in registration order and returns the app.
func (b *AppBuilder) Build() *App {
	for _, module := range b.modules {
		module.Install(b.app)
	}
	return b.app
}
