package ember

import (
	"fmt"
	"reflect"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type MockResource1 struct {
	name string
}
type MockResource2 struct {
	name string
}

func NewMockResource1(name string) *MockResource1 {
	return &MockResource1{name: name}
}
func NewMockResource2(name string) *MockResource2 {
	return &MockResource2{name: name}
}

func TestApp_addResources(t *testing.T) {
	app := NewAppBuilder().Build()

	resource1 := NewMockResource1("Resource1")
	app.addResources(resource1)

	assert.Contains(t, app.resources, reflect.TypeOf(resource1).Elem(), "Resource1 should be in resources map.")

	require.PanicsWithValue(t, fmt.Sprintf("%s is already in resources", reflect.TypeOf(resource1)), func() {
		app.addResources(resource1)
	})

	resource2 := NewMockResource2("Resource2")
	app.addResources(resource2)
	assert.Contains(t, app.resources, reflect.TypeOf(resource2).Elem(), "Resource2 should be in resources map.")
}

func TestApp_systemInjection(t *testing.T) {
	app := NewAppBuilder().Build()
	app.addResources(NewMockResource1("hello"))

	called := false
	app.UseSystem(System(func(r *MockResource1) {
		called = true
		assert.Equal(t, "hello", r.name)
	}))

	app.RunFrame()
	assert.True(t, called, "system should run during RunFrame")
}

func TestApp_systemMissingDependencyPanics(t *testing.T) {
	app := NewAppBuilder().Build()
	app.UseSystem(System(func(r *MockResource1) {}))

	require.Panics(t, func() {
		app.RunFrame()
	})
}

func TestApp_stageOrder(t *testing.T) {
	app := NewAppBuilder().Build()

	var order []string
	app.UseSystem(System(func(a *App) { order = append(order, "render") }).InStage(RenderOp))
	app.UseSystem(System(func(a *App) { order = append(order, "update") }).InStage(Update))
	app.UseSystem(System(func(a *App) { order = append(order, "prerender") }).InStage(PreRender))

	app.RunFrame()
	assert.Equal(t, []string{"update", "prerender", "render"}, order)
}

type stubModule struct {
	installed *bool
}

func (m stubModule) Install(app *App) { *m.installed = true }

func TestAppBuilder_installsModules(t *testing.T) {
	installed := false
	app := NewAppBuilder().UseModule(stubModule{installed: &installed}).Build()

	require.NotNil(t, app)
	assert.True(t, installed, "Build must install registered modules")
}

func TestApp_LoggerFallback(t *testing.T) {
	app := NewAppBuilder().Build()
	require.NotNil(t, app.Logger(), "Logger must never return nil")

	LoggingModule{Prefix: "test"}.Install(app)
	_, ok := app.Logger().(*DefaultLogger)
	assert.True(t, ok, "installed logger should win over the no-op fallback")
}

func TestEnsureSingleRenderer(t *testing.T) {
	app := NewAppBuilder().Build()

	ensureSingleRenderer(app, "ember.forward")
	// Same renderer again is fine.
	ensureSingleRenderer(app, "ember.forward")

	require.Panics(t, func() {
		ensureSingleRenderer(app, "other.renderer")
	})
}

func TestApp_quitStopsRun(t *testing.T) {
	app := NewAppBuilder().Build()

	frames := 0
	app.UseSystem(System(func(a *App) {
		frames++
		if frames == 3 {
			a.Quit()
		}
	}))

	app.Run()
	assert.Equal(t, 3, frames)
}
