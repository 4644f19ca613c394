// Package ember is a small real-time rendering engine: a module/resource
// app shell, a retained scene registry, and a forward rendering pipeline
// with a shared shadow atlas under render/.
package ember

import (
	"fmt"
	"reflect"
	"runtime"
)

type systemFn any

// Stage is one phase of the frame loop. Systems run in stage order, and
// in registration order within a stage.
type Stage struct {
	Name string
}

var (
	PreUpdate  = Stage{Name: "PreUpdate"}
	Update     = Stage{Name: "Update"}
	PostUpdate = Stage{Name: "PostUpdate"}
	PreRender  = Stage{Name: "PreRender"}
	RenderOp   = Stage{Name: "Render"}
	PostRender = Stage{Name: "PostRender"}
)

// Module wires a feature into the app: resources, systems, or both.
type Module interface {
	Install(app *App)
}

// App owns the resource registry and the staged frame loop. Resources are
// keyed by concrete type; systems receive them by pointer through
// reflection, matched on parameter type.
type App struct {
	stages    []Stage
	systems   map[string][]systemFn
	resources map[reflect.Type]any

	quit bool
}

func (app *App) addResources(resources ...any) *App {
	for _, resource := range resources {
		resourceType := reflect.TypeOf(resource)
		if _, ok := app.resources[resourceType.Elem()]; ok {
			panic(fmt.Sprintf("%s is already in resources", resourceType))
		}
		app.resources[resourceType.Elem()] = resource
	}
	return app
}

// AddResources registers pointer resources. Panics on a duplicate type:
// two modules providing the same resource is a wiring error.
func (app *App) AddResources(resources ...any) *App {
	return app.addResources(resources...)
}

// Resource returns the resource of the exact type of ptr's pointee, or
// nil when absent.
func (app *App) Resource(ptr any) any {
	t := reflect.TypeOf(ptr)
	if t == nil || t.Kind() != reflect.Pointer {
		return nil
	}
	if r, ok := app.resources[t.Elem()]; ok {
		return r
	}
	return nil
}

type systemScheduleBuilder struct {
	stage  Stage
	system systemFn
}

// System schedules a function into the frame loop; defaults to the Update
// stage.
func System(system systemFn) systemScheduleBuilder {
	return systemScheduleBuilder{system: system, stage: Update}
}

func (sched systemScheduleBuilder) InStage(s Stage) systemScheduleBuilder {
	return systemScheduleBuilder{system: sched.system, stage: s}
}

func (app *App) UseSystem(system systemScheduleBuilder) *App {
	if _, ok := app.systems[system.stage.Name]; !ok {
		panic(fmt.Sprintf("Stage %v doesn't exist", system.stage.Name))
	}
	app.systems[system.stage.Name] = append(app.systems[system.stage.Name], system.system)
	return app
}

// RunFrame executes every stage once, in order.
func (app *App) RunFrame() {
	for _, stage := range app.stages {
		for _, system := range app.systems[stage.Name] {
			app.callSystem(system)
		}
	}
}

// Run executes frames until Quit is called.
func (app *App) Run() {
	for !app.quit {
		app.RunFrame()
	}
}

// Quit stops the frame loop after the current frame.
func (app *App) Quit() {
	app.quit = true
}

func (app *App) callSystem(system systemFn) {
	systemType := reflect.TypeOf(system)
	systemValue := reflect.ValueOf(system)

	args := make([]reflect.Value, systemType.NumIn())
	for i := 0; i < systemType.NumIn(); i++ {
		argType := systemType.In(i)
		if argType.Kind() != reflect.Pointer {
			panic(fmt.Sprintf("System %s: parameter %d must be a resource pointer, got %s",
				runtime.FuncForPC(systemValue.Pointer()).Name(), i, argType))
		}
		underlyingType := argType.Elem()

		if underlyingType == reflect.TypeOf(App{}) {
			args[i] = reflect.ValueOf(app)
			continue
		}
		resource, ok := app.resources[underlyingType]
		if !ok {
			panic(fmt.Sprintf("Unable to resolve System dependency.\nSystem: %s\nDependency: %s",
				runtime.FuncForPC(systemValue.Pointer()).Name(), argType))
		}
		args[i] = reflect.ValueOf(resource)
	}
	systemValue.Call(args)
}
