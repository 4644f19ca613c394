package ember

import (
	"time"
)

// Time is the per-frame clock resource.
type Time struct {
	Time time.Time
	Dt   time.Duration
}

// DeltaSeconds returns the last frame's duration as float seconds.
func (t *Time) DeltaSeconds() float32 {
	return float32(t.Dt.Seconds())
}

type TimeModule struct {
}

func (mod TimeModule) Install(app *App) {
	app.addResources(&Time{Time: time.Now()})
	app.UseSystem(System(timeSystem).InStage(PreUpdate))
}

func timeSystem(timeResource *Time) {
	now := time.Now()
	timeResource.Dt = now.Sub(timeResource.Time)
	timeResource.Time = now
}
