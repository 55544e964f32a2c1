package fleetview

import (
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"

	"github.com/google/uuid"
)

// Observer is any value that implements at least one of [StartObserver],
// [StopObserver], [UpdateObserver] or [FailureObserver]. The poller checks
// each capability separately, so an observer only implements the hooks it
// cares about.
type Observer any

// StartObserver is notified when a start command begins.
type StartObserver interface {
	OnStart()
}

// StopObserver is notified when a session's terminal condition is reached.
type StopObserver interface {
	OnStop()
}

// UpdateObserver receives every successful poll.
type UpdateObserver interface {
	OnUpdate(Snapshot)
}

// FailureObserver is notified when a session dies on a fleet API failure,
// alongside the poller's failure handler.
type FailureObserver interface {
	OnFailure(error)
}

// ObserverFuncs adapts plain functions to the observer interfaces. Nil fields
// are skipped.
//
// Example:
//
//	p.AddObserver(fleetview.ObserverFuncs{
//	    Update: func(s fleetview.Snapshot) {
//	        fmt.Printf("%d/%d running\n", s.Running(), s.Alive())
//	    },
//	})
type ObserverFuncs struct {
	Start   func()
	Stop    func()
	Update  func(Snapshot)
	Failure func(error)
}

// OnStart calls f.Start if set.
func (f ObserverFuncs) OnStart() {
	if f.Start != nil {
		f.Start()
	}
}

// OnStop calls f.Stop if set.
func (f ObserverFuncs) OnStop() {
	if f.Stop != nil {
		f.Stop()
	}
}

// OnUpdate calls f.Update if set.
func (f ObserverFuncs) OnUpdate(s Snapshot) {
	if f.Update != nil {
		f.Update(s)
	}
}

// OnFailure calls f.Failure if set.
func (f ObserverFuncs) OnFailure(err error) {
	if f.Failure != nil {
		f.Failure(err)
	}
}

// validateObserver rejects values that implement none of the hooks.
func validateObserver(o Observer) error {
	if o == nil {
		return errors.New("observer cannot be nil")
	}
	_, isStart := o.(StartObserver)
	_, isStop := o.(StopObserver)
	_, isUpdate := o.(UpdateObserver)
	_, isFailure := o.(FailureObserver)
	if !isStart && !isStop && !isUpdate && !isFailure {
		return fmt.Errorf("observer %T implements none of OnStart, OnStop, OnUpdate, OnFailure", o)
	}
	return nil
}

// invokeSafe runs fn with panic recovery. A panic is logged with a
// correlation ID and does not propagate into the polling loop.
func invokeSafe(logger *slog.Logger, hook string, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("fleet hook panicked",
				"hook", hook,
				"correlation_id", uuid.NewString(),
				"panic", fmt.Sprintf("%v", r),
				"stack", string(debug.Stack()),
			)
		}
	}()
	fn()
}
