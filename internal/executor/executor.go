// Package executor runs one job's task against the object store. Task
// names are a closed registry resolved at submit time, not dispatched
// dynamically, so an unrecognized task name fails fast instead of
// silently routing to a no-op (§4.6's task-dispatch design note).
package executor

import (
	"context"
	"errors"
	"fmt"

	"chordkv/internal/objectstore"
)

// Task is a tagged job kind, parsed once from the wire's task_name
// string and carried through the job record from then on.
type Task int

const (
	TaskUnknown Task = iota
	TaskFit
	TaskDespeckle
	TaskGrid
	TaskMap
)

// ErrUnknownTask is returned by ParseTask for any name outside the
// closed registry below.
var ErrUnknownTask = errors.New("executor: unknown task")

// ParseTask resolves a wire task_name to a Task, rejecting anything
// unrecognized instead of defaulting to a no-op.
func ParseTask(name string) (Task, error) {
	switch name {
	case "fit":
		return TaskFit, nil
	case "despeckle":
		return TaskDespeckle, nil
	case "grid", "makegrid":
		return TaskGrid, nil
	case "map":
		return TaskMap, nil
	default:
		return TaskUnknown, fmt.Errorf("%w: %q", ErrUnknownTask, name)
	}
}

func (t Task) String() string {
	switch t {
	case TaskFit:
		return "fit"
	case TaskDespeckle:
		return "despeckle"
	case TaskGrid:
		return "grid"
	case TaskMap:
		return "map"
	default:
		return "unknown"
	}
}

// Executor runs one task to completion, reading source and writing
// dest through the object store, reporting synthetic progress through
// progress (which may be nil).
type Executor interface {
	Execute(ctx context.Context, task Task, store objectstore.Store, source, dest objectstore.Artifact, params string, progress func(pct int)) (objectstore.Artifact, error)
}

// report calls progress if non-nil, so callers never need a nil check
// at every call site.
func report(progress func(pct int), pct int) {
	if progress != nil {
		progress(pct)
	}
}
