package irrigation_controller

import "fmt"

// Trace is the ordered, human-readable record of one decision run.
// It is owned by a single run and is not safe for concurrent use.
type Trace struct {
	steps    []string
	warnings int
}

func (t *Trace) add(marker, format string, args ...any) {
	t.steps = append(t.steps, marker+" "+fmt.Sprintf(format, args...))
}

// Ok records a completed step.
func (t *Trace) Ok(format string, args ...any) { t.add("[ok]", format, args...) }

// Calc records a computation step.
func (t *Trace) Calc(format string, args ...any) { t.add("[calc]", format, args...) }

// Warn records a recovered problem; the run continues.
func (t *Trace) Warn(format string, args ...any) {
	t.warnings++
	t.add("[warn]", format, args...)
}

// Fail records the step that aborted the run.
func (t *Trace) Fail(format string, args ...any) { t.add("[error]", format, args...) }

// Steps returns a copy of the recorded steps.
func (t Trace) Steps() []string {
	out := make([]string, len(t.steps))
	copy(out, t.steps)
	return out
}

// Warnings is the number of warning steps.
func (t Trace) Warnings() int { return t.warnings }

func (t Trace) Len() int { return len(t.steps) }
