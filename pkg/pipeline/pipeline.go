package pipeline

import (
	"context"
	"fmt"
	"io"

	"github.com/hashicorp/go-hclog"
	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"
)

// AbortError marks a run cut short by the user rather than by a stage
// failure. Callers map it to the abort exit path.
type AbortError struct {
	Err error
}

func (e *AbortError) Error() string {
	return "installation aborted"
}

func (e *AbortError) Unwrap() error {
	return e.Err
}

func IsAbort(err error) bool {
	var ae *AbortError
	return errors.As(err, &ae)
}

type step struct {
	name string
	fn   func(context.Context) error
}

// Pipeline runs an ordered list of fallible stages, stopping at the first
// failure. Cleanup handlers registered along the way are guaranteed to run
// on every exit path, including cancellation.
type Pipeline struct {
	L hclog.Logger

	// Output receives user-facing notices (the abort message).
	Output io.Writer

	steps     []step
	always    []func() error
	onFailure []func() error
}

func (p *Pipeline) logger() hclog.Logger {
	if p.L != nil {
		return p.L
	}

	return hclog.L()
}

func (p *Pipeline) Step(name string, fn func(context.Context) error) {
	p.steps = append(p.steps, step{name: name, fn: fn})
}

// Always registers a cleanup run on success, failure, and abort alike.
func (p *Pipeline) Always(fn func() error) {
	p.always = append(p.always, fn)
}

// OnFailure registers a cleanup run only when the pipeline does not
// complete, so a successful install keeps its artifacts.
func (p *Pipeline) OnFailure(fn func() error) {
	p.onFailure = append(p.onFailure, fn)
}

func (p *Pipeline) Run(ctx context.Context) (err error) {
	defer func() {
		var cleanupErr error

		if err != nil {
			cleanupErr = runAll(p.onFailure, cleanupErr)
		}

		cleanupErr = runAll(p.always, cleanupErr)

		if cleanupErr != nil {
			p.logger().Warn("cleanup incomplete", "error", cleanupErr)
		}
	}()

	for _, s := range p.steps {
		if cerr := ctx.Err(); cerr != nil {
			return p.abort(cerr)
		}

		p.logger().Debug("running stage", "stage", s.name)

		serr := s.fn(ctx)
		if serr != nil {
			if errors.Is(serr, context.Canceled) || ctx.Err() != nil {
				return p.abort(serr)
			}

			return errors.Wrapf(serr, "stage %s", s.name)
		}
	}

	return nil
}

func (p *Pipeline) abort(cause error) error {
	if p.Output != nil {
		fmt.Fprintf(p.Output, "! Aborting, cleaning up.\n")
	}

	return &AbortError{Err: cause}
}

// runAll executes cleanups in LIFO order so later stages release their
// resources before the stages they depended on.
func runAll(fns []func() error, agg error) error {
	for i := len(fns) - 1; i >= 0; i-- {
		if err := fns[i](); err != nil {
			agg = multierror.Append(agg, err)
		}
	}

	return agg
}
