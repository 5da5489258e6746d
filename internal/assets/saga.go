package assets

import (
	"errors"
	"fmt"

	"folio/internal/logging"
)

// step is one action of a multi-step operation. undo reverses a completed
// do and may be nil.
type step struct {
	name string
	do   func() error
	undo func() error
}

// runSteps executes steps in order. When one fails, the undo actions of the
// steps already completed run in reverse order. The returned error is the
// failing step's error, joined with any undo failures.
func runSteps(op string, steps ...step) error {
	for i, s := range steps {
		err := s.do()
		if err == nil {
			continue
		}

		logging.Debug("%s: step %q failed, rolling back %d step(s): %v", op, s.name, i, err)
		errs := []error{err}
		for j := i - 1; j >= 0; j-- {
			if steps[j].undo == nil {
				continue
			}
			if uerr := steps[j].undo(); uerr != nil {
				logging.Error("%s: rollback of %q failed: %v", op, steps[j].name, uerr)
				errs = append(errs, fmt.Errorf("rollback %s: %w", steps[j].name, uerr))
			}
		}
		if len(errs) == 1 {
			return err
		}
		return errors.Join(errs...)
	}
	return nil
}
