package assets

import (
	"errors"
	"reflect"
	"testing"
)

func TestRunStepsRollsBackInReverse(t *testing.T) {
	var log []string
	stepOK := func(name string) step {
		return step{
			name: name,
			do:   func() error { log = append(log, "do "+name); return nil },
			undo: func() error { log = append(log, "undo "+name); return nil },
		}
	}
	boom := errors.New("boom")

	err := runSteps("test",
		stepOK("a"),
		step{name: "no-undo", do: func() error { log = append(log, "do no-undo"); return nil }},
		stepOK("b"),
		step{name: "fail", do: func() error { return boom }, undo: func() error {
			log = append(log, "undo fail")
			return nil
		}},
		stepOK("never"),
	)

	if !errors.Is(err, boom) {
		t.Fatalf("runSteps() error = %v, want boom", err)
	}
	want := []string{"do a", "do no-undo", "do b", "undo b", "undo a"}
	if !reflect.DeepEqual(log, want) {
		t.Errorf("steps = %v, want %v", log, want)
	}
}

func TestRunStepsJoinsRollbackFailures(t *testing.T) {
	boom := errors.New("boom")
	undoErr := errors.New("undo failed")

	err := runSteps("test",
		step{name: "a", do: func() error { return nil }, undo: func() error { return undoErr }},
		step{name: "b", do: func() error { return boom }},
	)

	if !errors.Is(err, boom) || !errors.Is(err, undoErr) {
		t.Errorf("runSteps() error = %v, want both failures", err)
	}
}

func TestRunStepsSuccess(t *testing.T) {
	calls := 0
	err := runSteps("test",
		step{name: "a", do: func() error { calls++; return nil }},
		step{name: "b", do: func() error { calls++; return nil }},
	)
	if err != nil || calls != 2 {
		t.Errorf("runSteps() = %v with %d calls", err, calls)
	}
}
