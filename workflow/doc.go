// Package workflow runs a fixed sequence of numbered steps with prerequisite
// tracking and console narration.
//
// # Overview
//
// A Sequence executes its steps strictly in the order they were added, on the
// calling goroutine. Each step may list the numbers of earlier steps it
// requires. If any required step did not succeed, the step is marked Skipped
// and its Run function is never called. Failures are otherwise isolated: a
// failed step does not stop unrelated steps from running.
//
// # State Progression
//
//	NotStarted -> Running -> Completed
//	NotStarted -> Skipped
//
// Result.Error holds ONLY the error returned by the step's Run function. A
// skipped step has a nil Error.
//
// # Usage Example
//
//	seq := workflow.NewSequence(
//	    workflow.WithLogger(logger),
//	    workflow.WithNarrator(narrator.New(os.Stdout)),
//	)
//	err := seq.Add(
//	    workflow.Step{Number: 1, Title: "Create", Run: create},
//	    workflow.Step{Number: 2, Title: "Read", Requires: []int{1}, Run: read},
//	)
//	if err != nil {
//	    return err
//	}
//	err = seq.Execute(ctx)
//	for n, r := range seq.GetAllResults() {
//	    fmt.Println(n, r.State, r.Error)
//	}
//
// # Narration
//
// When a Narrator is supplied, each executed step is bracketed by
// Announce/Complete banners and each skipped step is reported with Skip.
// A failed step's closing banner carries the error prefixed with ❌.
package workflow
