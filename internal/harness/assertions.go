package harness

import (
	"fmt"
	"strings"
)

// AssertionError is returned when an assertion fails.
// It includes detailed context to help debug the failure.
type AssertionError struct {
	Type     string       // Assertion type for categorization
	Expected string       // Human-readable expected outcome
	Actual   string       // Human-readable actual outcome
	Trace    []TraceEvent // Full trace for debugging context
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	fmt.Fprintf(&buf, "\nFull trace:\n")
	for _, event := range e.Trace {
		fmt.Fprintf(&buf, "  [%d] %s\n", event.Seq, describe(event))
	}

	return buf.String()
}

func describe(e TraceEvent) string {
	switch e.Type {
	case EventPoll:
		return fmt.Sprintf("poll -> mission %d (%s)", e.Mission, e.Date)
	case EventSweep:
		return fmt.Sprintf("sweep mission %d %s player=%d", e.Mission, e.Date, e.Player)
	case EventDecision:
		s := fmt.Sprintf("pilot %d %d->%d %s", e.Pilot, e.From, e.To, e.Reason)
		if e.Attempt != "" {
			s += " attempt=" + e.Attempt
		}
		if e.Error != "" {
			s += " error=" + e.Error
		}
		return s
	case EventNotification:
		return fmt.Sprintf("%s %s: %s", e.Kind, e.Name, e.Title)
	default:
		return e.Type + " " + e.Error
	}
}

// assertRank checks a pilot's final rank.
func assertRank(result *Result, a Assertion) error {
	rank, ok := result.Rank(a.Pilot)
	actual := fmt.Sprintf("rank %d", rank)
	if !ok {
		actual = "pilot not found"
	}
	if ok && rank == a.Rank {
		return nil
	}
	return &AssertionError{
		Type:     AssertRank,
		Expected: fmt.Sprintf("pilot %d at rank %d", a.Pilot, a.Rank),
		Actual:   actual,
		Trace:    result.Trace,
	}
}

// assertAttempt checks the fields of a pilot's attempt record that the
// assertion sets.
func assertAttempt(result *Result, a Assertion) error {
	rec, ok := result.Attempt(a.Pilot)
	fail := func(expected, actual string) error {
		return &AssertionError{
			Type:     AssertAttempt,
			Expected: fmt.Sprintf("pilot %d %s", a.Pilot, expected),
			Actual:   actual,
			Trace:    result.Trace,
		}
	}
	if !ok {
		return fail("has an attempt record", "no record")
	}
	if a.LastAttempt != "" && rec.LastAttempt != a.LastAttempt {
		return fail("last_attempt "+a.LastAttempt, rec.LastAttempt)
	}
	if a.LastSuccess != nil && rec.LastSuccess != *a.LastSuccess {
		return fail(fmt.Sprintf("last_success %t", *a.LastSuccess), fmt.Sprintf("%t", rec.LastSuccess))
	}
	if a.FailCount != nil && rec.FailCount != *a.FailCount {
		return fail(fmt.Sprintf("fail_count %d", *a.FailCount), fmt.Sprintf("%d", rec.FailCount))
	}
	return nil
}

func assertNoAttempt(result *Result, a Assertion) error {
	rec, ok := result.Attempt(a.Pilot)
	if !ok {
		return nil
	}
	return &AssertionError{
		Type:     AssertNoAttempt,
		Expected: fmt.Sprintf("pilot %d has no attempt record", a.Pilot),
		Actual:   fmt.Sprintf("%+v", rec),
		Trace:    result.Trace,
	}
}

// assertNotifications checks the kinds of all delivered notifications, in
// order.
func assertNotifications(result *Result, a Assertion) error {
	var kinds []string
	for _, e := range result.Events(EventNotification) {
		kinds = append(kinds, e.Kind)
	}
	if strings.Join(kinds, ",") == strings.Join(a.Kinds, ",") {
		return nil
	}
	return &AssertionError{
		Type:     AssertNotifications,
		Expected: fmt.Sprintf("%v", a.Kinds),
		Actual:   fmt.Sprintf("%v", kinds),
		Trace:    result.Trace,
	}
}

func assertSweeps(result *Result, a Assertion) error {
	n := len(result.Events(EventSweep))
	if n == *a.Count {
		return nil
	}
	return &AssertionError{
		Type:     AssertSweeps,
		Expected: fmt.Sprintf("%d sweeps", *a.Count),
		Actual:   fmt.Sprintf("%d sweeps", n),
		Trace:    result.Trace,
	}
}

// EvaluateAssertions evaluates all assertions against the result.
// Returns a slice of error messages for failed assertions.
func EvaluateAssertions(result *Result, assertions []Assertion) []string {
	var errors []string

	for i, assertion := range assertions {
		var err error

		switch assertion.Type {
		case AssertRank:
			err = assertRank(result, assertion)
		case AssertAttempt:
			err = assertAttempt(result, assertion)
		case AssertNoAttempt:
			err = assertNoAttempt(result, assertion)
		case AssertNotifications:
			err = assertNotifications(result, assertion)
		case AssertSweeps:
			if assertion.Count == nil {
				err = fmt.Errorf("assertion[%d]: sweeps requires count", i)
			} else {
				err = assertSweeps(result, assertion)
			}
		default:
			err = fmt.Errorf("assertion[%d]: unknown assertion type %q", i, assertion.Type)
		}

		if err != nil {
			errors = append(errors, err.Error())
		}
	}

	return errors
}
