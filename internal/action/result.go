package action

import "fmt"

// Status is the coarse outcome of a dispatch.
type Status uint8

const (
	StatusOK     Status = iota // queried and executed
	StatusQueued               // accepted, will execute at a later point
	StatusErr                  // refused; the world is untouched
)

func (s Status) String() string {
	switch s {
	case StatusOK:
		return "ok"
	case StatusQueued:
		return "queued"
	case StatusErr:
		return "error"
	default:
		return fmt.Sprintf("status(%d)", uint8(s))
	}
}

// Class categorises a refusal. Refusals are verdicts, not Go errors: a
// failed query is a normal outcome the caller renders to a player.
type Class uint8

const (
	ClassNone          Class = iota
	ErrPermission            // origin may not perform this action
	ErrTargetNotFound        // referenced entity does not exist
	ErrInvalidArgument       // payload outside the domain's invariants
	ErrFunds                 // treasury cannot cover the cost
	ErrCapacity              // a world limit would be exceeded
	ErrPaused                // refused by the dispatcher's pause gate
	ErrWrongPhase            // not valid in the current match substate
)

func (c Class) String() string {
	switch c {
	case ClassNone:
		return "none"
	case ErrPermission:
		return "permission"
	case ErrTargetNotFound:
		return "target not found"
	case ErrInvalidArgument:
		return "invalid argument"
	case ErrFunds:
		return "insufficient funds"
	case ErrCapacity:
		return "capacity"
	case ErrPaused:
		return "paused"
	case ErrWrongPhase:
		return "wrong phase"
	default:
		return fmt.Sprintf("class(%d)", uint8(c))
	}
}

// Result is the outcome of a query, execution or dispatch.
type Result struct {
	Status Status
	Class  Class
	Detail string
	Cost   int64
}

func OK() Result {
	return Result{Status: StatusOK}
}

func OKCost(cost int64) Result {
	return Result{Status: StatusOK, Cost: cost}
}

func Queued() Result {
	return Result{Status: StatusQueued}
}

func Fail(class Class, detail string) Result {
	return Result{Status: StatusErr, Class: class, Detail: detail}
}

// Failed reports whether the action was refused.
func (r Result) Failed() bool {
	return r.Status == StatusErr
}

func (r Result) String() string {
	if r.Failed() {
		if r.Detail != "" {
			return fmt.Sprintf("%s: %s (%s)", r.Status, r.Class, r.Detail)
		}
		return fmt.Sprintf("%s: %s", r.Status, r.Class)
	}
	if r.Cost != 0 {
		return fmt.Sprintf("%s (cost %d)", r.Status, r.Cost)
	}
	return r.Status.String()
}
