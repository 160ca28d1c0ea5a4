package reconcile

// Status classifies how a reconciliation run ended.
type Status string

const (
	StatusOK        Status = "ok"
	StatusRetryable Status = "retryable"
	StatusPermanent Status = "permanent"
)

// Outcome is the explicit result of a reconciliation run. The triggering
// HTTP request has already succeeded by the time reconciliation runs, so
// outcomes are logged and counted by the caller, never surfaced to clients.
type Outcome struct {
	Status Status
	Err    error
}

func OK() Outcome {
	return Outcome{Status: StatusOK}
}

// Retryable marks a failure a later replay could fix (e.g. a database
// write error).
func Retryable(err error) Outcome {
	return Outcome{Status: StatusRetryable, Err: err}
}

// Permanent marks a failure no retry can fix (e.g. a menu item that no
// longer exists).
func Permanent(err error) Outcome {
	return Outcome{Status: StatusPermanent, Err: err}
}

func (o Outcome) Failed() bool {
	return o.Status != StatusOK
}
