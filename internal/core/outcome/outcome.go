// Package outcome is the per item result reported by every batch operation
package outcome

// Status values shared by batch operations
const (
	OK          = "ok"
	Ingested    = "ingested"
	Parked      = "parked"
	Unchanged   = "unchanged"
	Skipped     = "skipped"
	SkippedPaid = "skipped_paid"
	Rejected    = "rejected"
	Failed      = "failed"
)

// Outcome reports what happened to one item of a batch
type Outcome struct {
	Ref    string `json:"ref"`
	Status string `json:"status"`
	Reason string `json:"reason,omitempty"`
}

// Of builds an outcome without a reason
func Of(ref, status string) Outcome { return Outcome{Ref: ref, Status: status} }

// Because builds an outcome carrying a reason
func Because(ref, status, reason string) Outcome {
	return Outcome{Ref: ref, Status: status, Reason: reason}
}

// Err builds a failed outcome from err
func Err(ref string, err error) Outcome {
	if err == nil {
		return Of(ref, Failed)
	}
	return Because(ref, Failed, err.Error())
}

// Count tallies outcomes by status
func Count(list []Outcome) map[string]int {
	out := make(map[string]int, 4)
	for _, o := range list {
		out[o.Status]++
	}
	return out
}
