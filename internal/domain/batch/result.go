package batch

// ItemStatus is the processing outcome of a single batch item.
type ItemStatus string

// Batch item status values.
const (
	StatusOK       ItemStatus = "ok"
	StatusSkipped  ItemStatus = "skipped"
	StatusRejected ItemStatus = "rejected"
	StatusError    ItemStatus = "error"
)

// Result is the outcome of processing one item in a batch.
type Result struct {
	index  int
	id     string
	status ItemStatus
	fields []string
	reason string
	err    error
}

// NewOK creates a successful result listing the derived fields that were attached.
func NewOK(index int, id string, fields []string) Result {
	return Result{index: index, id: id, status: StatusOK, fields: fields}
}

// NewSkipped creates a result for an item that was valid but not persisted.
func NewSkipped(index int, id, reason string) Result {
	return Result{index: index, id: id, status: StatusSkipped, reason: reason}
}

// NewRejected creates a result for an item that failed validation.
func NewRejected(index int, reason string) Result {
	return Result{index: index, status: StatusRejected, reason: reason}
}

// NewError creates a failed result.
func NewError(index int, id string, err error) Result {
	return Result{index: index, id: id, status: StatusError, err: err}
}

// Index returns the position of the item in the batch.
func (r Result) Index() int { return r.index }

// ID returns the item identifier (empty for rejected items).
func (r Result) ID() string { return r.id }

// Status returns the processing outcome.
func (r Result) Status() ItemStatus { return r.status }

// Fields returns the derived fields attached to a persisted record.
func (r Result) Fields() []string { return r.fields }

// Reason returns why the item was skipped or rejected.
func (r Result) Reason() string { return r.reason }

// Err returns the error, if any.
func (r Result) Err() error { return r.err }

// Summary aggregates the results of one batch.
type Summary struct {
	Results []Result
	counts  map[ItemStatus]int
}

// Summarize counts results per status.
func Summarize(results []Result) Summary {
	counts := make(map[ItemStatus]int, 4)
	for _, r := range results {
		counts[r.status]++
	}
	return Summary{Results: results, counts: counts}
}

// Count returns the number of results with the given status.
func (s Summary) Count(status ItemStatus) int { return s.counts[status] }

// Total returns the number of items in the batch.
func (s Summary) Total() int { return len(s.Results) }
