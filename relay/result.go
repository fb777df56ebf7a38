package relay

import (
	"fmt"
	"strings"

	"github.com/aws/aws-lambda-go/events"
)

// BatchMode decides what a failed record means for the rest of the batch.
type BatchMode int

const (
	// BatchModeAbort stops at the first failed record and fails the invocation.
	// Records already stored stay stored; later records are skipped.
	BatchModeAbort BatchMode = iota
	// BatchModePartial attempts every record and reports the failed ones back
	// to the event source as batch item failures.
	BatchModePartial
)

func (m BatchMode) String() string {
	switch m {
	case BatchModeAbort:
		return "abort"
	case BatchModePartial:
		return "partial"
	default:
		return fmt.Sprintf("BatchMode(%d)", int(m))
	}
}

func ParseBatchMode(s string) (BatchMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "abort":
		return BatchModeAbort, nil
	case "partial":
		return BatchModePartial, nil
	default:
		return 0, fmt.Errorf("unknown batch mode %q", s)
	}
}

type Outcome int

const (
	OutcomeSucceeded Outcome = iota
	OutcomeFailed
	OutcomeSkipped
)

func (o Outcome) String() string {
	switch o {
	case OutcomeSucceeded:
		return "succeeded"
	case OutcomeFailed:
		return "failed"
	case OutcomeSkipped:
		return "skipped"
	default:
		return fmt.Sprintf("Outcome(%d)", int(o))
	}
}

// RecordResult is what happened to one record of a batch.
type RecordResult struct {
	SequenceNumber string
	Key            string
	StagingPath    string
	Outcome        Outcome
	// Err is set when Outcome is OutcomeFailed.
	Err *RecordError
	// DeadLettered is set when the failed record was forwarded to the
	// dead-letter queue.
	DeadLettered bool
}

// BatchResult holds one RecordResult per input record, in batch order.
type BatchResult struct {
	Mode    BatchMode
	Records []RecordResult
	// Stopped is set when the batch ended early because the context was done.
	Stopped error
}

func (b BatchResult) count(o Outcome) int {
	n := 0
	for _, r := range b.Records {
		if r.Outcome == o {
			n++
		}
	}
	return n
}

func (b BatchResult) Succeeded() int { return b.count(OutcomeSucceeded) }
func (b BatchResult) Skipped() int   { return b.count(OutcomeSkipped) }

// Failed returns the failed records in batch order.
func (b BatchResult) Failed() []RecordResult {
	var out []RecordResult
	for _, r := range b.Records {
		if r.Outcome == OutcomeFailed {
			out = append(out, r)
		}
	}
	return out
}

// FirstError returns the error of the first failed record, or nil.
func (b BatchResult) FirstError() error {
	for _, r := range b.Records {
		if r.Outcome == OutcomeFailed && r.Err != nil {
			return r.Err
		}
	}
	return nil
}

// Response lists every record that was not stored and not dead-lettered, in
// the shape Lambda expects for ReportBatchItemFailures.
func (b BatchResult) Response() events.KinesisEventResponse {
	resp := events.KinesisEventResponse{BatchItemFailures: []events.KinesisBatchItemFailure{}}
	for _, r := range b.Records {
		if r.Outcome == OutcomeSucceeded || r.DeadLettered {
			continue
		}
		resp.BatchItemFailures = append(resp.BatchItemFailures, events.KinesisBatchItemFailure{ItemIdentifier: r.SequenceNumber})
	}
	return resp
}
