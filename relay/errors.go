package relay

import (
	"errors"
	"fmt"

	"github.com/baldanca/kinesis-json-relay/source"
	"github.com/baldanca/kinesis-json-relay/transformer"
)

// Failure kinds. A *RecordError matches exactly one of these with errors.Is.
var (
	ErrDecodeFailure     = source.ErrDecode
	ErrMalformedPayload  = transformer.ErrMalformedPayload
	ErrDirectoryCreation = errors.New("staging directory creation failure")
	ErrStagingWrite      = errors.New("staging write failure")
	ErrUploadFailure     = errors.New("upload failure")
	ErrLocalCleanup      = errors.New("local cleanup failure")
)

// Stage names the step of the per-record pipeline that failed.
type Stage string

const (
	StageDecode       Stage = "decode"
	StageParse        Stage = "parse"
	StageStagingDir   Stage = "staging_dir"
	StageStagingWrite Stage = "staging_write"
	StageUpload       Stage = "upload"
	StageCleanup      Stage = "cleanup"
)

var stageKinds = map[Stage]error{
	StageDecode:       ErrDecodeFailure,
	StageParse:        ErrMalformedPayload,
	StageStagingDir:   ErrDirectoryCreation,
	StageStagingWrite: ErrStagingWrite,
	StageUpload:       ErrUploadFailure,
	StageCleanup:      ErrLocalCleanup,
}

// RecordError is the failure of one record.
type RecordError struct {
	SequenceNumber string
	Stage          Stage
	Err            error
}

// Kind returns the failure kind sentinel for the stage.
func (e *RecordError) Kind() error { return stageKinds[e.Stage] }

func (e *RecordError) Error() string {
	return fmt.Sprintf("record %s failed at %s: %v", e.SequenceNumber, e.Stage, e.Err)
}

func (e *RecordError) Unwrap() []error {
	if k := e.Kind(); k != nil {
		return []error{k, e.Err}
	}
	return []error{e.Err}
}
