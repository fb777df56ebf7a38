// Package relay stores every record of a Kinesis batch as one JSON object in S3.
//
// Each record goes through the same steps, one record at a time and in batch
// order: decode, stage to a local file, upload, remove the local file. What a
// failure means for the rest of the batch is decided by the BatchMode.
package relay

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/baldanca/kinesis-json-relay/deadletter"
	"github.com/baldanca/kinesis-json-relay/encoder"
	"github.com/baldanca/kinesis-json-relay/sink"
	"github.com/baldanca/kinesis-json-relay/source"
	"github.com/baldanca/kinesis-json-relay/staging"
	"github.com/baldanca/kinesis-json-relay/transformer"
	"github.com/baldanca/kinesis-json-relay/value"
)

// KeyFunc returns the object key for a record.
type KeyFunc func(sequenceNumber, ext string) string

// DefaultKeyFunc produces "<prefix>/<sequenceNumber><ext>".
func DefaultKeyFunc(prefix string) KeyFunc {
	prefix = strings.Trim(prefix, "/")
	return func(sequenceNumber, ext string) string {
		if prefix == "" {
			return sequenceNumber + ext
		}
		return prefix + "/" + sequenceNumber + ext
	}
}

// DeadLetter receives records that failed. It returns the sequence numbers it
// accepted.
type DeadLetter interface {
	Send(ctx context.Context, entries []deadletter.Entry) (sent []string, err error)
}

type Config struct {
	// KeyPrefix is the object key prefix; keys are "<KeyPrefix>/<seq><ext>".
	KeyPrefix string
	Mode      BatchMode
	// KeepFailedStaging leaves the staging file in place when its upload fails.
	KeepFailedStaging bool
}

type Relay struct {
	cfg Config

	decoder     source.Decoder
	transformer transformer.Transformer[value.Value]
	encoder     encoder.Encoder[value.Value]
	staging     *staging.Dir
	sink        sink.FileSinkr
	keyFunc     KeyFunc

	retry      RetryPolicy
	deadLetter DeadLetter

	logger *slog.Logger
}

func New(
	cfg Config,
	decoder source.Decoder,
	transformer transformer.Transformer[value.Value],
	encoder encoder.Encoder[value.Value],
	staging *staging.Dir,
	sink sink.FileSinkr,
	logger *slog.Logger,
) (*Relay, error) {
	if transformer == nil {
		return nil, fmt.Errorf("transformer is nil")
	}
	if encoder == nil {
		return nil, fmt.Errorf("encoder is nil")
	}
	if staging == nil {
		return nil, fmt.Errorf("staging dir is nil")
	}
	if sink == nil {
		return nil, fmt.Errorf("sink is nil")
	}
	if cfg.Mode != BatchModeAbort && cfg.Mode != BatchModePartial {
		return nil, fmt.Errorf("invalid batch mode %d", cfg.Mode)
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Relay{
		cfg:         cfg,
		decoder:     decoder,
		transformer: transformer,
		encoder:     encoder,
		staging:     staging,
		sink:        sink,
		keyFunc:     DefaultKeyFunc(cfg.KeyPrefix),
		retry:       NoRetry{},
		logger:      logger,
	}, nil
}

func (r *Relay) SetRetryPolicy(p RetryPolicy) {
	if p == nil {
		r.retry = NoRetry{}
		return
	}
	r.retry = p
}

// SetDeadLetter enables forwarding of failed records in BatchModePartial. A
// nil DeadLetter disables it.
func (r *Relay) SetDeadLetter(d DeadLetter) {
	r.deadLetter = d
}

// Process runs every message through the pipeline and returns one result per
// message. It never returns early without a result for each message.
func (r *Relay) Process(ctx context.Context, msgs []source.Message) BatchResult {
	return r.process(ctx, msgs, r.logger)
}

func (r *Relay) process(ctx context.Context, msgs []source.Message, log *slog.Logger) BatchResult {
	res := BatchResult{Mode: r.cfg.Mode, Records: make([]RecordResult, len(msgs))}

	stopAt := len(msgs)
	for i, m := range msgs {
		if err := ctx.Err(); err != nil {
			res.Stopped = err
			stopAt = i
			break
		}

		rr := r.processRecord(ctx, m, log.With("sequence_number", m.SequenceNumber()))
		res.Records[i] = rr

		if rr.Outcome == OutcomeFailed && r.cfg.Mode == BatchModeAbort {
			stopAt = i + 1
			break
		}
	}

	for i := stopAt; i < len(msgs); i++ {
		res.Records[i] = RecordResult{SequenceNumber: msgs[i].SequenceNumber(), Outcome: OutcomeSkipped}
	}
	return res
}

func (r *Relay) processRecord(ctx context.Context, m source.Message, log *slog.Logger) RecordResult {
	seq := m.SequenceNumber()
	res := RecordResult{SequenceNumber: seq}

	fail := func(stage Stage, err error) RecordResult {
		res.Outcome = OutcomeFailed
		res.Err = &RecordError{SequenceNumber: seq, Stage: stage, Err: err}
		attrs := []any{"stage", string(stage), "error", err}
		if code := sink.ErrorCode(err); code != "" {
			attrs = append(attrs, "error_code", code)
		}
		log.Error("record failed", attrs...)
		return res
	}

	if seq == "" {
		return fail(StageDecode, errors.New("empty sequence number"))
	}

	env, err := r.decoder.Decode(m)
	if err != nil {
		return fail(StageDecode, err)
	}
	log.Info("decoded record", "payload", env.Payload, "type", fmt.Sprintf("%T", env.Payload))

	ext := r.encoder.FileExtension()
	res.Key = r.keyFunc(seq, ext)
	// The sequence number names the staging file, so one that cannot is a
	// bad record.
	path, err := r.staging.FilePath(seq + ext)
	if err != nil {
		return fail(StageDecode, err)
	}
	res.StagingPath = path
	log.Info("staging record", "path", path, "key", res.Key)

	created, err := r.staging.Ensure()
	if err != nil {
		return fail(StageStagingDir, err)
	}
	if created {
		log.Info("staging directory created", "dir", r.staging.Path())
	}

	doc, err := r.transformer.Transform(ctx, env)
	if err != nil {
		return fail(StageParse, err)
	}
	data, err := r.encoder.Encode(ctx, doc)
	if err != nil {
		return fail(StageParse, err)
	}
	if err := r.staging.Write(path, data); err != nil {
		return fail(StageStagingWrite, err)
	}
	log.Info("record stored in local file", "bytes", len(data), "kind", doc.Kind().String())

	req := sink.FileWriteRequest{Key: res.Key, Path: path, ContentType: r.encoder.ContentType()}
	if err := r.retry.Do(ctx, func(ctx context.Context) error {
		return r.sink.WriteFile(ctx, req)
	}); err != nil {
		r.handleFailedUpload(path, log)
		return fail(StageUpload, err)
	}
	log.Info("record uploaded", "key", res.Key)

	if err := r.staging.Remove(path); err != nil {
		return fail(StageCleanup, err)
	}
	log.Info("staging file deleted", "path", path)

	res.Outcome = OutcomeSucceeded
	return res
}

func (r *Relay) handleFailedUpload(path string, log *slog.Logger) {
	if r.cfg.KeepFailedStaging {
		log.Warn("staging file kept after failed upload", "path", path)
		return
	}
	if err := r.staging.Remove(path); err != nil {
		log.Warn("could not remove staging file after failed upload", "path", path, "error", err)
	}
}

// deadLetterFailures forwards failed records and marks the ones the queue
// accepted. results must be aligned with msgs.
func (r *Relay) deadLetterFailures(ctx context.Context, msgs []source.Message, res *BatchResult, log *slog.Logger) error {
	if r.deadLetter == nil {
		return nil
	}

	var entries []deadletter.Entry
	for i, rr := range res.Records {
		if rr.Outcome != OutcomeFailed || rr.Err == nil {
			continue
		}
		m := msgs[i]
		entries = append(entries, deadletter.Entry{
			SequenceNumber: rr.SequenceNumber,
			PartitionKey:   m.PartitionKey(),
			EventID:        m.EventID(),
			Stage:          string(rr.Err.Stage),
			Error:          rr.Err.Err.Error(),
			Data:           m.EncodedData(),
		})
	}
	if len(entries) == 0 {
		return nil
	}

	sent, err := r.deadLetter.Send(ctx, entries)
	accepted := make(map[string]bool, len(sent))
	for _, seq := range sent {
		accepted[seq] = true
	}
	for i := range res.Records {
		rr := &res.Records[i]
		if rr.Outcome == OutcomeFailed && accepted[rr.SequenceNumber] {
			rr.DeadLettered = true
		}
	}

	log.Info("failed records dead-lettered", "sent", len(sent), "failed", len(entries)-len(sent))
	if err != nil {
		return fmt.Errorf("dead letter: %w", err)
	}
	return nil
}
