package relay

import (
	"context"
	"encoding/json"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambdacontext"
	"github.com/google/uuid"

	"github.com/baldanca/kinesis-json-relay/source"
)

// Handle is the Lambda entry point for a Kinesis batch.
//
// In BatchModeAbort a failed record fails the invocation and the response is
// empty; Kinesis retries the whole batch, so nothing is dead-lettered. In
// BatchModePartial the invocation succeeds and the response lists the records
// that were neither stored nor dead-lettered.
func (r *Relay) Handle(ctx context.Context, raw json.RawMessage) (events.KinesisEventResponse, error) {
	log := r.logger.With("request_id", requestID(ctx))
	log.Info("event collected", "event", string(raw))

	ev, err := source.ParseKinesisEvent(raw)
	if err != nil {
		log.Error("invalid invocation payload", "error", err)
		return events.KinesisEventResponse{}, err
	}

	msgs := ev.Messages()
	res := r.process(ctx, msgs, log)

	log.Info("batch processed",
		"mode", res.Mode.String(),
		"records", len(res.Records),
		"succeeded", res.Succeeded(),
		"failed", len(res.Failed()),
		"skipped", res.Skipped(),
	)

	if r.cfg.Mode == BatchModePartial {
		// Records that failed to dead-letter stay in the response, so the
		// source retries them.
		if err := r.deadLetterFailures(ctx, msgs, &res, log); err != nil {
			log.Error("dead letter failed", "error", err)
		}
		return res.Response(), nil
	}

	err = res.FirstError()
	if err == nil {
		err = res.Stopped
	}
	return events.KinesisEventResponse{}, err
}

func requestID(ctx context.Context) string {
	if lc, ok := lambdacontext.FromContext(ctx); ok && lc.AwsRequestID != "" {
		return lc.AwsRequestID
	}
	return uuid.NewString()
}
