// Package deadletter forwards records the relay could not store to an SQS queue.
package deadletter

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	sqstypes "github.com/aws/aws-sdk-go-v2/service/sqs/types"
	"github.com/google/uuid"
)

const (
	// maxBatch is the SendMessageBatch entry limit.
	maxBatch = 10
	// maxBodyBytes is the SQS message size limit.
	maxBodyBytes = 256 * 1024
)

// Entry is the message body sent for one failed record. Data is the record's
// original base64 text; it is dropped when the message would exceed the SQS
// size limit.
type Entry struct {
	SequenceNumber string `json:"sequenceNumber"`
	PartitionKey   string `json:"partitionKey,omitempty"`
	EventID        string `json:"eventID,omitempty"`
	Stage          string `json:"stage"`
	Error          string `json:"error"`
	Data           string `json:"data,omitempty"`
	DataDropped    bool   `json:"dataDropped,omitempty"`
}

type sqsAPI interface {
	SendMessageBatch(ctx context.Context, params *sqs.SendMessageBatchInput, optFns ...func(*sqs.Options)) (*sqs.SendMessageBatchOutput, error)
}

type Queue struct {
	client      sqsAPI
	queueURL    string
	queueURLPtr *string
}

func New(client sqsAPI, queueURL string) *Queue {
	if client == nil {
		panic("sqs client is required")
	}
	if queueURL == "" {
		panic("queue url is required")
	}
	q := &Queue{client: client, queueURL: queueURL}
	q.queueURLPtr = &q.queueURL
	return q
}

// Send delivers entries in batches of ten. It returns the sequence numbers that
// SQS accepted; entries missing from that list were not delivered and are
// described by the returned error.
func (q *Queue) Send(ctx context.Context, entries []Entry) (sent []string, err error) {
	if len(entries) == 0 {
		return nil, nil
	}

	var errs []error
	in := sqs.SendMessageBatchInput{QueueUrl: q.queueURLPtr}
	batch := make([]sqstypes.SendMessageBatchRequestEntry, 0, maxBatch)

	for i := 0; i < len(entries); i += maxBatch {
		end := i + maxBatch
		if end > len(entries) {
			end = len(entries)
		}

		batch = batch[:0]
		seqByID := make(map[string]string, end-i)
		for j := i; j < end; j++ {
			body, err := encodeBody(entries[j])
			if err != nil {
				errs = append(errs, fmt.Errorf("encode dead letter sequence=%s: %w", entries[j].SequenceNumber, err))
				continue
			}
			id := uuid.NewString()
			seqByID[id] = entries[j].SequenceNumber
			batch = append(batch, sqstypes.SendMessageBatchRequestEntry{
				Id:          aws.String(id),
				MessageBody: aws.String(body),
			})
		}
		if len(batch) == 0 {
			continue
		}

		in.Entries = batch
		out, err := q.client.SendMessageBatch(ctx, &in)
		if err != nil {
			errs = append(errs, fmt.Errorf("sqs send batch: %w", err))
			continue
		}
		for _, ok := range out.Successful {
			if seq, found := seqByID[aws.ToString(ok.Id)]; found {
				sent = append(sent, seq)
			}
		}
		for _, f := range out.Failed {
			errs = append(errs, fmt.Errorf("sqs send failed sequence=%s code=%s message=%s",
				seqByID[aws.ToString(f.Id)], aws.ToString(f.Code), aws.ToString(f.Message)))
		}
	}

	return sent, errors.Join(errs...)
}

func encodeBody(e Entry) (string, error) {
	b, err := json.Marshal(e)
	if err != nil {
		return "", err
	}
	if len(b) <= maxBodyBytes {
		return string(b), nil
	}

	e.Data = ""
	e.DataDropped = true
	b, err = json.Marshal(e)
	if err != nil {
		return "", err
	}
	return string(b), nil
}
