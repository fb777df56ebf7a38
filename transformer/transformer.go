package transformer

import (
	"context"
	"errors"
	"fmt"

	"github.com/baldanca/kinesis-json-relay/source"
	"github.com/baldanca/kinesis-json-relay/value"
)

// ErrMalformedPayload is wrapped when a record's text is not a JSON document.
var ErrMalformedPayload = errors.New("malformed payload")

// Transformer converts one value into another.
//
// In this project it converts a decoded source.Envelope into a structured value.
type Transformer[O any] interface {
	Transform(ctx context.Context, in source.Envelope) (O, error)
}

// JSON parses the envelope payload as one untyped JSON document.
type JSON struct{}

func (JSON) Transform(ctx context.Context, in source.Envelope) (value.Value, error) {
	if err := ctx.Err(); err != nil {
		return value.Value{}, err
	}
	v, err := value.Parse([]byte(in.Payload))
	if err != nil {
		return value.Value{}, fmt.Errorf("%w: sequence %s: %w", ErrMalformedPayload, in.SequenceNumber, err)
	}
	return v, nil
}

var _ Transformer[value.Value] = JSON{}
