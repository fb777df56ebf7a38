package encoder

import (
	"context"

	"github.com/baldanca/kinesis-json-relay/value"
)

// JSONEncoder re-serializes a parsed document in compact form.
//
// Only the semantic content of the original document is preserved; whitespace
// is dropped while member order and number literals are kept.
type JSONEncoder struct{}

func (JSONEncoder) FileExtension() string { return ".json" }

func (JSONEncoder) ContentType() string { return "application/json" }

func (JSONEncoder) Encode(ctx context.Context, item value.Value) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return item.AppendJSON(nil)
}

var _ Encoder[value.Value] = JSONEncoder{}
