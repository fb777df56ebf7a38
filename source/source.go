package source

import (
	"errors"
)

// ErrDecode is wrapped by every error returned from Decoder.Decode.
var ErrDecode = errors.New("decode record data")

// Envelope is the decoded text of one record plus the metadata needed to name
// and trace it.
//
// The relay does not impose any schema on Payload; it is the transformer's
// responsibility to turn it into a structured value.
type Envelope struct {
	Payload        string
	SequenceNumber string
	PartitionKey   string
}

// Message represents one record delivered in a batch.
//
// EncodedData is the transport form of the payload, kept undecoded so that a
// bad record fails on its own instead of failing the whole batch.
type Message interface {
	SequenceNumber() string
	PartitionKey() string
	EventID() string
	EncodedData() string
}
