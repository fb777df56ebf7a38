package source

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"unicode/utf8"
)

// KinesisEvent is the invocation payload pushed by a Kinesis event source mapping.
//
// It mirrors events.KinesisEvent from aws-lambda-go, except that Data stays a
// string: events.KinesisRecord decodes base64 during json.Unmarshal, which would
// turn one corrupt record into a failure of the whole invocation.
type KinesisEvent struct {
	Records []KinesisEventRecord `json:"Records"`
}

type KinesisEventRecord struct {
	AwsRegion      string        `json:"awsRegion"`
	EventID        string        `json:"eventID"`
	EventName      string        `json:"eventName"`
	EventSource    string        `json:"eventSource"`
	EventSourceArn string        `json:"eventSourceARN"`
	Kinesis        KinesisRecord `json:"kinesis"`
}

type KinesisRecord struct {
	ApproximateArrivalTimestamp float64 `json:"approximateArrivalTimestamp"`
	Data                        string  `json:"data"`
	PartitionKey                string  `json:"partitionKey"`
	SequenceNumber              string  `json:"sequenceNumber"`
	KinesisSchemaVersion        string  `json:"kinesisSchemaVersion"`
}

// ErrNoRecords is returned by ParseKinesisEvent when the payload has no
// Records array. An empty array is a valid, empty batch.
var ErrNoRecords = errors.New("payload has no Records array")

// ParseKinesisEvent decodes a raw invocation payload.
func ParseKinesisEvent(raw []byte) (KinesisEvent, error) {
	var wire struct {
		Records *[]KinesisEventRecord `json:"Records"`
	}
	if err := json.Unmarshal(raw, &wire); err != nil {
		return KinesisEvent{}, fmt.Errorf("parse kinesis event: %w", err)
	}
	if wire.Records == nil {
		return KinesisEvent{}, fmt.Errorf("parse kinesis event: %w", ErrNoRecords)
	}
	return KinesisEvent{Records: *wire.Records}, nil
}

// Messages returns one Message per record, in batch order.
func (e KinesisEvent) Messages() []Message {
	out := make([]Message, len(e.Records))
	for i := range e.Records {
		out[i] = &kinesisMessage{rec: &e.Records[i]}
	}
	return out
}

type kinesisMessage struct {
	rec *KinesisEventRecord
}

func (m *kinesisMessage) SequenceNumber() string { return m.rec.Kinesis.SequenceNumber }
func (m *kinesisMessage) PartitionKey() string   { return m.rec.Kinesis.PartitionKey }
func (m *kinesisMessage) EventID() string        { return m.rec.EventID }
func (m *kinesisMessage) EncodedData() string    { return m.rec.Kinesis.Data }

var _ Message = (*kinesisMessage)(nil)

// Decoder turns a Message's transport encoding into text.
//
// Data must be standard, padded base64. By default the decoded bytes must be
// 7-bit ASCII; AllowUTF8 relaxes that to any valid UTF-8.
type Decoder struct {
	AllowUTF8 bool
}

func (d Decoder) Decode(m Message) (Envelope, error) {
	raw, err := base64.StdEncoding.DecodeString(m.EncodedData())
	if err != nil {
		return Envelope{}, fmt.Errorf("%w: base64: %w", ErrDecode, err)
	}

	if d.AllowUTF8 {
		if !utf8.Valid(raw) {
			return Envelope{}, fmt.Errorf("%w: payload is not valid utf-8", ErrDecode)
		}
	} else if i := nonASCII(raw); i >= 0 {
		return Envelope{}, fmt.Errorf("%w: byte 0x%02x at offset %d is not ascii", ErrDecode, raw[i], i)
	}

	return Envelope{
		Payload:        string(raw),
		SequenceNumber: m.SequenceNumber(),
		PartitionKey:   m.PartitionKey(),
	}, nil
}

func nonASCII(b []byte) int {
	for i, c := range b {
		if c >= utf8.RuneSelf {
			return i
		}
	}
	return -1
}
