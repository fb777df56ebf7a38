package source

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"strconv"
	"testing"

	"github.com/aws/aws-lambda-go/events"
)

func marshalEvent(t testing.TB, ev events.KinesisEvent) []byte {
	t.Helper()
	b, err := json.Marshal(ev)
	if err != nil {
		t.Fatalf("marshal event: %v", err)
	}
	return b
}

func TestParseKinesisEvent_ReadsLambdaEventShape(t *testing.T) {
	raw := marshalEvent(t, events.KinesisEvent{Records: []events.KinesisEventRecord{
		{
			EventID:        "shardId-000000000000:49590000",
			EventSourceArn: "arn:aws:kinesis:us-east-1:123456789012:stream/s",
			Kinesis: events.KinesisRecord{
				SequenceNumber: "49590000",
				PartitionKey:   "pk-1",
				Data:           []byte(`{"a":1}`),
			},
		},
		{
			Kinesis: events.KinesisRecord{SequenceNumber: "49590001", Data: []byte(`[]`)},
		},
	}})

	ev, err := ParseKinesisEvent(raw)
	if err != nil {
		t.Fatalf("ParseKinesisEvent: %v", err)
	}
	msgs := ev.Messages()
	if len(msgs) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(msgs))
	}

	m := msgs[0]
	if m.SequenceNumber() != "49590000" || m.PartitionKey() != "pk-1" {
		t.Fatalf("unexpected record: seq=%q pk=%q", m.SequenceNumber(), m.PartitionKey())
	}
	if m.EventID() != "shardId-000000000000:49590000" {
		t.Fatalf("event id: %q", m.EventID())
	}
	if m.EncodedData() != base64.StdEncoding.EncodeToString([]byte(`{"a":1}`)) {
		t.Fatalf("data should stay base64 encoded, got %q", m.EncodedData())
	}
	if msgs[1].SequenceNumber() != "49590001" {
		t.Fatalf("batch order not kept: %q", msgs[1].SequenceNumber())
	}
}

func TestParseKinesisEvent_BadBase64StaysPerRecord(t *testing.T) {
	raw := []byte(`{"Records":[{"kinesis":{"sequenceNumber":"1","data":"%%%"}}]}`)
	ev, err := ParseKinesisEvent(raw)
	if err != nil {
		t.Fatalf("event parse must not fail on record data: %v", err)
	}
	if _, err := (Decoder{}).Decode(ev.Messages()[0]); !errors.Is(err, ErrDecode) {
		t.Fatalf("expected ErrDecode, got %v", err)
	}
}

func TestParseKinesisEvent_InvalidJSON(t *testing.T) {
	if _, err := ParseKinesisEvent([]byte(`{"Records":[`)); err == nil {
		t.Fatalf("expected error")
	}
}

func TestParseKinesisEvent_EmptyBatch(t *testing.T) {
	ev, err := ParseKinesisEvent([]byte(`{"Records":[]}`))
	if err != nil {
		t.Fatalf("ParseKinesisEvent: %v", err)
	}
	if len(ev.Messages()) != 0 {
		t.Fatalf("expected no messages")
	}
}

func TestParseKinesisEvent_MissingRecords(t *testing.T) {
	for _, raw := range []string{`{}`, `null`, `{"Records":null}`, `{"foo":1}`} {
		t.Run(raw, func(t *testing.T) {
			_, err := ParseKinesisEvent([]byte(raw))
			if !errors.Is(err, ErrNoRecords) {
				t.Fatalf("expected ErrNoRecords, got %v", err)
			}
		})
	}
}

func TestDecoder_Decode(t *testing.T) {
	b64 := func(s string) string { return base64.StdEncoding.EncodeToString([]byte(s)) }

	cases := []struct {
		name      string
		data      string
		allowUTF8 bool
		want      string
		wantErr   bool
	}{
		{name: "ascii json", data: b64(`{"a":1}`), want: `{"a":1}`},
		{name: "ascii non json", data: b64("not json"), want: "not json"},
		{name: "empty", data: "", want: ""},
		{name: "bad base64", data: "!!!", wantErr: true},
		{name: "unpadded", data: "eyJhIjoxfQ", wantErr: true},
		{name: "non ascii rejected", data: b64(`{"k":"é"}`), wantErr: true},
		{name: "non ascii allowed as utf8", data: b64(`{"k":"é"}`), allowUTF8: true, want: `{"k":"é"}`},
		{name: "invalid utf8", data: base64.StdEncoding.EncodeToString([]byte{0xff, 0xfe}), allowUTF8: true, wantErr: true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := KinesisEventRecord{Kinesis: KinesisRecord{SequenceNumber: "42", PartitionKey: "p", Data: tc.data}}
			env, err := Decoder{AllowUTF8: tc.allowUTF8}.Decode(&kinesisMessage{rec: &rec})
			if tc.wantErr {
				if !errors.Is(err, ErrDecode) {
					t.Fatalf("expected ErrDecode, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Decode: %v", err)
			}
			if env.Payload != tc.want {
				t.Fatalf("Payload = %q; want %q", env.Payload, tc.want)
			}
			if env.SequenceNumber != "42" || env.PartitionKey != "p" {
				t.Fatalf("metadata not carried: %+v", env)
			}
		})
	}
}

func BenchmarkDecoder_Decode(b *testing.B) {
	for _, size := range []int{16, 1024, 64 * 1024} {
		b.Run(strconv.Itoa(size), func(b *testing.B) {
			payload := make([]byte, size)
			for i := range payload {
				payload[i] = 'a'
			}
			rec := KinesisEventRecord{Kinesis: KinesisRecord{SequenceNumber: "1", Data: base64.StdEncoding.EncodeToString(payload)}}
			m := &kinesisMessage{rec: &rec}
			d := Decoder{}

			b.ReportAllocs()
			b.ResetTimer()
			for i := 0; i < b.N; i++ {
				if _, err := d.Decode(m); err != nil {
					b.Fatalf("decode: %v", err)
				}
			}
		})
	}
}
