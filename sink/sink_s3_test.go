package sink

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/s3/transfermanager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/smithy-go"
)

type fakeS3API struct {
	mu sync.Mutex

	putCalls int
	lastIn   *s3.PutObjectInput
	lastBody []byte

	putErr error
}

func (f *fakeS3API) PutObject(ctx context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	f.mu.Lock()
	f.putCalls++
	f.lastIn = in
	putErr := f.putErr
	f.mu.Unlock()

	if putErr != nil {
		return nil, putErr
	}

	if in.Body != nil {
		b, _ := io.ReadAll(in.Body)
		f.mu.Lock()
		f.lastBody = b
		f.mu.Unlock()
	}
	return &s3.PutObjectOutput{}, nil
}

// no-capture fake for benchmarks: minimal overhead, no body reads/copies.
type fakeS3NoCapture struct {
	mu       sync.Mutex
	putCalls int
}

func (f *fakeS3NoCapture) PutObject(ctx context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	f.mu.Lock()
	f.putCalls++
	f.mu.Unlock()
	return &s3.PutObjectOutput{}, nil
}

type fakeUploader struct {
	calls    int
	lastIn   *transfermanager.UploadObjectInput
	lastBody []byte
	err      error
}

func (f *fakeUploader) UploadObject(ctx context.Context, in *transfermanager.UploadObjectInput, _ ...func(*transfermanager.Options)) (*transfermanager.UploadObjectOutput, error) {
	f.calls++
	f.lastIn = in
	if f.err != nil {
		return nil, f.err
	}
	b, _ := io.ReadAll(in.Body)
	f.lastBody = b
	return &transfermanager.UploadObjectOutput{}, nil
}

func writeTemp(t testing.TB, data []byte) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "49590000.json")
	if err := os.WriteFile(p, data, 0o644); err != nil {
		t.Fatalf("write temp: %v", err)
	}
	return p
}

func TestSink_WriteFile_BuildsKeyWithPrefixWithoutCleaning(t *testing.T) {
	f := &fakeS3API{}
	s := New(f, "bkt", "/pfx/")

	data := []byte("abc")
	err := s.WriteFile(context.Background(), FileWriteRequest{
		Key:         "/a/../b/x.json",
		Path:        writeTemp(t, data),
		ContentType: "application/json",
	})
	if err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if f.putCalls != 1 {
		t.Fatalf("expected 1 call, got %d", f.putCalls)
	}
	if aws.ToString(f.lastIn.Bucket) != "bkt" {
		t.Fatalf("bucket: %q", aws.ToString(f.lastIn.Bucket))
	}
	if aws.ToString(f.lastIn.Key) != "pfx/a/../b/x.json" {
		t.Fatalf("key: %q", aws.ToString(f.lastIn.Key))
	}
	if aws.ToString(f.lastIn.ContentType) != "application/json" {
		t.Fatalf("content-type: %q", aws.ToString(f.lastIn.ContentType))
	}
}

func TestSink_WriteFile_EmptyKeyReturnsError(t *testing.T) {
	f := &fakeS3API{}
	s := New(f, "bkt", "")
	if err := s.WriteFile(context.Background(), FileWriteRequest{Path: writeTemp(t, nil)}); err == nil {
		t.Fatalf("expected error")
	}
	if f.putCalls != 0 {
		t.Fatalf("PutObject must not be called")
	}
}

func TestSink_WriteFile_PropagatesPutError(t *testing.T) {
	boom := errors.New("boom")
	f := &fakeS3API{putErr: boom}
	s := New(f, "bkt", "p")
	err := s.WriteFile(context.Background(), FileWriteRequest{Key: "x", Path: writeTemp(t, []byte("1"))})
	if !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}
}

func TestSink_WriteFile_UploadsFileContents(t *testing.T) {
	data := []byte(`{"a":1}`)
	p := writeTemp(t, data)

	f := &fakeS3API{}
	s := New(f, "kinesis-etl-bucket", "")
	err := s.WriteFile(context.Background(), FileWriteRequest{
		Key:         "kinesis/49590000.json",
		Path:        p,
		ContentType: "application/json",
	})
	if err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	if aws.ToString(f.lastIn.Key) != "kinesis/49590000.json" {
		t.Fatalf("key: %q", aws.ToString(f.lastIn.Key))
	}
	if aws.ToString(f.lastIn.Bucket) != "kinesis-etl-bucket" {
		t.Fatalf("bucket: %q", aws.ToString(f.lastIn.Bucket))
	}
	if f.lastIn.ContentLength == nil || *f.lastIn.ContentLength != int64(len(data)) {
		t.Fatalf("content-length: %#v", f.lastIn.ContentLength)
	}
	if !bytes.Equal(f.lastBody, data) {
		t.Fatalf("body mismatch: %q", f.lastBody)
	}
}

func TestSink_WriteFile_MissingFile(t *testing.T) {
	f := &fakeS3API{}
	s := New(f, "bkt", "")
	err := s.WriteFile(context.Background(), FileWriteRequest{Key: "k", Path: filepath.Join(t.TempDir(), "nope")})
	if !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("expected not-exist error, got %v", err)
	}
	if f.putCalls != 0 {
		t.Fatalf("PutObject must not be called")
	}
}

func TestSink_WriteFile_PropagatesAPIErrorCode(t *testing.T) {
	apiErr := &smithy.GenericAPIError{Code: "NoSuchBucket", Message: "bucket does not exist"}
	f := &fakeS3API{putErr: apiErr}
	s := New(f, "bkt", "")

	err := s.WriteFile(context.Background(), FileWriteRequest{Key: "k", Path: writeTemp(t, []byte("{}"))})
	if err == nil {
		t.Fatalf("expected error")
	}
	if got := ErrorCode(err); got != "NoSuchBucket" {
		t.Fatalf("ErrorCode = %q", got)
	}
}

func TestErrorCode_NonAPIError(t *testing.T) {
	if got := ErrorCode(errors.New("plain")); got != "" {
		t.Fatalf("ErrorCode = %q; want empty", got)
	}
	if got := ErrorCode(nil); got != "" {
		t.Fatalf("ErrorCode(nil) = %q; want empty", got)
	}
}

func TestNew_Panics(t *testing.T) {
	cases := map[string]func(){
		"nil client":   func() { New(nil, "b", "") },
		"empty bucket": func() { New(&fakeS3API{}, "  ", "") },
		"nil uploader": func() { NewTransfer(nil, "b", "") },
		"no bucket":    func() { NewTransfer(&fakeUploader{}, "", "") },
	}
	for name, fn := range cases {
		t.Run(name, func(t *testing.T) {
			defer func() {
				if recover() == nil {
					t.Fatalf("expected panic")
				}
			}()
			fn()
		})
	}
}

func TestTransferSink_WriteFile(t *testing.T) {
	data := []byte(`[1,2,3]`)
	p := writeTemp(t, data)

	f := &fakeUploader{}
	s := NewTransfer(f, "bkt", "pfx")
	if err := s.WriteFile(context.Background(), FileWriteRequest{Key: "k.json", Path: p, ContentType: "application/json"}); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	if f.calls != 1 {
		t.Fatalf("calls = %d", f.calls)
	}
	if aws.ToString(f.lastIn.Bucket) != "bkt" || aws.ToString(f.lastIn.Key) != "pfx/k.json" {
		t.Fatalf("bucket/key: %q %q", aws.ToString(f.lastIn.Bucket), aws.ToString(f.lastIn.Key))
	}
	if aws.ToString(f.lastIn.ContentType) != "application/json" {
		t.Fatalf("content-type: %q", aws.ToString(f.lastIn.ContentType))
	}
	if !bytes.Equal(f.lastBody, data) {
		t.Fatalf("body mismatch: %q", f.lastBody)
	}
}

func TestTransferSink_WriteFile_PropagatesError(t *testing.T) {
	boom := errors.New("boom")
	s := NewTransfer(&fakeUploader{err: boom}, "bkt", "")
	err := s.WriteFile(context.Background(), FileWriteRequest{Key: "k", Path: writeTemp(t, []byte("{}"))})
	if !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}
}

func TestTransferSink_WriteFile_EmptyKey(t *testing.T) {
	f := &fakeUploader{}
	s := NewTransfer(f, "bkt", "")
	if err := s.WriteFile(context.Background(), FileWriteRequest{Path: writeTemp(t, nil)}); err == nil {
		t.Fatalf("expected error")
	}
	if f.calls != 0 {
		t.Fatalf("UploadObject must not be called")
	}
}

func BenchmarkSink_WriteFile_NoCapture(b *testing.B) {
	for _, size := range []int{0, 128, 1024, 16 * 1024, 256 * 1024} {
		b.Run(fmt.Sprintf("size=%s", strconv.Itoa(size)), func(b *testing.B) {
			f := &fakeS3NoCapture{}
			s := New(f, "bkt", "kinesis")
			req := FileWriteRequest{Key: "x.json", Path: writeTemp(b, make([]byte, size)), ContentType: "application/json"}
			ctx := context.Background()

			b.ReportAllocs()
			b.ResetTimer()
			for i := 0; i < b.N; i++ {
				if err := s.WriteFile(ctx, req); err != nil {
					b.Fatalf("write: %v", err)
				}
			}
		})
	}
}
