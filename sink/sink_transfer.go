package sink

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/aws/aws-sdk-go-v2/feature/s3/transfermanager"
)

type uploadAPI interface {
	UploadObject(ctx context.Context, input *transfermanager.UploadObjectInput, optFns ...func(*transfermanager.Options)) (*transfermanager.UploadObjectOutput, error)
}

// TransferSink uploads through the S3 transfer manager, which switches to
// multipart uploads for large bodies.
type TransferSink struct {
	client uploadAPI

	bucket    string
	bucketPtr *string
	prefix    string
}

func NewTransfer(client uploadAPI, bucket, prefix string) *TransferSink {
	if client == nil {
		panic("transfer manager client is required")
	}
	if strings.TrimSpace(bucket) == "" {
		panic("bucket is required")
	}

	s := &TransferSink{
		client: client,
		bucket: bucket,
		prefix: strings.Trim(prefix, "/"),
	}
	s.bucketPtr = &s.bucket
	return s
}

func (s *TransferSink) WriteFile(ctx context.Context, req FileWriteRequest) error {
	key, err := objectKey(s.prefix, req.Key)
	if err != nil {
		return err
	}

	f, err := os.Open(req.Path)
	if err != nil {
		return fmt.Errorf("open upload file: %w", err)
	}
	defer f.Close()

	input := transfermanager.UploadObjectInput{
		Bucket: s.bucketPtr,
		Key:    &key,
		Body:   f,
	}
	if req.ContentType != "" {
		ct := req.ContentType
		input.ContentType = &ct
	}

	if _, err := s.client.UploadObject(ctx, &input); err != nil {
		return fmt.Errorf("upload s3 object key=%q: %w", key, err)
	}
	return nil
}

var _ FileSinkr = (*TransferSink)(nil)
