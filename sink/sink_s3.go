package sink

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/aws/aws-sdk-go-v2/service/s3"
)

type s3API interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// Sink writes objects with a single PutObject call.
type Sink struct {
	client s3API

	bucket    string
	bucketPtr *string
	prefix    string
}

func New(client s3API, bucket, prefix string) *Sink {
	if client == nil {
		panic("s3 client is required")
	}
	if strings.TrimSpace(bucket) == "" {
		panic("bucket is required")
	}

	s := &Sink{
		client: client,
		bucket: bucket,
		prefix: strings.Trim(prefix, "/"),
	}
	s.bucketPtr = &s.bucket
	return s
}

func (s *Sink) WriteFile(ctx context.Context, req FileWriteRequest) error {
	key, err := objectKey(s.prefix, req.Key)
	if err != nil {
		return err
	}

	f, err := os.Open(req.Path)
	if err != nil {
		return fmt.Errorf("open upload file: %w", err)
	}
	defer f.Close()

	fi, err := f.Stat()
	if err != nil {
		return fmt.Errorf("stat upload file: %w", err)
	}

	cl := fi.Size()
	input := s3.PutObjectInput{
		Bucket:        s.bucketPtr,
		Key:           &key,
		Body:          f,
		ContentLength: &cl,
	}
	if req.ContentType != "" {
		ct := req.ContentType
		input.ContentType = &ct
	}

	if _, err := s.client.PutObject(ctx, &input); err != nil {
		return fmt.Errorf("put s3 object key=%q: %w", key, err)
	}
	return nil
}

// objectKey keeps S3 semantics: no path cleaning, only leading slashes dropped.
func objectKey(prefix, key string) (string, error) {
	if key == "" {
		return "", fmt.Errorf("empty key")
	}
	key = strings.TrimLeft(key, "/")
	if prefix != "" {
		key = prefix + "/" + key
	}
	return key, nil
}

var _ FileSinkr = (*Sink)(nil)
