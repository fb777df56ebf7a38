// Package encoder turns a decoded document into the bytes of its staged file.
package encoder

import "context"

// Encoder serializes one document. FileExtension and ContentType describe the
// resulting object and are used for the staging name and the upload.
type Encoder[T any] interface {
	Encode(ctx context.Context, doc T) ([]byte, error)
	FileExtension() string
	ContentType() string
}
