// Package sink uploads staged files to an object store.
package sink

import "context"

// FileWriteRequest uploads the contents of a local file.
type FileWriteRequest struct {
	Key         string
	Path        string
	ContentType string
}

// FileSinkr is implemented by sinks that upload a local file, streaming it
// from disk instead of buffering it in memory.
type FileSinkr interface {
	WriteFile(ctx context.Context, req FileWriteRequest) error
}
