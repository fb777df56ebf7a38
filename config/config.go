// Package config holds the relay's fixed destination and its ambient settings.
//
// Where records go is fixed at build time: the bucket is a linker-settable
// variable, the key prefix and staging directory are constants. The environment
// only tunes how the relay runs (logging, batch mode, upload client).
package config

import (
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	goenv "github.com/Netflix/go-env"

	"github.com/baldanca/kinesis-json-relay/relay"
)

// Bucket is the destination bucket. Override at build time with
//
//	-ldflags "-X github.com/baldanca/kinesis-json-relay/config.Bucket=my-bucket"
var Bucket = "kinesis-etl-bucket"

const (
	KeyPrefix  = "kinesis"
	StagingDir = "/tmp/kinesis"
)

const (
	UploaderPut      = "put"
	UploaderTransfer = "transfer"
)

type Environment struct {
	LogLevel  string `env:"LOG_LEVEL,default=INFO"`
	LogFormat string `env:"LOG_FORMAT,default=json"`

	BatchMode         string `env:"BATCH_MODE,default=abort"`
	DecodeAllowUTF8   bool   `env:"DECODE_ALLOW_UTF8,default=false"`
	KeepFailedStaging bool   `env:"KEEP_FAILED_STAGING,default=true"`

	UploadMaxAttempts int    `env:"UPLOAD_MAX_ATTEMPTS,default=1"`
	UploadBaseDelayMS int    `env:"UPLOAD_BASE_DELAY_MS,default=50"`
	Uploader          string `env:"UPLOADER,default=put"`

	S3UsePathStyle bool   `env:"S3_USE_PATH_STYLE,default=false"`
	S3Endpoint     string `env:"S3_ENDPOINT"`

	DeadLetterQueueURL string `env:"DEAD_LETTER_QUEUE_URL"`
}

// Load reads the process environment.
func Load() (Environment, error) {
	var e Environment
	if _, err := goenv.UnmarshalFromEnviron(&e); err != nil {
		return Environment{}, fmt.Errorf("load environment: %w", err)
	}
	return e, e.Validate()
}

// LoadFrom reads "KEY=value" pairs, as returned by os.Environ.
func LoadFrom(environ []string) (Environment, error) {
	es, err := goenv.EnvironToEnvSet(environ)
	if err != nil {
		return Environment{}, fmt.Errorf("load environment: %w", err)
	}
	var e Environment
	if err := goenv.Unmarshal(es, &e); err != nil {
		return Environment{}, fmt.Errorf("load environment: %w", err)
	}
	return e, e.Validate()
}

func (e Environment) Validate() error {
	mode, err := relay.ParseBatchMode(e.BatchMode)
	if err != nil {
		return err
	}
	if _, err := parseLevel(e.LogLevel); err != nil {
		return err
	}
	switch strings.ToLower(e.LogFormat) {
	case "json", "text":
	default:
		return fmt.Errorf("unknown log format %q", e.LogFormat)
	}
	switch e.Uploader {
	case UploaderPut, UploaderTransfer:
	default:
		return fmt.Errorf("unknown uploader %q", e.Uploader)
	}
	if e.UploadMaxAttempts < 1 {
		return fmt.Errorf("UPLOAD_MAX_ATTEMPTS must be at least 1, got %d", e.UploadMaxAttempts)
	}
	if e.UploadBaseDelayMS < 0 {
		return fmt.Errorf("UPLOAD_BASE_DELAY_MS must be non-negative, got %d", e.UploadBaseDelayMS)
	}
	// An aborted batch is retried whole, which would dead-letter the same
	// record on every attempt.
	if e.DeadLetterQueueURL != "" && mode != relay.BatchModePartial {
		return fmt.Errorf("DEAD_LETTER_QUEUE_URL requires BATCH_MODE=partial")
	}
	return nil
}

// RelayConfig is the relay configuration for this environment. Destination
// settings always come from the build-time values.
func (e Environment) RelayConfig() (relay.Config, error) {
	mode, err := relay.ParseBatchMode(e.BatchMode)
	if err != nil {
		return relay.Config{}, err
	}
	return relay.Config{
		KeyPrefix:         KeyPrefix,
		Mode:              mode,
		KeepFailedStaging: e.KeepFailedStaging,
	}, nil
}

// RetryPolicy returns NoRetry unless more than one upload attempt is allowed.
func (e Environment) RetryPolicy(logger *slog.Logger) relay.RetryPolicy {
	if e.UploadMaxAttempts <= 1 {
		return relay.NoRetry{}
	}
	base := time.Duration(e.UploadBaseDelayMS) * time.Millisecond
	return relay.SimpleRetry{
		Attempts:  e.UploadMaxAttempts,
		BaseDelay: base,
		MaxDelay:  base * 32,
		Jitter:    true,
		OnRetry: func(attempt int, delay time.Duration, err error) {
			if logger != nil {
				logger.Warn("upload failed, retrying", "attempt", attempt, "delay", delay, "error", err)
			}
		},
	}
}

// NewLogger builds the process logger.
func NewLogger(w io.Writer, level, format string) (*slog.Logger, error) {
	lvl, err := parseLevel(level)
	if err != nil {
		return nil, err
	}
	opts := &slog.HandlerOptions{Level: lvl}
	if strings.EqualFold(format, "text") {
		return slog.New(slog.NewTextHandler(w, opts)), nil
	}
	return slog.New(slog.NewJSONHandler(w, opts)), nil
}

func parseLevel(s string) (slog.Level, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(strings.TrimSpace(s))); err != nil {
		return 0, fmt.Errorf("invalid log level %q: %w", s, err)
	}
	return lvl, nil
}
