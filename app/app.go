// Package app wires the relay from the environment and AWS clients. The clients
// are created once and reused for every invocation.
package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/s3/transfermanager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/sqs"

	"github.com/baldanca/kinesis-json-relay/config"
	"github.com/baldanca/kinesis-json-relay/deadletter"
	"github.com/baldanca/kinesis-json-relay/encoder"
	"github.com/baldanca/kinesis-json-relay/relay"
	"github.com/baldanca/kinesis-json-relay/sink"
	"github.com/baldanca/kinesis-json-relay/source"
	"github.com/baldanca/kinesis-json-relay/staging"
	"github.com/baldanca/kinesis-json-relay/transformer"
)

// Clients are the long-lived service clients the relay uses.
type Clients struct {
	S3  *s3.Client
	SQS *sqs.Client
}

// NewClients loads the default AWS configuration chain and builds the clients.
func NewClients(ctx context.Context, env config.Environment) (Clients, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		return Clients{}, fmt.Errorf("load aws config: %w", err)
	}

	s3Client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.UsePathStyle = env.S3UsePathStyle
		if env.S3Endpoint != "" {
			o.BaseEndpoint = aws.String(env.S3Endpoint)
		}
	})

	c := Clients{S3: s3Client}
	if env.DeadLetterQueueURL != "" {
		c.SQS = sqs.NewFromConfig(awsCfg)
	}
	return c, nil
}

// NewRelay builds a relay that stores into config.Bucket.
func NewRelay(env config.Environment, clients Clients, logger *slog.Logger) (*relay.Relay, error) {
	if clients.S3 == nil {
		return nil, fmt.Errorf("s3 client is nil")
	}

	rc, err := env.RelayConfig()
	if err != nil {
		return nil, err
	}

	var sk sink.FileSinkr
	switch env.Uploader {
	case config.UploaderTransfer:
		sk = sink.NewTransfer(transfermanager.New(clients.S3), config.Bucket, "")
	default:
		sk = sink.New(clients.S3, config.Bucket, "")
	}

	r, err := relay.New(
		rc,
		source.Decoder{AllowUTF8: env.DecodeAllowUTF8},
		transformer.JSON{},
		encoder.JSONEncoder{},
		staging.New(config.StagingDir),
		sk,
		logger,
	)
	if err != nil {
		return nil, err
	}
	r.SetRetryPolicy(env.RetryPolicy(logger))

	if env.DeadLetterQueueURL != "" {
		if clients.SQS == nil {
			return nil, fmt.Errorf("dead letter queue configured without an sqs client")
		}
		r.SetDeadLetter(deadletter.New(clients.SQS, env.DeadLetterQueueURL))
	}

	logger.Info("relay configured",
		"bucket", config.Bucket,
		"key_prefix", config.KeyPrefix,
		"staging_dir", config.StagingDir,
		"mode", rc.Mode.String(),
		"uploader", env.Uploader,
		"dead_letter", env.DeadLetterQueueURL != "",
	)
	return r, nil
}
