// Command kinesis-relay is the Lambda function that stores each record of a
// Kinesis batch as a JSON object in S3.
package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/aws/aws-lambda-go/lambda"

	"github.com/baldanca/kinesis-json-relay/app"
	"github.com/baldanca/kinesis-json-relay/config"
)

func main() {
	if err := run(context.Background(), os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "kinesis-relay: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, stdout io.Writer) error {
	env, err := config.Load()
	if err != nil {
		return err
	}
	logger, err := config.NewLogger(stdout, env.LogLevel, env.LogFormat)
	if err != nil {
		return err
	}

	clients, err := app.NewClients(ctx, env)
	if err != nil {
		return err
	}
	r, err := app.NewRelay(env, clients, logger)
	if err != nil {
		return err
	}

	lambda.Start(r.Handle)
	return nil
}
