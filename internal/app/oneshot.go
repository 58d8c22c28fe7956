package app

import (
	"context"
	"io"

	"slackrelay/internal/config"
	"slackrelay/internal/logging"
	"slackrelay/internal/webhook"
)

// RunOnce processes one parameter object the way the monitoring engine invokes a media script.
// Params: context, config source, raw JSON parameters, and output stream for the result.
// Returns: setup error or flattened webhook error.
func RunOnce(ctx context.Context, source config.ConfigSource, params []byte, out io.Writer) error {
	cfg, err := config.LoadSnapshot(source)
	if err != nil {
		return err
	}
	logger, closeLog, err := logging.New(cfg.Log)
	if err != nil {
		return err
	}
	defer closeLog()

	runner, err := webhook.New(cfg.Slack, logger)
	if err != nil {
		return err
	}
	result, err := runner.Process(ctx, params)
	if err != nil {
		return err
	}
	_, err = io.WriteString(out, result+"\n")
	return err
}
