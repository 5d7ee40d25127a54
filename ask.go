package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/markis/gh-scriptai/internal/args"
	"github.com/markis/gh-scriptai/internal/client"
	"github.com/markis/gh-scriptai/internal/config"
	"github.com/markis/gh-scriptai/internal/render"
	"github.com/markis/gh-scriptai/internal/stream"
	"github.com/sirupsen/logrus"
)

// ask streams one answer from the configured provider to stdout.
func ask(ctx context.Context, cfg config.Config, a args.Arguments, log *logrus.Entry, rec stream.Recorder) error {
	provider, err := client.New(cfg, log)
	if err != nil {
		return err
	}

	req := client.Request{
		Model:       cfg.Model,
		Messages:    []client.Message{{Role: "user", Content: a.Prompt()}},
		Temperature: cfg.Temperature,
	}
	return runSession(ctx, cfg, a, log, rec, func(ctx context.Context) (stream.Source, error) {
		return provider.Chat(ctx, req)
	})
}

// replay feeds a saved transcript through the parser in fixed size chunks.
func replay(ctx context.Context, cfg config.Config, a args.Arguments, log *logrus.Entry, rec stream.Recorder) error {
	return runSession(ctx, cfg, a, log, rec, func(context.Context) (stream.Source, error) {
		var r io.Reader = os.Stdin
		if a.ReplayPath != "" {
			f, err := os.Open(a.ReplayPath)
			if err != nil {
				return nil, fmt.Errorf("failed to open transcript: %w", err)
			}
			r = f
		}
		return stream.NewReaderSource(r, a.ChunkSize), nil
	})
}

func runSession(ctx context.Context, cfg config.Config, a args.Arguments, log *logrus.Entry, rec stream.Recorder, open stream.Opener) error {
	renderer, err := render.NewTerminalRenderer(os.Stdout, render.Options{
		Plain:     a.UsePlainText,
		Wrap:      cfg.Render.Wrap,
		Theme:     cfg.Render.Theme,
		ShowThink: cfg.Render.ShowThink,
	})
	if err != nil {
		return err
	}

	session := stream.NewSession(
		stream.WithListener(renderer.Handle),
		stream.WithLogger(log),
		stream.WithRecorder(rec),
		stream.WithCompletion(func(res stream.EndResult) {
			log.WithFields(logrus.Fields{
				"segments":  len(res.Contents),
				"think_len": len(res.Think),
			}).Debug("answer complete")
		}),
	)

	if _, err := session.Run(ctx, open); err != nil {
		return err
	}
	return renderer.Err()
}

// listModels prints the models the provider serves, one per line.
func listModels(ctx context.Context, cfg config.Config, log *logrus.Entry, w io.Writer) error {
	provider, err := client.New(cfg, log)
	if err != nil {
		return err
	}

	models, err := provider.Models(ctx)
	if err != nil {
		return fmt.Errorf("failed to list models: %w", err)
	}
	for _, m := range models {
		if _, err := fmt.Fprintln(w, m); err != nil {
			return err
		}
	}
	return nil
}
