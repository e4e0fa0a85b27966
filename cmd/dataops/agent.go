package main

import (
	"context"
	"io"
	"log/slog"

	"github.com/fwojciec/dataops"
	"github.com/fwojciec/dataops/remote"
)

// openAgent returns the remote backend at agentURL, or builds the local
// one when agentURL is empty. Logs go to w. The returned func releases the
// agent.
func openAgent(ctx context.Context, agentURL string, w io.Writer) (dataops.Agent, func(), error) {
	if agentURL != "" {
		if err := loadEnvFiles(envFiles...); err != nil {
			return nil, nil, err
		}
		level := slog.LevelInfo
		if verbose {
			level = slog.LevelDebug
		}
		slog.SetDefault(newLogger(w, level))
		c, err := remote.New(agentURL)
		if err != nil {
			return nil, nil, err
		}
		return c, func() {}, nil
	}

	cfg, log, err := setup(w)
	if err != nil {
		return nil, nil, err
	}
	a, err := newApp(ctx, cfg, log)
	if err != nil {
		return nil, nil, err
	}
	return a.runner, a.Close, nil
}
