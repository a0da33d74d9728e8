package cli

import (
	"context"
	"fmt"
	"io"
	"time"

	"go.uber.org/zap"

	"github.com/dig-vijay-a/gene-expression-analysis/internal/executor"
	"github.com/dig-vijay-a/gene-expression-analysis/internal/mock"
)

// MockServerOptions configures `genepredict mock-server`
type MockServerOptions struct {
	ConfigPath string
	Host       string
	Port       int
	Variant    string
	Delay      int
	Users      []mock.User
}

// RunMockServer serves the mock API until ctx is done, printing one line
// per request
func RunMockServer(ctx context.Context, opts MockServerOptions, logger *zap.Logger, out io.Writer) error {
	cfg := mock.DefaultConfig()
	if opts.ConfigPath != "" {
		loaded, err := mock.LoadConfig(opts.ConfigPath)
		if err != nil {
			return err
		}
		cfg = loaded
	}
	if opts.Host != "" {
		cfg.Host = opts.Host
	}
	if opts.Port >= 0 {
		cfg.Port = opts.Port
	}
	if opts.Variant != "" {
		cfg.Variant = opts.Variant
	}
	if opts.Delay > 0 {
		cfg.Delay = opts.Delay
	}
	cfg.Users = append(cfg.Users, opts.Users...)

	srv, err := mock.NewServer(cfg, logger)
	if err != nil {
		return err
	}
	if err := srv.Start(); err != nil {
		return err
	}
	defer srv.Stop()

	fmt.Fprintf(out, "Mock %s prediction API listening on %s\n", cfg.Variant, srv.GetAddress())
	fmt.Fprintln(out, "Press Ctrl+C to stop")

	var last time.Time
	for {
		select {
		case <-ctx.Done():
			fmt.Fprintln(out, "\nStopping mock server")
			return nil
		case <-srv.NotifyChannel():
			for _, l := range srv.GetLogs() {
				if !l.Timestamp.After(last) {
					continue
				}
				last = l.Timestamp
				color := colorGreen
				if l.Status >= 400 {
					color = colorRed
				}
				user := l.User
				if user == "" {
					user = "-"
				}
				fmt.Fprintf(out, "%s %-5s %-10s %s%d%s %7s user=%s id=%s\n",
					l.Timestamp.Format("15:04:05"), l.Method, l.Path,
					color, l.Status, colorReset, executor.FormatDuration(l.Duration.Milliseconds()), user, l.RequestID)
			}
		}
	}
}
