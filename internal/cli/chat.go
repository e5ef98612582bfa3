package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/harun/reactor/internal/observability"
	"github.com/harun/reactor/internal/tracing"
	"github.com/harun/reactor/pkg/agent"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

const chatPrompt = "> "

func newChatCmd(opts *globalOptions) *cobra.Command {
	flags := &runFlags{}
	var metricsAddr string

	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Start an interactive session",
		Long: `Start an interactive session. Every line is one run with memory
attached, so earlier exchanges inform later ones. Type "exit" or send EOF
to save memory and quit.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.loadConfig()
			if err != nil {
				return err
			}
			flags.apply(cmd, cfg)
			if cmd.Flags().Changed("metrics-addr") {
				cfg.Metrics.Addr = metricsAddr
			}
			if err := cfg.Validate(); err != nil {
				return fmt.Errorf("invalid configuration: %w", err)
			}

			ctx := cmd.Context()
			a, err := newApp(ctx, cfg, cmd.ErrOrStderr(), appOptions{
				memory:   cfg.Memory.Enabled,
				provider: true,
				tools:    true,
				watch:    true,
			})
			if err != nil {
				return err
			}
			defer a.Close()

			if cfg.Metrics.Addr != "" {
				stop, err := serveMetrics(cfg.Metrics.Addr, a.log.GetZerolog())
				if err != nil {
					return err
				}
				defer stop()
			}

			runner, err := a.newRunner()
			if err != nil {
				return err
			}

			session := &chatSession{
				runner: runner,
				in:     cmd.InOrStdin(),
				out:    cmd.OutOrStdout(),
				logger: a.log.GetZerolog(),
			}
			err = session.loop(ctx)
			a.saveMemory(context.WithoutCancel(ctx))
			return err
		},
	}

	flags.register(cmd)
	cmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address, e.g. :9090")

	return cmd
}

// chatSession reads one prompt per line until exit, EOF or cancellation.
type chatSession struct {
	runner *agent.Runner
	in     io.Reader
	out    io.Writer
	logger zerolog.Logger
}

func (s *chatSession) loop(ctx context.Context) error {
	ctx = tracing.NewRequestContext(ctx)
	s.logger.Info().Str("trace_id", tracing.GetTraceID(ctx)).Msg("Chat session started")

	lines := make(chan string)
	readErr := make(chan error, 1)
	done := make(chan struct{})
	defer close(done)
	go func() {
		scanner := bufio.NewScanner(s.in)
		scanner.Buffer(make([]byte, 64*1024), 1024*1024)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-done:
				return
			}
		}
		readErr <- scanner.Err()
	}()

	for {
		fmt.Fprint(s.out, chatPrompt)

		var line string
		select {
		case <-ctx.Done():
			fmt.Fprintln(s.out)
			return nil
		case err := <-readErr:
			fmt.Fprintln(s.out)
			if err != nil {
				return fmt.Errorf("failed to read input: %w", err)
			}
			return nil
		case line = <-lines:
		}

		line = strings.TrimSpace(line)
		switch line {
		case "":
			continue
		case "exit", "quit":
			return nil
		}

		result, err := s.runner.Run(ctx, line)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			// A failing backend ends this turn, not the session.
			fmt.Fprintf(s.out, "error: %v\n", err)
			continue
		}
		fmt.Fprintln(s.out, result.Answer)
	}
}

// serveMetrics exposes /metrics on addr until the returned stop is called.
func serveMetrics(addr string, logger zerolog.Logger) (func(), error) {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("failed to listen on %s: %w", addr, err)
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", observability.MetricsHandler())
	server := &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		if err := server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error().Err(err).Msg("Metrics server failed")
		}
	}()
	logger.Info().Str("addr", listener.Addr().String()).Msg("Serving metrics")

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(ctx)
	}, nil
}
