/*
 * MIT License
 *
 * Copyright (c) 2024 Nicolas JUHEL
 *
 * Permission is hereby granted, free of charge, to any person obtaining a copy
 * of this software and associated documentation files (the "Software"), to deal
 * in the Software without restriction, including without limitation the rights
 * to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
 * copies of the Software, and to permit persons to whom the Software is
 * furnished to do so, subject to the following conditions:
 *
 * The above copyright notice and this permission notice shall be included in all
 * copies or substantial portions of the Software.
 *
 * THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
 * IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
 * FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
 * AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
 * LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
 * OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
 * SOFTWARE.
 *
 *
 */

// Command online-server runs the tunnel server: the control-plane
// WebSocket endpoint, the port allocator, and one public HTTP listener
// per registered client.
package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"strconv"
	"strings"

	"github.com/nabbar/tunneld/internal/apisrv"
	"github.com/nabbar/tunneld/internal/config"
	"github.com/nabbar/tunneld/internal/logger"
	"github.com/nabbar/tunneld/internal/publicsrv"
	"github.com/nabbar/tunneld/internal/session"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// exitConfigError and exitBindFailure are the non-zero exit codes
// specified for online-server.
const (
	exitConfigError = 1
	exitBindFailure = 2
)

func main() {
	os.Exit(run())
}

func run() int {
	var (
		portRange string
		exitCode  int
	)

	flags := pflag.NewFlagSet("online-server", pflag.ContinueOnError)
	flags.String("listen", "", "address to listen on, HOST:PORT")
	flags.StringVar(&portRange, "port-range", "", "public port range, MIN-MAX")
	flags.Int("request-timeout", 0, "per-request upstream timeout, in seconds")
	flags.Int("max-clients", 0, "maximum concurrent registered clients, 0 = unlimited")
	flags.Int("port-min", 0, "")
	flags.Int("port-max", 0, "")
	_ = flags.MarkHidden("port-min")
	_ = flags.MarkHidden("port-max")

	cmd := &cobra.Command{
		Use:           "online-server",
		Short:         "Self-hosted HTTP reverse tunnel server",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if portRange != "" {
				min, max, err := parsePortRange(portRange)
				if err != nil {
					exitCode = exitConfigError
					return err
				}

				_ = flags.Set("port-min", strconv.Itoa(min))
				_ = flags.Set("port-max", strconv.Itoa(max))
			}

			code, err := serve(flags)
			exitCode = code

			return err
		},
	}

	cmd.Flags().AddFlagSet(flags)

	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "online-server:", err)
		if exitCode == 0 {
			exitCode = exitConfigError
		}
	}

	return exitCode
}

func parsePortRange(s string) (int, int, error) {
	parts := strings.SplitN(s, "-", 2)
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("invalid --port-range %q, expected MIN-MAX", s)
	}

	min, err := strconv.Atoi(strings.TrimSpace(parts[0]))
	if err != nil {
		return 0, 0, fmt.Errorf("invalid --port-range %q: %w", s, err)
	}

	max, err := strconv.Atoi(strings.TrimSpace(parts[1]))
	if err != nil {
		return 0, 0, fmt.Errorf("invalid --port-range %q: %w", s, err)
	}

	if min <= 0 || max < min {
		return 0, 0, fmt.Errorf("invalid --port-range %q: min must be positive and <= max", s)
	}

	return min, max, nil
}

func serve(flags *pflag.FlagSet) (int, error) {
	cfg := config.LoadServer(flags)

	if cfg.PortMin <= 0 || cfg.PortMax < cfg.PortMin {
		return exitConfigError, fmt.Errorf("invalid port range %d-%d", cfg.PortMin, cfg.PortMax)
	}

	log := logger.New(logger.ParseLevel(cfg.LogLevel))
	logFn := func() logger.Logger { return log }

	publicHandler := publicsrv.New(cfg.RequestTimeout, logFn)

	mgr := session.NewManager(cfg.PortMin, cfg.PortMax, cfg.MaxClients, logFn, func(s *session.Session, c net.Conn) {
		publicHandler.Serve(s, c)
	})

	engine := apisrv.New(mgr, logFn)

	ln, err := net.Listen("tcp", cfg.Listen)
	if err != nil {
		return exitBindFailure, fmt.Errorf("bind %s: %w", cfg.Listen, err)
	}

	httpSrv := &http.Server{Handler: engine}

	ctx, stop := config.WaitNotify(context.Background())
	defer stop()

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- httpSrv.Serve(ln)
	}()

	log.Info("online-server listening on ", cfg.Listen, " (ports ", cfg.PortMin, "-", cfg.PortMax, ")")

	select {
	case <-ctx.Done():
		log.Info("shutting down")
		mgr.Shutdown(cfg.ShutdownGrace)
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownGrace)
		defer cancel()
		_ = httpSrv.Shutdown(shutdownCtx)
		return 0, nil
	case err := <-serveErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return exitBindFailure, err
		}
		return 0, nil
	}
}
