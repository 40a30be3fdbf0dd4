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

// Command online is the tunnel client: it dials the server's control
// channel, registers a public port, and forwards requests to a local
// HTTP service.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"

	"github.com/nabbar/tunneld/internal/config"
	"github.com/nabbar/tunneld/internal/forwarder"
	"github.com/nabbar/tunneld/internal/logger"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// Exit codes exactly as spec.md §6.
const (
	exitConfigError       = 1
	exitPersistentFailure = 2
)

func main() {
	os.Exit(run())
}

func run() int {
	var exitCode int

	flags := pflag.NewFlagSet("online", pflag.ContinueOnError)
	flags.Int("port", 0, "local port to forward to (required)")
	flags.String("server", "", "tunnel server control-channel URL, e.g. ws://host:8765/ws")
	flags.String("local-host", "", "local host to forward to")

	cmd := &cobra.Command{
		Use:           "online",
		Short:         "Self-hosted HTTP reverse tunnel client",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			code, err := connect(cmd.Context(), flags)
			exitCode = code
			return err
		},
	}

	cmd.Flags().AddFlagSet(flags)

	ctx, stop := config.WaitNotify(context.Background())
	defer stop()

	if err := cmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "online:", err)
		if exitCode == 0 {
			exitCode = exitConfigError
		}
	}

	return exitCode
}

func connect(ctx context.Context, flags *pflag.FlagSet) (int, error) {
	cfg := config.LoadClient(flags)

	if cfg.LocalPort <= 0 || cfg.LocalPort > 65535 {
		return exitConfigError, fmt.Errorf("invalid --port %d", cfg.LocalPort)
	}

	u, err := url.Parse(cfg.ServerURL)
	if err != nil || (u.Scheme != "ws" && u.Scheme != "wss") {
		return exitConfigError, fmt.Errorf("invalid --server %q: must be a ws:// or wss:// URL", cfg.ServerURL)
	}

	log := logger.New(logger.ParseLevel(cfg.LogLevel))
	logFn := func() logger.Logger { return log }

	localBase := fmt.Sprintf("http://%s:%d", cfg.LocalHost, cfg.LocalPort)

	fwdCfg := forwarder.Config{
		ServerURL:    cfg.ServerURL,
		LocalBaseURL: localBase,
		Log:          logFn,
		OnRegistered: func(publicPort int) {
			fmt.Printf("http://%s:%d\n", u.Hostname(), publicPort)
		},
	}

	err = forwarder.Run(ctx, fwdCfg)
	switch {
	case err == nil:
		return 0, nil
	case errors.Is(err, context.Canceled):
		return 0, nil
	default:
		log.Error("giving up: ", err)
		return exitPersistentFailure, err
	}
}
