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

package config_test

import (
	"testing"
	"time"

	"github.com/nabbar/tunneld/internal/config"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/require"
)

func TestLoadServerDefaults(t *testing.T) {
	cfg := config.LoadServer(nil)

	require.Equal(t, ":8765", cfg.Listen)
	require.Equal(t, 20000, cfg.PortMin)
	require.Equal(t, 20100, cfg.PortMax)
	require.Equal(t, 30*time.Second, cfg.RequestTimeout)
}

func TestLoadServerEnvOverridesDefault(t *testing.T) {
	t.Setenv("ONLINE_PORT_MIN", "30000")
	t.Setenv("ONLINE_LISTEN", ":9999")

	cfg := config.LoadServer(nil)

	require.Equal(t, 30000, cfg.PortMin)
	require.Equal(t, ":9999", cfg.Listen)
}

func TestLoadServerFlagOverridesEnv(t *testing.T) {
	t.Setenv("ONLINE_PORT_MIN", "30000")

	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.Int("port-min", 0, "")
	require.NoError(t, flags.Set("port-min", "40000"))

	cfg := config.LoadServer(flags)

	require.Equal(t, 40000, cfg.PortMin, "flag must win over env var")
}

// TestLoadServerRequestTimeoutAcceptsBareSeconds locks in spec.md S4's
// literal invocation, "--request-timeout 1": the flag is integer
// seconds, not a time.ParseDuration string, so a bare "1" must parse.
func TestLoadServerRequestTimeoutAcceptsBareSeconds(t *testing.T) {
	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.Int("request-timeout", 0, "")
	require.NoError(t, flags.Set("request-timeout", "1"))

	cfg := config.LoadServer(flags)

	require.Equal(t, time.Second, cfg.RequestTimeout)
}

func TestLoadServerRequestTimeoutEnvAcceptsBareSeconds(t *testing.T) {
	t.Setenv("ONLINE_REQUEST_TIMEOUT", "5")

	cfg := config.LoadServer(nil)

	require.Equal(t, 5*time.Second, cfg.RequestTimeout)
}

func TestLoadClientDefaults(t *testing.T) {
	cfg := config.LoadClient(nil)

	require.Equal(t, 8000, cfg.LocalPort)
	require.Equal(t, "ws://127.0.0.1:8765/ws", cfg.ServerURL)
	require.Equal(t, "127.0.0.1", cfg.LocalHost)
}
