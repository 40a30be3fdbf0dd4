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

// Package config loads server/client configuration from flags and
// environment variables via spf13/viper, and provides the graceful
// shutdown signal-handling pattern used by both cmd binaries.
package config

import (
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Server holds the resolved configuration for cmd/online-server.
type Server struct {
	Listen         string
	PortMin        int
	PortMax        int
	RequestTimeout time.Duration
	MaxClients     int
	ShutdownGrace  time.Duration
	LogLevel       string
}

// Client holds the resolved configuration for cmd/online.
type Client struct {
	LocalPort    int
	ServerURL    string
	LocalHost    string
	PingInterval time.Duration
	LogLevel     string
}

const envPrefix = "ONLINE"

func newViper(flags *pflag.FlagSet) *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	if flags != nil {
		_ = v.BindPFlags(flags)
	}

	return v
}

// LoadServer resolves Server configuration: flags take precedence over
// ONLINE_* environment variables, which take precedence over defaults.
func LoadServer(flags *pflag.FlagSet) Server {
	v := newViper(flags)

	v.SetDefault("listen", ":8765")
	v.SetDefault("port-min", 20000)
	v.SetDefault("port-max", 20100)
	v.SetDefault("request-timeout", 30)
	v.SetDefault("max-clients", 0)
	v.SetDefault("shutdown-grace", 10*time.Second)
	v.SetDefault("log-level", "info")

	return Server{
		Listen:         v.GetString("listen"),
		PortMin:        v.GetInt("port-min"),
		PortMax:        v.GetInt("port-max"),
		RequestTimeout: time.Duration(v.GetInt("request-timeout")) * time.Second,
		MaxClients:     v.GetInt("max-clients"),
		ShutdownGrace:  v.GetDuration("shutdown-grace"),
		LogLevel:       v.GetString("log-level"),
	}
}

// LoadClient resolves Client configuration the same way as LoadServer.
func LoadClient(flags *pflag.FlagSet) Client {
	v := newViper(flags)

	v.SetDefault("port", 8000)
	v.SetDefault("server", "ws://127.0.0.1:8765/ws")
	v.SetDefault("local-host", "127.0.0.1")
	v.SetDefault("ping-interval", 20*time.Second)
	v.SetDefault("log-level", "info")

	return Client{
		LocalPort:    v.GetInt("port"),
		ServerURL:    v.GetString("server"),
		LocalHost:    v.GetString("local-host"),
		PingInterval: v.GetDuration("ping-interval"),
		LogLevel:     v.GetString("log-level"),
	}
}
