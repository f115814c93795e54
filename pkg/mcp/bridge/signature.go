// Package bridge gives synchronous callers access to a remote operation
// host over a single persistent MCP session. One background worker owns the
// session; concurrent callers multiplex onto it and block until their
// invocation completes.
package bridge

import (
	"fmt"
	"os"

	"github.com/opsdash/opsdash/pkg/config"
	"github.com/opsdash/opsdash/pkg/errors"
)

// Signature identifies a bridge connection. Two configurations with equal
// signatures can share a live session; a signature change forces the manager
// to tear the session down and build a new one.
type Signature struct {
	Kind    string
	Command string
	Args    []string
	Env     map[string]string
	URL     string
}

// FromConfig derives the connection signature from the bridge settings. For
// the stdio transport an empty command means "re-exec this binary in serve
// mode", which keeps single-binary deployments working with no extra
// configuration.
func FromConfig(cfg *config.Config) (Signature, error) {
	switch cfg.Bridge.Transport {
	case config.TransportStdio:
		command := cfg.Bridge.Command
		args := cfg.Bridge.Args
		if command == "" {
			executable, err := os.Executable()
			if err != nil {
				return Signature{}, errors.NewConfigError(
					"cannot locate the current executable for the stdio bridge", err)
			}
			command = executable
			args = []string{"serve", "--transport", config.TransportStdio}
		}
		return Signature{
			Kind:    config.TransportStdio,
			Command: command,
			Args:    args,
			Env:     cfg.Bridge.Env,
		}, nil

	case config.TransportStreamableHTTP:
		if cfg.Bridge.URL == "" {
			return Signature{}, errors.NewConfigError(
				"the streamable-http bridge needs MCP_BRIDGE_URL", nil)
		}
		return Signature{
			Kind: config.TransportStreamableHTTP,
			URL:  cfg.Bridge.URL,
		}, nil

	default:
		return Signature{}, errors.NewConfigError(
			fmt.Sprintf("unknown bridge transport %q", cfg.Bridge.Transport), nil)
	}
}

// Equal reports whether two signatures describe the same connection. Env
// comparison is order-insensitive; Args order matters because it changes the
// subprocess command line.
func (s Signature) Equal(other Signature) bool {
	if s.Kind != other.Kind || s.Command != other.Command || s.URL != other.URL {
		return false
	}
	if len(s.Args) != len(other.Args) {
		return false
	}
	for i := range s.Args {
		if s.Args[i] != other.Args[i] {
			return false
		}
	}
	if len(s.Env) != len(other.Env) {
		return false
	}
	for k, v := range s.Env {
		if other.Env[k] != v {
			return false
		}
	}
	return true
}
