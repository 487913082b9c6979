// Package cli parses command-line arguments into an app.Config.
package cli

import (
	"flag"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/vk/privgraph/internal/app"
)

// ExitError is a custom error type that includes a specific exit code.
type ExitError struct {
	Code    int
	Message string
}

// Error implements the error interface for ExitError.
func (e *ExitError) Error() string {
	return e.Message
}

// Parse processes command-line arguments. It returns a populated app.Config,
// a boolean indicating if the program should exit cleanly, or an ExitError.
func Parse(args []string, output io.Writer) (*app.Config, bool, error) {
	flagSet := flag.NewFlagSet("privgraph", flag.ContinueOnError)
	flagSet.SetOutput(output)

	flagSet.Usage = func() {
		fmt.Fprint(output, `
privgraph - executes privacy requests (access / erasure) as a
dependency-ordered traversal over connected data stores.

Usage:
  privgraph [options] validate
  privgraph [options] execute -identity attribute=value [...]

Commands:
  validate   Build the dataset graph and dry-run the traversal (no store I/O).
  execute    Run one privacy request to completion.

Options:
`)
		flagSet.PrintDefaults()
	}

	configFlag := flagSet.String("config", "", "Path to an .hcl file or a directory of .hcl files.")
	policyFlag := flagSet.String("policy", "", "Policy name to apply (optional when only one is declared).")
	requestIDFlag := flagSet.String("request-id", "", "Privacy request id. Generated when empty; reuse to resume a request.")
	logFormatFlag := flagSet.String("log-format", "text", "Log output format. Options: 'text' or 'json'.")
	logLevelFlag := flagSet.String("log-level", "info", "Logging level. Options: 'debug', 'info', 'warn', 'error'.")
	cacheAddrFlag := flagSet.String("cache-addr", "", "Redis address (host:port) for the shared TTL cache. Empty uses an in-process cache.")
	cachePassFlag := flagSet.String("cache-password", "", "Redis password.")
	cacheDBFlag := flagSet.Int("cache-db", 0, "Redis database index.")
	execLogFlag := flagSet.String("exec-log", "", "Path to the sqlite execution log. Empty keeps the audit trail in memory.")
	retriesFlag := flagSet.Int("retries", 3, "Retry budget per node operation, after the initial attempt.")
	retryDelayFlag := flagSet.Duration("retry-delay", time.Second, "Pause before the first retry.")
	ttlFlag := flagSet.Duration("ttl", 7*24*time.Hour, "Time-to-live of cached node results.")
	timeoutFlag := flagSet.Duration("timeout", 0, "Request-level deadline. 0 disables it.")

	identities := make(map[string]string)
	flagSet.Func("identity", "Identity seed as attribute=value. Repeatable.", func(s string) error {
		parts := strings.SplitN(s, "=", 2)
		if len(parts) != 2 || parts[0] == "" {
			return fmt.Errorf("identity %q must be attribute=value", s)
		}
		identities[parts[0]] = parts[1]
		return nil
	})

	if err := flagSet.Parse(args); err != nil {
		if err == flag.ErrHelp {
			return nil, true, nil
		}
		return nil, false, &ExitError{Code: 2, Message: err.Error()}
	}

	if flagSet.NArg() == 0 {
		flagSet.Usage()
		return nil, true, nil
	}
	command := flagSet.Arg(0)

	logFormat := strings.ToLower(*logFormatFlag)
	if logFormat != "text" && logFormat != "json" {
		return nil, false, &ExitError{Code: 2, Message: "invalid log-format: must be 'text' or 'json'"}
	}

	logLevel := strings.ToLower(*logLevelFlag)
	switch logLevel {
	case "debug", "info", "warn", "error":
		// valid
	default:
		return nil, false, &ExitError{Code: 2, Message: "invalid log-level: must be 'debug', 'info', 'warn', or 'error'"}
	}

	config, err := app.NewConfig(app.Config{
		Command:        command,
		ConfigPath:     *configFlag,
		PolicyName:     *policyFlag,
		RequestID:      *requestIDFlag,
		Identities:     identities,
		LogFormat:      logFormat,
		LogLevel:       logLevel,
		CacheAddr:      *cacheAddrFlag,
		CachePassword:  *cachePassFlag,
		CacheDB:        *cacheDBFlag,
		ExecLogPath:    *execLogFlag,
		RetryCount:     *retriesFlag,
		RetryDelay:     *retryDelayFlag,
		ResultTTL:      *ttlFlag,
		RequestTimeout: *timeoutFlag,
	})
	if err != nil {
		return nil, false, &ExitError{Code: 2, Message: err.Error()}
	}

	return config, false, nil
}
