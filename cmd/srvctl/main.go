// srvctl is an operator CLI for a running srvgraph server.
//
// Usage:
//
//	srvctl health                  Check GET /admin/health
//	srvctl reset                   Restore the seed state
//	srvctl state                   Print the current state snapshot
//	srvctl seed <file>             Replace the state with a JSON snapshot
//	srvctl query <doc> [vars]      Run a GraphQL document, vars as JSON
//	srvctl check                   Run the conformance suite (resets state)
package main

import (
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/wondertwin-ai/srvgraph/internal/client"
	"github.com/wondertwin-ai/srvgraph/internal/conformance"
)

const defaultAddr = "http://127.0.0.1:3000"

func main() {
	if err := run(os.Args[1:], os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "srvctl: %v\n", err)
		os.Exit(1)
	}
}

func run(argv []string, out io.Writer) error {
	addr := defaultAddr
	if a := os.Getenv("SRVGRAPH_ADDR"); a != "" {
		addr = a
	}

	fs := flag.NewFlagSet("srvctl", flag.ContinueOnError)
	fs.SetOutput(out)
	fs.StringVar(&addr, "addr", addr, "Base URL of the srvgraph server")
	fs.Usage = func() { printUsage(out) }
	if err := fs.Parse(argv); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return nil
		}
		return err
	}

	args := fs.Args()
	if len(args) == 0 {
		printUsage(out)
		return fmt.Errorf("missing command")
	}

	c := client.New(addr)
	switch cmd, rest := args[0], args[1:]; cmd {
	case "health":
		ok, msg := c.Health()
		if !ok {
			return fmt.Errorf("unhealthy: %s", msg)
		}
		fmt.Fprintln(out, msg)
	case "reset":
		resp, err := c.Reset()
		if err != nil {
			return err
		}
		fmt.Fprintln(out, resp)
	case "state":
		resp, err := c.State()
		if err != nil {
			return err
		}
		fmt.Fprintln(out, resp)
	case "seed":
		if len(rest) != 1 {
			return fmt.Errorf("usage: srvctl seed <file>")
		}
		resp, err := c.Seed(rest[0])
		if err != nil {
			return fmt.Errorf("seeding from %s: %w", rest[0], err)
		}
		fmt.Fprintln(out, resp)
	case "query":
		if len(rest) < 1 || len(rest) > 2 {
			return fmt.Errorf("usage: srvctl query <document> [variables-json]")
		}
		var vars map[string]any
		if len(rest) == 2 {
			if err := json.Unmarshal([]byte(rest[1]), &vars); err != nil {
				return fmt.Errorf("parsing variables: %w", err)
			}
		}
		resp, err := c.Query(rest[0], vars)
		if err != nil {
			return err
		}
		fmt.Fprintln(out, resp)
	case "check":
		return runCheck(addr, out)
	default:
		printUsage(out)
		return fmt.Errorf("unknown command %q", cmd)
	}
	return nil
}

func runCheck(addr string, out io.Writer) error {
	fmt.Fprintf(out, "Running conformance suite against %s...\n\n", addr)

	report := conformance.Run(addr)
	for _, r := range report.Results {
		if r.Passed {
			fmt.Fprintf(out, "  PASS  %s\n", r.Name)
		} else {
			fmt.Fprintf(out, "  FAIL  %s\n", r.Name)
			fmt.Fprintf(out, "        %s\n", r.Detail)
		}
	}
	fmt.Fprintf(out, "\nResults: %d passed, %d failed, %d total\n", report.Passed, report.Failed, report.Passed+report.Failed)

	if report.Failed > 0 {
		return fmt.Errorf("%d conformance checks failed", report.Failed)
	}
	return nil
}

func printUsage(w io.Writer) {
	fmt.Fprintf(w, `srvctl - srvgraph operator CLI

Usage:
  srvctl [-addr <url>] <command> [arguments]

Commands:
  health                     Check server health
  reset                      Restore the seed records
  state                      Print the state snapshot
  seed <file>                Load a JSON state snapshot
  query <doc> [vars-json]    Run a GraphQL query or mutation
  check                      Run the conformance suite (resets state)

Options:
  -addr <url>   Server base URL (default %s)

Environment:
  SRVGRAPH_ADDR   Override the default server URL
`, defaultAddr)
}
