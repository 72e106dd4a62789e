package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/michaelbrown/rubybox/internal/runner"
)

var versionFlag string

var runCmd = &cobra.Command{
	Use:   "run [file|-]",
	Short: "Execute a Ruby file or stdin once",
	Long: `Execute Ruby code in a fresh container and print its output.

Without a file argument, or with "-", the code is read from stdin.
Without --version the latest available version is used.

Examples:
  rubybox run hello.rb --version 3.3.0
  echo 'puts RUBY_VERSION' | rubybox run --version 2.7.8`,
	Args: cobra.MaximumNArgs(1),
	RunE: runRun,
}

func init() {
	runCmd.Flags().StringVar(&versionFlag, "version", "", "Ruby version to run (default: latest available)")
	rootCmd.AddCommand(runCmd)
}

func runRun(cmd *cobra.Command, args []string) error {
	code, err := readSource(cmd.InOrStdin(), args)
	if err != nil {
		return err
	}

	a, err := newApp(true)
	if err != nil {
		return err
	}
	defer a.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	version, err := resolveVersion(ctx, a.service, versionFlag)
	if err != nil {
		return err
	}

	res := a.service.Execute(ctx, code, version)
	return printResult(cmd.OutOrStdout(), cmd.ErrOrStderr(), res)
}

func readSource(stdin io.Reader, args []string) (string, error) {
	if len(args) == 0 || args[0] == "-" {
		data, err := io.ReadAll(stdin)
		if err != nil {
			return "", fmt.Errorf("reading stdin: %w", err)
		}
		return string(data), nil
	}
	data, err := os.ReadFile(args[0])
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// resolveVersion falls back to the latest version whose image is present.
func resolveVersion(ctx context.Context, svc *runner.Service, requested string) (string, error) {
	if requested != "" {
		return requested, nil
	}
	snap, err := svc.AvailableVersions(ctx)
	if err != nil {
		return "", err
	}
	if snap.LatestVersion == nil {
		return "", errors.New("no Ruby images available locally, pass --version or pull an image first")
	}
	return *snap.LatestVersion, nil
}

// printResult writes output to stdout, or the error to stderr and reports failure.
func printResult(stdout, stderr io.Writer, res runner.Result) error {
	if !res.Success {
		fmt.Fprintf(stderr, "error: %s\n", res.Error)
		if res.Hint != "" {
			fmt.Fprintf(stderr, "hint: %s\n", res.Hint)
		}
		return fmt.Errorf("execution failed after %s (ruby %s)", res.ExecutionTime, res.Version)
	}
	fmt.Fprint(stdout, res.Output)
	if len(res.Output) > 0 && res.Output[len(res.Output)-1] != '\n' {
		fmt.Fprintln(stdout)
	}
	return nil
}
