package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"sync"
	"syscall"

	"github.com/chzyer/readline"
	"github.com/spf13/cobra"

	"github.com/michaelbrown/rubybox/internal/runner"
)

var replCmd = &cobra.Command{
	Use:   "repl",
	Short: "Start an interactive Ruby prompt",
	Long: `Start an interactive prompt. Every entered snippet runs in a fresh
container, so no state carries over between snippets. End a line with
a backslash to continue the snippet on the next line.

Examples:
  rubybox repl
  rubybox repl --version 2.7.8`,
	Args: cobra.NoArgs,
	RunE: runRepl,
}

func init() {
	replCmd.Flags().StringVar(&versionFlag, "version", "", "Ruby version to run (default: latest available)")
	rootCmd.AddCommand(replCmd)
}

// replSession is the state behind one interactive prompt.
type replSession struct {
	service *runner.Service
	version string
	out     io.Writer

	mu     sync.Mutex
	cancel context.CancelFunc // running snippet, if any
}

// begin returns the context for one snippet. finish must be called once the
// snippet has returned.
func (s *replSession) begin() (ctx context.Context, finish func()) {
	ctx, cancel := context.WithCancel(context.Background())
	s.mu.Lock()
	s.cancel = cancel
	s.mu.Unlock()
	return ctx, func() {
		s.mu.Lock()
		s.cancel = nil
		s.mu.Unlock()
		cancel()
	}
}

// interrupt cancels the running snippet. It is a no-op at the prompt.
func (s *replSession) interrupt() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		s.cancel()
	}
}

func runRepl(cmd *cobra.Command, args []string) error {
	a, err := newApp(true)
	if err != nil {
		return err
	}
	defer a.Close()

	version, err := resolveVersion(context.Background(), a.service, versionFlag)
	if err != nil {
		return err
	}

	sess := &replSession{service: a.service, version: version, out: cmd.OutOrStdout()}

	fmt.Printf("rubybox - Interactive Ruby\n")
	fmt.Printf("Version: %s\n", sess.version)
	fmt.Printf("Type /help for commands, /quit to exit\n\n")

	home, _ := os.UserHomeDir()
	rl, err := readline.NewEx(&readline.Config{
		Prompt:          sess.prompt(),
		HistoryFile:     filepath.Join(home, ".rubybox", "repl_history"),
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
	})
	if err != nil {
		return fmt.Errorf("readline: %w", err)
	}
	defer rl.Close()

	// Ctrl+C cancels the running snippet, not the prompt.
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		for range sigCh {
			sess.interrupt()
		}
	}()

	var pending []string
	for {
		input, err := rl.Readline()
		if err != nil {
			if err == readline.ErrInterrupt || err == io.EOF {
				fmt.Println("\nGoodbye!")
				return nil
			}
			return err
		}

		if len(pending) == 0 && strings.HasPrefix(strings.TrimSpace(input), "/") {
			if sess.handleCommand(strings.TrimSpace(input)) {
				return nil
			}
			rl.SetPrompt(sess.prompt())
			continue
		}

		if line, ok := strings.CutSuffix(input, `\`); ok {
			pending = append(pending, line)
			rl.SetPrompt("\033[36m...>\033[0m ")
			continue
		}
		code := strings.Join(append(pending, input), "\n")
		pending = nil
		rl.SetPrompt(sess.prompt())

		if strings.TrimSpace(code) == "" {
			continue
		}

		reqCtx, finish := sess.begin()
		res := sess.service.Execute(reqCtx, code, sess.version)
		interrupted := reqCtx.Err() != nil
		finish()

		if interrupted {
			fmt.Println("(interrupted)")
			continue
		}
		sess.print(res)
	}
}

func (s *replSession) prompt() string {
	return fmt.Sprintf("\033[36mruby %s>\033[0m ", s.version)
}

func (s *replSession) print(res runner.Result) {
	if !res.Success {
		fmt.Fprintf(s.out, "\033[31merror: %s\033[0m\n", res.Error)
		if res.Hint != "" {
			fmt.Fprintf(s.out, "\033[90mhint: %s\033[0m\n", res.Hint)
		}
		fmt.Fprintln(s.out)
		return
	}
	fmt.Fprint(s.out, res.Output)
	if !strings.HasSuffix(res.Output, "\n") {
		fmt.Fprintln(s.out)
	}
	fmt.Fprintf(s.out, "\033[90m(%s)\033[0m\n\n", res.ExecutionTime)
}

// handleCommand runs a slash command and reports whether the prompt should exit.
func (s *replSession) handleCommand(input string) bool {
	fields := strings.Fields(input)
	switch strings.ToLower(fields[0]) {
	case "/quit", "/exit", "/q":
		fmt.Fprintln(s.out, "Goodbye!")
		return true
	case "/version":
		if len(fields) < 2 {
			fmt.Fprintf(s.out, "Current version: %s\n\n", s.version)
			break
		}
		if _, err := s.service.Catalog().Resolve(fields[1]); err != nil {
			fmt.Fprintf(s.out, "Unknown version %q (try /versions)\n\n", fields[1])
			break
		}
		s.version = fields[1]
		fmt.Fprintf(s.out, "Switched to %s\n\n", s.version)
	case "/versions":
		snap, err := s.service.AvailableVersions(context.Background())
		if err != nil {
			fmt.Fprintf(s.out, "\033[31merror: %s\033[0m\n\n", err)
			break
		}
		printSnapshot(s.out, snap)
		fmt.Fprintln(s.out)
	case "/help":
		fmt.Fprintln(s.out, "Commands:")
		fmt.Fprintln(s.out, "  /help           - Show this help")
		fmt.Fprintln(s.out, "  /version [X]    - Show or switch the Ruby version")
		fmt.Fprintln(s.out, "  /versions       - List available versions")
		fmt.Fprintln(s.out, "  /quit           - Exit")
		fmt.Fprintln(s.out)
	default:
		fmt.Fprintf(s.out, "Unknown command: %s (try /help)\n\n", input)
	}
	return false
}
