package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"

	"github.com/chzyer/readline"
	"github.com/leapstack-labs/leapgrid/internal/cli/config"
	"github.com/leapstack-labs/leapgrid/pkg/metastore"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

const (
	shellPrompt      = "leapgrid> "
	shellHistoryFile = "shell_history"
)

// NewShellCommand creates the interactive shell command.
func NewShellCommand() *cobra.Command {
	var watch bool

	cmd := &cobra.Command{
		Use:   "shell",
		Short: "Compile reads interactively",
		Long: `Start an interactive session against the metadata store.

Each line takes the same arguments as compile. The model may be omitted
after .use selects one. Connections and cached metadata are kept for the
whole session. With --watch the schema fixture is reloaded whenever the
file changes.`,
		Example: `  leapgrid shell
  leapgrid> .use customers
  leapgrid> -c cu_name,cu_total --sort=-cu_total -x
  leapgrid> orders --limit 5`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runShell(cmd, watch)
		},
	}

	cmd.Flags().BoolVarP(&watch, "watch", "w", false, "Reload the schema fixture when it changes")

	return cmd
}

func runShell(cmd *cobra.Command, watch bool) error {
	cmdCtx, cleanup, err := NewCommandContext(cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()
	sess := &shellSession{cmdCtx: cmdCtx, out: cmd.OutOrStdout(), errOut: cmd.ErrOrStderr()}

	if watch {
		fixture := cmdCtx.Cfg.Meta.Fixture
		if fixture == "" {
			return errors.New("--watch needs a schema fixture (meta.fixture)")
		}
		go func() {
			err := metastore.WatchFixture(ctx, fixture, 0, cmdCtx.Logger, func() { sess.reload(ctx, fixture) })
			if err != nil {
				cmdCtx.Logger.Warn("fixture watch stopped", slog.String("error", err.Error()))
			}
		}()
	}

	var history string
	if cmdCtx.Cfg.Meta.Driver != config.MetaDriverMemory && cmdCtx.Cfg.Meta.Path != "" {
		history = filepath.Join(filepath.Dir(cmdCtx.Cfg.Meta.Path), shellHistoryFile)
	}

	rl, err := readline.NewEx(&readline.Config{
		Prompt:          shellPrompt,
		HistoryFile:     history,
		AutoComplete:    sess.completer(ctx),
		InterruptPrompt: "^C",
		EOFPrompt:       ".quit",
		Stdout:          cmd.OutOrStdout(),
		Stderr:          cmd.ErrOrStderr(),
	})
	if err != nil {
		return fmt.Errorf("failed to initialize shell: %w", err)
	}
	defer func() { _ = rl.Close() }()

	_, _ = fmt.Fprintln(sess.out, "LeapGrid shell. Type .help for commands, .quit to exit")

	for {
		line, err := rl.Readline()
		if errors.Is(err, readline.ErrInterrupt) {
			continue
		}
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}
		if sess.handle(ctx, line) {
			return nil
		}
		if sess.model != "" {
			rl.SetPrompt(sess.model + "> ")
		}
	}
}

// shellSession is the state of one interactive session. mu keeps fixture
// reloads from interleaving with input lines.
type shellSession struct {
	mu     sync.Mutex
	cmdCtx *CommandContext
	out    io.Writer
	errOut io.Writer
	model  string
}

// reload replaces the schema with the fixture at path.
func (s *shellSession) reload(ctx context.Context, path string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := metastore.ReloadFixture(ctx, path, s.cmdCtx.Store); err != nil {
		_, _ = fmt.Fprintf(s.errOut, "Error: reload failed: %v\n", err)
		return
	}
	_, _ = fmt.Fprintf(s.errOut, "Reloaded %s\n", filepath.Base(path))
}

// handle runs one input line and reports whether the session should end.
func (s *shellSession) handle(ctx context.Context, line string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	line = strings.TrimSpace(line)
	if line == "" {
		return false
	}
	if strings.HasPrefix(line, ".") {
		return s.dotCommand(ctx, line)
	}
	if err := s.compile(ctx, line); err != nil {
		_, _ = fmt.Fprintf(s.errOut, "Error: %v\n", err)
	}
	return false
}

func (s *shellSession) dotCommand(ctx context.Context, line string) bool {
	parts := strings.Fields(line)
	switch strings.ToLower(parts[0]) {
	case ".quit", ".exit":
		return true
	case ".help":
		printShellHelp(s.out)
	case ".use":
		if len(parts) < 2 {
			_, _ = fmt.Fprintln(s.errOut, "Usage: .use <model>")
			return false
		}
		if _, err := s.cmdCtx.Store.GetModel(ctx, parts[1]); err != nil {
			_, _ = fmt.Fprintf(s.errOut, "Error: %v\n", err)
			return false
		}
		s.model = parts[1]
	case ".models":
		models, err := s.cmdCtx.Store.ListModels(ctx)
		if err != nil {
			_, _ = fmt.Fprintf(s.errOut, "Error: %v\n", err)
			return false
		}
		for _, m := range models {
			_, _ = fmt.Fprintf(s.out, "%s\t%s\n", m.ID, m.Title)
		}
	case ".columns":
		modelID := s.model
		if len(parts) > 1 {
			modelID = parts[1]
		}
		if modelID == "" {
			_, _ = fmt.Fprintln(s.errOut, "Usage: .columns <model>")
			return false
		}
		cols, err := s.cmdCtx.Store.ListColumns(ctx, modelID)
		if err != nil {
			_, _ = fmt.Fprintf(s.errOut, "Error: %v\n", err)
			return false
		}
		for _, c := range cols {
			if c.System && !c.PK {
				continue
			}
			_, _ = fmt.Fprintf(s.out, "%s\t%s\t%s\n", c.ID, c.Title, c.UIType)
		}
	default:
		_, _ = fmt.Fprintf(s.errOut, "Unknown command: %s (type .help for commands)\n", parts[0])
	}
	return false
}

// compile parses line as compile arguments and renders the result.
func (s *shellSession) compile(ctx context.Context, line string) error {
	args, err := splitArgs(line)
	if err != nil {
		return err
	}

	opts := &CompileOptions{}
	fs := pflag.NewFlagSet("shell", pflag.ContinueOnError)
	fs.SetOutput(io.Discard)
	bindCompileFlags(fs, opts)
	if err := fs.Parse(args); err != nil {
		return err
	}

	modelID := s.model
	switch rest := fs.Args(); len(rest) {
	case 0:
		if modelID == "" {
			return errors.New("no model given (use .use <model> or name one)")
		}
	case 1:
		modelID = rest[0]
	default:
		return fmt.Errorf("unexpected arguments: %s", strings.Join(rest[1:], " "))
	}

	req, err := buildRequest(modelID, opts)
	if err != nil {
		return err
	}
	return compileAndRender(ctx, s.cmdCtx, req, opts.Execute)
}

// completer offers dot commands and model ids.
func (s *shellSession) completer(ctx context.Context) *readline.PrefixCompleter {
	items := []readline.PrefixCompleterInterface{
		readline.PcItem(".help"),
		readline.PcItem(".models"),
		readline.PcItem(".quit"),
		readline.PcItem(".exit"),
	}

	models, err := s.cmdCtx.Store.ListModels(ctx)
	if err != nil {
		return readline.NewPrefixCompleter(items...)
	}
	use := make([]readline.PrefixCompleterInterface, 0, len(models))
	columns := make([]readline.PrefixCompleterInterface, 0, len(models))
	for _, m := range models {
		items = append(items, readline.PcItem(m.ID))
		use = append(use, readline.PcItem(m.ID))
		columns = append(columns, readline.PcItem(m.ID))
	}
	items = append(items,
		readline.PcItem(".use", use...),
		readline.PcItem(".columns", columns...),
	)
	return readline.NewPrefixCompleter(items...)
}

// splitArgs splits line on whitespace, keeping single- or double-quoted
// runs together.
func splitArgs(line string) ([]string, error) {
	var (
		args  []string
		cur   strings.Builder
		quote rune
		inArg bool
	)
	for _, r := range line {
		switch {
		case quote != 0:
			if r == quote {
				quote = 0
				continue
			}
			cur.WriteRune(r)
		case r == '\'' || r == '"':
			quote = r
			inArg = true
		case r == ' ' || r == '\t':
			if inArg {
				args = append(args, cur.String())
				cur.Reset()
				inArg = false
			}
		default:
			cur.WriteRune(r)
			inArg = true
		}
	}
	if quote != 0 {
		return nil, errors.New("unterminated quote")
	}
	if inArg {
		args = append(args, cur.String())
	}
	return args, nil
}

func printShellHelp(w io.Writer) {
	help := `
Commands:
  .help              Show this help message
  .models            List models
  .use <model>       Read from model when a line names none
  .columns [model]   List a model's columns
  .quit / .exit      Leave the shell

Any other line takes compile's arguments, for example:
  customers -c cu_name,cu_total --sort=-cu_total --limit 5 -x
`
	_, _ = fmt.Fprintln(w, help)
}
