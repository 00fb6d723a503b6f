package main

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/leapstack-labs/leapgrid/internal/cli"
	"github.com/leapstack-labs/leapgrid/internal/cli/config"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// generateCLIDocs writes an index page and one page per top-level command.
func generateCLIDocs(outDir string) error {
	log.Printf("Generating CLI docs to %s", outDir)
	if err := os.MkdirAll(outDir, 0750); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	root := cli.NewRootCmd()
	pages := map[string][]byte{"index.md": cliIndex(root)}
	for _, cmd := range documented(root) {
		pages[cmd.Name()+".md"] = commandPage(cmd)
	}

	for name, body := range pages {
		if err := os.WriteFile(filepath.Join(outDir, name), body, 0600); err != nil {
			return fmt.Errorf("failed to write %s: %w", name, err)
		}
		log.Printf("  Generated %s", name)
	}
	return nil
}

// documented returns the subcommands of cmd that get a page.
func documented(cmd *cobra.Command) []*cobra.Command {
	var out []*cobra.Command
	for _, sub := range cmd.Commands() {
		if sub.Hidden || !sub.IsAvailableCommand() || sub.Name() == "help" {
			continue
		}
		out = append(out, sub)
	}
	return out
}

func cliIndex(root *cobra.Command) []byte {
	w := NewMarkdownWriter()
	w.Frontmatter("CLI Reference", "Command-line interface reference for LeapGrid")
	w.GeneratedMarker()

	w.Header(1, "CLI Reference")
	w.Paragraph(root.Long)
	w.CodeBlock("bash", "go install github.com/leapstack-labs/leapgrid/cmd/leapgrid@latest\n\nleapgrid <command> [options]")

	w.Header(2, "Commands")
	var rows [][]string
	for _, cmd := range documented(root) {
		link := fmt.Sprintf("[%s](/cli/%s)", InlineCode(cmd.Name()), cmd.Name())
		rows = append(rows, []string{link, cleanDescription(cmd.Short)})
	}
	w.Table([]string{"Command", "Description"}, rows)

	w.Header(2, "Global Options")
	w.Paragraph("Global options override the configuration key shown next to them.")
	keys := make(map[string]bool)
	for _, f := range configFields() {
		keys[f.Key] = true
	}
	w.Table([]string{"Option", "Short", "Config key", "Description"},
		flagRows(root.PersistentFlags(), func(f *pflag.Flag) string {
			if key := config.FlagKey(f.Name); keys[key] {
				return InlineCode(key)
			}
			return ""
		}))

	w.Header(2, "Environment Variables")
	w.Paragraph("Every configuration key can also be set as " + InlineCode(config.EnvPrefix) +
		" followed by the upper-cased key, with nested keys joined by a double underscore. " +
		"Flags win over the environment, which wins over leapgrid.yaml.")
	var env [][]string
	for _, f := range configFields() {
		env = append(env, []string{InlineCode(envName(f.Key)), InlineCode(f.Key)})
	}
	w.Table([]string{"Variable", "Key"}, env)

	w.Header(2, "Exit Codes")
	w.Table([]string{"Code", "Meaning"}, [][]string{
		{InlineCode("0"), "Success"},
		{InlineCode("1"), "Error, details on stderr"},
	})
	return w.Bytes()
}

func commandPage(cmd *cobra.Command) []byte {
	w := NewMarkdownWriter()
	w.Frontmatter(cmd.Name(), cmd.Short)
	w.GeneratedMarker()

	w.Header(1, cmd.Name())
	desc := cmd.Long
	if desc == "" {
		desc = cmd.Short
	}
	w.Paragraph(desc)

	w.Header(2, "Usage")
	w.CodeBlock("bash", usageLine(cmd))

	if len(cmd.Aliases) > 0 {
		w.Header(2, "Aliases")
		aliases := make([]string, len(cmd.Aliases))
		for i, a := range cmd.Aliases {
			aliases[i] = InlineCode(a)
		}
		w.BulletList(aliases)
	}

	if subs := documented(cmd); len(subs) > 0 {
		w.Header(2, "Subcommands")
		var rows [][]string
		for _, sub := range subs {
			rows = append(rows, []string{InlineCode(sub.Name()), cleanDescription(sub.Short)})
		}
		w.Table([]string{"Subcommand", "Description"}, rows)
	}

	if cmd.HasLocalFlags() {
		w.Header(2, "Options")
		w.Table([]string{"Option", "Short", "Default", "Description"}, flagRows(cmd.LocalFlags(), flagDefault))
	}

	if cmd.Example != "" {
		w.Header(2, "Examples")
		w.CodeBlock("bash", cleanExample(cmd.Example))
	}
	w.Paragraph("Global options are listed in the [CLI reference](/cli/).")
	return w.Bytes()
}

func usageLine(cmd *cobra.Command) string {
	if cmd.HasAvailableSubCommands() {
		return fmt.Sprintf("leapgrid %s <subcommand> [options]", cmd.Name())
	}
	line := cmd.UseLine()
	if !strings.HasPrefix(line, "leapgrid") {
		line = "leapgrid " + line
	}
	return line
}

// flagRows renders the visible flags of fs; third fills the third column.
func flagRows(fs *pflag.FlagSet, third func(*pflag.Flag) string) [][]string {
	var rows [][]string
	fs.VisitAll(func(f *pflag.Flag) {
		if f.Hidden {
			return
		}
		short := ""
		if f.Shorthand != "" {
			short = "-" + f.Shorthand
		}
		rows = append(rows, []string{InlineCode("--" + f.Name), short, third(f), cleanDescription(f.Usage)})
	})
	return rows
}

func flagDefault(f *pflag.Flag) string {
	switch {
	case f.DefValue == "", f.DefValue == "[]":
		return ""
	case f.Value.Type() == "string":
		return InlineCode(f.DefValue)
	default:
		return f.DefValue
	}
}

// cleanExample strips the indentation shared by every non-blank line.
func cleanExample(example string) string {
	lines := strings.Split(example, "\n")
	indent := -1
	for _, line := range lines {
		if strings.TrimSpace(line) == "" {
			continue
		}
		n := len(line) - len(strings.TrimLeft(line, " \t"))
		if indent < 0 || n < indent {
			indent = n
		}
	}
	if indent <= 0 {
		return strings.TrimSpace(example)
	}
	for i, line := range lines {
		if len(line) >= indent {
			lines[i] = line[indent:]
		} else {
			lines[i] = strings.TrimLeft(line, " \t")
		}
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}
