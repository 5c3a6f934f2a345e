package permission

import (
	"fmt"
	"strings"

	"mvdan.cc/sh/v3/syntax"
)

// ShellCommand is one parsed simple command.
type ShellCommand struct {
	Name       string
	Args       []string
	Subcommand string // first non-flag argument
}

// ParseShellCommand parses a shell command line into its simple commands,
// covering pipelines, lists, and substitutions.
func ParseShellCommand(command string) ([]ShellCommand, error) {
	parser := syntax.NewParser(syntax.Variant(syntax.LangBash), syntax.KeepComments(false))
	file, err := parser.Parse(strings.NewReader(command), "")
	if err != nil {
		return nil, fmt.Errorf("parse command: %w", err)
	}

	var commands []ShellCommand
	syntax.Walk(file, func(node syntax.Node) bool {
		if call, ok := node.(*syntax.CallExpr); ok {
			if cmd := extractCall(call); cmd != nil {
				commands = append(commands, *cmd)
			}
		}
		return true
	})
	return commands, nil
}

// deniedCommands can never run through the shell tool, regardless of policy.
var deniedCommands = map[string]bool{
	"shutdown": true,
	"reboot":   true,
	"mkfs":     true,
	"dd":       true,
	"sudo":     true,
	"su":       true,
}

// GuardShellCommand rejects command lines containing denied commands. It also
// fails on unparsable input rather than letting it through unexamined.
func GuardShellCommand(command string) error {
	cmds, err := ParseShellCommand(command)
	if err != nil {
		return err
	}
	for _, c := range cmds {
		if deniedCommands[c.Name] {
			return fmt.Errorf("command %q is not permitted", c.Name)
		}
	}
	return nil
}

// GuardGitCommand verifies a command line consists solely of git invocations
// with the expected subcommand.
func GuardGitCommand(command, wantSubcommand string) error {
	cmds, err := ParseShellCommand(command)
	if err != nil {
		return err
	}
	if len(cmds) == 0 {
		return fmt.Errorf("empty git command")
	}
	for _, c := range cmds {
		if c.Name != "git" {
			return fmt.Errorf("expected git invocation, found %q", c.Name)
		}
		if wantSubcommand != "" && c.Subcommand != wantSubcommand {
			return fmt.Errorf("expected git %s, found git %s", wantSubcommand, c.Subcommand)
		}
	}
	return nil
}

func extractCall(call *syntax.CallExpr) *ShellCommand {
	if len(call.Args) == 0 {
		return nil
	}
	cmd := &ShellCommand{Name: wordText(call.Args[0])}
	if cmd.Name == "" {
		return nil
	}
	for _, arg := range call.Args[1:] {
		text := wordText(arg)
		cmd.Args = append(cmd.Args, text)
		if cmd.Subcommand == "" && !strings.HasPrefix(text, "-") {
			cmd.Subcommand = text
		}
	}
	return cmd
}

func wordText(word *syntax.Word) string {
	var sb strings.Builder
	for _, part := range word.Parts {
		switch p := part.(type) {
		case *syntax.Lit:
			sb.WriteString(p.Value)
		case *syntax.SglQuoted:
			sb.WriteString(p.Value)
		case *syntax.DblQuoted:
			for _, qp := range p.Parts {
				if lit, ok := qp.(*syntax.Lit); ok {
					sb.WriteString(lit.Value)
				}
			}
		}
	}
	return sb.String()
}
