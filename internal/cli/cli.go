// Package cli implements quizctl: question-file validation, offline scoring
// and an interactive terminal session.
package cli

import (
	"flag"
	"fmt"
	"io"
	"strings"
)

const (
	ExitOK    = 0
	ExitError = 1
	ExitUsage = 2
)

// Streams are the process's standard streams.
type Streams struct {
	In  io.Reader
	Out io.Writer
	Err io.Writer
}

type Command struct {
	Name    string
	Summary string
	Usage   []string
	Run     func(args []string, s Streams) int
}

func Run(args []string, s Streams) int {
	if len(args) == 0 {
		printUsage(s.Out)
		return ExitUsage
	}
	if isHelpArg(args[0]) {
		printUsage(s.Out)
		return ExitOK
	}
	cmd := findCommand(args[0])
	if cmd == nil {
		fmt.Fprintf(s.Err, "Unknown command: %s\n\n", args[0])
		printUsage(s.Err)
		return ExitUsage
	}
	return cmd.Run(args[1:], s)
}

func findCommand(name string) *Command {
	for _, cmd := range commands {
		if cmd.Name == name {
			return cmd
		}
	}
	return nil
}

func isHelpArg(arg string) bool {
	switch arg {
	case "-h", "--help", "help":
		return true
	default:
		return false
	}
}

func printUsage(w io.Writer) {
	fmt.Fprintln(w, "Usage:")
	fmt.Fprintln(w, "  quizctl <command> [options]")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Commands:")
	for _, cmd := range commands {
		fmt.Fprintf(w, "  %-9s %s\n", cmd.Name, cmd.Summary)
	}
	fmt.Fprintln(w, "\nUse \"quizctl <command> --help\" for more information.")
}

func printCommandUsage(cmd *Command, w io.Writer) {
	fmt.Fprintln(w, "Usage:")
	for _, line := range cmd.Usage {
		fmt.Fprintf(w, "  %s\n", line)
	}
	if cmd.Summary != "" {
		fmt.Fprintf(w, "\n%s\n", cmd.Summary)
	}
}

// parseFlags parses args into flags. It returns ok=false with the exit code
// when the caller should stop (help requested or bad arguments).
func parseFlags(cmd *Command, flags *flag.FlagSet, args []string, s Streams) (int, bool) {
	flags.SetOutput(s.Err)
	if err := flags.Parse(args); err != nil {
		if err == flag.ErrHelp {
			printCommandUsage(cmd, s.Out)
			return ExitOK, false
		}
		fmt.Fprintf(s.Err, "invalid arguments: %v\n", err)
		printCommandUsage(cmd, s.Err)
		return ExitUsage, false
	}
	if flags.NArg() > 0 {
		fmt.Fprintf(s.Err, "unexpected arguments: %s\n", strings.Join(flags.Args(), " "))
		printCommandUsage(cmd, s.Err)
		return ExitUsage, false
	}
	return ExitOK, true
}

func command(name, summary string, usage []string, runner func(cmd *Command) func(args []string, s Streams) int) *Command {
	cmd := &Command{Name: name, Summary: summary, Usage: usage}
	cmd.Run = runner(cmd)
	return cmd
}

var commands []*Command

func init() {
	commands = []*Command{
		command("validate", "Check a question file", []string{
			"quizctl validate -f <questions.yaml|json>",
		}, runValidate),
		command("score", "Score an answer sheet against a question file", []string{
			"quizctl score -f <questions> -a <answers> [-penalty 0.25] [-scale 20] [-floor question|aggregate] [-json]",
		}, runScore),
		command("play", "Take a session in the terminal", []string{
			"quizctl play -f <questions> [-duration 10m] [-practice] [-state progress.json] [-autosave 30s]",
		}, runPlay),
		command("import", "Convert a QTI content package to a question file", []string{
			"quizctl import -qti <package.zip|dir> [-o questions.yaml] [-kind quiz|exam|td]",
		}, runImport),
		command("export", "Write a question file as a QTI 2.1 content package", []string{
			"quizctl export -f <questions> -o <package.zip>",
		}, runExport),
	}
}
