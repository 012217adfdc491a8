package cli

import (
	"errors"
	"flag"
	"fmt"
	"io"

	"github.com/mind-engage/mindengage-quiz/internal/exam"
)

func runValidate(cmd *Command) func(args []string, s Streams) int {
	return func(args []string, s Streams) int {
		flags := flag.NewFlagSet(cmd.Name, flag.ContinueOnError)
		file := flags.String("f", "", "Question file (.yaml, .yml or .json)")
		if code, ok := parseFlags(cmd, flags, args, s); !ok {
			return code
		}
		if *file == "" {
			fmt.Fprintln(s.Err, "missing -f")
			printCommandUsage(cmd, s.Err)
			return ExitUsage
		}
		qf, err := LoadQuiz(*file)
		if err != nil {
			printLoadError(s.Err, err)
			return ExitError
		}
		multi := 0
		for _, q := range qf.Questions {
			if q.IsMulti() {
				multi++
			}
		}
		fmt.Fprintf(s.Out, "%s: %d question(s), %d multi-select, kind %s\n", qf.Title, len(qf.Questions), multi, qf.Kind)
		return ExitOK
	}
}

func printLoadError(w io.Writer, err error) {
	var ve *exam.ValidationError
	if errors.As(err, &ve) {
		fmt.Fprintln(w, "Validation failed:")
		for _, f := range ve.Fields {
			fmt.Fprintf(w, "  %s: %s\n", f.Field, f.Error)
		}
		return
	}
	fmt.Fprintf(w, "Validation failed:\n%v\n", err)
}
