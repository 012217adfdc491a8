package cli

import (
	"encoding/json"
	"flag"
	"fmt"

	"github.com/mind-engage/mindengage-quiz/internal/exam"
	"github.com/mind-engage/mindengage-quiz/internal/grading"
)

func runScore(cmd *Command) func(args []string, s Streams) int {
	return func(args []string, s Streams) int {
		flags := flag.NewFlagSet(cmd.Name, flag.ContinueOnError)
		file := flags.String("f", "", "Question file")
		answers := flags.String("a", "", "Answer sheet: question index -> label(s)")
		penalty := flags.Float64("penalty", grading.DefaultPenalty, "Deduction per wrong label")
		scale := flags.Float64("scale", grading.DefaultScale, "Maximum score")
		floor := flags.String("floor", "question", "Where penalties stop at zero: question or aggregate")
		asJSON := flags.Bool("json", false, "Print JSON")
		if code, ok := parseFlags(cmd, flags, args, s); !ok {
			return code
		}
		if *file == "" || *answers == "" {
			fmt.Fprintln(s.Err, "both -f and -a are required")
			printCommandUsage(cmd, s.Err)
			return ExitUsage
		}
		fl, err := grading.ParseFloor(*floor)
		if err != nil {
			fmt.Fprintln(s.Err, err)
			return ExitUsage
		}
		qf, err := LoadQuiz(*file)
		if err != nil {
			printLoadError(s.Err, err)
			return ExitError
		}
		sheet, err := LoadAnswers(*answers)
		if err != nil {
			fmt.Fprintln(s.Err, err)
			return ExitError
		}

		g := grading.NewGrader(grading.WithPenalty(*penalty), grading.WithScale(*scale), grading.WithFloor(fl))
		tuple := exam.Score(g, qf.Questions, sheet)
		if *asJSON {
			enc := json.NewEncoder(s.Out)
			enc.SetIndent("", "  ")
			_ = enc.Encode(tuple)
			return ExitOK
		}
		for i, it := range exam.Items(qf.Questions, sheet) {
			c := g.Grade(it)
			mark := "-"
			switch {
			case c.Exact == 1:
				mark = "ok"
			case c.Answered():
				mark = fmt.Sprintf("%d/%d", c.NumCorrect, len(it.Correct))
			}
			fmt.Fprintf(s.Out, "  Q%-3d %-6s %v\n", i+1, mark, sheet[i].Strings())
		}
		printTuple(s, g.Scale(), tuple)
		return ExitOK
	}
}

func printTuple(s Streams, scale float64, t grading.Tuple) {
	fmt.Fprintf(s.Out, "all-or-nothing:   %6.2f / %g\n", t.AllOrNothing, scale)
	fmt.Fprintf(s.Out, "partial:          %6.2f / %g\n", t.Partial, scale)
	fmt.Fprintf(s.Out, "partial-negative: %6.2f / %g\n", t.PartialNegative, scale)
}
