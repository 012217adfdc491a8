package cli

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"io"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/mind-engage/mindengage-quiz/internal/config"
	"github.com/mind-engage/mindengage-quiz/internal/exam"
	"github.com/mind-engage/mindengage-quiz/internal/grading"
	"github.com/mind-engage/mindengage-quiz/internal/logging"
	"github.com/mind-engage/mindengage-quiz/internal/session"
)

const playHelp = `Commands:
  a..e       toggle an option (several at once: "a c")
  n / p      next / previous question ("n" on the last one submits)
  g <num>    go to question <num>
  r          reveal the answer (practice)
  s          submit now
  restart    start over
  pause      stop the clock / resume
  q          save and quit
  ?          this help`

type playOpts struct {
	file     string
	state    string
	duration time.Duration
	practice bool
	autosave time.Duration
	verbose  bool
}

func runPlay(cmd *Command) func(args []string, s Streams) int {
	return func(args []string, s Streams) int {
		var o playOpts
		cfg := config.Load()
		flags := flag.NewFlagSet(cmd.Name, flag.ContinueOnError)
		flags.StringVar(&o.file, "f", "", "Question file")
		flags.StringVar(&o.state, "state", "", "Progress file to resume from and autosave to (default: <file>.progress.json)")
		flags.DurationVar(&o.duration, "duration", -1, "Countdown for exam sessions, 0 for untimed (default: from the file)")
		flags.BoolVar(&o.practice, "practice", false, "Immediate feedback: reveal and lock each question")
		flags.DurationVar(&o.autosave, "autosave", cfg.AutosaveInterval, "Autosave interval (AUTOSAVE_INTERVAL)")
		flags.BoolVar(&o.verbose, "v", false, "Debug logging to stderr")
		if code, ok := parseFlags(cmd, flags, args, s); !ok {
			return code
		}
		if o.file == "" {
			fmt.Fprintln(s.Err, "missing -f")
			printCommandUsage(cmd, s.Err)
			return ExitUsage
		}
		if o.state == "" {
			o.state = strings.TrimSuffix(o.file, filepath.Ext(o.file)) + ".progress.json"
		}
		return play(context.Background(), o, s)
	}
}

func engineOptions(qf QuizFile, o playOpts) []session.Option {
	flow := session.FlowFor(qf.Kind)
	if o.practice {
		flow = session.FlowPractice
	}
	d := time.Duration(qf.DurationSec) * time.Second
	if o.duration >= 0 {
		d = o.duration
	}
	return []session.Option{session.WithFlow(flow), session.WithDuration(d)}
}

func play(ctx context.Context, o playOpts, s Streams) int {
	qf, err := LoadQuiz(o.file)
	if err != nil {
		printLoadError(s.Err, err)
		return ExitError
	}
	st, err := readState(o.state)
	if err != nil {
		fmt.Fprintf(s.Err, "read %s: %v\n", o.state, err)
		return ExitError
	}
	opts := engineOptions(qf, o)
	var eng *session.Engine
	switch {
	case st.Result != nil:
		eng, err = session.RestoreFinished(qf.Questions, *st.Result, opts...)
	case st.Progress != nil:
		eng, err = session.Restore(qf.Questions, *st.Progress, opts...)
		if err == nil {
			fmt.Fprintf(s.Out, "Resuming at question %d.\n", eng.Current()+1)
		}
	default:
		eng, err = session.New(qf.Questions, opts...)
	}
	if err != nil {
		fmt.Fprintln(s.Err, err)
		return ExitError
	}

	level := "warn"
	if o.verbose {
		level = "debug"
	}
	stop := make(chan struct{})
	defer close(stop)
	p := &player{
		eng:        eng,
		title:      qf.Title,
		out:        s.Out,
		lines:      readLines(s.In, stop),
		fromResult: st.Result != nil,
		runner: &session.Runner{
			Engine:           eng,
			Writer:           fileWriter{path: o.state},
			AutosaveInterval: o.autosave,
			Log:              logging.New("quizctl", level, s.Err),
			OnError: func(err error) {
				fmt.Fprintf(s.Err, "warning: %v (answers are kept in memory)\n", err)
			},
		},
	}
	fmt.Fprintf(s.Out, "%s: %d question(s). Type ? for help.\n", qf.Title, eng.Len())
	return p.loop(ctx)
}

// readLines feeds input lines to the returned channel until the input ends
// or stop is closed.
func readLines(in io.Reader, stop <-chan struct{}) <-chan string {
	ch := make(chan string)
	go func() {
		defer close(ch)
		sc := bufio.NewScanner(in)
		for sc.Scan() {
			select {
			case <-stop:
				return
			default:
			}
			select {
			case ch <- sc.Text():
			case <-stop:
				return
			}
		}
	}()
	return ch
}

type player struct {
	eng    *session.Engine
	runner *session.Runner
	title  string
	out    io.Writer
	lines  <-chan string
	// fromResult is set while the engine holds a result read back from disk.
	fromResult bool
}

// loop alternates between a running session and the finished screen until
// the learner quits or input ends.
func (p *player) loop(ctx context.Context) int {
	for {
		if p.eng.State() != session.Finished {
			quit, err := p.runSession(ctx)
			if quit {
				if err != nil {
					fmt.Fprintln(p.out, "Progress not saved.")
					return ExitError
				}
				fmt.Fprintln(p.out, "Progress saved.")
				return ExitOK
			}
		} else if !p.fromResult {
			// restored with the clock already run out
			_ = p.runner.SaveResult(ctx)
		}
		p.showResult()
		if !p.fromResult && !p.keepResult(ctx) {
			return ExitError
		}
		if !p.askRestart() {
			return ExitOK
		}
		p.fromResult = false
	}
}

// keepResult retries the final write for as long as the learner asks to.
// It reports false if the result never reached disk.
func (p *player) keepResult(ctx context.Context) bool {
	for !p.runner.Saved() {
		fmt.Fprintln(p.out, "The result could not be saved. Retry? [Y/n]")
		line, ok := <-p.lines
		if a := strings.TrimSpace(strings.ToLower(line)); !ok || a == "n" || a == "no" {
			fmt.Fprintln(p.out, "Result not saved.")
			return false
		}
		_ = p.runner.SaveResult(ctx)
	}
	return true
}

// runSession drives one run of the engine. It reports whether the learner
// quit before finishing, and the runner's final write error.
func (p *player) runSession(ctx context.Context) (bool, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	p.eng.Start()
	done := make(chan error, 1)
	go func() { done <- p.runner.Run(ctx) }()

	p.render()
	for {
		select {
		case err := <-done:
			fmt.Fprintln(p.out, "Session finished.")
			return false, err
		case line, ok := <-p.lines:
			if !ok || p.handle(line) {
				cancel()
				err := <-done
				return p.eng.State() != session.Finished, err
			}
			if p.eng.State() == session.Finished {
				return false, <-done
			}
			p.render()
		}
	}
}

// handle applies one input line and reports whether the learner quit.
func (p *player) handle(line string) bool {
	line = strings.TrimSpace(strings.ToLower(line))
	if pending := p.eng.Pending(); pending != session.ActionNone {
		if line == "y" || line == "yes" {
			if _, err := p.eng.Confirm(); err != nil {
				fmt.Fprintln(p.out, err)
			}
		} else {
			p.eng.Cancel()
			fmt.Fprintln(p.out, "Cancelled.")
		}
		return false
	}

	fields := strings.Fields(line)
	if len(fields) == 0 {
		return false
	}
	switch fields[0] {
	case "q", "quit", "exit":
		return true
	case "?", "h", "help":
		fmt.Fprintln(p.out, playHelp)
	case "n", "next":
		p.eng.Next()
	case "p", "prev":
		p.eng.Prev()
	case "g", "goto":
		if len(fields) < 2 {
			fmt.Fprintln(p.out, "usage: g <num>")
			break
		}
		n, err := strconv.Atoi(fields[1])
		if err != nil {
			fmt.Fprintln(p.out, "usage: g <num>")
			break
		}
		p.eng.GoTo(n - 1)
	case "r", "reveal":
		c, ok := p.eng.Reveal()
		if !ok {
			fmt.Fprintln(p.out, "Nothing to reveal.")
			break
		}
		p.feedback(c.Exact == 1, c.Partial)
	case "s", "submit":
		if err := p.eng.Request(session.ActionFinish); err == nil {
			fmt.Fprintf(p.out, "Submit with %d of %d answered? [y/N]\n", p.eng.View().Answered, p.eng.Len())
		}
	case "restart":
		if err := p.eng.Request(session.ActionRestart); err == nil {
			fmt.Fprintln(p.out, "Discard all answers and start over? [y/N]")
		}
	case "pause":
		if p.eng.View().Paused {
			p.eng.Resume()
		} else {
			p.eng.Pause()
		}
	default:
		for _, f := range fields {
			l, ok := exam.ParseLabel(f)
			if !ok || !p.eng.Answer(l) {
				fmt.Fprintf(p.out, "Cannot select %q here.\n", f)
			}
		}
	}
	return false
}

func (p *player) feedback(exact bool, partial float64) {
	v := p.eng.View()
	if v.Question == nil {
		return
	}
	switch {
	case exact:
		fmt.Fprintln(p.out, "Correct.")
	case partial > 0:
		fmt.Fprintf(p.out, "Partly correct (%.0f%%).\n", partial*100)
	default:
		fmt.Fprintln(p.out, "Incorrect.")
	}
	fmt.Fprintf(p.out, "Answer: %s\n", strings.Join(v.Question.CorrectAnswer.Strings(), ", "))
	if v.Question.Justification != "" {
		fmt.Fprintln(p.out, v.Question.Justification)
	}
	fmt.Fprintf(p.out, "Running score: %.2f\n", p.eng.Running().Partial)
}

func (p *player) render() {
	v := p.eng.View()
	if v.Pending != session.ActionNone {
		return
	}
	fmt.Fprintln(p.out)
	clock := fmt.Sprintf("elapsed %s", time.Duration(v.Elapsed)*time.Second)
	if v.Flow == session.FlowExam && v.TimeLeft > 0 {
		clock = fmt.Sprintf("time left %s", time.Duration(v.TimeLeft)*time.Second)
	}
	if v.Paused {
		clock += " (paused)"
	}
	if v.Question == nil {
		fmt.Fprintf(p.out, "%s has no questions. Type n to finish.\n", p.title)
		return
	}
	fmt.Fprintf(p.out, "[%d/%d] %s, %d answered\n", v.Current+1, v.Total, clock, v.Answered)
	fmt.Fprintln(p.out, v.Question.Text)
	if v.Question.Image != "" {
		fmt.Fprintf(p.out, "(image: %s)\n", v.Question.Image)
	}
	for _, l := range v.Question.OptionLabels() {
		mark := " "
		if v.Selection.Contains(l) {
			mark = "x"
		}
		fmt.Fprintf(p.out, "  [%s] %s) %s\n", mark, l, v.Question.Options[l])
	}
	if v.Question.IsMulti() {
		fmt.Fprintln(p.out, "  (several answers)")
	}
	if v.Revealed {
		fmt.Fprintf(p.out, "  answer: %s\n", strings.Join(v.Question.CorrectAnswer.Strings(), ", "))
	}
}

func (p *player) showResult() {
	res, ok := p.eng.FinalResult()
	if !ok {
		return
	}
	fmt.Fprintf(p.out, "\nResult for %s (%d answered):\n", p.title, len(res.SelectedAnswers))
	idx := make([]int, 0, len(res.SelectedAnswers))
	for i := range res.SelectedAnswers {
		idx = append(idx, i)
	}
	sort.Ints(idx)
	for _, i := range idx {
		fmt.Fprintf(p.out, "  Q%d: %s\n", i+1, strings.Join(res.SelectedAnswers[i].Strings(), ", "))
	}
	printTuple(Streams{Out: p.out}, grading.DefaultScale, res.Tuple)
}

func (p *player) askRestart() bool {
	if err := p.eng.Request(session.ActionRestart); err != nil {
		return false
	}
	fmt.Fprintln(p.out, "Start again? [y/N]")
	line, ok := <-p.lines
	if !ok {
		p.eng.Cancel()
		return false
	}
	if a := strings.TrimSpace(strings.ToLower(line)); a == "y" || a == "yes" {
		_, err := p.eng.Confirm()
		return err == nil
	}
	p.eng.Cancel()
	return false
}
