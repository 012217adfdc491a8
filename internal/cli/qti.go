package cli

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/mind-engage/mindengage-quiz/internal/exam"
	"github.com/mind-engage/mindengage-quiz/internal/qti"
	"github.com/mind-engage/mindengage-quiz/internal/qti/export"
	"github.com/mind-engage/mindengage-quiz/internal/qti/parser"
)

func runImport(cmd *Command) func(args []string, s Streams) int {
	return func(args []string, s Streams) int {
		flags := flag.NewFlagSet(cmd.Name, flag.ContinueOnError)
		pkg := flags.String("qti", "", "QTI content package (.zip) or extracted directory")
		out := flags.String("o", "", "Question file to write (.yaml or .json), default stdout")
		kind := flags.String("kind", string(exam.KindQuiz), "Session kind: quiz, exam or td")
		if code, ok := parseFlags(cmd, flags, args, s); !ok {
			return code
		}
		if *pkg == "" {
			fmt.Fprintln(s.Err, "missing -qti")
			printCommandUsage(cmd, s.Err)
			return ExitUsage
		}
		k := exam.Kind(*kind)
		if !k.Valid() {
			fmt.Fprintf(s.Err, "unknown kind %q\n", *kind)
			return ExitUsage
		}

		fsys, err := openPackage(*pkg)
		if err != nil {
			fmt.Fprintln(s.Err, err)
			return ExitError
		}
		imp, err := qti.Import(fsys)
		if err != nil {
			printLoadError(s.Err, err)
			return ExitError
		}
		for _, id := range imp.Skipped {
			fmt.Fprintf(s.Err, "skipped %s: not a multiple-choice item with up to five options\n", id)
		}

		qf := QuizFile{Title: imp.Title, Kind: k, Questions: imp.Questions}
		data, err := encodeQuiz(*out, qf)
		if err != nil {
			fmt.Fprintln(s.Err, err)
			return ExitError
		}
		if *out == "" {
			_, _ = s.Out.Write(data)
			return ExitOK
		}
		if err := os.WriteFile(*out, data, 0o644); err != nil {
			fmt.Fprintln(s.Err, err)
			return ExitError
		}
		fmt.Fprintf(s.Out, "Wrote %d question(s) to %s\n", len(qf.Questions), *out)
		return ExitOK
	}
}

func runExport(cmd *Command) func(args []string, s Streams) int {
	return func(args []string, s Streams) int {
		flags := flag.NewFlagSet(cmd.Name, flag.ContinueOnError)
		file := flags.String("f", "", "Question file")
		out := flags.String("o", "", "Package to write (.zip)")
		if code, ok := parseFlags(cmd, flags, args, s); !ok {
			return code
		}
		if *file == "" || *out == "" {
			fmt.Fprintln(s.Err, "both -f and -o are required")
			printCommandUsage(cmd, s.Err)
			return ExitUsage
		}
		qf, err := LoadQuiz(*file)
		if err != nil {
			printLoadError(s.Err, err)
			return ExitError
		}
		// images are looked up next to the question file
		base := filepath.Dir(*file)
		media := func(name string) (io.ReadCloser, error) {
			return os.Open(filepath.Join(base, filepath.FromSlash(name)))
		}
		data, err := export.BuildPackage(qf.Questions, media)
		if err != nil {
			fmt.Fprintln(s.Err, err)
			return ExitError
		}
		if err := os.WriteFile(*out, data, 0o644); err != nil {
			fmt.Fprintln(s.Err, err)
			return ExitError
		}
		fmt.Fprintf(s.Out, "Wrote %d item(s) to %s\n", len(qf.Questions), *out)
		return ExitOK
	}
}

// openPackage accepts a zipped package or a directory it was extracted to.
func openPackage(path string) (fs.FS, error) {
	fi, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if fi.IsDir() {
		return os.DirFS(path), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return parser.OpenZip(bytes.NewReader(data), int64(len(data)))
}

func encodeQuiz(path string, qf QuizFile) ([]byte, error) {
	if strings.EqualFold(filepath.Ext(path), ".json") {
		return json.MarshalIndent(qf, "", "  ")
	}
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(qf); err != nil {
		return nil, err
	}
	return buf.Bytes(), enc.Close()
}
