package main

import (
	"cmp"
	"fmt"
	"io"
	"os"
	"slices"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/mattn/go-isatty"

	"github.com/handiism/audiobatch/internal/model"
)

// collectReferences gathers references from args, an optional file ("-" is
// stdin) and piped stdin when nothing else was given.
func collectReferences(args []string, file string, stdin io.Reader) ([]string, error) {
	refs := model.CleanReferences(args)

	switch {
	case file == "-":
		data, err := io.ReadAll(stdin)
		if err != nil {
			return nil, fmt.Errorf("read stdin: %w", err)
		}
		refs = append(refs, model.ParseReferences(string(data))...)
	case file != "":
		data, err := os.ReadFile(file)
		if err != nil {
			return nil, fmt.Errorf("read references: %w", err)
		}
		refs = append(refs, model.ParseReferences(string(data))...)
	case len(refs) == 0 && stdin != nil && !isTerminal(stdin):
		data, err := io.ReadAll(stdin)
		if err != nil {
			return nil, fmt.Errorf("read stdin: %w", err)
		}
		refs = model.ParseReferences(string(data))
	}
	return refs, nil
}

func isTerminal(v any) bool {
	file, ok := v.(*os.File)
	if !ok {
		return false
	}
	fd := file.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

func fileSize(path string) string {
	info, err := os.Stat(path)
	if err != nil {
		return "?"
	}
	return humanize.IBytes(uint64(info.Size()))
}

func formatDuration(d time.Duration) string {
	if d < time.Second {
		return d.Round(time.Millisecond).String()
	}
	return d.Round(time.Second).String()
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}

// sortedFailures returns failures in work-list order.
func sortedFailures(failures []model.Outcome) []model.Outcome {
	out := slices.Clone(failures)
	slices.SortFunc(out, func(a, b model.Outcome) int { return cmp.Compare(a.Index, b.Index) })
	return out
}
