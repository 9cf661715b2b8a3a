// Package batch discovers performance files and splits them in parallel
package batch

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"slices"
	"strings"

	"github.com/james-see/handsplit/pkg/splitter"
	"golang.org/x/sync/errgroup"
)

// ErrOutputConflict is reported for a file whose outputs another file in
// the same batch already writes
var ErrOutputConflict = errors.New("output path claimed by another file")

// Conflicts checks that no two paths write the same output. outputs returns
// the files written for a path. The first path in order keeps its outputs;
// every later path that shares one is mapped to an ErrOutputConflict.
func Conflicts(paths []string, outputs func(path string) []string) map[string]error {
	owner := make(map[string]string)
	conflicts := make(map[string]error)
	for _, path := range paths {
		var clash string
		for _, out := range outputs(path) {
			if prev, ok := owner[filepath.Clean(out)]; ok {
				clash = prev
				break
			}
		}
		if clash != "" {
			conflicts[path] = fmt.Errorf("%w: %s", ErrOutputConflict, clash)
			continue
		}
		for _, out := range outputs(path) {
			owner[filepath.Clean(out)] = path
		}
	}
	return conflicts
}

// Outcome is the result of processing one file
type Outcome[T any] struct {
	Path  string
	Value T
	Err   error
}

// Discover walks root and returns files whose extension is in exts, sorted.
// Files whose stem already ends with one of skipSuffixes are left out so a
// directory can be re-run without splitting previous outputs. maxFiles caps the
// result (0 = unlimited).
func Discover(root string, exts []string, skipSuffixes []string, maxFiles int) ([]string, error) {
	var res []string
	walk := func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			// skip hidden directories
			if path != root && strings.HasPrefix(d.Name(), ".") {
				return filepath.SkipDir
			}
			return nil
		}
		if !hasExt(path, exts) || hasSuffix(path, skipSuffixes) {
			return nil
		}
		res = append(res, path)
		return nil
	}

	if err := filepath.WalkDir(root, walk); err != nil {
		return nil, fmt.Errorf("failed to walk %s: %w", root, err)
	}

	slices.Sort(res)
	if maxFiles > 0 && len(res) > maxFiles {
		res = res[:maxFiles]
	}
	return res, nil
}

func hasExt(path string, exts []string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	for _, e := range exts {
		if strings.ToLower(e) == ext {
			return true
		}
	}
	return false
}

func hasSuffix(path string, suffixes []string) bool {
	base := filepath.Base(path)
	stem := strings.TrimSuffix(base, filepath.Ext(base))
	for _, s := range suffixes {
		if s != "" && strings.HasSuffix(stem, s) {
			return true
		}
	}
	return false
}

// Run calls fn for every path with at most workers calls in flight. A failing
// file never stops the others; its error is reported in its Outcome. Outcomes
// are returned in the order of paths. Once ctx is done, files not yet started
// are reported with ctx's error.
func Run[T any](ctx context.Context, paths []string, workers int, fn func(ctx context.Context, path string) (T, error)) []Outcome[T] {
	if workers < 1 {
		workers = 1
	}

	outcomes := make([]Outcome[T], len(paths))
	var g errgroup.Group
	g.SetLimit(workers)

	for i, path := range paths {
		g.Go(func() error {
			outcomes[i].Path = path
			if err := ctx.Err(); err != nil {
				outcomes[i].Err = err
				return nil
			}
			outcomes[i].Value, outcomes[i].Err = fn(ctx, path)
			return nil
		})
	}

	_ = g.Wait()
	return outcomes
}

// SplitAll splits every path with s, at most workers at a time. Paths whose
// outputs would overwrite those of an earlier path fail with
// ErrOutputConflict and are not split.
func SplitAll(ctx context.Context, s *splitter.Splitter, paths []string, workers int, fopts splitter.FileOptions) []Outcome[*splitter.FileResult] {
	conflicts := Conflicts(paths, fopts.Outputs)
	return Run(ctx, paths, workers, func(ctx context.Context, path string) (*splitter.FileResult, error) {
		if err := conflicts[path]; err != nil {
			return nil, err
		}
		return s.SplitFile(ctx, path, fopts)
	})
}

// Failed returns the outcomes that carry an error
func Failed[T any](outcomes []Outcome[T]) []Outcome[T] {
	var failed []Outcome[T]
	for _, o := range outcomes {
		if o.Err != nil {
			failed = append(failed, o)
		}
	}
	return failed
}
