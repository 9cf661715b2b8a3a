package splitter

import (
	"context"
	"fmt"
	"os"

	"github.com/james-see/handsplit/pkg/performance"
)

// Default file suffixes for the two variants
const (
	SimpleSuffix = "_simple"
	SmartSuffix  = "_smart"
)

// FileOptions controls where SplitFile writes its outputs
type FileOptions struct {
	OutputDir    string // empty means next to the source
	SimpleSuffix string
	SmartSuffix  string
}

// DefaultFileOptions returns FileOptions writing next to the source
func DefaultFileOptions() FileOptions {
	return FileOptions{SimpleSuffix: SimpleSuffix, SmartSuffix: SmartSuffix}
}

func (o FileOptions) withDefaults() FileOptions {
	if o.SimpleSuffix == "" {
		o.SimpleSuffix = SimpleSuffix
	}
	if o.SmartSuffix == "" {
		o.SmartSuffix = SmartSuffix
	}
	return o
}

// Outputs returns the paths SplitFile writes for src, in Variants order
func (o FileOptions) Outputs(src string) []string {
	o = o.withDefaults()
	return []string{
		performance.OutputPath(src, o.OutputDir, o.SimpleSuffix),
		performance.OutputPath(src, o.OutputDir, o.SmartSuffix),
	}
}

// FileResult describes the files written for one source
type FileResult struct {
	Source     string
	SimplePath string
	SmartPath  string
	Result     *Result
}

// Path returns the output path of variant
func (f *FileResult) Path(v Variant) string {
	if v == VariantSmart {
		return f.SmartPath
	}
	return f.SimplePath
}

// SplitFile reads src, splits it and writes <stem>_simple.mid and
// <stem>_smart.mid. Both outputs are encoded and staged before either is
// moved into place; a failure leaves the destinations as they were.
func (s *Splitter) SplitFile(ctx context.Context, src string, fopts FileOptions) (*FileResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	logger := s.logger.WithFile(src)

	p, err := performance.ReadFile(src)
	if err != nil {
		return nil, err
	}

	res, err := s.Split(p)
	if err != nil {
		return nil, fmt.Errorf("failed to split %s: %w", src, err)
	}

	simpleData, err := performance.Encode(res.Simple.Performance)
	if err != nil {
		return nil, fmt.Errorf("failed to encode simple split: %w", err)
	}
	smartData, err := performance.Encode(res.Smart.Performance)
	if err != nil {
		return nil, fmt.Errorf("failed to encode smart split: %w", err)
	}

	fopts = fopts.withDefaults()
	if fopts.OutputDir != "" {
		if err := os.MkdirAll(fopts.OutputDir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create output directory: %w", err)
		}
	}

	outputs := fopts.Outputs(src)
	fr := &FileResult{
		Source:     src,
		SimplePath: outputs[0],
		SmartPath:  outputs[1],
		Result:     res,
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	simple, err := performance.Stage(fr.SimplePath, simpleData)
	if err != nil {
		return nil, err
	}
	smart, err := performance.Stage(fr.SmartPath, smartData)
	if err != nil {
		simple.Discard()
		return nil, err
	}
	if err := performance.CommitAll(simple, smart); err != nil {
		return nil, err
	}

	logger.Info("split complete",
		"simple", fr.SimplePath,
		"smart", fr.SmartPath,
		"centroids", centroidsAttr(res.Centroids),
	)
	return fr, nil
}

func centroidsAttr(c *Centroids) string {
	if c == nil {
		return "undefined"
	}
	return c.String()
}
