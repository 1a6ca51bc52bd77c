package gdal

import (
	"context"
	"log/slog"
	"sort"

	"github.com/jobrunner/stacman/internal/domain"
	"github.com/jobrunner/stacman/internal/ports/output"
)

// Default tool names, resolved through PATH.
const (
	DefaultInfoTool     = "gdalinfo"
	DefaultMDimInfoTool = "gdalmdiminfo"
)

// Backend implements output.RasterBackend and output.ArrayBackend on top
// of gdalinfo and gdalmdiminfo.
type Backend struct {
	runner       Runner
	infoTool     string
	mdimInfoTool string
	logger       *slog.Logger
}

// Option configures a Backend.
type Option func(*Backend)

// WithTools overrides the tool paths. Empty values keep the defaults.
func WithTools(info, mdimInfo string) Option {
	return func(b *Backend) {
		if info != "" {
			b.infoTool = info
		}
		if mdimInfo != "" {
			b.mdimInfoTool = mdimInfo
		}
	}
}

// NewBackend creates a backend executing through runner.
func NewBackend(runner Runner, logger *slog.Logger, opts ...Option) *Backend {
	b := &Backend{
		runner:       runner,
		infoTool:     DefaultInfoTool,
		mdimInfoTool: DefaultMDimInfoTool,
		logger:       logger,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// DescribeRaster implements output.RasterBackend.
func (b *Backend) DescribeRaster(ctx context.Context, locator string) (*output.RasterInfo, error) {
	path := VSIPath(NormalizeLocator(locator))
	b.logger.Debug("running gdalinfo", "tool", b.infoTool, "path", path)

	out, err := b.runner.Run(ctx, b.infoTool, "-json", path)
	if err != nil {
		return nil, &domain.BackendError{Tool: b.infoTool, Locator: locator, Err: err}
	}
	info, err := ParseRasterInfo(out)
	if err != nil {
		return nil, &domain.BackendError{Tool: b.infoTool, Locator: locator, Err: err}
	}
	// GDAL reports the opened path; callers expect the locator they gave.
	if len(info.Files) > 0 && info.Files[0] == FromVSIPath(path) {
		info.Files[0] = locator
	}
	return info, nil
}

// DescribeArray implements output.ArrayBackend.
func (b *Backend) DescribeArray(ctx context.Context, locator string) (*output.ArrayInfo, error) {
	path := VSIPath(NormalizeLocator(locator))
	b.logger.Debug("running gdalmdiminfo", "tool", b.mdimInfoTool, "path", path)

	out, err := b.runner.Run(ctx, b.mdimInfoTool, "-detailed", path)
	if err != nil {
		return nil, &domain.BackendError{Tool: b.mdimInfoTool, Locator: locator, Err: err}
	}
	info, err := ParseArrayInfo(out)
	if err != nil {
		return nil, &domain.BackendError{Tool: b.mdimInfoTool, Locator: locator, Err: err}
	}
	return info, nil
}

func sortedNames[V any](m map[string]V) []string {
	names := make([]string, 0, len(m))
	for k := range m {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}
