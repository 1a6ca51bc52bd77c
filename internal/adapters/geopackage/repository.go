// Package geopackage describes GeoPackage vector stores through SQLite.
package geopackage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	_ "github.com/mattn/go-sqlite3" // registers the sqlite3 driver

	"github.com/jobrunner/stacman/internal/domain"
	"github.com/jobrunner/stacman/internal/ports/output"
)

const tool = "geopackage"

// Backend implements output.VectorBackend by reading gpkg_contents.
// Only local files can be opened.
type Backend struct {
	logger *slog.Logger
}

// NewBackend creates a GeoPackage backend.
func NewBackend(logger *slog.Logger) *Backend {
	return &Backend{logger: logger}
}

// DescribeVector implements output.VectorBackend.
func (b *Backend) DescribeVector(ctx context.Context, locator string) (*output.VectorInfo, error) {
	if strings.Contains(locator, "://") && !strings.HasPrefix(locator, "file://") {
		return nil, &domain.BackendError{
			Tool:    tool,
			Locator: locator,
			Err:     fmt.Errorf("remote GeoPackages: %w", domain.ErrUnsupported),
		}
	}

	db, err := openDB(ctx, strings.TrimPrefix(locator, "file://"))
	if err != nil {
		return nil, &domain.BackendError{Tool: tool, Locator: locator, Err: err}
	}
	defer func() { _ = db.Close() }()

	layers, err := readLayers(ctx, db)
	if err != nil {
		return nil, &domain.BackendError{Tool: tool, Locator: locator, Err: err}
	}
	b.logger.Debug("geopackage described", "source", locator, "layers", len(layers))
	return &output.VectorInfo{Layers: layers}, nil
}

// openDB opens the file read-only and immutable; nothing is ever written
// and no journal is created next to the source.
func openDB(ctx context.Context, path string) (*sql.DB, error) {
	dsn := fmt.Sprintf("file:%s?mode=ro&immutable=1", url.PathEscape(path))
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, err
	}

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}

	return db, nil
}

// readLayers reads layer information from gpkg_contents.
func readLayers(ctx context.Context, db *sql.DB) ([]output.VectorLayer, error) {
	query := `
		SELECT
			c.table_name,
			c.data_type,
			COALESCE(c.srs_id, 0),
			c.min_x, c.min_y, c.max_x, c.max_y
		FROM gpkg_contents c
		ORDER BY c.table_name
	`

	rows, err := db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("reading layers: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var layers []output.VectorLayer
	for rows.Next() {
		var l output.VectorLayer
		var minX, minY, maxX, maxY sql.NullFloat64

		err := rows.Scan(
			&l.Name, &l.DataType, &l.SRSID,
			&minX, &minY, &maxX, &maxY,
		)
		if err != nil {
			return nil, fmt.Errorf("scanning layer: %w", err)
		}

		// Missing or all-zero extents mean the writer did not fill them in.
		if minX.Valid && minY.Valid && maxX.Valid && maxY.Valid &&
			(minX.Float64 != 0 || minY.Float64 != 0 || maxX.Float64 != 0 || maxY.Float64 != 0) {
			bounds := domain.NewBBox(minX.Float64, minY.Float64, maxX.Float64, maxY.Float64)
			l.Bounds = &bounds
		}

		layers = append(layers, l)
	}

	return layers, rows.Err()
}
