package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/jobrunner/stacman/internal/adapters/manifest"
	"github.com/jobrunner/stacman/internal/app"
	"github.com/jobrunner/stacman/internal/application"
	"github.com/jobrunner/stacman/internal/domain"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create the catalog, or rewrite it in the configured layout",
	Args:  cobra.NoArgs,
	RunE: oneShot(func(ctx context.Context, a *app.App, _ *cobra.Command, _ []string) error {
		return a.Manager.Save(ctx)
	}),
}

var describeCmd = &cobra.Command{
	Use:   "describe [root...]",
	Short: "Print the catalog tree",
	Long: `Print the configured catalog, or the catalogs stored in the given local
directories, as an indented tree or as YAML.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		format, _ := cmd.Flags().GetString("format")
		a, err := setup()
		if err != nil {
			return err
		}
		ctx := cmd.Context()

		if len(args) == 0 {
			return describe(ctx, cmd.OutOrStdout(), a.Manager, format)
		}
		ws, err := a.Workspace(ctx, args...)
		if err != nil {
			return err
		}
		for _, id := range ws.List() {
			m, err := ws.Get(id)
			if err != nil {
				return err
			}
			if err := describe(ctx, cmd.OutOrStdout(), m, format); err != nil {
				return err
			}
		}
		return nil
	},
}

var formatsCmd = &cobra.Command{
	Use:   "formats",
	Short: "List the supported source formats",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		a, err := setup()
		if err != nil {
			return err
		}
		tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "EXTENSION\tKIND\tMEDIA TYPE")
		for _, ext := range a.Extractor.SupportedExtensions() {
			src, err := a.Extractor.Classify("source" + ext)
			if err != nil {
				continue
			}
			fmt.Fprintf(tw, "%s\t%s\t%s\n", ext, src.Kind, domain.MediaTypeForLocator("source"+ext))
		}
		return tw.Flush()
	},
}

var collectionCmd = &cobra.Command{
	Use:   "collection",
	Short: "Manage collections",
}

var collectionAddCmd = &cobra.Command{
	Use:   "add <id>",
	Short: "Add a collection; existing collections are left alone",
	Args:  cobra.ExactArgs(1),
	RunE: oneShot(func(_ context.Context, a *app.App, cmd *cobra.Command, args []string) error {
		title, _ := cmd.Flags().GetString("title")
		description, _ := cmd.Flags().GetString("description")
		extent, err := extentFlags(cmd)
		if err != nil {
			return err
		}
		added, err := a.Manager.AddCollection(args[0], orDefault(title, args[0]), orDefault(description, args[0]), extent)
		if err != nil {
			return err
		}
		if !added {
			fmt.Fprintf(os.Stderr, "collection %s already exists\n", args[0])
		}
		return nil
	}),
}

var collectionRemoveCmd = &cobra.Command{
	Use:   "remove <id>",
	Short: "Remove a collection and its items",
	Args:  cobra.ExactArgs(1),
	RunE: oneShot(func(_ context.Context, a *app.App, _ *cobra.Command, args []string) error {
		return a.Manager.RemoveCollection(args[0])
	}),
}

var itemCmd = &cobra.Command{
	Use:   "item",
	Short: "Manage items",
}

var itemAddCmd = &cobra.Command{
	Use:   "add <collection> <source>...",
	Short: "Extract metadata from sources and add them as items",
	Args:  cobra.MinimumNArgs(2),
	RunE: oneShot(func(ctx context.Context, a *app.App, cmd *cobra.Command, args []string) error {
		ov, err := overrideFlags(cmd)
		if err != nil {
			return err
		}
		if ov.ID != "" && len(args) > 2 {
			return fmt.Errorf("--id applies to a single source: %w", domain.ErrInvalidInput)
		}
		for _, source := range args[1:] {
			item, err := a.Manager.AddItem(ctx, args[0], source, ov)
			if err != nil {
				return fmt.Errorf("%s: %w", source, err)
			}
			fmt.Fprintf(os.Stdout, "%s/%s\n", args[0], item.ID)
		}
		return nil
	}),
}

var itemRemoveCmd = &cobra.Command{
	Use:   "remove <collection> <item>...",
	Short: "Remove items",
	Args:  cobra.MinimumNArgs(2),
	RunE: oneShot(func(_ context.Context, a *app.App, _ *cobra.Command, args []string) error {
		for _, id := range args[1:] {
			if err := a.Manager.RemoveItem(args[0], id); err != nil {
				return err
			}
		}
		return nil
	}),
}

var itemSetCmd = &cobra.Command{
	Use:   "set <collection> key=value...",
	Short: "Set item properties",
	Long: `Set properties on the items named with --item, or on every item of the
collection. Values are parsed as JSON when possible, otherwise kept as text.`,
	Args: cobra.MinimumNArgs(2),
	RunE: oneShot(func(_ context.Context, a *app.App, cmd *cobra.Command, args []string) error {
		props, err := parseAssignments(args[1:])
		if err != nil {
			return err
		}
		ids, _ := cmd.Flags().GetStringSlice("item")
		if len(ids) == 1 {
			return a.Manager.UpdateItemProperties(args[0], ids[0], props)
		}
		n, err := a.Manager.UpdateCollectionItemsProperties(args[0], props, idFilter(ids))
		if err != nil {
			return err
		}
		fmt.Fprintf(os.Stderr, "updated %d items\n", n)
		return nil
	}),
}

var itemUnsetCmd = &cobra.Command{
	Use:   "unset <collection> key...",
	Short: "Remove item properties",
	Args:  cobra.MinimumNArgs(2),
	RunE: oneShot(func(_ context.Context, a *app.App, cmd *cobra.Command, args []string) error {
		ids, _ := cmd.Flags().GetStringSlice("item")
		if len(ids) == 1 {
			return a.Manager.RemoveItemProperties(args[0], ids[0], args[1:])
		}
		n, err := a.Manager.RemoveCollectionItemsProperties(args[0], args[1:], idFilter(ids))
		if err != nil {
			return err
		}
		fmt.Fprintf(os.Stderr, "updated %d items\n", n)
		return nil
	}),
}

var ingestCmd = &cobra.Command{
	Use:   "ingest <manifest.yaml>",
	Short: "Add the collections and sources listed in a manifest",
	Args:  cobra.ExactArgs(1),
	RunE: oneShot(func(ctx context.Context, a *app.App, _ *cobra.Command, args []string) error {
		plan, err := manifest.LoadFile(args[0])
		if err != nil {
			return err
		}
		res, err := a.Manager.Ingest(ctx, plan)
		if err != nil {
			return err
		}
		for _, f := range res.Failures {
			fmt.Fprintf(os.Stderr, "failed: %s/%s: %v\n", f.Collection, f.Source, f.Err)
		}
		fmt.Fprintf(os.Stderr, "collections added: %d, items added: %d, failed: %d\n",
			res.CollectionsAdded, res.ItemsAdded, len(res.Failures))
		return nil
	}),
}

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Reconcile the sync collection with the sources storage once",
	Args:  cobra.NoArgs,
	RunE: oneShot(func(ctx context.Context, a *app.App, _ *cobra.Command, _ []string) error {
		svc, err := a.NewSyncService(ctx)
		if err != nil {
			return err
		}
		res, err := svc.RunOnce(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintf(os.Stderr, "added: %d, removed: %d, failed: %d, total: %d\n",
			res.ItemsAdded, res.ItemsRemoved, res.ItemsFailed, res.ItemsTotal)
		return nil
	}),
}

func init() {
	describeCmd.Flags().String("format", "text", "output format (text, yaml)")

	f := collectionAddCmd.Flags()
	f.String("title", "", "collection title (default: the id)")
	f.String("description", "", "collection description (default: the id)")
	f.Float64Slice("bbox", nil, "extent used while the collection is empty: minx,miny,maxx,maxy")
	f.String("start", "", "extent start (RFC 3339)")
	f.String("end", "", "extent end (RFC 3339)")
	collectionCmd.AddCommand(collectionAddCmd, collectionRemoveCmd)

	f = itemAddCmd.Flags()
	f.String("id", "", "item id (default: the source file stem)")
	f.String("datetime", "", "item timestamp (RFC 3339, default: now)")
	f.String("start", "", "start of the item time range (RFC 3339)")
	f.String("end", "", "end of the item time range (RFC 3339)")
	f.StringArray("property", nil, "extra property key=value (repeatable)")
	itemSetCmd.Flags().StringSlice("item", nil, "item ids (default: all items)")
	itemUnsetCmd.Flags().StringSlice("item", nil, "item ids (default: all items)")
	itemCmd.AddCommand(itemAddCmd, itemRemoveCmd, itemSetCmd, itemUnsetCmd)
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}

// parseAssignments turns key=value arguments into properties.
func parseAssignments(args []string) (domain.Properties, error) {
	props := make(domain.Properties, len(args))
	for _, arg := range args {
		key, value, ok := strings.Cut(arg, "=")
		if !ok || key == "" {
			return nil, fmt.Errorf("expected key=value, got %q: %w", arg, domain.ErrInvalidInput)
		}
		props[key] = domain.ParseValue(value)
	}
	return props, nil
}

func parseTime(name, value string) (*time.Time, error) {
	if value == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return nil, fmt.Errorf("--%s: %v: %w", name, err, domain.ErrInvalidInput)
	}
	t = t.UTC()
	return &t, nil
}

func timeFlags(cmd *cobra.Command, names ...string) ([]*time.Time, error) {
	out := make([]*time.Time, len(names))
	for i, name := range names {
		v, _ := cmd.Flags().GetString(name)
		t, err := parseTime(name, v)
		if err != nil {
			return nil, err
		}
		out[i] = t
	}
	return out, nil
}

func extentFlags(cmd *cobra.Command) (*domain.Extent, error) {
	bbox, _ := cmd.Flags().GetFloat64Slice("bbox")
	times, err := timeFlags(cmd, "start", "end")
	if err != nil {
		return nil, err
	}
	if bbox == nil && times[0] == nil && times[1] == nil {
		return nil, nil
	}

	ext := domain.Extent{
		Spatial:  []domain.BBox{domain.GlobalBBox},
		Temporal: []domain.Interval{domain.NewInterval(times[0], times[1])},
	}
	if bbox != nil {
		b, err := domain.BBoxFromSlice(bbox)
		if err != nil {
			return nil, err
		}
		if !b.IsValid() {
			return nil, fmt.Errorf("--bbox %v: %w", bbox, domain.ErrInvalidBBox)
		}
		ext.Spatial[0] = b
	}
	return &ext, nil
}

func overrideFlags(cmd *cobra.Command) (domain.ItemOverrides, error) {
	var ov domain.ItemOverrides
	ov.ID, _ = cmd.Flags().GetString("id")

	times, err := timeFlags(cmd, "datetime", "start", "end")
	if err != nil {
		return ov, err
	}
	ov.Datetime, ov.Start, ov.End = times[0], times[1], times[2]
	if ov.Datetime != nil && (ov.Start != nil || ov.End != nil) {
		return ov, fmt.Errorf("--datetime excludes --start and --end: %w", domain.ErrInvalidInput)
	}

	assignments, _ := cmd.Flags().GetStringArray("property")
	if len(assignments) > 0 {
		if ov.Properties, err = parseAssignments(assignments); err != nil {
			return ov, err
		}
	}
	return ov, nil
}

// idFilter selects the given item ids, or every item when there are none.
func idFilter(ids []string) application.ItemFilter {
	if len(ids) == 0 {
		return nil
	}
	want := make(map[string]bool, len(ids))
	for _, id := range ids {
		want[id] = true
	}
	return func(item *domain.Item) bool { return want[item.ID] }
}

// Summary types for `describe --format yaml`.
type (
	catalogSummary struct {
		ID          string              `yaml:"id"`
		Title       string              `yaml:"title,omitempty"`
		Description string              `yaml:"description,omitempty"`
		Collections []collectionSummary `yaml:"collections"`
	}
	collectionSummary struct {
		ID       string        `yaml:"id"`
		Title    string        `yaml:"title,omitempty"`
		BBox     []float64     `yaml:"bbox,flow"`
		Interval []string      `yaml:"interval,flow"`
		Items    []itemSummary `yaml:"items"`
	}
	itemSummary struct {
		ID       string            `yaml:"id"`
		BBox     []float64         `yaml:"bbox,flow"`
		Datetime string            `yaml:"datetime,omitempty"`
		Start    string            `yaml:"start_datetime,omitempty"`
		End      string            `yaml:"end_datetime,omitempty"`
		Assets   map[string]string `yaml:"assets"`
	}
)

func formatTime(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

func describe(ctx context.Context, w io.Writer, m *application.CatalogManager, format string) error {
	switch format {
	case "", "text":
		return m.Describe(w)
	case "yaml":
	default:
		return fmt.Errorf("unknown format %q: %w", format, domain.ErrInvalidInput)
	}

	cat, err := m.Catalog(ctx)
	if err != nil {
		return err
	}
	out := catalogSummary{ID: cat.ID, Title: cat.Title, Description: cat.Description}
	for _, col := range cat.Collections() {
		cs := collectionSummary{ID: col.ID, Title: col.Title}
		if b, ok := col.Extent.BBox(); ok {
			cs.BBox = b.Slice()
		}
		if iv, ok := col.Extent.Interval(); ok {
			cs.Interval = []string{formatTime(iv.Start), formatTime(iv.End)}
		}
		for _, item := range col.Items() {
			is := itemSummary{
				ID:       item.ID,
				BBox:     item.BBox.Slice(),
				Datetime: formatTime(item.Time.Datetime),
				Start:    formatTime(item.Time.Start),
				End:      formatTime(item.Time.End),
				Assets:   make(map[string]string, len(item.Assets)),
			}
			for key, asset := range item.Assets {
				is.Assets[key] = asset.Href
			}
			cs.Items = append(cs.Items, is)
		}
		out.Collections = append(out.Collections, cs)
	}

	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(out); err != nil {
		return err
	}
	return enc.Close()
}
