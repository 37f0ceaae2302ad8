// Package main provides the hybridstore CLI entrypoint: ingest content,
// run searches, inspect cache stats, and administer segments.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/spherical-ai/hybridstore/internal/config"
	"github.com/spherical-ai/hybridstore/internal/hybridstore"
	"github.com/spherical-ai/hybridstore/internal/ingestion"
	"github.com/spherical-ai/hybridstore/internal/observability"
	"github.com/spherical-ai/hybridstore/pkg/engine"
)

var (
	cfgFile    string
	outputJSON bool
	verbose    bool
	noColor    bool

	cfg    *config.Config
	logger *observability.Logger
	ui     *UI
)

var rootCmd = &cobra.Command{
	Use:   "hybridstore-cli",
	Short: "hybridstore CLI for ingestion, search, and graph administration",
	Long: `hybridstore-cli provides commands for operating the hybrid point/segment
store: ingest raw content into the knowledge graph, search it, inspect
cache throughput, and administer segments directly.

All commands support --json for automation.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load(cfgFile)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}

		logFormat := "console"
		if outputJSON {
			logFormat = "json"
		}
		logger = observability.NewLogger(observability.LogConfig{
			Level:       cfg.Observability.LogLevel,
			Format:      logFormat,
			ServiceName: "hybridstore-cli",
		})
		ui = NewUI(outputJSON, noColor || !IsTerminal())
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file path (default: uses env vars)")
	rootCmd.PersistentFlags().BoolVar(&outputJSON, "json", false, "output in JSON format")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose output")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "disable colored output")

	rootCmd.AddCommand(newIngestCmd())
	rootCmd.AddCommand(newSearchCmd())
	rootCmd.AddCommand(newSegmentCmd())
	rootCmd.AddCommand(newCacheStatsCmd())
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newIngestCmd() *cobra.Command {
	var (
		payloadPath string
		resourceID  string
		contentType string
		singularity int64
	)

	cmd := &cobra.Command{
		Use:   "ingest",
		Short: "Parse a payload and materialize it as a resource/fragment graph",
		RunE: func(cmd *cobra.Command, args []string) error {
			defer ui.Close()
			ui.Section("Ingestion")

			payload, err := os.ReadFile(payloadPath)
			if err != nil {
				ui.Error("failed to read payload: %v", err)
				return err
			}

			eng, err := engine.New(cfg)
			if err != nil {
				ui.Error("failed to build engine: %v", err)
				return err
			}
			defer eng.Close()

			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
			defer cancel()

			spinner := ui.Spinner("ingesting")

			var singularityID *int64
			if singularity != 0 {
				singularityID = &singularity
			}

			result, err := eng.Pipeline.Ingest(ctx, ingestion.Request{
				Payload:       payload,
				ResourceID:    resourceID,
				ContentType:   contentType,
				SingularityID: singularityID,
			})
			if spinner != nil {
				spinner.SetCurrent(100)
			}
			if err != nil {
				ui.Error("ingestion failed: %v", err)
				return err
			}

			if outputJSON {
				return printJSON(result)
			}

			ui.Success("ingested resource %d via %q parser", result.ResourcePointID, result.ParserType)
			ui.KeyValue("fragments stored", fmt.Sprintf("%d/%d", len(result.FragmentPointIDs), result.TotalFragments))
			ui.KeyValue("segments created", len(result.SegmentIDs))
			return nil
		},
	}

	cmd.Flags().StringVar(&payloadPath, "payload", "", "path to the file to ingest (required)")
	cmd.Flags().StringVar(&resourceID, "resource-id", "", "resource id (generated if omitted)")
	cmd.Flags().StringVar(&contentType, "content-type", "auto", "text|json|owl|auto")
	cmd.Flags().Int64Var(&singularity, "singularity-id", 0, "tenant scope to tag created points with")
	cmd.MarkFlagRequired("payload")
	return cmd
}

func newSearchCmd() *cobra.Command {
	var (
		query          string
		singularity    int64
		dimension      int
		layer          int
		limit          int
		scoreThreshold float64
		hasSingularity bool
		hasDimension   bool
		hasLayer       bool
	)

	cmd := &cobra.Command{
		Use:   "search",
		Short: "Search the hybrid store by text query",
		RunE: func(cmd *cobra.Command, args []string) error {
			defer ui.Close()
			ui.Section("Search")

			eng, err := engine.New(cfg)
			if err != nil {
				ui.Error("failed to build engine: %v", err)
				return err
			}
			defer eng.Close()

			req := hybridstore.SearchRequest{
				Query:          query,
				Limit:          limit,
				ScoreThreshold: float32(scoreThreshold),
			}
			if hasSingularity {
				req.SingularityID = &singularity
			}
			if hasDimension {
				req.Dimension = &dimension
			}
			if hasLayer {
				req.Layer = &layer
			}

			hits, err := eng.Search(context.Background(), req)
			if err != nil {
				ui.Error("search failed: %v", err)
				return err
			}

			if outputJSON {
				return printJSON(hits)
			}

			for _, hit := range hits {
				ui.KeyValue(fmt.Sprintf("id=%d score=%.4f", hit.ID, hit.Score), hit.Payload)
			}
			ui.Success("%d hits", len(hits))
			return nil
		},
	}

	cmd.Flags().StringVar(&query, "query", "", "text query (required)")
	cmd.Flags().Int64Var(&singularity, "singularity-id", 0, "filter by singularity id")
	cmd.Flags().IntVar(&dimension, "dimension", 0, "filter by dimension")
	cmd.Flags().IntVar(&layer, "layer", 0, "filter by layer")
	cmd.Flags().IntVar(&limit, "limit", 10, "max results")
	cmd.Flags().Float64Var(&scoreThreshold, "score-threshold", 0.0, "minimum score")
	cmd.Flags().BoolVar(&hasSingularity, "has-singularity", false, "apply --singularity-id as a filter")
	cmd.Flags().BoolVar(&hasDimension, "has-dimension", false, "apply --dimension as a filter")
	cmd.Flags().BoolVar(&hasLayer, "has-layer", false, "apply --layer as a filter")
	cmd.MarkFlagRequired("query")
	return cmd
}

func newSegmentCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "segment",
		Short: "Administer segments directly",
	}
	cmd.AddCommand(newSegmentAddCmd())
	cmd.AddCommand(newSegmentDeleteCmd())
	return cmd
}

func newSegmentAddCmd() *cobra.Command {
	var from, to int64
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Create a segment between two existing points",
		RunE: func(cmd *cobra.Command, args []string) error {
			eng, err := engine.New(cfg)
			if err != nil {
				return err
			}
			defer eng.Close()

			id, err := eng.Store.AddSegment(context.Background(), from, to)
			if err != nil {
				ui.Error("add segment failed: %v", err)
				return err
			}
			if outputJSON {
				return printJSON(map[string]int64{"segmentId": id})
			}
			ui.Success("created segment %d (%d -> %d)", id, from, to)
			return nil
		},
	}
	cmd.Flags().Int64Var(&from, "from", 0, "source point id (required)")
	cmd.Flags().Int64Var(&to, "to", 0, "destination point id (required)")
	cmd.MarkFlagRequired("from")
	cmd.MarkFlagRequired("to")
	return cmd
}

func newSegmentDeleteCmd() *cobra.Command {
	var from, to int64
	cmd := &cobra.Command{
		Use:   "delete",
		Short: "Delete a segment between two points",
		RunE: func(cmd *cobra.Command, args []string) error {
			eng, err := engine.New(cfg)
			if err != nil {
				return err
			}
			defer eng.Close()

			if err := eng.Store.DeleteSegment(context.Background(), from, to); err != nil {
				ui.Error("delete segment failed: %v", err)
				return err
			}
			ui.Success("deleted segment %d -> %d", from, to)
			return nil
		},
	}
	cmd.Flags().Int64Var(&from, "from", 0, "source point id (required)")
	cmd.Flags().Int64Var(&to, "to", 0, "destination point id (required)")
	cmd.MarkFlagRequired("from")
	cmd.MarkFlagRequired("to")
	return cmd
}

func newCacheStatsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache-stats",
		Short: "Print the cache core's hit count and operations-per-second",
		RunE: func(cmd *cobra.Command, args []string) error {
			eng, err := engine.New(cfg)
			if err != nil {
				return err
			}
			defer eng.Close()

			stats := eng.Cache.GetStats()
			if outputJSON {
				return printJSON(stats)
			}
			ui.KeyValue("hits", stats.HitsCount)
			ui.KeyValue("rps", fmt.Sprintf("%.2f", stats.RPS))
			return nil
		},
	}
	return cmd
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
