package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/kartoza/attention-is-key/internal/attention"
	"github.com/kartoza/attention-is-key/internal/config"
	"github.com/kartoza/attention-is-key/internal/evolution"
	"github.com/kartoza/attention-is-key/internal/heatmap"
	"github.com/kartoza/attention-is-key/internal/render"
	"github.com/kartoza/attention-is-key/internal/server"
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze [lyrics-file]",
	Short: "Analyze a lyrics file and write the attention charts as SVG",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}

		text, err := os.ReadFile(args[0])
		if err != nil {
			return fmt.Errorf("error reading file %s: %w", args[0], err)
		}

		model, _ := cmd.Flags().GetString("model")
		if model == "" {
			settings, err := config.LoadSettings()
			if err != nil {
				fmt.Fprintf(cmd.ErrOrStderr(), "Warning: could not load settings: %v\n", err)
			}
			model = settings.DefaultModel
		}
		phrase, _ := cmd.Flags().GetString("phrase")
		layers, _ := cmd.Flags().GetIntSlice("layers")
		outDir, _ := cmd.Flags().GetString("out")

		analyzer, err := server.NewAnalyzer(cfg)
		if err != nil {
			return err
		}

		ctx := cmd.Context()
		if ctx == nil {
			ctx = context.Background()
		}
		if cfg.AnalysisTimeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, cfg.AnalysisTimeout)
			defer cancel()
		}

		start := time.Now()
		res, err := analyzer.Analyze(ctx, attention.Request{
			Text:         string(text),
			ModelID:      model,
			TargetPhrase: phrase,
		})
		if err != nil {
			return fmt.Errorf("analysis failed (%s): %w", attention.Code(err), err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Analyzed %d tokens with %s in %s\n",
			len(res.Tokens), res.ModelName, time.Since(start).Round(time.Millisecond))

		if err := os.MkdirAll(outDir, 0o755); err != nil {
			return fmt.Errorf("could not create output directory: %w", err)
		}

		written, err := writeCharts(res, layers, outDir)
		if err != nil {
			return err
		}

		table := tablewriter.NewWriter(cmd.OutOrStdout())
		table.SetHeader([]string{"File", "Size"})
		for _, f := range written {
			table.Append([]string{f.path, humanize.Bytes(uint64(f.size))})
		}
		table.Render()

		if res.Phrase != nil {
			fmt.Fprintf(cmd.OutOrStdout(), "%q found %d time(s)\n", res.Phrase.TargetPhrase, res.Phrase.Total())
		}
		return nil
	},
}

type writtenFile struct {
	path string
	size int
}

// writeCharts renders the requested 1-based layers (all when empty) and the
// phrase chart when the result has one
func writeCharts(res *attention.Result, layers []int, outDir string) ([]writtenFile, error) {
	if len(layers) == 0 {
		for i := range res.Layers {
			layers = append(layers, i+1)
		}
	}

	var written []writtenFile
	save := func(name string, data []byte) error {
		path := filepath.Join(outDir, name)
		if err := os.WriteFile(path, data, 0o644); err != nil {
			return fmt.Errorf("could not write %s: %w", path, err)
		}
		written = append(written, writtenFile{path: path, size: len(data)})
		return nil
	}

	surface := render.NewSurface()
	for _, n := range layers {
		layer := res.Layer(n - 1)
		if layer == nil {
			return written, fmt.Errorf("layer %d out of range (1-%d)", n, len(res.Layers))
		}
		if err := heatmap.Render(surface, layer, res.ModelName); err != nil {
			return written, err
		}
		data, err := surface.Export()
		if err != nil {
			return written, err
		}
		if err := save(heatmap.ExportFilename(n-1), data); err != nil {
			return written, err
		}
	}

	if res.Phrase != nil {
		if err := evolution.Render(surface, res.Phrase); err != nil {
			return written, err
		}
		data, err := surface.Export()
		if err != nil {
			return written, err
		}
		if err := save(evolution.ExportFilename, data); err != nil {
			return written, err
		}
	}
	return written, nil
}

func init() {
	analyzeCmd.Flags().StringP("model", "m", "", "Model id (defaults to the saved default model)")
	analyzeCmd.Flags().StringP("phrase", "p", "", "Target phrase to track across the lyrics")
	analyzeCmd.Flags().IntSlice("layers", nil, "1-based layers to render (default all)")
	analyzeCmd.Flags().StringP("out", "o", ".", "Output directory for SVG files")
	analyzeCmd.Flags().Duration("mock-latency", config.Default().MockLatency, "Simulated latency of the mock engine")
	rootCmd.AddCommand(analyzeCmd)
}
