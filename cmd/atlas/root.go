package main

import (
	"context"
	"fmt"
	"io"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/marben/mandel_atlas/internal/atlas"
	"github.com/marben/mandel_atlas/internal/config"
	"github.com/marben/mandel_atlas/internal/monitor"
	"github.com/marben/mandel_atlas/internal/sink"
	"github.com/marben/mandel_atlas/internal/tui"
)

func newRootCmd() *cobra.Command {
	var cfgFile string
	cmd := &cobra.Command{
		Use:   "atlas",
		Short: "Render the Mandelbrot set as an atlas of grayscale tiles",
		Long: `atlas splits a region of the complex plane into a grid of tiles, renders
every tile on all available cores and stores the ones that are not a single
flat shade, one image file per tile.

Settings may also come from MANDEL_ATLAS_* environment variables
(e.g. MANDEL_ATLAS_GRID=16) or from a config file given with --config.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd, cfgFile)
			if err != nil {
				return err
			}
			return render(cmd.Context(), cfg, cmd.OutOrStdout(), cmd.ErrOrStderr())
		},
	}
	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (yaml, toml or json)")
	config.Flags(cmd.PersistentFlags())

	cmd.AddCommand(newTileCmd(&cfgFile), newRegionsCmd())
	return cmd
}

func loadConfig(cmd *cobra.Command, cfgFile string) (config.Config, error) {
	v, err := config.NewViper(cmd.Flags(), cfgFile)
	if err != nil {
		return config.Config{}, err
	}
	return config.Load(v)
}

type runResult struct {
	summary atlas.Summary
	err     error
}

// render runs the whole atlas. The output directory is created before any
// tile is rendered.
func render(ctx context.Context, cfg config.Config, stdout, stderr io.Writer) error {
	enc, err := sink.EncoderFor(cfg.Format)
	if err != nil {
		return err
	}
	dir, err := sink.NewDir(cfg.OutDir, enc)
	if err != nil {
		return err
	}
	logger, closeLog, err := newLogger(cfg, stderr)
	if err != nil {
		return err
	}
	defer closeLog()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	opts := []atlas.Option{atlas.WithLogger(logger)}

	if cfg.Listen != "" {
		mon := monitor.New(cfg.Tiles(), dir.Root(), logger)
		opts = append(opts, atlas.WithObserver(mon.Publish))
		go func() {
			if err := mon.Serve(ctx, cfg.Listen); err != nil {
				logger.Error("monitor stopped", "err", err)
			}
		}()
	}

	var prog *tea.Program
	if cfg.TUI {
		prog = tea.NewProgram(tui.New(cfg.Tiles(), cancel), tea.WithOutput(stdout))
		opts = append(opts, atlas.WithObserver(func(ev atlas.Event) {
			prog.Send(tui.EventMsg(ev))
		}))
	}

	sched, err := atlas.New(cfg, dir, opts...)
	if err != nil {
		return err
	}

	if prog == nil {
		sum, err := sched.Run(ctx)
		printSummary(stdout, sum)
		return err
	}

	done := make(chan runResult, 1)
	go func() {
		sum, err := sched.Run(ctx)
		prog.Send(tui.DoneMsg{Summary: sum, Err: err})
		done <- runResult{summary: sum, err: err}
	}()
	if _, err := prog.Run(); err != nil {
		cancel()
		<-done
		return fmt.Errorf("terminal ui: %w", err)
	}
	res := <-done
	printSummary(stdout, res.summary)
	return res.err
}

func printSummary(w io.Writer, sum atlas.Summary) {
	p := message.NewPrinter(language.English)
	p.Fprintf(w, "%d tiles: %d persisted, %d skipped, %d existing, %d failed, %d canceled in %s\n",
		sum.Total, sum.Persisted, sum.Skipped, sum.Existing, sum.Failed, sum.Canceled,
		sum.Elapsed.Round(time.Millisecond))
}
