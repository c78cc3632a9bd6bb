package main

import (
	"fmt"

	"github.com/spf13/cobra"

	mandel "github.com/marben/mandel_atlas"
	"github.com/marben/mandel_atlas/internal/sink"
)

func newTileCmd(cfgFile *string) *cobra.Command {
	var gridX, gridY uint32
	cmd := &cobra.Command{
		Use:   "tile",
		Short: "Render a single atlas tile and store it whatever its contents",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd, *cfgFile)
			if err != nil {
				return err
			}
			if gridX >= cfg.Grid || gridY >= cfg.Grid {
				return fmt.Errorf("tile (%d,%d) outside a %dx%d grid", gridX, gridY, cfg.Grid, cfg.Grid)
			}
			tiles, err := mandel.Partition(cfg.Domain, cfg.Grid)
			if err != nil {
				return err
			}
			var tile mandel.AtlasTile
			for _, t := range tiles {
				if t.GridX == gridX && t.GridY == gridY {
					tile = t
					break
				}
			}

			enc, err := sink.EncoderFor(cfg.Format)
			if err != nil {
				return err
			}
			dir, err := sink.NewDir(cfg.OutDir, enc)
			if err != nil {
				return err
			}
			buf, err := mandel.Render(cfg.Resolution, tile.Rect, cfg.Limit)
			if err != nil {
				return err
			}
			name := mandel.TileName(tile.Rect)
			if err := dir.Persist(cmd.Context(), buf, name); err != nil {
				return err
			}

			lo, hi := buf.Range()
			fmt.Fprintf(cmd.OutOrStdout(), "%s  range %d-%d  interesting %t\n",
				dir.Path(name), lo, hi, buf.Interesting(cfg.Threshold))
			return nil
		},
	}
	cmd.Flags().Uint32Var(&gridX, "grid-x", 0, "tile column (0 = leftmost, lowest real part)")
	cmd.Flags().Uint32Var(&gridY, "grid-y", 0, "tile row (0 = lowest imaginary part)")
	return cmd
}
