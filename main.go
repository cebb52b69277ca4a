package main

import (
	"fmt"
	"os"

	"github.com/urfave/cli/v2"
)

func main() {
	app := &cli.App{
		Name:      "cdb2anvil",
		Usage:     "converts console chunk database worlds to Anvil",
		ArgsUsage: "<world directory>",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "template",
				Aliases:  []string{"t"},
				Usage:    "world supplying everything but regions, level.dat included",
				Required: true,
			},
			&cli.StringFlag{
				Name:     "out",
				Aliases:  []string{"o"},
				Usage:    "directory the converted world is written to",
				Required: true,
			},
			&cli.StringFlag{
				Name:    "blocks",
				Aliases: []string{"b"},
				Value:   "blocks.json",
				Usage:   "block translation table",
			},
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Value:   "cdb2anvil.yml",
				Usage:   "config file, optional",
			},
			&cli.BoolFlag{
				Name:  "overwrite",
				Usage: "replace the output directory if it already exists",
			},
			&cli.BoolFlag{
				Name:  "fill-corrupted",
				Usage: "fill unrecoverable chunks with glass instead of leaving them empty",
			},
			&cli.IntFlag{
				Name:  "workers",
				Usage: "parallel chunk conversions, defaults to the CPU count",
			},
			&cli.BoolFlag{
				Name:    "verbose",
				Aliases: []string{"v"},
				Usage:   "enable debug logging",
			},
		},
		Action: func(c *cli.Context) error {
			if c.NArg() == 0 {
				_, _ = fmt.Fprintln(os.Stderr, "need a world to convert")
				return nil
			}
			cfg, err := LoadConfig(c.String("config"))
			if err != nil {
				return err
			}
			if c.Bool("fill-corrupted") {
				cfg.FillCorruptedChunks = true
			}
			if c.IsSet("workers") {
				cfg.Workers = c.Int("workers")
			}
			if c.Bool("verbose") {
				cfg.LogLevel = "debug"
			}
			logger = newLogger(cfg.LogLevel)

			return Run(ConvertOptions{
				WorldDir:    c.Args().Get(0),
				TemplateDir: c.String("template"),
				OutputDir:   c.String("out"),
				BlocksPath:  c.String("blocks"),
				Overwrite:   c.Bool("overwrite"),
				Config:      cfg,
			})
		},
	}

	if err := app.Run(os.Args); err != nil {
		logger.Fatal().Err(err).Msg("conversion failed")
	}
}
