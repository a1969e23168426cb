package cli

import (
	"github.com/spf13/cobra"

	"github.com/soyeahso/minder/internal/config"
	"github.com/soyeahso/minder/internal/logging"
)

var (
	cfgFile  string
	logLevel string

	// loaded at init time
	paths config.Paths
	log   *logging.Logger
)

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "minder",
		Short: "Minder — per-user conversational assistant server",
		Long:  "Minder is a personal assistant server: each user talks to their own actor over a WebSocket, with durable tasks, reminders, and conversation memory.",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			var err error
			paths, err = config.ResolvePaths()
			if err != nil {
				return err
			}
			if cfgFile != "" {
				paths.Config = cfgFile
			}

			// The --log-level flag wins over the config file.
			level := logLevel
			style := "pretty"
			if cfg, err := config.Load(paths.Config); err == nil {
				if level == "" {
					level = cfg.Logging.Level
				}
				style = cfg.Logging.ConsoleStyle
			}
			if level == "" {
				level = "info"
			}
			log = logging.NewStyled(nil, level, style)
			return nil
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default ~/.minder/config.yaml)")
	cmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (trace, debug, info, warn, error, fatal, silent)")

	cmd.AddCommand(newVersionCmd())
	cmd.AddCommand(newServeCmd())
	cmd.AddCommand(newStatusCmd())

	return cmd
}

// Execute runs the root command.
func Execute() error {
	return newRootCmd().Execute()
}
