package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/soyeahso/minder/internal/config"
	"github.com/soyeahso/minder/internal/version"
)

func newStatusCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show Minder status and configuration summary",
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Printf("Minder %s (commit %s)\n\n", version.Version, version.Commit)

			fmt.Printf("Config:  %s\n", paths.Config)
			fmt.Printf("Data:    %s\n", paths.Data)
			fmt.Printf("Logs:    %s\n", paths.Logs)
			fmt.Println()

			cfg, err := config.Load(paths.Config)
			if err != nil {
				if os.IsNotExist(err) {
					fmt.Println("Config:  not found (using defaults)")
				} else {
					fmt.Printf("Config:  error loading: %v\n", err)
				}
				return nil
			}

			auth := "disabled"
			if cfg.Gateway.Token != "" {
				auth = "token"
			}
			fmt.Printf("Gateway:   port=%d bind=%s auth=%s\n", cfg.Gateway.Port, cfg.Gateway.Bind, auth)
			fmt.Printf("Model:     provider=%s name=%s\n", cfg.Model.Provider, cfg.Model.Name)
			fmt.Printf("Session:   contextTokens=%d contextMessages=%d idleMinutes=%d\n",
				cfg.Session.MaxContextTokens, cfg.Session.MaxContextMessages, cfg.Session.IdleMinutes)
			fmt.Printf("Limits:    chat=%d/min tasks=%d/min\n", cfg.Limits.ChatPerMinute, cfg.Limits.TaskPerMinute)
			fmt.Printf("Retrieval: enabled=%v topK=%d\n", cfg.Retrieval.Enabled, cfg.Retrieval.TopK)
			fmt.Printf("Retention: completedTaskDays=%d\n", cfg.Retention.CompletedTaskDays)
			fmt.Printf("Storage:   %s\n", config.DatabasePath(cfg, paths))

			issues := config.Validate(&cfg)
			if len(issues) > 0 {
				fmt.Printf("\nValidation issues (%d):\n", len(issues))
				for _, issue := range issues {
					fmt.Printf("  - %s: %s\n", issue.Path, issue.Message)
				}
			}

			return nil
		},
	}

	return cmd
}
