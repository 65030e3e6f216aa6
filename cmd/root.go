package cmd

import (
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/agriexport/dispatchboard/infra/logger"
)

var (
	cfgPath string
	envPath string
)

var rootCmd = &cobra.Command{
	Use:   "dispatchboard",
	Short: "Collection dispatch board service",
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if err := godotenv.Load(envPath); err != nil {
			logger.New("main").Debugf("no %s file found (using environment variables)", envPath)
		}
	},
	RunE: runServe,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgPath, "config", "c", "config.yaml", "configuration file")
	rootCmd.PersistentFlags().StringVar(&envPath, "env-file", ".env", "dotenv file loaded before the configuration")
}

// Execute runs the CLI.
func Execute() error { return rootCmd.Execute() }
