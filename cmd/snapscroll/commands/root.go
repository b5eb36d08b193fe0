// Package commands implements the CLI commands for snapscroll.
package commands

import (
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var rootCmd = &cobra.Command{
	Use:   "snapscroll",
	Short: "Scroll-and-snap long web pages into screenshot tiles",
	Long: `Snapscroll captures long, dynamically-loading web pages as a
sequence of viewport-sized screenshot tiles, scrolling through the page's
real scroll container and waiting for lazily-loaded content to settle.
Tiles can optionally be stitched into one continuous image.

Examples:
  # Capture a page into out/<timestamp>/
  snapscroll snap "https://example.com/long-doc"

  # Capture several pages and stitch each into one image
  snapscroll snap --stitch --tile-overlap 80 \
      "https://example.com/a" "https://example.com/b"

  # Remove a 64px sticky header repeated in every tile
  snapscroll snap --stitch --sticky-top 64 "https://example.com/doc"

  # Diagnose which scroll container would be used
  snapscroll probe "https://example.com/long-doc"`,
}

func init() {
	cobra.OnInitialize(initConfig)

	// Global flags
	rootCmd.PersistentFlags().String("config", "", "config file (default $HOME/.snapscroll.yaml)")
	rootCmd.PersistentFlags().Bool("debug", false, "enable debug logging")
	rootCmd.PersistentFlags().BoolP("quiet", "q", false, "suppress progress output")

	_ = viper.BindPFlag("debug", rootCmd.PersistentFlags().Lookup("debug"))
	_ = viper.BindPFlag("quiet", rootCmd.PersistentFlags().Lookup("quiet"))
}

func initConfig() {
	if cfgFile := viper.GetString("config"); cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err == nil {
			viper.AddConfigPath(home)
		}
		viper.AddConfigPath(".")
		viper.SetConfigName(".snapscroll")
		viper.SetConfigType("yaml")
	}

	// Environment variables
	viper.SetEnvPrefix("SNAPSCROLL")
	viper.AutomaticEnv()

	// Read config file (ignore error if not found)
	_ = viper.ReadInConfig()
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}
