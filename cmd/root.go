package cmd

import (
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/teemow/mailbuddy/internal/config"
)

// rootCmd represents the base command for the mailbuddy application
var rootCmd = &cobra.Command{
	Use:   "mailbuddy",
	Short: "Categorized Gmail inbox with reply drafting",
	Long: `mailbuddy signs you in with Google, sorts your inbox into categories,
flags fraudulent messages and drafts replies.

It can run as:
  - A terminal dashboard (default)
  - A one-shot command that prints a single view
  - The assistant backend the dashboard talks to`,
	SilenceUsage: true,
}

// version will be set by main
var version = "dev"

var (
	cfgFile string
	v       *viper.Viper
)

// SetVersion sets the version for the root command
func SetVersion(ver string) {
	version = ver
	rootCmd.Version = ver
}

// Execute is the main entry point for the CLI application
func Execute() {
	rootCmd.SetVersionTemplate(`{{printf "mailbuddy version %s\n" .Version}}`)

	// If no subcommand is provided, run the dashboard command by default
	if len(os.Args) == 1 {
		os.Args = append(os.Args, "dashboard")
	}

	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

// loadConfig reads the configuration for the running command.
func loadConfig() (*config.Config, error) {
	return config.Load(v, cfgFile)
}

func init() {
	v = config.NewViper()

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&cfgFile, "config", "", "Config file (default: $XDG_CONFIG_HOME/mailbuddy/config.yaml)")
	flags.Bool("debug", false, "Enable debug logging. Can also use MAILBUDDY_DEBUG env var.")
	flags.String("api-url", config.DefaultAPIURL, "Assistant backend base URL. Can also use API_URL env var.")
	_ = v.BindPFlag("debug", flags.Lookup("debug"))
	_ = v.BindPFlag("api_url", flags.Lookup("api-url"))

	rootCmd.AddCommand(newLoginCmd())
	rootCmd.AddCommand(newLogoutCmd())
	rootCmd.AddCommand(newDashboardCmd())
	rootCmd.AddCommand(newInboxCmd())
	rootCmd.AddCommand(newServeCmd())
	rootCmd.AddCommand(newVersionCmd())
}
