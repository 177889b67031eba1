package commands

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/DrSkyle/fleetledger/pkg/version"
)

var (
	cfgFile string

	flagProfile  string
	flagRegions  string
	flagVerbose  bool
	flagJsonLogs bool
)

var rootCmd = &cobra.Command{
	Use:   "fleetledger",
	Short: "Historical EC2 lifecycle reconstruction",
	Long: `FleetLedger - Fleet Lifecycle Audit

Correlates CloudTrail launch/termination events with the running-instance
snapshot into one consolidated per-instance timeline across all regions.`,
	Version: version.Current,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "Config file (default ~/.fleetledger.yaml)")
	rootCmd.PersistentFlags().StringVar(&flagProfile, "profile", "", "AWS profile")
	rootCmd.PersistentFlags().StringVar(&flagRegions, "regions", "all", "Regions (comma-separated, or 'all' for every enabled region)")
	rootCmd.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false, "Log every AWS API call")
	rootCmd.PersistentFlags().BoolVar(&flagJsonLogs, "json-logs", false, "Emit JSON logs")

	rootCmd.SetHelpFunc(func(cmd *cobra.Command, args []string) {
		renderHelp(cmd)
	})
}

func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err == nil {
			viper.SetConfigFile(filepath.Join(home, ".fleetledger.yaml"))
			viper.SetConfigType("yaml")
		}
	}
	viper.SetEnvPrefix("FLEETLEDGER")
	viper.AutomaticEnv()
	viper.ReadInConfig()
}

func renderHelp(cmd *cobra.Command) {
	titleStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("#00FF99")).
		MarginBottom(1)

	flagStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("#AAAAAA"))

	fmt.Println(titleStyle.Render(fmt.Sprintf("%s %s", version.AppName, version.Current)))
	fmt.Println("Historical EC2 lifecycle reconstruction for AWS accounts.")

	fmt.Println(titleStyle.Render("USAGE"))
	fmt.Printf("  %s\n\n", cmd.UseLine())

	fmt.Println(titleStyle.Render("COMMANDS"))
	for _, c := range cmd.Commands() {
		if c.IsAvailableCommand() {
			fmt.Printf("  %-12s %s\n", c.Name(), c.Short)
		}
	}
	fmt.Println("")

	fmt.Println(titleStyle.Render("FLAGS"))
	cmd.Flags().VisitAll(func(f *pflag.Flag) {
		if f.Hidden {
			return
		}
		output := fmt.Sprintf("  --%-15s %s", f.Name, f.Usage)
		if f.DefValue != "" && f.DefValue != "false" && f.DefValue != "0" {
			output += fmt.Sprintf(" (default %s)", f.DefValue)
		}
		fmt.Println(flagStyle.Render(output))
	})
	fmt.Println("")
}
