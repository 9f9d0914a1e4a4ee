package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/thiswillbeyourgithub/iroh-send/internal/version"
	"github.com/thiswillbeyourgithub/iroh-send/pkg/config"
)

var rootCmd = &cobra.Command{
	Use:   "iroh-send",
	Short: "iroh-send transfers files and directories directly between two peers sharing a secret",
	Long: `iroh-send derives matching peer identities on both ends from the
IROH_SEND_TOKEN environment variable, connects them directly, and streams
files and directory trees chunked, compressed and digest-verified.`,
	SilenceUsage: true,
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Help()
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number of iroh-send",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println("iroh-send " + version.FullVersion())
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)

	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "enable debug logging")
	viper.BindPFlag(string(config.Verbose), rootCmd.PersistentFlags().Lookup("verbose"))
}

func buildLogger() (*zap.Logger, error) {
	if config.GetBool(config.Verbose) {
		return zap.NewDevelopment()
	}

	cfg := zap.NewProductionConfig()
	cfg.Encoding = "console"
	cfg.EncoderConfig = zap.NewDevelopmentEncoderConfig()
	return cfg.Build()
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "ERROR:", err)
		os.Exit(1)
	}
}
