// Package main implements sframe-participant, a demo CLI that joins one
// conference room through the MLS bridge and runs the SFrame session
// manager, logging join, resync and state changes instead of feeding an
// actual media pipeline.
package main

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"hermannm.dev/devlog"
)

var (
	mlsServerURL     string
	roomID           uint64
	identity         string
	replayWindowSize uint64
	logLevel         slog.LevelVar
	debug            bool
)

var rootCmd = &cobra.Command{
	CompletionOptions: cobra.CompletionOptions{
		DisableDefaultCmd: true,
	},
	Use:   "sframe-participant",
	Short: "Demo SFrame conference participant bridged to an MLS group",
	Long: `Joins one conference room through an external MLS server and runs
the SFrame sender/receiver session manager for that participant. Intended
to exercise the core library end to end; it does not attach to a real
media pipeline.
`,
}

func init() {
	slog.SetDefault(slog.New(devlog.NewHandler(os.Stdout, &devlog.Options{
		Level: &logLevel,
	})))

	rootCmd.PersistentFlags().Bool("debug", false, "Print debug-level logs")
	rootCmd.PersistentFlags().String("config", "", "Pathname of the configuration file")
	rootCmd.PersistentFlags().String("mls-server", "", "Base URL of the MLS bridge server")
	rootCmd.PersistentFlags().Uint64("room", 0, "Room ID to join")
	rootCmd.PersistentFlags().String("identity", "", "Local participant identity")
	rootCmd.PersistentFlags().Uint64("replay-window", 0, "Replay window width (0 = default)")
}

// Execute adds all child commands to rootCmd and runs it. Called once from
// main.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// loadConfig binds persistent flags, reads an optional config file, and
// populates the package-level config variables consumed by the join
// command.
func loadConfig(cmd *cobra.Command) error {
	if err := viper.BindPFlags(cmd.Flags()); err != nil {
		return err
	}

	configFilePath, err := cmd.Flags().GetString("config")
	if err != nil {
		return err
	}
	if configFilePath != "" {
		viper.SetConfigFile(configFilePath)
		if err := viper.ReadInConfig(); err != nil {
			return err
		}
	}

	debug = viper.GetBool("debug")
	if debug {
		logLevel.Set(slog.LevelDebug)
	}
	mlsServerURL = viper.GetString("mls-server")
	roomID = viper.GetUint64("room")
	identity = viper.GetString("identity")
	replayWindowSize = viper.GetUint64("replay-window")

	return nil
}
