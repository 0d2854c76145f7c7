package main

import (
	"context"
	"log/slog"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/backkem/sframe/pkg/mlsbridge"
	"github.com/backkem/sframe/pkg/room"
)

var joinCmd = &cobra.Command{
	Use:   "join",
	Short: "Join a room and run the session manager until interrupted",
	PreRunE: func(cmd *cobra.Command, args []string) error {
		return loadConfig(cmd)
	},
	RunE: runJoin,
}

func init() {
	rootCmd.AddCommand(joinCmd)
}

// currentReplayWindow is updated live by viper's config-file watcher so a
// running process can pick up an operator-tuned replay-window width for
// newly derived receiver contexts without a restart.
var currentReplayWindow atomic.Uint64

func runJoin(cmd *cobra.Command, args []string) error {
	if mlsServerURL == "" {
		return &missingFlagError{name: "mls-server"}
	}
	if identity == "" {
		return &missingFlagError{name: "identity"}
	}

	currentReplayWindow.Store(replayWindowSize)

	client := mlsbridge.NewClient(mlsbridge.ClientConfig{
		BaseURL: mlsServerURL,
		Timeout: mlsbridge.DefaultTimeout,
	})

	mgr := room.NewManager(room.Config{
		Client:           client,
		RoomID:           roomID,
		Identity:         identity,
		ReplayWindowSize: currentReplayWindow.Load(),
	})

	viper.WatchConfig()
	viper.OnConfigChange(func(e fsnotify.Event) {
		newWindow := viper.GetUint64("replay-window")
		if newWindow != 0 {
			currentReplayWindow.Store(newWindow)
			mgr.SetReplayWindowSize(newWindow)
			slog.Info("replay window size updated from config reload", "window", newWindow)
		}
	})

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	startCtx, startCancel := context.WithTimeout(ctx, mlsbridge.DefaultTimeout)
	defer startCancel()
	if err := mgr.Start(startCtx); err != nil {
		return err
	}
	slog.Info("joined room", "room", roomID, "identity", identity, "state", mgr.State().String())

	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			closeCtx, closeCancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer closeCancel()
			return mgr.Close(closeCtx)
		case <-ticker.C:
			if !mgr.NeedsResync() {
				continue
			}
			resyncCtx, resyncCancel := context.WithTimeout(ctx, mlsbridge.DefaultTimeout)
			changed, err := mgr.Resync(resyncCtx)
			resyncCancel()
			if err != nil {
				slog.Warn("resync failed", "error", err)
				continue
			}
			slog.Info("resync complete", "epoch_changed", changed)
		}
	}
}

type missingFlagError struct{ name string }

func (e *missingFlagError) Error() string {
	return "missing required flag --" + e.name
}
