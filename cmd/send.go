package cmd

import (
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/thiswillbeyourgithub/iroh-send/internal/utils"
	"github.com/thiswillbeyourgithub/iroh-send/pkg/config"
	"github.com/thiswillbeyourgithub/iroh-send/pkg/identity"
	"github.com/thiswillbeyourgithub/iroh-send/pkg/protos/transfer"
	"github.com/thiswillbeyourgithub/iroh-send/pkg/transport"
)

func init() {
	rootCmd.AddCommand(sendCmd)

	sendCmd.Flags().String("chunk-size", "", `chunk size for transfers, e.g. "1k", "1.5m", "3g"`)
	viper.BindPFlag(string(config.ChunkSize), sendCmd.Flags().Lookup("chunk-size"))
}

var sendCmd = &cobra.Command{
	Use:   "send <path> [<path>...]",
	Short: "Send files or directories to the receiving peer",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		logger, err := buildLogger()
		if err != nil {
			return err
		}
		defer logger.Sync()

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		secret := []byte(config.GetString(config.Token))

		seed, err := identity.DeriveSeed(secret, identity.RoleSender)
		if err != nil {
			return fmt.Errorf("IROH_SEND_TOKEN: %w", err)
		}

		remote, err := identity.PeerID(secret, identity.RoleReceiver)
		if err != nil {
			return err
		}

		chunkBytes, err := utils.ParseSize(config.GetString(config.ChunkSize))
		if err != nil || chunkBytes < 1 || chunkBytes > transport.MaxChunkSize {
			return fmt.Errorf("invalid chunk size %q: must be between 1 byte and %s",
				config.GetString(config.ChunkSize), utils.FormatBytes(transport.MaxChunkSize))
		}

		retryDelay, err := time.ParseDuration(config.GetString(config.RetryDelay))
		if err != nil {
			return fmt.Errorf("invalid retry delay: %w", err)
		}

		node, err := transport.NewNode(seed, config.GetStringSlice(config.ListenAddrs), logger.Named("node"))
		if err != nil {
			return err
		}
		defer node.Close()

		logger.Info("sender node up", zap.String("id", node.ID().String()))

		conn, err := node.Connect(ctx, remote, config.GetInt(config.MaxAttempts), retryDelay)
		if err != nil {
			return err
		}
		defer conn.Close()

		return transfer.Send(ctx, conn, args, uint32(chunkBytes), logger)
	},
}
