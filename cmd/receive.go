package cmd

import (
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/thiswillbeyourgithub/iroh-send/pkg/config"
	"github.com/thiswillbeyourgithub/iroh-send/pkg/identity"
	"github.com/thiswillbeyourgithub/iroh-send/pkg/protos/transfer"
	"github.com/thiswillbeyourgithub/iroh-send/pkg/transport"
)

func init() {
	rootCmd.AddCommand(receiveCmd)

	receiveCmd.Flags().String("dir", "", "directory to receive into (default: current directory)")
	viper.BindPFlag(string(config.DestDir), receiveCmd.Flags().Lookup("dir"))
}

var receiveCmd = &cobra.Command{
	Use:   "receive",
	Short: "Wait for the sending peer and receive its files",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		logger, err := buildLogger()
		if err != nil {
			return err
		}
		defer logger.Sync()

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if cs := config.GetString(config.ChunkSize); cs != config.Default(config.ChunkSize) {
			logger.Warn("chunk size is determined by the sender and ignored in receive mode",
				zap.String("chunk_size", cs))
		}

		secret := []byte(config.GetString(config.Token))

		seed, err := identity.DeriveSeed(secret, identity.RoleReceiver)
		if err != nil {
			return fmt.Errorf("IROH_SEND_TOKEN: %w", err)
		}

		sender, err := identity.PeerID(secret, identity.RoleSender)
		if err != nil {
			return err
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

		fmt.Println("Receiver node ID:", node.ID().String())
		logger.Debug("expecting sender", zap.String("peer", sender.String()))

		conn, err := node.Accept(ctx, sender, config.GetInt(config.MaxAttempts), retryDelay)
		if err != nil {
			return err
		}
		defer conn.Close()

		return transfer.Receive(ctx, conn, config.GetString(config.DestDir), logger)
	},
}
