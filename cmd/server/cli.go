package main

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/drullandev/trust-engine/internal/config"
	"github.com/drullandev/trust-engine/internal/core/domain"
	"github.com/drullandev/trust-engine/internal/logging"
)

func newRootCommand() *cobra.Command {
	rootCommand := &cobra.Command{
		Use:   "trustd",
		Short: "Behavioral trust and admission-control engine",
		RunE:  runServeCommand,
	}
	rootCommand.SilenceUsage = true
	rootCommand.AddCommand(newServeCommand())
	rootCommand.AddCommand(newDurationCommand())
	rootCommand.AddCommand(newGenerateClearanceKeyCommand())
	rootCommand.AddCommand(newCheckBlockCommand())
	return rootCommand
}

func newServeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the trust engine HTTP server",
		RunE:  runServeCommand,
	}
}

func runServeCommand(cmd *cobra.Command, args []string) error {
	logger, closer := logging.NewFromEnv()
	defer closer.Close()

	if err := serve(logger); err != nil {
		logger.Error("trust engine stopped", "error", err)
		return err
	}
	return nil
}

func newDurationCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "duration <expression>",
		Short: "Print the milliseconds of a duration expression such as 1h30min",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			parser, err := config.DurationParser()
			if err != nil {
				return err
			}
			ms, err := parser.Millis(args[0])
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), ms)
			return err
		},
	}
}

const secretByteLength = 32

func newGenerateClearanceKeyCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "generate-clearance-key",
		Short: "Generate an HS256 signing key for clearance tokens",
		RunE: func(cmd *cobra.Command, args []string) error {
			secret, err := generateRandomHex(secretByteLength)
			if err != nil {
				return fmt.Errorf("generate CLEARANCE_SECRET: %w", err)
			}
			if _, err := fmt.Fprintf(cmd.OutOrStdout(), "CLEARANCE_SECRET=%s\n", secret); err != nil {
				return fmt.Errorf("write CLEARANCE_SECRET: %w", err)
			}
			return nil
		},
	}
}

func newCheckBlockCommand() *cobra.Command {
	var quiet bool
	command := &cobra.Command{
		Use:   "check-block <identity>",
		Short: "Look up an identity in the Redis block mirror",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("config error: %w", err)
			}
			if cfg.BlockMirror.Type != "redis" {
				return fmt.Errorf("check-block requires BLOCK_MIRROR=redis")
			}
			mirror, err := newRedisMirror(cfg.BlockMirror.Redis)
			if err != nil {
				return err
			}
			defer mirror.Close()

			ctx, cancel := context.WithTimeout(cmd.Context(), 5*time.Second)
			defer cancel()
			identity := domain.NormalizeIdentity(args[0])
			if quiet {
				blocked, err := mirror.IsBlocked(ctx, identity)
				if err != nil {
					return err
				}
				if blocked {
					return fmt.Errorf("%s: %w", identity, domain.ErrBlocked)
				}
				return nil
			}

			until, blocked, err := mirror.BlockedUntil(ctx, identity)
			if err != nil {
				return err
			}
			if !blocked {
				_, err = fmt.Fprintf(cmd.OutOrStdout(), "%s not blocked\n", identity)
				return err
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "%s blocked until %s\n", identity, until.Format(time.RFC3339))
			return err
		},
	}
	command.Flags().BoolVarP(&quiet, "quiet", "q", false, "print nothing; fail when the identity is blocked")
	return command
}

var randomRead = rand.Read

func generateRandomHex(byteLength int) (string, error) {
	randomBytes := make([]byte, byteLength)
	if _, err := randomRead(randomBytes); err != nil {
		return "", fmt.Errorf("read random bytes: %w", err)
	}
	return hex.EncodeToString(randomBytes), nil
}
