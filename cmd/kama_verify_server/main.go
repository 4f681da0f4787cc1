package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"kama_verify_server/internal/config"
	"kama_verify_server/internal/infrastructure/email"
	"kama_verify_server/internal/infrastructure/sms"
	"kama_verify_server/pkg/util/jwt"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "kama_verify_server",
		Short: "Verification code dispatch service (email / SMS) with daily quotas",
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			// .env 不存在时忽略
			if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
				log.Printf("load .env failed: %v", err)
			}
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve(config.GetConfig())
		},
	}
	rootCmd.AddCommand(tokenCmd())
	rootCmd.AddCommand(checkCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func tokenCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "token [service]",
		Short: "Issue a service token for a caller of the verification API",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			conf := config.GetConfig()
			jwt.Init(conf.JWTConfig.Secret, conf.JWTConfig.AccessTokenExpiry)
			token, err := jwt.GenerateServiceToken(args[0])
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}
}

// checkCmd 检查 SMTP 连通性与短信渠道配置，不发送任何消息也不消耗额度
func checkCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Verify the SMTP transport and resolve the configured SMS channel",
		RunE: func(cmd *cobra.Command, args []string) error {
			conf := config.GetConfig()
			out := cmd.OutOrStdout()

			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()
			if err := email.NewSMTPTransport(conf.EmailConfig).Verify(ctx); err != nil {
				return fmt.Errorf("smtp: %w", err)
			}
			fmt.Fprintf(out, "smtp %s:%d ok\n", conf.EmailConfig.Host, conf.EmailConfig.Port)

			provider, err := sms.Resolve(conf.SmsConfig.Channel, conf.SmsConfig)
			if err != nil {
				return fmt.Errorf("sms: %w", err)
			}
			fmt.Fprintf(out, "sms channel %s ok\n", provider.Name())
			return nil
		},
	}
}
