package main

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"
	"gwi.com/llm-chat-service/internal/auth"
	"gwi.com/llm-chat-service/internal/core"
)

var (
	memberEmail    string
	memberPassword string
	memberName     string
	memberRole     string
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create or update the database schema and exit",
	RunE: func(cmd *cobra.Command, args []string) error {
		dbStore, err := openStore()
		if err != nil {
			return err
		}
		defer dbStore.Close()
		slog.Info("Database schema is up to date", "driver", cfg.DatabaseDriver, "url", cfg.DatabaseURL)
		return nil
	},
}

var memberCmd = &cobra.Command{
	Use:   "member",
	Short: "Manage members",
}

var memberCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Register a member, e.g. the first admin",
	RunE: func(cmd *cobra.Command, args []string) error {
		members, closeStore, err := newMemberService()
		if err != nil {
			return err
		}
		defer closeStore()

		id, err := members.Register(cmd.Context(), memberEmail, memberPassword, memberName, memberRole)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "created member %d (%s, role %s)\n", id, memberEmail, memberRole)
		return nil
	},
}

var memberDeleteCmd = &cobra.Command{
	Use:   "delete",
	Short: "Delete a member and all of its chats",
	RunE: func(cmd *cobra.Command, args []string) error {
		members, closeStore, err := newMemberService()
		if err != nil {
			return err
		}
		defer closeStore()

		if err := members.Delete(cmd.Context(), memberEmail); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "deleted member %s\n", memberEmail)
		return nil
	},
}

func init() {
	memberCreateCmd.Flags().StringVar(&memberEmail, "email", "", "member email (required)")
	memberCreateCmd.Flags().StringVar(&memberPassword, "password", "", "member password (required)")
	memberCreateCmd.Flags().StringVar(&memberName, "name", "", "display name")
	memberCreateCmd.Flags().StringVar(&memberRole, "role", "user", `role, "admin" for administrators`)
	memberCreateCmd.MarkFlagRequired("email")
	memberCreateCmd.MarkFlagRequired("password")

	memberDeleteCmd.Flags().StringVar(&memberEmail, "email", "", "member email (required)")
	memberDeleteCmd.MarkFlagRequired("email")

	memberCmd.AddCommand(memberCreateCmd, memberDeleteCmd)
}

func newMemberService() (*core.MemberService, func(), error) {
	dbStore, err := openStore()
	if err != nil {
		return nil, nil, err
	}
	tokens := auth.NewTokenService([]byte(cfg.JWTSecret), cfg.JWTTTL)
	logs := core.NewLogService(dbStore, tokens, nil)
	closeStore := func() {
		if err := dbStore.Close(); err != nil {
			slog.Error("Failed to close database", "error", err)
		}
	}
	return core.NewMemberService(dbStore, tokens, logs, nil), closeStore, nil
}
