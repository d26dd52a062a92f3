package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/naviable/naviable-go/internal/app"
	"github.com/naviable/naviable-go/internal/config"
	"github.com/naviable/naviable-go/internal/logger"
	"github.com/naviable/naviable-go/internal/router"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "naviable",
	Short: "NaviAble - accessible travel planning assistant",
	Long: `NaviAble routes traveler messages to flight, lodging and general chat
assistants and answers with one markdown travel plan.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if cfgFile != "" {
			return os.Setenv("CONFIG_PATH", cfgFile)
		}
		return nil
	},
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the chat HTTP API",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		a, err := app.New(ctx, cfg)
		if err != nil {
			return err
		}
		defer a.Close()

		return a.Server().ListenAndServe(ctx)
	},
}

var askCmd = &cobra.Command{
	Use:   "ask [message]",
	Short: "Answer one message through the full assistant and print the markdown",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		// Keep stdout for the answer.
		logger.L = logger.New(os.Stderr)

		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		a, err := app.New(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		defer a.Close()

		reply, err := a.Chats.HandleMessage(cmd.Context(), nil, strings.Join(args, " "))
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), reply.Markdown)
		return nil
	},
}

var classifyCmd = &cobra.Command{
	Use:   "classify [message]",
	Short: "Print the capability the keyword classifier picks for a message",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		fmt.Fprintln(cmd.OutOrStdout(), router.Classify(strings.Join(args, " ")))
		return nil
	},
}

func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.Load(cmd.Flags())
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	logger.SetLevel(cfg.LogLevel)
	return cfg, nil
}

func main() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default ./config.yaml)")
	rootCmd.PersistentFlags().String("log-level", "", "log level: debug, info, warn, error")
	rootCmd.PersistentFlags().String("model", "", "LLM model name")
	rootCmd.PersistentFlags().String("mode", "", "routing mode: llm or keyword")
	rootCmd.PersistentFlags().String("db", "", "path of the sqlite conversation store")

	serveCmd.Flags().String("host", "", "listen host")
	serveCmd.Flags().String("port", "", "listen port")

	rootCmd.AddCommand(serveCmd, askCmd, classifyCmd)

	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		logger.L.Error("command failed", "error", err)
		os.Exit(1)
	}
}
