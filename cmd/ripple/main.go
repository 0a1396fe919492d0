package main

import (
	"bufio"
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"ripple/internal/chat"
	"ripple/internal/config"
	"ripple/internal/llm"
	"ripple/internal/orchestrator"
	"ripple/internal/tools"

	"github.com/spf13/cobra"
)

const consoleChannelID = "console"

func main() {
	if err := execute(); err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "ripple: %v\n", err)
		os.Exit(1)
	}
}

func execute() error {
	return newRootCmd().Execute()
}

func newRootCmd() *cobra.Command {
	var configPath string
	var verbose bool

	cmd := &cobra.Command{
		Use:   "ripple",
		Short: "ripple streams AI responses into a chat channel",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(config.LoadOptions{Path: strings.TrimSpace(configPath)})
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}

			logger := newLogger(verbose)

			provider, settings, err := buildProviderFromConfig(cfg)
			if err != nil {
				return fmt.Errorf("build provider: %w", err)
			}
			registry, err := buildToolRegistry(cfg)
			if err != nil {
				return fmt.Errorf("build tool registry: %w", err)
			}
			agentSettings, err := cfg.AgentSettings()
			if err != nil {
				return fmt.Errorf("resolve agent settings: %w", err)
			}

			console, err := chat.NewConsole(cmd.OutOrStdout(), logger)
			if err != nil {
				return fmt.Errorf("create console transport: %w", err)
			}

			orch, err := orchestrator.New(orchestrator.Config{
				ChannelID:      consoleChannelID,
				Provider:       provider,
				Transport:      console,
				Registry:       registry,
				Model:          settings.Model,
				SystemPrompt:   agentSettings.SystemPrompt,
				MaxTokens:      agentSettings.MaxTokens,
				CommitInterval: agentSettings.CommitInterval,
				MaxToolRounds:  agentSettings.MaxToolRounds,
				Logger:         logger,
			})
			if err != nil {
				return fmt.Errorf("create orchestrator: %w", err)
			}
			defer orch.Close()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			return runConsoleLoop(ctx, cmd, orch, console, logger)
		},
	}

	cmd.Flags().StringVar(&configPath, "config", "", "Path to config file")
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")
	return cmd
}

// runConsoleLoop reads stdin lines as inbound user messages until EOF or
// interrupt. "/stop" cancels the most recent response; "/quit" exits.
func runConsoleLoop(
	ctx context.Context,
	cmd *cobra.Command,
	orch *orchestrator.Orchestrator,
	console *chat.Console,
	logger *slog.Logger,
) error {
	lines := make(chan string)
	scanner := bufio.NewScanner(cmd.InOrStdin())
	go func() {
		defer close(lines)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case line, ok := <-lines:
			if !ok {
				return scanner.Err()
			}

			text := strings.TrimSpace(line)
			switch {
			case text == "":
				continue
			case text == "/quit":
				return nil
			case text == "/stop":
				orch.HandleStop(chat.StopRequest{MessageID: console.LastMessageID()})
			default:
				if err := orch.HandleInbound(ctx, chat.InboundMessage{
					ChannelID: consoleChannelID,
					Text:      text,
				}); err != nil {
					logger.Error("inbound message rejected", "error", err)
				}
			}
		}
	}
}

func newLogger(verbose bool) *slog.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

func buildProviderFromConfig(cfg config.Config) (llm.Provider, config.AnthropicSettings, error) {
	settings, err := cfg.AnthropicSettings()
	if err != nil {
		return nil, config.AnthropicSettings{}, fmt.Errorf("resolve anthropic settings: %w", err)
	}
	if settings.APIKey == "" {
		return nil, config.AnthropicSettings{}, llm.ErrMissingAPIKey
	}

	provider := llm.NewAnthropicProvider(llm.AnthropicConfig{
		APIKey:  settings.APIKey,
		BaseURL: settings.BaseURL,
		Version: settings.Version,
		Retry: llm.RetryPolicy{
			MaxRetries: settings.Retry.MaxRetries,
			BaseDelay:  settings.Retry.BaseDelay,
			MaxDelay:   settings.Retry.MaxDelay,
		},
	})
	return provider, settings, nil
}

func buildToolRegistry(cfg config.Config) (*tools.Registry, error) {
	search, err := tools.NewWebSearch(tools.WebSearchConfig{
		APIKey:     cfg.Search.APIKey,
		BaseURL:    cfg.Search.BaseURL,
		MaxResults: cfg.Search.MaxResults,
	})
	if err != nil {
		return nil, fmt.Errorf("create web_search: %w", err)
	}

	registry := tools.NewRegistry()
	if err := registry.Register(search); err != nil {
		return nil, fmt.Errorf("register %s: %w", search.Name(), err)
	}
	return registry, nil
}
