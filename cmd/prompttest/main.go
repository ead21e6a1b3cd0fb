package main

// Inspect the advice pipeline from the command line:
//   go run ./cmd/prompttest prompt --home home.json
//   go run ./cmd/prompttest advise --home home.json --provider ollama

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"energy-advisor/internal/advice"
	"energy-advisor/internal/bootstrap"
	"energy-advisor/internal/homes"
	"energy-advisor/internal/shared/config"
	"energy-advisor/internal/shared/telemetry"
)

func main() {
	if err := newRootCmd(config.Load()).Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd(cfg config.Config) *cobra.Command {
	root := &cobra.Command{
		Use:           "prompttest",
		Short:         "Render energy advice prompts and run live advice streams",
		SilenceUsage:  true,
	}
	root.AddCommand(newPromptCmd(), newAdviseCmd(cfg))
	return root
}

func newPromptCmd() *cobra.Command {
	var homePath, at string
	cmd := &cobra.Command{
		Use:   "prompt",
		Short: "Print the prompt built for a home profile",
		RunE: func(cmd *cobra.Command, args []string) error {
			now, err := referenceTime(at)
			if err != nil {
				return err
			}
			home, err := loadHome(cmd.Context(), homePath, now)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), advice.BuildPrompt(home, now))
			return err
		},
	}
	cmd.Flags().StringVar(&homePath, "home", "", "Path to a home profile JSON file")
	cmd.Flags().StringVar(&at, "at", "", "Reference date (YYYY-MM-DD); defaults to today")
	_ = cmd.MarkFlagRequired("home")
	return cmd
}

func newAdviseCmd(cfg config.Config) *cobra.Command {
	var homePath string
	cmd := &cobra.Command{
		Use:   "advise",
		Short: "Stream recommendations for a home profile and print each event as JSON",
		RunE: func(cmd *cobra.Command, args []string) error {
			telemetry.Init(cfg.LogLevel, "console")
			defer telemetry.Sync()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()

			home, err := loadHome(ctx, homePath, time.Now())
			if err != nil {
				return err
			}
			generator, model, err := bootstrap.NewGenerator(ctx, cfg)
			if err != nil {
				return err
			}
			streamer := &advice.Streamer{
				Generator: generator,
				Model:     model,
				Timeout:   cfg.LLMTimeout,
			}
			return streamer.Stream(ctx, home, printEvents(cmd.OutOrStdout()))
		},
	}
	cmd.Flags().StringVar(&homePath, "home", "", "Path to a home profile JSON file")
	cmd.Flags().StringVar(&cfg.LLMProvider, "provider", cfg.LLMProvider, "Generation backend (ollama or gemini)")
	cmd.Flags().StringVar(&cfg.OllamaModel, "ollama-model", cfg.OllamaModel, "Ollama model")
	cmd.Flags().StringVar(&cfg.GeminiModel, "gemini-model", cfg.GeminiModel, "Gemini model")
	cmd.Flags().DurationVar(&cfg.LLMTimeout, "timeout", cfg.LLMTimeout, "Backend timeout")
	_ = cmd.MarkFlagRequired("home")
	return cmd
}

// loadHome validates the file the same way POST /homes does.
func loadHome(ctx context.Context, path string, now time.Time) (homes.Home, error) {
	body, err := os.ReadFile(path)
	if err != nil {
		return homes.Home{}, fmt.Errorf("read home: %w", err)
	}
	svc := &homes.Service{
		Repo: homes.NewMemoryRepo(),
		Now:  func() time.Time { return now },
	}
	return svc.CreateFromJSON(ctx, body)
}

func referenceTime(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Now(), nil
	}
	t, err := time.Parse(time.DateOnly, raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid --at date: %w", err)
	}
	return t, nil
}

func printEvents(w io.Writer) advice.EmitFunc {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return func(ev advice.Event) error {
		return enc.Encode(ev)
	}
}
