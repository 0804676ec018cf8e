// sakina - empathetic chat assistant
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	core "github.com/webforspeed/sakina"
	"github.com/webforspeed/sakina/internal/config"
)

var (
	// Global flags
	verbose        bool
	envFile        string
	model          string
	baseURL        string
	saveDir        string
	maxIterations  int
	requestTimeout time.Duration
	repairJSON     bool
	failFast       bool
	transcriptPath string
	promptLogPath  string

	// Logger
	logger *zap.Logger
)

// rootCmd starts the interactive chat
var rootCmd = &cobra.Command{
	Use:   "sakina",
	Short: "Empathetic, faith-aware chat assistant",
	Long: `sakina is a conversational assistant for mental health support that is
sensitive to Muslim women's cultural and religious context.

Each reply acknowledges your feelings, validates them, offers brief
information and closes with a reflection question. Type "end chat" to leave.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := godotenv.Load(envFile); err != nil && cmd.Flags().Changed("env-file") {
			return fmt.Errorf("failed to load env file: %w", err)
		}

		// Initialize logger
		logCfg := zap.NewProductionConfig()
		if verbose {
			logCfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		} else {
			logCfg.Level = zap.NewAtomicLevelAt(zapcore.WarnLevel)
		}
		var err error
		logger, err = logCfg.Build()
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
	RunE: runChat,
}

// promptCmd prints the system prompt
var promptCmd = &cobra.Command{
	Use:   "prompt",
	Short: "Print the rendered system prompt and exit",
	Args:  cobra.NoArgs,
	RunE:  printPrompt,
}

// schemaCmd prints the reply schema
var schemaCmd = &cobra.Command{
	Use:   "schema",
	Short: "Print the JSON schema replies must follow",
	Args:  cobra.NoArgs,
	RunE:  printSchema,
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "Environment file to load")
	rootCmd.PersistentFlags().StringVar(&promptLogPath, "prompt-log", "", "Append rendered system prompts to this JSONL file")

	rootCmd.Flags().StringVar(&model, "model", "", "Model name (or set SAKINA_MODEL)")
	rootCmd.Flags().StringVar(&baseURL, "base-url", "", "API base URL (or set OPENAI_BASE_URL)")
	rootCmd.Flags().StringVar(&saveDir, "save-dir", "", "Directory the save tool writes to (or set SAKINA_SAVE_DIR)")
	rootCmd.Flags().IntVar(&maxIterations, "max-iterations", 0, "Model calls allowed per turn while tools run")
	rootCmd.Flags().DurationVar(&requestTimeout, "timeout", 0, "Per-request timeout, 0 for none")
	rootCmd.Flags().BoolVar(&repairJSON, "repair-json", false, "Repair malformed reply JSON before parsing")
	rootCmd.Flags().BoolVar(&failFast, "fail-fast", false, "Exit on model invocation errors")
	rootCmd.Flags().StringVar(&transcriptPath, "transcript", "", "Write the session history as YAML when the chat ends")

	rootCmd.AddCommand(promptCmd)
	rootCmd.AddCommand(schemaCmd)
}

func main() {
	// Ctrl-C cancels the in-flight model call and ends the chat
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		stop()
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// loadConfig merges environment configuration with explicit flags.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	flags := cmd.Flags()
	if flags.Changed("model") {
		cfg.Model = model
	}
	if flags.Changed("base-url") {
		cfg.BaseURL = baseURL
	}
	if flags.Changed("save-dir") {
		cfg.SaveDir = saveDir
	}
	if flags.Changed("max-iterations") {
		cfg.MaxIterations = maxIterations
	}
	if flags.Changed("timeout") {
		cfg.RequestTimeout = requestTimeout
	}
	if flags.Changed("repair-json") {
		cfg.RepairJSON = repairJSON
	}
	if flags.Changed("fail-fast") {
		cfg.FailFast = failFast
	}
	if flags.Changed("transcript") {
		cfg.TranscriptPath = transcriptPath
	}
	if flags.Changed("prompt-log") {
		cfg.PromptLogPath = promptLogPath
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func newAgent(cfg *config.Config) (*core.Agent, error) {
	agent, err := core.NewAgent(cfg.Core())
	if err != nil {
		return nil, err
	}
	agent.Logger = logger.Named("agent")
	return agent, nil
}

func runChat(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	agent, err := newAgent(cfg)
	if err != nil {
		return err
	}
	hint, err := agent.Hint()
	if err != nil {
		return err
	}

	session := core.NewSession()
	logger.Info("Starting chat",
		zap.String("session", session.ID),
		zap.String("model", cfg.Model),
		zap.String("save_dir", cfg.SaveDir))

	chat := core.NewChat(agent, cmd.OutOrStdout(), hint)
	chat.FailFast = cfg.FailFast
	chat.SetRepairJSON(cfg.RepairJSON)
	chat.Logger = logger.Named("chat")

	runErr := chat.Run(cmd.Context(), session, cmd.InOrStdin())

	if cfg.TranscriptPath != "" {
		if err := core.SaveTranscript(cfg.TranscriptPath, session); err != nil {
			logger.Error("Failed to save transcript", zap.String("path", cfg.TranscriptPath), zap.Error(err))
		} else {
			logger.Info("Transcript saved", zap.String("path", cfg.TranscriptPath))
		}
	}
	return runErr
}

func printPrompt(cmd *cobra.Command, args []string) error {
	promptCtx, err := core.DefaultPromptContext()
	if err != nil {
		return err
	}
	system, err := core.DefaultComposer(promptLogPath).Compose("", promptCtx)
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), system)
	return nil
}

func printSchema(cmd *cobra.Command, args []string) error {
	s, err := core.ReplySchema()
	if err != nil {
		return err
	}
	return writeJSON(cmd.OutOrStdout(), s)
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
