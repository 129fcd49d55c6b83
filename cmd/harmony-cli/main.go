// Command harmony-cli is an interactive console for gpt-oss models served
// from a local chat-completions endpoint.
package main

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"os/signal"

	"github.com/charmbracelet/glamour"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	harmony "github.com/buchuleaf/harmony-cli"
	"github.com/buchuleaf/harmony-cli/internal/config"
	"github.com/buchuleaf/harmony-cli/internal/logging"
	"github.com/buchuleaf/harmony-cli/internal/tokens"
	"github.com/buchuleaf/harmony-cli/prompt"
	"github.com/buchuleaf/harmony-cli/providers/anthropic"
	"github.com/buchuleaf/harmony-cli/providers/chatcompletion"
	"github.com/buchuleaf/harmony-cli/tools"
)

type cliOptions struct {
	apiURL     string
	model      string
	provider   string
	root       string
	configPath string
	verbose    bool
	dev        bool
	debugFile  string
	python     string
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var opts cliOptions
	cmd := &cobra.Command{
		Use:          "harmony-cli",
		Short:        "Chat with a local gpt-oss model that can run code and edit files",
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, opts)
		},
	}
	f := cmd.Flags()
	f.StringVar(&opts.apiURL, "api-url", "", "chat endpoint URL (env HARMONY_CLI_API_URL)")
	f.StringVar(&opts.model, "model", "", "model name sent to the endpoint")
	f.StringVar(&opts.provider, "provider", "", "wire protocol: chatcompletion or anthropic")
	f.StringVar(&opts.root, "root", "", "working directory for tools (env HARMONY_CLI_ROOT)")
	f.StringVar(&opts.configPath, "config", "", "config file (default $HARMONY_CLI_HOME/config.yaml)")
	f.BoolVarP(&opts.verbose, "verbose", "v", false, "debug logging")
	f.BoolVar(&opts.dev, "dev", false, "human-readable log format")
	f.StringVar(&opts.debugFile, "debug-file", "", "write raw provider traffic as JSONL")
	f.StringVar(&opts.python, "python", "", "python interpreter for the python tool")
	return cmd
}

func loadConfig(cmd *cobra.Command, opts cliOptions) (*config.Config, error) {
	cfg, err := config.Load(opts.configPath, opts.configPath != "", os.Getenv)
	if err != nil {
		return nil, err
	}
	flags := cmd.Flags()
	overrides := []struct {
		name string
		dst  *string
		val  string
	}{
		{"api-url", &cfg.APIURL, opts.apiURL},
		{"model", &cfg.Model, opts.model},
		{"provider", &cfg.Provider, opts.provider},
		{"root", &cfg.Root, opts.root},
		{"debug-file", &cfg.DebugFile, opts.debugFile},
		{"python", &cfg.PythonBin, opts.python},
	}
	for _, o := range overrides {
		if flags.Changed(o.name) {
			*o.dst = o.val
		}
	}
	if opts.verbose {
		cfg.LogLevel = "debug"
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func newProvider(cfg *config.Config, logger *zap.Logger) harmony.Provider {
	if cfg.Provider == config.ProviderAnthropic {
		opts := []anthropic.Option{
			anthropic.WithAPIURL(cfg.APIURL),
			anthropic.WithDebug(cfg.DebugFile),
			anthropic.WithLogger(logger),
		}
		if cfg.APIKey != "" {
			opts = append(opts, anthropic.WithAPIKey(cfg.APIKey))
		}
		if cfg.MaxOutputTokens > 0 {
			opts = append(opts, anthropic.WithMaxOutputTokens(cfg.MaxOutputTokens))
		}
		if cfg.Temperature != nil {
			opts = append(opts, anthropic.WithTemperature(*cfg.Temperature))
		}
		return anthropic.New(cfg.Model, opts...)
	}

	opts := []chatcompletion.Option{
		chatcompletion.WithAPIURL(cfg.APIURL),
		chatcompletion.WithDebug(cfg.DebugFile),
		chatcompletion.WithLogger(logger),
	}
	if cfg.APIKey != "" {
		opts = append(opts, chatcompletion.WithAPIKey(cfg.APIKey))
	}
	if cfg.MaxOutputTokens > 0 {
		opts = append(opts, chatcompletion.WithMaxOutputTokens(cfg.MaxOutputTokens))
	}
	if cfg.Temperature != nil {
		opts = append(opts, chatcompletion.WithTemperature(*cfg.Temperature))
	}
	return chatcompletion.New(cfg.Model, opts...)
}

func run(cmd *cobra.Command, opts cliOptions) error {
	cfg, err := loadConfig(cmd, opts)
	if err != nil {
		return err
	}
	log, err := logging.New(logging.Options{Level: cfg.LogLevel, Path: cfg.LogPath(), Dev: opts.dev})
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()
	logger := log.Logger
	logger.Info("starting",
		zap.String("provider", cfg.Provider),
		zap.String("api_url", cfg.APIURL),
		zap.String("model", cfg.Model),
		zap.String("root", cfg.Root))

	toolCfg := tools.Config{
		Root:           cfg.Root,
		PythonBin:      cfg.PythonBin,
		Shell:          cfg.Shell,
		DefaultTimeout: cfg.ToolTimeoutDuration(),
		Budgets:        cfg.Budgets,
		Logger:         logger.Named("tools"),
	}
	if _, err := tools.FindPython(cfg.PythonBin); err != nil {
		logger.Warn("python tool will fail", zap.Error(err))
	}
	executor, err := harmony.NewToolExecutor(tools.Builtins(toolCfg),
		harmony.WithExecutorLogger(logger.Named("executor")),
		harmony.WithBudgets(cfg.Budgets))
	if err != nil {
		return err
	}

	est := tokens.New(logger.Named("tokens"))
	go func() { _ = est.Load(tokens.DefaultEncoding) }()

	md, err := glamour.NewTermRenderer(glamour.WithAutoStyle(), glamour.WithWordWrap(100))
	if err != nil {
		return fmt.Errorf("markdown renderer: %w", err)
	}

	sess := newSession(sessionConfig{
		Provider:  newProvider(cfg, logger.Named("provider")),
		Executor:  executor,
		Model:     cfg.Model,
		Prompt:    prompt.Options{KnowledgeCutoff: cfg.KnowledgeCutoff, Reasoning: cfg.Reasoning},
		Root:      cfg.Root,
		ExportDir: cfg.TranscriptsDir(),
		Out:       cmd.OutOrStdout(),
		Markdown:  md,
		Tokens:    est,
		Logger:    logger,
	})

	interrupts := make(chan os.Signal, 1)
	signal.Notify(interrupts, os.Interrupt)
	defer signal.Stop(interrupts)

	return sess.Run(cmd.Context(), readLines(cmd.InOrStdin()), interrupts)
}

// readLines feeds input lines to the REPL; the channel closes at EOF.
func readLines(r io.Reader) <-chan string {
	lines := make(chan string)
	go func() {
		defer close(lines)
		sc := bufio.NewScanner(r)
		sc.Buffer(make([]byte, 64*1024), 4*1024*1024)
		for sc.Scan() {
			lines <- sc.Text()
		}
	}()
	return lines
}
