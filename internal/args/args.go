package args

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/cli/go-gh/v2/pkg/term"
	"github.com/markis/gh-scriptai/internal/config"
	"github.com/spf13/cobra"
)

// Actions selected by the command line.
const (
	ActionAsk    = "ask"
	ActionModels = "models"
	ActionReplay = "replay"
)

// Arguments represents the command-line arguments structure.
type Arguments struct {
	Action       string
	Prompts      []string
	Command      string
	Model        string
	Provider     string
	Endpoint     string
	MetricsAddr  string
	UsePlainText bool
	ReplayPath   string
	ChunkSize    int
}

// Terminal reports properties of the output terminal.
type Terminal interface {
	IsTerminalOutput() bool
	IsColorEnabled() bool
}

// Input is what ParseArgs reads besides the configuration.
// Stdin is nil when nothing was piped in.
type Input struct {
	Args     []string
	Stdin    io.Reader
	Terminal Terminal
	Out      io.Writer
}

// ParseArgs parses command-line arguments and piped input. An empty Action
// means cobra already handled the invocation, for example by printing help.
func ParseArgs(ctx context.Context, cfg config.Config, in Input) (Arguments, error) {
	if in.Terminal == nil {
		in.Terminal = term.FromEnv()
	}
	args := Arguments{}

	rootCmd := &cobra.Command{
		Use:   "gh-scriptai [command] [flags] [prompt]",
		Short: "Stream answers from reasoning models, with think blocks and memes split out",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, cmdArgs []string) error {
			args.Action = ActionAsk
			if len(cmdArgs) > 0 {
				args.Prompts = append(args.Prompts, cmdArgs[0])
			}
			return nil
		},
		SilenceErrors: true,
		SilenceUsage:  true,
	}
	// a nil slice would make cobra fall back to os.Args
	if in.Args == nil {
		in.Args = []string{}
	}
	rootCmd.SetArgs(in.Args)
	if in.Out != nil {
		rootCmd.SetOut(in.Out)
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&args.Model, "model", cfg.Model, "The AI model to use")
	flags.StringVar(&args.Provider, "provider", cfg.Provider, "Model provider: ollama, chiven or copilot")
	flags.StringVar(&args.Endpoint, "endpoint", cfg.Endpoint, "Override the provider API endpoint")
	flags.StringVar(&args.MetricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address")
	flags.BoolVar(&args.UsePlainText, "plain", shouldUsePlainText(cfg, in.Terminal), "Disable markdown rendering")

	rootCmd.AddCommand(&cobra.Command{
		Use:   "models",
		Short: "List the models the provider serves",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, cmdArgs []string) error {
			args.Action = ActionModels
			return nil
		},
	})

	replayCmd := &cobra.Command{
		Use:   "replay [file]",
		Short: "Run a saved model transcript through the stream parser",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, cmdArgs []string) error {
			args.Action = ActionReplay
			if len(cmdArgs) > 0 {
				args.ReplayPath = cmdArgs[0]
			}
			if args.ChunkSize < 1 {
				return fmt.Errorf("chunk size must be positive, got %d", args.ChunkSize)
			}
			return nil
		},
	}
	replayCmd.Flags().IntVar(&args.ChunkSize, "chunk-size", 16, "Bytes fed to the parser per chunk")
	rootCmd.AddCommand(replayCmd)

	for name, prompt := range cfg.Prompts {
		if name == ActionModels || name == ActionReplay {
			continue
		}
		cmd := &cobra.Command{
			Use:   name + " [input]",
			Short: summarizePrompt(prompt.Prompt),
			Args:  cobra.MaximumNArgs(1),
			RunE: func(cmd *cobra.Command, cmdArgs []string) error {
				args.Action = ActionAsk
				args.Command = name
				if len(cmdArgs) > 0 {
					args.Prompts = append(args.Prompts, cmdArgs[0])
				}
				args.Prompts = append(args.Prompts, prompt.Prompt)
				if prompt.Model != "" && !cmd.Flags().Changed("model") {
					args.Model = prompt.Model
				}
				return nil
			},
		}
		rootCmd.AddCommand(cmd)
	}

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		return Arguments{}, err
	}

	if args.Action != ActionAsk {
		return args, nil
	}

	if in.Stdin != nil {
		prompt, err := readStdin(in.Stdin)
		if err != nil {
			return Arguments{}, err
		}
		if prompt != "" {
			args.Prompts = append(args.Prompts, prompt)
		}
	}

	if len(args.Prompts) == 0 {
		return Arguments{}, errors.New("no prompt provided")
	}

	return args, nil
}

// Prompt joins every prompt part into one user message.
func (a Arguments) Prompt() string {
	return strings.Join(a.Prompts, "\n\n")
}

// PipedStdin returns os.Stdin when it is not a terminal, nil otherwise.
func PipedStdin() io.Reader {
	if stat, err := os.Stdin.Stat(); err == nil && (stat.Mode()&os.ModeCharDevice) == 0 {
		return os.Stdin
	}
	return nil
}

func readStdin(r io.Reader) (string, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024) // 1MB max buffer
	var buf strings.Builder
	for scanner.Scan() {
		buf.WriteString(scanner.Text())
		buf.WriteByte('\n')
	}
	if err := scanner.Err(); err != nil {
		return "", fmt.Errorf("failed to read stdin: %w", err)
	}
	return strings.TrimSpace(buf.String()), nil
}

// shouldUsePlainText determines if plain text output should be used based on environment and terminal settings.
func shouldUsePlainText(cfg config.Config, t Terminal) bool {
	if cfg.Render.Format == "plain" {
		return true
	}

	// Output is being redirected
	if !t.IsTerminalOutput() {
		return true
	}

	// NO_COLOR and CLICOLOR=0 disable styling
	if !t.IsColorEnabled() {
		return true
	}

	return os.Getenv("TERM") == "dumb"
}

func summarizePrompt(prompt string) string {
	summary := strings.TrimSpace(prompt)
	if len(summary) > 60 {
		summary = summary[:57] + "..."
	}
	return summary
}
