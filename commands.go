package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"blockstream/config"
	"blockstream/highlight"
	"blockstream/logger"
	"blockstream/parser"
	"blockstream/plaintext"
	"blockstream/render"
	"blockstream/server"
	"blockstream/types"
)

// setup loads configuration and sizes the shared caches
func setup(flags globalFlags) (*config.Config, *logger.ObservabilityLogger, error) {
	cfg, err := config.LoadConfigFromFile(flags.envFile)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load config: %w", err)
	}
	if flags.logLevel != "" {
		cfg.LogLevel = flags.logLevel
	}

	log, err := logger.NewObservabilityLogger(logger.Options{Dir: cfg.LogDir, Level: cfg.LogLevel})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	if err := parser.SetLanguageCacheSize(cfg.CacheSize); err != nil {
		return nil, nil, err
	}
	if err := plaintext.SetCacheSize(cfg.CacheSize); err != nil {
		return nil, nil, err
	}
	return cfg, log, nil
}

func newServeCmd(flags *globalFlags) *cobra.Command {
	var port string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP service",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd, *flags, port)
		},
	}
	cmd.Flags().StringVar(&port, "port", "", "Override PORT")
	return cmd
}

func runServe(cmd *cobra.Command, flags globalFlags, port string) error {
	cfg, log, err := setup(flags)
	if err != nil {
		return err
	}
	defer log.Close()
	if port != "" {
		cfg.Port = port
	}

	log.Info(logger.ComponentConfig, logger.CategoryRequest, "", "Blockstream configuration loaded", map[string]interface{}{
		"port":            cfg.Port,
		"separator_width": cfg.SeparatorWidth,
		"cache_size":      cfg.CacheSize,
		"session_ttl":     cfg.SessionTTL.String(),
		"dev_mode":        cfg.DevMode,
		"speech":          len(cfg.SpeechCommand) > 0,
		"colors":          len(cfg.Colors),
		"version":         Version,
		"git_commit":      currentBuild().Commit,
	})

	srv, err := server.New(cfg, log, Version)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := srv.ListenAndServe(ctx); err != nil {
		log.Error(logger.ComponentServer, logger.CategoryError, "", "Server failed", map[string]interface{}{
			"error": err.Error(),
		})
		return err
	}
	return nil
}

type parseOutput struct {
	Blocks   types.Blocks     `json:"blocks"`
	Metadata []types.Metadata `json:"metadata,omitempty"`
	Length   int              `json:"length"`
}

func newParseCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "parse <file>",
		Short: "Parse a complete message and print its blocks as JSON",
		Long:  "Parse a complete message and print its blocks as JSON. Use - to read standard input.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := setup(*flags)
			if err != nil {
				return err
			}
			defer log.Close()

			text, err := readInput(cmd, args[0])
			if err != nil {
				return err
			}
			blocks := parser.Parse(text)
			return printJSON(cmd.OutOrStdout(), parseOutput{
				Blocks:   blocks,
				Metadata: parser.ExtractMetadata(text),
				Length:   highlight.AssignSpans(blocks, cfg.SeparatorWidth),
			})
		},
	}
}

func newReplayCmd(flags *globalFlags) *cobra.Command {
	var chunk int
	cmd := &cobra.Command{
		Use:   "replay <file>",
		Short: "Feed a message through a streaming session and print every snapshot",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if chunk <= 0 {
				return fmt.Errorf("--chunk must be positive, got %d", chunk)
			}
			cfg, log, err := setup(*flags)
			if err != nil {
				return err
			}
			defer log.Close()

			text, err := readInput(cmd, args[0])
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			session := parser.NewSession(log, "replay")
			runes := []rune(text)
			for i, n := 0, 0; i < len(runes); i, n = i+chunk, n+1 {
				end := min(i+chunk, len(runes))
				delta := string(runes[i:end])
				res := session.Feed(delta)

				snapshot, err := json.Marshal(res)
				if err != nil {
					return err
				}
				states, err := json.Marshal(stateNames(session.States()))
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "%d\t%q\t%s\t%s\n", n, delta, states, snapshot)
			}

			blocks := session.Finish()
			return printJSON(out, parseOutput{
				Blocks:   blocks,
				Metadata: session.Metadata(),
				Length:   highlight.AssignSpans(blocks, cfg.SeparatorWidth),
			})
		},
	}
	cmd.Flags().IntVar(&chunk, "chunk", 8, "Runes per streamed delta")
	return cmd
}

func newRenderCmd(flags *globalFlags) *cobra.Command {
	var highlightsFile string
	cmd := &cobra.Command{
		Use:   "render <file>",
		Short: "Render a message as HTML with its stored highlights",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := setup(*flags)
			if err != nil {
				return err
			}
			defer log.Close()

			text, err := readInput(cmd, args[0])
			if err != nil {
				return err
			}
			var records []types.HighlightRecord
			if highlightsFile != "" {
				data, err := os.ReadFile(highlightsFile)
				if err != nil {
					return fmt.Errorf("failed to read highlights: %w", err)
				}
				if err := json.Unmarshal(data, &records); err != nil {
					return fmt.Errorf("failed to decode highlights: %w", err)
				}
			}

			engine, err := highlight.NewEngine(highlight.Options{
				SeparatorWidth: cfg.SeparatorWidth,
				DedupePrefix:   cfg.DedupePrefixLength,
				Labels:         cfg.SemanticLabels,
				Colors:         cfg.Colors,
				CacheSize:      cfg.CacheSize,
				DevMode:        cfg.DevMode,
				Log:            log,
			})
			if err != nil {
				return err
			}

			blocks := parser.Parse(text)
			opts := render.DefaultOptions()
			opts.SeparatorWidth = cfg.SeparatorWidth
			opts.Runs = highlight.Runs(engine.Resolve("render", blocks, records), len(blocks))

			_, err = fmt.Fprintln(cmd.OutOrStdout(), render.HTML(blocks, opts))
			return err
		},
	}
	cmd.Flags().StringVar(&highlightsFile, "highlights", "", "JSON file with stored highlight records")
	return cmd
}

func readInput(cmd *cobra.Command, path string) (string, error) {
	var data []byte
	var err error
	if path == "-" {
		data, err = io.ReadAll(cmd.InOrStdin())
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return "", fmt.Errorf("failed to read %s: %w", path, err)
	}
	return string(data), nil
}

func printJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func stateNames(states []parser.BlockState) []string {
	names := make([]string, len(states))
	for i, st := range states {
		names[i] = st.String()
	}
	return names
}
