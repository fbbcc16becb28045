package main

import (
	"errors"
	"fmt"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/nachoal/planchat-go/config"
	"github.com/nachoal/planchat-go/conversation"
	"github.com/nachoal/planchat-go/history"
	"github.com/nachoal/planchat-go/internal/logging"
	"github.com/nachoal/planchat-go/session"
	"github.com/nachoal/planchat-go/transport/ws"
	"github.com/nachoal/planchat-go/tui"
)

// Passing --resume with no value opens the picker
const pickSession = "?"

var (
	// Flags
	verbose      bool
	continueConv bool
	resume       string

	// Root command
	rootCmd = &cobra.Command{
		Use:           "planchat",
		Short:         "Streaming planning chat",
		Long:          "planchat - a terminal client for a streaming planning assistant",
		RunE:          runTUI,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
)

func init() {
	// Global flags
	rootCmd.PersistentFlags().String("backend", "", "Backend WebSocket URL (ws:// or wss://)")
	rootCmd.PersistentFlags().String("config", "", "Config file (default ~/.planchat/config.yaml)")
	rootCmd.PersistentFlags().String("log-level", "", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")

	// TUI-specific flags
	rootCmd.Flags().BoolVarP(&continueConv, "continue", "c", false, "Continue the last conversation")
	rootCmd.Flags().StringVarP(&resume, "resume", "r", "", "Resume a saved session by id, or pick one if no id is given")
	rootCmd.Flags().Lookup("resume").NoOptDefVal = pickSession

	// Bind flags to viper
	viper.BindPFlag(config.KeyBackendURL, rootCmd.PersistentFlags().Lookup("backend"))
	viper.BindPFlag(config.KeyConfigFile, rootCmd.PersistentFlags().Lookup("config"))
	viper.BindPFlag(config.KeyLogLevel, rootCmd.PersistentFlags().Lookup("log-level"))

	rootCmd.AddCommand(askCmd, replayCmd, sessionsCmd, serveMockCmd)
}

func main() {
	// Load .env file if it exists
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "Warning: Error loading .env file: %v\n", err)
	}

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// setup loads the configuration and builds the logger. The TUI logs to a
// file since stderr belongs to the screen.
func setup(toFile bool) (*config.Config, zerolog.Logger, func(), error) {
	if verbose {
		viper.Set(config.KeyLogLevel, "debug")
	}

	cfg, err := config.Load(viper.GetViper())
	if err != nil {
		return nil, zerolog.Nop(), nil, err
	}

	logCfg := logging.Config{
		Level:  cfg.Log.Level,
		Pretty: cfg.Log.Pretty,
		Output: os.Stderr,
	}
	closeLog := func() {}
	if toFile {
		f, err := logging.OpenFile(cfg.Log.File)
		if err != nil {
			return nil, zerolog.Nop(), nil, err
		}
		logCfg.Output = f
		logCfg.Pretty = false
		closeLog = func() { f.Close() }
	}

	return cfg, logging.New(logCfg), closeLog, nil
}

func openStore(cfg *config.Config) (history.Store, error) {
	store, err := history.Open(cfg.History.Backend, cfg.History.Dir)
	if err != nil {
		return nil, fmt.Errorf("failed to open history: %w", err)
	}
	return store, nil
}

func dialOptions(cfg *config.Config, log zerolog.Logger) ws.Options {
	return ws.Options{
		DialTimeout:  cfg.Backend.DialTimeout,
		PingInterval: cfg.Backend.PingInterval,
		Logger:       log,
	}
}

func runTUI(cmd *cobra.Command, args []string) error {
	cfg, log, closeLog, err := setup(true)
	if err != nil {
		return err
	}
	defer closeLog()

	store, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	id, seed, err := pickTranscript(store)
	if err != nil {
		return err
	}

	sess := session.New(id, session.WithLogger(log), session.WithMessages(seed))
	router := tui.NewRouter(sess)

	ctx := cmd.Context()
	client, err := ws.Dial(ctx, cfg.Backend.URL, dialOptions(cfg, log))
	if err != nil {
		return err
	}
	defer client.Close()

	go func() {
		if err := client.Listen(ctx, router); err != nil {
			log.Error().Err(err).Msg("Backend connection lost")
			router.OnError("", err.Error())
		}
	}()

	chat := tui.NewChat(ctx, router, tui.Options{
		Sender:      client,
		Store:       store,
		Backend:     cfg.Backend.URL,
		Suggestions: cfg.Suggestions,
		Logger:      log,
	})
	p := tea.NewProgram(chat, tea.WithAltScreen(), tea.WithMouseCellMotion())
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("error running TUI: %w", err)
	}
	return nil
}

// pickTranscript resolves --continue and --resume into the id and
// messages of the session to open.
func pickTranscript(store history.Store) (string, []*conversation.Message, error) {
	switch {
	case continueConv:
		t, err := store.Last()
		if errors.Is(err, history.ErrNotFound) {
			return history.NewSessionID(), nil, nil
		}
		if err != nil {
			return "", nil, err
		}
		return t.ID, t.Conversation(), nil

	case resume == pickSession:
		infos, err := store.List()
		if err != nil {
			return "", nil, err
		}
		picker := tui.NewSessionPicker(infos)
		if _, err := tea.NewProgram(picker).Run(); err != nil {
			return "", nil, fmt.Errorf("error running session picker: %w", err)
		}
		if picker.SelectedID == "" {
			return history.NewSessionID(), nil, nil
		}
		resume = picker.SelectedID
		return pickTranscript(store)

	case resume != "":
		t, err := store.Load(resume)
		if err != nil {
			return "", nil, err
		}
		return t.ID, t.Conversation(), nil
	}
	return history.NewSessionID(), nil, nil
}
