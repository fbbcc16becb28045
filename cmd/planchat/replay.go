package main

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/nachoal/planchat-go/history"
	"github.com/nachoal/planchat-go/session"
	"github.com/nachoal/planchat-go/transport"
)

var (
	replayJSON   bool
	replayDelay  time.Duration
	replayStrict bool
	replayPrompt string

	replayCmd = &cobra.Command{
		Use:   "replay <file.jsonl>",
		Short: "Feed a recorded frame log through a session and print the transcript",
		Args:  cobra.ExactArgs(1),
		RunE:  runReplay,
	}
)

func init() {
	replayCmd.Flags().BoolVar(&replayJSON, "json", false, "Print the transcript as JSON")
	replayCmd.Flags().DurationVar(&replayDelay, "delay", 0, "Sleep between frames")
	replayCmd.Flags().BoolVar(&replayStrict, "strict", false, "Stop at the first invalid frame")
	replayCmd.Flags().StringVar(&replayPrompt, "prompt", "", "User message to open the first turn when the log has none")
}

func runReplay(cmd *cobra.Command, args []string) error {
	_, log, closeLog, err := setup(false)
	if err != nil {
		return err
	}
	defer closeLog()

	f, err := os.Open(args[0])
	if err != nil {
		return fmt.Errorf("failed to open replay file: %w", err)
	}
	defer f.Close()

	sess := session.New(history.NewSessionID(), session.WithLogger(log))

	// Recorded message frames reopen their turn under the recorded id so the
	// tagged reply frames that follow still match it. A --prompt turn has no
	// recorded id, so frames are applied to whatever turn is open.
	var h transport.Handler = sess
	if replayPrompt != "" {
		if _, err := sess.Submit(replayPrompt); err != nil {
			return err
		}
		h = transport.Untagged(sess)
	}

	onMessage := func(frame transport.Frame) {
		if _, err := sess.SubmitTurn(frame.TurnID, frame.Content); err != nil {
			log.Warn().Err(err).Str("content", frame.Content).Msg("Skipping user message")
		}
	}

	n, err := transport.Replay(cmd.Context(), f, h, onMessage, transport.ReplayOptions{
		Delay:  replayDelay,
		Logger: log,
		Strict: replayStrict,
	})
	if err != nil {
		return fmt.Errorf("replay stopped after %d frames: %w", n, err)
	}
	log.Debug().
		Int("frames", n).
		Int64("anomalies", sess.Anomalies()).
		Int64("stale", sess.Stale()).
		Msg("Replay finished")

	out := cmd.OutOrStdout()
	if replayJSON {
		t := history.NewTranscript(sess.ID(), "replay:"+args[0], sess.Title(), sess.Snapshot())
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(t)
	}

	printTranscript(out, sess.Snapshot())
	if msg := sess.LastError(); msg != "" {
		fmt.Fprintf(cmd.ErrOrStderr(), "❌ %s\n", msg)
	}
	return nil
}
