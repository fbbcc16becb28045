package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/nachoal/planchat-go/conversation"
	"github.com/nachoal/planchat-go/history"
	"github.com/nachoal/planchat-go/session"
	"github.com/nachoal/planchat-go/transport"
	"github.com/nachoal/planchat-go/transport/ws"
)

var (
	askTimeout time.Duration
	askRecord  string
	askNoSave  bool

	askCmd = &cobra.Command{
		Use:   "ask [message]",
		Short: "Send a one-shot message without entering the TUI",
		Args:  cobra.MinimumNArgs(1),
		RunE:  runAsk,
	}
)

func init() {
	askCmd.Flags().DurationVar(&askTimeout, "timeout", 2*time.Minute, "Give up waiting for the answer after this long")
	askCmd.Flags().StringVar(&askRecord, "record", "", "Write the exchanged frames to this JSONL file")
	askCmd.Flags().BoolVar(&askNoSave, "no-save", false, "Don't save the transcript")
}

func runAsk(cmd *cobra.Command, args []string) error {
	text := strings.Join(args, " ")

	cfg, log, closeLog, err := setup(false)
	if err != nil {
		return err
	}
	defer closeLog()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, askTimeout)
	defer cancel()

	sess := session.New(history.NewSessionID(), session.WithLogger(log))
	updates, unsubscribe := sess.Subscribe()
	defer unsubscribe()

	out := cmd.OutOrStdout()
	errOut := cmd.ErrOrStderr()
	handlers := []transport.Handler{sess, transport.HandlerFuncs{
		Chunk: func(_, text string) { fmt.Fprint(out, text) },
		Tool:  func(_ string, tool conversation.ToolInvocation) { fmt.Fprintln(errOut, toolLine(tool)) },
	}}

	var recorder *transport.Recorder
	if askRecord != "" {
		f, err := os.Create(askRecord)
		if err != nil {
			return fmt.Errorf("failed to create recording: %w", err)
		}
		defer f.Close()
		recorder = transport.NewRecorder(f, nil)
		handlers = append(handlers, recorder)
	}

	client, err := ws.Dial(ctx, cfg.Backend.URL, dialOptions(cfg, log))
	if err != nil {
		return err
	}
	defer client.Close()

	listenErr := make(chan error, 1)
	go func() {
		listenErr <- client.Listen(ctx, transport.Tee(handlers...))
	}()

	turn, err := sess.Submit(text)
	if err != nil {
		return err
	}
	if recorder != nil {
		recorder.RecordMessage(sess.ID(), turn.ID, text)
	}
	if err := client.Send(ctx, sess.ID(), turn.ID, text); err != nil {
		sess.OnError(turn.ID, err.Error())
		return fmt.Errorf("failed to send message: %w", err)
	}

	waitErr := waitForAnswer(ctx, sess, updates, listenErr)
	fmt.Fprintln(out)

	if recorder != nil {
		if err := recorder.Err(); err != nil {
			log.Warn().Err(err).Msg("Recording incomplete")
		}
	}

	if !askNoSave {
		store, err := openStore(cfg)
		if err != nil {
			return err
		}
		defer store.Close()
		t := history.NewTranscript(sess.ID(), cfg.Backend.URL, sess.Title(), sess.Snapshot())
		if err := store.Save(t); err != nil {
			return fmt.Errorf("failed to save transcript: %w", err)
		}
		log.Debug().Str("session_id", sess.ID()).Msg("Transcript saved")
	}

	return waitErr
}

// waitForAnswer blocks until the open turn settles
func waitForAnswer(ctx context.Context, sess *session.Session, updates <-chan session.Update, listenErr <-chan error) error {
	for {
		select {
		case u := <-updates:
			if u.Phase != conversation.PhaseSettled {
				continue
			}
			if u.Err != "" {
				return fmt.Errorf("backend error: %s", u.Err)
			}
			return nil

		case err := <-listenErr:
			if err == nil && ctx.Err() != nil {
				sess.Cancel()
				return ctx.Err()
			}
			if err == nil {
				err = errors.New("connection closed before the answer completed")
			}
			sess.OnError("", err.Error())
			return err

		case <-ctx.Done():
			sess.Cancel()
			if errors.Is(ctx.Err(), context.DeadlineExceeded) {
				return fmt.Errorf("no answer within %s", askTimeout)
			}
			return ctx.Err()
		}
	}
}
