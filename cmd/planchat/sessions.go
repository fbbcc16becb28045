package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

var (
	showJSON bool

	sessionsCmd = &cobra.Command{
		Use:   "sessions",
		Short: "Manage saved transcripts",
	}

	listSessionsCmd = &cobra.Command{
		Use:   "list",
		Short: "List saved transcripts, newest first",
		Args:  cobra.NoArgs,
		RunE:  listSessions,
	}

	showSessionCmd = &cobra.Command{
		Use:   "show <id>",
		Short: "Print a saved transcript",
		Args:  cobra.ExactArgs(1),
		RunE:  showSession,
	}

	deleteSessionCmd = &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a saved transcript",
		Args:  cobra.ExactArgs(1),
		RunE:  deleteSession,
	}
)

func init() {
	showSessionCmd.Flags().BoolVar(&showJSON, "json", false, "Print the transcript as JSON")
	sessionsCmd.AddCommand(listSessionsCmd, showSessionCmd, deleteSessionCmd)
}

func listSessions(cmd *cobra.Command, args []string) error {
	cfg, _, closeLog, err := setup(false)
	if err != nil {
		return err
	}
	defer closeLog()

	store, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	infos, err := store.List()
	if err != nil {
		return err
	}
	if len(infos) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No saved sessions.")
		return nil
	}
	return printTranscriptList(cmd.OutOrStdout(), infos)
}

func showSession(cmd *cobra.Command, args []string) error {
	cfg, _, closeLog, err := setup(false)
	if err != nil {
		return err
	}
	defer closeLog()

	store, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	t, err := store.Load(args[0])
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if showJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(t)
	}
	fmt.Fprintf(out, "%s (%s)\n\n", t.Metadata.Title, t.ID)
	printTranscript(out, t.Conversation())
	return nil
}

func deleteSession(cmd *cobra.Command, args []string) error {
	cfg, _, closeLog, err := setup(false)
	if err != nil {
		return err
	}
	defer closeLog()

	store, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	if err := store.Delete(args[0]); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Deleted %s\n", args[0])
	return nil
}
