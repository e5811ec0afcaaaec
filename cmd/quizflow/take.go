package main

import (
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/pavelanni/quizflow/internal/client"
	"github.com/pavelanni/quizflow/internal/tui"
)

func addClientFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.String("server", "http://localhost:8000", "QuizFlow server URL")
	f.String("user", "", "User ID recorded with graded attempts")
	f.Duration("request-timeout", 30*time.Second, "Timeout for a single API request")
}

func takeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "take [subject]",
		Short: "Generate and take a timed quiz in the terminal",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runTake,
	}
	cmd.Flags().Duration("poll-interval", client.DefaultPollInterval, "How often to check generation status")
	addClientFlags(cmd)
	addLogFlags(cmd)
	return cmd
}

func subjectsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "subjects",
		Short: "List the subjects the server offers",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			v := viperForCmd(cmd)
			c := client.New(v.GetString("server"),
				client.WithHTTPClient(&http.Client{Timeout: v.GetDuration("request-timeout")}))
			subjects, err := c.Subjects(cmd.Context())
			if err != nil {
				return fmt.Errorf("list subjects: %w", err)
			}
			for _, s := range subjects {
				fmt.Fprintln(cmd.OutOrStdout(), s)
			}
			return nil
		},
	}
	addClientFlags(cmd)
	addLogFlags(cmd)
	return cmd
}

func runTake(cmd *cobra.Command, args []string) error {
	v := viperForCmd(cmd)
	opts := tui.Options{
		UserID:       v.GetString("user"),
		PollInterval: v.GetDuration("poll-interval"),
	}
	if len(args) == 1 {
		opts.Subject = args[0]
	}

	c := client.New(v.GetString("server"),
		client.WithHTTPClient(&http.Client{Timeout: v.GetDuration("request-timeout")}),
		client.WithUserID(opts.UserID),
	)
	if _, err := c.Health(cmd.Context()); err != nil {
		return fmt.Errorf("server %s is not reachable: %w", v.GetString("server"), err)
	}

	state, err := tui.Run(cmd.Context(), c, opts)
	if err != nil {
		return err
	}
	if state.Result != nil {
		score := state.Result.OverallScore
		fmt.Fprintf(cmd.OutOrStdout(), "%s: %.1f%% (%s), session %s\n",
			state.Subject, score.Percentage, score.Grade, state.SessionID)
	}
	return nil
}
