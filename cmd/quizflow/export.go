package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/pavelanni/quizflow/internal/model"
	"github.com/pavelanni/quizflow/internal/store"
)

func exportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export session history with results as JSON or YAML",
		RunE:  runExport,
	}
	f := cmd.Flags()
	f.String("db-driver", string(store.DriverSQLite), "Database driver (sqlite, postgres)")
	f.String("db", "quizflow.db", "SQLite path or Postgres connection URL")
	f.StringP("format", "f", "json", "Output format (json, yaml)")
	f.StringP("output", "o", "-", "Output file path (- for stdout)")
	addLogFlags(cmd)
	return cmd
}

func runExport(cmd *cobra.Command, _ []string) error {
	v := viperForCmd(cmd)
	ctx := cmd.Context()

	db, err := store.Open(ctx, store.Driver(v.GetString("db-driver")), v.GetString("db"))
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	sessions, err := db.ExportAllSessions(ctx)
	if err != nil {
		return fmt.Errorf("export sessions: %w", err)
	}
	export := buildExport(sessions, time.Now())

	outPath := v.GetString("output")
	var w io.Writer
	if outPath == "" || outPath == "-" {
		w = cmd.OutOrStdout()
	} else {
		f, err := os.Create(outPath)
		if err != nil {
			return fmt.Errorf("create output file: %w", err)
		}
		defer f.Close()
		w = f
	}

	return writeExport(w, export, v.GetString("format"))
}

func buildExport(sessions []model.SessionExport, now time.Time) model.HistoryExport {
	export := model.HistoryExport{
		ExportedAt: now.UTC(),
		Total:      len(sessions),
		Sessions:   sessions,
	}
	for _, s := range sessions {
		if s.Status == model.StatusCompleted {
			export.Completed++
		}
	}
	return export
}

func writeExport(w io.Writer, export model.HistoryExport, format string) error {
	switch strings.ToLower(format) {
	case "yaml", "yml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(export); err != nil {
			return fmt.Errorf("write YAML: %w", err)
		}
		return enc.Close()
	case "json", "":
		data, err := json.MarshalIndent(export, "", "  ")
		if err != nil {
			return fmt.Errorf("marshal JSON: %w", err)
		}
		if _, err := w.Write(data); err != nil {
			return fmt.Errorf("write output: %w", err)
		}
		// Ensure trailing newline.
		_, err = fmt.Fprintln(w)
		return err
	default:
		return fmt.Errorf("unknown export format %q (want json or yaml)", format)
	}
}
