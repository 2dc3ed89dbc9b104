package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/Kocoro-lab/Shannon/go/accountplan/internal/config"
	"github.com/Kocoro-lab/Shannon/go/accountplan/internal/formatting"
	"github.com/Kocoro-lab/Shannon/go/accountplan/internal/logging"
	"github.com/Kocoro-lab/Shannon/go/accountplan/internal/research"
	"github.com/Kocoro-lab/Shannon/go/accountplan/internal/session"
)

var chatExportPath string

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Run an interactive account-plan session in the terminal",
	Long: `Starts a single session and reads messages from stdin.

Directives:
  /progress        show the progress log
  /export          print the plan as Markdown (or write it to --export)
  /quit            leave the session`,
	RunE: runChat,
}

func init() {
	chatCmd.Flags().StringVar(&chatExportPath, "export", "", "Write /export output to this file instead of stdout")
}

func runChat(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	// Operational logs go to the configured file only; the terminal is for the conversation.
	if cfg.Logging.Level == "info" {
		cfg.Logging.Level = "warn"
	}
	logger, err := logging.New(cfg.Logging)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	a, err := newApp(cmd.Context(), cfg, false, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	sess := a.store.Create()
	logger.Info("Terminal session started", zap.String("session_id", sess.ID))
	return chatLoop(cmd.Context(), a, sess, cmd.InOrStdin(), cmd.OutOrStdout())
}

func chatLoop(ctx context.Context, a *app, sess *session.Session, in io.Reader, out io.Writer) error {
	fmt.Fprintln(out, "Which company should we build an account plan for? (/quit to exit)")
	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 64*1024), 1<<20)
	for {
		fmt.Fprint(out, "> ")
		if !scanner.Scan() {
			fmt.Fprintln(out)
			return scanner.Err()
		}
		line := strings.TrimSpace(scanner.Text())
		switch {
		case line == "":
			continue
		case line == "/quit" || line == "/exit":
			return nil
		case line == "/progress":
			for _, p := range sess.Progress() {
				fmt.Fprintln(out, "  "+p)
			}
			continue
		case line == "/export":
			if err := exportPlan(sess, out); err != nil {
				fmt.Fprintln(out, err)
			}
			continue
		}

		reply := a.controller.HandleMessage(ctx, sess, line)
		fmt.Fprintf(out, "\n%s\n\n[%s]\n", reply, sess.Stage())
	}
}

func exportPlan(sess *session.Session, out io.Writer) error {
	plan := sess.Report()
	if plan == nil {
		return errNoReport
	}
	var sources []research.Source
	if b := sess.Bundle(); b != nil {
		sources = b.Sources
	}
	md := formatting.FormatReportMarkdown(plan.ToExport(sources))
	if chatExportPath == "" {
		_, err := io.WriteString(out, md)
		return err
	}
	if err := os.WriteFile(chatExportPath, []byte(md), 0o644); err != nil {
		return fmt.Errorf("write export: %w", err)
	}
	fmt.Fprintf(out, "Plan written to %s\n", chatExportPath)
	return nil
}
