package main

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/term"

	"github.com/rudeai/innerlog/backend/internal/analysis/pattern"
	"github.com/rudeai/innerlog/backend/internal/logging"
	"github.com/rudeai/innerlog/backend/internal/model/record"
	"github.com/rudeai/innerlog/backend/internal/service/conversation"
	sessionstore "github.com/rudeai/innerlog/backend/internal/service/session"
)

type rootOptions struct {
	tablePath string
	timezone  string
	logLevel  string

	logger *zap.Logger
	engine *pattern.Engine
	now    func() time.Time
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{now: time.Now}

	cmd := &cobra.Command{
		Use:           "logctl",
		Short:         "Create, parse and walk through clinical situation logs",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			_ = godotenv.Load()
			return opts.init()
		},
	}

	flags := cmd.PersistentFlags()
	flags.StringVar(&opts.tablePath, "table", "", "YAML pattern table replacing the built-in rules")
	flags.StringVar(&opts.timezone, "timezone", "", "IANA zone for timestamp labels (default local)")
	flags.StringVar(&opts.logLevel, "log-level", "warn", "log level (debug, info, warn, error)")

	cmd.AddCommand(newLogCmd(opts))
	cmd.AddCommand(newParseCmd())
	cmd.AddCommand(newPatternsCmd(opts))
	cmd.AddCommand(newChatCmd(opts))
	return cmd
}

func (o *rootOptions) init() error {
	logger, err := logging.New(logging.Options{Level: o.logLevel, Format: "console"})
	if err != nil {
		return err
	}
	o.logger = logger

	loc := time.Local
	if o.timezone != "" {
		if loc, err = time.LoadLocation(o.timezone); err != nil {
			return fmt.Errorf("invalid --timezone value: %w", err)
		}
	}

	table := pattern.DefaultTable()
	if o.tablePath != "" {
		if table, err = pattern.LoadTable(o.tablePath); err != nil {
			return err
		}
		o.logger.Debug("pattern table loaded", zap.String("path", o.tablePath))
	}

	o.engine = pattern.NewEngine(table, pattern.WithClock(o.now), pattern.WithLocation(loc))
	return nil
}

func newLogCmd(opts *rootOptions) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "log [situation...]",
		Short: "Build a log from situation text (reads stdin when no arguments are given)",
		RunE: func(cmd *cobra.Command, args []string) error {
			text := strings.Join(args, " ")
			if len(args) == 0 {
				raw, err := io.ReadAll(cmd.InOrStdin())
				if err != nil {
					return fmt.Errorf("read stdin: %w", err)
				}
				text = string(raw)
			}
			if strings.TrimSpace(text) == "" {
				return errors.New("situation text is required")
			}

			log := opts.engine.Create(text)
			out := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(log)
			}

			fmt.Fprintln(out, record.Render(log))
			switch {
			case log.PatternTag != "":
				fmt.Fprintf(out, "\nPattern: %s\n", log.PatternTag)
			case log.Ambiguous:
				fmt.Fprintln(out, "\nPattern: none (ambiguous input)")
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "print the log as JSON")
	return cmd
}

func newParseCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "parse",
		Short: "Parse a rendered log block from stdin into JSON",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			raw, err := io.ReadAll(cmd.InOrStdin())
			if err != nil {
				return fmt.Errorf("read stdin: %w", err)
			}
			log, err := record.Parse(string(raw))
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(log)
		},
	}
}

func newPatternsCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "patterns",
		Short: "List the pattern rules in priority order",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			for i, rule := range opts.engine.Table().Rules() {
				fmt.Fprintf(out, "%d. %s\t%s\t%d cues\n", i+1, rule.Tag, rule.Name, len(rule.Cues))
			}
			return nil
		},
	}
}

func newChatCmd(opts *rootOptions) *cobra.Command {
	var policy string

	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Walk through the log and override protocol interactively",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			svc := conversation.NewService(
				sessionstore.NewStore(),
				conversation.FromEngine(opts.engine),
				nil,
				conversation.Config{ReentryPolicy: conversation.ParseReentryPolicy(policy), Location: opts.engine.Location()},
				conversation.WithClock(opts.now),
				conversation.WithLogger(opts.logger),
			)

			id, err := svc.StartSession(ctx)
			if err != nil {
				return err
			}

			in := cmd.InOrStdin()
			out := cmd.OutOrStdout()
			prompt := isTerminal(in)
			if prompt {
				fmt.Fprintln(out, "Describe the situation. /quit ends the session.")
			}

			scanner := bufio.NewScanner(in)
			for {
				if prompt {
					fmt.Fprint(out, "> ")
				}
				if !scanner.Scan() {
					break
				}
				line := scanner.Text()
				if strings.TrimSpace(line) == "/quit" {
					break
				}

				reply, err := svc.ProcessTurn(ctx, id, line)
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "%s\n[%s]\n", reply.Text, reply.State)
			}
			if prompt {
				fmt.Fprintln(out)
			}
			if err := scanner.Err(); err != nil {
				return fmt.Errorf("read input: %w", err)
			}

			info, err := svc.GetSessionInfo(ctx, id)
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "Session %s ended in state %s after %d turns.\n", info.ID, info.State, info.TurnCount)
			return nil
		},
	}

	cmd.Flags().StringVar(&policy, "reentry", "restart", "behaviour after completion: restart or closed")
	return cmd
}

func isTerminal(r io.Reader) bool {
	f, ok := r.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}
