package main

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/atotto/clipboard"
	"github.com/spf13/cobra"

	"quicklaunch/internal/app"
	"quicklaunch/internal/client"
)

func newScanCmd() *cobra.Command {
	var flat bool
	cmd := &cobra.Command{
		Use:   "scan",
		Short: "Discover applications and print them",
		RunE: func(cmd *cobra.Command, args []string) error {
			l, err := openLauncher(cmd.Context(), false)
			if err != nil {
				return err
			}
			defer l.Close()

			if stats := l.ScanStats(); stats.LastError != nil {
				return fmt.Errorf("scan failed: %w", stats.LastError)
			}

			out := cmd.OutOrStdout()
			if flat {
				for _, a := range l.Engine().FlattenApplications() {
					fmt.Fprintln(out, renderApp(a))
				}
				return nil
			}
			fmt.Fprint(out, renderTree(l.Engine()))
			fmt.Fprintln(out, dimStyle.Render(fmt.Sprintf("%d applications in %d directories",
				len(l.Engine().FlattenApplications()), len(l.SearchDirs()))))
			return nil
		},
	}
	cmd.Flags().BoolVar(&flat, "flat", false, "print one application per line")
	return cmd
}

func newSearchCmd() *cobra.Command {
	var local, showStats bool
	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Find applications for a task",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			query := strings.Join(args, " ")
			l, err := openLauncher(cmd.Context(), !local)
			if err != nil {
				return err
			}
			defer l.Close()

			out := cmd.OutOrStdout()
			if local {
				for _, it := range l.FilterByName(query) {
					fmt.Fprintln(out, renderItem(it))
				}
				return nil
			}

			apps, err := l.SearchWithAI(cmd.Context(), query)
			if showStats {
				printSearchStats(cmd, l)
			}
			if err != nil {
				fmt.Fprintln(cmd.ErrOrStderr(), errorStyle.Render(l.Search().Error))
				return err
			}
			if len(apps) == 0 {
				fmt.Fprintln(out, dimStyle.Render("no matching applications"))
				return nil
			}
			for _, a := range apps {
				fmt.Fprintln(out, renderApp(a))
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&local, "local", false, "match names locally instead of asking the model")
	cmd.Flags().BoolVar(&showStats, "stats", false, "print cache and rate limit statistics")
	return cmd
}

func printSearchStats(cmd *cobra.Command, l *app.Launcher) {
	c := l.SearchCacheStats()
	r := l.RateLimitStats()
	line := fmt.Sprintf("cache: %d hits, %d misses, %d entries", c.Hits, c.Misses, c.Size)
	if r.Enabled {
		line += fmt.Sprintf(" | rate limit: %d requests, %d delayed, %.1f available",
			r.TotalRequests, r.BlockedRequests, r.AvailableRequests)
	}
	fmt.Fprintln(cmd.ErrOrStderr(), dimStyle.Render(line))
}

func newChatCmd() *cobra.Command {
	var copyReply bool
	cmd := &cobra.Command{
		Use:   "chat <message>",
		Short: "Ask for application recommendations",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			l, err := openLauncher(cmd.Context(), true)
			if err != nil {
				return err
			}
			defer l.Close()

			session := l.Chat()
			if err := session.SendTurn(cmd.Context(), strings.Join(args, " ")); err != nil {
				return err
			}
			session.Wait()

			msgs := session.Messages()
			reply := msgs[len(msgs)-1]
			if session.CanRetry() {
				fmt.Fprintln(cmd.ErrOrStderr(), errorStyle.Render(reply.Text))
				return errors.New("chat turn failed")
			}

			fmt.Fprint(cmd.OutOrStdout(), renderMarkdown(reply.Text))
			if copyReply {
				if err := clipboard.WriteAll(reply.Text); err != nil {
					return fmt.Errorf("failed to copy reply: %w", err)
				}
				fmt.Fprintln(cmd.ErrOrStderr(), dimStyle.Render("copied to clipboard"))
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&copyReply, "copy", false, "copy the reply to the clipboard")
	return cmd
}

func newPathsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "paths",
		Short: "Manage custom search directories",
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "list",
			Short: "List custom search directories",
			RunE: func(cmd *cobra.Command, args []string) error {
				l, err := openLauncher(cmd.Context(), false)
				if err != nil {
					return err
				}
				defer l.Close()
				for i, p := range l.SearchPaths() {
					line := fmt.Sprintf("%d  %s", i, p.Location)
					if !p.Available() {
						line += dimStyle.Render("  (unavailable)")
					}
					fmt.Fprintln(cmd.OutOrStdout(), line)
				}
				return nil
			},
		},
		&cobra.Command{
			Use:   "add <dir>",
			Short: "Add a custom search directory",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				l, err := openLauncher(cmd.Context(), false)
				if err != nil {
					return err
				}
				defer l.Close()
				if err := l.AddSearchPath(args[0]); err != nil {
					return err
				}
				l.WaitForScan()
				fmt.Fprintf(cmd.OutOrStdout(), "%d applications found\n", len(l.Engine().FlattenApplications()))
				return nil
			},
		},
		&cobra.Command{
			Use:   "remove <dir|index>",
			Short: "Remove a custom search directory",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				l, err := openLauncher(cmd.Context(), false)
				if err != nil {
					return err
				}
				defer l.Close()
				if i, convErr := strconv.Atoi(args[0]); convErr == nil {
					return l.RemoveSearchPathAt(i)
				}
				return l.RemoveSearchPath(args[0])
			},
		},
	)
	return cmd
}

// retryPrinter reports gateway retries on stderr.
type retryPrinter struct{}

func (retryPrinter) OnStateChange(op string, state client.AttemptState, attempt int) {}

func (retryPrinter) OnRetry(attempt, maxAttempts int, delay time.Duration, reason string) {
	fmt.Fprintln(os.Stderr, dimStyle.Render(fmt.Sprintf("retrying (%d/%d) in %.1fs: %s", attempt, maxAttempts, delay.Seconds(), reason)))
}
