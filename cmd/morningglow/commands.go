package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/codeGROOVE-dev/morningglow/pkg/calendar"
	"github.com/codeGROOVE-dev/morningglow/pkg/client"
	"github.com/codeGROOVE-dev/morningglow/pkg/record"
	"github.com/codeGROOVE-dev/morningglow/pkg/session"
)

func init() {
	rootCmd.AddCommand(
		analyzeCmd(),
		checkinCmd(),
		healthCmd(),
		calendarCmd(),
		historyCmd(),
		routinesCmd(),
		shareCmd(),
		resetTodayCmd(),
		resetCmd(),
	)
}

func analyzeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "analyze <photo>",
		Short: "Score a bed photo without recording anything",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			image, err := client.EncodeFile(args[0])
			if err != nil {
				return err
			}
			return printJSON(cmd, a.client.Analyze(cmd.Context(), image).Payload())
		},
	}
}

func checkinCmd() *cobra.Command {
	var done []string
	cmd := &cobra.Command{
		Use:   "checkin <photo>",
		Short: "Run today's flow without the interactive screen",
		Long: "Analyzes the photo, marks the given routines as done and records today.\n" +
			"Running it again on the same day replaces today's record.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			image, err := client.EncodeFile(args[0])
			if err != nil {
				return err
			}
			return withMachine(cmd, func(_ *app, m *session.Machine) error {
				ctx := cmd.Context()
				if err := m.Start(ctx); err != nil {
					return err
				}
				// Today already recorded or a cached result: go back to capture.
				if m.State().Phase != session.Capturing {
					if err := m.ReturnHome(ctx); err != nil {
						return err
					}
					if err := m.ResetToday(ctx); err != nil {
						return err
					}
					if err := m.Start(ctx); err != nil {
						return err
					}
				}
				if err := m.SelectImage(ctx, image); err != nil {
					return err
				}
				if err := m.Analyze(ctx); err != nil {
					return err
				}
				if s := m.State(); s.Phase != session.RoutineCheck {
					return errors.New(s.Notice)
				}
				for _, id := range done {
					if err := m.Toggle(ctx, id); err != nil {
						return fmt.Errorf("routine %q: %w", id, err)
					}
				}
				if err := m.Finish(ctx); err != nil {
					return err
				}
				rec, _ := m.State().History.Find(m.Today())
				fmt.Fprintf(cmd.OutOrStdout(), "%s  score %d  routines %d/%d  streak %d\n",
					rec.Date, rec.BedScore, len(rec.CompletedRoutines), rec.TotalRoutines, m.State().Streak)
				if rec.BedFeedback != "" {
					fmt.Fprintf(cmd.OutOrStdout(), "%q\n", rec.BedFeedback)
				}
				return nil
			})
		},
	}
	cmd.Flags().StringSliceVar(&done, "done", nil, "Completed routine ids, see the routines command")
	return cmd
}

func healthCmd() *cobra.Command {
	var attempts uint
	cmd := &cobra.Command{
		Use:   "health",
		Short: "Check that the analysis server is up",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			if err := a.client.WaitHealthy(cmd.Context(), attempts); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s ok\n", a.cfg.Client.ServerURL)
			return nil
		},
	}
	cmd.Flags().UintVar(&attempts, "attempts", 1, "Attempts before giving up")
	return cmd
}

func calendarCmd() *cobra.Command {
	var month string
	cmd := &cobra.Command{
		Use:   "calendar",
		Short: "Show the streak calendar",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withMachine(cmd, func(_ *app, m *session.Machine) error {
				s := m.State()
				grid := calendar.Current(s.History, m.Now())
				if month != "" {
					t, err := time.Parse("2006-01", month)
					if err != nil {
						return fmt.Errorf("invalid --month %q, want YYYY-MM", month)
					}
					grid = calendar.Month(s.History, t.Year(), t.Month())
				}
				fmt.Fprintf(cmd.OutOrStdout(), "🔥 %d일 연속\n\n", s.Streak)
				fmt.Fprint(cmd.OutOrStdout(), calendar.Render(grid, m.Today()))
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&month, "month", "", "Month to show as YYYY-MM (default current)")
	return cmd
}

func historyCmd() *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recorded days",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withMachine(cmd, func(_ *app, m *session.Machine) error {
				h := m.State().History
				if asJSON {
					return printJSON(cmd, h)
				}
				if len(h) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "no records yet")
					return nil
				}
				for _, rec := range h {
					mark := " "
					if rec.Perfect() {
						mark = "*"
					}
					fmt.Fprintf(cmd.OutOrStdout(), "%s %s %3d점  루틴 %d/%d  %s\n",
						rec.Date, mark, rec.BedScore, len(rec.CompletedRoutines), rec.TotalRoutines, rec.BedFeedback)
				}
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print records as JSON")
	return cmd
}

func routinesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "routines",
		Short: "List the morning routine checklist",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			for _, it := range record.DefaultRoutines().Items() {
				fmt.Fprintf(cmd.OutOrStdout(), "%-12s %s %s\n", it.ID, record.Icon(it.Icon), it.Label)
			}
		},
	}
}

func shareCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "share",
		Short: "Print today's community share card",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withMachine(cmd, func(a *app, m *session.Machine) error {
				if _, ok := m.State().History.Find(m.Today()); !ok && m.State().Result == nil {
					return errors.New("nothing recorded today")
				}
				return printJSON(cmd, m.ShareCard(a.cfg.Client.Nickname))
			})
		},
	}
}

func resetTodayCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "reset-today",
		Short: "Delete today's record so the day can be redone",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withMachine(cmd, func(_ *app, m *session.Machine) error {
				if err := m.ResetToday(cmd.Context()); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s cleared\n", m.Today())
				return nil
			})
		},
	}
}

func resetCmd() *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:   "reset",
		Short: "Delete all history, the streak and any cached result",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withMachine(cmd, func(_ *app, m *session.Machine) error {
				if err := m.ResetAll(cmd.Context(), yes); err != nil {
					if errors.Is(err, session.ErrNotConfirmed) {
						return errors.New("refusing to delete everything without --yes")
					}
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "all records deleted")
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&yes, "yes", false, "Confirm deleting everything")
	return cmd
}
