package cli

import (
	"context"
	"fmt"
	"text/tabwriter"

	"season-quiz-service/internal/app"
	"season-quiz-service/internal/config"
	"github.com/spf13/cobra"
)

// withEngine runs fn against the Postgres-backed engine. Admin commands make no
// sense against the process-local memory stores.
func withEngine(ctx context.Context, configPath string, fn func(*app.AttemptEngine) error) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if cfg.Postgres.URL == "" {
		return fmt.Errorf("postgres url not configured")
	}
	b, err := openBackend(ctx, cfg)
	if err != nil {
		return err
	}
	defer b.Close()
	return fn(b.engine)
}

// NewSeasonCmd groups season administration.
func NewSeasonCmd(configPath *string) *cobra.Command {
	cmd := &cobra.Command{Use: "season", Short: "Manage seasons"}
	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List seasons",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), *configPath, func(e *app.AttemptEngine) error {
				seasons, err := e.ListSeasons(cmd.Context())
				if err != nil {
					return err
				}
				w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
				fmt.Fprintln(w, "ID\tNAME\tKIND\tACTIVE\tSTART\tEND")
				for _, s := range seasons {
					fmt.Fprintf(w, "%s\t%s\t%s\t%v\t%s\t%s\n", s.ID, s.Name, s.Kind(), s.IsActive,
						s.StartAt.Format("2006-01-02 15:04"), s.EndAt.Format("2006-01-02 15:04"))
				}
				return w.Flush()
			})
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "activate <season-id>",
		Short: "Make a season the only active one",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), *configPath, func(e *app.AttemptEngine) error {
				s, err := e.ActivateSeason(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "activated %s (%s)\n", s.ID, s.Kind())
				return nil
			})
		},
	})
	return cmd
}

// NewUserCmd groups user administration.
func NewUserCmd(configPath *string) *cobra.Command {
	cmd := &cobra.Command{Use: "user", Short: "Manage users"}
	for _, c := range []struct {
		use, short   string
		disqualified bool
	}{
		{"disqualify <user-id>", "Bar a user from starting attempts", true},
		{"reinstate <user-id>", "Lift a disqualification", false},
	} {
		cmd.AddCommand(&cobra.Command{
			Use:   c.use,
			Short: c.short,
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return withEngine(cmd.Context(), *configPath, func(e *app.AttemptEngine) error {
					return e.SetDisqualified(cmd.Context(), args[0], c.disqualified)
				})
			},
		})
	}
	return cmd
}

// NewAttemptCmd groups attempt administration.
func NewAttemptCmd(configPath *string) *cobra.Command {
	cmd := &cobra.Command{Use: "attempt", Short: "Manage attempts"}
	cmd.AddCommand(&cobra.Command{
		Use:   "reset <attempt-id>",
		Short: "Delete an attempt and its progress so the user can retake it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), *configPath, func(e *app.AttemptEngine) error {
				return e.ResetAttempt(cmd.Context(), args[0])
			})
		},
	})
	return cmd
}
