package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var pollCmd = &cobra.Command{
	Use:   "poll [mailbox...]",
	Short: "Fetch the configured mailboxes once and exit",
	Long: `Poll runs every enabled mailbox (or only the named ones) through the
email-to-ticket pipeline a single time. Useful from an external cron or
to check mailbox credentials.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		a, err := newApp(ctx)
		if err != nil {
			return err
		}
		defer a.close(context.Background())

		if len(args) == 0 {
			err = a.scheduler.PollAll(ctx)
		} else {
			for _, name := range args {
				if perr := a.scheduler.Poll(ctx, name); perr != nil {
					err = perr
					a.log.Error().Err(perr).Str("mailbox", name).Msg("poll failed")
				}
			}
		}

		for _, st := range a.scheduler.Status() {
			if st.LastRunAt == nil {
				continue
			}
			line := fmt.Sprintf("%-20s %-8s %s", st.Name, st.LastStatus, st.Duration)
			if st.LastError != "" {
				line += "  " + st.LastError
			}
			fmt.Fprintln(cmd.OutOrStdout(), line)
		}
		return err
	},
}
