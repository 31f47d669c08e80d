package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/nhle/collabtask/internal/cli/formatter"
	"github.com/nhle/collabtask/internal/model"
)

// timeLayouts are accepted for meeting times, tried in order. Layouts
// without a zone are read as UTC.
var timeLayouts = []string{
	time.RFC3339,
	"2006-01-02 15:04",
	"2006-01-02T15:04",
	"2006-01-02",
}

func parseWhen(s string) (time.Time, error) {
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid time %q: use RFC 3339 or \"YYYY-MM-DD HH:MM\"", s)
}

func newMeetingsCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "meetings",
		Short: "List and schedule meetings",
	}

	var from, to string
	list := &cobra.Command{
		Use:   "list",
		Short: "Show your meetings",
		RunE: func(cmd *cobra.Command, args []string) error {
			var start, end time.Time
			var err error
			if from != "" {
				if start, err = parseWhen(from); err != nil {
					return err
				}
			}
			if to != "" {
				if end, err = parseWhen(to); err != nil {
					return err
				}
			}
			if err := requireSession(app); err != nil {
				return err
			}

			meetings, err := app.Client.ListMyMeetings(commandContext(cmd), start, end)
			if err != nil {
				return err
			}
			fmt.Fprint(cmd.OutOrStdout(), formatter.Meetings(meetings))
			return nil
		},
	}
	list.Flags().StringVar(&from, "from", "", "Only meetings starting at or after this time")
	list.Flags().StringVar(&to, "to", "", "Only meetings starting at or before this time")

	var (
		in       model.MeetingInput
		start    string
		duration time.Duration
	)
	create := &cobra.Command{
		Use:   "create <org-id>",
		Short: "Schedule a meeting; participants are notified",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			begin, err := parseWhen(start)
			if err != nil {
				return err
			}
			if duration <= 0 {
				return fmt.Errorf("--duration must be positive")
			}
			if err := requireSession(app); err != nil {
				return err
			}

			in.StartTime = begin
			in.EndTime = begin.Add(duration)
			id, err := app.Client.CreateMeeting(commandContext(cmd), args[0], in)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), formatter.Success(fmt.Sprintf("Scheduled %q (%s)", in.Title, id)))
			return nil
		},
	}
	create.Flags().StringVar(&in.Title, "title", "", "Meeting title")
	create.Flags().StringVar(&in.Description, "description", "", "Agenda or notes")
	create.Flags().StringVar(&in.GoogleMeetLink, "link", "", "Video call link")
	create.Flags().StringVar(&start, "start", "", "Start time")
	create.Flags().DurationVar(&duration, "duration", 30*time.Minute, "Length of the meeting")
	create.Flags().StringSliceVar(&in.ParticipantIDs, "participant", nil, "User id to invite (repeatable)")
	_ = create.MarkFlagRequired("title")
	_ = create.MarkFlagRequired("start")

	cmd.AddCommand(list, create)
	return cmd
}
