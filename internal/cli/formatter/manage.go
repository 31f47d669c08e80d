package formatter

import (
	"fmt"
	"strings"
	"time"

	"github.com/nhle/collabtask/internal/model"
)

// meetingLayout is how meeting times are shown; always UTC.
const meetingLayout = "2006-01-02 15:04 MST"

// Organization renders one organization in detail.
func Organization(o model.Organization) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s %s\n", Bold(o.Name), Dim("("+o.ID+")"))
	if o.Role != "" {
		fmt.Fprintf(&b, "  role:     %s\n", o.Role)
	}
	if o.Website != "" {
		fmt.Fprintf(&b, "  website:  %s\n", o.Website)
	}
	if o.Address != "" {
		fmt.Fprintf(&b, "  address:  %s\n", o.Address)
	}
	if o.Description != "" {
		fmt.Fprintf(&b, "\n  %s\n", o.Description)
	}
	return b.String()
}

// OrganizationAnalytics renders an organization's summary counts.
func OrganizationAnalytics(a model.OrganizationAnalytics) string {
	return RenderTable(nil, [][]string{
		{"projects", fmt.Sprint(a.TotalProjects)},
		{"members", fmt.Sprint(a.TotalMembers)},
		{"tasks", fmt.Sprint(a.TotalTasks)},
		{"active", fmt.Sprint(a.ActiveTasks)},
		{"completed", fmt.Sprint(a.CompletedTasks)},
	})
}

// Members renders an organization's member list.
func Members(members []model.OrganizationMember) string {
	if len(members) == 0 {
		return Dim("No members.") + "\n"
	}
	rows := make([][]string, 0, len(members))
	for _, m := range members {
		name := model.User{FirstName: m.FirstName, LastName: m.LastName, Email: m.Email}.DisplayName()
		rows = append(rows, []string{m.ID, name, m.Email, m.Role})
	}
	return RenderTable([]string{"ID", "NAME", "EMAIL", "ROLE"}, rows)
}

// Project renders one project in detail.
func Project(p model.Project) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s %s\n", Bold(p.Name), Dim("("+p.ID+")"))
	if p.Archived {
		fmt.Fprintf(&b, "  %s\n", StyleYellow.Render("archived"))
	}
	if p.CreatedBy != nil {
		fmt.Fprintf(&b, "  owner:    %s\n", p.CreatedBy.DisplayName())
	}
	if p.Description != "" {
		fmt.Fprintf(&b, "\n  %s\n", p.Description)
	}
	return b.String()
}

// ProjectAnalytics renders task counts per status, in board order.
func ProjectAnalytics(a model.ProjectAnalytics) string {
	rows := [][]string{{"tasks", fmt.Sprint(a.TotalTasks)}}
	for _, s := range model.TaskStatuses {
		rows = append(rows, []string{
			StatusColor(s).Render(string(s)),
			fmt.Sprint(a.StatusCounts[s]),
		})
	}
	if a.TotalTasks > 0 {
		rows = append(rows, []string{"completion", fmt.Sprintf("%d%%", a.CompletedTasks*100/a.TotalTasks)})
	}
	return RenderTable(nil, rows)
}

// Comments renders a project's comment thread, oldest first.
func Comments(comments []model.Comment, now time.Time) string {
	if len(comments) == 0 {
		return Dim("No comments.") + "\n"
	}
	rows := make([][]string, 0, len(comments))
	for _, c := range comments {
		age := ""
		if c.CreatedAt != nil {
			age = RelativeFrom(*c.CreatedAt, now)
		}
		rows = append(rows, []string{c.ID, c.User.DisplayName(), Truncate(c.Content, 60), Dim(age)})
	}
	return RenderTable([]string{"ID", "AUTHOR", "COMMENT", "AGE"}, rows)
}

// Meetings renders the user's meetings.
func Meetings(meetings []model.Meeting) string {
	if len(meetings) == 0 {
		return Dim("No meetings.") + "\n"
	}
	rows := make([][]string, 0, len(meetings))
	for _, m := range meetings {
		org := m.OrgName
		if org == "" {
			org = m.OrgID
		}
		rows = append(rows, []string{
			m.ID,
			m.StartTime.UTC().Format(meetingLayout),
			m.EndTime.Sub(m.StartTime).Round(time.Minute).String(),
			Truncate(m.Title, 40),
			org,
			m.GoogleMeetLink,
		})
	}
	return RenderTable([]string{"ID", "START", "LENGTH", "TITLE", "ORGANIZATION", "LINK"}, rows)
}
