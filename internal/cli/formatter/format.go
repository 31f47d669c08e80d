package formatter

import (
	"fmt"
	"strings"
	"time"

	"github.com/nhle/collabtask/internal/model"
)

// Truncate shortens s to at most max visible runes, ending in "…".
func Truncate(s string, max int) string {
	r := []rune(s)
	if max <= 0 || len(r) <= max {
		return s
	}
	if max == 1 {
		return "…"
	}
	return string(r[:max-1]) + "…"
}

// RelativeFrom renders how long before now t was, coarsely.
func RelativeFrom(t, now time.Time) string {
	d := now.Sub(t)
	switch {
	case d < time.Minute:
		return "just now"
	case d < time.Hour:
		return fmt.Sprintf("%dm ago", int(d.Minutes()))
	case d < 24*time.Hour:
		return fmt.Sprintf("%dh ago", int(d.Hours()))
	case d < 14*24*time.Hour:
		return fmt.Sprintf("%dd ago", int(d.Hours()/24))
	default:
		return t.Format("2006-01-02")
	}
}

// Organizations renders the user's memberships.
func Organizations(orgs []model.Organization) string {
	if len(orgs) == 0 {
		return Dim("No organizations.") + "\n"
	}
	rows := make([][]string, 0, len(orgs))
	for _, o := range orgs {
		rows = append(rows, []string{o.ID, o.Name, o.Role})
	}
	return RenderTable([]string{"ID", "NAME", "ROLE"}, rows)
}

// Projects renders an organization's projects.
func Projects(projects []model.Project) string {
	if len(projects) == 0 {
		return Dim("No projects.") + "\n"
	}
	rows := make([][]string, 0, len(projects))
	for _, p := range projects {
		name := p.Name
		if p.Archived {
			name += " " + Dim("(archived)")
		}
		rows = append(rows, []string{p.ID, name, Truncate(p.Description, 48)})
	}
	return RenderTable([]string{"ID", "NAME", "DESCRIPTION"}, rows)
}

// Tasks renders a project's tasks.
func Tasks(tasks []model.Task) string {
	if len(tasks) == 0 {
		return Dim("No tasks.") + "\n"
	}
	rows := make([][]string, 0, len(tasks))
	for _, t := range tasks {
		rows = append(rows, []string{
			t.ID,
			StatusColor(t.Status).Render(string(t.Status)),
			Truncate(t.Title, 48),
			strings.Join(t.AssigneeNames, ", "),
			fmt.Sprintf("v%d", t.Version),
		})
	}
	return RenderTable([]string{"ID", "STATUS", "TITLE", "ASSIGNEES", "VERSION"}, rows)
}

// Task renders one task in detail.
func Task(t model.Task) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s %s\n", Bold(t.Title), Dim("("+t.ID+")"))
	fmt.Fprintf(&b, "  status:   %s\n", StatusColor(t.Status).Render(string(t.Status)))
	fmt.Fprintf(&b, "  version:  %d\n", t.Version)
	if len(t.AssigneeNames) > 0 {
		fmt.Fprintf(&b, "  assigned: %s\n", strings.Join(t.AssigneeNames, ", "))
	} else if len(t.AssigneeIDs) > 0 {
		fmt.Fprintf(&b, "  assigned: %s\n", strings.Join(t.AssigneeIDs, ", "))
	}
	if t.Description != "" {
		fmt.Fprintf(&b, "\n  %s\n", t.Description)
	}
	return b.String()
}

// NotificationKind is the short label shown for a notification type.
func NotificationKind(t model.NotificationType) string {
	switch t {
	case model.NotificationOrgInvite:
		return StylePurple.Render("invite")
	case model.NotificationMeeting:
		return StyleBlue.Render("meeting")
	case model.NotificationChat:
		return StyleGreen.Render("chat")
	default:
		return Dim(string(t))
	}
}

// Notifications renders a feed, unread first marked with a dot.
func Notifications(items []model.Notification, now time.Time) string {
	if len(items) == 0 {
		return Dim("No notifications.") + "\n"
	}
	rows := make([][]string, 0, len(items))
	for _, n := range items {
		mark := " "
		if !n.Read {
			mark = StyleYellow.Render("●")
		}
		age := ""
		if n.CreatedAt != nil {
			age = RelativeFrom(*n.CreatedAt, now)
		}
		text := n.Title
		if n.Message != "" {
			text += ": " + n.Message
		}
		rows = append(rows, []string{mark, n.ID, NotificationKind(n.Type), Truncate(text, 60), Dim(age)})
	}
	return RenderTable([]string{"", "ID", "TYPE", "MESSAGE", "AGE"}, rows)
}

// Activities renders an organization's activity feed.
func Activities(items []model.Activity, now time.Time) string {
	if len(items) == 0 {
		return Dim("No activity.") + "\n"
	}
	rows := make([][]string, 0, len(items))
	for _, a := range items {
		rows = append(rows, []string{
			Dim(RelativeFrom(a.CreatedAt, now)),
			a.UserName,
			a.Action,
			a.EntityType,
			Truncate(a.EntityName, 40),
		})
	}
	return RenderTable([]string{"WHEN", "WHO", "ACTION", "ENTITY", "NAME"}, rows)
}

// SearchResult renders hits grouped by entity kind.
func SearchResult(r model.SearchResult) string {
	if len(r.Tasks)+len(r.Projects)+len(r.Organizations) == 0 {
		return Dim("No matches.") + "\n"
	}

	var sections []string
	if len(r.Organizations) > 0 {
		rows := make([][]string, 0, len(r.Organizations))
		for _, o := range r.Organizations {
			rows = append(rows, []string{o.ID, o.Name})
		}
		sections = append(sections, Header("Organizations")+"\n"+RenderTable([]string{"ID", "NAME"}, rows))
	}
	if len(r.Projects) > 0 {
		rows := make([][]string, 0, len(r.Projects))
		for _, p := range r.Projects {
			rows = append(rows, []string{p.ID, p.Name, p.OrgName})
		}
		sections = append(sections, Header("Projects")+"\n"+RenderTable([]string{"ID", "NAME", "ORGANIZATION"}, rows))
	}
	if len(r.Tasks) > 0 {
		rows := make([][]string, 0, len(r.Tasks))
		for _, t := range r.Tasks {
			rows = append(rows, []string{t.ID, StatusColor(t.Status).Render(string(t.Status)), t.Title, t.ProjectID})
		}
		sections = append(sections, Header("Tasks")+"\n"+RenderTable([]string{"ID", "STATUS", "TITLE", "PROJECT"}, rows))
	}
	return strings.Join(sections, "\n")
}
