package cli

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/collabtask/internal/model"
	"github.com/nhle/collabtask/tests/testutil"
)

func TestSignup(t *testing.T) {
	f := testApp(t, false)

	out, err := executeCmd(t, f.app, "signup",
		"--first-name", "Grace",
		"--last-name", "Hopper",
		"--email", "grace@example.com",
		"--password", "cobol forever",
	)
	require.NoError(t, err)
	assert.Contains(t, out, "Account created for grace@example.com")

	signups := f.backend.Signups()
	require.Len(t, signups, 1)
	assert.Equal(t, "Grace", signups[0].FirstName)
	assert.Equal(t, "Hopper", signups[0].LastName)

	_, err = executeCmd(t, f.app, "signup", "--email", testutil.FakeEmail, "--password", "whatever1")
	require.Error(t, err)
	assert.Equal(t, "Email already registered", Describe(err))

	_, err = executeCmd(t, f.app, "signup", "--email", "not-an-email", "--password", "whatever1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "valid email")
	assert.Len(t, f.backend.Signups(), 1)
}

func TestPasswordReset(t *testing.T) {
	f := testApp(t, false)

	out, err := executeCmd(t, f.app, "password", "reset", "--email", testutil.FakeEmail)
	require.NoError(t, err)
	assert.Contains(t, out, "Reset code sent to "+testutil.FakeEmail)

	_, err = executeCmd(t, f.app, "password", "reset", "--email", testutil.FakeEmail, "--otp", testutil.FakeOTP)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--new-password")

	_, err = executeCmd(t, f.app, "password", "reset",
		"--email", testutil.FakeEmail, "--otp", "000000", "--new-password", "battery staple")
	require.Error(t, err)
	assert.Equal(t, "Invalid OTP.", Describe(err))
	_, done := f.backend.ResetPassword(testutil.FakeEmail)
	assert.False(t, done)

	out, err = executeCmd(t, f.app, "password", "reset",
		"--email", testutil.FakeEmail, "--otp", testutil.FakeOTP, "--new-password", "battery staple")
	require.NoError(t, err)
	assert.Contains(t, out, "Password updated")
	pw, done := f.backend.ResetPassword(testutil.FakeEmail)
	assert.True(t, done)
	assert.Equal(t, "battery staple", pw)

	_, err = executeCmd(t, f.app, "password", "reset", "--email", "nobody@example.com")
	require.Error(t, err)
	assert.Equal(t, "User not found", Describe(err))
}

func TestProfile_UpdatesSignedInUser(t *testing.T) {
	f := testApp(t, true)

	_, err := executeCmd(t, f.app, "profile")
	require.Error(t, err)

	out, err := executeCmd(t, f.app, "profile", "--first-name", "Augusta")
	require.NoError(t, err)
	assert.Contains(t, out, "Profile updated: Augusta Lovelace")

	out, err = executeCmd(t, f.app, "whoami")
	require.NoError(t, err)
	assert.Contains(t, out, "Augusta Lovelace")

	me, err := f.app.Client.Me(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "Augusta", me.FirstName)
	assert.Equal(t, "Lovelace", me.LastName)
}

func TestOrgs_CreateAndList(t *testing.T) {
	f := testApp(t, true)

	out, err := executeCmd(t, f.app, "orgs", "create", "--name", "Initech", "--website", "initech.test")
	require.NoError(t, err)
	assert.Contains(t, out, "Created Initech")

	out, err = executeCmd(t, f.app, "orgs")
	require.NoError(t, err)
	assert.Contains(t, out, "Initech")
	assert.Contains(t, out, "owner")

	_, err = executeCmd(t, f.app, "orgs", "create")
	require.Error(t, err)
}

func TestOrgs_ShowUpdateStatsDelete(t *testing.T) {
	f := testApp(t, true)
	f.backend.AddOrganization(model.Organization{ID: "org-1", Name: "Acme", Role: model.RoleOwner, Website: "acme.test"})
	f.backend.AddMember("org-1", model.OrganizationMember{ID: "user-1", Email: testutil.FakeEmail, Role: model.RoleOwner})
	f.backend.AddProject("org-1", model.Project{ID: "p1", Name: "Website"})
	seedBoard(f)

	out, err := executeCmd(t, f.app, "orgs", "show", "org-1")
	require.NoError(t, err)
	assert.Contains(t, out, "Acme")
	assert.Contains(t, out, "acme.test")

	_, err = executeCmd(t, f.app, "orgs", "update", "org-1", "--description", "Rockets and anvils")
	require.NoError(t, err)
	org, ok := f.backend.Organization("org-1")
	require.True(t, ok)
	assert.Equal(t, "Acme", org.Name)
	assert.Equal(t, "acme.test", org.Website)
	assert.Equal(t, "Rockets and anvils", org.Description)

	out, err = executeCmd(t, f.app, "orgs", "stats", "org-1")
	require.NoError(t, err)
	assert.Regexp(t, `projects\s+1`, out)
	assert.Regexp(t, `members\s+1`, out)
	assert.Regexp(t, `tasks\s+3`, out)
	assert.Regexp(t, `active\s+2`, out)
	assert.Regexp(t, `completed\s+1`, out)

	_, err = executeCmd(t, f.app, "orgs", "delete", "org-1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--yes")
	_, ok = f.backend.Organization("org-1")
	assert.True(t, ok)

	out, err = executeCmd(t, f.app, "orgs", "rm", "org-1", "--yes")
	require.NoError(t, err)
	assert.Contains(t, out, "Deleted org-1")
	_, ok = f.backend.Organization("org-1")
	assert.False(t, ok)

	_, err = executeCmd(t, f.app, "orgs", "show", "org-1")
	require.Error(t, err)
	assert.Equal(t, "Organization not found", Describe(err))
}

func TestOrgs_Leave(t *testing.T) {
	f := testApp(t, true)
	f.backend.AddOrganization(model.Organization{ID: "org-1", Name: "Acme", Role: model.RoleOwner})
	f.backend.AddOrganization(model.Organization{ID: "org-2", Name: "Globex", Role: model.RoleMember})

	_, err := executeCmd(t, f.app, "orgs", "leave", "org-1")
	require.Error(t, err)
	assert.Equal(t, "The owner cannot leave the organization", Describe(err))

	out, err := executeCmd(t, f.app, "orgs", "leave", "org-2")
	require.NoError(t, err)
	assert.Contains(t, out, "Left org-2")
	_, ok := f.backend.Organization("org-2")
	assert.False(t, ok)
}

func TestMembers(t *testing.T) {
	f := testApp(t, true)
	f.backend.AddOrganization(model.Organization{ID: "org-1", Name: "Acme", Role: model.RoleOwner})
	f.backend.AddMember("org-1", model.OrganizationMember{
		ID:        "user-2",
		FirstName: "Grace",
		LastName:  "Hopper",
		Email:     "grace@example.com",
		Role:      model.RoleMember,
	})

	out, err := executeCmd(t, f.app, "members", "list", "org-1")
	require.NoError(t, err)
	assert.Contains(t, out, "Grace Hopper")
	assert.Contains(t, out, "grace@example.com")

	out, err = executeCmd(t, f.app, "members", "invite", "org-1", "linus@example.com", "--role", "admin")
	require.NoError(t, err)
	assert.Contains(t, out, "Invited linus@example.com as admin")
	assert.Equal(t, []model.InviteMemberInput{{Email: "linus@example.com", Role: model.RoleAdmin}}, f.backend.Invited("org-1"))

	_, err = executeCmd(t, f.app, "members", "invite", "org-1", "grace@example.com")
	require.Error(t, err)
	assert.Equal(t, "User is already a member", Describe(err))

	_, err = executeCmd(t, f.app, "members", "invite", "org-1", "ken@example.com", "--role", "owner")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid role")
	assert.Len(t, f.backend.Invited("org-1"), 1)

	_, err = executeCmd(t, f.app, "members", "role", "org-1", "user-2", "admin")
	require.NoError(t, err)
	members := f.backend.Members("org-1")
	require.Len(t, members, 1)
	assert.Equal(t, model.RoleAdmin, members[0].Role)

	_, err = executeCmd(t, f.app, "members", "rm", "org-1", "user-2")
	require.NoError(t, err)
	assert.Empty(t, f.backend.Members("org-1"))

	_, err = executeCmd(t, f.app, "members", "remove", "org-1", "user-2")
	require.Error(t, err)
	assert.Equal(t, "Member not found", Describe(err))
}

func TestProjects_Manage(t *testing.T) {
	f := testApp(t, true)
	f.backend.AddProject("org-1", model.Project{ID: "p1", Name: "Website", Description: "Marketing site"})
	seedBoard(f)

	out, err := executeCmd(t, f.app, "projects", "create", "org-1", "--name", "Mobile")
	require.NoError(t, err)
	assert.Contains(t, out, "Created Mobile")

	out, err = executeCmd(t, f.app, "projects", "show", "org-1", "p1")
	require.NoError(t, err)
	assert.Contains(t, out, "Website")
	assert.Contains(t, out, "Marketing site")

	_, err = executeCmd(t, f.app, "projects", "update", "org-1", "p1", "--name", "Web")
	require.NoError(t, err)
	p, ok := f.backend.Project("org-1", "p1")
	require.True(t, ok)
	assert.Equal(t, "Web", p.Name)
	assert.Equal(t, "Marketing site", p.Description)

	out, err = executeCmd(t, f.app, "projects", "stats", "org-1", "p1")
	require.NoError(t, err)
	assert.Regexp(t, `tasks\s+3`, out)
	assert.Regexp(t, `review\s+1`, out)
	assert.Regexp(t, `completion\s+33%`, out)

	out, err = executeCmd(t, f.app, "projects", "archive", "org-1", "p1")
	require.NoError(t, err)
	assert.Contains(t, out, "Archived p1")

	out, err = executeCmd(t, f.app, "projects", "org-1")
	require.NoError(t, err)
	assert.Contains(t, out, "Mobile")
	assert.NotContains(t, out, "p1")

	out, err = executeCmd(t, f.app, "projects", "restore", "org-1", "p1")
	require.NoError(t, err)
	assert.Contains(t, out, "Restored Web")
	p, _ = f.backend.Project("org-1", "p1")
	assert.False(t, p.Archived)

	_, err = executeCmd(t, f.app, "projects", "restore", "org-1", "p1")
	require.Error(t, err)
	assert.Equal(t, "Project is not archived", Describe(err))
}

func TestComments(t *testing.T) {
	f := testApp(t, true)
	posted := testNow.Add(-2 * time.Hour)
	f.backend.AddComment("p1", model.Comment{
		ID:        "c1",
		Content:   "Looks good",
		CreatedAt: &posted,
		User:      model.User{ID: "user-2", FirstName: "Grace", LastName: "Hopper"},
	})

	out, err := executeCmd(t, f.app, "comments", "list", "org-1", "p1")
	require.NoError(t, err)
	assert.Contains(t, out, "Looks good")
	assert.Contains(t, out, "Grace Hopper")
	assert.Contains(t, out, "2h ago")

	out, err = executeCmd(t, f.app, "comments", "add", "org-1", "p1", "Ship", "it", "today")
	require.NoError(t, err)
	assert.Contains(t, out, "Commented")
	comments := f.backend.Comments("p1")
	require.Len(t, comments, 2)
	mine := comments[1]
	assert.Equal(t, "Ship it today", mine.Content)
	assert.Equal(t, "user-1", mine.User.ID)

	_, err = executeCmd(t, f.app, "comments", "edit", "org-1", "p1", mine.ID, "Ship it tomorrow")
	require.NoError(t, err)
	assert.Equal(t, "Ship it tomorrow", f.backend.Comments("p1")[1].Content)

	_, err = executeCmd(t, f.app, "comments", "edit", "org-1", "p1", "c1", "Looks bad")
	require.Error(t, err)
	assert.Equal(t, "You can only edit your own comments", Describe(err))

	_, err = executeCmd(t, f.app, "comments", "rm", "org-1", "p1", mine.ID)
	require.NoError(t, err)
	assert.Len(t, f.backend.Comments("p1"), 1)

	_, err = executeCmd(t, f.app, "comments", "delete", "org-1", "p1", mine.ID)
	require.Error(t, err)
	assert.Equal(t, "Comment not found", Describe(err))
}

func TestMeetings(t *testing.T) {
	f := testApp(t, true)
	f.backend.AddOrganization(model.Organization{ID: "org-1", Name: "Acme", Role: model.RoleOwner})

	out, err := executeCmd(t, f.app, "meetings", "create", "org-1",
		"--title", "Standup",
		"--start", "2026-03-11 09:00",
		"--duration", "15m",
		"--participant", "user-2",
		"--link", "https://meet.test/abc",
	)
	require.NoError(t, err)
	assert.Contains(t, out, `Scheduled "Standup"`)

	meetings := f.backend.Meetings()
	require.Len(t, meetings, 1)
	start := time.Date(2026, 3, 11, 9, 0, 0, 0, time.UTC)
	assert.True(t, meetings[0].StartTime.Equal(start))
	assert.True(t, meetings[0].EndTime.Equal(start.Add(15*time.Minute)))
	assert.Equal(t, []string{"user-2"}, meetings[0].ParticipantIDs)
	assert.Equal(t, "https://meet.test/abc", meetings[0].GoogleMeetLink)
	assert.Equal(t, "Acme", meetings[0].OrgName)

	_, err = executeCmd(t, f.app, "meetings", "create", "org-1", "--title", "Later", "--start", "next tuesday")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid time")
	assert.Len(t, f.backend.Meetings(), 1)

	retro := time.Date(2026, 3, 20, 15, 0, 0, 0, time.UTC)
	f.backend.AddMeeting(model.Meeting{
		ID:        "m-retro",
		OrgID:     "org-1",
		Title:     "Retro",
		StartTime: retro,
		EndTime:   retro.Add(time.Hour),
	})

	out, err = executeCmd(t, f.app, "meetings", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "Standup")
	assert.Contains(t, out, "2026-03-11 09:00 UTC")
	assert.Contains(t, out, "Retro")

	out, err = executeCmd(t, f.app, "meetings", "list", "--from", "2026-03-15")
	require.NoError(t, err)
	assert.NotContains(t, out, "Standup")
	assert.Contains(t, out, "Retro")

	out, err = executeCmd(t, f.app, "meetings", "list", "--to", "2026-03-12T00:00:00Z")
	require.NoError(t, err)
	assert.Contains(t, out, "Standup")
	assert.NotContains(t, out, "Retro")
}

func TestParseWhen(t *testing.T) {
	want := time.Date(2026, 3, 11, 9, 30, 0, 0, time.UTC)
	for _, in := range []string{"2026-03-11T09:30:00Z", "2026-03-11T10:30:00+01:00", "2026-03-11 09:30", "2026-03-11T09:30"} {
		got, err := parseWhen(in)
		require.NoError(t, err, in)
		assert.True(t, got.Equal(want), in)
	}

	day, err := parseWhen("2026-03-11")
	require.NoError(t, err)
	assert.True(t, day.Equal(time.Date(2026, 3, 11, 0, 0, 0, 0, time.UTC)))

	_, err = parseWhen("11/03/2026")
	assert.Error(t, err)
}
