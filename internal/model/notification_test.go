package model

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNotification_DecodesKnownVariants(t *testing.T) {
	raw := `[
		{"id":"n1","type":"org_invite","title":"Invite","message":"join",
		 "metadata":{"org_id":"o1","org_name":"Acme","inviter_name":"Ann","membership_id":"m1"},
		 "read":false,"created_at":"2026-01-13T15:21:04Z"},
		{"id":"n2","type":"meeting","title":"Meet","message":"call",
		 "metadata":{"meeting_id":"mt1","google_meet_link":"https://meet.example/abc"},
		 "read":true,"created_at":null},
		{"id":"n3","type":"chat","title":"Chat","message":"hi",
		 "metadata":{"project_id":"p1","sender_name":"Bob","message_preview":"hi"},"read":false}
	]`

	var got []Notification
	require.NoError(t, json.Unmarshal([]byte(raw), &got))
	require.Len(t, got, 3)

	invite, ok := got[0].Metadata.(OrgInviteMetadata)
	require.True(t, ok)
	assert.Equal(t, "o1", invite.OrgID)
	assert.Equal(t, "m1", invite.MembershipID)
	require.NotNil(t, got[0].CreatedAt)

	meeting, ok := got[1].Metadata.(MeetingMetadata)
	require.True(t, ok)
	assert.Equal(t, "https://meet.example/abc", meeting.GoogleMeetLink)
	assert.Nil(t, got[1].CreatedAt)
	assert.True(t, got[1].Read)

	chat, ok := got[2].Metadata.(ChatMetadata)
	require.True(t, ok)
	assert.Equal(t, "Bob", chat.SenderName)
}

func TestNotification_UnknownTypeKeepsFields(t *testing.T) {
	raw := `{"id":"n9","type":"task_due","title":"Due","message":"soon","metadata":{"task_id":"t1","days":2}}`

	var n Notification
	require.NoError(t, json.Unmarshal([]byte(raw), &n))

	meta, ok := n.Metadata.(UnknownMetadata)
	require.True(t, ok)
	assert.Equal(t, NotificationType("task_due"), meta.Kind())
	assert.Equal(t, "t1", meta.Fields["task_id"])
	assert.EqualValues(t, 2, meta.Fields["days"])
}

func TestNotification_NullMetadataDecodesToZeroVariant(t *testing.T) {
	var n Notification
	require.NoError(t, json.Unmarshal([]byte(`{"id":"n1","type":"org_invite","metadata":null}`), &n))
	assert.Equal(t, OrgInviteMetadata{}, n.Metadata)
}

func TestNotification_MarshalKeepsTaggedShape(t *testing.T) {
	in := Notification{
		ID:       "n1",
		Type:     NotificationOrgInvite,
		Title:    "Invite",
		Metadata: OrgInviteMetadata{OrgID: "o1"},
	}

	data, err := json.Marshal(in)
	require.NoError(t, err)
	assert.JSONEq(t,
		`{"id":"n1","type":"org_invite","title":"Invite","message":"","metadata":{"org_id":"o1"},"read":false,"created_at":null}`,
		string(data),
	)

	var out Notification
	require.NoError(t, json.Unmarshal(data, &out))
	assert.Equal(t, in.Metadata, out.Metadata)
}

func TestTokenPair_AcceptsBothCasings(t *testing.T) {
	var snake, camel TokenPair
	require.NoError(t, json.Unmarshal([]byte(`{"access_token":"a","refresh_token":"r"}`), &snake))
	require.NoError(t, json.Unmarshal([]byte(`{"accessToken":"a","refreshToken":"r","user":{"id":"u1"}}`), &camel))

	assert.Equal(t, "a", snake.AccessToken)
	assert.Equal(t, "r", snake.RefreshToken)
	assert.Nil(t, snake.User)
	assert.Equal(t, "a", camel.AccessToken)
	require.NotNil(t, camel.User)
	assert.Equal(t, "u1", camel.User.ID)
}

func TestTaskStatus_Valid(t *testing.T) {
	for _, s := range TaskStatuses {
		assert.True(t, s.Valid(), s)
	}
	assert.False(t, TaskStatus("blocked").Valid())
}
