package model

import (
	"encoding/json"
	"fmt"
	"time"
)

// NotificationType tags a notification and selects its metadata variant.
type NotificationType string

const (
	NotificationOrgInvite NotificationType = "org_invite"
	NotificationMeeting   NotificationType = "meeting"
	NotificationChat      NotificationType = "chat"
)

// Notification is an alert delivered to the signed-in user, either by a
// paginated fetch or over the push channel.
type Notification struct {
	// ID is the server-assigned identifier and the de-duplication key.
	ID string

	// Type selects the concrete Metadata variant.
	Type NotificationType

	Title   string
	Message string

	// Metadata is the type-specific payload. It is never nil after decoding.
	Metadata Metadata

	// Read only ever moves from false to true on the client.
	Read bool

	// CreatedAt is nil when the server omitted it.
	CreatedAt *time.Time
}

// Metadata is the tagged union of notification payloads.
type Metadata interface {
	Kind() NotificationType
}

// OrgInviteMetadata accompanies an invitation to join an organization.
type OrgInviteMetadata struct {
	OrgID        string `json:"org_id,omitempty"`
	OrgName      string `json:"org_name,omitempty"`
	InviterName  string `json:"inviter_name,omitempty"`
	MembershipID string `json:"membership_id,omitempty"`
}

func (OrgInviteMetadata) Kind() NotificationType { return NotificationOrgInvite }

// MeetingMetadata accompanies a newly scheduled meeting.
type MeetingMetadata struct {
	OrgID          string `json:"org_id,omitempty"`
	OrgName        string `json:"org_name,omitempty"`
	MeetingID      string `json:"meeting_id,omitempty"`
	Title          string `json:"title,omitempty"`
	StartTime      string `json:"start_time,omitempty"`
	EndTime        string `json:"end_time,omitempty"`
	GoogleMeetLink string `json:"google_meet_link,omitempty"`
	CreatedByName  string `json:"created_by_name,omitempty"`
}

func (MeetingMetadata) Kind() NotificationType { return NotificationMeeting }

// ChatMetadata accompanies a project chat message.
type ChatMetadata struct {
	OrgID          string `json:"org_id,omitempty"`
	ProjectID      string `json:"project_id,omitempty"`
	ProjectName    string `json:"project_name,omitempty"`
	SenderID       string `json:"sender_id,omitempty"`
	SenderName     string `json:"sender_name,omitempty"`
	MessagePreview string `json:"message_preview,omitempty"`
}

func (ChatMetadata) Kind() NotificationType { return NotificationChat }

// UnknownMetadata carries the payload of a type this client does not know.
type UnknownMetadata struct {
	Type   NotificationType
	Fields map[string]any
}

func (m UnknownMetadata) Kind() NotificationType { return m.Type }

// notificationWire is the JSON shape used by both the REST list and the
// push channel.
type notificationWire struct {
	ID        string           `json:"id"`
	Type      NotificationType `json:"type"`
	Title     string           `json:"title"`
	Message   string           `json:"message"`
	Metadata  json.RawMessage  `json:"metadata,omitempty"`
	Read      bool             `json:"read"`
	CreatedAt *time.Time       `json:"created_at"`
}

// UnmarshalJSON decodes the wire form and resolves Metadata by Type.
func (n *Notification) UnmarshalJSON(data []byte) error {
	var w notificationWire
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}

	meta, err := DecodeMetadata(w.Type, w.Metadata)
	if err != nil {
		return fmt.Errorf("decoding metadata of notification %s: %w", w.ID, err)
	}

	*n = Notification{
		ID:        w.ID,
		Type:      w.Type,
		Title:     w.Title,
		Message:   w.Message,
		Metadata:  meta,
		Read:      w.Read,
		CreatedAt: w.CreatedAt,
	}
	return nil
}

// MarshalJSON encodes n in the wire form.
func (n Notification) MarshalJSON() ([]byte, error) {
	meta, err := EncodeMetadata(n.Metadata)
	if err != nil {
		return nil, err
	}
	return json.Marshal(notificationWire{
		ID:        n.ID,
		Type:      n.Type,
		Title:     n.Title,
		Message:   n.Message,
		Metadata:  meta,
		Read:      n.Read,
		CreatedAt: n.CreatedAt,
	})
}

// DecodeMetadata resolves a raw metadata payload into the variant for t.
// Empty or null payloads decode to the zero value of the variant.
func DecodeMetadata(t NotificationType, raw json.RawMessage) (Metadata, error) {
	empty := len(raw) == 0 || string(raw) == "null"

	switch t {
	case NotificationOrgInvite:
		var m OrgInviteMetadata
		if !empty {
			if err := json.Unmarshal(raw, &m); err != nil {
				return nil, err
			}
		}
		return m, nil
	case NotificationMeeting:
		var m MeetingMetadata
		if !empty {
			if err := json.Unmarshal(raw, &m); err != nil {
				return nil, err
			}
		}
		return m, nil
	case NotificationChat:
		var m ChatMetadata
		if !empty {
			if err := json.Unmarshal(raw, &m); err != nil {
				return nil, err
			}
		}
		return m, nil
	default:
		m := UnknownMetadata{Type: t, Fields: map[string]any{}}
		if !empty {
			if err := json.Unmarshal(raw, &m.Fields); err != nil {
				return nil, err
			}
		}
		return m, nil
	}
}

// EncodeMetadata is the inverse of DecodeMetadata.
func EncodeMetadata(m Metadata) (json.RawMessage, error) {
	switch v := m.(type) {
	case nil:
		return json.RawMessage("{}"), nil
	case UnknownMetadata:
		if v.Fields == nil {
			return json.RawMessage("{}"), nil
		}
		return json.Marshal(v.Fields)
	default:
		return json.Marshal(v)
	}
}

// Pagination describes the page returned by a list endpoint.
type Pagination struct {
	Page       int `json:"page"`
	PageSize   int `json:"page_size"`
	Total      int `json:"total"`
	TotalPages int `json:"total_pages"`
}

// NotificationPage is the payload of GET /notifications.
type NotificationPage struct {
	Notifications []Notification `json:"notifications"`
	Pagination    Pagination     `json:"pagination"`
}
