package api

import (
	"context"

	"github.com/nhle/collabtask/internal/model"
)

func orgPath(orgID string) string {
	return "/organizations/" + escape(orgID)
}

// ListOrganizations returns the organizations the user belongs to.
func (c *Client) ListOrganizations(ctx context.Context) ([]model.Organization, error) {
	var orgs []model.Organization
	if err := c.Get(ctx, "/organizations", &orgs); err != nil {
		return nil, err
	}
	return orgs, nil
}

// GetOrganization returns one organization.
func (c *Client) GetOrganization(ctx context.Context, orgID string) (*model.Organization, error) {
	var org model.Organization
	if err := c.Get(ctx, orgPath(orgID), &org); err != nil {
		return nil, err
	}
	return &org, nil
}

// CreateOrganization creates an organization owned by the current user.
func (c *Client) CreateOrganization(ctx context.Context, in model.OrganizationInput) (*model.Organization, error) {
	var org model.Organization
	if err := c.Post(ctx, "/organizations", in, &org); err != nil {
		return nil, err
	}
	return &org, nil
}

// UpdateOrganization edits an organization.
func (c *Client) UpdateOrganization(ctx context.Context, orgID string, in model.OrganizationInput) (*model.Organization, error) {
	var org model.Organization
	if err := c.Put(ctx, orgPath(orgID), in, &org); err != nil {
		return nil, err
	}
	return &org, nil
}

// DeleteOrganization deletes an organization.
func (c *Client) DeleteOrganization(ctx context.Context, orgID string) error {
	return c.Delete(ctx, orgPath(orgID), nil)
}

// ListMembers returns the members of an organization.
func (c *Client) ListMembers(ctx context.Context, orgID string) ([]model.OrganizationMember, error) {
	var members []model.OrganizationMember
	if err := c.Get(ctx, orgPath(orgID)+"/members", &members); err != nil {
		return nil, err
	}
	return members, nil
}

// InviteMember invites a user by email. The invitee receives an org_invite
// notification.
func (c *Client) InviteMember(ctx context.Context, orgID string, in model.InviteMemberInput) error {
	return c.Post(ctx, orgPath(orgID)+"/members", in, nil)
}

// RemoveMember removes a user from an organization.
func (c *Client) RemoveMember(ctx context.Context, orgID, userID string) error {
	return c.Delete(ctx, orgPath(orgID)+"/members/"+escape(userID), nil)
}

// UpdateMemberRole changes a member's role.
func (c *Client) UpdateMemberRole(ctx context.Context, orgID, userID, role string) error {
	body := map[string]string{"role": role}
	return c.Put(ctx, orgPath(orgID)+"/members/"+escape(userID)+"/role", body, nil)
}

// LeaveOrganization removes the current user from an organization.
func (c *Client) LeaveOrganization(ctx context.Context, orgID string) error {
	return c.Delete(ctx, orgPath(orgID)+"/leave", nil)
}

// OrganizationAnalytics returns summary counts for an organization.
func (c *Client) OrganizationAnalytics(ctx context.Context, orgID string) (*model.OrganizationAnalytics, error) {
	var out model.OrganizationAnalytics
	if err := c.Get(ctx, orgPath(orgID)+"/analytics", &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// AcceptInvitation accepts a pending organization invitation.
func (c *Client) AcceptInvitation(ctx context.Context, orgID string) error {
	return c.Post(ctx, orgPath(orgID)+"/invitations/accept", struct{}{}, nil)
}

// RejectInvitation declines a pending organization invitation.
func (c *Client) RejectInvitation(ctx context.Context, orgID string) error {
	return c.Post(ctx, orgPath(orgID)+"/invitations/reject", struct{}{}, nil)
}
