package services

import (
	"context"

	"github.com/fivetwenty-io/resourcekit/pkg/resource"
)

// Policy is an identity policy.
type Policy struct {
	*resource.Entity
}

// Blob returns the serialized policy document.
func (p Policy) Blob() string { return p.String("blob") }

// Type returns the MIME type of the blob.
func (p Policy) Type() string { return p.String("type") }

// ProjectID returns the owning project.
func (p Policy) ProjectID() string { return p.String("project_id") }

// UserID returns the owning user.
func (p Policy) UserID() string { return p.String("user_id") }

// RequestID returns the request id header of the last exchange.
func (p Policy) RequestID() string { return p.String("request_id") }

// PolicyCreateRequest describes a new policy.
type PolicyCreateRequest struct {
	Blob      string
	Type      string
	ProjectID string
	UserID    string
}

func (r *PolicyCreateRequest) attributes() map[string]any {
	attrs := map[string]any{"blob": r.Blob, "type": r.Type}
	setIfNotEmpty(attrs, "project_id", r.ProjectID)
	setIfNotEmpty(attrs, "user_id", r.UserID)

	return attrs
}

// PolicyListOptions filters a policy listing.
type PolicyListOptions struct {
	Type   string `url:"type,omitempty"`
	UserID string `url:"user_id,omitempty"`
	Limit  int    `url:"limit,omitempty"`
}

// PoliciesClient manages identity policies.
type PoliciesClient struct {
	*Client[Policy]
}

// NewPoliciesClient creates a policies client.
func NewPoliciesClient(session *resource.Session) *PoliciesClient {
	return &PoliciesClient{newClient(session, PolicySchema, func(e *resource.Entity) Policy { return Policy{e} })}
}

// Create creates a policy.
func (c *PoliciesClient) Create(ctx context.Context, request *PolicyCreateRequest, opts ...resource.CallOption) (Policy, error) {
	return c.CreateFrom(ctx, request.attributes(), opts...)
}

// ListPolicies lists policies matching options.
func (c *PoliciesClient) ListPolicies(ctx context.Context, options *PolicyListOptions, opts ...resource.CallOption) *Iterator[Policy] {
	return c.ListWith(ctx, options, opts...)
}

func setIfNotEmpty(attrs map[string]any, name, value string) {
	if value != "" {
		attrs[name] = value
	}
}
