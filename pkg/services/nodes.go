package services

import (
	"context"
	"time"

	"github.com/fivetwenty-io/resourcekit/pkg/resource"
)

// Node is a bare metal node. Its identity is the uuid field.
type Node struct {
	*resource.Entity
}

// UUID returns the node uuid.
func (n Node) UUID() string { return n.String("uuid") }

// Name returns the node name.
func (n Node) Name() string { return n.String("name") }

// Driver returns the hardware driver.
func (n Node) Driver() string { return n.String("driver") }

// ProvisionState returns the provisioning state.
func (n Node) ProvisionState() string { return n.String("provision_state") }

// PowerState returns the power state.
func (n Node) PowerState() string { return n.String("power_state") }

// Maintenance reports whether the node is in maintenance mode.
func (n Node) Maintenance() bool { return n.Bool("maintenance") }

// Retired reports the retired flag; it is only populated from 1.61 on.
func (n Node) Retired() bool { return n.Bool("retired") }

// Properties returns the node properties.
func (n Node) Properties() map[string]any { return n.Map("properties") }

// CreatedAt returns the creation time.
func (n Node) CreatedAt() time.Time {
	ts, _ := n.Time("created_at")

	return ts
}

// NodeCreateRequest describes a node to enroll.
type NodeCreateRequest struct {
	Name          string
	Driver        string
	ResourceClass string
	Properties    map[string]any
}

func (r *NodeCreateRequest) attributes() map[string]any {
	attrs := map[string]any{"driver": r.Driver}
	setIfNotEmpty(attrs, "name", r.Name)
	setIfNotEmpty(attrs, "resource_class", r.ResourceClass)

	if len(r.Properties) > 0 {
		attrs["properties"] = r.Properties
	}

	return attrs
}

// NodeListOptions filters a node listing.
type NodeListOptions struct {
	Driver         string `url:"driver,omitempty"`
	ProvisionState string `url:"provision_state,omitempty"`
	Maintenance    *bool  `url:"maintenance,omitempty"`
	ResourceClass  string `url:"resource_class,omitempty"`
	Instance       string `url:"instance,omitempty"`
	Detail         bool   `url:"detail,omitempty"`
	Limit          int    `url:"limit,omitempty"`
}

// NodesClient manages bare metal nodes.
type NodesClient struct {
	*Client[Node]
}

// NewNodesClient creates a nodes client.
func NewNodesClient(session *resource.Session) *NodesClient {
	return &NodesClient{newClient(session, NodeSchema, func(e *resource.Entity) Node { return Node{e} })}
}

// Create enrolls a node.
func (c *NodesClient) Create(ctx context.Context, request *NodeCreateRequest, opts ...resource.CallOption) (Node, error) {
	return c.CreateFrom(ctx, request.attributes(), opts...)
}

// ListNodes lists nodes matching options.
func (c *NodesClient) ListNodes(ctx context.Context, options *NodeListOptions, opts ...resource.CallOption) *Iterator[Node] {
	return c.ListWith(ctx, options, opts...)
}
