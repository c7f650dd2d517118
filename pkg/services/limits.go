package services

import (
	"context"

	"github.com/fivetwenty-io/resourcekit/pkg/resource"
)

// Limits is the compute quota singleton of the current project.
type Limits struct {
	*resource.Entity
}

// AbsoluteLimits is the absolute quota block.
type AbsoluteLimits struct {
	*resource.Entity
}

// MaxInstances returns the instance quota.
func (a AbsoluteLimits) MaxInstances() int64 { return a.Int("max_instances") }

// InstancesUsed returns the instances in use.
func (a AbsoluteLimits) InstancesUsed() int64 { return a.Int("instances_used") }

// MaxCores returns the core quota.
func (a AbsoluteLimits) MaxCores() int64 { return a.Int("max_cores") }

// CoresUsed returns the cores in use.
func (a AbsoluteLimits) CoresUsed() int64 { return a.Int("cores_used") }

// MaxRAM returns the RAM quota in MiB.
func (a AbsoluteLimits) MaxRAM() int64 { return a.Int("max_ram") }

// RAMUsed returns the RAM in use in MiB.
func (a AbsoluteLimits) RAMUsed() int64 { return a.Int("ram_used") }

// Absolute returns the absolute limits. ok is false when the response
// carried none.
func (l Limits) Absolute() (AbsoluteLimits, bool) {
	nested := l.Nested("absolute")
	if nested == nil {
		return AbsoluteLimits{}, false
	}

	return AbsoluteLimits{nested}, true
}

// Rates returns the rate limit entries.
func (l Limits) Rates() []*resource.Entity {
	values := l.List("rate")
	rates := make([]*resource.Entity, 0, len(values))

	for _, value := range values {
		if rate, ok := value.(*resource.Entity); ok {
			rates = append(rates, rate)
		}
	}

	return rates
}

// LimitsClient reads compute limits.
type LimitsClient struct {
	session *resource.Session
}

// NewLimitsClient creates a limits client.
func NewLimitsClient(session *resource.Session) *LimitsClient {
	return &LimitsClient{session: session}
}

// Get fetches the limits singleton.
func (c *LimitsClient) Get(ctx context.Context, opts ...resource.CallOption) (Limits, error) {
	entity, err := resource.New(LimitsSchema, nil)
	if err != nil {
		return Limits{}, err
	}

	err = c.session.Fetch(ctx, entity, opts...)
	if err != nil {
		return Limits{}, err
	}

	return Limits{entity}, nil
}
