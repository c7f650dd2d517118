package services

import (
	"context"
	"fmt"

	"github.com/fivetwenty-io/resourcekit/pkg/resource"
)

// Zone is a DNS zone.
type Zone struct {
	*resource.Entity
}

// Name returns the zone name, with trailing dot.
func (z Zone) Name() string { return z.String("name") }

// Email returns the zone contact.
func (z Zone) Email() string { return z.String("email") }

// TTL returns the default TTL.
func (z Zone) TTL() int64 { return z.Int("ttl") }

// Serial returns the SOA serial.
func (z Zone) Serial() int64 { return z.Int("serial") }

// Status returns the zone status.
func (z Zone) Status() string { return z.String("status") }

// ZoneCreateRequest describes a new zone.
type ZoneCreateRequest struct {
	Name        string
	Email       string
	TTL         int
	Description string
}

func (r *ZoneCreateRequest) attributes() map[string]any {
	attrs := map[string]any{"name": r.Name, "email": r.Email}
	setIfNotEmpty(attrs, "description", r.Description)

	if r.TTL > 0 {
		attrs["ttl"] = r.TTL
	}

	return attrs
}

// ZoneListOptions filters a zone listing.
type ZoneListOptions struct {
	Name    string `url:"name,omitempty"`
	Email   string `url:"email,omitempty"`
	Status  string `url:"status,omitempty"`
	Type    string `url:"type,omitempty"`
	SortKey string `url:"sort_key,omitempty"`
	SortDir string `url:"sort_dir,omitempty"`
	Limit   int    `url:"limit,omitempty"`
}

// ZonesClient manages DNS zones.
type ZonesClient struct {
	*Client[Zone]
}

// NewZonesClient creates a zones client.
func NewZonesClient(session *resource.Session) *ZonesClient {
	return &ZonesClient{newClient(session, ZoneSchema, func(e *resource.Entity) Zone { return Zone{e} })}
}

// Create creates a zone.
func (c *ZonesClient) Create(ctx context.Context, request *ZoneCreateRequest, opts ...resource.CallOption) (Zone, error) {
	return c.CreateFrom(ctx, request.attributes(), opts...)
}

// ListZones lists zones matching options.
func (c *ZonesClient) ListZones(ctx context.Context, options *ZoneListOptions, opts ...resource.CallOption) *Iterator[Zone] {
	return c.ListWith(ctx, options, opts...)
}

// Recordset is a set of records of one name and type within a zone.
type Recordset struct {
	*resource.Entity
}

// ZoneID returns the parent zone.
func (r Recordset) ZoneID() string { return r.String("zone_id") }

// Name returns the record name.
func (r Recordset) Name() string { return r.String("name") }

// Type returns the record type.
func (r Recordset) Type() string { return r.String("type") }

// TTL returns the recordset TTL.
func (r Recordset) TTL() int64 { return r.Int("ttl") }

// Records returns the record data in service order.
func (r Recordset) Records() []string {
	values := r.List("records")
	records := make([]string, 0, len(values))

	for _, value := range values {
		records = append(records, fmt.Sprint(value))
	}

	return records
}

// RecordsetCreateRequest describes a new recordset.
type RecordsetCreateRequest struct {
	Name    string
	Type    string
	Records []string
	TTL     int
}

func (r *RecordsetCreateRequest) attributes(zoneID string) map[string]any {
	records := make([]any, 0, len(r.Records))
	for _, record := range r.Records {
		records = append(records, record)
	}

	attrs := map[string]any{
		"zone_id": zoneID,
		"name":    r.Name,
		"type":    r.Type,
		"records": records,
	}

	if r.TTL > 0 {
		attrs["ttl"] = r.TTL
	}

	return attrs
}

// RecordsetListOptions filters a recordset listing.
type RecordsetListOptions struct {
	Name   string `url:"name,omitempty"`
	Type   string `url:"type,omitempty"`
	Data   string `url:"data,omitempty"`
	Status string `url:"status,omitempty"`
	Limit  int    `url:"limit,omitempty"`
}

// RecordsetsClient manages the recordsets of zones.
type RecordsetsClient struct {
	*Client[Recordset]
}

// NewRecordsetsClient creates a recordsets client.
func NewRecordsetsClient(session *resource.Session) *RecordsetsClient {
	return &RecordsetsClient{newClient(session, RecordsetSchema, func(e *resource.Entity) Recordset { return Recordset{e} })}
}

func inZone(zoneID string, opts []resource.CallOption) []resource.CallOption {
	return append([]resource.CallOption{resource.PathParams(map[string]string{"zone_id": zoneID})}, opts...)
}

// Create creates a recordset in zoneID.
func (c *RecordsetsClient) Create(ctx context.Context, zoneID string, request *RecordsetCreateRequest, opts ...resource.CallOption) (Recordset, error) {
	return c.CreateFrom(ctx, request.attributes(zoneID), opts...)
}

// GetInZone fetches a recordset of zoneID.
func (c *RecordsetsClient) GetInZone(ctx context.Context, zoneID, id string, opts ...resource.CallOption) (Recordset, error) {
	return c.Get(ctx, id, inZone(zoneID, opts)...)
}

// DeleteInZone deletes a recordset of zoneID.
func (c *RecordsetsClient) DeleteInZone(ctx context.Context, zoneID, id string, opts ...resource.CallOption) error {
	return c.Delete(ctx, id, inZone(zoneID, opts)...)
}

// ListRecordsets lists the recordsets of zoneID.
func (c *RecordsetsClient) ListRecordsets(ctx context.Context, zoneID string, options *RecordsetListOptions, opts ...resource.CallOption) *Iterator[Recordset] {
	return c.ListWith(ctx, options, inZone(zoneID, opts)...)
}
