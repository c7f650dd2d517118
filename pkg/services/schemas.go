package services

import (
	"net/http"

	"github.com/fivetwenty-io/resourcekit/pkg/resource"
)

// Service types used for endpoint discovery.
const (
	ServiceIdentity         = "identity"
	ServiceBaremetal        = "baremetal"
	ServiceDNS              = "dns"
	ServiceSharedFileSystem = "shared-file-system"
	ServiceCompute          = "compute"
)

// Microversion headers.
const (
	HeaderIronicAPIVersion = "X-OpenStack-Ironic-API-Version"
	HeaderManilaAPIVersion = "X-OpenStack-Manila-API-Version"
	HeaderRequestID        = "X-Openstack-Request-Id"
)

// PolicySchema declares identity policies.
var PolicySchema = resource.MustSchema(resource.Definition{
	Name:         "policy",
	Service:      ServiceIdentity,
	BasePath:     "/policies",
	ResourceKey:  "policy",
	ResourcesKey: "policies",
	Capabilities: resource.CRUD,
	Attributes: []resource.Attribute{
		resource.ID(),
		resource.Body("blob"),
		resource.Body("type"),
		resource.Body("project_id"),
		resource.Body("user_id"),
		resource.Body("links", resource.Typed(resource.TypeAny)),
		resource.Header("request_id", HeaderRequestID),
	},
	Query: []resource.QueryParam{
		resource.Param("type"),
		resource.Param("user_id"),
	},
})

// NodeSchema declares bare metal nodes, identified by uuid.
var NodeSchema = resource.MustSchema(resource.Definition{
	Name:               "node",
	Service:            ServiceBaremetal,
	BasePath:           "/v1/nodes",
	ResourcesKey:       "nodes",
	Capabilities:       resource.CRUD,
	MaxMicroversion:    "1.80",
	MicroversionHeader: HeaderIronicAPIVersion,
	Attributes: []resource.Attribute{
		resource.Body("uuid", resource.AsAlternateID()),
		resource.Body("name"),
		resource.Body("driver"),
		resource.Body("provision_state"),
		resource.Body("power_state"),
		resource.Body("resource_class"),
		resource.Body("maintenance", resource.Typed(resource.TypeBool)),
		resource.Body("properties", resource.Typed(resource.TypeAny)),
		resource.Body("extra", resource.Typed(resource.TypeAny)),
		resource.Body("retired", resource.Typed(resource.TypeBool), resource.Since("1.61")),
		resource.Body("created_at", resource.Typed(resource.TypeTimestamp)),
		resource.Body("updated_at", resource.Typed(resource.TypeTimestamp)),
	},
	Query: []resource.QueryParam{
		resource.Param("driver"),
		resource.Param("provision_state"),
		resource.Param("maintenance"),
		resource.Param("resource_class"),
		resource.Alias("instance", "instance_uuid"),
		resource.Param("detail"),
	},
})

// ZoneSchema declares DNS zones.
var ZoneSchema = resource.MustSchema(resource.Definition{
	Name:         "zone",
	Service:      ServiceDNS,
	BasePath:     "/v2/zones",
	ResourcesKey: "zones",
	Capabilities: resource.CRUD,
	Pagination:   resource.PaginateLink,
	NextLinkKey:  "links.next",
	Attributes: []resource.Attribute{
		resource.ID(),
		resource.Body("name"),
		resource.Body("email"),
		resource.Body("ttl", resource.Typed(resource.TypeInt)),
		resource.Body("serial", resource.Typed(resource.TypeInt)),
		resource.Body("status"),
		resource.Body("type"),
		resource.Body("description"),
		resource.Body("created_at", resource.Typed(resource.TypeTimestamp)),
		resource.Body("updated_at", resource.Typed(resource.TypeTimestamp)),
	},
	Query: []resource.QueryParam{
		resource.Param("name"),
		resource.Param("email"),
		resource.Param("status"),
		resource.Param("type"),
		resource.Param("ttl"),
		resource.Param("sort_key"),
		resource.Param("sort_dir"),
	},
})

// RecordsetSchema declares recordsets, children of a zone.
var RecordsetSchema = resource.MustSchema(resource.Definition{
	Name:         "recordset",
	Service:      ServiceDNS,
	BasePath:     "/v2/zones/%(zone_id)s/recordsets",
	ResourcesKey: "recordsets",
	Capabilities: resource.CRUD,
	CommitMethod: http.MethodPut,
	Pagination:   resource.PaginateLink,
	NextLinkKey:  "links.next",
	Attributes: []resource.Attribute{
		resource.ID(),
		resource.URI("zone_id"),
		resource.Body("name"),
		resource.Body("type"),
		resource.Body("records", resource.Typed(resource.ListOf(resource.TypeString))),
		resource.Body("ttl", resource.Typed(resource.TypeInt)),
		resource.Body("status"),
		resource.Body("description"),
	},
	Query: []resource.QueryParam{
		resource.Param("name"),
		resource.Param("type"),
		resource.Param("data"),
		resource.Param("status"),
		resource.Param("ttl"),
	},
})

// ShareSchema declares file shares.
var ShareSchema = resource.MustSchema(resource.Definition{
	Name:               "share",
	Service:            ServiceSharedFileSystem,
	BasePath:           "/shares",
	ResourceKey:        "share",
	ResourcesKey:       "shares",
	Capabilities:       resource.CRUD,
	CommitMethod:       http.MethodPut,
	MaxMicroversion:    "2.70",
	MicroversionHeader: HeaderManilaAPIVersion,
	Attributes: []resource.Attribute{
		resource.ID(),
		resource.Body("name"),
		resource.Body("description"),
		resource.Body("size", resource.Typed(resource.TypeInt)),
		resource.Body("share_proto"),
		resource.Body("share_type"),
		resource.Body("status"),
		resource.Body("availability_zone"),
		resource.Body("is_public", resource.Typed(resource.TypeBool)),
		resource.Body("metadata", resource.Typed(resource.TypeAny)),
		resource.Body("created_at", resource.Typed(resource.TypeTimestamp)),
		resource.Body("is_soft_deleted", resource.Typed(resource.TypeBool), resource.Since("2.69")),
		resource.Body("scheduled_to_be_deleted_at", resource.Typed(resource.TypeTimestamp), resource.Since("2.69")),
	},
	Query: []resource.QueryParam{
		resource.Param("name"),
		resource.Param("status"),
		resource.Param("share_type_id"),
		resource.Param("project_id"),
		resource.Param("is_public"),
		resource.Alias("soft_deleted", "is_soft_deleted"),
	},
})

// ShareExportLocationSchema declares the export locations of a share. The
// service returns them in one unpaginated response, so the list follows a
// next link that never appears.
var ShareExportLocationSchema = resource.MustSchema(resource.Definition{
	Name:               "share-export-location",
	Service:            ServiceSharedFileSystem,
	BasePath:           "/shares/%(share_id)s/export_locations",
	ResourceKey:        "export_location",
	ResourcesKey:       "export_locations",
	Capabilities:       resource.ReadOnly,
	MaxMicroversion:    "2.70",
	MicroversionHeader: HeaderManilaAPIVersion,
	Pagination:         resource.PaginateLink,
	NextLinkKey:        "export_locations_links",
	Attributes: []resource.Attribute{
		resource.ID(),
		resource.URI("share_id"),
		resource.Body("path"),
		resource.Body("share_instance_id"),
		resource.Body("is_admin_only", resource.Typed(resource.TypeBool)),
		resource.Body("preferred", resource.Typed(resource.TypeBool), resource.Since("2.14")),
	},
})

// AbsoluteLimitsSchema is the nested absolute quota block of LimitsSchema.
var AbsoluteLimitsSchema = resource.MustSchema(resource.Definition{
	Name:           "absolute-limits",
	PermissiveBody: true,
	Attributes: []resource.Attribute{
		resource.Body("max_instances", resource.Wire("maxTotalInstances"), resource.Typed(resource.TypeInt)),
		resource.Body("instances_used", resource.Wire("totalInstancesUsed"), resource.Typed(resource.TypeInt)),
		resource.Body("max_cores", resource.Wire("maxTotalCores"), resource.Typed(resource.TypeInt)),
		resource.Body("cores_used", resource.Wire("totalCoresUsed"), resource.Typed(resource.TypeInt)),
		resource.Body("max_ram", resource.Wire("maxTotalRAMSize"), resource.Typed(resource.TypeInt)),
		resource.Body("ram_used", resource.Wire("totalRAMUsed"), resource.Typed(resource.TypeInt)),
		resource.Body("max_keypairs", resource.Wire("maxTotalKeypairs"), resource.Typed(resource.TypeInt)),
		resource.Body("max_server_groups", resource.Wire("maxServerGroups"), resource.Typed(resource.TypeInt)),
	},
})

// RateLimitSchema is one entry of the rate list of LimitsSchema.
var RateLimitSchema = resource.MustSchema(resource.Definition{
	Name: "rate-limit",
	Attributes: []resource.Attribute{
		resource.Body("uri"),
		resource.Body("regex"),
		resource.Body("limit", resource.Typed(resource.TypeAny)),
	},
})

// LimitsSchema declares the compute limits singleton.
var LimitsSchema = resource.MustSchema(resource.Definition{
	Name:         "limits",
	Service:      ServiceCompute,
	BasePath:     "/limits",
	ResourceKey:  "limits",
	Capabilities: resource.Allow(resource.OpFetch),
	NoIDInPath:   true,
	Attributes: []resource.Attribute{
		resource.Body("absolute", resource.Typed(resource.NestedOf(AbsoluteLimitsSchema))),
		resource.Body("rate", resource.Typed(resource.ListOf(resource.NestedOf(RateLimitSchema)))),
	},
})
