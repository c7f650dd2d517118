package resource

import (
	"fmt"
	"strings"
)

// Operation names a verb the engine can drive for a schema.
type Operation string

// Operations understood by the capability gate.
const (
	OpCreate Operation = "create"
	OpFetch  Operation = "fetch"
	OpCommit Operation = "commit"
	OpDelete Operation = "delete"
	OpList   Operation = "list"
	OpHead   Operation = "head"
)

// AllOperations lists every operation in declaration order.
var AllOperations = []Operation{OpCreate, OpFetch, OpCommit, OpDelete, OpList, OpHead}

// Capabilities is an immutable set of permitted operations, sealed when the
// schema is defined.
type Capabilities uint8

const (
	capCreate Capabilities = 1 << iota
	capFetch
	capCommit
	capDelete
	capList
	capHead
)

// Common capability sets.
const (
	CRUD     = capCreate | capFetch | capCommit | capDelete | capList
	ReadOnly = capFetch | capList
)

// Allow builds a capability set from operations.
func Allow(ops ...Operation) Capabilities {
	var caps Capabilities

	for _, op := range ops {
		caps |= op.bit()
	}

	return caps
}

// With returns a copy of the set that also permits ops.
func (c Capabilities) With(ops ...Operation) Capabilities {
	return c | Allow(ops...)
}

// Has reports whether op is in the set.
func (c Capabilities) Has(op Operation) bool {
	bit := op.bit()

	return bit != 0 && c&bit == bit
}

// Operations returns the permitted operations in declaration order.
func (c Capabilities) Operations() []Operation {
	ops := make([]Operation, 0, len(AllOperations))

	for _, op := range AllOperations {
		if c.Has(op) {
			ops = append(ops, op)
		}
	}

	return ops
}

// String renders the set as a comma separated list.
func (c Capabilities) String() string {
	names := make([]string, 0, len(AllOperations))
	for _, op := range c.Operations() {
		names = append(names, string(op))
	}

	return strings.Join(names, ",")
}

func (op Operation) bit() Capabilities {
	switch op {
	case OpCreate:
		return capCreate
	case OpFetch:
		return capFetch
	case OpCommit:
		return capCommit
	case OpDelete:
		return capDelete
	case OpList:
		return capList
	case OpHead:
		return capHead
	default:
		return 0
	}
}

// CheckAllowed is the capability gate. It runs before path resolution and
// before any transport call.
func CheckAllowed(schema *Schema, op Operation) error {
	if schema.Supports(op) {
		return nil
	}

	return newError(ErrUnsupportedOperation, schema.Name(), op, "",
		fmt.Errorf("schema permits only [%s]", schema.Capabilities()))
}
