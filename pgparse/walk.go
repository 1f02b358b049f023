package pgparse

import (
	pg_query "github.com/pganalyze/pg_query_go/v6"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/reflect/protoreflect"
)

// Visitor is called for every Node in pre-order. Returning false skips
// the node's children.
type Visitor func(n *pg_query.Node) bool

// Walk traverses the AST rooted at n. The tree is strictly downward;
// there are no cycles by construction.
func Walk(n *pg_query.Node, visit Visitor) {
	if n == nil {
		return
	}
	if !visit(n) {
		return
	}
	walkMessage(n.ProtoReflect(), visit)
}

func walkMessage(m protoreflect.Message, visit Visitor) {
	m.Range(func(fd protoreflect.FieldDescriptor, v protoreflect.Value) bool {
		switch {
		case fd.IsList() && fd.Kind() == protoreflect.MessageKind:
			list := v.List()
			for i := 0; i < list.Len(); i++ {
				walkChild(list.Get(i).Message(), visit)
			}
		case fd.Kind() == protoreflect.MessageKind && !fd.IsMap():
			walkChild(v.Message(), visit)
		}
		return true
	})
}

func walkChild(m protoreflect.Message, visit Visitor) {
	if n, ok := m.Interface().(*pg_query.Node); ok {
		Walk(n, visit)
		return
	}
	// non-Node intermediate message (RawStmt, RangeVar, ColumnDef, ...)
	walkMessage(m, visit)
}

// KindOf returns the statement-kind tag of a node, e.g. "AlterTableStmt"
// or "SelectStmt". Empty for an unset node.
func KindOf(n *pg_query.Node) string {
	if n == nil {
		return ""
	}
	m := n.ProtoReflect()
	fd := m.WhichOneof(m.Descriptor().Oneofs().Get(0))
	if fd == nil {
		return ""
	}
	return string(fd.Message().Name())
}

// KindsIn collects the set of node kinds present in the tree rooted at n.
// The analyser intersects this with each rule's declared triggers.
func KindsIn(n *pg_query.Node) map[string]struct{} {
	kinds := make(map[string]struct{})
	Walk(n, func(n *pg_query.Node) bool {
		if k := KindOf(n); k != "" {
			kinds[k] = struct{}{}
		}
		return true
	})
	return kinds
}

// ShiftLocations rebases every `location` and `stmt_location` field in
// the message tree by delta. Negative stored locations mean "unknown"
// and are left alone.
func ShiftLocations(m protoreflect.Message, delta int32) {
	if delta == 0 {
		return
	}

	// Location fields must be read through the descriptor: proto3 does
	// not populate zero values, and location 0 is a real position.
	fields := m.Descriptor().Fields()
	for i := 0; i < fields.Len(); i++ {
		fd := fields.Get(i)
		if fd.Kind() == protoreflect.Int32Kind && !fd.IsList() && isLocationField(fd) {
			if loc := int32(m.Get(fd).Int()); loc >= 0 {
				m.Set(fd, protoreflect.ValueOfInt32(loc+delta))
			}
		}
	}

	m.Range(func(fd protoreflect.FieldDescriptor, v protoreflect.Value) bool {
		switch {
		case fd.IsList() && fd.Kind() == protoreflect.MessageKind:
			list := v.List()
			for i := 0; i < list.Len(); i++ {
				ShiftLocations(list.Get(i).Message(), delta)
			}
		case fd.Kind() == protoreflect.MessageKind && !fd.IsMap():
			ShiftLocations(v.Message(), delta)
		}
		return true
	})
}

func isLocationField(fd protoreflect.FieldDescriptor) bool {
	name := fd.Name()
	return name == "location" || name == "stmt_location"
}

// Cardinality of a child edge in the visitor contract.
type Cardinality int

const (
	One Cardinality = iota
	Optional
	Many
)

// Edge describes one child edge of an AST variant: the field name and
// how many children it can hold. Rules are written against this
// contract, not against library internals.
type Edge struct {
	Name        string
	Cardinality Cardinality
}

// Edges enumerates the child edges of a variant message. Scalar fields
// are not edges; message-valued fields are Optional (proto3 presence)
// and repeated message fields are Many.
func Edges(msg proto.Message) []Edge {
	var edges []Edge
	fields := msg.ProtoReflect().Descriptor().Fields()
	for i := 0; i < fields.Len(); i++ {
		fd := fields.Get(i)
		if fd.Kind() != protoreflect.MessageKind || fd.IsMap() {
			continue
		}
		card := Optional
		if fd.IsList() {
			card = Many
		}
		edges = append(edges, Edge{Name: string(fd.Name()), Cardinality: card})
	}
	return edges
}
