package core

import (
	"fmt"
)

// SchemaOperation represents a change between two schemas
type SchemaOperation struct {
	Type       string // "add_collection", "drop_collection", "add_field", "drop_field", "change_type"
	Collection string
	Field      string
	From, To   string // field types for change_type
	Danger     bool   // true if sentences that worked before may now translate differently
}

func (op SchemaOperation) String() string {
	switch op.Type {
	case "add_collection", "drop_collection":
		return fmt.Sprintf("%s %s", op.Type, op.Collection)
	case "drop_field":
		return fmt.Sprintf("%s %s.%s %s", op.Type, op.Collection, op.Field, op.From)
	case "change_type":
		return fmt.Sprintf("%s %s.%s %s -> %s", op.Type, op.Collection, op.Field, op.From, op.To)
	default:
		return fmt.Sprintf("%s %s.%s %s", op.Type, op.Collection, op.Field, op.To)
	}
}

// SchemaDiff computes the operations that turn current into expected.
// Collections and fields are reported in the order of the schema they
// come from, additions before drops.
func SchemaDiff(current, expected *Schema) []SchemaOperation {
	var ops []SchemaOperation

	for _, exp := range expected.Collections {
		cur := current.Collection(exp.Name)
		if cur == nil {
			ops = append(ops, SchemaOperation{
				Type:       "add_collection",
				Collection: exp.Name,
			})
			for _, f := range exp.Fields {
				ops = append(ops, SchemaOperation{
					Type:       "add_field",
					Collection: exp.Name,
					Field:      f.Name,
					To:         f.Type,
				})
			}
			continue
		}

		for _, f := range exp.Fields {
			typ, ok := cur.Type(f.Name)
			switch {
			case !ok:
				ops = append(ops, SchemaOperation{
					Type:       "add_field",
					Collection: exp.Name,
					Field:      f.Name,
					To:         f.Type,
				})
			case typ != f.Type:
				ops = append(ops, SchemaOperation{
					Type:       "change_type",
					Collection: exp.Name,
					Field:      f.Name,
					From:       typ,
					To:         f.Type,
					Danger:     true,
				})
			}
		}
	}

	for _, cur := range current.Collections {
		exp := expected.Collection(cur.Name)
		if exp == nil {
			ops = append(ops, SchemaOperation{
				Type:       "drop_collection",
				Collection: cur.Name,
				Danger:     true,
			})
			continue
		}
		for _, f := range cur.Fields {
			if !exp.Has(f.Name) {
				ops = append(ops, SchemaOperation{
					Type:       "drop_field",
					Collection: cur.Name,
					Field:      f.Name,
					From:       f.Type,
					Danger:     true,
				})
			}
		}
	}

	return ops
}
