package sdata

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/mitchellh/hashstructure/v2"
	"go.mongodb.org/mongo-driver/v2/bson"
	"gopkg.in/yaml.v3"
)

// Type tags recognized by the translator. Any other tag is kept as-is
// and treated as neither numeric nor array.
const (
	TypeInt    = "int"
	TypeFloat  = "float"
	TypeString = "string"
	TypeArray  = "array"
)

type Field struct {
	Name string `yaml:"name" json:"name"`
	Type string `yaml:"type" json:"type"`
}

// Collection is a named set of fields. Field order is the order they
// appeared in the schema document.
type Collection struct {
	Name   string  `json:"name"`
	Fields []Field `json:"fields"`

	index map[string]int
}

// Schema maps collection names to their fields, preserving document order.
// It is read-only once built.
type Schema struct {
	Collections []*Collection `json:"collections"`

	byName map[string]*Collection
}

func NewCollection(name string, fields ...Field) *Collection {
	c := &Collection{Name: name}
	for _, f := range fields {
		c.add(f)
	}
	return c
}

func (c *Collection) add(f Field) {
	if c.index == nil {
		c.index = make(map[string]int)
	}
	// a repeated key replaces the earlier type but keeps its position
	if i, ok := c.index[f.Name]; ok {
		c.Fields[i].Type = f.Type
		return
	}
	c.index[f.Name] = len(c.Fields)
	c.Fields = append(c.Fields, f)
}

// Type returns the type tag of the named field.
func (c *Collection) Type(name string) (string, bool) {
	if c == nil {
		return "", false
	}
	i, ok := c.index[name]
	if !ok {
		return "", false
	}
	return c.Fields[i].Type, true
}

func (c *Collection) Has(name string) bool {
	_, ok := c.Type(name)
	return ok
}

func (c *Collection) IsNumeric(name string) bool {
	t, ok := c.Type(name)
	return ok && IsNumericType(t)
}

func (c *Collection) IsArray(name string) bool {
	t, ok := c.Type(name)
	return ok && t == TypeArray
}

func IsNumericType(t string) bool {
	return t == TypeInt || t == TypeFloat
}

func NewSchema(colls ...*Collection) *Schema {
	s := &Schema{}
	for _, c := range colls {
		s.add(c)
	}
	return s
}

func (s *Schema) add(c *Collection) {
	if s.byName == nil {
		s.byName = make(map[string]*Collection)
	}
	if _, ok := s.byName[c.Name]; ok {
		for i := range s.Collections {
			if s.Collections[i].Name == c.Name {
				s.Collections[i] = c
			}
		}
	} else {
		s.Collections = append(s.Collections, c)
	}
	s.byName[c.Name] = c
}

// Collection returns the named collection or nil.
func (s *Schema) Collection(name string) *Collection {
	if s == nil {
		return nil
	}
	return s.byName[name]
}

func (s *Schema) Names() []string {
	names := make([]string, 0, len(s.Collections))
	for _, c := range s.Collections {
		names = append(names, c.Name)
	}
	return names
}

// Hash returns a hash of the schema contents, used to key cached translations.
func (s *Schema) Hash() uint64 {
	if s == nil {
		return 0
	}
	h, err := hashstructure.Hash(s.Collections, hashstructure.FormatV2, nil)
	if err != nil {
		return 0
	}
	return h
}

// ParseSchema reads a schema document of the shape
//
//	collection:
//	  fields:
//	    name: type
//
// JSON input is accepted as well since it is valid YAML flow syntax.
func ParseSchema(data []byte) (*Schema, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("schema: %w", err)
	}
	s := &Schema{}
	if len(doc.Content) == 0 {
		return s, nil
	}
	if err := s.UnmarshalYAML(doc.Content[0]); err != nil {
		return nil, err
	}
	return s, nil
}

// UnmarshalYAML decodes the schema from a mapping node so that key order
// survives.
func (s *Schema) UnmarshalYAML(n *yaml.Node) error {
	if n.Kind != yaml.MappingNode {
		return fmt.Errorf("schema: line %d: expected a mapping of collections", n.Line)
	}
	for i := 0; i+1 < len(n.Content); i += 2 {
		name := n.Content[i].Value
		body := n.Content[i+1]

		fields, err := fieldsNode(name, body)
		if err != nil {
			return err
		}
		c := NewCollection(name)
		if fields != nil {
			for j := 0; j+1 < len(fields.Content); j += 2 {
				c.add(Field{
					Name: fields.Content[j].Value,
					Type: fields.Content[j+1].Value,
				})
			}
		}
		s.add(c)
	}
	return nil
}

func fieldsNode(coll string, body *yaml.Node) (*yaml.Node, error) {
	if body.Kind == yaml.ScalarNode && body.ShortTag() == "!!null" {
		return nil, nil
	}
	if body.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("schema: collection %q: expected a mapping", coll)
	}
	for i := 0; i+1 < len(body.Content); i += 2 {
		if body.Content[i].Value != "fields" {
			continue
		}
		f := body.Content[i+1]
		if f.Kind == yaml.ScalarNode && f.ShortTag() == "!!null" {
			return nil, nil
		}
		if f.Kind != yaml.MappingNode {
			return nil, fmt.Errorf("schema: collection %q: fields must be a mapping", coll)
		}
		for j := 1; j < len(f.Content); j += 2 {
			if f.Content[j].Kind != yaml.ScalarNode {
				return nil, fmt.Errorf("schema: collection %q: field %q: type must be a string",
					coll, f.Content[j-1].Value)
			}
		}
		return f, nil
	}
	return nil, nil
}

// MarshalYAML writes the schema back in the same ordered shape ParseSchema reads.
func (s *Schema) MarshalYAML() (interface{}, error) {
	root := &yaml.Node{Kind: yaml.MappingNode}
	for _, c := range s.Collections {
		fields := &yaml.Node{Kind: yaml.MappingNode}
		for _, f := range c.Fields {
			fields.Content = append(fields.Content,
				&yaml.Node{Kind: yaml.ScalarNode, Value: f.Name},
				&yaml.Node{Kind: yaml.ScalarNode, Value: f.Type})
		}
		body := &yaml.Node{Kind: yaml.MappingNode, Content: []*yaml.Node{
			{Kind: yaml.ScalarNode, Value: "fields"},
			fields,
		}}
		root.Content = append(root.Content,
			&yaml.Node{Kind: yaml.ScalarNode, Value: c.Name}, body)
	}
	return root, nil
}

// Encode renders the schema as YAML.
func (s *Schema) Encode() ([]byte, error) {
	if s == nil {
		return nil, errors.New("schema: nil schema")
	}
	var b bytes.Buffer
	enc := yaml.NewEncoder(&b)
	enc.SetIndent(2)
	if err := enc.Encode(s); err != nil {
		return nil, err
	}
	if err := enc.Close(); err != nil {
		return nil, err
	}
	return b.Bytes(), nil
}

// MarshalJSON writes the schema in its wire shape with key order preserved.
func (s *Schema) MarshalJSON() ([]byte, error) {
	doc := make(bson.D, 0, len(s.Collections))
	for _, c := range s.Collections {
		fields := make(bson.D, 0, len(c.Fields))
		for _, f := range c.Fields {
			fields = append(fields, bson.E{Key: f.Name, Value: f.Type})
		}
		doc = append(doc, bson.E{Key: c.Name, Value: bson.D{{Key: "fields", Value: fields}}})
	}
	return bson.MarshalExtJSON(doc, false, false)
}

func (s *Schema) UnmarshalJSON(data []byte) error {
	ns, err := ParseSchema(data)
	if err != nil {
		return err
	}
	*s = *ns
	return nil
}
