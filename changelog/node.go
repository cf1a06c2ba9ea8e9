package changelog

import (
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"golang.org/x/text/encoding/htmlindex"
	"gopkg.in/yaml.v3"
)

// node is the format-independent form of a changelog element. XML elements map
// one to one; YAML mappings become nodes whose scalar entries are attributes.
type node struct {
	Name     string
	Attrs    map[string]string
	Text     string
	Children []*node
}

func (n *node) attr(name string) string {
	return strings.TrimSpace(n.Attrs[name])
}

func (n *node) boolAttr(name string) (*bool, error) {
	raw := n.attr(name)
	if raw == "" {
		return nil, nil
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return nil, fmt.Errorf("invalid value %q for %s on %s", raw, name, n.Name)
	}
	return &v, nil
}

// text returns the element body, or the attribute of the same name YAML uses instead.
func (n *node) text(name string) string {
	if t := strings.TrimSpace(n.Text); t != "" {
		return n.Text
	}
	return n.Attrs[name]
}

// elements returns the children with YAML container entries such as "changes" expanded.
func (n *node) elements(containers ...string) []*node {
	var out []*node
	for _, child := range n.Children {
		if isOneOf(child.Name, containers) {
			out = append(out, child.elements(containers...)...)
			continue
		}
		out = append(out, child)
	}
	return out
}

func isOneOf(s string, list []string) bool {
	for _, v := range list {
		if s == v {
			return true
		}
	}
	return false
}

func parseXML(data []byte) (*node, error) {
	dec := xml.NewDecoder(bytes.NewReader(data))
	dec.CharsetReader = func(label string, input io.Reader) (io.Reader, error) {
		enc, err := htmlindex.Get(label)
		if err != nil {
			return nil, err
		}
		return enc.NewDecoder().Reader(input), nil
	}

	var root *node
	var stack []*node
	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to parse xml: %w", err)
		}
		switch t := tok.(type) {
		case xml.StartElement:
			n := &node{Name: t.Name.Local, Attrs: map[string]string{}}
			for _, a := range t.Attr {
				if a.Name.Space == "" && a.Name.Local != "xmlns" {
					n.Attrs[a.Name.Local] = a.Value
				}
			}
			if len(stack) == 0 {
				if root != nil {
					return nil, errors.New("failed to parse xml: more than one root element")
				}
				root = n
			} else {
				parent := stack[len(stack)-1]
				parent.Children = append(parent.Children, n)
			}
			stack = append(stack, n)
		case xml.EndElement:
			stack = stack[:len(stack)-1]
		case xml.CharData:
			if len(stack) > 0 {
				stack[len(stack)-1].Text += string(t)
			}
		}
	}
	if root == nil {
		return nil, errors.New("failed to parse xml: empty document")
	}
	return root, nil
}

func parseYAML(data []byte) (*node, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse yaml: %w", err)
	}
	if doc.Kind != yaml.DocumentNode || len(doc.Content) == 0 {
		return nil, errors.New("failed to parse yaml: empty document")
	}
	top := doc.Content[0]
	if top.Kind != yaml.MappingNode || len(top.Content) != 2 {
		return nil, fmt.Errorf("failed to parse yaml: line %d: expected a single top-level key", top.Line)
	}
	return convertYAML(top.Content[0].Value, top.Content[1])
}

// convertYAML turns a YAML value into a node named name.
//
// Scalar mapping entries become attributes and other entries child nodes.
// Sequence items that are single-key mappings with a non-scalar value become
// child nodes named by their key; scalar entries of other items become
// attributes of the sequence's owner, so "- onFail: HALT" works as in XML.
func convertYAML(name string, v *yaml.Node) (*node, error) {
	if v.Kind == yaml.AliasNode {
		return convertYAML(name, v.Alias)
	}

	n := &node{Name: name, Attrs: map[string]string{}}
	switch v.Kind {
	case yaml.ScalarNode:
		n.Text = v.Value
	case yaml.MappingNode:
		if err := addYAMLEntries(n, v); err != nil {
			return nil, err
		}
	case yaml.SequenceNode:
		for _, item := range v.Content {
			if item.Kind == yaml.AliasNode {
				item = item.Alias
			}
			if item.Kind != yaml.MappingNode {
				return nil, fmt.Errorf("line %d: expected a mapping in %s", item.Line, name)
			}
			if len(item.Content) == 2 && item.Content[1].Kind != yaml.ScalarNode {
				child, err := convertYAML(item.Content[0].Value, item.Content[1])
				if err != nil {
					return nil, err
				}
				n.Children = append(n.Children, child)
				continue
			}
			if err := addYAMLEntries(n, item); err != nil {
				return nil, err
			}
		}
	}
	return n, nil
}

func addYAMLEntries(n *node, mapping *yaml.Node) error {
	for i := 0; i+1 < len(mapping.Content); i += 2 {
		key, val := mapping.Content[i].Value, mapping.Content[i+1]
		if val.Kind == yaml.ScalarNode {
			n.Attrs[key] = val.Value
			continue
		}
		child, err := convertYAML(key, val)
		if err != nil {
			return err
		}
		n.Children = append(n.Children, child)
	}
	return nil
}
