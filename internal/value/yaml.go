package value

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

// UnmarshalYAML decodes a YAML node into a Value, mirroring the teacher's
// habit of accepting either scalar or structured forms in one field
// (settings.RulePattern.UnmarshalYAML, settings.go:375-386) but generalised
// to the full Value sum rather than one ad-hoc struct.
func (v *Value) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.ScalarNode:
		return unmarshalScalar(node, v)
	case yaml.SequenceNode:
		vs := make([]Value, 0, len(node.Content))
		for _, c := range node.Content {
			var cv Value
			if err := cv.UnmarshalYAML(c); err != nil {
				return err
			}
			vs = append(vs, cv)
		}
		*v = Array(vs)
		return nil
	case yaml.MappingNode:
		obj := NewObject()
		for i := 0; i+1 < len(node.Content); i += 2 {
			key := node.Content[i].Value
			var cv Value
			if err := cv.UnmarshalYAML(node.Content[i+1]); err != nil {
				return err
			}
			obj.Set(key, cv)
		}
		*v = FromObject(obj)
		return nil
	case yaml.AliasNode:
		return v.UnmarshalYAML(node.Alias)
	default:
		*v = Null()
		return nil
	}
}

func unmarshalScalar(node *yaml.Node, v *Value) error {
	if node.Tag == "!!null" || (node.Tag == "" && node.Value == "") {
		*v = Null()
		return nil
	}
	var raw interface{}
	if err := node.Decode(&raw); err != nil {
		return err
	}
	switch t := raw.(type) {
	case nil:
		*v = Null()
	case bool:
		*v = Bool(t)
	case int:
		*v = Int64(int64(t))
	case int64:
		*v = Int64(t)
	case uint64:
		*v = UInt64(t)
	case float64:
		*v = Float64(t)
	case string:
		*v = String(t)
	default:
		*v = String(node.Value)
	}
	return nil
}

// MarshalYAML renders the Value back to a plain interface{} tree for
// yaml.v3 to encode, preserving Object insertion order via yaml.Node.
func (v Value) MarshalYAML() (interface{}, error) {
	switch v.kind {
	case KindNull:
		return nil, nil
	case KindBool:
		return v.b, nil
	case KindInt64:
		return v.i, nil
	case KindUInt64:
		return v.u, nil
	case KindFloat64:
		return v.f, nil
	case KindString:
		return v.s, nil
	case KindArray:
		out := make([]interface{}, 0, len(v.arr))
		for _, e := range v.arr {
			o, err := e.MarshalYAML()
			if err != nil {
				return nil, err
			}
			out = append(out, o)
		}
		return out, nil
	case KindObject:
		node := &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
		for _, k := range v.obj.Keys() {
			vv, _ := v.obj.Get(k)
			valOut, err := vv.MarshalYAML()
			if err != nil {
				return nil, err
			}
			keyNode := &yaml.Node{Kind: yaml.ScalarNode, Value: k}
			valNode := &yaml.Node{}
			if err := valNode.Encode(valOut); err != nil {
				return nil, err
			}
			node.Content = append(node.Content, keyNode, valNode)
		}
		return node, nil
	default:
		return nil, fmt.Errorf("value: unknown kind %v", v.kind)
	}
}
