package value

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
)

// MarshalJSON renders the Value tree as standard JSON. Int64/UInt64/Float64
// all render as JSON numbers; the Int64-vs-UInt64 distinction only matters
// on the way back in (see UnmarshalJSON).
func (v Value) MarshalJSON() ([]byte, error) {
	switch v.kind {
	case KindNull:
		return []byte("null"), nil
	case KindBool:
		return json.Marshal(v.b)
	case KindInt64:
		return []byte(strconv.FormatInt(v.i, 10)), nil
	case KindUInt64:
		return []byte(strconv.FormatUint(v.u, 10)), nil
	case KindFloat64:
		return json.Marshal(v.f)
	case KindString:
		return json.Marshal(v.s)
	case KindArray:
		var buf bytes.Buffer
		buf.WriteByte('[')
		for i, e := range v.arr {
			if i > 0 {
				buf.WriteByte(',')
			}
			b, err := e.MarshalJSON()
			if err != nil {
				return nil, err
			}
			buf.Write(b)
		}
		buf.WriteByte(']')
		return buf.Bytes(), nil
	case KindObject:
		var buf bytes.Buffer
		buf.WriteByte('{')
		for i, k := range v.obj.Keys() {
			if i > 0 {
				buf.WriteByte(',')
			}
			kb, err := json.Marshal(k)
			if err != nil {
				return nil, err
			}
			buf.Write(kb)
			buf.WriteByte(':')
			vv, _ := v.obj.Get(k)
			vb, err := vv.MarshalJSON()
			if err != nil {
				return nil, err
			}
			buf.Write(vb)
		}
		buf.WriteByte('}')
		return buf.Bytes(), nil
	default:
		return nil, fmt.Errorf("value: unknown kind %v", v.kind)
	}
}

// UnmarshalJSON decodes JSON into a Value, preferring UInt64 for integers
// that overflow int64 (spec.md section 3: "UInt64 as the preferred
// unsigned form"), Int64 for other integers, Float64 otherwise.
func (v *Value) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var raw interface{}
	if err := dec.Decode(&raw); err != nil {
		return err
	}
	out, err := fromJSONAny(raw)
	if err != nil {
		return err
	}
	*v = out
	return nil
}

func fromJSONAny(raw interface{}) (Value, error) {
	switch t := raw.(type) {
	case nil:
		return Null(), nil
	case bool:
		return Bool(t), nil
	case json.Number:
		return numberToValue(t), nil
	case string:
		return String(t), nil
	case []interface{}:
		vs := make([]Value, 0, len(t))
		for _, e := range t {
			cv, err := fromJSONAny(e)
			if err != nil {
				return Value{}, err
			}
			vs = append(vs, cv)
		}
		return Array(vs), nil
	case map[string]interface{}:
		obj := NewObject()
		for k, e := range t {
			cv, err := fromJSONAny(e)
			if err != nil {
				return Value{}, err
			}
			obj.Set(k, cv)
		}
		return FromObject(obj), nil
	default:
		return Value{}, fmt.Errorf("value: unsupported JSON type %T", raw)
	}
}

func numberToValue(n json.Number) Value {
	s := string(n)
	if i, err := strconv.ParseInt(s, 10, 64); err == nil {
		return Int64(i)
	}
	if u, err := strconv.ParseUint(s, 10, 64); err == nil {
		return UInt64(u)
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return Float64(math.NaN())
	}
	return Float64(f)
}
