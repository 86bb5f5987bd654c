// Package jsonval holds an order-preserving JSON value type and the walkers
// used to pull text and metadata out of heterogeneous JSON documents.
package jsonval

import (
	"bytes"
	"errors"
	"strconv"
	"strings"

	jsoniter "github.com/json-iterator/go"
	"github.com/tidwall/gjson"
)

var ErrInvalidJSON = errors.New("invalid JSON")

var jsonAPI = jsoniter.ConfigCompatibleWithStandardLibrary

type Kind int

const (
	Null Kind = iota
	Bool
	Number
	String
	Array
	Object
)

func (k Kind) String() string {
	switch k {
	case Null:
		return "null"
	case Bool:
		return "bool"
	case Number:
		return "number"
	case String:
		return "string"
	case Array:
		return "array"
	case Object:
		return "object"
	}
	return "unknown"
}

// Member is one key/value pair of an object, in document order.
type Member struct {
	Key   string
	Value Value
}

// Value is a JSON value. The zero Value is null.
type Value struct {
	kind    Kind
	b       bool
	num     string // number literal as written
	str     string
	items   []Value
	members []Member
}

func NullValue() Value { return Value{} }
func BoolValue(b bool) Value { return Value{kind: Bool, b: b} }
func StringValue(s string) Value { return Value{kind: String, str: s} }
func ArrayValue(v ...Value) Value { return Value{kind: Array, items: v} }
func IntValue(n int64) Value { return Value{kind: Number, num: strconv.FormatInt(n, 10)} }
func FloatValue(f float64) Value { return Value{kind: Number, num: formatFloat(f)} }
func ObjectValue(m ...Member) Value { return Value{kind: Object, members: dedupeMembers(m)} }

func (v Value) Kind() Kind { return v.kind }
func (v Value) Items() []Value { return v.items }
func (v Value) Members() []Member { return v.members }
func (v Value) Str() string { return v.str }
func (v Value) BoolVal() bool { return v.b }
func (v Value) IsObject() bool { return v.kind == Object }
func (v Value) IsArray() bool { return v.kind == Array }

// IsInt reports whether a number was written without fraction or exponent.
func (v Value) IsInt() bool {
	if v.kind != Number {
		return false
	}
	if strings.ContainsAny(v.num, ".eE") {
		return false
	}
	_, err := strconv.ParseInt(v.num, 10, 64)
	return err == nil
}

func (v Value) Int() int64 {
	n, err := strconv.ParseInt(v.num, 10, 64)
	if err != nil {
		return int64(v.Float())
	}
	return n
}

func (v Value) Float() float64 {
	f, _ := strconv.ParseFloat(v.num, 64)
	return f
}

// Get returns the member value for key.
func (v Value) Get(key string) (Value, bool) {
	for _, m := range v.members {
		if m.Key == key {
			return m.Value, true
		}
	}
	return Value{}, false
}

// Parse decodes data keeping object members in document order.
func Parse(data []byte) (Value, error) {
	if len(bytes.TrimSpace(data)) == 0 || !gjson.ValidBytes(data) {
		return Value{}, ErrInvalidJSON
	}
	return fromResult(gjson.ParseBytes(data)), nil
}

func fromResult(r gjson.Result) Value {
	switch r.Type {
	case gjson.False:
		return BoolValue(false)
	case gjson.True:
		return BoolValue(true)
	case gjson.Number:
		return Value{kind: Number, num: strings.TrimSpace(r.Raw)}
	case gjson.String:
		return StringValue(r.Str)
	case gjson.JSON:
		if r.IsArray() {
			items := []Value{}
			r.ForEach(func(_, item gjson.Result) bool {
				items = append(items, fromResult(item))
				return true
			})
			return ArrayValue(items...)
		}
		var members []Member
		r.ForEach(func(key, item gjson.Result) bool {
			members = append(members, Member{Key: key.String(), Value: fromResult(item)})
			return true
		})
		return ObjectValue(members...)
	}
	return NullValue()
}

// dedupeMembers keeps the first position and the last value of a repeated key.
func dedupeMembers(m []Member) []Member {
	if m == nil {
		return []Member{}
	}
	idx := make(map[string]int, len(m))
	out := make([]Member, 0, len(m))
	for _, mem := range m {
		if i, ok := idx[mem.Key]; ok {
			out[i].Value = mem.Value
			continue
		}
		idx[mem.Key] = len(out)
		out = append(out, mem)
	}
	return out
}

// Scalar returns the Go value for null, bool, number and string values, and
// the recursive conversion for arrays and objects.
func (v Value) Scalar() any {
	switch v.kind {
	case Bool:
		return v.b
	case Number:
		if v.IsInt() {
			return v.Int()
		}
		return v.Float()
	case String:
		return v.str
	case Array:
		out := make([]any, len(v.items))
		for i, item := range v.items {
			out[i] = item.Scalar()
		}
		return out
	case Object:
		out := make(map[string]any, len(v.members))
		for _, m := range v.members {
			out[m.Key] = m.Value.Scalar()
		}
		return out
	}
	return nil
}

// String renders strings verbatim and everything else as compact JSON.
func (v Value) String() string {
	if v.kind == String {
		return v.str
	}
	b, _ := v.MarshalJSON()
	return string(b)
}

func (v Value) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	if err := v.write(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (v Value) write(buf *bytes.Buffer) error {
	switch v.kind {
	case Null:
		buf.WriteString("null")
	case Bool:
		buf.WriteString(strconv.FormatBool(v.b))
	case Number:
		buf.WriteString(v.num)
	case String:
		b, err := jsonAPI.Marshal(v.str)
		if err != nil {
			return err
		}
		buf.Write(b)
	case Array:
		buf.WriteByte('[')
		for i, item := range v.items {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := item.write(buf); err != nil {
				return err
			}
		}
		buf.WriteByte(']')
	case Object:
		buf.WriteByte('{')
		for i, m := range v.members {
			if i > 0 {
				buf.WriteByte(',')
			}
			k, err := jsonAPI.Marshal(m.Key)
			if err != nil {
				return err
			}
			buf.Write(k)
			buf.WriteByte(':')
			if err := m.Value.write(buf); err != nil {
				return err
			}
		}
		buf.WriteByte('}')
	}
	return nil
}

func formatFloat(f float64) string {
	s := strconv.FormatFloat(f, 'g', -1, 64)
	if !strings.ContainsAny(s, ".eE") {
		s += ".0"
	}
	return s
}
