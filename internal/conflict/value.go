package conflict

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/vmihailenco/msgpack/v5"
)

// Kind tags the variant held by a Value.
type Kind int

const (
	KindAbsent Kind = iota
	KindNumber
	KindText
	KindFlag
	KindSequence
	KindStructured
)

func (k Kind) String() string {
	switch k {
	case KindAbsent:
		return "absent"
	case KindNumber:
		return "number"
	case KindText:
		return "text"
	case KindFlag:
		return "flag"
	case KindSequence:
		return "sequence"
	case KindStructured:
		return "structured"
	default:
		return "unknown"
	}
}

// Value is a tagged variant over the shapes a game-state property can take.
// The zero Value is "absent": a property that does not exist on one side.
// On the wire it maps to plain JSON/msgpack scalars, arrays and objects, so
// payloads interoperate with any peer that speaks the same message format.
type Value struct {
	kind   Kind
	num    float64
	text   string
	flag   bool
	seq    []Value
	fields map[string]Value
}

// Number builds a numeric Value.
func Number(n float64) Value { return Value{kind: KindNumber, num: n} }

// Text builds a string Value.
func Text(s string) Value { return Value{kind: KindText, text: s} }

// Flag builds a boolean Value.
func Flag(b bool) Value { return Value{kind: KindFlag, flag: b} }

// Sequence builds an ordered list Value.
func Sequence(items ...Value) Value {
	return Value{kind: KindSequence, seq: items}
}

// Structured builds an object Value from named fields.
func Structured(fields map[string]Value) Value {
	if fields == nil {
		fields = map[string]Value{}
	}
	return Value{kind: KindStructured, fields: fields}
}

// Kind reports which variant the value holds.
func (v Value) Kind() Kind { return v.kind }

// IsAbsent reports whether the value is the zero "property missing" variant.
func (v Value) IsAbsent() bool { return v.kind == KindAbsent }

// Number returns the numeric payload. Valid only for KindNumber.
func (v Value) Number() float64 { return v.num }

// Text returns the string payload. Valid only for KindText.
func (v Value) Text() string { return v.text }

// Flag returns the boolean payload. Valid only for KindFlag.
func (v Value) Flag() bool { return v.flag }

// Items returns the sequence elements. Valid only for KindSequence.
func (v Value) Items() []Value { return v.seq }

// Field looks up a direct child of a structured value.
func (v Value) Field(name string) (Value, bool) {
	if v.kind != KindStructured {
		return Value{}, false
	}
	child, ok := v.fields[name]
	return child, ok
}

// Fields returns the field map of a structured value. Callers must not
// mutate it; use WithPath to derive modified values.
func (v Value) Fields() map[string]Value {
	return v.fields
}

// Path resolves a dotted property path ("player.health") against the value.
func (v Value) Path(path string) (Value, bool) {
	cur := v
	for _, seg := range strings.Split(path, ".") {
		child, ok := cur.Field(seg)
		if !ok {
			return Value{}, false
		}
		cur = child
	}
	return cur, true
}

// WithPath returns a copy of the value with the dotted path set to child.
// Intermediate nodes are created (or replaced) with structured values, the
// same way the sync payloads treat partially-populated trees.
func (v Value) WithPath(path string, child Value) Value {
	segs := strings.Split(path, ".")
	return setPath(v, segs, child)
}

func setPath(v Value, segs []string, child Value) Value {
	if len(segs) == 0 {
		return child
	}
	fields := map[string]Value{}
	if v.kind == KindStructured {
		for k, f := range v.fields {
			fields[k] = f
		}
	}
	fields[segs[0]] = setPath(fields[segs[0]], segs[1:], child)
	return Value{kind: KindStructured, fields: fields}
}

// Equal reports deep equality between two values.
func (v Value) Equal(o Value) bool {
	if v.kind != o.kind {
		return false
	}
	switch v.kind {
	case KindAbsent:
		return true
	case KindNumber:
		return v.num == o.num
	case KindText:
		return v.text == o.text
	case KindFlag:
		return v.flag == o.flag
	case KindSequence:
		if len(v.seq) != len(o.seq) {
			return false
		}
		for i := range v.seq {
			if !v.seq[i].Equal(o.seq[i]) {
				return false
			}
		}
		return true
	case KindStructured:
		if len(v.fields) != len(o.fields) {
			return false
		}
		for k, f := range v.fields {
			of, ok := o.fields[k]
			if !ok || !f.Equal(of) {
				return false
			}
		}
		return true
	}
	return false
}

// Clone returns a deep copy.
func (v Value) Clone() Value {
	switch v.kind {
	case KindSequence:
		items := make([]Value, len(v.seq))
		for i, item := range v.seq {
			items[i] = item.Clone()
		}
		return Value{kind: KindSequence, seq: items}
	case KindStructured:
		fields := make(map[string]Value, len(v.fields))
		for k, f := range v.fields {
			fields[k] = f.Clone()
		}
		return Value{kind: KindStructured, fields: fields}
	default:
		return v
	}
}

func (v Value) toAny() any {
	switch v.kind {
	case KindNumber:
		return v.num
	case KindText:
		return v.text
	case KindFlag:
		return v.flag
	case KindSequence:
		items := make([]any, len(v.seq))
		for i, item := range v.seq {
			items[i] = item.toAny()
		}
		return items
	case KindStructured:
		fields := make(map[string]any, len(v.fields))
		for k, f := range v.fields {
			fields[k] = f.toAny()
		}
		return fields
	default:
		return nil
	}
}

func fromAny(raw any) (Value, error) {
	switch t := raw.(type) {
	case nil:
		return Value{}, nil
	case bool:
		return Flag(t), nil
	case float64:
		return Number(t), nil
	case float32:
		return Number(float64(t)), nil
	case int64:
		return Number(float64(t)), nil
	case uint64:
		return Number(float64(t)), nil
	case int:
		return Number(float64(t)), nil
	case string:
		return Text(t), nil
	case []any:
		items := make([]Value, len(t))
		for i, item := range t {
			v, err := fromAny(item)
			if err != nil {
				return Value{}, err
			}
			items[i] = v
		}
		return Sequence(items...), nil
	case map[string]any:
		fields := make(map[string]Value, len(t))
		for k, item := range t {
			v, err := fromAny(item)
			if err != nil {
				return Value{}, err
			}
			fields[k] = v
		}
		return Structured(fields), nil
	default:
		return Value{}, fmt.Errorf("unsupported value type %T", raw)
	}
}

// MarshalJSON encodes the value as its native JSON shape. Absent encodes as
// null. encoding/json sorts object keys, which keeps the encoding canonical
// for hashing.
func (v Value) MarshalJSON() ([]byte, error) {
	return json.Marshal(v.toAny())
}

// UnmarshalJSON decodes any JSON shape into the matching variant.
func (v *Value) UnmarshalJSON(data []byte) error {
	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	decoded, err := fromAny(raw)
	if err != nil {
		return err
	}
	*v = decoded
	return nil
}

// EncodeMsgpack implements msgpack.CustomEncoder for the data channel codec.
func (v Value) EncodeMsgpack(enc *msgpack.Encoder) error {
	return enc.Encode(v.toAny())
}

// DecodeMsgpack implements msgpack.CustomDecoder.
func (v *Value) DecodeMsgpack(dec *msgpack.Decoder) error {
	raw, err := dec.DecodeInterfaceLoose()
	if err != nil {
		return err
	}
	decoded, err := fromAny(raw)
	if err != nil {
		return err
	}
	*v = decoded
	return nil
}
