// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package jwt

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"time"
)

// Kind identifies which member of a Value is set.
type Kind int

const (
	KindNull Kind = iota
	KindString
	KindNumber
	KindBool
	KindArray
	KindObject
)

func (k Kind) String() string {
	switch k {
	case KindString:
		return "string"
	case KindNumber:
		return "number"
	case KindBool:
		return "bool"
	case KindArray:
		return "array"
	case KindObject:
		return "object"
	default:
		return "null"
	}
}

// Value is a single JSON value found in a JWT header or payload.
type Value struct {
	kind Kind
	str  string
	num  float64
	b    bool
	arr  []Value
	obj  map[string]Value
}

// StringValue returns a Value holding s.
func StringValue(s string) Value { return Value{kind: KindString, str: s} }

// NumberValue returns a Value holding n.
func NumberValue(n float64) Value { return Value{kind: KindNumber, num: n} }

// BoolValue returns a Value holding b.
func BoolValue(b bool) Value { return Value{kind: KindBool, b: b} }

// ArrayValue returns a Value holding vs.
func ArrayValue(vs ...Value) Value { return Value{kind: KindArray, arr: vs} }

// Kind returns the kind of v.
func (v Value) Kind() Kind { return v.kind }

// IsNull reports whether v is a JSON null (or the zero Value).
func (v Value) IsNull() bool { return v.kind == KindNull }

// Str returns the string held by v.
func (v Value) Str() (string, bool) {
	if v.kind != KindString {
		return "", false
	}
	return v.str, true
}

// Number returns the number held by v.
func (v Value) Number() (float64, bool) {
	if v.kind != KindNumber {
		return 0, false
	}
	return v.num, true
}

// Bool returns the bool held by v.
func (v Value) Bool() (bool, bool) {
	if v.kind != KindBool {
		return false, false
	}
	return v.b, true
}

// Array returns the elements held by v.
func (v Value) Array() ([]Value, bool) {
	if v.kind != KindArray {
		return nil, false
	}
	return v.arr, true
}

// Object returns the members held by v.
func (v Value) Object() (map[string]Value, bool) {
	if v.kind != KindObject {
		return nil, false
	}
	return v.obj, true
}

// Strings returns v as a list of strings. A string is returned as a single
// element list. Arrays containing anything other than strings are rejected.
func (v Value) Strings() ([]string, bool) {
	switch v.kind {
	case KindString:
		return []string{v.str}, true
	case KindArray:
		out := make([]string, 0, len(v.arr))
		for _, e := range v.arr {
			s, ok := e.Str()
			if !ok {
				return nil, false
			}
			out = append(out, s)
		}
		return out, true
	default:
		return nil, false
	}
}

// Time interprets v as a NumericDate (seconds since the epoch, fractions
// allowed).
func (v Value) Time() (time.Time, bool) {
	if v.kind != KindNumber || math.IsNaN(v.num) || math.IsInf(v.num, 0) {
		return time.Time{}, false
	}
	sec, frac := math.Modf(v.num)
	return time.Unix(int64(sec), int64(frac*float64(time.Second))), true
}

// Interface converts v back into the plain types produced by encoding/json.
func (v Value) Interface() interface{} {
	switch v.kind {
	case KindString:
		return v.str
	case KindNumber:
		return v.num
	case KindBool:
		return v.b
	case KindArray:
		out := make([]interface{}, 0, len(v.arr))
		for _, e := range v.arr {
			out = append(out, e.Interface())
		}
		return out
	case KindObject:
		out := make(map[string]interface{}, len(v.obj))
		for k, e := range v.obj {
			out[k] = e.Interface()
		}
		return out
	default:
		return nil
	}
}

// MarshalJSON implements json.Marshaler.
func (v Value) MarshalJSON() ([]byte, error) {
	return json.Marshal(v.Interface())
}

// UnmarshalJSON implements json.Unmarshaler.
func (v *Value) UnmarshalJSON(data []byte) error {
	const op = "Value.UnmarshalJSON"
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var raw interface{}
	if err := dec.Decode(&raw); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	parsed, err := valueOf(raw)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	*v = parsed
	return nil
}

func valueOf(raw interface{}) (Value, error) {
	switch t := raw.(type) {
	case nil:
		return Value{}, nil
	case string:
		return StringValue(t), nil
	case bool:
		return BoolValue(t), nil
	case json.Number:
		f, err := t.Float64()
		if err != nil {
			return Value{}, err
		}
		return NumberValue(f), nil
	case float64:
		return NumberValue(t), nil
	case []interface{}:
		arr := make([]Value, 0, len(t))
		for _, e := range t {
			ev, err := valueOf(e)
			if err != nil {
				return Value{}, err
			}
			arr = append(arr, ev)
		}
		return Value{kind: KindArray, arr: arr}, nil
	case map[string]interface{}:
		obj := make(map[string]Value, len(t))
		for k, e := range t {
			ev, err := valueOf(e)
			if err != nil {
				return Value{}, err
			}
			obj[k] = ev
		}
		return Value{kind: KindObject, obj: obj}, nil
	default:
		return Value{}, fmt.Errorf("unsupported json type %T", raw)
	}
}

// Claims is a decoded JWT payload.
type Claims map[string]Value

// Str returns the named claim if it is a string.
func (c Claims) Str(name string) (string, bool) {
	return c[name].Str()
}

// Time returns the named claim if it is a NumericDate.
func (c Claims) Time(name string) (time.Time, bool) {
	return c[name].Time()
}

// Issuer returns the iss claim.
func (c Claims) Issuer() (string, bool) { return c.Str("iss") }

// Subject returns the sub claim.
func (c Claims) Subject() (string, bool) { return c.Str("sub") }

// Audience returns the aud claim as a list. A single string audience is
// returned as a one element list.
func (c Claims) Audience() ([]string, bool) { return c["aud"].Strings() }

// ExpiresAt returns the exp claim.
func (c Claims) ExpiresAt() (time.Time, bool) { return c.Time("exp") }

// IssuedAt returns the iat claim.
func (c Claims) IssuedAt() (time.Time, bool) { return c.Time("iat") }

// Map converts the claims into plain encoding/json types.
func (c Claims) Map() map[string]interface{} {
	out := make(map[string]interface{}, len(c))
	for k, v := range c {
		out[k] = v.Interface()
	}
	return out
}
