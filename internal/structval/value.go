// Package structval implements the dynamically-typed nested parameter
// tree of spec.md §3/§4.2 (C2): a tagged union Value over
// {unassigned, bool, int, double, string, nested struct, opaque data,
// sample buffer}, and Struct, an insertion-ordered string-keyed
// mapping of Values. It is used uniformly for renderer parameters
// (setParameters/getParameters), scene/engine configuration, and the
// struct-valued sub-keys spec.md §6 documents on the parameter
// surface (direct_path/reflected_path third-octave sub-structs, etc).
package structval

import (
	"fmt"
	"strconv"

	"github.com/rtauralize/auracore/internal/aerr"
)

// Kind identifies which alternative of the tagged union a Value holds.
type Kind int

const (
	Unassigned Kind = iota
	Bool
	Int
	Double
	String
	Struct_
	Data
	SampleBuffer
)

func (k Kind) String() string {
	switch k {
	case Bool:
		return "bool"
	case Int:
		return "int"
	case Double:
		return "double"
	case String:
		return "string"
	case Struct_:
		return "struct"
	case Data:
		return "data"
	case SampleBuffer:
		return "samplebuffer"
	default:
		return "unassigned"
	}
}

// SampleBufferData holds a multichannel block of audio samples as a
// struct-value payload, e.g. for carrying externally-simulated impulse
// responses across the setParameters side channel (spec.md §4.8,
// generic-path renderer).
type SampleBufferData struct {
	SampleRate float64
	Channels   [][]float32
}

func (s *SampleBufferData) NumSamples() int {
	if len(s.Channels) == 0 {
		return 0
	}
	return len(s.Channels[0])
}

// Value is a tagged union over the struct-value alternatives. The
// zero Value is Unassigned.
type Value struct {
	kind    Kind
	b       bool
	i       int64
	d       float64
	s       string
	data    []byte
	nested  *Struct
	samples *SampleBufferData
}

func BoolValue(v bool) Value     { return Value{kind: Bool, b: v} }
func IntValue(v int64) Value     { return Value{kind: Int, i: v} }
func DoubleValue(v float64) Value { return Value{kind: Double, d: v} }
func StringValue(v string) Value { return Value{kind: String, s: v} }
func DataValue(v []byte) Value {
	cp := make([]byte, len(v))
	copy(cp, v)
	return Value{kind: Data, data: cp}
}
func StructValue(v *Struct) Value { return Value{kind: Struct_, nested: v} }
func SampleBufferValue(v *SampleBufferData) Value {
	return Value{kind: SampleBuffer, samples: v}
}

func (v Value) Kind() Kind          { return v.kind }
func (v Value) IsUnassigned() bool  { return v.kind == Unassigned }

// AsStruct returns the nested struct, or nil, ok=false if v is not a
// Struct_.
func (v Value) AsStruct() (*Struct, bool) {
	if v.kind != Struct_ {
		return nil, false
	}
	return v.nested, true
}

// AsData returns the raw byte blob, or nil, ok=false if v is not Data.
func (v Value) AsData() ([]byte, bool) {
	if v.kind != Data {
		return nil, false
	}
	return v.data, true
}

// AsSampleBuffer returns the sample-buffer payload, or nil, ok=false
// if v is not a SampleBuffer.
func (v Value) AsSampleBuffer() (*SampleBufferData, bool) {
	if v.kind != SampleBuffer {
		return nil, false
	}
	return v.samples, true
}

// coerce implements the bool<->int<->double<->string coercions spec.md
// §4.2 requires; key names the struct key this value came from, for
// error messages only.
func (v Value) coerceBool(key string) (bool, *aerr.Error) {
	switch v.kind {
	case Bool:
		return v.b, nil
	case Int:
		return v.i != 0, nil
	case Double:
		return v.d != 0, nil
	case String:
		switch v.s {
		case "true", "1", "yes", "on":
			return true, nil
		case "false", "0", "no", "off":
			return false, nil
		}
		return false, aerr.Newf(aerr.InvalidParameter, "cannot coerce string %q to bool", v.s).WithKeyPath(key)
	default:
		return false, aerr.Newf(aerr.InvalidParameter, "cannot coerce %s to bool", v.kind).WithKeyPath(key)
	}
}

func (v Value) coerceInt(key string) (int64, *aerr.Error) {
	switch v.kind {
	case Int:
		return v.i, nil
	case Bool:
		if v.b {
			return 1, nil
		}
		return 0, nil
	case Double:
		return int64(v.d), nil
	case String:
		n, err := strconv.ParseInt(v.s, 10, 64)
		if err != nil {
			return 0, aerr.Newf(aerr.InvalidParameter, "cannot coerce string %q to int", v.s).WithKeyPath(key)
		}
		return n, nil
	default:
		return 0, aerr.Newf(aerr.InvalidParameter, "cannot coerce %s to int", v.kind).WithKeyPath(key)
	}
}

func (v Value) coerceDouble(key string) (float64, *aerr.Error) {
	switch v.kind {
	case Double:
		return v.d, nil
	case Int:
		return float64(v.i), nil
	case Bool:
		if v.b {
			return 1, nil
		}
		return 0, nil
	case String:
		f, err := strconv.ParseFloat(v.s, 64)
		if err != nil {
			return 0, aerr.Newf(aerr.InvalidParameter, "cannot coerce string %q to double", v.s).WithKeyPath(key)
		}
		return f, nil
	default:
		return 0, aerr.Newf(aerr.InvalidParameter, "cannot coerce %s to double", v.kind).WithKeyPath(key)
	}
}

func (v Value) coerceString(key string) (string, *aerr.Error) {
	switch v.kind {
	case String:
		return v.s, nil
	case Int:
		return strconv.FormatInt(v.i, 10), nil
	case Double:
		return strconv.FormatFloat(v.d, 'g', -1, 64), nil
	case Bool:
		return strconv.FormatBool(v.b), nil
	default:
		return "", aerr.Newf(aerr.InvalidParameter, "cannot coerce %s to string", v.kind).WithKeyPath(key)
	}
}

func (v Value) dump(indent int) string {
	pad := func(n int) string {
		s := ""
		for i := 0; i < n; i++ {
			s += "  "
		}
		return s
	}
	switch v.kind {
	case Struct_:
		return v.nested.ToString(indent)
	case Data:
		return fmt.Sprintf("<data %d bytes>", len(v.data))
	case SampleBuffer:
		return fmt.Sprintf("<samplebuffer %d ch x %d samples @ %gHz>", len(v.samples.Channels), v.samples.NumSamples(), v.samples.SampleRate)
	case String:
		return fmt.Sprintf("%q", v.s)
	case Bool:
		return strconv.FormatBool(v.b)
	case Int:
		return strconv.FormatInt(v.i, 10)
	case Double:
		return strconv.FormatFloat(v.d, 'g', -1, 64)
	default:
		_ = pad
		return "<unassigned>"
	}
}
