package structval

import (
	"strconv"
	"strings"

	"github.com/rtauralize/auracore/internal/aerr"
)

// Struct is an insertion-ordered string-keyed mapping of Values.
// The zero value is not usable; construct with New.
type Struct struct {
	keys []string
	vals map[string]Value
}

func New() *Struct {
	return &Struct{vals: make(map[string]Value)}
}

// HasKey reports whether key is present at this level (not traversed).
func (s *Struct) HasKey(key string) bool {
	_, ok := s.vals[key]
	return ok
}

// Get returns the value at key and whether it was present. This is
// the redesigned replacement for the "dummy key singleton"
// operator[] footgun noted in spec.md §9: missing keys are reported,
// never silently synthesized.
func (s *Struct) Get(key string) (Value, bool) {
	v, ok := s.vals[key]
	return v, ok
}

// Require returns the value at key, or a typed InvalidParameter error
// naming the key if absent.
func (s *Struct) Require(key string) (Value, *aerr.Error) {
	v, ok := s.vals[key]
	if !ok {
		return Value{}, aerr.Newf(aerr.InvalidParameter, "missing required key").WithKeyPath(key)
	}
	return v, nil
}

// Set inserts or overwrites key. Insertion order is preserved for new
// keys; overwriting an existing key does not change its position.
func (s *Struct) Set(key string, v Value) {
	if _, exists := s.vals[key]; !exists {
		s.keys = append(s.keys, key)
	}
	s.vals[key] = v
}

// Delete removes key, if present.
func (s *Struct) Delete(key string) {
	if _, ok := s.vals[key]; !ok {
		return
	}
	delete(s.vals, key)
	for i, k := range s.keys {
		if k == key {
			s.keys = append(s.keys[:i], s.keys[i+1:]...)
			break
		}
	}
}

// Keys returns the keys in insertion order. The caller must not
// mutate the returned slice.
func (s *Struct) Keys() []string { return s.keys }

// Len reports the number of top-level keys.
func (s *Struct) Len() int { return len(s.keys) }

// Clone returns a shallow copy of s: a new Struct with the same keys
// in the same order and the same Values (nested structs are shared by
// pointer, not deep-copied). Used when a scene-state leaf is cloned
// for copy-on-write so the clone's parameter struct can be mutated
// without perturbing the original's.
func (s *Struct) Clone() *Struct {
	cp := New()
	for _, k := range s.keys {
		cp.Set(k, s.vals[k])
	}
	return cp
}

// Traverse resolves a path like "a/b/c" by walking nested structs,
// using sep as the path separator. It returns ok=false (not an error)
// on a missing path, per spec.md §4.2.
func (s *Struct) Traverse(path string, sep byte) (Value, bool) {
	cur := s
	parts := strings.Split(path, string(sep))
	for i, part := range parts {
		v, ok := cur.vals[part]
		if !ok {
			return Value{}, false
		}
		if i == len(parts)-1 {
			return v, true
		}
		nested, ok := v.AsStruct()
		if !ok {
			return Value{}, false
		}
		cur = nested
	}
	return Value{}, false
}

// Merge copies every key from other into s. If unique is true and a
// key already exists in s, Merge fails without applying any of the
// merge (all-or-nothing) and returns a typed error naming the
// offending key.
func (s *Struct) Merge(other *Struct, unique bool) *aerr.Error {
	if unique {
		for _, k := range other.keys {
			if s.HasKey(k) {
				return aerr.Newf(aerr.InvalidParameter, "merge: key collision").WithKeyPath(k)
			}
		}
	}
	for _, k := range other.keys {
		s.Set(k, other.vals[k])
	}
	return nil
}

// ToString renders s as an indented, human-readable dump, one key per
// line, nested structs indented by one additional level.
func (s *Struct) ToString(indent int) string {
	var b strings.Builder
	pad := strings.Repeat("  ", indent)
	for _, k := range s.keys {
		v := s.vals[k]
		b.WriteString(pad)
		b.WriteString(k)
		b.WriteString(": ")
		if v.kind == Struct_ {
			b.WriteString("{\n")
			b.WriteString(v.nested.ToString(indent + 1))
			b.WriteString(pad)
			b.WriteString("}\n")
		} else {
			b.WriteString(v.dump(indent))
			b.WriteString("\n")
		}
	}
	return b.String()
}

// Convenience typed accessors, each failing with a typed error naming
// key on a missing key or an incompatible coercion.

func (s *Struct) GetBool(key string) (bool, *aerr.Error) {
	v, err := s.Require(key)
	if err != nil {
		return false, err
	}
	return v.coerceBool(key)
}

func (s *Struct) GetInt(key string) (int64, *aerr.Error) {
	v, err := s.Require(key)
	if err != nil {
		return 0, err
	}
	return v.coerceInt(key)
}

func (s *Struct) GetDouble(key string) (float64, *aerr.Error) {
	v, err := s.Require(key)
	if err != nil {
		return 0, err
	}
	return v.coerceDouble(key)
}

func (s *Struct) GetString(key string) (string, *aerr.Error) {
	v, err := s.Require(key)
	if err != nil {
		return "", err
	}
	return v.coerceString(key)
}

// GetBoolOr returns the coerced value at key, or def if the key is
// absent. A present-but-uncoercible value still fails typed.
func (s *Struct) GetBoolOr(key string, def bool) (bool, *aerr.Error) {
	if !s.HasKey(key) {
		return def, nil
	}
	return s.GetBool(key)
}

func (s *Struct) GetDoubleOr(key string, def float64) (float64, *aerr.Error) {
	if !s.HasKey(key) {
		return def, nil
	}
	return s.GetDouble(key)
}

func (s *Struct) GetIntOr(key string, def int64) (int64, *aerr.Error) {
	if !s.HasKey(key) {
		return def, nil
	}
	return s.GetInt(key)
}

// band access, used by the third-octave sub-struct keys of spec.md §6
// ("band_1..band_N: number").

func BandKey(n int) string { return "band_" + strconv.Itoa(n) }

// Bands reads n consecutive "band_i" keys (1-indexed) out of s into a
// []float64 of length n, defaulting missing bands to 0.
func (s *Struct) Bands(n int) ([]float64, *aerr.Error) {
	out := make([]float64, n)
	for i := 1; i <= n; i++ {
		v, aerrv := s.GetDoubleOr(BandKey(i), 0)
		if aerrv != nil {
			return nil, aerrv
		}
		out[i-1] = v
	}
	return out, nil
}
