package racadm

import (
	"encoding/json"
	"strings"
)

// Kind is the shape the parser recognised in a console reply.
type Kind int

const (
	KindEmpty Kind = iota
	KindScalar
	KindLines
	KindFields
)

func (k Kind) String() string {
	switch k {
	case KindScalar:
		return "scalar"
	case KindLines:
		return "lines"
	case KindFields:
		return "fields"
	default:
		return "empty"
	}
}

// Fields is an ordered key/value mapping. Keys are unique; a repeated key keeps
// its first position and takes the last value.
type Fields struct {
	keys   []string
	values map[string]string
}

// NewFields returns an empty mapping.
func NewFields() *Fields {
	return &Fields{values: make(map[string]string)}
}

// Set stores value under key.
func (f *Fields) Set(key, value string) {
	if _, ok := f.values[key]; !ok {
		f.keys = append(f.keys, key)
	}
	f.values[key] = value
}

// Get returns the value for key and whether it was present.
func (f *Fields) Get(key string) (string, bool) {
	v, ok := f.values[key]
	return v, ok
}

// Keys returns keys in first-occurrence order.
func (f *Fields) Keys() []string {
	return append([]string(nil), f.keys...)
}

// Len returns the number of keys.
func (f *Fields) Len() int {
	return len(f.keys)
}

// Map returns a copy of the mapping.
func (f *Fields) Map() map[string]string {
	out := make(map[string]string, len(f.values))
	for k, v := range f.values {
		out[k] = v
	}
	return out
}

// Response is the parsed reply of one command. Only Parse constructs values;
// consumers switch on Kind rather than assuming a shape per verb.
type Response struct {
	kind   Kind
	scalar string
	lines  []string
	fields *Fields
}

// Kind returns the response shape.
func (r Response) Kind() Kind { return r.kind }

// IsEmpty reports whether the console printed nothing between echo and prompt.
func (r Response) IsEmpty() bool { return r.kind == KindEmpty }

// Scalar returns the single line of a scalar response.
func (r Response) Scalar() (string, bool) {
	return r.scalar, r.kind == KindScalar
}

// Lines returns the lines of a multi-line response.
func (r Response) Lines() ([]string, bool) {
	if r.kind != KindLines {
		return nil, false
	}
	return append([]string(nil), r.lines...), true
}

// Fields returns the key/value mapping of a fields response.
func (r Response) Fields() (*Fields, bool) {
	return r.fields, r.kind == KindFields
}

// Value returns a field value, or "" when the response is not a mapping or the key is absent.
func (r Response) Value(key string) string {
	if r.kind != KindFields {
		return ""
	}
	v, _ := r.fields.Get(key)
	return v
}

// Text returns the response as display lines; fields render as key=value.
func (r Response) Text() []string {
	switch r.kind {
	case KindScalar:
		return []string{r.scalar}
	case KindLines:
		return append([]string(nil), r.lines...)
	case KindFields:
		out := make([]string, 0, r.fields.Len())
		for _, k := range r.fields.keys {
			out = append(out, k+"="+r.fields.values[k])
		}
		return out
	default:
		return nil
	}
}

// String joins Text with newlines.
func (r Response) String() string {
	return strings.Join(r.Text(), "\n")
}

// Contains reports whether any rendered line contains substr.
func (r Response) Contains(substr string) bool {
	return strings.Contains(r.String(), substr)
}

// MarshalJSON renders null, a string, an array of strings or an object.
func (r Response) MarshalJSON() ([]byte, error) {
	switch r.kind {
	case KindScalar:
		return json.Marshal(r.scalar)
	case KindLines:
		return json.Marshal(r.lines)
	case KindFields:
		var b strings.Builder
		b.WriteByte('{')
		for i, k := range r.fields.keys {
			if i > 0 {
				b.WriteByte(',')
			}
			kb, _ := json.Marshal(k)
			vb, _ := json.Marshal(r.fields.values[k])
			b.Write(kb)
			b.WriteByte(':')
			b.Write(vb)
		}
		b.WriteByte('}')
		return []byte(b.String()), nil
	default:
		return []byte("null"), nil
	}
}

// Parse classifies raw console output. The first line is the echoed command and
// the last is the prompt; both are dropped. An empty raw string (no output at
// all) is Empty. If the first remaining line contains '=' every line is read as
// key=value, split on the first '=' with whitespace and one leading '#' removed
// from the key. Otherwise one line is a Scalar and more are Lines.
func Parse(raw string) Response {
	lines := strings.Split(raw, "\n")
	for i := range lines {
		lines[i] = strings.TrimSuffix(lines[i], "\r")
	}
	for len(lines) > 0 && lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}
	if len(lines) <= 2 {
		// nothing between echo and prompt
		return Response{kind: KindEmpty}
	}
	lines = lines[1 : len(lines)-1]

	if strings.Contains(lines[0], "=") {
		fields := NewFields()
		for _, line := range lines {
			key, value, _ := strings.Cut(line, "=")
			key = strings.TrimSpace(key)
			if strings.HasPrefix(key, "#") {
				key = strings.TrimSpace(key[1:])
			}
			fields.Set(key, strings.TrimSpace(value))
		}
		return Response{kind: KindFields, fields: fields}
	}

	if len(lines) == 1 {
		return Response{kind: KindScalar, scalar: lines[0]}
	}
	return Response{kind: KindLines, lines: lines}
}
