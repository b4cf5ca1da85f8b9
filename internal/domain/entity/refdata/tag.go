package refdata

import (
	"encoding/json"
	"fmt"
	"slices"
	"time"
)

// TagKind discriminates the value stored under a Tag key.
type TagKind string

const (
	TagString TagKind = "string"
	TagInt    TagKind = "int"
	TagFloat  TagKind = "float"
	TagBool   TagKind = "bool"
	TagTime   TagKind = "time"
)

// TagValue is a single typed Tag entry.
type TagValue struct {
	Kind  TagKind
	Str   string
	Int   int64
	Float float64
	Bool  bool
	Time  time.Time
}

func StringValue(v string) TagValue      { return TagValue{Kind: TagString, Str: v} }
func IntValue(v int64) TagValue          { return TagValue{Kind: TagInt, Int: v} }
func FloatValue(v float64) TagValue      { return TagValue{Kind: TagFloat, Float: v} }
func BoolValue(v bool) TagValue          { return TagValue{Kind: TagBool, Bool: v} }
func TimeValue(v time.Time) TagValue     { return TagValue{Kind: TagTime, Time: v.UTC()} }
func (v TagValue) Equal(o TagValue) bool { return v.Kind == o.Kind && v.raw() == o.raw() }
func (v TagValue) String() string        { return fmt.Sprint(v.raw()) }

func (v TagValue) raw() any {
	switch v.Kind {
	case TagString:
		return v.Str
	case TagInt:
		return v.Int
	case TagFloat:
		return v.Float
	case TagBool:
		return v.Bool
	case TagTime:
		return v.Time.Format(time.RFC3339Nano)
	default:
		return nil
	}
}

type tagEntry struct {
	Type  TagKind         `json:"type"`
	Value json.RawMessage `json:"value"`
}

// Tag is a free-form bag of typed values attached to an entity. It is
// parsed eagerly and tracks whether it changed since it was loaded.
type Tag struct {
	values map[string]TagValue
	dirty  bool
}

// ParseTag decodes the serialized form produced by Bytes. Empty input
// yields an empty tag.
func ParseTag(raw []byte) (Tag, error) {
	tag := Tag{}
	if len(raw) == 0 {
		return tag, nil
	}
	var entries map[string]tagEntry
	if err := json.Unmarshal(raw, &entries); err != nil {
		return Tag{}, fmt.Errorf("decode tag: %w", err)
	}
	for key, entry := range entries {
		value, err := decodeTagValue(entry)
		if err != nil {
			return Tag{}, fmt.Errorf("decode tag %q: %w", key, err)
		}
		if tag.values == nil {
			tag.values = make(map[string]TagValue, len(entries))
		}
		tag.values[key] = value
	}
	return tag, nil
}

func decodeTagValue(entry tagEntry) (TagValue, error) {
	v := TagValue{Kind: entry.Type}
	var err error
	switch entry.Type {
	case TagString:
		err = json.Unmarshal(entry.Value, &v.Str)
	case TagInt:
		err = json.Unmarshal(entry.Value, &v.Int)
	case TagFloat:
		err = json.Unmarshal(entry.Value, &v.Float)
	case TagBool:
		err = json.Unmarshal(entry.Value, &v.Bool)
	case TagTime:
		var s string
		if err = json.Unmarshal(entry.Value, &s); err == nil {
			v.Time, err = time.Parse(time.RFC3339Nano, s)
		}
	default:
		return TagValue{}, fmt.Errorf("unknown tag kind %q", entry.Type)
	}
	return v, err
}

func (t *Tag) Get(key string) (TagValue, bool) {
	v, ok := t.values[key]
	return v, ok
}

func (t *Tag) Set(key string, value TagValue) {
	if current, ok := t.values[key]; ok && current.Equal(value) {
		return
	}
	if t.values == nil {
		t.values = make(map[string]TagValue)
	}
	t.values[key] = value
	t.dirty = true
}

func (t *Tag) Delete(key string) {
	if _, ok := t.values[key]; !ok {
		return
	}
	delete(t.values, key)
	t.dirty = true
}

func (t *Tag) Keys() []string {
	keys := make([]string, 0, len(t.values))
	for k := range t.values {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

func (t *Tag) Len() int    { return len(t.values) }
func (t *Tag) Dirty() bool { return t.dirty }
func (t *Tag) MarkClean()  { t.dirty = false }

// Clone returns an independent copy with the same dirty state.
func (t Tag) Clone() Tag {
	out := Tag{dirty: t.dirty}
	if len(t.values) > 0 {
		out.values = make(map[string]TagValue, len(t.values))
		for k, v := range t.values {
			out.values[k] = v
		}
	}
	return out
}

// Bytes serializes the tag; an empty tag serializes to "{}".
func (t Tag) Bytes() []byte {
	entries := make(map[string]tagEntry, len(t.values))
	for key, value := range t.values {
		encoded, _ := json.Marshal(value.raw())
		entries[key] = tagEntry{Type: value.Kind, Value: encoded}
	}
	out, _ := json.Marshal(entries)
	return out
}

func (t Tag) MarshalJSON() ([]byte, error) {
	return t.Bytes(), nil
}

func (t *Tag) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*t = Tag{}
		return nil
	}
	parsed, err := ParseTag(data)
	if err != nil {
		return err
	}
	parsed.dirty = true
	*t = parsed
	return nil
}
