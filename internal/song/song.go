// Package song defines the song record, its staged field values, and the
// pure list projection used by every view.
package song

import (
	"fmt"
	"strings"
)

// Field names a record field. The string value is the wire name stored in the
// document store.
type Field string

const (
	FieldTitle  Field = "title"
	FieldLyrics Field = "lyrics"
	FieldLink   Field = "youtubeLink"
)

// AllFields lists the fields in display order.
var AllFields = []Field{FieldTitle, FieldLyrics, FieldLink}

// ParseField resolves a field name, accepting the wire name or the short
// alias "link".
func ParseField(name string) (Field, error) {
	switch strings.TrimSpace(name) {
	case string(FieldTitle):
		return FieldTitle, nil
	case string(FieldLyrics):
		return FieldLyrics, nil
	case string(FieldLink), "link":
		return FieldLink, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownField, name)
}

// Label returns a human-readable field name.
func (f Field) Label() string {
	switch f {
	case FieldTitle:
		return "Title"
	case FieldLyrics:
		return "Lyrics"
	case FieldLink:
		return "Link"
	}
	return string(f)
}

// Record is one song as last seen in a snapshot. Key is assigned by the
// document store and never changes.
type Record struct {
	Key    string
	Title  string
	Lyrics string
	Link   string
}

// Fields returns the record's committed field values.
func (r Record) Fields() Fields {
	return Fields{Title: r.Title, Lyrics: r.Lyrics, Link: r.Link}
}

// WithFields returns a copy of r carrying the given field values.
func (r Record) WithFields(f Fields) Record {
	r.Title = f.Title
	r.Lyrics = f.Lyrics
	r.Link = f.Link
	return r
}

// FromDocument builds a record from a stored document. Unknown fields are
// ignored and missing ones stay empty.
func FromDocument(key string, fields map[string]string) Record {
	return Record{
		Key:    key,
		Title:  fields[string(FieldTitle)],
		Lyrics: fields[string(FieldLyrics)],
		Link:   fields[string(FieldLink)],
	}
}

// Fields holds the editable values of a record. The editor keeps one of these
// as the staged copy while creating or editing.
type Fields struct {
	Title  string
	Lyrics string
	Link   string
}

// Get returns the value of a single field.
func (f Fields) Get(name Field) (string, error) {
	switch name {
	case FieldTitle:
		return f.Title, nil
	case FieldLyrics:
		return f.Lyrics, nil
	case FieldLink:
		return f.Link, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownField, name)
}

// Set replaces the value of a single field.
func (f *Fields) Set(name Field, value string) error {
	switch name {
	case FieldTitle:
		f.Title = value
	case FieldLyrics:
		f.Lyrics = value
	case FieldLink:
		f.Link = value
	default:
		return fmt.Errorf("%w: %q", ErrUnknownField, name)
	}
	return nil
}

// Map converts the values to the wire representation. An empty link is
// omitted so documents created without one stay link-free.
func (f Fields) Map() map[string]string {
	out := map[string]string{
		string(FieldTitle):  f.Title,
		string(FieldLyrics): f.Lyrics,
	}
	if f.Link != "" {
		out[string(FieldLink)] = f.Link
	}
	return out
}

// MapAll converts every value, including an empty link, so an update can
// clear a field that was previously set.
func (f Fields) MapAll() map[string]string {
	return map[string]string{
		string(FieldTitle):  f.Title,
		string(FieldLyrics): f.Lyrics,
		string(FieldLink):   f.Link,
	}
}

// Validate reports every required field that is blank. The link is required
// only when requireLink is set, and is never checked for well-formedness.
func (f Fields) Validate(requireLink bool) error {
	var missing []Field
	if strings.TrimSpace(f.Title) == "" {
		missing = append(missing, FieldTitle)
	}
	if strings.TrimSpace(f.Lyrics) == "" {
		missing = append(missing, FieldLyrics)
	}
	if requireLink && strings.TrimSpace(f.Link) == "" {
		missing = append(missing, FieldLink)
	}
	if len(missing) > 0 {
		return &ValidationError{Missing: missing}
	}
	return nil
}
