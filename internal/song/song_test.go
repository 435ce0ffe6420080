package song

import (
	"errors"
	"reflect"
	"strings"
	"testing"
)

func TestProject_FiltersCaseInsensitiveAndSorts(t *testing.T) {
	mirror := []Record{
		{Key: "a", Title: "Amazing Grace"},
		{Key: "b", Title: "Be Thou My Vision"},
	}

	got := Project(mirror, "be", NewCollator("en"))
	if len(got) != 1 || got[0].Key != "b" {
		t.Fatalf("Project(be) = %#v, want only key b", got)
	}

	got = Project(mirror, "", NewCollator("en"))
	if len(got) != 2 || got[0].Key != "a" || got[1].Key != "b" {
		t.Fatalf("Project(empty) = %#v, want a then b", got)
	}
}

func TestProject_ExcludesRecordsWithoutTitle(t *testing.T) {
	mirror := []Record{
		{Key: "x", Lyrics: "no title here"},
		{Key: "y", Title: "Yes"},
	}
	for _, term := range []string{"", "e", "no"} {
		for _, r := range Project(mirror, term, nil) {
			if r.Title == "" {
				t.Fatalf("Project(%q) returned untitled record %#v", term, r)
			}
		}
	}
}

func TestProject_PropertiesHoldForEveryTerm(t *testing.T) {
	mirror := []Record{
		{Key: "1", Title: "zeta"},
		{Key: "2", Title: "Alpha"},
		{Key: "3", Title: "beta"},
		{Key: "4", Title: "ALPHABET"},
		{Key: "5", Title: ""},
		{Key: "6", Title: "Gamma ray"},
	}
	c := NewCollator("en")

	for _, term := range []string{"", "a", "AL", "ph", "ray", "missing", " "} {
		got := Project(mirror, term, c)
		for i, r := range got {
			if !strings.Contains(strings.ToLower(r.Title), strings.ToLower(term)) {
				t.Fatalf("Project(%q)[%d] = %q, does not contain term", term, i, r.Title)
			}
			if i > 0 && c.CompareString(got[i-1].Title, r.Title) > 0 {
				t.Fatalf("Project(%q) not sorted: %q before %q", term, got[i-1].Title, r.Title)
			}
		}
	}
}

func TestProject_IsPureAndDoesNotMutateInput(t *testing.T) {
	mirror := []Record{
		{Key: "c", Title: "Cantec"},
		{Key: "a", Title: "Aleluia"},
		{Key: "b", Title: "Bucurie"},
	}
	before := append([]Record(nil), mirror...)

	first := Project(mirror, "u", NewCollator("ro"))
	second := Project(mirror, "u", NewCollator("ro"))
	if !reflect.DeepEqual(first, second) {
		t.Fatalf("Project not deterministic: %#v vs %#v", first, second)
	}
	if !reflect.DeepEqual(mirror, before) {
		t.Fatalf("Project mutated input: %#v, want %#v", mirror, before)
	}

	first[0].Title = "changed"
	if mirror[0].Title == "changed" || mirror[1].Title == "changed" {
		t.Fatalf("Project result aliases input")
	}
}

func TestProject_LocaleAwareOrdering(t *testing.T) {
	mirror := []Record{
		{Key: "1", Title: "Ăsta e cântecul"},
		{Key: "2", Title: "Azi"},
	}

	ro := Project(mirror, "", NewCollator("ro"))
	if ro[0].Key != "2" {
		t.Fatalf("ro ordering = %q, %q; want Azi first (ă sorts after a)", ro[0].Title, ro[1].Title)
	}

	en := Project(mirror, "", NewCollator("en"))
	if en[0].Key != "1" {
		t.Fatalf("en ordering = %q, %q; want Ăsta first", en[0].Title, en[1].Title)
	}
}

func TestNewCollator_InvalidLocaleFallsBack(t *testing.T) {
	if c := NewCollator("!!"); c == nil {
		t.Fatalf("NewCollator returned nil")
	}
}

func TestFields_Validate(t *testing.T) {
	tests := []struct {
		name        string
		fields      Fields
		requireLink bool
		missing     []Field
	}{
		{"complete", Fields{Title: "T", Lyrics: "L"}, false, nil},
		{"blank title", Fields{Title: "  ", Lyrics: "L"}, false, []Field{FieldTitle}},
		{"all blank", Fields{}, false, []Field{FieldTitle, FieldLyrics}},
		{"link required", Fields{Title: "T", Lyrics: "L"}, true, []Field{FieldLink}},
		{"link not checked for format", Fields{Title: "T", Lyrics: "L", Link: "not a url"}, true, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.fields.Validate(tt.requireLink)
			if tt.missing == nil {
				if err != nil {
					t.Fatalf("Validate = %v, want nil", err)
				}
				return
			}
			var ve *ValidationError
			if !errors.As(err, &ve) {
				t.Fatalf("Validate = %v, want *ValidationError", err)
			}
			if !reflect.DeepEqual(ve.Missing, tt.missing) {
				t.Fatalf("Missing = %v, want %v", ve.Missing, tt.missing)
			}
		})
	}
}

func TestValidationError_Message(t *testing.T) {
	err := &ValidationError{Missing: []Field{FieldTitle, FieldLink}}
	if got := err.Error(); got != "missing required title, link" {
		t.Fatalf("Error() = %q", got)
	}
	if !err.Has(FieldLink) || err.Has(FieldLyrics) {
		t.Fatalf("Has reported wrong membership")
	}
}

func TestFields_SetGetAndParse(t *testing.T) {
	var f Fields
	for _, name := range []string{"title", "lyrics", "link"} {
		field, err := ParseField(name)
		if err != nil {
			t.Fatalf("ParseField(%q): %v", name, err)
		}
		if err := f.Set(field, "v-"+name); err != nil {
			t.Fatalf("Set(%q): %v", field, err)
		}
		got, err := f.Get(field)
		if err != nil || got != "v-"+name {
			t.Fatalf("Get(%q) = %q, %v", field, got, err)
		}
	}

	if _, err := ParseField("chorus"); !errors.Is(err, ErrUnknownField) {
		t.Fatalf("ParseField(chorus) = %v, want ErrUnknownField", err)
	}
	if err := f.Set("chorus", "x"); !errors.Is(err, ErrUnknownField) {
		t.Fatalf("Set(chorus) = %v, want ErrUnknownField", err)
	}
}

func TestFields_MapAndFromDocumentRoundTrip(t *testing.T) {
	f := Fields{Title: "T", Lyrics: "L"}
	m := f.Map()
	if _, ok := m[string(FieldLink)]; ok {
		t.Fatalf("Map included empty link: %#v", m)
	}

	if all := f.MapAll(); all[string(FieldLink)] != "" || len(all) != 3 {
		t.Fatalf("MapAll = %#v, want every field", all)
	}

	r := FromDocument("k1", map[string]string{"title": "T", "lyrics": "L", "youtubeLink": "https://y", "extra": "ignored"})
	want := Record{Key: "k1", Title: "T", Lyrics: "L", Link: "https://y"}
	if r != want {
		t.Fatalf("FromDocument = %#v, want %#v", r, want)
	}
	if got := r.WithFields(Fields{Title: "N"}); got.Key != "k1" || got.Title != "N" || got.Lyrics != "" {
		t.Fatalf("WithFields = %#v", got)
	}
}
