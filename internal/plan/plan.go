package plan

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/tidwall/gjson"
)

// ErrNoAssets is returned when a script contains no downloadable image URLs.
var ErrNoAssets = errors.New("plan: no assets found in script")

// MetaID is the reserved id of the script metadata entry.
const MetaID = "_meta"

// EntryType classifies the script entry a plan was derived from.
type EntryType string

const (
	// EntryCharacter is a regular character entry with an image field.
	EntryCharacter EntryType = "character"
	// EntryMeta is the script metadata entry carrying logo/background.
	EntryMeta EntryType = "meta"
)

// Plan describes a single intended asset fetch. Plans are created once by
// Build and never mutated afterwards.
type Plan struct {
	// ScriptIndex is the position of the owning entry in the script array.
	ScriptIndex int `json:"script_index"`

	// EntryType is character or meta.
	EntryType EntryType `json:"entry_type"`

	// EntryID and EntryName identify the entry for reporting.
	EntryID   string `json:"entry_id"`
	EntryName string `json:"entry_name"`

	// Field is the attribute on the entry holding the URL
	// (image, logo or background).
	Field string `json:"field"`

	// OriginalURL is the absolute http(s) source URL.
	OriginalURL string `json:"original_url"`

	// FileBaseName is the storage name stem: the entry's display name
	// folded to [A-Za-z0-9_] with the variant label appended.
	FileBaseName string `json:"file_base_name"`

	// VariantIndex is the position within a multi-valued image field,
	// nil for scalar fields.
	VariantIndex *int `json:"variant_index,omitempty"`

	// VariantLabel is the human label for the variant (Good, Evil,
	// VariantN, Logo, Background, ...).
	VariantLabel string `json:"variant_label,omitempty"`
}

// String returns a short human-readable description of the plan.
func (p Plan) String() string {
	if p.VariantIndex != nil {
		return fmt.Sprintf("%s[%d] %s (%s) <- %s", p.Field, *p.VariantIndex, p.EntryName, p.VariantLabel, p.OriginalURL)
	}
	return fmt.Sprintf("%s %s (%s) <- %s", p.Field, p.EntryName, p.VariantLabel, p.OriginalURL)
}

var absoluteURL = regexp.MustCompile(`^https?://`)

// teamAlignment maps a character's team to the alignment label used when
// the entry has a single image.
var teamAlignment = map[string]string{
	"townsfolk": "Good",
	"outsider":  "Good",
	"minion":    "Evil",
	"demon":     "Evil",
	"fabled":    "Fabled",
}

// MetaEntry locates the script metadata entry in a parsed script array.
// The zero Result (Exists() == false) is returned when there is none.
func MetaEntry(script gjson.Result) gjson.Result {
	var meta gjson.Result
	script.ForEach(func(_, entry gjson.Result) bool {
		if isMeta(entry) {
			meta = entry
			return false
		}
		return true
	})
	return meta
}

func isMeta(entry gjson.Result) bool {
	if entry.Get("id").Str == MetaID {
		return true
	}
	return entry.Get("logo").Exists() || entry.Get("background").Exists()
}

// Build walks a parsed script array and produces one Plan per absolute
// http(s) image URL found on character image fields and meta logo/background
// fields. scriptName seeds the storage stem for meta assets when the meta
// entry has no display name of its own. No I/O is performed.
//
// Returns ErrNoAssets when the script references no downloadable assets.
func Build(script gjson.Result, scriptName string) ([]Plan, error) {
	var plans []Plan

	index := -1
	script.ForEach(func(_, entry gjson.Result) bool {
		index++
		switch {
		case isMeta(entry):
			plans = append(plans, metaPlans(entry, index, scriptName)...)
		case isCharacter(entry):
			plans = append(plans, characterPlans(entry, index)...)
		}
		return true
	})

	if len(plans) == 0 {
		return nil, ErrNoAssets
	}
	return plans, nil
}

func isCharacter(entry gjson.Result) bool {
	if entry.Get("id").Type != gjson.String || entry.Get("id").Str == "" {
		return false
	}
	image := entry.Get("image")
	return image.Type == gjson.String || image.IsArray()
}

func characterPlans(entry gjson.Result, index int) []Plan {
	id := entry.Get("id").Str
	name := entry.Get("name").Str
	if name == "" {
		name = id
	}

	image := entry.Get("image")
	if image.Type == gjson.String {
		if !absoluteURL.MatchString(image.Str) {
			return nil
		}
		label := scalarAlignment(entry)
		return []Plan{{
			ScriptIndex:  index,
			EntryType:    EntryCharacter,
			EntryID:      id,
			EntryName:    name,
			Field:        "image",
			OriginalURL:  image.Str,
			FileBaseName: FoldName(name) + "_" + label,
			VariantLabel: label,
		}}
	}

	var plans []Plan
	for i, elem := range image.Array() {
		// Sparse arrays are tolerated: skip non-URL elements individually.
		if elem.Type != gjson.String || !absoluteURL.MatchString(elem.Str) {
			continue
		}
		i := i
		label := positionalAlignment(i)
		plans = append(plans, Plan{
			ScriptIndex:  index,
			EntryType:    EntryCharacter,
			EntryID:      id,
			EntryName:    name,
			Field:        "image",
			OriginalURL:  elem.Str,
			FileBaseName: FoldName(name) + "_" + label,
			VariantIndex: &i,
			VariantLabel: label,
		})
	}
	return plans
}

// scalarAlignment derives the variant label for a single-image character
// from its team attribute.
func scalarAlignment(entry gjson.Result) string {
	team := entry.Get("team")
	if !team.Exists() {
		return "Variant"
	}
	if label, ok := teamAlignment[strings.ToLower(team.Str)]; ok {
		return label
	}
	return "Neutral"
}

// positionalAlignment derives the variant label for an element of a
// multi-image character. Multiple images imply an explicit alignment set,
// so the team attribute is ignored.
func positionalAlignment(i int) string {
	switch i {
	case 0:
		return "Good"
	case 1:
		return "Evil"
	default:
		return fmt.Sprintf("Variant%d", i+1)
	}
}

func metaPlans(entry gjson.Result, index int, scriptName string) []Plan {
	name := entry.Get("name").Str
	if name == "" {
		name = scriptName
	}
	if name == "" {
		name = "script"
	}

	singletons := []struct {
		field string
		label string
	}{
		{"logo", "Logo"},
		{"background", "Background"},
	}

	var plans []Plan
	for _, s := range singletons {
		value := entry.Get(s.field)
		if value.Type != gjson.String || !absoluteURL.MatchString(value.Str) {
			continue
		}
		plans = append(plans, Plan{
			ScriptIndex:  index,
			EntryType:    EntryMeta,
			EntryID:      MetaID,
			EntryName:    name,
			Field:        s.field,
			OriginalURL:  value.Str,
			FileBaseName: FoldName(name) + "_" + s.label,
			VariantLabel: s.label,
		})
	}
	return plans
}

// FoldName folds a display name to the restricted storage charset
// [A-Za-z0-9_]. Runs of other characters collapse to a single underscore.
func FoldName(name string) string {
	var b strings.Builder
	lastUnderscore := false
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			b.WriteRune(r)
			lastUnderscore = false
		default:
			if !lastUnderscore && b.Len() > 0 {
				b.WriteByte('_')
				lastUnderscore = true
			}
		}
	}
	return strings.TrimSuffix(b.String(), "_")
}
