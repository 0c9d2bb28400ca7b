package pipeline

import (
	"fmt"
	"strconv"

	"github.com/tidwall/sjson"

	"github.com/Stayingfalse/botcimghost/internal/plan"
)

// variantKey addresses one mutation target: script index plus position
// within a multi-valued field (0 for scalar fields).
type variantKey struct {
	scriptIndex  int
	variantIndex int
}

func keyFor(p plan.Plan) variantKey {
	k := variantKey{scriptIndex: p.ScriptIndex}
	if p.VariantIndex != nil {
		k.variantIndex = *p.VariantIndex
	}
	return k
}

// Rewrite applies completed assets onto two copies of the original script
// bytes: a full-resolution copy and a preview copy that prefers thumbnail
// URLs. The input is never modified; unmatched entries stay byte-identical.
// Meta logo/background fields have no thumbnail concept and receive the
// original-resolution URL in both copies.
func Rewrite(original []byte, assets []Asset) (full, preview []byte, err error) {
	thumbs := make(map[variantKey]Asset)
	for _, a := range assets {
		if a.IsThumbnail() {
			thumbs[keyFor(a.Plan)] = a
		}
	}

	full = append([]byte(nil), original...)
	preview = append([]byte(nil), original...)

	for _, a := range assets {
		if a.IsThumbnail() {
			continue
		}

		target := strconv.Itoa(a.ScriptIndex) + "." + a.Field
		if a.VariantIndex != nil {
			target += "." + strconv.Itoa(*a.VariantIndex)
		}

		full, err = sjson.SetBytes(full, target, a.PublicURL)
		if err != nil {
			return nil, nil, fmt.Errorf("rewrite %s: %w", target, err)
		}

		previewURL := a.PublicURL
		if thumb, ok := thumbs[keyFor(a.Plan)]; ok {
			previewURL = thumb.PublicURL
		}
		preview, err = sjson.SetBytes(preview, target, previewURL)
		if err != nil {
			return nil, nil, fmt.Errorf("rewrite %s: %w", target, err)
		}
	}

	return full, preview, nil
}
