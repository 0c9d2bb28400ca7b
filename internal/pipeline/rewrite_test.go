package pipeline_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"

	"github.com/Stayingfalse/botcimghost/internal/pipeline"
	"github.com/Stayingfalse/botcimghost/internal/plan"
)

func asset(p plan.Plan, url string) pipeline.Asset {
	return pipeline.Asset{Plan: p, PublicURL: url}
}

func thumbOf(p plan.Plan, url string) pipeline.Asset {
	p.VariantLabel += pipeline.ThumbMarker
	return pipeline.Asset{Plan: p, PublicURL: url}
}

func intp(i int) *int { return &i }

func TestRewriteScalarAndMetaFields(t *testing.T) {
	original := []byte(`[{"id":"_meta","name":"Test Script","logo":"http://h/l.png"},` +
		`{"id":"imp","name":"Imp","team":"demon","image":"http://h/imp.png"}]`)

	logoPlan := plan.Plan{ScriptIndex: 0, EntryType: plan.EntryMeta, Field: "logo", VariantLabel: "Logo"}
	impPlan := plan.Plan{ScriptIndex: 1, EntryType: plan.EntryCharacter, Field: "image", VariantLabel: "Evil"}

	assets := []pipeline.Asset{
		asset(logoPlan, "https://cdn/l.png"),
		asset(impPlan, "https://cdn/imp.png"),
		thumbOf(impPlan, "https://cdn/imp_256.png"),
	}

	full, preview, err := pipeline.Rewrite(original, assets)
	require.NoError(t, err)

	assert.Equal(t, "https://cdn/l.png", gjson.GetBytes(full, "0.logo").Str)
	assert.Equal(t, "https://cdn/imp.png", gjson.GetBytes(full, "1.image").Str)

	// Meta fields never have thumbnails; character images prefer them.
	assert.Equal(t, "https://cdn/l.png", gjson.GetBytes(preview, "0.logo").Str)
	assert.Equal(t, "https://cdn/imp_256.png", gjson.GetBytes(preview, "1.image").Str)

	// Untouched attributes survive byte-identical.
	assert.Equal(t, "Test Script", gjson.GetBytes(full, "0.name").Str)
	assert.Equal(t, "demon", gjson.GetBytes(full, "1.team").Str)
}

func TestRewriteDoesNotMutateInput(t *testing.T) {
	original := []byte(`[{"id":"imp","name":"Imp","image":"http://h/imp.png"}]`)
	snapshot := append([]byte(nil), original...)

	p := plan.Plan{ScriptIndex: 0, EntryType: plan.EntryCharacter, Field: "image"}
	_, _, err := pipeline.Rewrite(original, []pipeline.Asset{asset(p, "https://cdn/x.png")})
	require.NoError(t, err)

	assert.Equal(t, snapshot, original)
}

func TestRewriteArrayPositions(t *testing.T) {
	original := []byte(`[{"id":"legion","name":"Legion","image":["http://h/a.png","http://h/b.png"]}]`)

	good := plan.Plan{ScriptIndex: 0, EntryType: plan.EntryCharacter, Field: "image", VariantIndex: intp(0), VariantLabel: "Good"}
	evil := plan.Plan{ScriptIndex: 0, EntryType: plan.EntryCharacter, Field: "image", VariantIndex: intp(1), VariantLabel: "Evil"}

	assets := []pipeline.Asset{
		asset(good, "https://cdn/good.png"),
		thumbOf(good, "https://cdn/good_256.png"),
		asset(evil, "https://cdn/evil.png"),
	}

	full, preview, err := pipeline.Rewrite(original, assets)
	require.NoError(t, err)

	assert.Equal(t, "https://cdn/good.png", gjson.GetBytes(full, "0.image.0").Str)
	assert.Equal(t, "https://cdn/evil.png", gjson.GetBytes(full, "0.image.1").Str)

	// Thumbnail where one exists, mirrored original URL otherwise.
	assert.Equal(t, "https://cdn/good_256.png", gjson.GetBytes(preview, "0.image.0").Str)
	assert.Equal(t, "https://cdn/evil.png", gjson.GetBytes(preview, "0.image.1").Str)
}

func TestRewriteFullCopyNeverContainsThumbnails(t *testing.T) {
	original := []byte(`[{"id":"imp","name":"Imp","image":"http://h/imp.png"}]`)

	p := plan.Plan{ScriptIndex: 0, EntryType: plan.EntryCharacter, Field: "image", VariantLabel: "Evil"}
	assets := []pipeline.Asset{
		asset(p, "https://cdn/imp.png"),
		thumbOf(p, "https://cdn/imp_256.png"),
	}

	full, _, err := pipeline.Rewrite(original, assets)
	require.NoError(t, err)
	assert.NotContains(t, string(full), "imp_256.png")
}

func TestRewriteUnmatchedEntriesStayIdentical(t *testing.T) {
	original := []byte(`[{"id":"imp","name":"Imp","image":"http://h/imp.png"},` +
		`{"id":"baron","name":"Baron","ability":"unchanged"}]`)

	p := plan.Plan{ScriptIndex: 0, EntryType: plan.EntryCharacter, Field: "image"}
	full, preview, err := pipeline.Rewrite(original, []pipeline.Asset{asset(p, "https://cdn/x.png")})
	require.NoError(t, err)

	want := gjson.GetBytes(original, "1").Raw
	assert.Equal(t, want, gjson.GetBytes(full, "1").Raw)
	assert.Equal(t, want, gjson.GetBytes(preview, "1").Raw)
}
