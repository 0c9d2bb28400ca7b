package pipeline_test

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"

	"github.com/Stayingfalse/botcimghost/internal/pipeline"
	"github.com/Stayingfalse/botcimghost/internal/plan"
	"github.com/Stayingfalse/botcimghost/internal/storage"
	"github.com/Stayingfalse/botcimghost/internal/testutils"
)

func openLocalStore(t *testing.T) (*storage.BlobStore, string) {
	t.Helper()
	dir := t.TempDir()
	store, err := storage.OpenLocal(context.Background(), dir, "https://cdn.example")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store, dir
}

func TestRunEndToEnd(t *testing.T) {
	img := testutils.PNG(t, 300, 300)
	logo := testutils.PNG(t, 100, 60)
	server := testutils.NewAssetServer(t, map[string][]byte{
		"/imp.png": img,
		"/l.png":   logo,
	})

	raw := []byte(`[{"id":"_meta","name":"Test Script","logo":"` + server.URL + `/l.png"},` +
		`{"id":"imp","name":"Imp","team":"demon","image":"` + server.URL + `/imp.png"}]`)

	store, dir := openLocalStore(t)
	sink := &captureSink{}

	result, err := pipeline.Run(context.Background(), raw, store, pipeline.RunOptions{
		Sink: sink,
		Log:  zerolog.Nop(),
	})
	require.NoError(t, err)

	assert.Equal(t, "Test Script", result.ScriptName)
	assert.Regexp(t, `^scripts/Test_Script_[0-9a-f]{8}$`, result.Prefix)

	// 2 originals + 1 thumbnail (imp only).
	require.Len(t, result.Assets, 3)
	assert.Equal(t, 3, result.Uploaded)
	assert.Zero(t, result.DedupHits)
	assert.Empty(t, result.ProxiesUsed)

	assert.Equal(t, 2, sink.total)
	assert.Equal(t, "Test Script", sink.name)

	// All four run documents are persisted under the prefix.
	prefixDir := filepath.Join(dir, filepath.FromSlash(result.Prefix))
	for _, name := range []string{"manifest.json", "original.json", "rewritten.json", "rewritten_256.json"} {
		_, err := os.Stat(filepath.Join(prefixDir, name))
		assert.NoError(t, err, "expected %s to be persisted", name)
	}

	originalDoc, err := os.ReadFile(filepath.Join(prefixDir, "original.json"))
	require.NoError(t, err)
	assert.Equal(t, raw, originalDoc)

	manifestDoc, err := os.ReadFile(filepath.Join(prefixDir, "manifest.json"))
	require.NoError(t, err)
	var manifest []pipeline.Asset
	require.NoError(t, json.Unmarshal(manifestDoc, &manifest))
	require.Len(t, manifest, 3)

	full, err := os.ReadFile(filepath.Join(prefixDir, "rewritten.json"))
	require.NoError(t, err)
	preview, err := os.ReadFile(filepath.Join(prefixDir, "rewritten_256.json"))
	require.NoError(t, err)

	fullImage := gjson.GetBytes(full, "1.image").Str
	previewImage := gjson.GetBytes(preview, "1.image").Str
	assert.Contains(t, fullImage, "https://cdn.example/"+result.Prefix+"/Imp_Evil_")
	assert.Contains(t, previewImage, "_256.png")
	assert.NotEqual(t, fullImage, previewImage)

	// Logos have no thumbnail concept: identical in both copies.
	assert.Equal(t, gjson.GetBytes(full, "0.logo").Str, gjson.GetBytes(preview, "0.logo").Str)
}

func TestRunIsIdempotentAcrossRuns(t *testing.T) {
	img := testutils.PNG(t, 300, 300)
	server := testutils.NewAssetServer(t, map[string][]byte{"/imp.png": img})

	raw := []byte(`[{"id":"imp","name":"Imp","team":"demon","image":"` + server.URL + `/imp.png"}]`)
	store, _ := openLocalStore(t)

	first, err := pipeline.Run(context.Background(), raw, store, pipeline.RunOptions{Log: zerolog.Nop()})
	require.NoError(t, err)
	second, err := pipeline.Run(context.Background(), raw, store, pipeline.RunOptions{Log: zerolog.Nop()})
	require.NoError(t, err)

	assert.Equal(t, first.Prefix, second.Prefix)
	require.Len(t, second.Assets, len(first.Assets))
	for i := range second.Assets {
		assert.Equal(t, first.Assets[i].StorageKey, second.Assets[i].StorageKey)
	}
	assert.Zero(t, second.Uploaded, "second run must perform no uploads")
	assert.Equal(t, len(second.Assets), second.DedupHits)
}

func TestRunRejectsNonArrayScript(t *testing.T) {
	store, _ := openLocalStore(t)
	_, err := pipeline.Run(context.Background(), []byte(`{"id":"imp"}`), store, pipeline.RunOptions{Log: zerolog.Nop()})
	assert.ErrorIs(t, err, pipeline.ErrInvalidScript)
}

func TestRunSurfacesPlanningFailure(t *testing.T) {
	store, _ := openLocalStore(t)
	_, err := pipeline.Run(context.Background(), []byte(`[{"id":"imp","name":"Imp"}]`), store, pipeline.RunOptions{Log: zerolog.Nop()})
	assert.ErrorIs(t, err, plan.ErrNoAssets)
}

func TestRunFailurePersistsNothing(t *testing.T) {
	raw := []byte(`[{"id":"imp","name":"Imp","team":"demon","image":"http://127.0.0.1:1/imp.png"}]`)
	store, dir := openLocalStore(t)

	_, err := pipeline.Run(context.Background(), raw, store, pipeline.RunOptions{Log: zerolog.Nop()})
	require.Error(t, err)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries, "a failed run must not persist any outputs")
}

func TestRunUsesRequestedNameOverMeta(t *testing.T) {
	img := testutils.PNG(t, 300, 300)
	server := testutils.NewAssetServer(t, map[string][]byte{"/imp.png": img})

	raw := []byte(`[{"id":"_meta","name":"Meta Name","logo":"` + server.URL + `/imp.png"}]`)
	store, _ := openLocalStore(t)

	result, err := pipeline.Run(context.Background(), raw, store, pipeline.RunOptions{
		ScriptName: "Requested",
		Log:        zerolog.Nop(),
	})
	require.NoError(t, err)
	assert.Equal(t, "Requested", result.ScriptName)
	assert.Contains(t, result.Prefix, "Requested")
}
