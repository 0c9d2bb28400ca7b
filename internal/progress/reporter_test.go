package progress_test

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/Stayingfalse/botcimghost/internal/pipeline"
	"github.com/Stayingfalse/botcimghost/internal/plan"
	"github.com/Stayingfalse/botcimghost/internal/progress"
)

func TestReporterOutput(t *testing.T) {
	var buf bytes.Buffer
	r := progress.NewReporter(progress.Options{Output: &buf})

	p := plan.Plan{EntryName: "Imp", VariantLabel: "Evil"}

	r.PlanSummary(2, "Test Script")
	r.AssetStart(p)
	r.AssetStored(p, pipeline.Asset{Plan: p, Size: 2048})
	r.AssetStored(p, pipeline.Asset{Plan: p, Deduplicated: true})
	r.Summary()

	out := buf.String()
	assert.Contains(t, out, `Mirroring "Test Script": 2 assets`)
	assert.Contains(t, out, "(1/2) fetching Imp Evil")
	assert.Contains(t, out, "2.00 KB")
	assert.Contains(t, out, "already stored")
	assert.Contains(t, out, "1 dedup hits")
}

func TestReporterImplementsSink(t *testing.T) {
	var _ pipeline.Sink = progress.NewReporter(progress.Options{Output: &strings.Builder{}})
}
