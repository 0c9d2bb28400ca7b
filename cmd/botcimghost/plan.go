package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/tidwall/gjson"

	"github.com/Stayingfalse/botcimghost/internal/pipeline"
	"github.com/Stayingfalse/botcimghost/internal/plan"
)

// runPlan lists the assets a script references without any network or
// storage activity.
func runPlan(args []string) int {
	fs := flag.NewFlagSet("plan", flag.ExitOnError)

	script := fs.String("script", "", "Path to the script JSON, or '-' for stdin (required)")
	name := fs.String("name", "", "Script display name (default: the script's meta name)")

	fs.Usage = func() {
		fmt.Fprintln(os.Stderr, `Usage: botcimghost plan [options]

List the asset fetches a mirror run would perform, without performing any.

Options:`)
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		return ExitInvalidArgs
	}

	if *script == "" {
		fmt.Fprintln(os.Stderr, "Error: -script is required")
		fs.Usage()
		return ExitInvalidArgs
	}

	raw, err := readScript(*script)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error reading script: %v\n", err)
		return ExitGeneralError
	}

	doc := gjson.ParseBytes(raw)
	if !doc.IsArray() {
		fmt.Fprintln(os.Stderr, "Error: the script must be a JSON array")
		return ExitInvalidScript
	}

	scriptName := *name
	if scriptName == "" {
		scriptName = plan.MetaEntry(doc).Get("name").Str
	}
	if scriptName == "" {
		scriptName = "script"
	}

	plans, err := plan.Build(doc, scriptName)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return ExitNoAssets
	}

	fmt.Printf("Script: %s\n", scriptName)
	fmt.Printf("Prefix: %s\n", pipeline.Prefix(raw, scriptName))
	fmt.Printf("Assets: %d\n\n", len(plans))
	for _, p := range plans {
		fmt.Printf("  [%d] %s\n", p.ScriptIndex, p)
	}

	return ExitSuccess
}
