// Package plan turns a parsed script document into an ordered list of
// asset-fetch intents without performing any I/O.
//
// Each top-level entry of the script array is classified as a character
// (string id plus an image field holding a URL or an array of URLs), as
// the script metadata entry (reserved "_meta" id, or logo/background
// fields), or ignored. One Plan is emitted per absolute http(s) URL;
// relative paths and non-string values are silently skipped.
//
// # Usage
//
//	script := gjson.ParseBytes(raw)
//	plans, err := plan.Build(script, "My Script")
//	if errors.Is(err, plan.ErrNoAssets) {
//	    // script references no downloadable images
//	}
//
// Plans are immutable after creation and carry everything the download
// coordinator needs: the source URL, the mutation target in the script
// (script index, field, optional array position) and the storage name stem.
package plan
