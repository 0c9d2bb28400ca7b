// Package config handles configuration loading for the botcimghost CLI.
//
// Configuration is resolved in layers, later layers overriding earlier
// ones:
//
//  1. Defaults (Default)
//  2. YAML config file (LoadFromFile)
//  3. Environment variables with the BOTCIMGHOST_ prefix (LoadFromEnv)
//  4. Command-line flags (Merge)
//
// Validate is called once after all layers are applied.
package config
