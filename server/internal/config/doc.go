// Package config loads the server configuration from the `server:` section
// of config.yaml.
//
// Config fields:
//   - HTTPPort           — API listen port (default 8080)
//   - DataFile           — telemetry JSON, relative to the executable (default telemetry.json)
//   - DefaultThresholdMs — breach threshold when a request omits one (default 180)
//   - MaxBodyBytes       — request body limit (default 1 MiB)
//   - Watch              — reload log settings when the file changes
//   - CORS               — allowed methods and headers; origin is always "*"
//   - Log                — level, optional rotated log file
//
// Load(path) applies defaults before unmarshalling, then validates the
// result with go-playground/validator struct tags. A missing file yields the
// defaults; a malformed or invalid one is an error.
package config
