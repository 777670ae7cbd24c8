// Package config handles configuration loading and merging for verdict.
//
// # Configuration Precedence
//
// Configuration values are resolved in the following order (highest to lowest priority):
//
//  1. CLI flags (--out, --format, --theme, --no-reconcile, etc.)
//  2. Environment variables (VERDICT_OUT, VERDICT_FORMAT, ... and NO_COLOR)
//  3. YAML config file (.verdict.yaml in the working directory or the user config dir)
//  4. Hardcoded defaults
//
// When a higher-priority source sets a value, it overrides any lower-priority values.
//
// # Key Configuration Options
//
//   - Out: Directory receiving report.json, rerun.txt, rerun-summary.json and summary.html
//   - RetrySummary: Persisted retry summary to reconcile against (defaults to the one in Out)
//   - Reconcile: When false, failures are reported as observed, without retry filtering
//   - Format: Console output (auto, terminal, plain, json)
//
// # Environment Variables
//
// Build metadata is read from the CI environment when the prefixed variables are unset:
//
//   - BUILD_NUMBER, BUILD_URL: CI build identification
//   - GIT_BRANCH, GIT_COMMIT: Source revision
//   - NO_COLOR: Any non-empty value disables colors
package config
