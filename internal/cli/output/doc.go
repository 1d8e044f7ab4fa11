// Package output provides output formatting for nonceguard-cli.
//
//   - formatter.go: Formatter interface and factory
//   - table.go: aligned key/value and row tables
//   - json.go: indented JSON
//   - yaml.go: YAML via gopkg.in/yaml.v3
//
// Table output reads the json tag of struct fields for its labels, so the
// same result types serve every format.
package output
