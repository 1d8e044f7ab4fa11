// Package buildinfo exposes build information for the nonceguard binaries.
//
// Values are injected via ldflags and, when absent, filled from the module
// build info the Go linker embeds:
//
//	go build -ldflags "-X github.com/yndnr/nonceguard-go/internal/infra/buildinfo.Version=v1.0.0"
package buildinfo
