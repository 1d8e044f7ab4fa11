// Package main provides the entry point for nonceguard-cli.
//
// The CLI issues and verifies nonces locally from the installation secret,
// talks to a running nonceguard-server, and validates server configuration:
//
//	nonceguard-cli issue --action delete-post-42 --secret-file /etc/nonceguard/secret
//	nonceguard-cli verify --action delete-post-42 --token <nonce> --secret-file ...
//	nonceguard-cli --server http://127.0.0.1:5480 remote issue --action archive
//	nonceguard-cli config validate --config /etc/nonceguard/server.yaml
//
// verify exits 1 when the nonce is invalid and 2 when it is malformed.
package main
