// Package handler provides the HTTP request handlers for nonceguard.
//
// Every JSON response uses the Response envelope:
//
//	{"code":"OK","message":"Success","request_id":"...","timestamp":1700000000000,"data":{...}}
//
// Errors carry the domain error code (for example NG-NONCE-4030) in both
// the envelope and the X-Error-Code header. The HTTP status is derived from
// the code.
package handler
