// Package source talks to the remote work source.
//
// Transport is the contract the acquisition pipeline and metadata lookup
// depend on; Client is the HTTP implementation. Album documents are fetched
// from {base_url}/album/{id} and page images from the URLs they list. The
// client retries timeouts, 408, 429 and 5xx responses with exponential
// backoff (honouring Retry-After) and downloads pages concurrently, bounded by
// the configured worker count.
package source
