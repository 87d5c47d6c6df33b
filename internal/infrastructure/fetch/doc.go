// Package fetch retrieves the network metadata the posture evaluator scores:
// status, headers, TLS parameters, certificate validity, the final URL after
// redirects and, optionally, a bounded page body.
package fetch
