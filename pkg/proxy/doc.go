// Package proxy forwards captured requests to an upstream and relays the
// upstream response back to the client.
//
// The Forwarder builds an outbound request that is byte-faithful to the
// inbound one: method, escaped path, raw query and raw body are sent
// unchanged, and every header and cookie is forwarded except the names
// listed in ProxyConfig.ExcludedHeaders and ProxyConfig.ExcludedCookies
// (compared case-insensitively). Redirects are never followed and
// transparent decompression is disabled.
//
// PrepareResponse turns an upstream response into the response sent to the
// client: framing headers are dropped, Content-Length is recomputed from the
// bytes actually sent, and absolute Location headers that point at the
// upstream origin are rewritten to the mock server's origin.
//
// Transport failures surface as *TransportError; FailureResponse converts
// them into a deterministic 500 response.
package proxy
