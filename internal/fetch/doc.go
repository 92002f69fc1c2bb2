// Package fetch implements the HTTP side of script discovery.
//
// Client performs GET requests with a fixed desktop browser User-Agent and
// a short per-request timeout. It undoes gzip, deflate and brotli content
// encoding, decodes the text with the declared or sniffed charset, and
// classifies failures so the crawler can apply its scheme
// fallback policy:
//
//   - TLS handshake and certificate failures wrap ErrTransportSecurity, as
//     does a plain HTTP answer to an https request
//   - every other transport failure is returned as-is
//
// The client optionally routes through a SOCKS5 proxy, injects per-site
// headers and cookies, and throttles requests with a token bucket.
package fetch
