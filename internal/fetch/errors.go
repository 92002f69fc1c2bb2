package fetch

import (
	"crypto/tls"
	"crypto/x509"
	"errors"
	"net/http"
	"strings"
)

var (
	// ErrTransportSecurity is wrapped around TLS handshake and certificate
	// verification failures. The crawler retries such URLs once over http.
	ErrTransportSecurity = errors.New("transport security failure")

	// ErrInvalidProxyAddress is returned when the proxy address format is invalid.
	// Expected format is "host:port".
	ErrInvalidProxyAddress = errors.New("invalid proxy address format: expected host:port")

	// ErrUnsupportedScheme is returned for URLs that are not http or https.
	ErrUnsupportedScheme = errors.New("unsupported URL scheme: expected http or https")
)

// isTransportSecurityError reports whether err was caused by TLS.
func isTransportSecurityError(err error) bool {
	if err == nil {
		return false
	}

	if errors.Is(err, http.ErrSchemeMismatch) {
		return true
	}

	var certErr *tls.CertificateVerificationError
	if errors.As(err, &certErr) {
		return true
	}
	var recordErr tls.RecordHeaderError
	if errors.As(err, &recordErr) {
		return true
	}
	var alertErr tls.AlertError
	if errors.As(err, &alertErr) {
		return true
	}
	var unknownAuthority x509.UnknownAuthorityError
	if errors.As(err, &unknownAuthority) {
		return true
	}
	var hostnameErr x509.HostnameError
	if errors.As(err, &hostnameErr) {
		return true
	}
	var invalidErr x509.CertificateInvalidError
	if errors.As(err, &invalidErr) {
		return true
	}

	// Some handshake failures only surface as strings from net/http,
	// including a plain HTTP server answering on the https port.
	msg := err.Error()
	return strings.Contains(msg, "tls: ") ||
		strings.Contains(msg, "x509: ") ||
		strings.Contains(msg, "server gave HTTP response to HTTPS client")
}
