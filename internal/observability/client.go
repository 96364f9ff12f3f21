package observability

import (
	"net"
	"net/http"
	"strings"
)

// Client identifies the caller behind a request or socket.
type Client struct {
	DeviceID  string
	IP        string
	RequestID string
}

// ClientFromRequest reads the caller headers. The IP is the first X-Forwarded-For hop,
// then X-Real-Ip, then the peer address.
func ClientFromRequest(r *http.Request) Client {
	return Client{
		DeviceID:  r.Header.Get("X-Device-Id"),
		IP:        clientIP(r),
		RequestID: r.Header.Get("X-Request-Id"),
	}
}

func clientIP(r *http.Request) string {
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		first, _, _ := strings.Cut(forwarded, ",")
		if ip := strings.TrimSpace(first); ip != "" {
			return ip
		}
	}
	if real := strings.TrimSpace(r.Header.Get("X-Real-Ip")); real != "" {
		return real
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
