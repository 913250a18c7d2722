package models

// ClientInfo carries the request attributes the core needs, threaded
// explicitly through orchestrator calls instead of an implicit request
// context.
type ClientInfo struct {
	RemoteAddr   string // direct peer address, host or host:port
	UserAgent    string
	ForwardedFor string // raw X-Forwarded-For header value, may be empty
}
