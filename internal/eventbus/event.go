package eventbus

import "time"

// Tag identifies the kind of a published Event.
type Tag string

const (
	TagConnectionOpened Tag = "ConnectionOpened"
	TagConnectionClosed Tag = "ConnectionClosed"
	TagRequestStarted   Tag = "RequestStarted"
	TagRequestCompleted Tag = "RequestCompleted"
	TagCaptureSaved     Tag = "CaptureSaved"
	TagUpstreamAction   Tag = "UpstreamAction"
)

// Event is a single lifecycle record. Every event carries Tag, Time and
// ConnID; the remaining fields are populated according to Tag as documented
// per-field below.
type Event struct {
	Tag  Tag       `json:"tag"`
	Time time.Time `json:"time"`

	ConnID   uint64 `json:"conn_id"`
	StreamID uint32 `json:"stream_id,omitempty"`

	// Connection-level fields (ConnectionOpened/Closed).
	PeerAddr     string `json:"peer_addr,omitempty"`
	UpstreamAddr string `json:"upstream_addr,omitempty"`
	ALPN         string `json:"alpn,omitempty"`

	// Request-level fields (RequestStarted/Completed).
	Method   string `json:"method,omitempty"`
	Path     string `json:"path,omitempty"`
	Service  string `json:"service,omitempty"`
	Endpoint string `json:"endpoint,omitempty"`
	Status   int    `json:"status,omitempty"`

	ReqBytes  int64 `json:"req_bytes,omitempty"`
	RespBytes int64 `json:"resp_bytes,omitempty"`

	// DurationMS is populated on terminal events (ConnectionClosed,
	// RequestCompleted).
	DurationMS int64 `json:"duration_ms,omitempty"`

	// UpstreamAction free-text detail (e.g. "dns-fallback", "loop-rejected").
	Detail string `json:"detail,omitempty"`
}
