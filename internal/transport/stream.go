package transport

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/net/http2"

	"github.com/cursorstudio/cursorproxy/internal/capture"
	"github.com/cursorstudio/cursorproxy/internal/eventbus"
	"github.com/cursorstudio/cursorproxy/internal/grpcedit"
)

// hopByHop headers are never copied onto the upstream request: host and
// connection scope change between legs, and content-length is no longer
// accurate once the editor may rewrite the body.
var hopByHop = []string{"Host", "Connection", "Content-Length"}

// handleStream forwards one HTTP/2 stream from the terminated client
// connection to the upstream connection, rewriting the first gRPC message of
// chat-service streams when an injection policy applies to them.
func handleStream(w http.ResponseWriter, r *http.Request, streamID uint32, connID uint64, cfg Config, deps *Deps, cc *http2.ClientConn) {
	start := time.Now()
	service, method := grpcedit.ParsePath(r.URL.Path)
	endpoint := service + "/" + method
	injectable := grpcedit.Injectable(service) && deps.Policy != nil && deps.Policy.IsEnabled()

	deps.Bus.Publish(eventbus.Event{
		Tag: eventbus.TagRequestStarted, Time: start.UTC(),
		ConnID: connID, StreamID: streamID,
		Method: r.Method, Path: r.URL.Path, Service: service, Endpoint: endpoint,
	})

	var reqBytes, respBytes int64
	var reqCapture, respCapture bytes.Buffer
	var respHeader http.Header
	status := 0

	defer func() {
		if rec := recover(); rec != nil {
			// A panic in this stream's handling must not tear down the
			// connection; other streams are goroutines of their own under
			// golang.org/x/net/http2.
		}
		deps.Bus.Publish(eventbus.Event{
			Tag: eventbus.TagRequestCompleted, Time: time.Now().UTC(),
			ConnID: connID, StreamID: streamID,
			Method: r.Method, Path: r.URL.Path, Service: service, Endpoint: endpoint,
			Status: status, ReqBytes: reqBytes, RespBytes: respBytes,
			DurationMS: time.Since(start).Milliseconds(),
		})
		if deps.Capture != nil {
			_ = deps.Capture.SaveStream(connID, capture.Meta{
				Service: service, Method: method,
				RequestHeaders:  headerMap(r.Header),
				ResponseHeaders: headerMap(respHeader),
				RequestBytes:    reqBytes,
				ResponseBytes:   respBytes,
				DurationMS:      time.Since(start).Milliseconds(),
			}, reqCapture.Bytes(), respCapture.Bytes())
		}
	}()

	var body io.Reader = r.Body
	if injectable {
		counted := &countingReader{r: r.Body, capture: &reqCapture}
		first, clientEnded, err := grpcedit.BufferFirstMessage(counted, func(n int) { reqBytes += int64(n) })
		if err != nil {
			http.Error(w, "read error", http.StatusBadGateway)
			status = http.StatusBadGateway
			return
		}
		if len(first) > 0 && grpcedit.MessageReady(first) {
			framed, remainder := grpcedit.SplitFirstMessage(first)
			if replacement, ok := deps.Policy.Rewrite(framed, endpoint); ok {
				framed = replacement
			}
			combined := append(append([]byte(nil), framed...), remainder...)
			if clientEnded {
				body = bytes.NewReader(combined)
			} else {
				body = io.MultiReader(bytes.NewReader(combined), counted)
			}
		} else {
			// Client ended before a full frame arrived: forward whatever
			// was buffered unmodified.
			body = bytes.NewReader(first)
		}
	} else {
		body = &countingReader{r: r.Body, capture: &reqCapture, counterPtr: &reqBytes}
	}

	var policy *policyOverrides
	if injectable {
		policy = &policyOverrides{headers: deps.Policy.HeaderOverrides(), spoofVersion: deps.Policy.SpoofedVersion()}
	}
	req, err := buildUpstreamRequest(r, cfg, newCappedReader(body), policy)
	if err != nil {
		http.Error(w, "bad request", http.StatusBadGateway)
		status = http.StatusBadGateway
		return
	}

	resp, err := cc.RoundTrip(req)
	if err != nil {
		http.Error(w, "upstream error", http.StatusBadGateway)
		status = http.StatusBadGateway
		return
	}
	defer resp.Body.Close()
	respHeader = resp.Header

	status = resp.StatusCode
	for k, vs := range resp.Header {
		if strings.EqualFold(k, "Content-Length") {
			continue
		}
		for _, v := range vs {
			w.Header().Add(k, v)
		}
	}
	w.WriteHeader(resp.StatusCode)

	flusher, _ := w.(http.Flusher)
	if flusher == nil {
		flusher = noopFlusher{}
	}
	// Headers go out before we ever touch the response body.
	flusher.Flush()

	buf := make([]byte, responseReadChunk)
	for {
		n, rerr := resp.Body.Read(buf)
		if n > 0 {
			respBytes += int64(n)
			respCapture.Write(buf[:n])
			if serr := chunkedSend(w, flusher, buf[:n]); serr != nil {
				return
			}
		}
		if rerr == io.EOF {
			return
		}
		if rerr != nil {
			return
		}
	}
}

// clientVersionHeader is the header version spoofing rewrites (config key
// injection.spoof_version).
const clientVersionHeader = "X-Cursor-Client-Version"

// policyOverrides carries the subset of the Injection Policy that acts on
// headers rather than the gRPC body, applied only to injectable streams.
type policyOverrides struct {
	headers      map[string]string
	spoofVersion string
}

// buildUpstreamRequest constructs the request this proxy sends upstream,
// copying method, path and non-hop-by-hop headers from the client request,
// then applying any injection-policy header translation.
func buildUpstreamRequest(r *http.Request, cfg Config, body io.Reader, policy *policyOverrides) (*http.Request, error) {
	u := &url.URL{
		Scheme: "https",
		Host:   fmt.Sprintf("%s:%d", cfg.UpstreamHost, cfg.UpstreamPort),
		Path:   r.URL.Path,
	}
	rc, ok := body.(io.ReadCloser)
	if !ok {
		rc = io.NopCloser(body)
	}
	req, err := http.NewRequest(r.Method, u.String(), rc)
	if err != nil {
		return nil, err
	}
	for k, vs := range r.Header {
		if containsFold(hopByHop, k) {
			continue
		}
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	if policy != nil {
		for k, v := range policy.headers {
			req.Header.Set(k, v)
		}
		if policy.spoofVersion != "" {
			req.Header.Set(clientVersionHeader, policy.spoofVersion)
		}
	}

	// Never echo content-length: the body may have been rewritten to a
	// different length, and the stream may stay open past what any
	// original length implied.
	req.ContentLength = -1
	return req, nil
}

func containsFold(list []string, s string) bool {
	for _, v := range list {
		if strings.EqualFold(v, s) {
			return true
		}
	}
	return false
}

func headerMap(h http.Header) map[string]string {
	out := make(map[string]string, len(h))
	for k, vs := range h {
		if len(vs) > 0 {
			out[k] = vs[0]
		}
	}
	return out
}

// countingReader wraps the client request body so that pass-through reads
// are counted and mirrored into the capture buffer without an extra copy
// pass over the whole body.
type countingReader struct {
	r          io.Reader
	capture    *bytes.Buffer
	counterPtr *int64
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	if n > 0 {
		c.capture.Write(p[:n])
		if c.counterPtr != nil {
			*c.counterPtr += int64(n)
		}
	}
	return n, err
}

type noopFlusher struct{}

func (noopFlusher) Flush() {}
