package admin

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/getmockd/mockrelay/pkg/httputil"
	"github.com/getmockd/mockrelay/pkg/requestlog"
)

// streamPollInterval is used when the log cannot push entries.
const streamPollInterval = 500 * time.Millisecond

// RequestListResponse is the body of GET /requests.
type RequestListResponse struct {
	Requests []*requestlog.Entry `json:"requests"`
	Count    int                 `json:"count"`
	Total    int                 `json:"total"`
}

func parseRequestFilter(q url.Values) *requestlog.Filter {
	f := &requestlog.Filter{
		Method:    q.Get("method"),
		Path:      q.Get("path"),
		MappingID: q.Get("mappingId"),
		Proxied:   parseBool(q.Get("proxied")),
		HasError:  parseBool(q.Get("hasError")),
	}
	if n, ok := parsePositiveInt(q.Get("status")); ok {
		f.StatusCode = n
	}
	if n, ok := parseNonNegativeInt(q.Get("afterSeq")); ok {
		f.AfterSeq = int64(n)
	}
	if n, ok := parsePositiveInt(q.Get("limit")); ok {
		f.Limit = n
	}
	if n, ok := parseNonNegativeInt(q.Get("offset")); ok {
		f.Offset = n
	}
	return f
}

// handleListRequests handles GET /requests.
func (a *API) handleListRequests(w http.ResponseWriter, r *http.Request) {
	store := a.engine.RequestLog()
	entries := store.List(parseRequestFilter(r.URL.Query()))
	if entries == nil {
		entries = []*requestlog.Entry{}
	}
	httputil.WriteOK(w, RequestListResponse{
		Requests: entries,
		Count:    len(entries),
		Total:    store.Count(),
	})
}

// handleGetRequest handles GET /requests/{id}.
func (a *API) handleGetRequest(w http.ResponseWriter, r *http.Request) {
	entry := a.engine.RequestLog().Get(r.PathValue("id"))
	if entry == nil {
		httputil.WriteNotFound(w, "not_found", "request not found")
		return
	}
	httputil.WriteOK(w, entry)
}

// handleClearRequests handles DELETE /requests.
func (a *API) handleClearRequests(w http.ResponseWriter, _ *http.Request) {
	store := a.engine.RequestLog()
	n := store.Count()
	store.Clear()
	a.log.Info("exchange log cleared", "count", n)
	httputil.WriteOK(w, map[string]any{
		"message": "Request logs cleared",
		"cleared": n,
	})
}

// handleStreamRequests handles GET /requests/stream, an SSE feed of new
// exchange log entries.
func (a *API) handleStreamRequests(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		httputil.WriteError(w, http.StatusInternalServerError, "sse_error", "Streaming not supported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	ctx := r.Context()
	store := a.engine.RequestLog()

	// Subscribe before announcing the connection.
	if sub, ok := store.(requestlog.SubscribableStore); ok {
		ch, unsubscribe := sub.Subscribe()
		defer unsubscribe()
		writeConnected(w, flusher)
		for {
			select {
			case <-ctx.Done():
				return
			case entry, ok := <-ch:
				if !ok {
					return
				}
				writeEvent(w, entry)
				flusher.Flush()
			}
		}
	}

	// Poll for entries past the last sequence number seen.
	var lastSeq int64
	if latest := store.List(nil); len(latest) > 0 {
		lastSeq = latest[len(latest)-1].Seq
	}
	writeConnected(w, flusher)
	ticker := time.NewTicker(streamPollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			entries := store.List(&requestlog.Filter{AfterSeq: lastSeq})
			for _, entry := range entries {
				writeEvent(w, entry)
				lastSeq = entry.Seq
			}
			if len(entries) > 0 {
				flusher.Flush()
			}
		}
	}
}

func writeConnected(w http.ResponseWriter, flusher http.Flusher) {
	_, _ = fmt.Fprintf(w, "event: connected\ndata: {\"message\": \"Connected to request stream\"}\n\n")
	flusher.Flush()
}

func writeEvent(w http.ResponseWriter, entry *requestlog.Entry) {
	data, err := json.Marshal(entry)
	if err != nil {
		return
	}
	_, _ = fmt.Fprintf(w, "event: request\ndata: %s\n\n", data)
}
