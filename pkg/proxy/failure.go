package proxy

import (
	"errors"
	"net/http"

	"github.com/getmockd/mockrelay/pkg/exchange"
	"github.com/getmockd/mockrelay/pkg/httputil"
)

// ErrorCodeUpstreamUnreachable is the error field of every failure response.
const ErrorCodeUpstreamUnreachable = "upstream_unreachable"

// FailureResponse converts a forwarding failure into a deterministic 500
// response with a JSON diagnostic body:
//
//	{"status":"error","error":"upstream_unreachable","message":"..."}
//
// The X-Mockrelay-Failure header carries the finer-grained reason code.
func FailureResponse(err error) *exchange.Response {
	reason := ErrorCodeUpstreamUnreachable
	var te *TransportError
	if errors.As(err, &te) {
		reason = te.Code()
	}

	message := "upstream request failed"
	if err != nil {
		message = err.Error()
	}

	h := http.Header{}
	h.Set("Content-Type", "application/json")
	h.Set("X-Mockrelay-Failure", reason)

	return &exchange.Response{
		StatusCode: http.StatusInternalServerError,
		Header:     h,
		Body:       httputil.ErrorBody(ErrorCodeUpstreamUnreachable, message),
	}
}
