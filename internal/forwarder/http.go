package forwarder

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/go-resty/resty/v2"
)

// httpTargetURL builds http://localhost:<port>/<path>?<query>, the
// normal (non-upgrade) request target.
func httpTargetURL(msg HttpMessage) string {
	return targetURL("http", msg)
}

// wsTargetURL builds ws://localhost:<port>/<path>?<query>, the
// upgrade-flow request target.
func wsTargetURL(msg HttpMessage) string {
	return targetURL("ws", msg)
}

func targetURL(scheme string, msg HttpMessage) string {
	u := url.URL{
		Scheme:   scheme,
		Host:     fmt.Sprintf("localhost:%d", msg.Port),
		Path:     "/" + strings.TrimPrefix(msg.Path, "/"),
		RawQuery: msg.QueryString,
	}
	return u.String()
}

// Dispatcher sends a decoded HTTP Request to the local target and
// returns its Response, using go-resty for the actual transport.
type Dispatcher struct {
	client *resty.Client
}

func NewDispatcher() *Dispatcher {
	return &Dispatcher{client: resty.New()}
}

// Dispatch performs one normal (non-upgrade) HTTP round trip.
func (d *Dispatcher) Dispatch(ctx context.Context, msg HttpMessage) (HttpMessage, error) {
	req := d.client.R().SetContext(ctx).SetBody(msg.Body)
	for k, v := range msg.Headers {
		req.SetHeader(k, v)
	}

	resp, err := req.Execute(strings.ToUpper(msg.Method), httpTargetURL(msg))
	if err != nil {
		return HttpMessage{}, fmt.Errorf("forwarder: dispatch %s %s: %w", msg.Method, msg.Path, err)
	}

	headers := make(map[string]string, len(resp.Header()))
	for k, v := range resp.Header() {
		if len(v) > 0 {
			headers[k] = v[0]
		}
	}
	return HttpResponse(uint32(resp.StatusCode()), headers, resp.Body()), nil
}

// stripUpgradeHeaders returns a copy of an upgrade request's headers
// without sec-websocket-extensions (deflate is not supported). The
// warning for a non-empty upgrade body is logged by the Session.
func stripUpgradeHeaders(headers map[string]string) map[string]string {
	out := make(map[string]string, len(headers))
	for k, v := range headers {
		if equalFoldASCII(k, "sec-websocket-extensions") {
			continue
		}
		out[k] = v
	}
	return out
}
