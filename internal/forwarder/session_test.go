package forwarder

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingUpstream struct {
	mu   sync.Mutex
	sent []ProtoMessage
}

func (u *recordingUpstream) Send(ctx context.Context, msg ProtoMessage) error {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.sent = append(u.sent, msg)
	return nil
}

func (u *recordingUpstream) snapshot() []ProtoMessage {
	u.mu.Lock()
	defer u.mu.Unlock()
	return append([]ProtoMessage(nil), u.sent...)
}

func waitForSent(t *testing.T, u *recordingUpstream, n int) []ProtoMessage {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if snap := u.snapshot(); len(snap) >= n {
			return snap
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %d upstream sends, got %d", n, len(u.snapshot()))
	return nil
}

func newTestSession() (*Session, *recordingUpstream) {
	up := &recordingUpstream{}
	d := &Dispatcher{client: resty.New()}
	return NewSession(d, up, nil), up
}

func targetPort(t *testing.T, srv *httptest.Server) uint32 {
	t.Helper()
	u, err := url.Parse(srv.URL)
	require.NoError(t, err)
	p, err := strconv.Atoi(u.Port())
	require.NoError(t, err)
	return uint32(p)
}

func TestSessionDispatchesHttpRequest(t *testing.T) {
	target := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte("created"))
	}))
	defer target.Close()

	port := targetPort(t, target)
	session, up := newTestSession()

	id, _ := NewId([]byte{1})
	session.Handle(context.Background(), ProtoHttp(id, HttpRequest("POST", "/things", "", map[string]string{}, []byte("x"), port)))

	sent := waitForSent(t, up, 1)
	require.Len(t, sent, 1)
	assert.Equal(t, uint32(http.StatusCreated), sent[0].HttpMsg.StatusCode)
	assert.Equal(t, []byte("created"), sent[0].HttpMsg.Body)
}

func TestSessionDropsDuplicateRequestId(t *testing.T) {
	var hits int
	var mu sync.Mutex
	blocking := make(chan struct{})
	target := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		hits++
		mu.Unlock()
		<-blocking
		w.WriteHeader(http.StatusOK)
	}))
	defer target.Close()

	port := targetPort(t, target)
	session, up := newTestSession()

	id, _ := NewId([]byte{2})
	req := ProtoHttp(id, HttpRequest("GET", "/slow", "", map[string]string{}, nil, port))

	session.Handle(context.Background(), req)
	session.Handle(context.Background(), req) // duplicate while the first is still in flight

	time.Sleep(50 * time.Millisecond)
	close(blocking)

	waitForSent(t, up, 1)
	session.Wait()

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 1, hits, "duplicate request_id must never be dispatched twice")
}
