package hosts

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"leasesync/pkg/models"
)

type recorder struct {
	mu    sync.Mutex
	paths []string
}

func (r *recorder) add(path string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.paths = append(r.paths, path)
}

func (r *recorder) all() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.paths...)
}

func newTrackingServer(t *testing.T, hostsJSON string) (*httptest.Server, *recorder) {
	t.Helper()
	rec := &recorder{}
	mux := http.NewServeMux()
	mux.HandleFunc("/api/all", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(hostsJSON))
	})
	mux.HandleFunc("/api/edit/", func(w http.ResponseWriter, r *http.Request) {
		rec.add(r.URL.EscapedPath())
		w.WriteHeader(http.StatusOK)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv, rec
}

func TestClientHosts(t *testing.T) {
	srv, _ := newTrackingServer(t, `[
		{"ID": 12, "Mac": "aa:bb:cc:dd:ee:01", "Name": "nas", "Known": true, "Iface": "eth0"},
		{"ID": "x7", "Mac": "AA:BB:CC:DD:EE:02", "Name": "", "Known": false}
	]`)

	c := NewClient(srv.URL+"/", time.Second, zerolog.Nop())
	hosts, err := c.Hosts(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []models.TrackedHost{
		{ID: "12", Mac: "aa:bb:cc:dd:ee:01", Name: "nas", Known: true},
		{ID: "x7", Mac: "AA:BB:CC:DD:EE:02", Name: "", Known: false},
	}, hosts)
}

func TestClientHostsErrors(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		wantErr error
	}{
		{name: "server error", status: http.StatusInternalServerError, body: "boom", wantErr: ErrStatus},
		{name: "not found", status: http.StatusNotFound, body: "", wantErr: ErrStatus},
		{name: "malformed json", status: http.StatusOK, body: "{not json"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			_, err := NewClient(srv.URL, time.Second, zerolog.Nop()).Hosts(context.Background())
			require.Error(t, err)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			}
		})
	}
}

func TestClientApply(t *testing.T) {
	srv, rec := newTrackingServer(t, `[]`)
	c := NewClient(srv.URL, time.Second, zerolog.Nop())
	ctx := context.Background()

	require.NoError(t, c.Apply(ctx, PresenceAction{Kind: Rename, ID: "5", Name: "living room tv"}))
	require.NoError(t, c.Apply(ctx, PresenceAction{Kind: MarkKnown, ID: "5", Name: "a/b"}))
	require.NoError(t, c.Apply(ctx, PresenceAction{Kind: UnmarkKnown, ID: "6", Name: ""}))
	require.NoError(t, c.Rename(ctx, "7", "   "))

	assert.Equal(t, []string{
		"/api/edit/5/living%20room%20tv",
		"/api/edit/5/a%2Fb/toggle",
		"/api/edit/6/-/toggle",
		"/api/edit/7/-",
	}, rec.all())
}
