package diag

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

type fakeProvider struct{ status Status }

func (f fakeProvider) DiagStatus() Status { return f.status }

func TestHealthzReturnsOK(t *testing.T) {
	s := New("127.0.0.1", 0, fakeProvider{}, nil)
	rr := httptest.NewRecorder()
	s.router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rr.Code != http.StatusOK || rr.Body.String() != `{"status":"ok"}` {
		t.Errorf("got code=%d body=%q", rr.Code, rr.Body.String())
	}
}

func TestStatusReturnsProviderSnapshot(t *testing.T) {
	want := Status{Protocol: "isecnet", PanelConnected: true, Zones: 8}
	s := New("127.0.0.1", 0, fakeProvider{status: want}, nil)
	rr := httptest.NewRecorder()
	s.router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/status", nil))

	var got Status
	if err := json.Unmarshal(rr.Body.Bytes(), &got); err != nil {
		t.Fatal(err)
	}
	got.UptimeSeconds = 0
	if got != want {
		t.Errorf("got %+v, want %+v", got, want)
	}
}
