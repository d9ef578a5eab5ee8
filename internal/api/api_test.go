package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"tatkald/internal/audit"
	"tatkald/internal/model"
	"tatkald/internal/store"
	"tatkald/internal/tatkal"
	"tatkald/pkg/logx"
)

type fakeService struct {
	entries   []model.Entry
	createErr error
	deleted   []string
}

func (f *fakeService) Create(_ context.Context, e model.Entry) (CreateResult, error) {
	if f.createErr != nil {
		return CreateResult{}, f.createErr
	}
	e.ID = model.NewID(time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC))
	f.entries = append(f.entries, e)
	return CreateResult{Entry: e, PreArmed: true, T0Armed: true}, nil
}

func (f *fakeService) List(context.Context) ([]model.Entry, error) {
	return f.entries, nil
}

func (f *fakeService) Delete(_ context.Context, id string) error {
	for i, e := range f.entries {
		if e.ID == id {
			f.entries = append(f.entries[:i], f.entries[i+1:]...)
			f.deleted = append(f.deleted, id)
			return nil
		}
	}
	return store.ErrNotFound
}

func (f *fakeService) Dispatches(context.Context, int) ([]audit.Dispatch, error) {
	return []audit.Dispatch{{EntryID: "T1", Kind: "pre", OK: true}}, nil
}

func newTestServer(t *testing.T, svc Service, calendarPath string) *httptest.Server {
	t.Helper()
	h := NewHandler(svc, calendarPath, logx.Nop())
	srv := httptest.NewServer(h.Router())
	t.Cleanup(srv.Close)
	return srv
}

func validBody() string {
	return `{
		"date": "2025-01-10",
		"train": "12345",
		"from": "NDLS",
		"to": "BCT",
		"class": "3A",
		"tatkalType": "AC",
		"passengers": [{"name": "X", "age": 30, "gender": "M"}]
	}`
}

func decodeResponse(t *testing.T, resp *http.Response) Response {
	t.Helper()
	defer resp.Body.Close()
	var out Response
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return out
}

func TestCreateOK(t *testing.T) {
	svc := &fakeService{}
	srv := newTestServer(t, svc, "")

	resp, err := http.Post(srv.URL+"/api/tatkal", "application/json", strings.NewReader(validBody()))
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	out := decodeResponse(t, resp)
	if !out.OK {
		t.Fatalf("response not ok: %+v", out)
	}
	if len(svc.entries) != 1 {
		t.Fatalf("service saw %d entries", len(svc.entries))
	}
}

func TestCreateMissingFields(t *testing.T) {
	svc := &fakeService{}
	srv := newTestServer(t, svc, "")

	resp, err := http.Post(srv.URL+"/api/tatkal", "application/json",
		strings.NewReader(`{"date": "2025-01-10", "passengers": []}`))
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", resp.StatusCode)
	}
	out := decodeResponse(t, resp)
	for _, field := range []string{"train", "from", "to", "class", "tatkaltype", "passengers"} {
		if !strings.Contains(strings.ToLower(out.Error), field) {
			t.Errorf("error %q does not name field %s", out.Error, field)
		}
	}
	if len(svc.entries) != 0 {
		t.Fatal("invalid request reached the service")
	}
}

func TestCreateInvalidCategory(t *testing.T) {
	svc := &fakeService{createErr: tatkal.ErrInvalidCategory}
	srv := newTestServer(t, svc, "")

	body := strings.Replace(validBody(), `"AC"`, `"XYZ"`, 1)
	resp, err := http.Post(srv.URL+"/api/tatkal", "application/json", strings.NewReader(body))
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", resp.StatusCode)
	}
}

func TestCreateMalformedJSON(t *testing.T) {
	srv := newTestServer(t, &fakeService{}, "")
	resp, err := http.Post(srv.URL+"/api/tatkal", "application/json", bytes.NewReader([]byte("{")))
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", resp.StatusCode)
	}
	resp.Body.Close()
}

func TestListAndDelete(t *testing.T) {
	svc := &fakeService{}
	srv := newTestServer(t, svc, "")

	resp, err := http.Post(srv.URL+"/api/tatkal", "application/json", strings.NewReader(validBody()))
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	resp.Body.Close()
	id := svc.entries[0].ID

	resp, err = http.Get(srv.URL + "/api/list")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	out := decodeResponse(t, resp)
	if !out.OK {
		t.Fatalf("list not ok: %+v", out)
	}

	req, _ := http.NewRequest(http.MethodDelete, srv.URL+"/api/tatkal/"+id, nil)
	resp, err = http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("delete: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("delete status = %d", resp.StatusCode)
	}
	resp.Body.Close()
	if len(svc.deleted) != 1 || svc.deleted[0] != id {
		t.Fatalf("deleted = %v", svc.deleted)
	}
}

func TestDeleteUnknownID(t *testing.T) {
	srv := newTestServer(t, &fakeService{}, "")
	req, _ := http.NewRequest(http.MethodDelete, srv.URL+"/api/tatkal/ghost", nil)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("delete: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", resp.StatusCode)
	}
}

func TestCalendarEndpoint(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "cal.ics")
	srv := newTestServer(t, &fakeService{}, path)

	resp, err := http.Get(srv.URL + "/calendar.ics")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("empty calendar status = %d, want 404", resp.StatusCode)
	}

	if err := os.WriteFile(path, []byte("BEGIN:VCALENDAR\nEND:VCALENDAR\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	resp, err = http.Get(srv.URL + "/calendar.ics")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); !strings.HasPrefix(ct, "text/calendar") {
		t.Fatalf("content type = %q", ct)
	}
}
