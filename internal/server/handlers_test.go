package server

import (
	"bytes"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/afero"

	"example.com/mdiogate/internal/capture"
	"example.com/mdiogate/internal/mdio"
	"example.com/mdiogate/internal/report"
	"example.com/mdiogate/internal/rules"
	"example.com/mdiogate/internal/wavegen"
)

func newTestServer(t *testing.T) (*Server, http.Handler) {
	t.Helper()
	srv, err := NewServer(Options{StorageDir: t.TempDir()})
	if err != nil {
		t.Fatalf("NewServer failed: %v", err)
	}
	t.Cleanup(func() { srv.Close() })
	return srv, NewRouter(srv)
}

func writeTestCapture(t *testing.T) string {
	t.Helper()
	b := wavegen.NewBuilder(40)
	b.Idle(100)
	b.WriteFrame(3, 7, 0xABCD)
	b.Idle(60)
	b.ReadFrame(5, 9, 0x1234)
	b.Idle(100)
	c := &capture.Capture{
		Name:         "bench",
		SamplePeriod: 10e-9,
		Channels:     b.Channels(),
	}
	path := filepath.Join(t.TempDir(), "bench.mdcap")
	if err := capture.Save(afero.NewOsFs(), path, c); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	return path
}

func TestHandleHealth(t *testing.T) {
	_, router := newTestServer(t)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var body map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}
	if body["status"] != "ok" {
		t.Fatalf("body = %v", body)
	}
}

func TestHandleDecode(t *testing.T) {
	_, router := newTestServer(t)
	capPath := writeTestCapture(t)

	body, _ := json.Marshal(map[string]any{"capture": capPath})
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/decode", bytes.NewReader(body)))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}

	var resp struct {
		Capture      string             `json:"capture"`
		Events       []mdio.FieldEvent  `json:"events"`
		Transactions []mdio.Transaction `json:"transactions"`
		Findings     []rules.Diagnostic `json:"findings"`
		Artifacts    []ArtifactRef      `json:"artifacts"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}
	if resp.Capture != "bench" {
		t.Fatalf("capture = %q", resp.Capture)
	}
	if len(resp.Transactions) != 2 {
		t.Fatalf("got %d transactions, want 2", len(resp.Transactions))
	}
	if len(resp.Events) == 0 || len(resp.Findings) == 0 {
		t.Fatalf("events=%d findings=%d", len(resp.Events), len(resp.Findings))
	}
	if len(resp.Artifacts) != 2 {
		t.Fatalf("got %d artifacts, want 2", len(resp.Artifacts))
	}

	// The registered artifacts must be downloadable.
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/artifacts/"+resp.Artifacts[0].ID, nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("artifact download status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "PREAMBLE") {
		t.Fatalf("events artifact does not contain decoded events")
	}
}

func TestHandleDecodeStream(t *testing.T) {
	_, router := newTestServer(t)
	capPath := writeTestCapture(t)

	body, _ := json.Marshal(map[string]any{"capture": capPath})
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/decode?stream=true", bytes.NewReader(body)))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	lines := strings.Split(strings.TrimSpace(rec.Body.String()), "\n")
	if len(lines) < 2 {
		t.Fatalf("expected event lines plus summary, got %d lines", len(lines))
	}
	var summary map[string]any
	if err := json.Unmarshal([]byte(lines[len(lines)-1]), &summary); err != nil {
		t.Fatalf("unmarshal summary failed: %v", err)
	}
	if summary["type"] != "summary" {
		t.Fatalf("last line = %v", summary)
	}
}

func TestHandleDecodeRejectsMissingCapture(t *testing.T) {
	_, router := newTestServer(t)
	body, _ := json.Marshal(map[string]any{"capture": "/no/such/file.mdcap"})
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/decode", bytes.NewReader(body)))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestHandleReport(t *testing.T) {
	_, router := newTestServer(t)
	capPath := writeTestCapture(t)

	body, _ := json.Marshal(map[string]any{"capture": capPath})
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/report", bytes.NewReader(body)))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	var resp struct {
		Report    report.DecodeReport `json:"report"`
		Artifacts []ArtifactRef       `json:"artifacts"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}
	if resp.Report.Summary.Frames != 2 || !resp.Report.Summary.Pass {
		t.Fatalf("summary = %+v", resp.Report.Summary)
	}
	if resp.Report.CaptureSHA256 == "" {
		t.Fatalf("capture digest missing")
	}
	if len(resp.Artifacts) != 3 {
		t.Fatalf("got %d artifacts, want 3", len(resp.Artifacts))
	}
}

func TestHandleQR(t *testing.T) {
	_, router := newTestServer(t)
	capPath := writeTestCapture(t)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/qr?capture="+capPath, nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	if got := rec.Header().Get("Content-Type"); got != "image/png" {
		t.Fatalf("content type = %q", got)
	}
	if rec.Body.Len() == 0 {
		t.Fatalf("empty png body")
	}
}

func TestHandleUploadThenDecode(t *testing.T) {
	_, router := newTestServer(t)
	capPath := writeTestCapture(t)
	raw, err := afero.ReadFile(afero.NewOsFs(), capPath)
	if err != nil {
		t.Fatalf("ReadFile failed: %v", err)
	}

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", "bench.mdcap")
	if err != nil {
		t.Fatalf("CreateFormFile failed: %v", err)
	}
	if _, err := io.Copy(fw, bytes.NewReader(raw)); err != nil {
		t.Fatalf("copy failed: %v", err)
	}
	mw.Close()

	req := httptest.NewRequest(http.MethodPost, "/upload", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("upload status = %d, body %s", rec.Code, rec.Body.String())
	}
	var uploadResp struct {
		Files []ArtifactRef `json:"files"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &uploadResp); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}
	if len(uploadResp.Files) != 1 {
		t.Fatalf("got %d files, want 1", len(uploadResp.Files))
	}

	body, _ := json.Marshal(map[string]any{"capture": uploadResp.Files[0].ID})
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/decode", bytes.NewReader(body)))
	if rec.Code != http.StatusOK {
		t.Fatalf("decode status = %d, body %s", rec.Code, rec.Body.String())
	}
}
