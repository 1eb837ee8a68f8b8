// Package server exposes the decoder over HTTP for the mdiod daemon.
package server

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/spf13/afero"

	"example.com/mdiogate/internal/capture"
	"example.com/mdiogate/internal/manifest"
	"example.com/mdiogate/internal/mdio"
	"example.com/mdiogate/internal/report"
	"example.com/mdiogate/internal/rules"
)

// Server coordinates HTTP handlers and manages temporary artifacts produced by
// decode requests.
type Server struct {
	fs             afero.Fs
	artifacts      *ArtifactStore
	workDir        string
	uploadsDir     string
	rulePack       rules.RulePack
	maxUploadBytes int64
}

// Options configures server creation.
type Options struct {
	StorageDir     string
	RulePackPath   string
	MaxUploadBytes int64
	Fs             afero.Fs
}

// Artifact represents a file generated or stored by the daemon.
type Artifact struct {
	ID          string
	Path        string
	Name        string
	ContentType string
	Size        int64
	Kind        string
}

// ArtifactRef is the public representation returned in API responses.
type ArtifactRef struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	ContentType string `json:"contentType,omitempty"`
	Size        int64  `json:"size,omitempty"`
	Kind        string `json:"kind,omitempty"`
}

// ArtifactStore keeps track of generated artifacts for later download.
type ArtifactStore struct {
	mu      sync.RWMutex
	entries map[string]Artifact
}

// NewServer constructs a Server rooted at a temporary workspace directory.
func NewServer(opts Options) (*Server, error) {
	fs := opts.Fs
	if fs == nil {
		fs = afero.NewOsFs()
	}
	storageDir := opts.StorageDir
	if storageDir == "" {
		storageDir = os.TempDir()
	}
	if err := fs.MkdirAll(storageDir, 0o755); err != nil {
		return nil, err
	}
	workDir, err := afero.TempDir(fs, storageDir, "mdiod-")
	if err != nil {
		return nil, err
	}
	uploadsDir := filepath.Join(workDir, "uploads")
	if err := fs.MkdirAll(uploadsDir, 0o755); err != nil {
		fs.RemoveAll(workDir)
		return nil, err
	}
	rp := rules.DefaultRulePack()
	if opts.RulePackPath != "" {
		rp, err = rules.LoadRulePack(opts.RulePackPath)
		if err != nil {
			fs.RemoveAll(workDir)
			return nil, fmt.Errorf("load rule pack: %w", err)
		}
	}
	maxUpload := opts.MaxUploadBytes
	if maxUpload <= 0 {
		maxUpload = 512 << 20
	}
	s := &Server{
		fs:             fs,
		artifacts:      &ArtifactStore{entries: make(map[string]Artifact)},
		workDir:        workDir,
		uploadsDir:     uploadsDir,
		rulePack:       rp,
		maxUploadBytes: maxUpload,
	}
	return s, nil
}

// Close removes any temporary state associated with the server.
func (s *Server) Close() error {
	if s == nil || s.workDir == "" {
		return nil
	}
	return s.fs.RemoveAll(s.workDir)
}

func (s *Server) tempPath(pattern string) (string, error) {
	f, err := afero.TempFile(s.fs, s.workDir, pattern)
	if err != nil {
		return "", err
	}
	name := f.Name()
	f.Close()
	return name, nil
}

func (s *Server) addArtifact(path, displayName, contentType, kind string) (Artifact, error) {
	if path == "" {
		return Artifact{}, errors.New("empty path")
	}
	info, err := s.fs.Stat(path)
	if err != nil {
		return Artifact{}, err
	}
	id := randomID()
	art := Artifact{
		ID:          id,
		Path:        path,
		Name:        displayName,
		ContentType: contentType,
		Size:        info.Size(),
		Kind:        kind,
	}
	if art.Name == "" {
		art.Name = filepath.Base(path)
	}
	if art.ContentType == "" {
		art.ContentType = guessContentType(art.Name)
	}
	s.artifacts.mu.Lock()
	s.artifacts.entries[id] = art
	s.artifacts.mu.Unlock()
	return art, nil
}

func (s *Server) getArtifact(id string) (Artifact, bool) {
	s.artifacts.mu.RLock()
	art, ok := s.artifacts.entries[id]
	s.artifacts.mu.RUnlock()
	return art, ok
}

func (s *Server) resolvePath(token string) (string, error) {
	if token == "" {
		return "", errors.New("empty input path")
	}
	if art, ok := s.getArtifact(token); ok {
		return art.Path, nil
	}
	abs := token
	if !filepath.IsAbs(token) {
		abs = filepath.Clean(token)
	}
	if _, err := s.fs.Stat(abs); err != nil {
		return "", err
	}
	return abs, nil
}

type decodeRequest struct {
	Capture        string          `json:"capture"`
	SamplePeriodNs float64         `json:"samplePeriodNs,omitempty"`
	RulePack       *rules.RulePack `json:"rulePack,omitempty"`
}

// loadCapture resolves the request's capture token and loads it. CSV dumps
// need the sample period from the request; .mdcap containers carry their own.
func (s *Server) loadCapture(req decodeRequest) (*capture.Capture, string, error) {
	path, err := s.resolvePath(req.Capture)
	if err != nil {
		return nil, "", fmt.Errorf("capture resolve: %w", err)
	}
	var c *capture.Capture
	if strings.EqualFold(filepath.Ext(path), ".csv") {
		if req.SamplePeriodNs <= 0 {
			return nil, "", errors.New("samplePeriodNs required for csv captures")
		}
		c, err = capture.LoadCSV(s.fs, path, req.SamplePeriodNs*1e-9)
	} else {
		c, err = capture.Load(s.fs, path)
	}
	if err != nil {
		return nil, "", fmt.Errorf("load capture: %w", err)
	}
	return c, path, nil
}

func (s *Server) evalRules(c *capture.Capture, events []mdio.FieldEvent, override *rules.RulePack) (*rules.Engine, []rules.Diagnostic, error) {
	rp := s.rulePack
	if override != nil && len(override.Rules) > 0 {
		rp = *override
	}
	engine := rules.NewEngine(rp)
	engine.RegisterBuiltins()
	ctx := &rules.Context{CaptureName: c.Name, SamplePeriod: c.SamplePeriod, Events: events}
	diags, err := engine.Eval(ctx)
	return engine, diags, err
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleDecode(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	stream := r.URL.Query().Get("stream") == "true"
	var req decodeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, fmt.Sprintf("invalid json: %v", err), http.StatusBadRequest)
		return
	}
	if req.Capture == "" {
		http.Error(w, "capture required", http.StatusBadRequest)
		return
	}
	c, _, err := s.loadCapture(req)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	events, err := mdio.Decode(c.Channels, nil, c.SamplePeriod)
	if err != nil {
		http.Error(w, fmt.Sprintf("decode: %v", err), http.StatusBadRequest)
		return
	}

	if stream {
		writer := NewNDJSONWriter(w)
		w.Header().Set("Content-Type", "application/x-ndjson")
		for _, ev := range events {
			if err := writer.WriteObject(ev); err != nil {
				return
			}
		}
		_, diags, err := s.evalRules(c, events, req.RulePack)
		if err != nil {
			_ = writer.WriteObject(map[string]any{"type": "error", "error": err.Error()})
			return
		}
		summary := struct {
			Type         string             `json:"type"`
			Events       int                `json:"events"`
			Transactions []mdio.Transaction `json:"transactions"`
			Findings     []rules.Diagnostic `json:"findings,omitempty"`
		}{
			Type:         "summary",
			Events:       len(events),
			Transactions: mdio.Transactions(events),
			Findings:     diags,
		}
		_ = writer.WriteObject(summary)
		return
	}

	engine, diags, err := s.evalRules(c, events, req.RulePack)
	if err != nil {
		http.Error(w, fmt.Sprintf("eval: %v", err), http.StatusInternalServerError)
		return
	}
	eventsPath, err := s.tempPath("events-*.jsonl")
	if err != nil {
		http.Error(w, fmt.Sprintf("events temp: %v", err), http.StatusInternalServerError)
		return
	}
	if err := s.writeEventsNDJSON(eventsPath, events); err != nil {
		http.Error(w, fmt.Sprintf("write events: %v", err), http.StatusInternalServerError)
		return
	}
	diagPath, err := s.tempPath("diagnostics-*.jsonl")
	if err != nil {
		http.Error(w, fmt.Sprintf("diagnostics temp: %v", err), http.StatusInternalServerError)
		return
	}
	if err := engine.WriteDiagnosticsNDJSON(diagPath); err != nil {
		http.Error(w, fmt.Sprintf("write diagnostics: %v", err), http.StatusInternalServerError)
		return
	}
	eventsArt, err := s.addArtifact(eventsPath, "events.jsonl", "application/x-ndjson", "events")
	if err != nil {
		http.Error(w, fmt.Sprintf("register events: %v", err), http.StatusInternalServerError)
		return
	}
	diagArt, err := s.addArtifact(diagPath, "diagnostics.jsonl", "application/x-ndjson", "diagnostics")
	if err != nil {
		http.Error(w, fmt.Sprintf("register diagnostics: %v", err), http.StatusInternalServerError)
		return
	}
	resp := struct {
		Capture      string             `json:"capture"`
		Events       []mdio.FieldEvent  `json:"events"`
		Transactions []mdio.Transaction `json:"transactions"`
		Findings     []rules.Diagnostic `json:"findings,omitempty"`
		Artifacts    []ArtifactRef      `json:"artifacts"`
	}{
		Capture:      c.Name,
		Events:       events,
		Transactions: mdio.Transactions(events),
		Findings:     diags,
		Artifacts:    []ArtifactRef{toRef(eventsArt), toRef(diagArt)},
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleReport(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req decodeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, fmt.Sprintf("invalid json: %v", err), http.StatusBadRequest)
		return
	}
	if req.Capture == "" {
		http.Error(w, "capture required", http.StatusBadRequest)
		return
	}
	c, path, err := s.loadCapture(req)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	digest, err := capture.Digest(s.fs, path)
	if err != nil {
		http.Error(w, fmt.Sprintf("digest: %v", err), http.StatusInternalServerError)
		return
	}
	events, err := mdio.Decode(c.Channels, nil, c.SamplePeriod)
	if err != nil {
		http.Error(w, fmt.Sprintf("decode: %v", err), http.StatusBadRequest)
		return
	}
	_, diags, err := s.evalRules(c, events, req.RulePack)
	if err != nil {
		http.Error(w, fmt.Sprintf("eval: %v", err), http.StatusInternalServerError)
		return
	}
	rep := report.Build(c.Name, digest, c.SamplePeriod, events, diags)

	jsonPath, err := s.tempPath("report-*.json")
	if err != nil {
		http.Error(w, fmt.Sprintf("report temp: %v", err), http.StatusInternalServerError)
		return
	}
	if err := report.SaveJSON(rep, jsonPath); err != nil {
		http.Error(w, fmt.Sprintf("write report: %v", err), http.StatusInternalServerError)
		return
	}
	pdfPath, err := s.tempPath("report-*.pdf")
	if err != nil {
		http.Error(w, fmt.Sprintf("report pdf temp: %v", err), http.StatusInternalServerError)
		return
	}
	if err := report.SavePDF(rep, pdfPath); err != nil {
		http.Error(w, fmt.Sprintf("write report pdf: %v", err), http.StatusInternalServerError)
		return
	}
	manifestPath, err := s.tempPath("manifest-*.json")
	if err != nil {
		http.Error(w, fmt.Sprintf("manifest temp: %v", err), http.StatusInternalServerError)
		return
	}
	m, err := manifest.Build([]string{jsonPath, pdfPath})
	if err != nil {
		http.Error(w, fmt.Sprintf("build manifest: %v", err), http.StatusInternalServerError)
		return
	}
	if err := manifest.Save(m, manifestPath); err != nil {
		http.Error(w, fmt.Sprintf("write manifest: %v", err), http.StatusInternalServerError)
		return
	}
	jsonArt, err := s.addArtifact(jsonPath, "report.json", "application/json", "report")
	if err != nil {
		http.Error(w, fmt.Sprintf("register report: %v", err), http.StatusInternalServerError)
		return
	}
	pdfArt, err := s.addArtifact(pdfPath, "report.pdf", "application/pdf", "report")
	if err != nil {
		http.Error(w, fmt.Sprintf("register report pdf: %v", err), http.StatusInternalServerError)
		return
	}
	manArt, err := s.addArtifact(manifestPath, "manifest.json", "application/json", "manifest")
	if err != nil {
		http.Error(w, fmt.Sprintf("register manifest: %v", err), http.StatusInternalServerError)
		return
	}
	resp := struct {
		Report    report.DecodeReport `json:"report"`
		Artifacts []ArtifactRef       `json:"artifacts"`
	}{
		Report:    rep,
		Artifacts: []ArtifactRef{toRef(jsonArt), toRef(pdfArt), toRef(manArt)},
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleQR(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	token := r.URL.Query().Get("capture")
	if token == "" {
		http.Error(w, "capture required", http.StatusBadRequest)
		return
	}
	path, err := s.resolvePath(token)
	if err != nil {
		http.Error(w, fmt.Sprintf("capture resolve: %v", err), http.StatusBadRequest)
		return
	}
	digest, err := capture.Digest(s.fs, path)
	if err != nil {
		http.Error(w, fmt.Sprintf("digest: %v", err), http.StatusInternalServerError)
		return
	}
	size := 256
	if v := r.URL.Query().Get("size"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 || n > 2048 {
			http.Error(w, "invalid size", http.StatusBadRequest)
			return
		}
		size = n
	}
	png, err := report.CaptureHashToQR(digest, size)
	if err != nil {
		http.Error(w, fmt.Sprintf("qr: %v", err), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Content-Length", strconv.Itoa(len(png)))
	w.Write(png)
}

func (s *Server) handleArtifactDownload(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	id := strings.TrimPrefix(r.URL.Path, "/artifacts/")
	if id == "" {
		http.NotFound(w, r)
		return
	}
	art, ok := s.getArtifact(id)
	if !ok {
		http.NotFound(w, r)
		return
	}
	f, err := s.fs.Open(art.Path)
	if err != nil {
		http.Error(w, fmt.Sprintf("open artifact: %v", err), http.StatusInternalServerError)
		return
	}
	defer f.Close()
	info, err := f.Stat()
	if err != nil {
		http.Error(w, fmt.Sprintf("stat artifact: %v", err), http.StatusInternalServerError)
		return
	}
	if art.ContentType != "" {
		w.Header().Set("Content-Type", art.ContentType)
	}
	w.Header().Set("Content-Length", fmt.Sprintf("%d", info.Size()))
	disposition := fmt.Sprintf("attachment; filename=\"%s\"", art.Name)
	w.Header().Set("Content-Disposition", disposition)
	io.Copy(w, f)
}

func (s *Server) writeEventsNDJSON(path string, events []mdio.FieldEvent) error {
	f, err := s.fs.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	enc := json.NewEncoder(f)
	for _, ev := range events {
		if err := enc.Encode(ev); err != nil {
			return err
		}
	}
	return nil
}

func toRef(art Artifact) ArtifactRef {
	return ArtifactRef{
		ID:          art.ID,
		Name:        art.Name,
		ContentType: art.ContentType,
		Size:        art.Size,
		Kind:        art.Kind,
	}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(payload)
}

func guessContentType(name string) string {
	ext := strings.ToLower(filepath.Ext(name))
	switch ext {
	case ".json":
		return "application/json"
	case ".yaml", ".yml":
		return "application/yaml"
	case ".jsonl", ".ndjson":
		return "application/x-ndjson"
	case ".pdf":
		return "application/pdf"
	case ".png":
		return "image/png"
	case ".csv":
		return "text/csv"
	case ".mdcap":
		return "application/zip"
	default:
		return "application/octet-stream"
	}
}

func randomID() string {
	var b [12]byte
	if _, err := rand.Read(b[:]); err != nil {
		now := time.Now().UTC()
		return fmt.Sprintf("%d%06d", now.UnixNano(), os.Getpid())
	}
	return hex.EncodeToString(b[:])
}

func (s *Server) listArtifacts() []ArtifactRef {
	s.artifacts.mu.RLock()
	refs := make([]ArtifactRef, 0, len(s.artifacts.entries))
	for _, art := range s.artifacts.entries {
		refs = append(refs, toRef(art))
	}
	s.artifacts.mu.RUnlock()
	sort.Slice(refs, func(i, j int) bool { return refs[i].ID < refs[j].ID })
	return refs
}
