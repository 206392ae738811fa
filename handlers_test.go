package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"image"
	"image/color"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/disintegration/imaging"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"invoicescan/models"
	"invoicescan/pkg/ocr"
	"invoicescan/pkg/region"
	"invoicescan/pkg/store"
	"invoicescan/process/batch"
)

type stubEngine struct{ err error }

func (stubEngine) Name() string { return "stub" }

func (e stubEngine) Recognize(ctx context.Context, img image.Image) ([]ocr.TextLine, error) {
	if e.err != nil {
		return nil, e.err
	}
	return []ocr.TextLine{
		{Text: "Bill To: Acme Corp", Box: image.Rect(1, 2, 30, 8), Confidence: 0.9},
		{Text: "123 Main St", Box: image.Rect(1, 10, 30, 16), Confidence: 0.9},
		{Text: "Tax ID: XYZ999", Box: image.Rect(1, 18, 30, 24), Confidence: 0.9},
	}, nil
}

type stubRecords struct {
	items []models.ScanRecord
	runs  map[string]models.ScanRun
}

func (s stubRecords) Run(ctx context.Context, runID string) (models.ScanRun, error) {
	run, ok := s.runs[runID]
	if !ok {
		return models.ScanRun{}, store.ErrNotFound
	}
	return run, nil
}

func (s stubRecords) RecentRecords(ctx context.Context, limit int) ([]models.ScanRecord, error) {
	if limit < len(s.items) {
		return s.items[:limit], nil
	}
	return s.items, nil
}

// helper to perform requests with auth token
func performRequest(r http.Handler, method, path string, body io.Reader, token string, contentType string) *httptest.ResponseRecorder {
	req, _ := http.NewRequest(method, path, body)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func setupTestServer(t *testing.T, engine ocr.Engine, auth authenticator, records recordReader) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	ex, err := batch.NewExtractor(engine, region.UpperRight, ocr.PreprocessOptions{})
	if err != nil {
		t.Fatalf("extractor: %v", err)
	}
	log := logrus.New()
	log.SetOutput(io.Discard)
	r := gin.New()
	setupRoutes(r, &server{extractor: ex, records: records, auth: auth, maxUpload: 1 << 20, log: log})
	return r
}

func uploadBody(t *testing.T, name string, content []byte) (*bytes.Buffer, string) {
	t.Helper()
	buf := &bytes.Buffer{}
	mw := multipart.NewWriter(buf)
	w, err := mw.CreateFormFile("file", name)
	if err != nil {
		t.Fatal(err)
	}
	_, _ = w.Write(content)
	_ = mw.Close()
	return buf, mw.FormDataContentType()
}

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, imaging.New(w, h, color.White), imaging.PNG); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func testAuth(t *testing.T) authenticator {
	t.Helper()
	h, err := hashPassword("s3cret!")
	if err != nil {
		t.Fatal(err)
	}
	return newAuthenticator(h, "test-secret")
}

func TestHealthz(t *testing.T) {
	r := setupTestServer(t, stubEngine{}, authenticator{}, nil)
	resp := performRequest(r, http.MethodGet, "/healthz", nil, "", "")
	if resp.Code != http.StatusOK {
		t.Fatalf("status=%d body=%s", resp.Code, resp.Body.String())
	}
	var body map[string]any
	_ = json.Unmarshal(resp.Body.Bytes(), &body)
	if body["engine"] != "stub" || body["auth"] != false {
		t.Fatalf("unexpected body %v", body)
	}
}

func TestExtractReturnsRecord(t *testing.T) {
	r := setupTestServer(t, stubEngine{}, authenticator{}, nil)
	body, ct := uploadBody(t, "inv.png", pngBytes(t, 200, 100))
	resp := performRequest(r, http.MethodPost, "/extract", body, "", ct)
	if resp.Code != http.StatusOK {
		t.Fatalf("status=%d body=%s", resp.Code, resp.Body.String())
	}
	var out struct {
		Record models.ExtractedRecord `json:"record"`
		Lines  []ocr.TextLine         `json:"lines"`
		Offset struct{ X, Y int }     `json:"offset"`
		Error  string                 `json:"error"`
	}
	if err := json.Unmarshal(resp.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	want := models.ExtractedRecord{ClientName: "Acme Corp", ClientAddress: "123 Main St", TaxID: "XYZ999", SourceFile: "inv.png"}
	if out.Record != want || len(out.Lines) != 3 || out.Error != "" {
		t.Fatalf("unexpected response %+v", out)
	}
	if out.Offset.X != 100 || out.Offset.Y != 10 {
		t.Fatalf("unexpected offset %+v", out.Offset)
	}
}

func TestExtractRecoversOCRFailure(t *testing.T) {
	r := setupTestServer(t, stubEngine{err: errors.New("engine down")}, authenticator{}, nil)
	body, ct := uploadBody(t, "inv.png", pngBytes(t, 50, 50))
	resp := performRequest(r, http.MethodPost, "/extract", body, "", ct)
	if resp.Code != http.StatusOK {
		t.Fatalf("status=%d body=%s", resp.Code, resp.Body.String())
	}
	var out map[string]any
	_ = json.Unmarshal(resp.Body.Bytes(), &out)
	rec, _ := out["record"].(map[string]any)
	if rec["client_name"] != "" || out["error"] == nil {
		t.Fatalf("expected blank record with error, got %v", out)
	}
}

func TestExtractRejectsBadUploads(t *testing.T) {
	r := setupTestServer(t, stubEngine{}, authenticator{}, nil)
	cases := []struct {
		name    string
		content []byte
		code    int
	}{
		{"notes.txt", []byte("hello"), http.StatusUnsupportedMediaType},
		{"broken.png", []byte("not a png"), http.StatusUnprocessableEntity},
		{"huge.png", make([]byte, 2<<20), http.StatusRequestEntityTooLarge},
	}
	for _, tc := range cases {
		body, ct := uploadBody(t, tc.name, tc.content)
		resp := performRequest(r, http.MethodPost, "/extract", body, "", ct)
		if resp.Code != tc.code {
			t.Fatalf("%s: expected %d got %d body=%s", tc.name, tc.code, resp.Code, resp.Body.String())
		}
	}
	resp := performRequest(r, http.MethodPost, "/extract", nil, "", "")
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("missing file: expected 400 got %d", resp.Code)
	}
}

func TestLoginFlow(t *testing.T) {
	r := setupTestServer(t, stubEngine{}, testAuth(t), stubRecords{})

	resp := performRequest(r, http.MethodGet, "/records", nil, "", "")
	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token got %d", resp.Code)
	}

	bad, _ := json.Marshal(map[string]string{"password": "wrong"})
	resp = performRequest(r, http.MethodPost, "/login", bytes.NewBuffer(bad), "", "application/json")
	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for wrong password got %d", resp.Code)
	}

	good, _ := json.Marshal(map[string]string{"password": "s3cret!"})
	resp = performRequest(r, http.MethodPost, "/login", bytes.NewBuffer(good), "", "application/json")
	if resp.Code != http.StatusOK {
		t.Fatalf("login failed status=%d body=%s", resp.Code, resp.Body.String())
	}
	var loginResp map[string]any
	_ = json.Unmarshal(resp.Body.Bytes(), &loginResp)
	token, _ := loginResp["token"].(string)
	if token == "" {
		t.Fatalf("empty token in login response: %+v", loginResp)
	}

	resp = performRequest(r, http.MethodGet, "/records", nil, token, "")
	if resp.Code != http.StatusOK {
		t.Fatalf("records failed status=%d body=%s", resp.Code, resp.Body.String())
	}
	resp = performRequest(r, http.MethodGet, "/records", nil, "garbage", "")
	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for garbage token got %d", resp.Code)
	}
}

func TestExpiredTokenRejected(t *testing.T) {
	a := testAuth(t)
	token, err := a.login("s3cret!", time.Now().Add(-2*tokenTTL))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := a.verify(token); err == nil {
		t.Fatalf("expired token accepted")
	}
	other := newAuthenticator(string(a.hash), "other-secret")
	fresh, _ := a.login("s3cret!", time.Now())
	if _, err := other.verify(fresh); err == nil {
		t.Fatalf("token signed with another secret accepted")
	}
}

func TestRecords(t *testing.T) {
	items := []models.ScanRecord{{RunID: "r1", ClientName: "Acme Corp"}, {RunID: "r1", Failed: true}}
	r := setupTestServer(t, stubEngine{}, authenticator{}, stubRecords{items: items})
	resp := performRequest(r, http.MethodGet, "/records?limit=1", nil, "", "")
	if resp.Code != http.StatusOK {
		t.Fatalf("status=%d body=%s", resp.Code, resp.Body.String())
	}
	var got []models.ScanRecord
	if err := json.Unmarshal(resp.Body.Bytes(), &got); err != nil || len(got) != 1 || got[0].ClientName != "Acme Corp" {
		t.Fatalf("unexpected records %+v err=%v", got, err)
	}
	if resp := performRequest(r, http.MethodGet, "/records?limit=x", nil, "", ""); resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for bad limit got %d", resp.Code)
	}

	noDB := setupTestServer(t, stubEngine{}, authenticator{}, nil)
	if resp := performRequest(noDB, http.MethodGet, "/records", nil, "", ""); resp.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 without store got %d", resp.Code)
	}
}

func TestGetRun(t *testing.T) {
	run := models.ScanRun{RunID: "r1", InputDir: "in", OutputPath: "out.xlsx", Files: 2, Failed: 1, Records: []models.ScanRecord{
		{RunID: "r1", SourceFile: "in/a.png", ClientName: "Acme Corp", TaxID: "XYZ999"},
		{RunID: "r1", SourceFile: "in/b.png", Failed: true, FailedReason: "decode"},
	}}
	r := setupTestServer(t, stubEngine{}, authenticator{}, stubRecords{runs: map[string]models.ScanRun{"r1": run}})

	resp := performRequest(r, http.MethodGet, "/runs/r1", nil, "", "")
	if resp.Code != http.StatusOK {
		t.Fatalf("status=%d body=%s", resp.Code, resp.Body.String())
	}
	var out struct {
		RunID   string                   `json:"run_id"`
		Records []models.ExtractedRecord `json:"records"`
		Failed  []string                 `json:"failed"`
	}
	if err := json.Unmarshal(resp.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	want := models.ExtractedRecord{ClientName: "Acme Corp", TaxID: "XYZ999", SourceFile: "in/a.png"}
	if out.RunID != "r1" || len(out.Records) != 2 || out.Records[0] != want {
		t.Fatalf("unexpected run %+v", out)
	}
	if len(out.Failed) != 1 || out.Failed[0] != "in/b.png" {
		t.Fatalf("unexpected failed list %v", out.Failed)
	}

	if resp := performRequest(r, http.MethodGet, "/runs/nope", nil, "", ""); resp.Code != http.StatusNotFound {
		t.Fatalf("expected 404 got %d", resp.Code)
	}
}

func TestHashPasswordPolicy(t *testing.T) {
	if _, err := hashPassword("short"); err == nil {
		t.Fatalf("expected short password to be rejected")
	}
}
