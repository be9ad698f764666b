package engine

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"metagapura_portal_backend/platform/logger"
)

type engineConfig struct {
	createURL    string
	syncURL      string
	broadcastURL string
	summaryURL   string
	username     string
	password     string
}

func (c engineConfig) GetEngineCreateURL() string      { return c.createURL }
func (c engineConfig) GetEngineSyncURL() string        { return c.syncURL }
func (c engineConfig) GetEngineBroadcastURL() string   { return c.broadcastURL }
func (c engineConfig) GetEngineSummaryURL() string     { return c.summaryURL }
func (c engineConfig) GetEngineUsername() string       { return c.username }
func (c engineConfig) GetEnginePassword() string       { return c.password }
func (c engineConfig) GetEngineTimeout() time.Duration { return 5 * time.Second }

func TestDispatchSuccess(t *testing.T) {
	var gotBody map[string]string
	var gotAuth string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		body, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(body, &gotBody)
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"accepted":true}`))
	}))
	defer server.Close()

	client := NewClient(engineConfig{
		broadcastURL: server.URL,
		username:     "portal",
		password:     "secret",
	}, logger.New("development"))

	result := client.Dispatch(context.Background(), EndpointBroadcast, map[string]string{"campaign_id": "abc"})
	if !result.OK {
		t.Fatalf("Dispatch() OK = false, detail: %s", result.Detail())
	}
	if result.Status != http.StatusOK {
		t.Errorf("status = %d, want 200", result.Status)
	}
	if gotBody["campaign_id"] != "abc" {
		t.Errorf("server saw body %v, want campaign_id abc", gotBody)
	}
	if !strings.HasPrefix(gotAuth, "Basic ") {
		t.Errorf("Authorization = %q, want Basic auth", gotAuth)
	}
}

func TestDispatchNon2xxIsNotOK(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte("upstream down"))
	}))
	defer server.Close()

	client := NewClient(engineConfig{broadcastURL: server.URL}, logger.New("development"))

	result := client.Dispatch(context.Background(), EndpointBroadcast, nil)
	if result.OK {
		t.Fatal("Dispatch() OK = true for 502")
	}
	if result.Status != http.StatusBadGateway {
		t.Errorf("status = %d, want 502", result.Status)
	}
	if result.TransportErr != nil {
		t.Errorf("TransportErr = %v, want nil on a delivered response", result.TransportErr)
	}
	if !strings.Contains(result.Detail(), "upstream down") {
		t.Errorf("Detail() = %q, want response body included", result.Detail())
	}
}

func TestDispatchUnconfiguredEndpoint(t *testing.T) {
	client := NewClient(engineConfig{}, logger.New("development"))

	if client.Configured(EndpointBroadcast) {
		t.Error("Configured() = true with no URL")
	}

	result := client.Dispatch(context.Background(), EndpointBroadcast, nil)
	if result.OK {
		t.Error("Dispatch() OK = true for unconfigured endpoint")
	}
	if result.TransportErr == nil {
		t.Error("TransportErr = nil, want a configuration error")
	}
}

func TestDispatchTransportFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	server.Close() // refuse connections

	client := NewClient(engineConfig{broadcastURL: server.URL}, logger.New("development"))

	result := client.Dispatch(context.Background(), EndpointBroadcast, nil)
	if result.OK {
		t.Error("Dispatch() OK = true on connection failure")
	}
	if result.TransportErr == nil {
		t.Error("TransportErr = nil, want connection error")
	}
}

func TestDispatchMultipartFieldsAndFile(t *testing.T) {
	var gotFields map[string]string
	var gotFilename string
	var gotFile []byte
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Errorf("parse multipart: %v", err)
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		gotFields = map[string]string{}
		for key, values := range r.MultipartForm.Value {
			gotFields[key] = values[0]
		}
		if file, header, err := r.FormFile("image"); err == nil {
			gotFilename = header.Filename
			gotFile, _ = io.ReadAll(file)
			_ = file.Close()
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	client := NewClient(engineConfig{createURL: server.URL}, logger.New("development"))

	result := client.DispatchMultipart(context.Background(), EndpointCreateCampaign,
		map[string]string{"campaign_name": "Spring promo", "campaign_objective": "Sales"},
		"banner.png", []byte{0x89, 0x50, 0x4e, 0x47})
	if !result.OK {
		t.Fatalf("DispatchMultipart() OK = false, detail: %s", result.Detail())
	}
	if gotFields["campaign_name"] != "Spring promo" || gotFields["campaign_objective"] != "Sales" {
		t.Errorf("server saw fields %v", gotFields)
	}
	if gotFilename != "banner.png" {
		t.Errorf("filename = %q, want banner.png", gotFilename)
	}
	if len(gotFile) != 4 {
		t.Errorf("file bytes = %d, want 4", len(gotFile))
	}
}

func TestDispatchMultipartWithoutFile(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		if _, _, err := r.FormFile("image"); err == nil {
			t.Error("file part present, want none")
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	client := NewClient(engineConfig{createURL: server.URL}, logger.New("development"))

	result := client.DispatchMultipart(context.Background(), EndpointCreateCampaign,
		map[string]string{"campaign_name": "No image"}, "", nil)
	if !result.OK {
		t.Fatalf("DispatchMultipart() OK = false, detail: %s", result.Detail())
	}
}

func TestResultDetailTruncatesBody(t *testing.T) {
	result := Result{Status: 500, Body: []byte(strings.Repeat("x", 500))}
	if detail := result.Detail(); len(detail) > 220 {
		t.Errorf("Detail() length = %d, want truncated", len(detail))
	}
}
