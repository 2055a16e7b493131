package transcribe

import (
	"context"
	"io"
	"mime"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeAudio(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "voice.oga")
	if err := os.WriteFile(path, []byte("OggS fake audio"), 0o644); err != nil {
		t.Fatalf("write audio: %v", err)
	}
	return path
}

func TestTranscribeUploadsMultipartAndReturnsText(t *testing.T) {
	t.Parallel()

	var gotModel, gotFilename string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/audio/transcriptions" {
			http.NotFound(w, r)
			return
		}
		mediaType, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
		if err != nil || mediaType != "multipart/form-data" {
			t.Errorf("unexpected content type: %s", r.Header.Get("Content-Type"))
		}
		reader, err := r.MultipartReader()
		if err != nil {
			t.Errorf("multipart reader: %v", err)
			return
		}
		for {
			part, err := reader.NextPart()
			if err == io.EOF {
				break
			}
			if err != nil {
				t.Errorf("read part: %v", err)
				break
			}
			switch part.FormName() {
			case "model":
				data, _ := io.ReadAll(part)
				gotModel = string(data)
			case "file":
				gotFilename = part.FileName()
				io.Copy(io.Discard, part)
			}
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"text":"hola por voz"}`))
	}))
	t.Cleanup(srv.Close)

	client := NewClient("key", srv.URL, "whisper-1", time.Second)
	text, err := client.Transcribe(context.Background(), writeAudio(t))
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if text != "hola por voz" {
		t.Fatalf("unexpected transcript: %q", text)
	}
	if gotModel != "whisper-1" {
		t.Fatalf("unexpected model field: %q", gotModel)
	}
	if gotFilename != "voice.oga" {
		t.Fatalf("unexpected filename: %q", gotFilename)
	}
}

func TestTranscribeProviderErrorSurfaces(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "rate limited", http.StatusTooManyRequests)
	}))
	t.Cleanup(srv.Close)

	client := NewClient("key", srv.URL, "whisper-1", time.Second)
	if _, err := client.Transcribe(context.Background(), writeAudio(t)); err == nil {
		t.Fatalf("expected error for non-2xx response")
	}
}

func TestTranscribeMissingFile(t *testing.T) {
	t.Parallel()

	client := NewClient("key", "http://127.0.0.1:0", "whisper-1", time.Second)
	if _, err := client.Transcribe(context.Background(), filepath.Join(t.TempDir(), "missing.oga")); err == nil {
		t.Fatalf("expected error for missing file")
	}
}
