package whatsapp

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestSenderPostsMessageForm(t *testing.T) {
	t.Parallel()

	var gotPath, gotFrom, gotTo, gotBody string
	var gotUser, gotPass string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotUser, gotPass, _ = r.BasicAuth()
		if err := r.ParseForm(); err != nil {
			t.Errorf("parse form: %v", err)
		}
		gotFrom = r.PostForm.Get("From")
		gotTo = r.PostForm.Get("To")
		gotBody = r.PostForm.Get("Body")
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`{"sid":"SM123"}`))
	}))
	t.Cleanup(srv.Close)

	sender := NewSender(nil, "AC123", "token", "whatsapp:+14155238886")
	sender.baseURL = srv.URL

	if err := sender.SendText(context.Background(), "whatsapp:+5215550001111", "hola"); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if gotPath != "/2010-04-01/Accounts/AC123/Messages.json" {
		t.Fatalf("unexpected path: %s", gotPath)
	}
	if gotUser != "AC123" || gotPass != "token" {
		t.Fatalf("unexpected basic auth: %s:%s", gotUser, gotPass)
	}
	if gotFrom != "whatsapp:+14155238886" || gotTo != "whatsapp:+5215550001111" || gotBody != "hola" {
		t.Fatalf("unexpected form: from=%q to=%q body=%q", gotFrom, gotTo, gotBody)
	}
}

func TestSenderSurfacesAPIError(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, `{"code":20003}`, http.StatusUnauthorized)
	}))
	t.Cleanup(srv.Close)

	sender := NewSender(nil, "AC123", "bad-token", "whatsapp:+14155238886")
	sender.baseURL = srv.URL

	if err := sender.SendText(context.Background(), "whatsapp:+5215550001111", "hola"); err == nil {
		t.Fatalf("expected error for non-2xx response")
	}
}
