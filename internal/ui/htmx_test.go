package ui

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestHTMXResponseBuilder_Basic(t *testing.T) {
	w := httptest.NewRecorder()

	NewHTMXResponse().
		Status(http.StatusCreated).
		BodyHTML([]byte("<p>ok</p>")).
		Header("X-Test", "1").
		Write(w)

	if w.Code != http.StatusCreated {
		t.Errorf("Status code = %d, want %d", w.Code, http.StatusCreated)
	}
	if w.Body.String() != "<p>ok</p>" {
		t.Errorf("Body = %q", w.Body.String())
	}
	if ct := w.Header().Get("Content-Type"); ct != "text/html; charset=utf-8" {
		t.Errorf("Content-Type = %q", ct)
	}
	if w.Header().Get("X-Test") != "1" {
		t.Error("custom header not set")
	}
	if w.Header().Get("HX-Trigger") != "" {
		t.Error("HX-Trigger set without triggers")
	}
}

func TestHTMXResponseBuilder_Notifications(t *testing.T) {
	tests := []struct {
		name string
		n    Notification
		want Notification
	}{
		{"success", successNotification("Gasto eliminado!"), Notification{Type: "success", Message: "Gasto eliminado!", Duration: 3000}},
		{"error", errorNotification("Error eliminando el gasto"), Notification{Type: "error", Message: "Error eliminando el gasto", Duration: 5000}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			NewHTMXResponse().TriggerNotification(tt.n).Write(w)

			var triggers struct {
				Notification Notification `json:"show-notification"`
			}
			if err := json.Unmarshal([]byte(w.Header().Get("HX-Trigger")), &triggers); err != nil {
				t.Fatalf("decode HX-Trigger: %v", err)
			}
			if triggers.Notification != tt.want {
				t.Errorf("notification = %+v, want %+v", triggers.Notification, tt.want)
			}
		})
	}
}

func TestIsHTMX(t *testing.T) {
	r := httptest.NewRequest(http.MethodPost, "/", nil)
	if isHTMX(r) {
		t.Fatal("plain request detected as htmx")
	}
	r.Header.Set("HX-Request", "true")
	if !isHTMX(r) {
		t.Fatal("htmx request not detected")
	}
}
