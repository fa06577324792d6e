package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"gastos/internal/core"
)

func newTestClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	c, err := New(srv.URL)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return c
}

func TestNew_InvalidBaseURL(t *testing.T) {
	for _, raw := range []string{"", "ftp://host", "http://", "::bad"} {
		if _, err := New(raw); err == nil {
			t.Errorf("New(%q): expected error", raw)
		}
	}
}

func TestNew_DefaultClientPoolsConnections(t *testing.T) {
	c, err := New("http://localhost:8081")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	tr, ok := c.httpClient.Transport.(*http.Transport)
	if !ok {
		t.Fatalf("transport = %T, want *http.Transport", c.httpClient.Transport)
	}
	if tr.MaxIdleConnsPerHost != 10 || tr.IdleConnTimeout != 90*time.Second {
		t.Fatalf("pooling not configured: per host %d, idle %v", tr.MaxIdleConnsPerHost, tr.IdleConnTimeout)
	}
	if c.httpClient.Timeout != 10*time.Second {
		t.Fatalf("default timeout = %v", c.httpClient.Timeout)
	}
}

func TestNew_TimeoutWithCustomHTTPClient(t *testing.T) {
	tests := []struct {
		name string
		opts func(hc *http.Client) []Option
	}{
		{"timeout first", func(hc *http.Client) []Option {
			return []Option{WithTimeout(3 * time.Second), WithHTTPClient(hc)}
		}},
		{"client first", func(hc *http.Client) []Option {
			return []Option{WithHTTPClient(hc), WithTimeout(3 * time.Second)}
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			hc := &http.Client{}
			c, err := New("http://localhost:8081", tt.opts(hc)...)
			if err != nil {
				t.Fatalf("New: %v", err)
			}
			if c.httpClient.Timeout != 3*time.Second {
				t.Fatalf("timeout = %v, want 3s", c.httpClient.Timeout)
			}
			if hc.Timeout != 0 {
				t.Fatalf("caller's client was modified: timeout %v", hc.Timeout)
			}
		})
	}
}

func TestNew_CustomHTTPClientKeptAsIs(t *testing.T) {
	hc := &http.Client{Timeout: time.Minute}
	c, err := New("http://localhost:8081", WithHTTPClient(hc))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if c.httpClient != hc {
		t.Fatal("client without WithTimeout should be used as given")
	}
}

func TestClient_List(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet || r.URL.Path != "/expenses" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		_, _ = w.Write([]byte(`[{"id":"1","title":"Café","amount":3.5,"date":"01/02/2025","category":"Comida"}]`))
	})

	got, err := c.List(context.Background())
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	want := core.Expense{ID: "1", Title: "Café", Amount: 3.5, Date: "01/02/2025", Category: "Comida"}
	if len(got) != 1 || got[0] != want {
		t.Fatalf("List = %+v, want [%+v]", got, want)
	}
}

func TestClient_ListEmptyIsNotNil(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`null`))
	})
	got, err := c.List(context.Background())
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if got == nil || len(got) != 0 {
		t.Fatalf("List = %#v, want empty non-nil slice", got)
	}
}

func TestClient_Create(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("method = %s, want POST", r.Method)
		}
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("content-type = %q", ct)
		}
		var in core.ExpenseInput
		if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
			t.Fatalf("decode body: %v", err)
		}
		if in.Title != "Renta" || in.Amount != 500 {
			t.Errorf("body = %+v", in)
		}
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"id":"9","title":"Renta","amount":500,"date":"01/03/2025","category":"Hogar","message":"Gasto creado"}`))
	})

	res, err := c.Create(context.Background(), core.ExpenseInput{Title: "Renta", Amount: 500, Date: "01/03/2025", Category: "Hogar"})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if res.Message != "Gasto creado" || res.Expense.ID != "9" {
		t.Fatalf("Create = %+v", res)
	}
}

func TestClient_UpdateSendsPatch(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPatch || r.URL.Path != "/expenses/2" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		var in core.ExpenseInput
		_ = json.NewDecoder(r.Body).Decode(&in)
		if in.Date != "02/03/2025" {
			t.Errorf("date = %q", in.Date)
		}
		_, _ = w.Write([]byte(`{"id":"2","title":"Luz","amount":40,"date":"02/03/2025","category":"Hogar","message":"Gasto actualizado"}`))
	})

	res, err := c.Update(context.Background(), "2", core.ExpenseInput{Title: "Luz", Amount: 40, Date: "02/03/2025", Category: "Hogar"})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if res.Message != "Gasto actualizado" {
		t.Fatalf("message = %q", res.Message)
	}
}

func TestClient_Delete(t *testing.T) {
	calls := 0
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls > 1 {
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"message":"Gasto no encontrado"}`))
			return
		}
		_, _ = w.Write([]byte(`{"message":"Gasto eliminado"}`))
	})

	msg, err := c.Delete(context.Background(), "1")
	if err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if msg != "Gasto eliminado" {
		t.Fatalf("message = %q", msg)
	}

	_, err = c.Delete(context.Background(), "1")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("second Delete err = %v, want ErrNotFound", err)
	}
	if got := UserMessage(err); got != "Gasto no encontrado" {
		t.Fatalf("UserMessage = %q", got)
	}
}

func TestClient_ErrorKinds(t *testing.T) {
	cases := []struct {
		name   string
		status int
		body   string
		want   error
		msg    string
	}{
		{"validation", http.StatusUnprocessableEntity, `{"message":"título vacío"}`, ErrValidation, "título vacío"},
		{"bad request", http.StatusBadRequest, `not json`, ErrValidation, ""},
		{"not found", http.StatusNotFound, ``, ErrNotFound, ""},
		{"server", http.StatusInternalServerError, `{"message":"boom"}`, ErrServer, "boom"},
		{"unavailable", http.StatusServiceUnavailable, ``, ErrServer, ""},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tc.status)
				_, _ = w.Write([]byte(tc.body))
			})
			_, err := c.List(context.Background())
			if !errors.Is(err, tc.want) {
				t.Fatalf("err = %v, want %v", err, tc.want)
			}
			var apiErr *Error
			if !errors.As(err, &apiErr) {
				t.Fatalf("err is %T, want *Error", err)
			}
			if apiErr.Status != tc.status {
				t.Errorf("status = %d, want %d", apiErr.Status, tc.status)
			}
			if apiErr.ServerMessage != tc.msg {
				t.Errorf("server message = %q, want %q", apiErr.ServerMessage, tc.msg)
			}
		})
	}
}

func TestClient_NetworkError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	url := srv.URL
	srv.Close()

	c, err := New(url, WithTimeout(time.Second))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	_, err = c.List(context.Background())
	if !errors.Is(err, ErrNetwork) {
		t.Fatalf("err = %v, want ErrNetwork", err)
	}
	if UserMessage(err) == "" {
		t.Fatal("expected a non-empty user message")
	}
}

func TestClient_ContextCanceled(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := c.List(ctx)
	if !errors.Is(err, ErrNetwork) || !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want network error wrapping context.Canceled", err)
	}
}

func TestUserMessage(t *testing.T) {
	if got := UserMessage(nil); got != "" {
		t.Errorf("UserMessage(nil) = %q", got)
	}
	plain := errors.New("plain")
	if got := UserMessage(plain); got != "plain" {
		t.Errorf("UserMessage(plain) = %q", got)
	}
}

func TestKindForStatus(t *testing.T) {
	cases := map[int]Kind{
		404: KindNotFound,
		400: KindValidation,
		409: KindValidation,
		422: KindValidation,
		500: KindServer,
		502: KindServer,
		304: KindServer,
	}
	for status, want := range cases {
		if got := KindForStatus(status); got != want {
			t.Errorf("KindForStatus(%d) = %v, want %v", status, got, want)
		}
	}
}
