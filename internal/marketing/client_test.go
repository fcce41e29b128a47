package marketing

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"
	"testing"
)

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(req *http.Request) (*http.Response, error) {
	return f(req)
}

func TestCreateContact_RequestShape(t *testing.T) {
	client := NewClientWithHTTP("https://mkt.test/v1", "mkt-token", &http.Client{
		Transport: roundTripFunc(func(r *http.Request) (*http.Response, error) {
			if r.Method != http.MethodPost || r.URL.Path != "/v1/contacts" {
				t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
			}
			if got := r.Header.Get("Authorization"); got != "Bearer mkt-token" {
				t.Errorf("expected bearer auth, got %q", got)
			}
			body, _ := io.ReadAll(r.Body)
			for _, want := range []string{`"email":"ana@b.com"`, `"name":"Ana Lima"`, `"phone":"5581999990000"`} {
				if !strings.Contains(string(body), want) {
					t.Errorf("body missing %s: %s", want, body)
				}
			}
			return &http.Response{
				StatusCode: http.StatusCreated,
				Body:       io.NopCloser(strings.NewReader(`{"id":"C1"}`)),
				Header:     make(http.Header),
			}, nil
		}),
	})

	err := client.CreateContact(context.Background(), Contact{
		Email: "ana@b.com",
		Name:  "Ana Lima",
		Phone: "5581999990000",
	})
	if err != nil {
		t.Fatal(err)
	}
}

func TestCreateContact_NonOKCarriesBody(t *testing.T) {
	client := NewClientWithHTTP("https://mkt.test/v1", "mkt-token", &http.Client{
		Transport: roundTripFunc(func(r *http.Request) (*http.Response, error) {
			return &http.Response{
				StatusCode: http.StatusUnprocessableEntity,
				Body:       io.NopCloser(strings.NewReader(`{"error":"email ja cadastrado"}`)),
				Header:     make(http.Header),
			}, nil
		}),
	})

	err := client.CreateContact(context.Background(), Contact{Email: "ana@b.com", Name: "Ana"})

	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected APIError, got %T: %v", err, err)
	}
	if apiErr.StatusCode != http.StatusUnprocessableEntity {
		t.Errorf("expected 422, got %d", apiErr.StatusCode)
	}
	if !strings.Contains(apiErr.Body, "email ja cadastrado") {
		t.Errorf("expected body preserved, got %q", apiErr.Body)
	}
}
