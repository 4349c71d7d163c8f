package httpx_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"groupbuy_market/pkg/httpx"
)

type fakeAuthenticator struct {
	token         string
	authenticated int
}

func (a *fakeAuthenticator) Authenticate(context.Context) error {
	a.authenticated++
	a.token = "fresh-token"

	return nil
}

func (a *fakeAuthenticator) BearerToken() string {
	return a.token
}

func TestAuthBearerRoundTripper(t *testing.T) {
	rq := require.New(t)

	var gotAuth []string

	httpServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = append(gotAuth, r.Header.Get("Authorization"))

		// Первый запрос со старым токеном отклоняется.
		if r.Header.Get("Authorization") == "Bearer stale-token" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}

		w.WriteHeader(http.StatusOK)
	}))
	defer httpServer.Close()

	auth := &fakeAuthenticator{token: "stale-token"}

	client := &http.Client{
		Transport: httpx.NewAuthBearerRoundTripper(http.DefaultTransport, auth),
	}

	resp, err := client.Get(httpServer.URL)
	rq.NoError(err)
	defer resp.Body.Close()

	rq.Equal(http.StatusOK, resp.StatusCode)
	rq.Equal(1, auth.authenticated)
	rq.Equal([]string{"Bearer stale-token", "Bearer fresh-token"}, gotAuth)
}

func TestAuthBearerRoundTripperAuthenticatesWhenTokenEmpty(t *testing.T) {
	rq := require.New(t)

	httpServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rq.Equal("Bearer fresh-token", r.Header.Get("Authorization"))
		w.WriteHeader(http.StatusOK)
	}))
	defer httpServer.Close()

	auth := &fakeAuthenticator{}

	client := &http.Client{
		Transport: httpx.NewAuthBearerRoundTripper(http.DefaultTransport, auth),
	}

	resp, err := client.Get(httpServer.URL)
	rq.NoError(err)
	defer resp.Body.Close()

	rq.Equal(http.StatusOK, resp.StatusCode)
	rq.Equal(1, auth.authenticated)
}
