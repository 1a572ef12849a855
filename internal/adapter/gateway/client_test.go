package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"digital-wallet/internal/core/ports"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClient_InitializeTransaction(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/transaction/initialize", r.URL.Path)
		assert.Equal(t, "Bearer sk_test", r.Header.Get("Authorization"))

		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "user@example.com", body["email"])
		assert.Equal(t, float64(50000), body["amount"])
		assert.Equal(t, "dep_abc", body["reference"])

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":true,"message":"Authorization URL created","data":{"authorization_url":"https://checkout.example/abc","access_code":"ac_1","reference":"dep_abc"}}`))
	}))
	defer srv.Close()

	client := NewClient(srv.URL+"/", "sk_test", time.Second, srv.Client(), zerolog.Nop())
	init, err := client.InitializeTransaction(context.Background(), ports.InitializeTransactionRequest{
		Email:     "user@example.com",
		Amount:    50000,
		Currency:  "NGN",
		Reference: "dep_abc",
	})
	require.NoError(t, err)
	assert.Equal(t, "https://checkout.example/abc", init.AuthorizationURL)
	assert.Equal(t, "ac_1", init.AccessCode)
	assert.Equal(t, "dep_abc", init.Reference)
	assert.Equal(t, int64(50000), init.Amount)
}

func TestClient_VerifyTransaction(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/transaction/verify/dep_abc", r.URL.Path)
		_, _ = w.Write([]byte(`{"status":true,"message":"Verification successful","data":{"reference":"dep_abc","status":"success","amount":50000,"currency":"ngn"}}`))
	}))
	defer srv.Close()

	client := NewClient(srv.URL, "sk_test", time.Second, nil, zerolog.Nop())
	txn, err := client.VerifyTransaction(context.Background(), "dep_abc")
	require.NoError(t, err)
	assert.True(t, txn.Succeeded())
	assert.Equal(t, int64(50000), txn.Amount)
	assert.Equal(t, "NGN", txn.Currency)
}

func TestClient_Rejected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"status":false,"message":"Invalid key"}`))
	}))
	defer srv.Close()

	client := NewClient(srv.URL, "bad", time.Second, nil, zerolog.Nop())
	_, err := client.VerifyTransaction(context.Background(), "dep_abc")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrRejected))
	assert.Contains(t, err.Error(), "Invalid key")
}

func TestClient_Timeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	client := NewClient(srv.URL, "sk_test", 50*time.Millisecond, nil, zerolog.Nop())
	_, err := client.VerifyTransaction(context.Background(), "dep_slow")
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
}

func TestClient_MalformedResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`<html>bad gateway</html>`))
	}))
	defer srv.Close()

	client := NewClient(srv.URL, "sk_test", time.Second, nil, zerolog.Nop())
	_, err := client.VerifyTransaction(context.Background(), "dep_abc")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "decode response")
}
