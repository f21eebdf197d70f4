package client

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	x402x "github.com/x402x/facilitator"
)

func TestVerify(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/verify", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		w.Write([]byte(`{"isValid":true,"payer":"0xpayer"}`))
	}))
	defer server.Close()

	c := New(server.URL)
	resp, err := c.Verify(context.Background(), x402x.PaymentPayload{X402Version: 1}, x402x.PaymentRequirements{Network: "eip155:84532"})
	require.NoError(t, err)
	assert.True(t, resp.IsValid)
	assert.Equal(t, "0xpayer", resp.Payer)
}

func TestSettle(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/settle", r.URL.Path)
		w.Write([]byte(`{"success":true,"transaction":"0xabc","network":"eip155:84532","payer":"0xpayer"}`))
	}))
	defer server.Close()

	c := New(server.URL)
	resp, err := c.Settle(context.Background(), x402x.PaymentPayload{X402Version: 1}, x402x.PaymentRequirements{Network: "eip155:84532"})
	require.NoError(t, err)
	assert.True(t, resp.Success)
	assert.Equal(t, "0xabc", resp.Transaction)
}

func TestFeeRejection(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusPaymentRequired)
		w.Write([]byte(`{"error":"facilitator fee too low","providedFee":"500000","minFacilitatorFee":"1200000","threshold":"1080000","validationTolerance":0.1}`))
	}))
	defer server.Close()

	c := New(server.URL)
	_, err := c.Settle(context.Background(), x402x.PaymentPayload{}, x402x.PaymentRequirements{})
	require.Error(t, err)

	var rejection *RejectionError
	require.True(t, errors.As(err, &rejection))
	assert.Equal(t, "facilitator fee too low", rejection.Rejection.Error)
	assert.Equal(t, "1080000", rejection.Rejection.Threshold)
	assert.Equal(t, 0.1, rejection.Rejection.ValidationTolerance)
}

func TestSupported(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/supported", r.URL.Path)
		w.Write([]byte(`{"kinds":[{"x402Version":1,"scheme":"exact","network":"eip155:84532"}]}`))
	}))
	defer server.Close()

	c := New(server.URL)
	resp, err := c.Supported(context.Background())
	require.NoError(t, err)
	require.Len(t, resp.Kinds, 1)
	assert.Equal(t, "exact", resp.Kinds[0].Scheme)
}

func TestAuthHeader(t *testing.T) {
	var got string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Get("Authorization")
		w.Write([]byte(`{"kinds":[]}`))
	}))
	defer server.Close()

	c := New(server.URL, WithHeader("Authorization", "Bearer token"))
	_, err := c.Supported(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "Bearer token", got)
}

func TestServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	c := New(server.URL)
	_, err := c.Verify(context.Background(), x402x.PaymentPayload{}, x402x.PaymentRequirements{})
	assert.Error(t, err)
}
