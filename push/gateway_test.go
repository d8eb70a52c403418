package push

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGatewaySend(t *testing.T) {
	var got gatewayRequest
	var auth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth = r.Header.Get("Authorization")
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Write([]byte(`{"success":2,"failure":0}`))
	}))
	defer srv.Close()

	g := NewGateway(srv.URL, "secret", 0)
	msg := NewMessage("¡Tu turno!", "Te toca jugar wolf")
	require.NoError(t, g.Send(context.Background(), []string{"tokA", "tokB"}, msg))

	assert.Equal(t, "key=secret", auth)
	assert.Equal(t, []string{"tokA", "tokB"}, got.RegistrationIDs)
	assert.Equal(t, "¡Tu turno!", got.Notification.Title)
	assert.Equal(t, "Te toca jugar wolf", got.Notification.Body)
	assert.Equal(t, msg.ID, got.Data["id"])
}

func TestGatewayPartialFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"success":1,"failure":1}`))
	}))
	defer srv.Close()

	err := NewGateway(srv.URL, "", 0).Send(context.Background(), []string{"a", "b"}, NewMessage("t", "b"))
	assert.ErrorContains(t, err, "delivered 1 of 2")
}

func TestGatewayHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad key", http.StatusUnauthorized)
	}))
	defer srv.Close()

	err := NewGateway(srv.URL, "", 0).Send(context.Background(), []string{"a"}, NewMessage("t", "b"))
	assert.ErrorContains(t, err, "status 401")
}

func TestGatewaySkipsEmptyRecipients(t *testing.T) {
	called := false
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))
	defer srv.Close()

	require.NoError(t, NewGateway(srv.URL, "", 0).Send(context.Background(), nil, NewMessage("t", "b")))
	assert.False(t, called)
}
