package search

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewWithoutURLIsNoop(t *testing.T) {
	s := New("  ", time.Second)
	assert.IsType(t, Noop{}, s)

	res, err := s.Search(context.Background(), "weather", "")
	assert.NoError(t, err)
	assert.Nil(t, res)
}

func TestClientSearch(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/search", r.URL.Path)
		var req searchRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "gold price today", req.Query)
		assert.Equal(t, "Pune", req.Location)
		fmt.Fprint(w, `{"fact":"Gold is 7,200/g","sources":["example.com"],"cost":40}`)
	}))
	defer server.Close()

	res, err := New(server.URL+"/", time.Second).Search(context.Background(), "gold price today", "Pune")
	require.NoError(t, err)
	require.NotNil(t, res)
	assert.Equal(t, "Gold is 7,200/g", res.Fact)
	assert.Equal(t, []string{"example.com"}, res.Sources)
	assert.Equal(t, int64(40), res.Cost)
}

func TestClientSearchEmptyAndErrors(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		wantErr bool
	}{
		{"no content", http.StatusNoContent, "", false},
		{"blank fact", http.StatusOK, `{"fact":"  "}`, false},
		{"server error", http.StatusInternalServerError, "boom", true},
		{"bad json", http.StatusOK, "{", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				fmt.Fprint(w, tt.body)
			}))
			defer server.Close()

			res, err := New(server.URL, time.Second).Search(context.Background(), "q", "")
			assert.Nil(t, res)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
