package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPublicHidesCause(t *testing.T) {
	cause := errors.New("dial tcp 10.0.0.3:443: connection refused")
	err := fmt.Errorf("model invoke: %w", Upstream(cause))

	code, msg := Public(err)
	assert.Equal(t, CodeUpstreamUnavailable, code)
	assert.NotContains(t, msg, "10.0.0.3")
	assert.ErrorIs(t, err, cause)
}

func TestHTTPStatus(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{Validation("message is required"), http.StatusBadRequest},
		{QuotaExceeded(false), http.StatusTooManyRequests},
		{QuotaExceeded(true), http.StatusTooManyRequests},
		{SafetyBlocked(), http.StatusUnprocessableEntity},
		{SessionNotFound(), http.StatusNotFound},
		{Upstream(nil), http.StatusServiceUnavailable},
		{New(KindRejected, CodeMaxBranchesReached, "limit", nil), http.StatusConflict},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, HTTPStatus(tt.err), tt.err.Error())
	}
}

func TestCodeOfUntyped(t *testing.T) {
	assert.Equal(t, CodeInternal, CodeOf(errors.New("x")))
	assert.Equal(t, CodeSessionNotFound, CodeOf(SessionNotFound()))
	assert.Equal(t, CodeQuotaMonthly, CodeOf(QuotaExceeded(true)))
}
