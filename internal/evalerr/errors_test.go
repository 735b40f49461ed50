package evalerr

import (
	"errors"
	"net/http"
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCodeOf(t *testing.T) {
	tests := []struct {
		kind Kind
		code string
	}{
		{KindNotFound, CodeNotFound},
		{KindNoEligibleInputs, CodeValidation},
		{KindScopeMismatch, CodeValidation},
		{KindProviderConfiguration, CodeConfiguration},
		{KindProviderHTTP, CodeAIAPI},
		{KindProviderTimeout, CodeTimeout},
		{KindMalformedProviderOutput, CodeAIResponseInvalid},
		{KindPersistence, CodeDatabase},
		{KindCanceled, CodeCanceled},
	}
	for _, tt := range tests {
		t.Run(string(tt.kind), func(t *testing.T) {
			assert.Equal(t, tt.code, CodeOf(New(tt.kind, "boom")))
		})
	}
}

func TestCodeOf_Unclassified(t *testing.T) {
	assert.Equal(t, CodeInternal, CodeOf(errors.New("plain")))
}

func TestKindOf_ThroughErisWrap(t *testing.T) {
	base := New(KindScopeMismatch, "proposals answer different RFPs")
	wrapped := eris.Wrap(base, "evaluation: aggregate")

	assert.Equal(t, KindScopeMismatch, KindOf(wrapped))
	assert.True(t, Is(wrapped, KindScopeMismatch))
	assert.Equal(t, CodeValidation, CodeOf(wrapped))
}

func TestWrap_Nil(t *testing.T) {
	assert.NoError(t, Wrap(nil, KindPersistence, "save"))
}

func TestWrap_KeepsCause(t *testing.T) {
	cause := errors.New("connection refused")
	err := Wrap(cause, KindPersistence, "save results")
	require.Error(t, err)
	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "PersistenceError: save results: connection refused")
}

func TestHTTPStatus(t *testing.T) {
	assert.Equal(t, http.StatusNotFound, HTTPStatus(New(KindNotFound, "x")))
	assert.Equal(t, http.StatusUnprocessableEntity, HTTPStatus(New(KindScopeMismatch, "x")))
	assert.Equal(t, http.StatusGatewayTimeout, HTTPStatus(New(KindProviderTimeout, "x")))
	assert.Equal(t, http.StatusBadGateway, HTTPStatus(New(KindMalformedProviderOutput, "x")))
	assert.Equal(t, http.StatusInternalServerError, HTTPStatus(errors.New("x")))
}

func TestRetryable(t *testing.T) {
	assert.True(t, Retryable(New(KindProviderTimeout, "deadline")))
	assert.True(t, Retryable(ProviderHTTP(errors.New("overloaded"), 529, true, "anthropic")))
	assert.False(t, Retryable(ProviderHTTP(errors.New("bad key"), 401, false, "anthropic")))
	assert.False(t, Retryable(New(KindMalformedProviderOutput, "not json")))
	assert.False(t, Retryable(errors.New("plain")))
}
