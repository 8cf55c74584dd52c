package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetServiceErrorThroughWrapping(t *testing.T) {
	base := NotFound("Application not found")
	wrapped := fmt.Errorf("load application: %w", base)

	se := GetServiceError(wrapped)
	require.NotNil(t, se)
	assert.Equal(t, http.StatusNotFound, se.HTTPStatus)
	assert.True(t, Is(wrapped, CodeNotFound))
	assert.Nil(t, GetServiceError(stderrors.New("plain")))
}

func TestWithDetailsDoesNotMutateOriginal(t *testing.T) {
	base := BadRequest("Validation error")
	detailed := base.WithDetails("field", "name")

	assert.Empty(t, base.Details)
	assert.Equal(t, "name", detailed.Details["field"])
}

func TestUploadMessage(t *testing.T) {
	err := Upload(stderrors.New("Only image files are allowed"))
	assert.Equal(t, "File upload error: Only image files are allowed", err.Message)
	assert.Equal(t, http.StatusBadRequest, err.HTTPStatus)

	cause := stderrors.New("disk full")
	internal := Internal("", cause)
	assert.ErrorIs(t, internal, cause)
	assert.Equal(t, "Server error", internal.Message)
}

func TestRateLimitDetails(t *testing.T) {
	err := RateLimitExceeded(20, "1s")
	assert.Equal(t, http.StatusTooManyRequests, err.HTTPStatus)
	assert.Equal(t, 20, err.Details["limit"])
}
