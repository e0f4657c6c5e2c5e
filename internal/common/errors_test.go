package common

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorTaxonomy(t *testing.T) {
	cfg := ConfigurationError("missing key", nil)
	trans := TransientError("timeout", errors.New("dial tcp"))
	val := ValidationError("bad json", nil)

	assert.True(t, IsConfiguration(cfg))
	assert.False(t, IsTransient(cfg))
	assert.True(t, IsTransient(trans))
	assert.True(t, IsValidation(val))
	assert.False(t, IsValidation(trans))
}

func TestRetryable(t *testing.T) {
	assert.True(t, Retryable(TransientError("timeout", nil)))
	assert.False(t, Retryable(ConfigurationError("missing key", nil)))
	assert.False(t, Retryable(ValidationError("bad json", nil)))
	assert.False(t, Retryable(errors.New("plain")))
}

func TestTaxonomySurvivesWrapping(t *testing.T) {
	err := fmt.Errorf("processing snapshot: %w", TransientError("timeout", nil))
	assert.True(t, IsTransient(err))
	assert.True(t, Retryable(err))
}

func TestAppErrorMessage(t *testing.T) {
	err := TransientError("timeout", errors.New("dial tcp"))
	assert.Contains(t, err.Error(), "TRANSIENT")
	assert.Contains(t, err.Error(), "timeout")
	assert.Contains(t, err.Error(), "dial tcp")

	bare := ValidationError("bad json", nil)
	assert.Contains(t, bare.Error(), "VALIDATION")
}

func TestCauseUnwraps(t *testing.T) {
	cause := errors.New("dial tcp")
	err := TransientError("timeout", cause)
	assert.ErrorIs(t, err, cause)
}
