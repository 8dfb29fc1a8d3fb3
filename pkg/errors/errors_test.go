// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Vigil Contributors

package errors_test

import (
	stderrors "errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	vigilerr "github.com/vigil-dev/vigil/pkg/errors"
)

func TestNewIncludesCodeAndFields(t *testing.T) {
	err := vigilerr.New(
		vigilerr.CodeStoreSaveFailure,
		"writing state file",
		vigilerr.FieldPath("/var/lib/vigil/watchdog_state.json"),
		vigilerr.Field("attempt", 1),
	)

	require.Error(t, err)
	assert.Equal(t, vigilerr.CodeStoreSaveFailure, vigilerr.CodeOf(err))
	assert.True(t, vigilerr.HasCode(err, vigilerr.CodeStoreSaveFailure))
	assert.Contains(t, err.Error(), "writing state file")
}

func TestErrorfWrapsInnerError(t *testing.T) {
	inner := stderrors.New("disk full")
	err := vigilerr.Errorf(vigilerr.CodeStoreSaveFailure, "write failed: %w", inner)
	require.Error(t, err)
	assert.ErrorIs(t, err, inner)
	assert.Equal(t, vigilerr.CodeStoreSaveFailure, vigilerr.CodeOf(err))
}

func TestWrapNilReturnsNil(t *testing.T) {
	assert.NoError(t, vigilerr.Wrap(nil, vigilerr.CodeStoreLoadFailure, "ignored"))
	assert.NoError(t, vigilerr.Wrapf(nil, vigilerr.CodeStoreLoadFailure, "ignored %d", 1))
}

func TestWrapPreservesChain(t *testing.T) {
	inner := stderrors.New("no such file")
	err := vigilerr.Wrap(inner, vigilerr.CodeStoreLoadFailure, "loading state", vigilerr.FieldPath("state.json"))
	require.Error(t, err)
	assert.ErrorIs(t, err, inner)
	assert.Equal(t, vigilerr.CodeStoreLoadFailure, vigilerr.CodeOf(err))
}

func TestCodeOfNonOopsError(t *testing.T) {
	assert.Equal(t, vigilerr.Code(""), vigilerr.CodeOf(stderrors.New("plain")))
	assert.Equal(t, vigilerr.Code(""), vigilerr.CodeOf(nil))
}

func TestHTTPStatusMapping(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{
			name: "invalid payload maps to 400",
			err:  vigilerr.New(vigilerr.CodeWatchdogPayloadInvalid, "bad payload"),
			want: http.StatusBadRequest,
		},
		{
			name: "invalid config value maps to 400",
			err:  vigilerr.New(vigilerr.CodeConfigValidateInvalidValue, "bad timeout"),
			want: http.StatusBadRequest,
		},
		{
			name: "not ready maps to 503",
			err:  vigilerr.New(vigilerr.CodeWatchdogNotReady, "still starting"),
			want: http.StatusServiceUnavailable,
		},
		{
			name: "notify upstream failure maps to 502",
			err:  vigilerr.New(vigilerr.CodeNotifySendFailure, "webhook refused"),
			want: http.StatusBadGateway,
		},
		{
			name: "anything else maps to 500",
			err:  vigilerr.New(vigilerr.CodeServerInternalFailure, "boom"),
			want: http.StatusInternalServerError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, vigilerr.HTTPStatus(tt.err))
		})
	}
}
