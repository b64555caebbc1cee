package cli

import (
	"bytes"
	"encoding/json"
	stderrors "errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rileyhilliard/trainwatch/internal/errors"
	"github.com/rileyhilliard/trainwatch/internal/training"
)

func TestErrorToJSON(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantCode string
		wantMsg  string
	}{
		{
			name:     "config not found",
			err:      errors.New(errors.ErrConfig, "Config file not found: x", "Run trainwatch init"),
			wantCode: ErrCodeConfigNotFound,
		},
		{
			name:     "config invalid",
			err:      errors.New(errors.ErrConfig, "training.epochs must be at least 1", ""),
			wantCode: ErrCodeConfigInvalid,
		},
		{
			name: "transport",
			err: errors.WrapWithCode(&training.TransportError{Op: "start training", Err: stderrors.New("refused")},
				errors.ErrTraining, "Couldn't start training", ""),
			wantCode: ErrCodeServerUnreachable,
		},
		{
			name: "business",
			err: errors.WrapWithCode(&training.BusinessError{StatusCode: 409, Message: "busy"},
				errors.ErrTraining, "busy", ""),
			wantCode: ErrCodeTrainingRejected,
			wantMsg:  "busy",
		},
		{
			name:     "server",
			err:      errors.New(errors.ErrServer, "Couldn't listen on :80", ""),
			wantCode: ErrCodeServerFailed,
		},
		{
			name:     "stream",
			err:      errors.Wrap(stderrors.New("event stream closed by server"), "Connection to server lost. Max retries exceeded."),
			wantCode: ErrCodeStreamFailed,
		},
		{
			name:     "plain error",
			err:      stderrors.New("boom"),
			wantCode: ErrCodeUnknown,
			wantMsg:  "boom",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ErrorToJSON(tt.err)
			require.NotNil(t, got)
			assert.Equal(t, tt.wantCode, got.Code)
			if tt.wantMsg != "" {
				assert.Equal(t, tt.wantMsg, got.Message)
			}
		})
	}

	assert.Nil(t, ErrorToJSON(nil))
}

func TestWriteJSONEnvelope(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteJSONSuccess(&buf, map[string]int{"epoch": 2}))

	var env map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &env))
	assert.Equal(t, true, env["success"])
	assert.NotContains(t, env, "error")

	buf.Reset()
	require.NoError(t, WriteJSONFromError(&buf, errors.New(errors.ErrServer, "down", "start it")))
	require.NoError(t, json.Unmarshal(buf.Bytes(), &env))
	assert.Equal(t, false, env["success"])
	errObj, ok := env["error"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, ErrCodeServerFailed, errObj["code"])
	assert.Equal(t, "start it", errObj["suggestion"])
}
