package handlers

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/BaSui01/docflow/types"
)

func TestWriteError_Mapping(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{"validation", types.NewValidationError("project_id", "bad"), http.StatusBadRequest, "VALIDATION_ERROR"},
		{"not found", types.NewNotFoundError("nope"), http.StatusNotFound, "NOT_FOUND"},
		{"invalid state default", types.NewError(types.ErrInvalidState, "x"), http.StatusConflict, "INVALID_STATE"},
		{"rate limited", types.NewError(types.ErrRateLimited, "slow down"), http.StatusTooManyRequests, "RATE_LIMITED"},
		{"plain error hidden", errors.New("db password leaked"), http.StatusInternalServerError, "INTERNAL_ERROR"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			WriteError(w, httptest.NewRequest(http.MethodGet, "/", nil), tt.err, zap.NewNop())
			assert.Equal(t, tt.status, w.Code)
			e := decode(t, w, nil)
			assert.False(t, e.Success)
			assert.Equal(t, tt.code, e.Error.Code)
			assert.NotContains(t, w.Body.String(), "password")
		})
	}
}

func TestWriteError_StageDetails(t *testing.T) {
	w := httptest.NewRecorder()
	WriteError(w, nil, types.NewAgentExecutionError("doc_writer", errors.New("boom")), nil)
	e := decode(t, w, nil)
	assert.Equal(t, "stage: doc_writer", e.Error.Details)
}

func TestWriteSuccess_RequestID(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r = r.WithContext(types.WithRequestID(r.Context(), "req-1"))
	w := httptest.NewRecorder()
	WriteSuccess(w, r, http.StatusCreated, map[string]int{"n": 1})

	assert.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, "application/json; charset=utf-8", w.Header().Get("Content-Type"))
	assert.Contains(t, w.Body.String(), `"request_id":"req-1"`)
}

func TestDecodeJSONBody_TooLarge(t *testing.T) {
	body := `{"code":"` + strings.Repeat("x", maxBodyBytes) + `"}`
	r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
	var dst map[string]string
	err := DecodeJSONBody(httptest.NewRecorder(), r, TokenSchema, &dst)
	te, ok := types.AsError(err)
	require.True(t, ok)
	assert.Equal(t, http.StatusRequestEntityTooLarge, te.HTTPStatus)
}

func TestSchema_FieldNames(t *testing.T) {
	err := GenerateSchema.Validate([]byte(`{"repository_url":"https://github.com/a/b","project_id":"p","output_formats":["markdown","pdf"]}`))
	te, ok := types.AsError(err)
	require.True(t, ok)
	assert.Equal(t, types.ErrValidation, te.Code)
	assert.Equal(t, "output_formats", te.Field)

	err = FeedbackSchema.Validate([]byte(`{"workflow_id":"x","rating":5}`))
	te, _ = types.AsError(err)
	require.NotNil(t, te)
	assert.Contains(t, []string{"usefulness_score", "accuracy_score", "completeness_score"}, te.Field)

	assert.NoError(t, StopSchema.Validate([]byte(`{"workflow_id":"abc"}`)))
}

func TestResponseWriter_CapturesStatus(t *testing.T) {
	rec := httptest.NewRecorder()
	rw := NewResponseWriter(rec)
	assert.Same(t, rw, NewResponseWriter(rw))

	rw.WriteHeader(http.StatusTeapot)
	rw.WriteHeader(http.StatusOK)
	n, err := rw.Write([]byte("hello"))
	require.NoError(t, err)
	assert.Equal(t, 5, n)
	assert.Equal(t, http.StatusTeapot, rw.StatusCode)
	assert.Equal(t, int64(5), rw.BytesWritten)
	assert.Equal(t, http.StatusTeapot, rec.Code)
}
