package utils

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/baibhavbaidya/researchmind-backend/internal/apperr"
	"github.com/gin-gonic/gin"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPackSmallPayloadStaysRaw(t *testing.T) {
	packed, err := Pack([]byte("short"))
	require.NoError(t, err)
	assert.Equal(t, byte('n'), packed[0])

	out, err := Unpack(packed)
	require.NoError(t, err)
	assert.Equal(t, "short", string(out))
}

func TestPackLargePayloadUsesBrotli(t *testing.T) {
	data := []byte(strings.Repeat("retrieval augmented generation ", 200))
	packed, err := Pack(data)
	require.NoError(t, err)
	assert.Equal(t, byte('b'), packed[0])
	assert.Less(t, len(packed), len(data))

	out, err := Unpack(packed)
	require.NoError(t, err)
	assert.Equal(t, data, out)
}

func TestUnpackRejectsUnknownMarker(t *testing.T) {
	_, err := Unpack([]byte("zabc"))
	assert.Error(t, err)
	_, err = Unpack(nil)
	assert.Error(t, err)
}

func TestDecodeContent(t *testing.T) {
	data := []byte(strings.Repeat("<p>abc</p>", 100))
	for _, enc := range []Encoding{EncodingGzip, EncodingBrotli} {
		c, err := Encode(data, enc)
		require.NoError(t, err)
		assert.Equal(t, data, DecodeContent(c, " "+strings.ToUpper(string(enc))))
	}

	assert.Equal(t, data, DecodeContent(data, ""))
	assert.Equal(t, []byte("not brotli"), DecodeContent([]byte("not brotli"), "br"))
	_, err := Encode(data, "zstd")
	assert.Error(t, err)
}

func TestHashKeyIsStable(t *testing.T) {
	assert.Equal(t, HashKey("a", "b"), HashKey("a", "b"))
	assert.NotEqual(t, HashKey("ab"), HashKey("a", "b"))
	assert.Len(t, HashBytes([]byte("x")), 64)
}

func TestStatusFor(t *testing.T) {
	cases := map[error]int{
		apperr.ErrUnauthenticated:                               http.StatusUnauthorized,
		apperr.Validation("query too short"):                    http.StatusBadRequest,
		fmt.Errorf("doc: %w", apperr.ErrNotFound):               http.StatusNotFound,
		apperr.ErrDuplicateFilename:                             http.StatusConflict,
		apperr.ErrDocumentLimitExceeded:                         http.StatusConflict,
		apperr.ErrTooLarge:                                      http.StatusRequestEntityTooLarge,
		apperr.ErrUnsupportedFormat:                             http.StatusUnsupportedMediaType,
		apperr.ErrRateLimited:                                   http.StatusTooManyRequests,
		apperr.StageFailed("Synthesize", apperr.ErrUnavailable): http.StatusBadGateway,
		apperr.ErrUnavailable:                                   http.StatusServiceUnavailable,
		apperr.ErrTimeout:                                       http.StatusGatewayTimeout,
		errors.New("boom"):                                      http.StatusInternalServerError,
	}
	for err, want := range cases {
		assert.Equal(t, want, StatusFor(err), err.Error())
	}
}

func TestRespondWithAppError(t *testing.T) {
	gin.SetMode(gin.TestMode)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	RespondWithAppError(c, apperr.StageFailed("Critique", apperr.ErrTimeout))

	require.Equal(t, http.StatusBadGateway, w.Code)
	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "stage_failed", body["error_code"])
	assert.Equal(t, map[string]any{"stage": "Critique", "cause": "timeout"}, body["details"])

	w = httptest.NewRecorder()
	c, _ = gin.CreateTestContext(w)
	RespondWithAppError(c, errors.New("mongo exploded at 10.0.0.3"))
	require.Equal(t, http.StatusInternalServerError, w.Code)
	assert.NotContains(t, w.Body.String(), "10.0.0.3")

	w = httptest.NewRecorder()
	c, _ = gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/api/documents", nil)
	RespondWithAppError(c, errors.New("mongo exploded at 10.0.0.3"))
	require.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Contains(t, w.Body.String(), "An internal error occurred")
}
