package vertex

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"plan-gate-server/internal/domain"
)

type nopLogger struct{}

func (nopLogger) Info(string, ...interface{})         {}
func (nopLogger) Error(string, error, ...interface{}) {}
func (nopLogger) Debug(string, ...interface{})        {}
func (nopLogger) Warn(string, ...interface{})         {}

func TestImageGenerator_Edit(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req predictRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.Len(t, req.Instances, 1)
		assert.Equal(t, "make it pop", req.Instances[0].Prompt)
		require.NotNil(t, req.Instances[0].Image)
		assert.Equal(t, base64.StdEncoding.EncodeToString([]byte("base")), req.Instances[0].Image.BytesBase64Encoded)
		assert.Equal(t, 2, req.Parameters.SampleCount)

		json.NewEncoder(w).Encode(predictResponse{Predictions: []predictImage{
			{BytesBase64Encoded: base64.StdEncoding.EncodeToString([]byte("img1")), MimeType: "image/jpeg"},
			{BytesBase64Encoded: "!!not-base64!!"},
		}})
	}))
	defer srv.Close()

	gen := newImageGenerator(srv.Client(), srv.URL, nopLogger{})
	images, err := gen.GenerateImages(context.Background(), domain.ImageRequest{
		Prompt:    "make it pop",
		BaseImage: []byte("base"),
		MimeType:  "image/png",
		Count:     2,
	})
	require.NoError(t, err)
	require.Len(t, images, 1)
	assert.Equal(t, "image/jpeg", images[0].MimeType)
	assert.Equal(t, []byte("img1"), images[0].Data)
}

func TestImageGenerator_UpstreamFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "quota exceeded", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	gen := newImageGenerator(srv.Client(), srv.URL, nopLogger{})
	_, err := gen.GenerateImages(context.Background(), domain.ImageRequest{Prompt: "x"})
	assert.ErrorIs(t, err, domain.ErrInferenceUnavailable)
}
