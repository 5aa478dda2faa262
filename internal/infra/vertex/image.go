package vertex

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"golang.org/x/oauth2/google"

	"plan-gate-server/internal/domain"
)

const cloudPlatformScope = "https://www.googleapis.com/auth/cloud-platform"

// ImageGenerator implements domain.ImageGenerator with the Imagen predict
// endpoint. The genai SDK has no image output, so the REST call is made
// directly with an oauth2 client.
type ImageGenerator struct {
	httpClient *http.Client
	endpoint   string
	logger     domain.Logger
}

// NewImageGenerator authenticates with application default credentials.
func NewImageGenerator(ctx context.Context, projectID, location, model string, logger domain.Logger) (*ImageGenerator, error) {
	httpClient, err := google.DefaultClient(ctx, cloudPlatformScope)
	if err != nil {
		return nil, fmt.Errorf("failed to get default credentials: %w", err)
	}
	httpClient.Timeout = 90 * time.Second

	endpoint := fmt.Sprintf("https://%s-aiplatform.googleapis.com/v1/projects/%s/locations/%s/publishers/google/models/%s:predict",
		location, projectID, location, model)
	return newImageGenerator(httpClient, endpoint, logger), nil
}

func newImageGenerator(httpClient *http.Client, endpoint string, logger domain.Logger) *ImageGenerator {
	return &ImageGenerator{httpClient: httpClient, endpoint: endpoint, logger: logger}
}

type predictImage struct {
	BytesBase64Encoded string `json:"bytesBase64Encoded"`
	MimeType           string `json:"mimeType,omitempty"`
}

type predictInstance struct {
	Prompt string        `json:"prompt"`
	Image  *predictImage `json:"image,omitempty"`
}

type predictRequest struct {
	Instances  []predictInstance `json:"instances"`
	Parameters struct {
		SampleCount int    `json:"sampleCount"`
		AspectRatio string `json:"aspectRatio,omitempty"`
	} `json:"parameters"`
}

type predictResponse struct {
	Predictions []predictImage `json:"predictions"`
}

func (g *ImageGenerator) GenerateImages(ctx context.Context, req domain.ImageRequest) ([]domain.GeneratedImage, error) {
	count := req.Count
	if count <= 0 {
		count = 1
	}

	instance := predictInstance{Prompt: req.Prompt}
	if len(req.BaseImage) > 0 {
		instance.Image = &predictImage{
			BytesBase64Encoded: base64.StdEncoding.EncodeToString(req.BaseImage),
			MimeType:           req.MimeType,
		}
	}
	body := predictRequest{Instances: []predictInstance{instance}}
	body.Parameters.SampleCount = count
	body.Parameters.AspectRatio = req.AspectRatio

	payload, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, g.endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := g.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("%w: imagen request failed: %v", domain.ErrInferenceUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("%w: imagen returned status %d: %s", domain.ErrInferenceUnavailable, resp.StatusCode, snippet)
	}

	var result predictResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("%w: failed to decode imagen response: %v", domain.ErrInferenceUnavailable, err)
	}

	images := make([]domain.GeneratedImage, 0, len(result.Predictions))
	for _, p := range result.Predictions {
		data, err := base64.StdEncoding.DecodeString(p.BytesBase64Encoded)
		if err != nil || len(data) == 0 {
			g.logger.Warn("Skipping undecodable imagen prediction", "error", err)
			continue
		}
		mime := p.MimeType
		if mime == "" {
			mime = "image/png"
		}
		images = append(images, domain.GeneratedImage{MimeType: mime, Data: data})
	}
	if len(images) == 0 {
		return nil, fmt.Errorf("%w: no images returned", domain.ErrInferenceUnavailable)
	}
	return images, nil
}
