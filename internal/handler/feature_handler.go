package handler

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"plan-gate-server/internal/domain"
	"plan-gate-server/internal/service"
)

const maxImageUploadBytes = 10 << 20

// FeatureAuthorizer admits one run of a gated feature.
type FeatureAuthorizer interface {
	Authorize(ctx context.Context, userID string, key domain.FeatureKey) (service.CooldownDecision, error)
}

// CooldownReader reports cooldown state without consuming it.
type CooldownReader interface {
	Status(ctx context.Context, userID string, key domain.FeatureKey) (service.CooldownDecision, error)
}

// ContentGenerator runs the gated generation features.
type ContentGenerator interface {
	AuthorizeNotes(ctx context.Context, userID, topic string) error
	StreamNotes(ctx context.Context, topic string, noteType service.NoteType, emit func(string) error) error
	SubjectLines(ctx context.Context, userID, audience string) ([]string, error)
	ViralImages(ctx context.Context, userID string, req service.ViralImageRequest) ([]domain.GeneratedImage, error)
	GenerateImage(ctx context.Context, userID, prompt string) ([]domain.GeneratedImage, error)
	EditImage(ctx context.Context, userID, prompt string, image []byte, mimeType string) ([]domain.GeneratedImage, error)
}

// FeatureHandler serves the gated feature endpoints
type FeatureHandler struct {
	responder
	gate      FeatureAuthorizer
	cooldowns CooldownReader
	content   ContentGenerator
}

func NewFeatureHandler(gate FeatureAuthorizer, cooldowns CooldownReader, content ContentGenerator, upgradeURL string, logger domain.Logger) *FeatureHandler {
	return &FeatureHandler{
		responder: responder{upgradeURL: upgradeURL, logger: logger},
		gate:      gate,
		cooldowns: cooldowns,
		content:   content,
	}
}

type cooldownResponse struct {
	Feature          domain.FeatureKey `json:"feature"`
	Plan             domain.Plan       `json:"plan"`
	Allowed          bool              `json:"allowed"`
	CooldownSeconds  int64             `json:"cooldown_seconds"`
	LastRunAt        *time.Time        `json:"last_run_at,omitempty"`
	RetryAt          *time.Time        `json:"retry_at,omitempty"`
	RemainingSeconds int64             `json:"remaining_seconds,omitempty"`
	Remaining        string            `json:"remaining,omitempty"`
}

// GetCooldown returns the authoritative cooldown window for a feature
func (h *FeatureHandler) GetCooldown(w http.ResponseWriter, r *http.Request) {
	user, ok := GetUserFromContext(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	key := domain.FeatureKey(mux.Vars(r)["feature"])
	d, err := h.cooldowns.Status(r.Context(), user.ID, key)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	resp := cooldownResponse{
		Feature:         d.Feature,
		Plan:            d.Plan,
		Allowed:         d.Allowed,
		CooldownSeconds: int64(d.Duration / time.Second),
		LastRunAt:       d.LastRunAt,
	}
	if !d.Allowed {
		retryAt := ceilSecond(d.RetryAt)
		resp.RetryAt = &retryAt
		resp.RemainingSeconds = retryAfterSeconds(d.Remaining)
		resp.Remaining = service.FormatRemaining(d.Remaining)
	}
	writeJSON(w, http.StatusOK, resp)
}

type notesRequest struct {
	Topic    string `json:"topic"`
	NoteType string `json:"noteType"`
}

// Notes streams generated notes as plain text. The gate runs before any
// byte is written so denials are still JSON.
func (h *FeatureHandler) Notes(w http.ResponseWriter, r *http.Request) {
	user, ok := GetUserFromContext(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	var req notesRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if err := h.content.AuthorizeNotes(r.Context(), user.ID, req.Topic); err != nil {
		h.fail(w, r, err)
		return
	}

	flusher, _ := w.(http.Flusher)
	started := false
	err := h.content.StreamNotes(r.Context(), req.Topic, service.NoteType(req.NoteType), func(chunk string) error {
		if !started {
			w.Header().Set("Content-Type", "text/plain; charset=utf-8")
			w.Header().Set("Cache-Control", "no-cache")
			w.Header().Set("X-Accel-Buffering", "no")
			w.WriteHeader(http.StatusOK)
			started = true
		}
		if _, err := io.WriteString(w, chunk); err != nil {
			return err
		}
		if flusher != nil {
			flusher.Flush()
		}
		return nil
	})

	switch {
	case err != nil && !started:
		h.fail(w, r, err)
	case err != nil:
		h.logger.Warn("Notes stream ended early", "user_id", user.ID, "error", err)
	case !started:
		h.fail(w, r, domain.ErrInferenceUnavailable)
	}
}

// SubjectLines returns generated email subject lines
func (h *FeatureHandler) SubjectLines(w http.ResponseWriter, r *http.Request) {
	user, ok := GetUserFromContext(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	var req struct {
		Audience string `json:"audience"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	lines, err := h.content.SubjectLines(r.Context(), user.ID, req.Audience)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"subject_lines": lines})
}

type viralImagesRequest struct {
	Title        string `json:"title"`
	Style        string `json:"style"`
	Keywords     string `json:"keywords"`
	AspectRatio  string `json:"aspectRatio"`
	LessVirality bool   `json:"lessVirality"`
	Variants     int    `json:"variants"`
}

// ViralImages generates thumbnail variants
func (h *FeatureHandler) ViralImages(w http.ResponseWriter, r *http.Request) {
	user, ok := GetUserFromContext(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	var req viralImagesRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	images, err := h.content.ViralImages(r.Context(), user.ID, service.ViralImageRequest{
		Title:        req.Title,
		Style:        req.Style,
		Keywords:     req.Keywords,
		AspectRatio:  req.AspectRatio,
		LessVirality: req.LessVirality,
		Variants:     req.Variants,
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"images": images})
}

// ImageGen renders an image from a prompt
func (h *FeatureHandler) ImageGen(w http.ResponseWriter, r *http.Request) {
	user, ok := GetUserFromContext(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	var req struct {
		Prompt string `json:"prompt"`
	}
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil && err != io.EOF {
			writeError(w, http.StatusBadRequest, "Invalid request body")
			return
		}
	}

	images, err := h.content.GenerateImage(r.Context(), user.ID, req.Prompt)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"images": images})
}

// ImageEdit applies a prompt to an uploaded image (multipart fields
// "prompt" and "image"). A malformed upload is reported after the plan
// check.
func (h *FeatureHandler) ImageEdit(w http.ResponseWriter, r *http.Request) {
	user, ok := GetUserFromContext(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxImageUploadBytes)
	var (
		prompt   string
		image    []byte
		mimeType string
	)
	if err := r.ParseMultipartForm(maxImageUploadBytes); err == nil {
		prompt = r.FormValue("prompt")
		if file, header, err := r.FormFile("image"); err == nil {
			image, _ = io.ReadAll(file)
			file.Close()
			mimeType = header.Header.Get("Content-Type")
		}
	}

	images, err := h.content.EditImage(r.Context(), user.ID, prompt, image, mimeType)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"images": images})
}

// ProFunction is the sample PRO-gated endpoint
func (h *FeatureHandler) ProFunction(w http.ResponseWriter, r *http.Request) {
	if !h.authorize(w, r, domain.FeatureProDemo) {
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"message":  "Pro analyze complete",
		"insights": []string{"trend-up", "outlier-detected"},
	})
}

// LegendaryFunction is the sample LEGENDARY-gated endpoint
func (h *FeatureHandler) LegendaryFunction(w http.ResponseWriter, r *http.Request) {
	if !h.authorize(w, r, domain.FeatureLegendaryDemo) {
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"message":   "Legendary report generated",
		"reportUrl": "https://example.com/report/123",
	})
}

func (h *FeatureHandler) authorize(w http.ResponseWriter, r *http.Request, key domain.FeatureKey) bool {
	user, ok := GetUserFromContext(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "Unauthorized")
		return false
	}
	if _, err := h.gate.Authorize(r.Context(), user.ID, key); err != nil {
		h.fail(w, r, err)
		return false
	}
	return true
}
