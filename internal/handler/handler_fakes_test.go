package handler

import (
	"context"
	"net/http"
	"time"

	"plan-gate-server/internal/domain"
	"plan-gate-server/internal/service"
)

func withUser(r *http.Request, user *domain.SupabaseUser) *http.Request {
	return r.WithContext(context.WithValue(r.Context(), userContextKey, user))
}

var testUser = &domain.SupabaseUser{ID: "user-1", Email: "ada@example.com"}

type stubPlans struct {
	info domain.PlanInfo
}

func (s stubPlans) ResolvePlan(ctx context.Context, userID string) domain.PlanInfo {
	return s.info
}

type stubCheckout struct {
	url          string
	err          error
	gotPlan      string
	gotInterval  string
	gotUserEmail string
}

func (s *stubCheckout) StartCheckout(ctx context.Context, user *domain.SupabaseUser, plan, interval string) (string, error) {
	s.gotPlan, s.gotInterval, s.gotUserEmail = plan, interval, user.Email
	return s.url, s.err
}

type stubPortal struct {
	url string
	err error
}

func (s stubPortal) OpenPortal(ctx context.Context, user *domain.SupabaseUser) (string, error) {
	return s.url, s.err
}

type stubVerifier struct {
	event *domain.BillingEvent
	err   error
}

func (s stubVerifier) Verify(payload []byte, signature string) (*domain.BillingEvent, error) {
	return s.event, s.err
}

type stubReconciler struct {
	err    error
	events []*domain.BillingEvent
}

func (s *stubReconciler) HandleEvent(ctx context.Context, event *domain.BillingEvent) error {
	s.events = append(s.events, event)
	return s.err
}

type stubGate struct {
	err  error
	keys []domain.FeatureKey
}

func (s *stubGate) Authorize(ctx context.Context, userID string, key domain.FeatureKey) (service.CooldownDecision, error) {
	s.keys = append(s.keys, key)
	return service.CooldownDecision{Feature: key, Allowed: s.err == nil}, s.err
}

type stubCooldowns struct {
	decision service.CooldownDecision
	err      error
}

func (s stubCooldowns) Status(ctx context.Context, userID string, key domain.FeatureKey) (service.CooldownDecision, error) {
	return s.decision, s.err
}

type stubContent struct {
	authErr   error
	chunks    []string
	streamErr error
	lines     []string
	images    []domain.GeneratedImage
	err       error

	gotViral     service.ViralImageRequest
	gotPrompt    string
	gotImage     []byte
	gotMimeType  string
	streamCalled bool
}

func (s *stubContent) AuthorizeNotes(ctx context.Context, userID, topic string) error {
	return s.authErr
}

func (s *stubContent) StreamNotes(ctx context.Context, topic string, noteType service.NoteType, emit func(string) error) error {
	s.streamCalled = true
	for _, c := range s.chunks {
		if err := emit(c); err != nil {
			return err
		}
	}
	return s.streamErr
}

func (s *stubContent) SubjectLines(ctx context.Context, userID, audience string) ([]string, error) {
	return s.lines, s.err
}

func (s *stubContent) ViralImages(ctx context.Context, userID string, req service.ViralImageRequest) ([]domain.GeneratedImage, error) {
	s.gotViral = req
	return s.images, s.err
}

func (s *stubContent) GenerateImage(ctx context.Context, userID, prompt string) ([]domain.GeneratedImage, error) {
	s.gotPrompt = prompt
	return s.images, s.err
}

func (s *stubContent) EditImage(ctx context.Context, userID, prompt string, image []byte, mimeType string) ([]domain.GeneratedImage, error) {
	s.gotPrompt, s.gotImage, s.gotMimeType = prompt, image, mimeType
	return s.images, s.err
}

var handlerEpoch = time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
