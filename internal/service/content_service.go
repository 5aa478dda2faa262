package service

import (
	"context"
	"fmt"
	"strings"

	"golang.org/x/sync/errgroup"

	"plan-gate-server/internal/domain"
)

const (
	maxViralVariants = 4
	imageWorkers     = 2
)

// NoteType selects the angle of generated notes.
type NoteType string

const (
	NoteTrust     NoteType = "trust"
	NoteAwareness NoteType = "awareness"
	NoteClarity   NoteType = "clarity"
)

// ViralImageRequest describes a thumbnail generation run.
type ViralImageRequest struct {
	Title        string
	Style        string
	Keywords     string
	AspectRatio  string
	LessVirality bool
	Variants     int
}

// ContentService runs the gated generation features. Every entry point
// authorizes through the FeatureGate before calling the model.
type ContentService struct {
	gate   *FeatureGate
	text   domain.TextGenerator
	images domain.ImageGenerator
	logger domain.Logger
}

func NewContentService(gate *FeatureGate, text domain.TextGenerator, images domain.ImageGenerator, logger domain.Logger) *ContentService {
	return &ContentService{gate: gate, text: text, images: images, logger: logger}
}

// AuthorizeNotes admits a notes run. The cooldown is stamped here, before
// the stream starts, so an abandoned stream still consumes the window.
func (s *ContentService) AuthorizeNotes(ctx context.Context, userID, topic string) error {
	if strings.TrimSpace(topic) == "" {
		return &domain.ValidationError{Field: "topic", Message: "Describe your topic first."}
	}
	if s.text == nil {
		return fmt.Errorf("%w: text model not configured", domain.ErrInferenceUnavailable)
	}
	_, err := s.gate.Authorize(ctx, userID, domain.FeatureNotes)
	return err
}

// StreamNotes streams five notes on topic. Call AuthorizeNotes first.
func (s *ContentService) StreamNotes(ctx context.Context, topic string, noteType NoteType, emit func(string) error) error {
	if err := s.text.Stream(ctx, notesPrompt(strings.TrimSpace(topic), noteType), emit); err != nil {
		return fmt.Errorf("stream notes: %w", err)
	}
	return nil
}

// SubjectLines returns twelve email subject lines for an audience.
func (s *ContentService) SubjectLines(ctx context.Context, userID, audience string) ([]string, error) {
	audience = strings.TrimSpace(audience)
	if audience == "" {
		return nil, &domain.ValidationError{Field: "audience", Message: "Describe the audience, niche, or offer first."}
	}
	if s.text == nil {
		return nil, fmt.Errorf("%w: text model not configured", domain.ErrInferenceUnavailable)
	}
	if _, err := s.gate.Authorize(ctx, userID, domain.FeatureSubjectLines); err != nil {
		return nil, err
	}

	out, err := s.text.Generate(ctx, subjectLinesPrompt(audience))
	if err != nil {
		return nil, fmt.Errorf("generate subject lines: %w", err)
	}
	return splitLines(out), nil
}

// ViralImages generates thumbnail variants concurrently.
func (s *ContentService) ViralImages(ctx context.Context, userID string, req ViralImageRequest) ([]domain.GeneratedImage, error) {
	if strings.TrimSpace(req.Title) == "" || strings.TrimSpace(req.Style) == "" {
		return nil, &domain.ValidationError{Message: "Title and style are required"}
	}
	if s.images == nil {
		return nil, fmt.Errorf("%w: image model not configured", domain.ErrInferenceUnavailable)
	}
	if _, err := s.gate.Authorize(ctx, userID, domain.FeatureViralImages); err != nil {
		return nil, err
	}

	variants := req.Variants
	if variants <= 0 {
		variants = 1
	}
	if variants > maxViralVariants {
		variants = maxViralVariants
	}
	aspect := req.AspectRatio
	if aspect == "" {
		aspect = "16:9"
	}
	prompt := viralImagePrompt(req)

	results := make([][]domain.GeneratedImage, variants)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(imageWorkers)
	for i := 0; i < variants; i++ {
		i := i
		g.Go(func() error {
			imgs, err := s.images.GenerateImages(gctx, domain.ImageRequest{Prompt: prompt, Count: 1, AspectRatio: aspect})
			if err != nil {
				return err
			}
			results[i] = imgs
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("generate viral images: %w", err)
	}

	var images []domain.GeneratedImage
	for _, r := range results {
		images = append(images, r...)
	}
	return images, nil
}

// GenerateImage renders a single image from a free-form prompt.
func (s *ContentService) GenerateImage(ctx context.Context, userID, prompt string) ([]domain.GeneratedImage, error) {
	if s.images == nil {
		return nil, fmt.Errorf("%w: image model not configured", domain.ErrInferenceUnavailable)
	}
	if _, err := s.gate.Authorize(ctx, userID, domain.FeatureImageGen); err != nil {
		return nil, err
	}

	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		prompt = "A beautiful realistic aerial photo of victoria falls taken with a medium format camera, natural lighting, vivid, atmospheric."
	}
	images, err := s.images.GenerateImages(ctx, domain.ImageRequest{Prompt: prompt, Count: 1, AspectRatio: "16:9"})
	if err != nil {
		return nil, fmt.Errorf("generate image: %w", err)
	}
	return images, nil
}

// EditImage applies a prompt to an uploaded image. The plan check runs
// before the upload is inspected.
func (s *ContentService) EditImage(ctx context.Context, userID, prompt string, image []byte, mimeType string) ([]domain.GeneratedImage, error) {
	if s.images == nil {
		return nil, fmt.Errorf("%w: image model not configured", domain.ErrInferenceUnavailable)
	}
	if _, err := s.gate.Authorize(ctx, userID, domain.FeatureImageEdit); err != nil {
		return nil, err
	}
	if len(image) == 0 {
		return nil, &domain.ValidationError{Field: "image", Message: "Image file is required."}
	}

	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		prompt = "Enhance this photo with natural lighting and cinematic tone."
	}
	images, err := s.images.GenerateImages(ctx, domain.ImageRequest{
		Prompt:    prompt,
		Count:     1,
		BaseImage: image,
		MimeType:  mimeType,
	})
	if err != nil {
		return nil, fmt.Errorf("edit image: %w", err)
	}
	return images, nil
}

func notesPrompt(topic string, noteType NoteType) string {
	var b strings.Builder
	fmt.Fprintf(&b, "USER TOPIC = %s\n\n", topic)

	label := ""
	switch noteType {
	case NoteTrust, NoteAwareness, NoteClarity:
		label = string(noteType) + " "
	}
	fmt.Fprintf(&b, "Write exactly 5 highly engaging %snotes designed to go viral on the USER TOPIC above. Keep them punchy, impactful, and useful. No fluff.\n\n", label)
	b.WriteString("Of the 5 notes: write 4 as SHORT-FORM and 1 as LONG-FORM.\n\n")

	switch noteType {
	case NoteTrust:
		b.WriteString("A Trust Note shows the reality behind the work, admits uncomfortable truths and shares real struggles.\n\n")
	case NoteClarity:
		b.WriteString("A Clarity Note says exactly what you offer, who it is for and who it is not for.\n\n")
	case NoteAwareness:
		b.WriteString("An Awareness Note teaches something valuable for free and shows a glimpse of your method.\n\n")
	}

	b.WriteString("SHORT-FORM notes open with a hook of at most 10 words followed by 4 to 9 short lines. Vary the line counts.\n")
	b.WriteString("The LONG-FORM note is personal and story-driven, at least 400 words, one sentence per line.\n\n")
	b.WriteString("Write in a natural, conversational voice without jargon or emojis. Do not end notes with a question.\n")
	b.WriteString("Separate each note with the delimiter ###---###. Output only the notes, with no labels, numbering, headings or markdown.")
	return b.String()
}

func subjectLinesPrompt(audience string) string {
	return "You are a veteran direct-response copywriter. You write concise, curiosity-driven subject lines that trigger desire and urgency without sounding spammy.\n\n" +
		"Audience or ideal customer: " + audience + "\n\n" +
		"Write 12 email subject lines that would achieve extremely high open rates. " +
		"Each subject line must stand on its own, without numbering or explanations. Output only the 12 subject lines, one per line."
}

func viralImagePrompt(req ViralImageRequest) string {
	lines := []string{fmt.Sprintf("Make a viral thumbnail for a post titled %q", strings.TrimSpace(req.Title))}
	if req.LessVirality {
		lines = append(lines, "Title grabs attention. Visuals spark curiosity.")
	} else {
		lines = append(lines, "Title grabs attention. Visuals spark curiosity. Designed to farm engagement.")
	}
	lines = append(lines, "", fmt.Sprintf("Engaging, eye-catching visuals. %s.", strings.TrimSpace(req.Style)))
	if req.LessVirality {
		lines = append(lines, "Bold, creative visuals; highlight action and emotion; captivate the viewer.")
	} else {
		lines = append(lines, "Viral, bold, creative visuals; highlight action and emotion; hook and captivate.")
	}
	if kw := strings.TrimSpace(req.Keywords); kw != "" {
		lines = append(lines, "", "Additional keywords: "+kw)
	}
	return strings.Join(lines, "\n")
}

func splitLines(text string) []string {
	var out []string
	for _, line := range strings.Split(text, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			out = append(out, line)
		}
	}
	return out
}
