package supabase

import (
	"fmt"

	"plan-gate-server/internal/domain"

	"github.com/supabase-community/supabase-go"
)

// SupabaseClient implements the domain.SupabaseClient interface. The anon
// client validates user tokens; the service-role client reads and writes the
// ledger and profiles on behalf of webhooks and gates.
type SupabaseClient struct {
	authClient    *supabase.Client
	serviceClient *supabase.Client
	config        domain.Config
	logger        domain.Logger
}

// NewSupabaseClient creates a new Supabase client instance
func NewSupabaseClient(config domain.Config, logger domain.Logger) domain.SupabaseClient {
	return &SupabaseClient{
		config: config,
		logger: logger,
	}
}

// DB returns the service-role client, or nil when SUPABASE_SERVICE_ROLE_KEY is unset.
func (s *SupabaseClient) DB() *supabase.Client {
	return s.serviceClient
}

// Initialize establishes a connection to Supabase
func (s *SupabaseClient) Initialize() error {
	supabaseURL := s.config.GetSupabaseURL()
	anonKey := s.config.GetSupabaseAnonKey()

	if supabaseURL == "" || anonKey == "" {
		return fmt.Errorf("supabase URL and anon key must be provided")
	}

	client, err := supabase.NewClient(supabaseURL, anonKey, &supabase.ClientOptions{})
	if err != nil {
		return fmt.Errorf("failed to create Supabase client: %w", err)
	}
	s.authClient = client

	if serviceKey := s.config.GetSupabaseServiceRoleKey(); serviceKey != "" {
		service, err := supabase.NewClient(supabaseURL, serviceKey, &supabase.ClientOptions{})
		if err != nil {
			return fmt.Errorf("failed to create Supabase service client: %w", err)
		}
		s.serviceClient = service
	} else {
		s.logger.Warn("SUPABASE_SERVICE_ROLE_KEY not set; ledger and profile access disabled")
	}

	s.logger.Info("Supabase client initialized successfully", "url", supabaseURL, "service_role", s.serviceClient != nil)
	return nil
}

// ValidateToken validates a Supabase JWT token and returns user info
func (s *SupabaseClient) ValidateToken(token string) (*domain.SupabaseUser, error) {
	if s.authClient == nil {
		return nil, fmt.Errorf("Supabase client not initialized")
	}

	// Passing "Authorization" via client headers does not affect GoTrue requests.
	user, err := s.authClient.Auth.WithToken(token).GetUser()
	if err != nil {
		s.logger.Debug("Supabase rejected token", "error", err)
		return nil, fmt.Errorf("%w: %v", domain.ErrInvalidToken, err)
	}

	if user == nil {
		return nil, domain.ErrUserNotFound
	}

	return &domain.SupabaseUser{
		ID:           user.ID.String(),
		Email:        user.Email,
		UserMetadata: user.UserMetadata,
		CreatedAt:    user.CreatedAt.Format("2006-01-02T15:04:05Z07:00"),
		UpdatedAt:    user.UpdatedAt.Format("2006-01-02T15:04:05Z07:00"),
	}, nil
}
