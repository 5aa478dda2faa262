package domain

import "github.com/supabase-community/supabase-go"

type SupabaseClient interface {
	Initialize() error
	ValidateToken(token string) (*SupabaseUser, error)

	// DB returns the service-role client used for ledger and profile access,
	// or nil when no service key is configured.
	DB() *supabase.Client
}
