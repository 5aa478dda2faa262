package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/joho/godotenv"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteEnvPrices_CreatesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env.local")

	changed, err := writeEnvPrices(path, map[string]string{
		"pro_month":      "price_pm",
		"legendary_year": "price_ly",
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"STRIPE_PRICE_LEGENDARY_YEARLY", "STRIPE_PRICE_PRO_MONTHLY"}, changed)

	env, err := godotenv.Read(path)
	require.NoError(t, err)
	assert.Equal(t, "price_pm", env["STRIPE_PRICE_PRO_MONTHLY"])
	assert.Equal(t, "price_ly", env["STRIPE_PRICE_LEGENDARY_YEARLY"])
}

func TestWriteEnvPrices_PreservesOtherKeys(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env.local")
	require.NoError(t, os.WriteFile(path, []byte("STRIPE_SECRET_KEY=sk_test\nSTRIPE_PRICE_PRO_MONTHLY=price_old\n"), 0o600))

	changed, err := writeEnvPrices(path, map[string]string{"pro_month": "price_new"})
	require.NoError(t, err)
	assert.Equal(t, []string{"STRIPE_PRICE_PRO_MONTHLY"}, changed)

	env, err := godotenv.Read(path)
	require.NoError(t, err)
	assert.Equal(t, "sk_test", env["STRIPE_SECRET_KEY"])
	assert.Equal(t, "price_new", env["STRIPE_PRICE_PRO_MONTHLY"])
}

func TestWriteEnvPrices_KeepsCommentsAndOrder(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env.local")
	original := "# header\nSTRIPE_SECRET_KEY=sk\nexport STRIPE_PRICE_PRO_MONTHLY=old\n\n# tail\nAPP_URL=http://localhost:3000\n"
	require.NoError(t, os.WriteFile(path, []byte(original), 0o600))

	changed, err := writeEnvPrices(path, map[string]string{"pro_month": "price_new", "pro_year": "price_py"})
	require.NoError(t, err)
	assert.Equal(t, []string{"STRIPE_PRICE_PRO_MONTHLY", "STRIPE_PRICE_PRO_YEARLY"}, changed)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "# header\n"+
		"STRIPE_SECRET_KEY=sk\n"+
		"STRIPE_PRICE_PRO_MONTHLY=\"price_new\"\n"+
		"\n"+
		"# tail\n"+
		"APP_URL=http://localhost:3000\n"+
		"STRIPE_PRICE_PRO_YEARLY=\"price_py\"\n", string(data))

	env, err := godotenv.Read(path)
	require.NoError(t, err)
	assert.Equal(t, "price_new", env["STRIPE_PRICE_PRO_MONTHLY"])
	assert.Equal(t, "sk", env["STRIPE_SECRET_KEY"])
}

func TestEnvLineKey(t *testing.T) {
	tests := map[string]string{
		"KEY=value":          "KEY",
		"  export KEY=value": "KEY",
		"KEY: value":         "KEY",
		"# KEY=value":        "",
		"":                   "",
		"garbage":            "",
	}
	for line, want := range tests {
		assert.Equal(t, want, envLineKey(line), line)
	}
}

func TestWriteEnvPrices_UnchangedLeavesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env.local")
	original := "# keep me\nSTRIPE_PRICE_PRO_YEARLY=price_py\n"
	require.NoError(t, os.WriteFile(path, []byte(original), 0o600))

	changed, err := writeEnvPrices(path, map[string]string{"pro_year": "price_py", "unknown_key": "price_x"})
	require.NoError(t, err)
	assert.Empty(t, changed)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, original, string(data))
}
