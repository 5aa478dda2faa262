package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"plan-gate-server/internal/config"
	"plan-gate-server/internal/infra/stripe"
	"plan-gate-server/internal/repository"
	"plan-gate-server/internal/service"
	"plan-gate-server/pkg/logger"
)

var (
	envFileFlag string
	dryRunFlag  bool
)

var ensurePricesCmd = &cobra.Command{
	Use:   "ensure-prices",
	Short: "Create missing products and prices and record their ids",
	Long: `Find or create the four catalog prices (pro/legendary x month/year).

The resulting map is printed as JSON. Unless --dry-run is set, the
STRIPE_PRICE_* entries of the env file are updated when they changed and the
price cache file is refreshed.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runEnsurePrices(cmd.Context(), cmd.OutOrStdout())
	},
}

func init() {
	ensurePricesCmd.Flags().StringVar(&envFileFlag, "env-file", ".env.local", "Env file to read credentials from and write price ids to")
	ensurePricesCmd.Flags().BoolVar(&dryRunFlag, "dry-run", false, "Print the price map without writing any file")
}

func runEnsurePrices(ctx context.Context, out io.Writer) error {
	if ctx == nil {
		ctx = context.Background()
	}
	// Existing process env wins over both files.
	_ = godotenv.Load(envFileFlag)
	_ = godotenv.Load()

	cfg := config.NewConfig()
	log := logger.NewLoggerWithFormat(cfg.GetLogLevel(), "console")
	if cfg.GetStripeSecretKey() == "" {
		return errors.New("STRIPE_SECRET_KEY is required")
	}

	provider := stripe.NewProvider(cfg.GetStripeSecretKey(), nil, log)
	provisioner := service.NewPriceProvisioner(provider, cfg.GetStripeProductPrefix(), cfg.GetStripeCurrency(), log)

	ctx, cancel := context.WithTimeout(ctx, 2*time.Minute)
	defer cancel()

	prices, err := provisioner.Ensure(ctx, cfg.GetStaticPriceIDs())
	if err != nil {
		return fmt.Errorf("ensure prices: %w", err)
	}

	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	if err := enc.Encode(prices); err != nil {
		return err
	}
	if dryRunFlag {
		return nil
	}

	changed, err := writeEnvPrices(envFileFlag, prices)
	if err != nil {
		return err
	}
	if len(changed) > 0 {
		log.Info("Updated env file", "path", envFileFlag, "keys", changed)
	} else {
		log.Info("Env file already up to date", "path", envFileFlag)
	}

	if !cfg.IsPriceCacheReadOnly() {
		store := repository.NewFilePriceStore(cfg.GetPriceCacheFile())
		if err := store.Save(ctx, prices); err != nil {
			log.Warn("Failed to write price cache file", "path", cfg.GetPriceCacheFile(), "error", err)
		}
	}
	return nil
}

// writeEnvPrices upserts the STRIPE_PRICE_* keys of path and returns the
// names that changed. Other lines keep their text and order. The file is
// left untouched when nothing changed.
func writeEnvPrices(path string, prices map[string]string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	env, err := godotenv.Unmarshal(string(data))
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}

	updates := make(map[string]string)
	var changed []string
	for key, priceID := range prices {
		name, ok := config.PriceEnvKey(key)
		if !ok || priceID == "" || env[name] == priceID {
			continue
		}
		line, err := godotenv.Marshal(map[string]string{name: priceID})
		if err != nil {
			return nil, fmt.Errorf("format %s: %w", name, err)
		}
		updates[name] = line
		changed = append(changed, name)
	}
	if len(changed) == 0 {
		return nil, nil
	}
	sort.Strings(changed)

	content := string(data)
	var lines []string
	if content != "" {
		lines = strings.Split(strings.TrimSuffix(content, "\n"), "\n")
	}
	written := make(map[string]bool, len(updates))
	for i, line := range lines {
		name := envLineKey(line)
		if replacement, ok := updates[name]; ok {
			lines[i] = replacement
			written[name] = true
		}
	}
	for _, name := range changed {
		if !written[name] {
			lines = append(lines, updates[name])
		}
	}

	if err := os.WriteFile(path, []byte(strings.Join(lines, "\n")+"\n"), 0o600); err != nil {
		return nil, fmt.Errorf("write %s: %w", path, err)
	}
	return changed, nil
}

// envLineKey returns the variable an env file line assigns, or "" for
// comments and blank lines.
func envLineKey(line string) string {
	line = strings.TrimSpace(line)
	if line == "" || strings.HasPrefix(line, "#") {
		return ""
	}
	line = strings.TrimPrefix(line, "export ")
	key, _, ok := strings.Cut(line, "=")
	if !ok {
		key, _, ok = strings.Cut(line, ":")
		if !ok {
			return ""
		}
	}
	return strings.TrimSpace(key)
}
