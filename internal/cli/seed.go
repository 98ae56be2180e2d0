package cli

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"exam-prep-service/internal/app"
	"exam-prep-service/internal/config"
	"exam-prep-service/internal/domain"
	"exam-prep-service/internal/infra/memory"
	"exam-prep-service/internal/logging"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

// seedFile is the YAML document the seed command imports.
type seedFile struct {
	Plans []struct {
		Type        domain.PlanType `yaml:"subscriptionType"`
		Validity    string          `yaml:"validity"`
		Amount      string          `yaml:"amount"`
		Description string          `yaml:"description"`
	} `yaml:"plans"`
	Papers   []domain.Paper `yaml:"papers"`
	TestUser bool           `yaml:"testUser"`
}

// NewSeedCmd imports plans and papers and creates the test account.
func NewSeedCmd(configPath *string) *cobra.Command {
	var file string
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Import subscription plans, papers and the test user",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSeed(cmd.Context(), *configPath, file)
		},
	}
	cmd.Flags().StringVar(&file, "file", "config/seed.yaml", "seed YAML file")
	return cmd
}

func runSeed(ctx context.Context, configPath, file string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	log := logging.New(serviceName, cfg.Log.Level)
	seed, err := loadSeed(file)
	if err != nil {
		return err
	}
	stores, err := openBackend(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer stores.close()

	catalog := app.NewCatalogService(stores.papers, memory.NewPaperRepository(stores.loader, time.Minute), log)
	accounts := app.NewAccountService(stores.users, stores.plans, nil, log)
	return applySeed(ctx, seed, stores.papers, catalog, accounts, log)
}

func loadSeed(path string) (seedFile, error) {
	var seed seedFile
	data, err := os.ReadFile(path)
	if err != nil {
		return seed, fmt.Errorf("read seed file: %w", err)
	}
	if err := yaml.Unmarshal(data, &seed); err != nil {
		return seed, fmt.Errorf("parse seed file: %w", err)
	}
	return seed, nil
}

// applySeed is idempotent: plans are upserted by tier, papers already present
// by kind and title are skipped, and the test user is refreshed.
func applySeed(ctx context.Context, seed seedFile, papers app.PaperStore, catalog *app.CatalogService, accounts *app.AccountService, log logrus.FieldLogger) error {
	for _, p := range seed.Plans {
		amount, err := decimal.NewFromString(p.Amount)
		if err != nil {
			return fmt.Errorf("plan %s: %w", p.Type, domain.Invalid("amount", "is not a decimal"))
		}
		plan := domain.Plan{Type: p.Type, Validity: p.Validity, Amount: amount, Description: p.Description}
		if err := accounts.SavePlan(ctx, plan); err != nil {
			return fmt.Errorf("plan %s: %w", p.Type, err)
		}
	}

	imported := 0
	for _, paper := range seed.Papers {
		exists, err := paperExists(ctx, papers, paper)
		if err != nil {
			return err
		}
		if exists {
			continue
		}
		if _, err := catalog.Import(ctx, paper); err != nil {
			return fmt.Errorf("paper %q: %w", paper.Title, err)
		}
		imported++
	}

	if seed.TestUser {
		if _, err := accounts.EnsureTestUser(ctx); err != nil {
			return fmt.Errorf("test user: %w", err)
		}
	}
	log.WithFields(logrus.Fields{
		"plans":  len(seed.Plans),
		"papers": imported,
	}).Info("seed applied")
	return nil
}

func paperExists(ctx context.Context, papers app.PaperStore, paper domain.Paper) (bool, error) {
	matches, _, err := papers.ListPapers(ctx, domain.PaperQuery{Kind: paper.Kind, Search: paper.Title})
	if err != nil {
		return false, err
	}
	for _, m := range matches {
		if strings.EqualFold(m.Title, paper.Title) {
			return true, nil
		}
	}
	return false, nil
}
