package main

import (
	"context"
	"fmt"

	"github.com/okian/xpand/internal/adapters/repository"
	"github.com/okian/xpand/internal/domain/model"
	"github.com/okian/xpand/pkg/logger"
	"github.com/spf13/cobra"
)

// Demo data. Explicit ids make seeding idempotent.
var (
	demoClients = []model.Client{
		{ID: 1, CompanyName: "TechStart Inc", ContactEmail: "founder@techstart.com"},
		{ID: 2, CompanyName: "GlobalCorp Ltd", ContactEmail: "admin@globalcorp.com"},
		{ID: 3, CompanyName: "InnovateHub", ContactEmail: "ceo@innovatehub.com"},
	}
	demoVendors = []model.Vendor{
		{ID: 1, Name: "Euro Legal Services", ContactEmail: "contact@eurolegal.com", Active: true, Rating: 4, ResponseSLAHours: 24,
			Services: []string{"legal", "compliance"}, Countries: []string{"DE", "FR", "ES"}},
		{ID: 2, Name: "Global Marketing Co", ContactEmail: "info@globalmarketing.com", Active: true, Rating: 4, ResponseSLAHours: 48,
			Services: []string{"marketing", "advertising"}, Countries: []string{"DE", "US", "UK"}},
		{ID: 3, Name: "Accounting Plus", ContactEmail: "hello@accountingplus.com", Active: true, Rating: 5, ResponseSLAHours: 12,
			Services: []string{"accounting", "tax", "audit"}, Countries: []string{"FR", "DE", "IT"}},
		{ID: 4, Name: "HR Solutions EU", ContactEmail: "contact@hrsolutions.eu", Active: true, Rating: 4, ResponseSLAHours: 36,
			Services: []string{"hr", "recruitment"}, Countries: []string{"DE", "FR", "ES"}},
	}
	demoProjects = []model.Project{
		{ID: 1, ClientID: 1, Country: "DE", RequiredServices: []string{"legal", "accounting", "marketing"}, Status: model.ProjectActive},
		{ID: 2, ClientID: 1, Country: "FR", RequiredServices: []string{"legal", "hr"}, Status: model.ProjectActive},
		{ID: 3, ClientID: 3, Country: "ES", RequiredServices: []string{"marketing", "legal", "consulting"}, Status: model.ProjectActive},
	}
)

type seedCounts struct {
	Clients  int `json:"clients"`
	Vendors  int `json:"vendors"`
	Projects int `json:"projects"`
}

// seedDemo writes the demo clients, vendors and projects into store.
func seedDemo(ctx context.Context, store repository.Store) (seedCounts, error) {
	var n seedCounts
	for _, c := range demoClients {
		if _, err := store.SaveClient(ctx, c); err != nil {
			return n, fmt.Errorf("seed client %s: %w", c.ContactEmail, err)
		}
		n.Clients++
	}
	for _, v := range demoVendors {
		if _, err := store.SaveVendor(ctx, v); err != nil {
			return n, fmt.Errorf("seed vendor %s: %w", v.Name, err)
		}
		n.Vendors++
	}
	for _, p := range demoProjects {
		if _, err := store.SaveProject(ctx, p); err != nil {
			return n, fmt.Errorf("seed project %d: %w", p.ID, err)
		}
		n.Projects++
	}
	return n, nil
}

func newSeedCmd(c *cli) *cobra.Command {
	var refresh bool
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Load demo clients, vendors and projects",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signalContext(cmd.Context())
			defer stop()

			log := logger.Get()
			comps, err := wire(ctx, c.cfg, log)
			if err != nil {
				return err
			}
			defer func() { _ = comps.Close() }()

			n, err := seedDemo(ctx, comps.store)
			if err != nil {
				return err
			}
			log.Info(ctx, "demo data seeded",
				logger.Int("clients", n.Clients),
				logger.Int("vendors", n.Vendors),
				logger.Int("projects", n.Projects))

			if !refresh {
				return printJSON(cmd, n)
			}
			sum, err := comps.service.RunRefresh(ctx)
			if perr := printJSON(cmd, sum); perr != nil {
				return perr
			}
			return err
		},
	}
	cmd.Flags().BoolVar(&refresh, "refresh", false, "run a refresh right after seeding")
	return cmd
}
