package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"retail-pos-billing/internal/config"
	"retail-pos-billing/internal/domain/model"
	"retail-pos-billing/internal/domain/ports/repository"
	pg "retail-pos-billing/internal/infra/db/postgres"
)

func main() {
	cfgPath := flag.String("config", "config.yaml", "path to YAML config file")
	flag.Parse()

	cfg, err := config.LoadConfig(*cfgPath, true)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := pg.NewPgxPool(ctx, cfg.Database.URL, 4)
	if err != nil {
		log.Fatalf("postgres: %v", err)
	}
	defer pool.Close()

	planRepo := pg.NewPlanRepo(pool)
	tenantRepo := pg.NewTenantRepo(pool)

	// If plans already exist, do nothing.
	plans, err := planRepo.ListActive(ctx, repository.NoTX)
	if err != nil {
		log.Fatalf("list plans: %v", err)
	}
	if len(plans) > 0 {
		fmt.Printf("%d plans already present. No changes.\n", len(plans))
		for _, p := range plans {
			fmt.Printf("  - %s (price=%d %s, features=%v)\n", p.Name, p.Price, p.Currency, p.Features)
		}
		return
	}

	seed := []struct {
		Name     string
		Price    int64
		Features []string
	}{
		{"Starter", 99_900, []string{"pos", "reports_basic"}},
		{"Business", 299_900, []string{"pos", "reports_basic", "inventory", "multi_user"}},
		{"Enterprise", 799_900, []string{"pos", "reports_basic", "inventory", "multi_user", "reports_advanced", "api_access"}},
	}

	for _, s := range seed {
		p, err := model.NewPlan(uuid.NewString(), s.Name, s.Price, cfg.Billing.Currency, s.Features)
		if err != nil {
			log.Fatalf("build plan %q: %v", s.Name, err)
		}
		if err := planRepo.Save(ctx, repository.NoTX, p); err != nil {
			log.Fatalf("create plan %q: %v", s.Name, err)
		}
		fmt.Printf("seeded: %s (id=%s, price=%d %s)\n", p.Name, p.ID, p.Price, p.Currency)
	}

	demo, err := model.NewTenant(uuid.NewString(), "Demo Duka", "254700000000")
	if err != nil {
		log.Fatalf("build demo tenant: %v", err)
	}
	if err := tenantRepo.Save(ctx, repository.NoTX, demo); err != nil {
		log.Fatalf("create demo tenant: %v", err)
	}
	fmt.Printf("seeded demo tenant: %s (id=%s)\n", demo.Name, demo.ID)

	fmt.Println("Seeding complete.")
}
