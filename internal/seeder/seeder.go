package seeder

import (
	"context"
	"log"

	"github.com/vnmchuo/llm-cost-dashboard/internal/auth"
)

const (
	TestAPIKey = "test-api-key-12345"
	TestOrgID  = "00000000-0000-0000-0000-000000000001"
)

func SeedTestAPIKey(ctx context.Context, store auth.Store) {
	apiKey := &auth.APIKey{
		OrgID:   TestOrgID,
		Name:    "local development",
		KeyHash: auth.HashKey(TestAPIKey),
		Active:  true,
	}

	err := store.Create(ctx, apiKey)
	if err != nil {
		log.Printf("[Seeder] API key may already exist, skipping: %v", err)
		return
	}
	log.Printf("[Seeder] Test API key created successfully")
	log.Printf("[Seeder] Key: %s", TestAPIKey)
	log.Printf("[Seeder] OrgID: %s", TestOrgID)
}
