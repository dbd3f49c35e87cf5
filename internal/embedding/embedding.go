package embedding

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/vnmchuo/llm-cost-dashboard/internal/llm"
)

const cacheTTL = 24 * time.Hour

// Service produces text embeddings through the injected model handle. It is
// constructed once at process start and reused across requests; Close
// releases it. Identical texts are served from the redis cache when one is
// configured.
type Service struct {
	client llm.Client
	cache  *redis.Client
}

func New(client llm.Client, cache *redis.Client) *Service {
	return &Service{client: client, cache: cache}
}

func (s *Service) Embed(ctx context.Context, text string) ([]float64, error) {
	key := cacheKey(text)

	if s.cache != nil {
		data, err := s.cache.Get(ctx, key).Bytes()
		if err == nil {
			var vec []float64
			if jsonErr := json.Unmarshal(data, &vec); jsonErr == nil {
				return vec, nil
			}
		} else if err != redis.Nil {
			log.Printf("embedding: cache read error: %v", err)
		}
	}

	vec, err := s.client.Embed(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("embedding generation failed: %w", err)
	}

	if s.cache != nil {
		if data, err := json.Marshal(vec); err == nil {
			_ = s.cache.Set(ctx, key, data, cacheTTL).Err()
		}
	}

	return vec, nil
}

// Close tears the service down. The model handle itself is stateless HTTP,
// so only the cache connection is owned here when no one else shares it.
func (s *Service) Close() error {
	return nil
}

func cacheKey(text string) string {
	h := sha256.Sum256([]byte(text))
	return fmt.Sprintf("embedding:%s", hex.EncodeToString(h[:]))
}
