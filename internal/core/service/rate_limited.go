package service

import (
	"context"
	"strconv"

	"github.com/rs/zerolog"

	"github.com/99minutos/user-directory/internal/core/domain"
	"github.com/99minutos/user-directory/internal/core/ports"
	"github.com/99minutos/user-directory/internal/pkg/metrics"
)

// rateLimitedIdentityService guards GetUserByID against id enumeration. All
// other operations pass straight through to the embedded service.
type rateLimitedIdentityService struct {
	ports.IdentityService
	limiter ports.RateLimiter
	log     zerolog.Logger
}

// NewRateLimitedIdentityService composes limiter around the id lookup of
// inner. The limiter key is the caller key from the context, falling back to
// the requested user id.
func NewRateLimitedIdentityService(inner ports.IdentityService, limiter ports.RateLimiter, log zerolog.Logger) ports.IdentityService {
	return &rateLimitedIdentityService{
		IdentityService: inner,
		limiter:         limiter,
		log:             log.With().Str("component", "rate_limiter").Logger(),
	}
}

func (s *rateLimitedIdentityService) GetUserByID(ctx context.Context, id int64) (*domain.User, error) {
	key, ok := ports.CallerKey(ctx)
	if !ok {
		key = "user_id:" + strconv.FormatInt(id, 10)
	}

	allowed, err := s.limiter.Allow(ctx, "get_user_by_id:"+key)
	switch {
	case err != nil:
		// Backend errors fail open.
		s.log.Warn().Err(err).Str("key", key).Msg("rate limiter unavailable")
	case !allowed:
		s.log.Warn().Str("key", key).Msg("rate limit exceeded")
		metrics.RateLimitedTotal.WithLabelValues("get_user_by_id").Inc()
		return nil, domain.ErrRateLimitExceeded
	}

	return s.IdentityService.GetUserByID(ctx, id)
}
