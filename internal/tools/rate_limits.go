// Copyright (C) 2025 Dyne.org foundation
// designed, written and maintained by Denis Roio <jaromil@dyne.org>
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as
// published by the Free Software Foundation, either version 3 of the
// License, or (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program.  If not, see <https://www.gnu.org/licenses/>.

package tools

import (
	"fmt"
	"sync"
	"time"
)

// RateLimitConfig configures rate limits and cooldowns for tools. Zero
// values mean unlimited.
type RateLimitConfig struct {
	DefaultPerMinute int
	PerTool          map[string]int
	Cooldowns        map[string]time.Duration
}

// DefaultRateLimitConfig returns the default rate limiting configuration,
// which does not limit anything.
func DefaultRateLimitConfig() RateLimitConfig {
	return RateLimitConfig{}
}

func (c RateLimitConfig) perMinute(name string) int {
	if c.PerTool != nil {
		if rate, ok := c.PerTool[name]; ok {
			return rate
		}
	}
	return c.DefaultPerMinute
}

// rateLimiters lazily creates one limiter per tool name.
type rateLimiters struct {
	mu       sync.Mutex
	config   RateLimitConfig
	limiters map[string]*toolRateLimiter
	now      func() time.Time
}

func newRateLimiters(config RateLimitConfig) *rateLimiters {
	return &rateLimiters{
		config:   config,
		limiters: make(map[string]*toolRateLimiter),
		now:      time.Now,
	}
}

func (r *rateLimiters) Allow(name string) error {
	if r == nil {
		return nil
	}
	r.mu.Lock()
	limiter, ok := r.limiters[name]
	if !ok {
		limiter = newToolRateLimiter(r.config.perMinute(name), r.config.Cooldowns[name], r.now())
		r.limiters[name] = limiter
	}
	now := r.now()
	r.mu.Unlock()
	return limiter.Allow(now)
}

// toolRateLimiter is a token bucket refilled on demand, plus an optional
// cooldown between calls. A nil limiter allows everything.
type toolRateLimiter struct {
	mu          sync.Mutex
	capacity    float64
	tokens      float64
	perSecond   float64
	last        time.Time
	cooldown    time.Duration
	nextAllowed time.Time
}

func newToolRateLimiter(ratePerMinute int, cooldown time.Duration, now time.Time) *toolRateLimiter {
	if ratePerMinute <= 0 && cooldown <= 0 {
		return nil
	}
	rl := &toolRateLimiter{cooldown: cooldown, last: now}
	if ratePerMinute > 0 {
		rl.capacity = float64(ratePerMinute)
		rl.tokens = rl.capacity
		rl.perSecond = float64(ratePerMinute) / 60
	}
	return rl
}

func (r *toolRateLimiter) Allow(now time.Time) error {
	if r == nil {
		return nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.nextAllowed.IsZero() && now.Before(r.nextAllowed) {
		return fmt.Errorf("%w: retry after %s", ErrToolInCooldown, r.nextAllowed.Sub(now).Round(time.Second))
	}

	if r.capacity > 0 {
		if elapsed := now.Sub(r.last).Seconds(); elapsed > 0 {
			r.tokens = min(r.capacity, r.tokens+elapsed*r.perSecond)
		}
		r.last = now
		if r.tokens < 1 {
			return ErrToolRateLimited
		}
		r.tokens--
	}

	if r.cooldown > 0 {
		r.nextAllowed = now.Add(r.cooldown)
	}
	return nil
}
