package providers

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ParallelUniverseProgrammer/MovieBot-sub000/internal/engine"
	"github.com/ParallelUniverseProgrammer/MovieBot-sub000/internal/infra"
	"github.com/ParallelUniverseProgrammer/MovieBot-sub000/internal/models"
)

// RoleBinding pairs a role with its primary provider/model and an
// ordered list of "provider/model" fallback candidates.
type RoleBinding struct {
	Provider  string
	Model     string
	Fallbacks []string
}

// Resolver implements engine.RoleResolver over a small set of
// concrete providers, selecting the model per role from
// internal/models.Catalog-registered IDs and falling over across
// candidates via internal/models.RunWithModelFallback on failure.
type Resolver struct {
	clients  map[string]engine.LLMClient
	roles    map[engine.Role]RoleBinding
	catalog  *models.Catalog
	breakers *infra.CircuitBreakerRegistry
}

// NewResolver builds a Resolver. clients is keyed by provider name
// ("anthropic", "openai"); roles maps each engine.Role to its binding.
//
// Each "provider/model" candidate gets its own three-state breaker from
// internal/infra (closed/open/half-open with SuccessThreshold probing) so a
// candidate that is currently failing hard is skipped in favor of the next
// fallback without waiting for RunWithModelFallback's per-call error to
// surface first. This is a different use of the breaker pattern than
// engine.CircuitBreaker's two-state tool predicate; provider/model
// selection is left entirely to this package, so the richer half-open
// probe is appropriate here.
func NewResolver(clients map[string]engine.LLMClient, roles map[engine.Role]RoleBinding, catalog *models.Catalog) *Resolver {
	if catalog == nil {
		catalog = models.DefaultCatalog
	}
	return &Resolver{
		clients: clients,
		roles:   roles,
		catalog: catalog,
		breakers: infra.NewCircuitBreakerRegistry(infra.CircuitBreakerConfig{
			FailureThreshold: 5,
			SuccessThreshold: 2,
			Timeout:          30 * time.Second,
		}),
	}
}

// Resolve implements engine.RoleResolver. The returned client fails
// over across the role's configured candidates internally; the model
// id returned is the primary (used for logging/metrics only, since
// the actual model used per call may differ after fallback).
func (r *Resolver) Resolve(role engine.Role) (engine.LLMClient, string, error) {
	binding, ok := r.roles[role]
	if !ok {
		return nil, "", fmt.Errorf("providers: no binding configured for role %q", role)
	}
	if _, ok := r.catalog.Get(binding.Model); !ok {
		return nil, "", fmt.Errorf("providers: model %q not registered in catalog", binding.Model)
	}

	return &fallbackClient{
		clients:  r.clients,
		breakers: r.breakers,
		cfg: &models.FallbackConfig{
			PrimaryProvider: binding.Provider,
			PrimaryModel:    binding.Model,
			Fallbacks:       binding.Fallbacks,
		},
	}, binding.Model, nil
}

// fallbackClient adapts models.RunWithModelFallback to engine.LLMClient,
// retrying a request against successive provider/model candidates when
// one fails with a failover-eligible error.
type fallbackClient struct {
	clients  map[string]engine.LLMClient
	breakers *infra.CircuitBreakerRegistry
	cfg      *models.FallbackConfig
}

// breakerFor returns the per-candidate breaker, tripped independently of
// RunWithModelFallback's own retry bookkeeping so a candidate that has been
// failing hard is skipped outright on the next call instead of re-dialing it.
func (f *fallbackClient) breakerFor(provider, model string) *infra.CircuitBreaker {
	return f.breakers.Get(models.ModelKey(provider, model))
}

// openAsFailover turns an infra.ErrCircuitOpen into a models.FailoverError so
// RunWithModelFallback's IsFailoverError check moves on to the next candidate
// instead of aborting the whole call.
func openAsFailover(err error, provider, model string) error {
	if errors.Is(err, infra.ErrCircuitOpen) {
		return models.NewFailoverError(err, provider, model, models.ReasonUnavailable)
	}
	return err
}

func (f *fallbackClient) Complete(ctx context.Context, req engine.Request) (*engine.Response, error) {
	result, err := models.RunWithModelFallback(ctx, f.cfg, func(ctx context.Context, provider, model string) (*engine.Response, error) {
		client, ok := f.clients[provider]
		if !ok {
			return nil, fmt.Errorf("providers: no client registered for provider %q", provider)
		}
		callReq := req
		callReq.Model = model
		resp, err := infra.ExecuteWithResult(f.breakerFor(provider, model), ctx, func(ctx context.Context) (*engine.Response, error) {
			return client.Complete(ctx, callReq)
		})
		if err != nil {
			return nil, openAsFailover(err, provider, model)
		}
		return resp, nil
	}, nil)
	if err != nil {
		return nil, err
	}
	return result.Result, nil
}

func (f *fallbackClient) Stream(ctx context.Context, req engine.Request) (<-chan engine.StreamChunk, error) {
	// Streaming fails over only on the initial stream-create error; once
	// a stream starts emitting chunks, failover would produce duplicate
	// partial output, so mid-stream errors surface as a Done chunk.
	result, err := models.RunWithModelFallback(ctx, f.cfg, func(ctx context.Context, provider, model string) (<-chan engine.StreamChunk, error) {
		client, ok := f.clients[provider]
		if !ok {
			return nil, fmt.Errorf("providers: no client registered for provider %q", provider)
		}
		callReq := req
		callReq.Model = model
		ch, err := infra.ExecuteWithResult(f.breakerFor(provider, model), ctx, func(ctx context.Context) (<-chan engine.StreamChunk, error) {
			return client.Stream(ctx, callReq)
		})
		if err != nil {
			return nil, openAsFailover(err, provider, model)
		}
		return ch, nil
	}, nil)
	if err != nil {
		return nil, err
	}
	return result.Result, nil
}
