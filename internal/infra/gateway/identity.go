package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/patrickmn/go-cache"
	"github.com/pkg/errors"

	"github.com/opsdocs/signoff/internal/domain"
)

// IdentityGateway resolves users against the external identity service.
// Lookups are cached; identity records change rarely and every request
// resolves at least one actor.
type IdentityGateway struct {
	endpoint string
	client   *http.Client
	cache    *cache.Cache
}

func NewIdentityGateway(endpoint string) *IdentityGateway {
	return &IdentityGateway{
		endpoint: endpoint,
		client:   &http.Client{Timeout: 10 * time.Second},
		cache:    cache.New(10*time.Minute, 15*time.Minute),
	}
}

func (g *IdentityGateway) Resolve(ctx context.Context, userID string) (domain.User, error) {
	if cached, found := g.cache.Get("id:" + userID); found {
		return cached.(domain.User), nil
	}

	user, err := g.fetch(ctx, fmt.Sprintf("%s/api/v1/users/%s", g.endpoint, url.PathEscape(userID)))
	if err != nil {
		return domain.User{}, err
	}
	g.cache.Set("id:"+user.ID, user, cache.DefaultExpiration)
	return user, nil
}

func (g *IdentityGateway) ResolveEmail(ctx context.Context, email string) (domain.User, error) {
	if cached, found := g.cache.Get("email:" + email); found {
		return cached.(domain.User), nil
	}

	user, err := g.fetch(ctx, fmt.Sprintf("%s/api/v1/users/lookup?email=%s", g.endpoint, url.QueryEscape(email)))
	if err != nil {
		return domain.User{}, err
	}
	g.cache.Set("email:"+email, user, cache.DefaultExpiration)
	g.cache.Set("id:"+user.ID, user, cache.DefaultExpiration)
	return user, nil
}

func (g *IdentityGateway) fetch(ctx context.Context, target string) (domain.User, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return domain.User{}, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := g.client.Do(req)
	if err != nil {
		return domain.User{}, errors.Wrap(err, "identity request failed")
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return domain.User{}, domain.NotFoundError{}
	case resp.StatusCode != http.StatusOK:
		return domain.User{}, fmt.Errorf("identity service returned %d", resp.StatusCode)
	}

	var user domain.User
	if err := json.NewDecoder(resp.Body).Decode(&user); err != nil {
		return domain.User{}, errors.Wrap(err, "identity response malformed")
	}
	return user, nil
}
