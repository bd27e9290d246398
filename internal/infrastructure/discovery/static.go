package discovery

import (
	"context"
	"strings"

	"library-services/pkg/apperror"
)

// StaticResolver resolves logical service names from a fixed map, usually
// the discovery.services section of the config.
type StaticResolver struct {
	services map[string]string
}

func NewStaticResolver(services map[string]string) *StaticResolver {
	normalized := make(map[string]string, len(services))
	for name, url := range services {
		normalized[strings.ToLower(name)] = strings.TrimRight(url, "/")
	}
	return &StaticResolver{services: normalized}
}

// Resolve returns the base URL for name. Unknown names are RemoteUnavailable:
// from the caller's side there is simply no instance to talk to.
func (r *StaticResolver) Resolve(ctx context.Context, name string) (string, error) {
	url, ok := r.services[strings.ToLower(name)]
	if !ok || url == "" {
		return "", apperror.RemoteUnavailable(nil, "no instance registered for service %s", name)
	}
	return url, nil
}
