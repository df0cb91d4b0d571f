package domain

import (
	"context"

	"github.com/lestrrat-go/jwx/v2/jwk"
)

// KeySetResolver fetches the JSON Web Key Set published at a client's
// registered jwks_uri. Resolution is a blocking network call: results
// are cached with a TTL and fetches carry a bounded timeout, failing
// the caller rather than hanging on an unreachable endpoint.
type KeySetResolver interface {
	Resolve(ctx context.Context, jwksURI string) (jwk.Set, error)
}
