package auth

import (
	"context"
	"net/http"
	"strings"
	"time"
)

// ServiceTokenAuthenticator verifies bearer tokens minted by the token
// endpoint. Next, when set, handles tokens that do not carry the service
// token prefix.
type ServiceTokenAuthenticator struct {
	Secret string
	Next   Authenticator
	Now    func() time.Time
}

func (a ServiceTokenAuthenticator) Authenticate(ctx context.Context, r *http.Request) (Identity, error) {
	authz := strings.TrimSpace(r.Header.Get("Authorization"))
	if strings.HasPrefix(strings.ToLower(authz), "bearer ") {
		token := strings.TrimSpace(authz[len("bearer "):])
		if strings.HasPrefix(token, serviceTokenPrefix+".") {
			now := time.Now().UTC()
			if a.Now != nil {
				now = a.Now().UTC()
			}
			claims, err := VerifyServiceToken(a.Secret, token, now)
			if err != nil {
				return Identity{}, ErrUnauthenticated
			}
			roles := claims.Roles
			if len(roles) == 0 {
				roles = []string{RoleEditor}
			}
			return Identity{
				Subject: claims.Subject,
				Roles:   roles,
			}, nil
		}
	}

	if a.Next == nil {
		return Identity{}, ErrUnauthenticated
	}
	return a.Next.Authenticate(ctx, r)
}
