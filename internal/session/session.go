// Package session decodes storefront access tokens and carries the resulting
// session through request contexts.
package session

import (
	"context"
	"fmt"

	"github.com/StorefrontFeed/internal/domain"
	"github.com/golang-jwt/jwt/v5"
	"github.com/samber/lo"
)

// Role is the navigation role derived from a session.
type Role string

const (
	RoleSeller Role = "SELLER"
	RoleUser   Role = "USER"
	RoleAdmin  Role = "ADMIN"
)

// RoleClaim is the token claim holding the member's role, either a single
// string or a list of strings.
const RoleClaim = "role"

// State is the session record. The zero value is the logged-out state.
type State struct {
	AccessToken string   `json:"-"`
	Roles       []string `json:"roles"`
}

// Authenticated reports whether the session holds an access token.
func (s State) Authenticated() bool {
	return s.AccessToken != ""
}

// Role resolves the first role of the session.
// Anything that is neither a seller nor a user tag resolves to RoleAdmin.
func (s State) Role() Role {
	first, _ := lo.First(s.Roles)
	return roleOf(first)
}

// Login replaces the session with token and the given roles.
func (s State) Login(token string, roles ...string) State {
	return State{AccessToken: token, Roles: roles}
}

// Logout returns the logged-out state.
func (s State) Logout() State {
	return State{}
}

// Refresh installs a renewed token. Without explicit roles the roles are
// read from the token; either way they are kept as a list.
func (s State) Refresh(token string, roles ...string) State {
	if len(roles) == 0 {
		if decoded, err := Decode(token); err == nil {
			roles = decoded.Roles
		}
	}
	return State{AccessToken: token, Roles: append([]string{}, roles...)}
}

// Decode reads the payload of a JWT access token without verifying its
// signature; verification belongs to the backend that issued it. A malformed
// token yields the zero State and a *domain.DecodeError.
func Decode(token string) (State, error) {
	if token == "" {
		return State{}, nil
	}

	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return State{}, &domain.DecodeError{Err: err}
	}

	roles, err := rolesFromClaim(claims[RoleClaim])
	if err != nil {
		return State{}, &domain.DecodeError{Err: err}
	}
	return State{AccessToken: token, Roles: roles}, nil
}

// ResolveRole decodes token and resolves its role.
func ResolveRole(token string) Role {
	s, _ := Decode(token)
	return s.Role()
}

func rolesFromClaim(v any) ([]string, error) {
	switch role := v.(type) {
	case nil:
		return nil, nil
	case string:
		return []string{role}, nil
	case []any:
		out := make([]string, 0, len(role))
		for _, r := range role {
			str, ok := r.(string)
			if !ok {
				return nil, fmt.Errorf("role claim entry has type %T", r)
			}
			out = append(out, str)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("role claim has type %T", v)
	}
}

func roleOf(tag string) Role {
	switch tag {
	case "SELLER", "ROLE_SELLER":
		return RoleSeller
	case "USER", "ROLE_USER":
		return RoleUser
	default:
		return RoleAdmin
	}
}

type contextKey struct{}

// NewContext returns a copy of ctx carrying s.
func NewContext(ctx context.Context, s State) context.Context {
	return context.WithValue(ctx, contextKey{}, s)
}

// FromContext returns the session stored in ctx, or the logged-out state.
func FromContext(ctx context.Context) State {
	s, _ := ctx.Value(contextKey{}).(State)
	return s
}
