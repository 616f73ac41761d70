package navigation

import (
	"testing"

	"github.com/StorefrontFeed/internal/session"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func paths(items []MenuItem) []string {
	out := make([]string, len(items))
	for i, it := range items {
		out[i] = it.Path
	}
	return out
}

func TestMenuFor(t *testing.T) {
	tests := []struct {
		name      string
		state     session.State
		wantPaths []string
	}{
		{
			name:      "logged out",
			state:     session.State{},
			wantPaths: []string{},
		},
		{
			name:      "seller",
			state:     session.State{AccessToken: "t", Roles: []string{"ROLE_SELLER"}},
			wantPaths: []string{"/mypage/wishlist", "/mypage/order-list", "/mypage/shipping-address", "/product/registration", "/seller/products"},
		},
		{
			name:      "user",
			state:     session.State{AccessToken: "t", Roles: []string{"USER"}},
			wantPaths: []string{"/mypage/order-list", "/mypage/shipping-address", "/mypage/wishlist", "/mypage/seller-registration"},
		},
		{
			name:      "unrecognized role gets the manager menu",
			state:     session.State{AccessToken: "t", Roles: []string{"GUEST"}},
			wantPaths: []string{"/admin_user", "/admin_seller", "/admin_accept", "/admin_banner", "/mypage/wishlist"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.wantPaths, paths(MenuFor(tt.state)))
		})
	}
}

func TestForRole_ReturnsCopy(t *testing.T) {
	items := ForRole(session.RoleSeller)
	require.NotEmpty(t, items)
	items[0].Title = "changed"

	assert.Equal(t, "Wishlist", ForRole(session.RoleSeller)[0].Title)
}
