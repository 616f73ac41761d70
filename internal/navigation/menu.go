// Package navigation holds the sidebar menus shown to each storefront role.
package navigation

import (
	"github.com/StorefrontFeed/internal/session"
)

// MenuItem is one sidebar entry.
type MenuItem struct {
	ID    int    `json:"id"`
	Title string `json:"title"`
	Path  string `json:"path"`
}

var sellerMenu = []MenuItem{
	{ID: 4, Title: "Wishlist", Path: "/mypage/wishlist"},
	{ID: 5, Title: "Orders / Shipping status", Path: "/mypage/order-list"},
	{ID: 6, Title: "Shipping addresses", Path: "/mypage/shipping-address"},
	{ID: 7, Title: "Register product", Path: "/product/registration"},
	{ID: 8, Title: "My products", Path: "/seller/products"},
}

var consumerMenu = []MenuItem{
	{ID: 1, Title: "Orders / Shipping status", Path: "/mypage/order-list"},
	{ID: 2, Title: "Shipping addresses", Path: "/mypage/shipping-address"},
	{ID: 4, Title: "Wishlist", Path: "/mypage/wishlist"},
	{ID: 5, Title: "Apply as seller", Path: "/mypage/seller-registration"},
}

var managerMenu = []MenuItem{
	{ID: 1, Title: "Members", Path: "/admin_user"},
	{ID: 2, Title: "Sellers", Path: "/admin_seller"},
	{ID: 3, Title: "Seller approval", Path: "/admin_accept"},
	{ID: 4, Title: "Banners", Path: "/admin_banner"},
	{ID: 5, Title: "Wishlist", Path: "/mypage/wishlist"},
}

// ForRole returns the menu of role. The returned slice is a copy.
func ForRole(role session.Role) []MenuItem {
	var items []MenuItem
	switch role {
	case session.RoleSeller:
		items = sellerMenu
	case session.RoleUser:
		items = consumerMenu
	default:
		items = managerMenu
	}
	return append([]MenuItem{}, items...)
}

// MenuFor returns the sidebar for s. A logged-out or undecodable session
// gets the empty no-access menu.
func MenuFor(s session.State) []MenuItem {
	if !s.Authenticated() {
		return []MenuItem{}
	}
	return ForRole(s.Role())
}
