package model

// WishlistContains reports whether productID is in the wishlist.
func WishlistContains(ids []string, productID string) bool {
	for _, id := range ids {
		if id == productID {
			return true
		}
	}
	return false
}

// ToggleWishlist removes productID when present and appends it otherwise.
// The returned slice is always a fresh copy.
func ToggleWishlist(ids []string, productID string) (next []string, added bool) {
	next = make([]string, 0, len(ids)+1)
	for _, id := range ids {
		if id == productID {
			continue
		}
		next = append(next, id)
	}
	if len(next) == len(ids) {
		return append(next, productID), true
	}
	return next, false
}

// DedupeWishlist keeps the first occurrence of each ID.
func DedupeWishlist(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
