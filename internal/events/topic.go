package events

// Topic names a coarse-grained change signal. Signals carry no payload;
// subscribers re-read the local cache.
type Topic string

const (
	CartChanged     Topic = "cartChanged"
	WishlistChanged Topic = "wishlistChanged"
	SessionChanged  Topic = "sessionChanged"
)

// Topics lists every known topic.
func Topics() []Topic {
	return []Topic{CartChanged, WishlistChanged, SessionChanged}
}

func (t Topic) Valid() bool {
	switch t {
	case CartChanged, WishlistChanged, SessionChanged:
		return true
	}
	return false
}

func (t Topic) String() string {
	return string(t)
}
