package storeapi

import (
	"encoding/json"

	"github.com/shopspring/decimal"
)

// Product is a catalog entry as served by GET /products.
type Product struct {
	ID                 string           `json:"_id"`
	Title              string           `json:"title"`
	Description        string           `json:"description,omitempty"`
	ImageCover         string           `json:"imageCover,omitempty"`
	Price              decimal.Decimal  `json:"price"`
	PriceAfterDiscount *decimal.Decimal `json:"priceAfterDiscount,omitempty"`
	Quantity           int              `json:"quantity"`
}

// CartItem is one line of GET /cart.
type CartItem struct {
	ID      string          `json:"_id"`
	Product Product         `json:"product"`
	Count   int             `json:"count"`
	Price   decimal.Decimal `json:"price"`
}

type User struct {
	ID    string `json:"_id"`
	Name  string `json:"name"`
	Email string `json:"email"`
	Phone string `json:"phone,omitempty"`
	Role  string `json:"role"`
}

// AuthResponse is returned by both sign-in and sign-up.
type AuthResponse struct {
	User  *User  `json:"user"`
	Token string `json:"token"`
}

type SignInRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type SignUpRequest struct {
	Name       string `json:"name"`
	Email      string `json:"email"`
	Password   string `json:"password"`
	RePassword string `json:"rePassword"`
	Phone      string `json:"phone"`
}

type productRequest struct {
	ProductID string `json:"productId"`
}

type countRequest struct {
	Count int `json:"count"`
}

// dataEnvelope wraps every cart, wishlist and catalog response.
type dataEnvelope struct {
	Status string          `json:"status"`
	Data   json.RawMessage `json:"data"`
}

// ErrorResponse is the body of a non-2xx response, when the server sends one.
type ErrorResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}
