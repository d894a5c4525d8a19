package storeapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/cenkalti/backoff/v5"
	"github.com/ikkim/storefront-sync/pkg/logger"
)

// Client talks to the storefront REST API
type Client struct {
	config     Config
	httpClient *http.Client
}

// NewClient creates a new storefront client with the given configuration
func NewClient(config Config) (*Client, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	config = config.withDefaults()
	config.BaseURL = strings.TrimRight(config.BaseURL, "/")

	return &Client{
		config: config,
		httpClient: &http.Client{
			Timeout: config.Timeout,
		},
	}, nil
}

// GetConfig returns the client configuration
func (c *Client) GetConfig() Config {
	return c.config
}

// FetchCart returns the server-side cart
func (c *Client) FetchCart(ctx context.Context, token string) ([]CartItem, error) {
	var items []CartItem
	if err := c.getData(ctx, "/cart", token, true, &items); err != nil {
		return nil, fmt.Errorf("failed to fetch cart: %w", err)
	}
	return items, nil
}

// FetchWishlist returns the product IDs of the server-side wishlist
func (c *Client) FetchWishlist(ctx context.Context, token string) ([]string, error) {
	var products []Product
	if err := c.getData(ctx, "/wishlist", token, true, &products); err != nil {
		return nil, fmt.Errorf("failed to fetch wishlist: %w", err)
	}

	ids := make([]string, 0, len(products))
	for _, p := range products {
		if p.ID == "" {
			return nil, fmt.Errorf("failed to fetch wishlist: %w: product without _id", ErrUnexpectedResponse)
		}
		ids = append(ids, p.ID)
	}
	return ids, nil
}

func (c *Client) AddCartItem(ctx context.Context, productID, token string) error {
	_, err := c.doRequest(ctx, http.MethodPost, "/cart", token, true, productRequest{ProductID: productID})
	if err != nil {
		return fmt.Errorf("failed to add cart item: %w", err)
	}
	return nil
}

// UpdateCartItem sets the absolute count of a cart line
func (c *Client) UpdateCartItem(ctx context.Context, productID string, count int, token string) error {
	_, err := c.doRequest(ctx, http.MethodPut, "/cart/"+url.PathEscape(productID), token, true, countRequest{Count: count})
	if err != nil {
		return fmt.Errorf("failed to update cart item: %w", err)
	}
	return nil
}

func (c *Client) RemoveCartItem(ctx context.Context, productID, token string) error {
	_, err := c.doRequest(ctx, http.MethodDelete, "/cart/"+url.PathEscape(productID), token, true, nil)
	if err != nil {
		return fmt.Errorf("failed to remove cart item: %w", err)
	}
	return nil
}

func (c *Client) ClearCart(ctx context.Context, token string) error {
	if _, err := c.doRequest(ctx, http.MethodDelete, "/cart", token, true, nil); err != nil {
		return fmt.Errorf("failed to clear cart: %w", err)
	}
	return nil
}

func (c *Client) AddWishlistItem(ctx context.Context, productID, token string) error {
	_, err := c.doRequest(ctx, http.MethodPost, "/wishlist", token, true, productRequest{ProductID: productID})
	if err != nil {
		return fmt.Errorf("failed to add wishlist item: %w", err)
	}
	return nil
}

func (c *Client) RemoveWishlistItem(ctx context.Context, productID, token string) error {
	_, err := c.doRequest(ctx, http.MethodDelete, "/wishlist/"+url.PathEscape(productID), token, true, nil)
	if err != nil {
		return fmt.Errorf("failed to remove wishlist item: %w", err)
	}
	return nil
}

// SignIn exchanges credentials for a bearer token
func (c *Client) SignIn(ctx context.Context, email, password string) (*AuthResponse, error) {
	resp, err := c.authRequest(ctx, "/auth/signin", SignInRequest{Email: email, Password: password})
	if err != nil {
		return nil, fmt.Errorf("failed to sign in: %w", err)
	}
	return resp, nil
}

// SignUp registers a new account and returns its bearer token
func (c *Client) SignUp(ctx context.Context, req SignUpRequest) (*AuthResponse, error) {
	resp, err := c.authRequest(ctx, "/auth/signup", req)
	if err != nil {
		return nil, fmt.Errorf("failed to sign up: %w", err)
	}
	return resp, nil
}

func (c *Client) FetchProduct(ctx context.Context, productID string) (*Product, error) {
	var product Product
	if err := c.getData(ctx, "/products/"+url.PathEscape(productID), "", false, &product); err != nil {
		return nil, fmt.Errorf("failed to fetch product: %w", err)
	}
	if product.ID == "" {
		return nil, fmt.Errorf("failed to fetch product: %w: product without _id", ErrUnexpectedResponse)
	}
	return &product, nil
}

func (c *Client) FetchProducts(ctx context.Context) ([]Product, error) {
	var products []Product
	if err := c.getData(ctx, "/products", "", false, &products); err != nil {
		return nil, fmt.Errorf("failed to fetch products: %w", err)
	}
	return products, nil
}

func (c *Client) authRequest(ctx context.Context, path string, payload interface{}) (*AuthResponse, error) {
	body, err := c.doRequest(ctx, http.MethodPost, path, "", false, payload)
	if err != nil {
		return nil, err
	}

	var resp AuthResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnexpectedResponse, err)
	}
	if resp.Token == "" || resp.User == nil {
		return nil, fmt.Errorf("%w: auth response without user or token", ErrUnexpectedResponse)
	}
	return &resp, nil
}

// getData performs a GET and decodes the data member of the response envelope into out.
func (c *Client) getData(ctx context.Context, path, token string, auth bool, out interface{}) error {
	body, err := c.doRequest(ctx, http.MethodGet, path, token, auth, nil)
	if err != nil {
		return err
	}
	return decodeData(body, out)
}

func decodeData(body []byte, out interface{}) error {
	var env dataEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		return fmt.Errorf("%w: %v", ErrUnexpectedResponse, err)
	}
	if len(env.Data) == 0 || string(env.Data) == "null" {
		return fmt.Errorf("%w: response without data", ErrUnexpectedResponse)
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return fmt.Errorf("%w: %v", ErrUnexpectedResponse, err)
	}
	return nil
}

// doRequest performs an HTTP request against the API. Idempotent methods are
// retried with exponential backoff on server and transport failures.
func (c *Client) doRequest(ctx context.Context, method, path, token string, auth bool, payload interface{}) ([]byte, error) {
	if auth && token == "" {
		return nil, ErrMissingToken
	}

	var reqBody []byte
	if payload != nil {
		var err error
		reqBody, err = json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request body: %w", err)
		}
	}

	attempt := func() ([]byte, error) {
		return c.doOnce(ctx, method, path, token, reqBody)
	}

	if method == http.MethodPost || c.config.MaxRetries == 0 {
		return attempt()
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = c.config.RetryInitialInterval

	body, err := backoff.Retry(ctx, func() ([]byte, error) {
		body, err := attempt()
		if err != nil && !Retryable(err) {
			return nil, backoff.Permanent(err)
		}
		return body, err
	}, backoff.WithBackOff(b), backoff.WithMaxTries(uint(c.config.MaxRetries+1)))
	if err != nil && !isAPIError(err) {
		// the retry loop gave up on a cancelled context
		return nil, fmt.Errorf("%w: %v", ErrNetworkUnreachable, err)
	}
	return body, err
}

func (c *Client) doOnce(ctx context.Context, method, path, token string, reqBody []byte) ([]byte, error) {
	var bodyReader io.Reader
	if reqBody != nil {
		bodyReader = bytes.NewReader(reqBody)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.config.BaseURL+path, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if reqBody != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	logger.Debug("Storefront API request", map[string]interface{}{
		"method": method,
		"path":   path,
	})

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNetworkUnreachable, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read response body: %v", ErrNetworkUnreachable, err)
	}

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return body, nil
	}

	message := http.StatusText(resp.StatusCode)
	var errResp ErrorResponse
	if err := json.Unmarshal(body, &errResp); err == nil && errResp.Message != "" {
		message = errResp.Message
	}

	logger.Warn("Storefront API returned error status", map[string]interface{}{
		"method":  method,
		"path":    path,
		"status":  resp.StatusCode,
		"message": message,
	})

	return nil, fmt.Errorf("%w: status %d: %s", statusError(resp.StatusCode), resp.StatusCode, message)
}

func statusError(status int) error {
	switch {
	case status == http.StatusUnauthorized:
		return ErrUnauthorized
	case status == http.StatusNotFound:
		return ErrNotFound
	case status == http.StatusConflict:
		return ErrConflict
	case status == http.StatusBadRequest, status == http.StatusUnprocessableEntity:
		return ErrInvalidRequest
	case status >= 500:
		return ErrServerError
	default:
		return ErrUnexpectedResponse
	}
}

func isAPIError(err error) bool {
	for _, target := range []error{
		ErrUnauthorized, ErrNotFound, ErrConflict, ErrInvalidRequest,
		ErrServerError, ErrNetworkUnreachable, ErrUnexpectedResponse, ErrMissingToken,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
