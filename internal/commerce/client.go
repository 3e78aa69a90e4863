// Package commerce implements the HTTP client for the catalog backend:
// products, carts, customers, and flow entries (service points and
// delivery addresses).
package commerce

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/Alex-Men-VL/sell-pizza/internal/config"
	"github.com/Alex-Men-VL/sell-pizza/internal/delivery"
)

const (
	defaultDialTimeout     = 5 * time.Second
	defaultTLSHandshake    = 5 * time.Second
	defaultIdleConnTimeout = 30 * time.Second
	defaultClientTimeout   = 30 * time.Second
)

// APIError is a non-2xx response from the backend.
type APIError struct {
	Status int
	Body   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("commerce: status %d: %s", e.Status, e.Body)
}

// Client talks to the catalog backend with bearer auth handled by the
// token provider.
type Client struct {
	http     *http.Client
	baseURL  string
	currency string

	servicePointFlow string
	addressFlow      string

	tokens *TokenProvider
}

// BuildHTTPClient returns an HTTP client tuned for backend API calls.
func BuildHTTPClient() *http.Client {
	transport := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           (&net.Dialer{Timeout: defaultDialTimeout, KeepAlive: 30 * time.Second}).DialContext,
		ForceAttemptHTTP2:     true,
		MaxIdleConns:          100,
		MaxIdleConnsPerHost:   10,
		IdleConnTimeout:       defaultIdleConnTimeout,
		TLSHandshakeTimeout:   defaultTLSHandshake,
		ExpectContinueTimeout: 1 * time.Second,
	}
	return &http.Client{
		Timeout:   defaultClientTimeout,
		Transport: transport,
	}
}

// NewClient builds a Client from configuration.
func NewClient(cfg config.CommerceConfig) *Client {
	httpClient := BuildHTTPClient()
	return &Client{
		http:             httpClient,
		baseURL:          strings.TrimRight(cfg.BaseURL, "/"),
		currency:         cfg.Currency,
		servicePointFlow: cfg.ServicePointFlow,
		addressFlow:      cfg.AddressFlow,
		tokens:           NewTokenProvider(httpClient, cfg.BaseURL, cfg.ClientID, cfg.ClientSecret),
	}
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, body, out any) error {
	token, err := c.tokens.Token(ctx)
	if err != nil {
		return err
	}

	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("commerce: encode request: %w", err)
		}
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, reader)
	if err != nil {
		return fmt.Errorf("commerce: build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.currency != "" {
		req.Header.Set("X-MOLTIN-CURRENCY", c.currency)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("commerce: %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return &APIError{Status: resp.StatusCode, Body: string(raw)}
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("commerce: decode %s %s: %w", method, path, err)
	}
	return nil
}

// GetProducts lists every live catalog product.
func (c *Client) GetProducts(ctx context.Context) ([]Product, error) {
	var envelope struct {
		Data []productWire `json:"data"`
	}
	if err := c.do(ctx, http.MethodGet, "/v2/products", nil, nil, &envelope); err != nil {
		return nil, err
	}
	products := make([]Product, 0, len(envelope.Data))
	for _, w := range envelope.Data {
		products = append(products, w.toProduct())
	}
	return products, nil
}

// GetProduct fetches one product by id.
func (c *Client) GetProduct(ctx context.Context, productID string) (Product, error) {
	var envelope struct {
		Data productWire `json:"data"`
	}
	if err := c.do(ctx, http.MethodGet, "/v2/products/"+productID, nil, nil, &envelope); err != nil {
		return Product{}, err
	}
	return envelope.Data.toProduct(), nil
}

// GetProductImageURL resolves a file id to a public href.
func (c *Client) GetProductImageURL(ctx context.Context, imageID string) (string, error) {
	var envelope struct {
		Data struct {
			Link struct {
				Href string `json:"href"`
			} `json:"link"`
		} `json:"data"`
	}
	if err := c.do(ctx, http.MethodGet, "/v2/files/"+imageID, nil, nil, &envelope); err != nil {
		return "", err
	}
	return envelope.Data.Link.Href, nil
}

// GetOrCreateCart fetches the cart keyed by the user; the backend creates
// it implicitly on first access.
func (c *Client) GetOrCreateCart(ctx context.Context, userKey string) (string, error) {
	var envelope struct {
		Data struct {
			ID string `json:"id"`
		} `json:"data"`
	}
	if err := c.do(ctx, http.MethodGet, "/v2/carts/"+userKey, nil, nil, &envelope); err != nil {
		return "", err
	}
	if envelope.Data.ID == "" {
		// Some backend versions omit the id when the cart was just created.
		return userKey, nil
	}
	return envelope.Data.ID, nil
}

// AddCartItem puts quantity units of a product into the cart.
func (c *Client) AddCartItem(ctx context.Context, cartID, productID string, quantity int) error {
	body := map[string]any{
		"data": map[string]any{
			"id":       productID,
			"type":     "cart_item",
			"quantity": quantity,
		},
	}
	return c.do(ctx, http.MethodPost, "/v2/carts/"+cartID+"/items", nil, body, nil)
}

// GetCartItems returns the cart lines and display totals.
func (c *Client) GetCartItems(ctx context.Context, cartID string) (CartContents, error) {
	var envelope struct {
		Data []cartItemWire `json:"data"`
		Meta struct {
			DisplayPrice displayPriceWire `json:"display_price"`
		} `json:"meta"`
	}
	if err := c.do(ctx, http.MethodGet, "/v2/carts/"+cartID+"/items", nil, nil, &envelope); err != nil {
		return CartContents{}, err
	}

	contents := CartContents{
		TotalFormatted: envelope.Meta.DisplayPrice.WithTax.Formatted,
		TotalMinor:     envelope.Meta.DisplayPrice.WithTax.Amount,
	}
	for _, w := range envelope.Data {
		contents.Items = append(contents.Items, CartItem{
			ID:                 w.ID,
			ProductID:          w.ProductID,
			Name:               w.Name,
			Description:        w.Description,
			Quantity:           w.Quantity,
			UnitPriceFormatted: w.Meta.DisplayPrice.WithTax.Unit.Formatted,
			LinePriceFormatted: w.Meta.DisplayPrice.WithTax.Value.Formatted,
		})
	}
	return contents, nil
}

// RemoveCartItem deletes one cart line.
func (c *Client) RemoveCartItem(ctx context.Context, cartID, itemID string) error {
	return c.do(ctx, http.MethodDelete, "/v2/carts/"+cartID+"/items/"+itemID, nil, nil, nil)
}

// DeleteCart drops the whole cart. Deleting an absent cart is not an error.
func (c *Client) DeleteCart(ctx context.Context, cartID string) error {
	err := c.do(ctx, http.MethodDelete, "/v2/carts/"+cartID, nil, nil, nil)
	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.Status == http.StatusNotFound {
		return nil
	}
	return err
}

// CreateCustomer registers a customer; the name falls back to the email
// local part.
func (c *Client) CreateCustomer(ctx context.Context, email string) (Customer, error) {
	name := email
	if at := strings.IndexByte(email, '@'); at > 0 {
		name = email[:at]
	}
	body := map[string]any{
		"data": map[string]any{
			"type":  "customer",
			"name":  name,
			"email": email,
		},
	}
	var envelope struct {
		Data customerWire `json:"data"`
	}
	if err := c.do(ctx, http.MethodPost, "/v2/customers", nil, body, &envelope); err != nil {
		return Customer{}, err
	}
	return Customer{
		ID:    envelope.Data.ID,
		Email: envelope.Data.Email,
		Name:  envelope.Data.Name,
	}, nil
}

// GetAvailableServicePoints lists every enabled service point, following
// flow pagination.
func (c *Client) GetAvailableServicePoints(ctx context.Context) ([]delivery.ServicePoint, error) {
	var points []delivery.ServicePoint
	path := "/v2/flows/" + c.servicePointFlow + "/entries"
	query := url.Values{"page[limit]": {"100"}}

	for path != "" {
		var envelope struct {
			Data  []servicePointWire `json:"data"`
			Links struct {
				Next string `json:"next"`
			} `json:"links"`
		}
		if err := c.do(ctx, http.MethodGet, path, query, nil, &envelope); err != nil {
			return nil, err
		}
		for _, w := range envelope.Data {
			points = append(points, delivery.ServicePoint{
				ID:        w.ID,
				Address:   w.Address,
				Latitude:  w.Latitude,
				Longitude: w.Longitude,
				CourierID: w.CourierID,
			})
		}
		path = trimBase(envelope.Links.Next, c.baseURL)
		query = nil
	}
	return points, nil
}

// RecordDeliveryAddress stores the order coordinates as a flow entry.
func (c *Client) RecordDeliveryAddress(ctx context.Context, coords delivery.Coords) error {
	body := map[string]any{
		"data": map[string]any{
			"type":      "entry",
			"longitude": coords.Lon,
			"latitude":  coords.Lat,
		},
	}
	return c.do(ctx, http.MethodPost, "/v2/flows/"+c.addressFlow+"/entries", nil, body, nil)
}

func trimBase(link, base string) string {
	if link == "" {
		return ""
	}
	return strings.TrimPrefix(link, base)
}
