package restapi

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"dineqr/internal/domain"
	"dineqr/internal/orders"
	"dineqr/internal/pager"
)

type OTPRequest struct {
	Email string `json:"email" validate:"required,email"`
}

type VerifyOTPRequest struct {
	Email string `json:"email" validate:"required,email"`
	OTP   string `json:"otp" validate:"required,len=6,numeric"`
}

type LoginRequest struct {
	HotelKey string      `json:"hotelKey" validate:"required"`
	LoginID  string      `json:"loginId" validate:"required"`
	Password string      `json:"password" validate:"required,min=6"`
	Role     domain.Role `json:"role" validate:"required,oneof=staff manager"`
}

// Session is what the backend returns once a user is authenticated.
type Session struct {
	UserID   string      `json:"userId"`
	Name     string      `json:"name,omitempty"`
	Role     domain.Role `json:"role"`
	HotelKey string      `json:"hotelKey,omitempty"`
}

type PlaceOrderRequest struct {
	HotelKey    string                `json:"hotelKey" validate:"required"`
	OrderType   domain.OrderType      `json:"orderType" validate:"required,oneof=dine-in parcel"`
	TableNumber string                `json:"tableNumber,omitempty" validate:"required_if=OrderType dine-in"`
	Items       []domain.CartLineItem `json:"items" validate:"required,min=1,dive"`
}

type pageResponse[T any] struct {
	Items []T `json:"items"`
	Total int `json:"total"`
}

func (c *Client) SendOTP(ctx context.Context, req OTPRequest) error {
	if err := c.check(req); err != nil {
		return err
	}
	return c.do(ctx, http.MethodPost, "/auth/otp/send", req, nil)
}

func (c *Client) VerifyOTP(ctx context.Context, req VerifyOTPRequest) (Session, error) {
	var s Session
	if err := c.check(req); err != nil {
		return s, err
	}
	err := c.do(ctx, http.MethodPost, "/auth/otp/verify", req, &s)
	return s, err
}

func (c *Client) StaffLogin(ctx context.Context, req LoginRequest) (Session, error) {
	var s Session
	if err := c.check(req); err != nil {
		return s, err
	}
	err := c.do(ctx, http.MethodPost, "/auth/login", req, &s)
	return s, err
}

func (c *Client) FoodList(ctx context.Context, hotelKey, category string, page int) (pager.Page[domain.Food], error) {
	q := url.Values{"page": {strconv.Itoa(page)}}
	if category != "" {
		q.Set("category", category)
	}
	var resp pageResponse[domain.Food]
	err := c.do(ctx, http.MethodGet, hotelPath(hotelKey, "/foods")+"?"+q.Encode(), nil, &resp)
	return pager.Page[domain.Food]{Items: resp.Items, Total: resp.Total}, err
}

func (c *Client) MenuList(ctx context.Context, hotelKey string, page int) (pager.Page[domain.MenuItem], error) {
	q := url.Values{"page": {strconv.Itoa(page)}}
	var resp pageResponse[domain.MenuItem]
	err := c.do(ctx, http.MethodGet, hotelPath(hotelKey, "/menu")+"?"+q.Encode(), nil, &resp)
	return pager.Page[domain.MenuItem]{Items: resp.Items, Total: resp.Total}, err
}

func (c *Client) Tables(ctx context.Context, hotelKey string) ([]domain.Table, error) {
	var tables []domain.Table
	err := c.do(ctx, http.MethodGet, hotelPath(hotelKey, "/tables"), nil, &tables)
	return tables, err
}

func (c *Client) PlaceOrder(ctx context.Context, req PlaceOrderRequest) (domain.Order, error) {
	if err := c.check(req); err != nil {
		return domain.Order{}, err
	}
	var raw json.RawMessage
	if err := c.do(ctx, http.MethodPost, "/orders", req, &raw); err != nil {
		return domain.Order{}, err
	}
	list, err := decodeOrders(raw)
	if err != nil {
		return domain.Order{}, err
	}
	if len(list) == 0 {
		return domain.Order{}, fmt.Errorf("%w: empty order response", ErrServer)
	}
	return list[0], nil
}

func (c *Client) CancelOrder(ctx context.Context, orderID string) error {
	if orderID == "" {
		return fmt.Errorf("%w: order id is required", ErrValidation)
	}
	return c.do(ctx, http.MethodPatch, "/orders/"+url.PathEscape(orderID)+"/cancel", nil, nil)
}

func (c *Client) DeleteOrder(ctx context.Context, orderID string) error {
	if orderID == "" {
		return fmt.Errorf("%w: order id is required", ErrValidation)
	}
	return c.do(ctx, http.MethodDelete, "/orders/"+url.PathEscape(orderID), nil, nil)
}

// OrderHistory returns one page of past orders, normalized like pushed ones.
func (c *Client) OrderHistory(ctx context.Context, hotelKey string, page int) (pager.Page[domain.Order], error) {
	q := url.Values{"hotelKey": {hotelKey}, "page": {strconv.Itoa(page)}}
	var resp struct {
		Items json.RawMessage `json:"items"`
		Total int             `json:"total"`
	}
	if err := c.do(ctx, http.MethodGet, "/orders/history?"+q.Encode(), nil, &resp); err != nil {
		return pager.Page[domain.Order]{}, err
	}
	if len(resp.Items) == 0 || string(resp.Items) == "null" {
		return pager.Page[domain.Order]{Total: resp.Total}, nil
	}
	list, err := decodeOrders(resp.Items)
	if err != nil {
		return pager.Page[domain.Order]{}, err
	}
	return pager.Page[domain.Order]{Items: list, Total: resp.Total}, nil
}

func (c *Client) FoodPages(hotelKey, category string) *pager.Pager[domain.Food] {
	return pager.New(func(ctx context.Context, page int) (pager.Page[domain.Food], error) {
		return c.FoodList(ctx, hotelKey, category, page)
	}, func(f domain.Food) string { return f.ID })
}

func (c *Client) MenuPages(hotelKey string) *pager.Pager[domain.MenuItem] {
	return pager.New(func(ctx context.Context, page int) (pager.Page[domain.MenuItem], error) {
		return c.MenuList(ctx, hotelKey, page)
	}, func(m domain.MenuItem) string { return m.ID })
}

func (c *Client) HistoryPages(hotelKey string) *pager.Pager[domain.Order] {
	return pager.New(func(ctx context.Context, page int) (pager.Page[domain.Order], error) {
		return c.OrderHistory(ctx, hotelKey, page)
	}, func(o domain.Order) string { return o.ID })
}

func hotelPath(hotelKey, suffix string) string {
	return "/hotels/" + url.PathEscape(hotelKey) + suffix
}

func decodeOrders(raw json.RawMessage) ([]domain.Order, error) {
	records, err := orders.ParseRecords(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrServer, err)
	}
	list := make([]domain.Order, 0, len(records))
	for _, rec := range records {
		o, err := rec.Order()
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrServer, err)
		}
		list = append(list, o)
	}
	return list, nil
}
