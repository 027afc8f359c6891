package restapi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"dineqr/internal/domain"
	"dineqr/internal/mocks"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestBaseURL(t *testing.T) {
	tests := []struct {
		name     string
		hostname string
		want     string
	}{
		{name: "localhost", hostname: "localhost", want: "http://localhost:5000/api/v1"},
		{name: "localhost with port", hostname: "localhost:3000", want: "http://localhost:5000/api/v1"},
		{name: "loopback ip", hostname: "127.0.0.1", want: "http://localhost:5000/api/v1"},
		{name: "ipv6 loopback", hostname: "[::1]:3000", want: "http://localhost:5000/api/v1"},
		{name: "deployed", hostname: "dineqr.app", want: "https://api.dineqr.app/api/v1"},
	}

	for _, testCase := range tests {
		t.Run(testCase.name, func(t *testing.T) {
			got := BaseURL(testCase.hostname, "http://localhost:5000", "https://api.dineqr.app/")
			assert.Equal(t, testCase.want, got)
		})
	}
}

func TestClient_StatusMapping(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		want   error
	}{
		{name: "unauthorized", status: http.StatusUnauthorized, body: `{"message":"wrong password"}`, want: ErrInvalidCredentials},
		{name: "conflict", status: http.StatusConflict, body: `{"message":"already registered"}`, want: ErrDuplicate},
		{name: "not found", status: http.StatusNotFound, body: `{"error":"no such hotel"}`, want: ErrNotFound},
		{name: "bad request", status: http.StatusBadRequest, body: `{"message":"bad"}`, want: ErrValidation},
		{name: "server", status: http.StatusInternalServerError, body: `oops`, want: ErrServer},
		{name: "bad gateway", status: http.StatusBadGateway, want: ErrServer},
	}

	for _, testCase := range tests {
		t.Run(testCase.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(testCase.status)
				io.WriteString(w, testCase.body)
			}))
			defer srv.Close()

			client := NewClient(srv.URL+APIPrefix, srv.Client())
			_, err := client.StaffLogin(context.Background(), LoginRequest{
				HotelKey: "h1", LoginID: "staff01", Password: "secret1", Role: domain.RoleStaff,
			})

			require.Error(t, err)
			assert.ErrorIs(t, err, testCase.want)
			var apiErr *APIError
			require.True(t, errors.As(err, &apiErr))
			assert.Equal(t, testCase.status, apiErr.Status)
		})
	}
}

func TestClient_ValidationBeforeNetwork(t *testing.T) {
	httpClient := mocks.NewHTTPClient(t)
	client := NewClient("http://api.test/api/v1", httpClient)
	ctx := context.Background()

	err := client.SendOTP(ctx, OTPRequest{Email: "not-an-email"})
	assert.ErrorIs(t, err, ErrValidation)

	_, err = client.VerifyOTP(ctx, VerifyOTPRequest{Email: "a@b.co", OTP: "12ab"})
	assert.ErrorIs(t, err, ErrValidation)

	_, err = client.StaffLogin(ctx, LoginRequest{HotelKey: "h1", LoginID: "x", Password: "secret1", Role: domain.RoleGuest})
	assert.ErrorIs(t, err, ErrValidation)

	_, err = client.PlaceOrder(ctx, PlaceOrderRequest{
		HotelKey:  "h1",
		OrderType: domain.OrderTypeDineIn,
		Items: []domain.CartLineItem{{ID: "f1", Name: "Dal", Portions: []domain.PortionSelection{
			{Size: "full", Quantity: 1, Price: 90},
		}}},
	})
	assert.ErrorIs(t, err, ErrValidation, "dine-in needs a table")

	assert.ErrorIs(t, client.CancelOrder(ctx, ""), ErrValidation)
	assert.ErrorIs(t, client.DeleteOrder(ctx, ""), ErrValidation)

	httpClient.AssertNotCalled(t, "Do", mock.Anything)
}

func TestClient_TransportFailure(t *testing.T) {
	httpClient := mocks.NewHTTPClient(t)
	httpClient.On("Do", mock.Anything).Return(nil, errors.New("connection refused")).Once()

	client := NewClient("http://api.test/api/v1", httpClient)
	_, err := client.Tables(context.Background(), "h1")
	assert.ErrorIs(t, err, ErrServer)
}

func TestClient_PlaceOrder(t *testing.T) {
	httpClient := mocks.NewHTTPClient(t)
	resp := &http.Response{
		StatusCode: http.StatusCreated,
		Body: io.NopCloser(strings.NewReader(
			`{"_id":{"$oid":"o9"},"tableNumber":4,"orderType":"parcel","createdAt":{"$date":"2024-03-01T10:00:00Z"}}`)),
		Header: make(http.Header),
	}
	httpClient.On("Do", mock.MatchedBy(func(r *http.Request) bool {
		rc, err := r.GetBody()
		if err != nil {
			return false
		}
		var body PlaceOrderRequest
		if err := json.NewDecoder(rc).Decode(&body); err != nil {
			return false
		}
		return r.Method == http.MethodPost &&
			r.URL.String() == "http://api.test/api/v1/orders" &&
			r.Header.Get("Content-Type") == "application/json" &&
			body.HotelKey == "h1" && len(body.Items) == 1
	})).Return(resp, nil).Once()

	client := NewClient("http://api.test/api/v1/", httpClient)
	order, err := client.PlaceOrder(context.Background(), PlaceOrderRequest{
		HotelKey:  "h1",
		OrderType: domain.OrderTypeParcel,
		Items: []domain.CartLineItem{{ID: "f1", Name: "Dal", Portions: []domain.PortionSelection{
			{Size: "full", Quantity: 2, Price: 90},
		}}},
	})

	require.NoError(t, err)
	assert.Equal(t, "o9", order.ID)
	assert.Equal(t, "4", order.TableNumber)
	assert.Equal(t, 2024, order.CreatedAt.Year())
}

func newBackend(t *testing.T) *httptest.Server {
	t.Helper()
	r := mux.NewRouter()
	api := r.PathPrefix(APIPrefix).Subrouter()

	api.HandleFunc("/auth/login", func(w http.ResponseWriter, r *http.Request) {
		http.SetCookie(w, &http.Cookie{Name: "sid", Value: "abc", Path: "/"})
		json.NewEncoder(w).Encode(Session{UserID: "s1", Role: domain.RoleStaff, HotelKey: "h1"})
	}).Methods(http.MethodPost)

	api.HandleFunc("/hotels/{hotelKey}/tables", func(w http.ResponseWriter, r *http.Request) {
		if c, err := r.Cookie("sid"); err != nil || c.Value != "abc" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		json.NewEncoder(w).Encode([]domain.Table{{ID: "t1", TableNumber: "1", Seats: 4}})
	}).Methods(http.MethodGet)

	foods := [][]domain.Food{
		{{ID: "1", Name: "Idli"}, {ID: "2", Name: "Vada"}, {ID: "3", Name: "Dosa"}},
		{{ID: "3", Name: "Dosa"}, {ID: "4", Name: "Upma"}, {ID: "5", Name: "Poha"}},
	}
	api.HandleFunc("/hotels/{hotelKey}/foods", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("category") != "breakfast" {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		page := r.URL.Query().Get("page")
		var items []domain.Food
		switch page {
		case "1":
			items = foods[0]
		case "2":
			items = foods[1]
		}
		json.NewEncoder(w).Encode(map[string]any{"items": items, "total": 5})
	}).Methods(http.MethodGet)

	api.HandleFunc("/orders/history", func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"items":[{"id":7,"createdAt":1709287200000},{"orderId":"x8"}],"total":2}`)
	}).Methods(http.MethodGet)

	api.HandleFunc("/orders/{id}/cancel", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}).Methods(http.MethodPatch)

	api.HandleFunc("/orders/{id}", func(w http.ResponseWriter, r *http.Request) {
		if mux.Vars(r)["id"] != "o1" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}).Methods(http.MethodDelete)

	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv
}

func TestClient_CookieSession(t *testing.T) {
	srv := newBackend(t)
	httpClient, err := NewHTTPClient(0)
	require.NoError(t, err)
	client := NewClient(srv.URL+APIPrefix, httpClient)
	ctx := context.Background()

	_, err = client.Tables(ctx, "h1")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	session, err := client.StaffLogin(ctx, LoginRequest{HotelKey: "h1", LoginID: "staff01", Password: "secret1", Role: domain.RoleStaff})
	require.NoError(t, err)
	assert.Equal(t, "s1", session.UserID)

	tables, err := client.Tables(ctx, "h1")
	require.NoError(t, err)
	require.Len(t, tables, 1)
	assert.Equal(t, 4, tables[0].Seats)
}

func TestClient_FoodPages(t *testing.T) {
	srv := newBackend(t)
	client := NewClient(srv.URL+APIPrefix, srv.Client())
	pages := client.FoodPages("h1", "breakfast")
	ctx := context.Background()

	for pages.HasMore() {
		_, err := pages.Next(ctx)
		require.NoError(t, err)
	}

	var names []string
	for _, f := range pages.Items() {
		names = append(names, f.Name)
	}
	assert.Equal(t, []string{"Idli", "Vada", "Dosa", "Upma", "Poha"}, names)
	assert.Equal(t, 2, pages.Page())
}

func TestClient_OrderHistoryNormalizes(t *testing.T) {
	srv := newBackend(t)
	client := NewClient(srv.URL+APIPrefix, srv.Client())

	page, err := client.OrderHistory(context.Background(), "h1", 1)
	require.NoError(t, err)
	require.Len(t, page.Items, 2)
	assert.Equal(t, "7", page.Items[0].ID)
	assert.Equal(t, int64(1709287200000), page.Items[0].CreatedAt.UnixMilli())
	assert.Equal(t, "x8", page.Items[1].ID)
	assert.Equal(t, 2, page.Total)
}

func TestClient_OrderMutations(t *testing.T) {
	srv := newBackend(t)
	client := NewClient(srv.URL+APIPrefix, srv.Client())
	ctx := context.Background()

	assert.NoError(t, client.CancelOrder(ctx, "o1"))
	assert.NoError(t, client.DeleteOrder(ctx, "o1"))
	assert.ErrorIs(t, client.DeleteOrder(ctx, "missing"), ErrNotFound)
}
