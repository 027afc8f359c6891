package domain

import (
	"encoding/json"
	"time"
)

type OrderType string

const (
	OrderTypeDineIn OrderType = "dine-in"
	OrderTypeParcel OrderType = "parcel"
)

type Role string

const (
	RoleGuest   Role = "guest"
	RoleStaff   Role = "staff"
	RoleManager Role = "manager"
)

type OrderedBy struct {
	Role Role   `json:"role"`
	ID   string `json:"id"`
}

type Portion struct {
	Size     string  `json:"portion"`
	Price    float64 `json:"price"`
	Quantity int     `json:"quantity"`
	Subtotal float64 `json:"subtotal"`
}

type OrderItem struct {
	Name     string    `json:"name"`
	Portions []Portion `json:"portions"`
}

type Order struct {
	ID             string      `json:"_id"`
	HotelKey       string      `json:"hotelKey,omitempty"`
	OrderedBy      OrderedBy   `json:"orderedBy"`
	OrderType      OrderType   `json:"orderType"`
	TableNumber    string      `json:"tableNumber"`
	Items          []OrderItem `json:"items"`
	OrderCancelled bool        `json:"orderCancelled"`
	OrderAccepted  bool        `json:"orderAccepted"`
	OrderDelivered bool        `json:"orderDelivered"`
	PaymentStatus  string      `json:"paymentStatus"`
	CreatedAt      time.Time   `json:"createdAt"`
	UpdatedAt      time.Time   `json:"updatedAt"`
}

// Terminal reports whether the order has left every "active" staff view.
func (o Order) Terminal() bool {
	return o.OrderCancelled || o.OrderDelivered
}

type PortionSelection struct {
	Size     string  `json:"portion" validate:"required"`
	Quantity int     `json:"quantity" validate:"min=1"`
	Price    float64 `json:"price" validate:"gte=0"`
	Subtotal float64 `json:"subtotal"`
}

type CartLineItem struct {
	ID       string             `json:"_id" validate:"required"`
	Name     string             `json:"name" validate:"required"`
	Image    string             `json:"image,omitempty"`
	BlurHash string             `json:"blurHash,omitempty"`
	Portions []PortionSelection `json:"portions" validate:"required,min=1,dive"`
}

type Notification struct {
	ID        string          `json:"_id"`
	Payload   json.RawMessage `json:"payload,omitempty"`
	Read      bool            `json:"read"`
	CreatedAt time.Time       `json:"createdAt"`
}

type Food struct {
	ID       string    `json:"_id"`
	Name     string    `json:"name"`
	Category string    `json:"category"`
	Image    string    `json:"image,omitempty"`
	BlurHash string    `json:"blurHash,omitempty"`
	Portions []Portion `json:"portions"`
}

type MenuItem struct {
	ID        string `json:"_id"`
	Name      string `json:"name"`
	Category  string `json:"category"`
	Available bool   `json:"available"`
}

type Table struct {
	ID          string `json:"_id"`
	TableNumber string `json:"tableNumber"`
	Seats       int    `json:"seats"`
}

// Scope selects the hotel (and, for staff channels, the user) a socket
// channel is bound to.
type Scope struct {
	HotelKey    string `json:"hotelKey"`
	StaffUserID string `json:"staffUserId,omitempty"`
}

// PushEvent is what the backend hands to the relay for fan-out.
type PushEvent struct {
	Event       string          `json:"event" validate:"required"`
	HotelKey    string          `json:"hotelKey" validate:"required"`
	StaffUserID string          `json:"staffUserId,omitempty"`
	Data        json.RawMessage `json:"data"`
	Timestamp   time.Time       `json:"timestamp"`
}
