package socket

import "encoding/json"

// Events pushed by the server.
const (
	EventInitialOrders           = "initialOrders"
	EventNewOrder                = "newOrder"
	EventConfirmOrders           = "confirmOrders"
	EventOrderDelivered          = "orderDelivered"
	EventInitialNotifications    = "initialNotifications"
	EventNewNotification         = "newNotification"
	EventMarkReadNotifications   = "markReadNotifications"
	EventMarkReadNewNotification = "markReadNewNotification"
)

// Events emitted by clients to join a hotel-scoped channel.
const (
	EventJoinHotelOrders          = "joinHotelOrdersChannel"
	EventJoinHotelConfirmedOrders = "joinHotelConfirmedOrdersChannel"
	EventJoinHotelNotifications   = "joinHotelNotificationChannel"
)

// ClientHeader carries the client id on every handshake and poll request.
const ClientHeader = "X-DineQR-Client"

// Envelope is the single frame shape used in both directions.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

func NewEnvelope(event string, data any) (Envelope, error) {
	if raw, ok := data.(json.RawMessage); ok {
		return Envelope{Event: event, Data: raw}, nil
	}
	payload, err := json.Marshal(data)
	if err != nil {
		return Envelope{}, err
	}
	return Envelope{Event: event, Data: payload}, nil
}
