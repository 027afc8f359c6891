package service

import (
	"fmt"
	"net/url"

	"github.com/gosimple/slug"
	"github.com/skip2/go-qrcode"
)

type DefaultQRGenerator struct {
	BaseURL string
}

// Generate encodes the guest menu link of one table.
func (g DefaultQRGenerator) Generate(hotelKey, tableNumber string) ([]byte, error) {
	qrData := fmt.Sprintf("%s/menu?hotelKey=%s&table=%s", g.BaseURL, url.QueryEscape(hotelKey), url.QueryEscape(tableNumber))
	return qrcode.Encode(qrData, qrcode.Medium, 256)
}

func QRFileName(hotelKey, tableNumber string) string {
	return slug.Make(hotelKey+" table "+tableNumber) + ".png"
}
