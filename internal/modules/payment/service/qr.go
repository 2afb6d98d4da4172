package service

import (
	"encoding/base64"
	"fmt"

	"github.com/skip2/go-qrcode"
)

const qrImageSize = 256

// EncodeQRDataURL renders content as a PNG QR code embedded in a data URL.
func EncodeQRDataURL(content string, size int) (string, error) {
	if content == "" {
		return "", fmt.Errorf("qr content is empty")
	}
	png, err := qrcode.Encode(content, qrcode.Medium, size)
	if err != nil {
		return "", fmt.Errorf("failed to encode qr code: %w", err)
	}
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(png), nil
}
