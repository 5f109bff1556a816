package webapi

import (
	qrcode "github.com/skip2/go-qrcode"
)

// GenerateQRCodePNG renders content (an explorer link) as a PNG QR code.
func GenerateQRCodePNG(content string, size int) ([]byte, error) {
	pngBytes, err := qrcode.Encode(content, qrcode.Medium, size)
	if err != nil {
		return []byte{}, err
	}
	return pngBytes, nil
}
