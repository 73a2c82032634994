package room

import (
	"encoding/base64"
	"fmt"

	qrcode "github.com/skip2/go-qrcode"
)

// qrDataURL renders the join URL as a PNG data URL clients can drop
// straight into an img tag.
func qrDataURL(joinURL string) (string, error) {
	png, err := qrcode.Encode(joinURL, qrcode.Medium, 256)
	if err != nil {
		return "", fmt.Errorf("failed to encode qr code: %w", err)
	}
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(png), nil
}
