package badge

import (
	"fmt"

	"github.com/skip2/go-qrcode"
)

const defaultSize = 256

// Generator renders badge QR codes. The payload is the subject's qr_code_hash
// token, which is what the scanner posts back to /api/scan/preview.
type Generator struct {
	size int
}

func NewGenerator() *Generator {
	return &Generator{size: defaultSize}
}

// GeneratePNG encodes the badge token as a PNG QR image.
func (g *Generator) GeneratePNG(qrHash string) ([]byte, error) {
	if qrHash == "" {
		return nil, fmt.Errorf("cannot render a badge without a QR hash")
	}
	png, err := qrcode.Encode(qrHash, qrcode.Medium, g.size)
	if err != nil {
		return nil, fmt.Errorf("failed to encode QR badge: %w", err)
	}
	return png, nil
}
