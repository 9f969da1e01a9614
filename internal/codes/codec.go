// Package codes wraps the optical-code primitives. Encoding renders a payload
// string into a QR PNG; decoding happens outside this process (a camera-side
// decoder posts the recovered text), so only its contract lives here.
package codes

import (
	"errors"
	"fmt"
	"strings"

	qrcode "github.com/skip2/go-qrcode"
)

// Default rendering options applied when the caller leaves fields zero.
const (
	DefaultPixelWidth = 256
	DefaultRecovery   = "medium"
)

// EncodeOptions control how the optical artifact is rendered.
type EncodeOptions struct {
	// TargetPixelWidth is the edge length of the square PNG in pixels.
	TargetPixelWidth int
	// MarginModules controls the quiet zone; zero disables the border.
	MarginModules int
	// RecoveryLevel is one of low, medium, high, highest.
	RecoveryLevel string
}

// EncodePNG renders the payload text into a QR code PNG.
func EncodePNG(text string, opts EncodeOptions) ([]byte, error) {
	if strings.TrimSpace(text) == "" {
		return nil, errors.New("codes: empty payload")
	}

	level, err := recoveryLevel(opts.RecoveryLevel)
	if err != nil {
		return nil, err
	}

	width := opts.TargetPixelWidth
	if width <= 0 {
		width = DefaultPixelWidth
	}

	code, err := qrcode.New(text, level)
	if err != nil {
		return nil, fmt.Errorf("codes: encode: %w", err)
	}
	code.DisableBorder = opts.MarginModules <= 0

	png, err := code.PNG(width)
	if err != nil {
		return nil, fmt.Errorf("codes: render png: %w", err)
	}
	return png, nil
}

func recoveryLevel(name string) (qrcode.RecoveryLevel, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", DefaultRecovery:
		return qrcode.Medium, nil
	case "low":
		return qrcode.Low, nil
	case "high":
		return qrcode.High, nil
	case "highest":
		return qrcode.Highest, nil
	default:
		return 0, fmt.Errorf("codes: unknown recovery level %q", name)
	}
}
