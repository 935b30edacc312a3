package keys

import (
	"fmt"
	"strconv"
	"strings"
)

const (
	orderWidth  = 3
	widthMarker = "~"
)

// OrderKey encodes a sibling position so that byte order equals numeric order.
// Positions up to 999 are zero padded to three digits ("001"). Wider numbers get
// one marker per extra digit ("~1000", "~~10000"); the marker sorts after every
// digit, so wider numbers always follow narrower ones.
func OrderKey(order int) string {
	if order < 0 {
		order = 0
	}
	digits := strconv.Itoa(order)
	if len(digits) <= orderWidth {
		return fmt.Sprintf("%0*d", orderWidth, order)
	}
	return strings.Repeat(widthMarker, len(digits)-orderWidth) + digits
}

func ParseOrderKey(key string) (int, error) {
	n, err := strconv.Atoi(strings.TrimLeft(key, widthMarker))
	if err != nil {
		return 0, fmt.Errorf("parse order key %q: %w", key, err)
	}
	return n, nil
}

// SectionOrder extracts the position from a section sort key.
func SectionOrder(sk string) (int, error) {
	return ParseOrderKey(strings.TrimPrefix(sk, SectionPrefix))
}
