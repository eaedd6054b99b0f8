// Package encoding serializes snapshots as JSON or CBOR.
package encoding

import (
	"encoding/json"
	"fmt"
	"mime"
	"strings"

	"github.com/fxamacker/cbor/v2"
)

// Format is a wire encoding
type Format string

const (
	FormatJSON Format = "json"
	FormatCBOR Format = "cbor"
)

const (
	ContentTypeJSON = "application/json"
	ContentTypeCBOR = "application/cbor"
)

// ParseFormat accepts "json" or "cbor", case-insensitively
func ParseFormat(s string) (Format, error) {
	switch Format(strings.ToLower(strings.TrimSpace(s))) {
	case FormatJSON, "":
		return FormatJSON, nil
	case FormatCBOR:
		return FormatCBOR, nil
	}
	return "", fmt.Errorf("unknown format %q (want json or cbor)", s)
}

// ContentType returns the MIME type for the format
func (f Format) ContentType() string {
	if f == FormatCBOR {
		return ContentTypeCBOR
	}
	return ContentTypeJSON
}

// Negotiate picks CBOR when the Accept header lists it, JSON otherwise
func Negotiate(accept string) Format {
	for _, part := range strings.Split(accept, ",") {
		mediaType, _, err := mime.ParseMediaType(strings.TrimSpace(part))
		if err == nil && mediaType == ContentTypeCBOR {
			return FormatCBOR
		}
	}
	return FormatJSON
}

// Marshal encodes v in the given format
func Marshal(f Format, v interface{}) ([]byte, error) {
	switch f {
	case FormatCBOR:
		return MarshalCBOR(v)
	default:
		return json.Marshal(v)
	}
}

// Unmarshal decodes data in the given format
func Unmarshal(f Format, data []byte, v interface{}) error {
	switch f {
	case FormatCBOR:
		return UnmarshalCBOR(data, v)
	default:
		return json.Unmarshal(data, v)
	}
}

// MarshalCBOR encodes data to CBOR format
func MarshalCBOR(v interface{}) ([]byte, error) {
	return cbor.Marshal(v)
}

// UnmarshalCBOR decodes CBOR data
func UnmarshalCBOR(data []byte, v interface{}) error {
	return cbor.Unmarshal(data, v)
}
