package pagination

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Cursor is the canonical, opaque pagination token (pre-encoding) with short field names to
// minimize payload size. It is serialized to minified JSON and encoded with URL-safe base64.
//
// Fields:
//   - v:   version of the cursor schema
//   - did: dataset handle ID
//   - off: row offset into the filtered result
//   - ps:  page size in rows
//   - lat: dataset load time (unix nanoseconds); a reload invalidates the cursor
//   - iat: issued-at timestamp (unix seconds)
//   - st:  optional state filter
//   - sec: optional sector filter
//   - yr:  optional year filter
type Cursor struct {
	V   int    `json:"v"`
	Did string `json:"did"`
	Off int    `json:"off"`
	Ps  int    `json:"ps"`
	Lat int64  `json:"lat"`
	Iat int64  `json:"iat"`
	St  string `json:"st,omitempty"`
	Sec string `json:"sec,omitempty"`
	Yr  []int  `json:"yr,omitempty"`
}

// ErrStale reports a cursor issued against an earlier load of the dataset.
var ErrStale = errors.New("cursor: dataset changed since cursor was issued")

// EncodeCursor serializes and encodes the cursor as URL-safe base64 (without padding).
func EncodeCursor(c Cursor) (string, error) {
	if err := validate(&c); err != nil {
		return "", err
	}
	b, err := json.Marshal(c)
	if err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// DecodeCursor decodes a URL-safe base64 token and parses the JSON cursor.
func DecodeCursor(token string) (*Cursor, error) {
	t := strings.TrimSpace(token)
	if t == "" {
		return nil, errors.New("cursor: empty token")
	}
	data, err := base64.RawURLEncoding.DecodeString(t)
	if err != nil {
		return nil, fmt.Errorf("cursor: invalid base64: %w", err)
	}
	var c Cursor
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("cursor: invalid json: %w", err)
	}
	if err := validate(&c); err != nil {
		return nil, err
	}
	return &c, nil
}

// CheckFresh returns ErrStale when the dataset was reloaded after the cursor
// was issued or the cursor belongs to another dataset.
func (c *Cursor) CheckFresh(datasetID string, loadedAt time.Time) error {
	if c.Did != datasetID || c.Lat != loadedAt.UnixNano() {
		return ErrStale
	}
	return nil
}

// validate performs structural checks and defaulting.
func validate(c *Cursor) error {
	if c.V <= 0 {
		c.V = 1
	}
	if c.Iat == 0 {
		c.Iat = time.Now().Unix()
	}
	if strings.TrimSpace(c.Did) == "" {
		return errors.New("cursor: did (dataset id) required")
	}
	if c.Off < 0 {
		return errors.New("cursor: off must be >= 0")
	}
	if c.Ps <= 0 {
		return errors.New("cursor: ps must be > 0")
	}
	if c.Lat < 0 {
		c.Lat = 0
	}
	return nil
}

// NextOffset computes the next offset after returning n units.
func NextOffset(curr, n int) int {
	if curr < 0 {
		curr = 0
	}
	if n <= 0 {
		return curr
	}
	return curr + n
}
