package order

import (
	"bytes"
	"encoding/json"
	"errors"
	"math"
	"net/http"
	"regexp"
	"strconv"
)

// ErrNoOrderID means the backend accepted an order without identifying it.
var ErrNoOrderID = errors.New("order was submitted but no order ID was returned from the server")

var locationID = regexp.MustCompile(`/(\d+)$`)

// ExtractOrderID finds the id of a created order, trying in turn the body's
// id/Id, order.id/order.Id, data.id/data.Id, and finally a trailing number
// in the Location header. An empty or non-object body counts as {}.
func ExtractOrderID(body []byte, header http.Header) (string, error) {
	doc := decodeObject(body)

	if id := idOf(doc); id != "" {
		return id, nil
	}
	for _, key := range []string{"order", "data"} {
		if nested, ok := doc[key].(map[string]interface{}); ok {
			if id := idOf(nested); id != "" {
				return id, nil
			}
		}
	}

	if header != nil {
		if m := locationID.FindStringSubmatch(header.Get("Location")); m != nil {
			return m[1], nil
		}
	}
	return "", ErrNoOrderID
}

func decodeObject(body []byte) map[string]interface{} {
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	var doc map[string]interface{}
	if err := dec.Decode(&doc); err != nil || doc == nil {
		return map[string]interface{}{}
	}
	return doc
}

// idOf returns the first usable id/Id. Zero and empty values do not count.
func idOf(obj map[string]interface{}) string {
	for _, key := range []string{"id", "Id"} {
		switch v := obj[key].(type) {
		case string:
			if v != "" {
				return v
			}
		case json.Number:
			if f, err := v.Float64(); err == nil && f != 0 {
				return numberString(v)
			}
		}
	}
	return ""
}

// numberString renders a numeric id in plain decimal, so 1e3 and 1000.0
// both read 1000. Values beyond float64's exact integer range keep their
// original digits.
func numberString(n json.Number) string {
	if i, err := n.Int64(); err == nil {
		return strconv.FormatInt(i, 10)
	}
	f, err := n.Float64()
	if err == nil && f == math.Trunc(f) && math.Abs(f) <= 1<<53 {
		return strconv.FormatFloat(f, 'f', -1, 64)
	}
	return n.String()
}
