package scraper

import (
	"fmt"
	"strconv"
	"strings"
)

// JSON-LD helpers. Dealer platforms emit the same key as a string on
// one page and a number or nested object on the next, so everything
// funnels through loosely-typed accessors.

func ldString(m map[string]any, key string) string {
	switch v := m[key].(type) {
	case string:
		return strings.TrimSpace(v)
	case float64:
		if v == float64(int64(v)) {
			return strconv.FormatInt(int64(v), 10)
		}
		return strconv.FormatFloat(v, 'f', -1, 64)
	case map[string]any:
		// {"@type":"Brand","name":"Ford"}
		if name, ok := v["name"].(string); ok {
			return strings.TrimSpace(name)
		}
	}
	return ""
}

func ldInt(m map[string]any, key string) int {
	s := ldString(m, key)
	if s == "" {
		return 0
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0
	}
	return n
}

// ldName returns the first non-empty value among keys.
func ldName(m map[string]any, keys ...string) string {
	for _, key := range keys {
		if s := ldString(m, key); s != "" {
			return s
		}
	}
	return ""
}

// ldOfferPrice digs the asking price out of offers, which may be a
// single object or an array.
func ldOfferPrice(m map[string]any) string {
	offers := m["offers"]
	switch v := offers.(type) {
	case map[string]any:
		return ldString(v, "price")
	case []any:
		if len(v) > 0 {
			if offer, ok := v[0].(map[string]any); ok {
				return ldString(offer, "price")
			}
		}
	}
	return ""
}

// ldMileage handles mileageFromOdometer as a plain value or as a
// QuantitativeValue object.
func ldMileage(m map[string]any) string {
	switch v := m["mileageFromOdometer"].(type) {
	case string:
		return strings.TrimSpace(v)
	case float64:
		return fmt.Sprintf("%.0f", v)
	case map[string]any:
		return ldString(v, "value")
	}
	return ""
}
