// Package travel holds the trip catalog the chat persona talks about.
package travel

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

type Trip struct {
	ID          string  `json:"id"`
	Destination string  `json:"destination"`
	Description string  `json:"description"`
	Price       float64 `json:"price"`
	Departure   string  `json:"departure"`
	Return      string  `json:"return"`
	Seats       int     `json:"seats"`
}

// Provider returns the full catalog from some source.
type Provider interface {
	List(ctx context.Context) ([]Trip, error)
	// Source describes where the trips come from, for logs and admin replies.
	Source() string
}

// Field aliases accepted in catalog documents, checked in order.
var fieldAliases = map[string][]string{
	"id":          {"id", "codigo", "code"},
	"destination": {"destination", "destino", "ciudad", "city"},
	"description": {"description", "descripcion", "descripción", "detalle"},
	"price":       {"price", "precio", "costo", "cost"},
	"departure":   {"departure", "salida", "fecha_salida", "departure_date"},
	"return":      {"return", "regreso", "fecha_regreso", "return_date"},
	"seats":       {"seats", "plazas", "cupos", "asientos", "available_seats"},
}

// Decode parses a catalog document: either a JSON array of trips or an
// object with an "items" array.
func Decode(data []byte) ([]Trip, error) {
	trimmed := strings.TrimSpace(string(data))
	var items []map[string]any
	switch {
	case strings.HasPrefix(trimmed, "["):
		if err := json.Unmarshal([]byte(trimmed), &items); err != nil {
			return nil, fmt.Errorf("failed to decode trip array: %w", err)
		}
	case strings.HasPrefix(trimmed, "{"):
		var doc struct {
			Items []map[string]any `json:"items"`
		}
		if err := json.Unmarshal([]byte(trimmed), &doc); err != nil {
			return nil, fmt.Errorf("failed to decode trip document: %w", err)
		}
		items = doc.Items
	default:
		return nil, fmt.Errorf("catalog must be a JSON array or an object with items")
	}
	return Normalize(items), nil
}

// Normalize maps loosely keyed records onto Trip. Records without a
// destination are dropped; missing ids are numbered by position.
func Normalize(items []map[string]any) []Trip {
	trips := make([]Trip, 0, len(items))
	for i, item := range items {
		t := Trip{
			ID:          asString(lookup(item, "id")),
			Destination: asString(lookup(item, "destination")),
			Description: asString(lookup(item, "description")),
			Price:       asFloat(lookup(item, "price")),
			Departure:   asString(lookup(item, "departure")),
			Return:      asString(lookup(item, "return")),
			Seats:       int(asFloat(lookup(item, "seats"))),
		}
		if t.Destination == "" {
			continue
		}
		if t.ID == "" {
			t.ID = strconv.Itoa(i + 1)
		}
		trips = append(trips, t)
	}
	return trips
}

func lookup(item map[string]any, field string) any {
	for _, key := range fieldAliases[field] {
		if v, ok := item[key]; ok && v != nil {
			return v
		}
	}
	return nil
}

func asString(v any) string {
	switch s := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(s)
	case float64:
		return strconv.FormatFloat(s, 'f', -1, 64)
	default:
		return fmt.Sprint(s)
	}
}

func asFloat(v any) float64 {
	switch n := v.(type) {
	case float64:
		return n
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(strings.TrimPrefix(n, "$")), 64)
		if err != nil {
			return 0
		}
		return f
	default:
		return 0
	}
}
