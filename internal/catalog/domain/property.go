// Package domain holds the property catalog types.
package domain

import (
	"errors"
	"fmt"
	"strings"
)

// ErrPropertyNotFound is returned when the catalog has no property with the given id.
var ErrPropertyNotFound = errors.New("property not found")

// Property is one catalog listing.
type Property struct {
	ID           int      `json:"id"`
	Title        string   `json:"title"`
	Type         string   `json:"type,omitempty"`
	Transaction  string   `json:"transaction,omitempty"`
	Price        float64  `json:"price,omitempty"`
	Neighborhood string   `json:"neighborhood,omitempty"`
	City         string   `json:"city,omitempty"`
	Bedrooms     int      `json:"bedrooms,omitempty"`
	Bathrooms    int      `json:"bathrooms,omitempty"`
	Area         float64  `json:"area,omitempty"`
	Description  string   `json:"description,omitempty"`
	Images       []string `json:"images,omitempty"`
	Active       bool     `json:"active"`
}

// Summary renders a one-line description used in generation prompts.
func (p Property) Summary() string {
	var b strings.Builder
	fmt.Fprintf(&b, "#%d %s", p.ID, p.Title)
	if p.Type != "" {
		fmt.Fprintf(&b, " | %s", p.Type)
	}
	if p.Transaction != "" {
		fmt.Fprintf(&b, " | %s", p.Transaction)
	}
	if p.Price > 0 {
		fmt.Fprintf(&b, " | R$ %.2f", p.Price)
	}
	if loc := p.Location(); loc != "" {
		fmt.Fprintf(&b, " | %s", loc)
	}
	if p.Bedrooms > 0 {
		fmt.Fprintf(&b, " | %d quartos", p.Bedrooms)
	}
	if p.Area > 0 {
		fmt.Fprintf(&b, " | %.0fm²", p.Area)
	}
	return b.String()
}

// Location joins neighborhood and city.
func (p Property) Location() string {
	switch {
	case p.Neighborhood != "" && p.City != "":
		return p.Neighborhood + ", " + p.City
	case p.Neighborhood != "":
		return p.Neighborhood
	default:
		return p.City
	}
}
