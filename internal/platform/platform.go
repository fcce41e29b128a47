// Package platform enumerates the checkout platforms whose CSV exports the
// console knows how to ingest. The set is closed: handlers parse the incoming
// identifier through Parse and every switch over Platform covers all cases,
// so an unsupported platform fails at the boundary instead of surfacing as a
// nil mapping mid-import.
package platform

import (
	"fmt"
	"strings"
)

type Platform string

const (
	Hubla   Platform = "hubla"
	Hotmart Platform = "hotmart"
	Eduzz   Platform = "eduzz"
	Kiwify  Platform = "kiwify"
	Woo     Platform = "woocommerce"
	// Custom marks an import driven by a user-supplied column mapping
	// instead of a fixed table.
	Custom Platform = "custom"
)

// All lists the fixed platforms, in the order they appear in the UI.
// Custom is excluded: it has no fixed mapping or paid sentinel.
func All() []Platform {
	return []Platform{Hubla, Hotmart, Eduzz, Kiwify, Woo}
}

func Parse(s string) (Platform, error) {
	switch Platform(strings.ToLower(strings.TrimSpace(s))) {
	case Hubla:
		return Hubla, nil
	case Hotmart:
		return Hotmart, nil
	case Eduzz:
		return Eduzz, nil
	case Kiwify:
		return Kiwify, nil
	case Woo, "woo":
		return Woo, nil
	case Custom:
		return Custom, nil
	}
	return "", fmt.Errorf("plataforma desconhecida: %q", s)
}

func (p Platform) Valid() bool {
	switch p {
	case Hubla, Hotmart, Eduzz, Kiwify, Woo, Custom:
		return true
	}
	return false
}

// DisplayName is the label used in CRM source fields ("CSV Hotmart").
func (p Platform) DisplayName() string {
	switch p {
	case Hubla:
		return "Hubla"
	case Hotmart:
		return "Hotmart"
	case Eduzz:
		return "Eduzz"
	case Kiwify:
		return "Kiwify"
	case Woo:
		return "WooCommerce"
	case Custom:
		return "Personalizado"
	}
	return string(p)
}

// PaidSentinel is the literal the platform writes in the status column for a
// settled sale. Matching is exact equality, never substring. Custom imports
// carry the sentinel inside the user mapping instead.
func (p Platform) PaidSentinel() string {
	switch p {
	case Hubla:
		return "Paga"
	case Hotmart:
		return "Aprovado"
	case Eduzz:
		return "Paga"
	case Kiwify:
		return "paid"
	case Woo:
		return "wc-completed"
	}
	return ""
}
