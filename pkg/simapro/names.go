// pkg/simapro/names.go
package simapro

import (
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"
)

// SystemModelSuffix closes every process name SimaPro exports for ecoinvent
const SystemModelSuffix = "Cut-off, U"

// genericNames are activity names SimaPro abbreviates; they are expanded
// with the reference product when parsed.
var genericNames = map[string]bool{
	"production":             true,
	"production mix":         true,
	"processing":             true,
	"market for":             true,
	"market group for":       true,
	"production, at grid":    true,
	"at market":              true,
	"generic production":     true,
	"market":                 true,
	"processing, mass based": true,
	"transport":              true,
}

// ParseProcessName splits a SimaPro process name such as
// "Electricity, low voltage {CH}| market for | Cut-off, U" into the
// activity name, reference product and location. Names without a location
// are global.
func ParseProcessName(txt string) (name, product, location string) {
	parts := strings.Split(txt, "|")
	product = parts[0]
	if len(parts) > 1 {
		name = parts[1]
	} else {
		name = product
	}

	location = "GLO"
	if open := strings.Index(product, "{"); open >= 0 {
		rest := product[open+1:]
		product = product[:open]
		if end := strings.Index(rest, "}"); end >= 0 {
			location = rest[:end]
			if tail := strings.TrimSpace(rest[end+1:]); tail != "" {
				product = strings.ReplaceAll(product+" "+tail, "  ", " ")
			}
		} else {
			location = rest
		}
	}
	location = strings.TrimSpace(strings.ReplaceAll(location, "}", ""))

	name = strings.ToLower(strings.TrimSpace(name))
	name = strings.TrimSpace(strings.ReplaceAll(name, strings.ToLower(SystemModelSuffix), ""))
	if name == "" {
		name = product
	}

	product = strings.TrimSpace(product)
	product = strings.TrimRight(product, ",.")
	name = strings.TrimSpace(name)

	if genericNames[name] {
		switch name {
		case "market for", "market group for":
			name = name + " " + product
		case "market":
			name = "market for " + product
		default:
			name = fmt.Sprintf("%s (%s)", product, name)
		}
	}

	return name, product, location
}

// FormatProcessName builds the SimaPro process name of an activity. It is
// the inverse of ParseProcessName up to the case of the reference product.
func FormatProcessName(name, product, location string) string {
	if location == "" {
		location = "GLO"
	}
	return fmt.Sprintf("%s {%s}| %s | %s", capitalize(product), location, shortName(name, product), SystemModelSuffix)
}

// shortName undoes the expansion ParseProcessName applies to generic names
func shortName(name, product string) string {
	lower := strings.ToLower(name)
	lowerProduct := strings.ToLower(product)
	for _, prefix := range []string{"market group for", "market for"} {
		if lower == prefix+" "+lowerProduct {
			return prefix
		}
	}
	if strings.HasPrefix(lower, lowerProduct+" (") && strings.HasSuffix(lower, ")") {
		inner := lower[len(lowerProduct)+2 : len(lower)-1]
		if genericNames[inner] && inner != "market" {
			return inner
		}
	}
	return name
}

func capitalize(s string) string {
	r, size := utf8.DecodeRuneInString(s)
	if r == utf8.RuneError {
		return s
	}
	return string(unicode.ToUpper(r)) + s[size:]
}
