package dhcp

import (
	"regexp"
	"slices"
	"strings"

	"github.com/rs/zerolog"

	"leasesync/pkg/models"
)

const (
	// ExportCommand dumps the DHCP server configuration one statement per line
	ExportCommand = "/ip dhcp-server export terse"
	// LeasePath is the RouterOS menu holding static leases
	LeasePath = "/ip dhcp-server lease"
)

var (
	scopeLine = regexp.MustCompile(`^/ip dhcp-server add\s+(.*)$`)
	leaseLine = regexp.MustCompile(`^/ip dhcp-server lease add\s+(.*)$`)

	// key="quoted value with \" escapes" or any bare run of non-space
	tokenPattern  = regexp.MustCompile(`[^\s="]+="(?:[^"\\]|\\.)*"|\S+`)
	escapePattern = regexp.MustCompile(`(?s)\\(.)`)
)

// Parser turns RouterOS export text into reservation sets
type Parser struct {
	logger zerolog.Logger
}

// NewParser creates a new export parser
func NewParser(logger zerolog.Logger) *Parser {
	return &Parser{logger: logger}
}

// ParseExport parses the output of ExportCommand. Lines that are neither a
// DHCP server declaration nor a lease are ignored.
func (p *Parser) ParseExport(content string) *models.ReservationSet {
	set := models.NewReservationSet()
	skipped := 0

	for _, line := range strings.Split(content, "\n") {
		line = strings.TrimRight(line, " \t\r")
		if line == "" {
			continue
		}

		if m := scopeLine.FindStringSubmatch(line); m != nil {
			attrs := ParseAttributes(m[1])
			if name, ok := attrs[models.AttrName]; ok && name != "" {
				set.DeclareScope(name)
			}
			continue
		}

		m := leaseLine.FindStringSubmatch(line)
		if m == nil {
			continue
		}

		raw := m[1]
		attrs := ParseAttributes(raw)
		if _, ok := attrs[models.AttrAddress]; !ok {
			skipped++
			continue
		}

		scope := attrs.Get(models.AttrServer, models.AllScope)
		set.Put(scope, models.LeaseRecord{Attributes: attrs, Raw: raw})
	}

	p.logger.Debug().
		Int("scopes", len(set.Scopes)).
		Int("leases", set.LeaseCount()).
		Int("skipped", skipped).
		Msg("Parsed DHCP export")

	return set
}

// ParseAttributes decodes the key=value tokens of one export statement.
// Bare words (flags such as "disabled") and malformed tokens are dropped.
func ParseAttributes(line string) models.Attributes {
	attrs := make(models.Attributes)

	for _, token := range tokenPattern.FindAllString(line, -1) {
		key, value, found := strings.Cut(token, "=")
		if !found || key == "" {
			continue
		}
		attrs[key] = unquote(value)
	}

	return attrs
}

// unquote strips one pair of surrounding quotes and resolves \x to x
func unquote(value string) string {
	if len(value) >= 2 && value[0] == '"' && value[len(value)-1] == '"' {
		value = value[1 : len(value)-1]
	}
	if !strings.Contains(value, `\`) {
		return value
	}
	return escapePattern.ReplaceAllString(value, "$1")
}

// FormatAttributes renders attributes as key="value" tokens in key order
func FormatAttributes(attrs models.Attributes) string {
	keys := make([]string, 0, len(attrs))
	for k := range attrs {
		keys = append(keys, k)
	}
	slices.Sort(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+"="+Quote(attrs[k]))
	}
	return strings.Join(parts, " ")
}

// Quote wraps a value in double quotes, escaping characters RouterOS treats
// specially inside quoted strings
func Quote(value string) string {
	var b strings.Builder
	b.Grow(len(value) + 2)
	b.WriteByte('"')
	for _, r := range value {
		switch r {
		case '"', '\\', '$', '?':
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	b.WriteByte('"')
	return b.String()
}

// NeedsQuoting reports whether a value must be quoted to survive as one token
func NeedsQuoting(value string) bool {
	if value == "" {
		return true
	}
	return strings.ContainsAny(value, " \t\"\\$?;[]{}=")
}
