package highlight

import (
	"regexp"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"
)

// FallbackColor is used for any token that does not resolve
const FallbackColor = "#fef08a"

// DefaultColorCacheSize caps the resolved-color cache
const DefaultColorCacheSize = 256

// NamedColors is the built-in palette
var NamedColors = map[string]string{
	"yellow": FallbackColor,
	"green":  "#bbf7d0",
	"blue":   "#bfdbfe",
	"pink":   "#fbcfe8",
	"orange": "#fed7aa",
	"purple": "#e9d5ff",
	"teal":   "#99f6e4",
	"lime":   "#d9f99d",
	"rose":   "#fecdd3",
	"red":    "#fecaca",
	"cyan":   "#a5f3fc",
	"amber":  "#fde68a",
	"mint":   "#a7f3d0",
}

var hexColorPattern = regexp.MustCompile(`^#(?:[0-9a-fA-F]{3,4}|[0-9a-fA-F]{6}|[0-9a-fA-F]{8})$`)

// Resolver turns color tokens into display colors. The palette is fixed at
// construction, so resolved tokens are cached.
type Resolver struct {
	palette map[string]string
	cache   *lru.Cache[string, string]
}

// NewResolver builds a resolver from the named palette plus overrides
func NewResolver(overrides map[string]string, cacheSize int) (*Resolver, error) {
	if cacheSize <= 0 {
		cacheSize = DefaultColorCacheSize
	}
	cache, err := lru.New[string, string](cacheSize)
	if err != nil {
		return nil, err
	}

	palette := make(map[string]string, len(NamedColors)+len(overrides))
	for name, hex := range NamedColors {
		palette[name] = hex
	}
	for name, hex := range overrides {
		if hexColorPattern.MatchString(hex) {
			palette[strings.ToLower(strings.TrimSpace(name))] = hex
		}
	}
	return &Resolver{palette: palette, cache: cache}, nil
}

// Resolve returns the display color for a token: hex literals pass through,
// names come from the palette, anything else is yellow.
func (r *Resolver) Resolve(token string) string {
	if c, ok := r.cache.Get(token); ok {
		return c
	}
	c := r.lookup(token)
	r.cache.Add(token, c)
	return c
}

func (r *Resolver) lookup(token string) string {
	t := strings.TrimSpace(token)
	if hexColorPattern.MatchString(t) {
		return t
	}
	if c, ok := r.palette[strings.ToLower(t)]; ok {
		return c
	}
	return FallbackColor
}

// Cached returns the number of resolved tokens held
func (r *Resolver) Cached() int {
	return r.cache.Len()
}
