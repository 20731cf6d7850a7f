package parser

import (
	"encoding/json"
	"regexp"
	"strings"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
)

// FallbackLanguage is reported when no signature matches
const FallbackLanguage = "javascript"

// DefaultLanguageCacheSize caps the shared detection cache
const DefaultLanguageCacheSize = 500

// languageSignature is one row of the ordered detection table
type languageSignature struct {
	name  string
	match func(code string) bool
}

// LanguageDetector guesses the language of untagged code blocks. The guess
// is approximate by contract; results are memoized in a bounded LRU.
type LanguageDetector struct {
	signatures []languageSignature
	cache      *lru.Cache[string, string]
}

var (
	pythonDefPattern    = regexp.MustCompile(`(?m)^\s*def \w+\(.*\)\s*(->\s*[\w\[\], .]+)?:\s*$`)
	pythonImportPattern = regexp.MustCompile(`(?m)^\s*(from [\w.]+ )?import [\w.]+(\s+as \w+)?\s*$`)
	pythonPrintPattern  = regexp.MustCompile(`(?m)^\s*print\(.*\)\s*$`)
	sqlSelectPattern    = regexp.MustCompile(`(?is)\bSELECT\b.+\bFROM\b`)
	sqlStatementPattern = regexp.MustCompile(`(?im)^\s*(INSERT INTO|CREATE TABLE|UPDATE \w+ SET|DELETE FROM)\b`)
	htmlTagPattern      = regexp.MustCompile(`(?i)<(html|head|body|div|span|p|ul|li|section)[\s>]`)
	goPackagePattern    = regexp.MustCompile(`(?m)^package \w+\s*$`)
	goFuncPattern       = regexp.MustCompile(`(?m)^func (\([^)]*\) )?\w+\(`)
	rustFnPattern       = regexp.MustCompile(`(?m)^\s*(pub )?fn \w+`)
	rubyEndPattern      = regexp.MustCompile(`(?m)^\s*end\s*$`)
	rubyDefPattern      = regexp.MustCompile(`(?m)^\s*(def|class|module) \w+`)
	shellPattern        = regexp.MustCompile(`(?m)^\s*(\$ |sudo |apt(-get)? |npm |npx |pip3? |brew |cd |echo |export |curl |git |docker |make\b|go (run|build|test|get|mod) )`)
	tsPattern           = regexp.MustCompile(`(:\s*(string|number|boolean|void)\b|\binterface \w+\s*\{|\btype \w+\s*=|\bas const\b)`)
	cssPattern          = regexp.MustCompile(`(?s)(^|\n)\s*[.#]?[\w-][\w\s.#:>,-]*\{[^}]*[\w-]+\s*:[^}]*;`)
	yamlKeyPattern      = regexp.MustCompile(`(?m)^\s*[\w-]+:(\s.*)?$`)
)

// defaultSignatures is the ordered table; the first hit wins
var defaultSignatures = []languageSignature{
	{"java", func(code string) bool {
		return strings.Contains(code, "public class") ||
			strings.Contains(code, "public static void main") ||
			strings.Contains(code, "System.out.println")
	}},
	{"python", func(code string) bool {
		return pythonDefPattern.MatchString(code) ||
			(pythonImportPattern.MatchString(code) && !strings.Contains(code, ";")) ||
			pythonPrintPattern.MatchString(code) && !strings.Contains(code, ";")
	}},
	{"cpp", func(code string) bool {
		return strings.Contains(code, "#include <") &&
			(strings.Contains(code, "std::") || strings.Contains(code, "cout") || strings.Contains(code, "class "))
	}},
	{"c", func(code string) bool {
		return strings.Contains(code, "#include <") || strings.Contains(code, "printf(")
	}},
	{"html", func(code string) bool {
		return strings.Contains(strings.ToLower(code), "<!doctype") || htmlTagPattern.MatchString(code)
	}},
	{"sql", func(code string) bool {
		return sqlSelectPattern.MatchString(code) || sqlStatementPattern.MatchString(code)
	}},
	{"go", func(code string) bool {
		return goPackagePattern.MatchString(code) ||
			strings.Contains(code, "fmt.Println") ||
			(goFuncPattern.MatchString(code) && strings.Contains(code, ":="))
	}},
	{"rust", func(code string) bool {
		return strings.Contains(code, "fn main()") ||
			strings.Contains(code, "let mut ") ||
			strings.Contains(code, "println!(") ||
			rustFnPattern.MatchString(code) && strings.Contains(code, "->")
	}},
	{"php", func(code string) bool {
		return strings.Contains(code, "<?php")
	}},
	{"ruby", func(code string) bool {
		return rubyDefPattern.MatchString(code) && rubyEndPattern.MatchString(code) ||
			strings.Contains(code, "puts ")
	}},
	{"bash", func(code string) bool {
		return strings.HasPrefix(code, "#!/bin/") || strings.HasPrefix(code, "#!/usr/bin/env bash") ||
			shellPattern.MatchString(code)
	}},
	{"typescript", func(code string) bool {
		return tsPattern.MatchString(code)
	}},
	{"css", func(code string) bool {
		return cssPattern.MatchString(code)
	}},
	{"json", func(code string) bool {
		trimmed := strings.TrimSpace(code)
		return (strings.HasPrefix(trimmed, "{") || strings.HasPrefix(trimmed, "[")) && json.Valid([]byte(trimmed))
	}},
	{"yaml", func(code string) bool {
		return yamlKeyPattern.MatchString(code) && !strings.ContainsAny(code, ";(){}")
	}},
}

// NewLanguageDetector creates a detector whose cache holds at most size entries
func NewLanguageDetector(size int) (*LanguageDetector, error) {
	if size <= 0 {
		size = DefaultLanguageCacheSize
	}
	cache, err := lru.New[string, string](size)
	if err != nil {
		return nil, err
	}
	return &LanguageDetector{signatures: defaultSignatures, cache: cache}, nil
}

// Detect returns the best guess for code, falling back to javascript
func (d *LanguageDetector) Detect(code string) string {
	if lang, ok := d.cache.Get(code); ok {
		return lang
	}
	lang := d.guess(code)
	d.cache.Add(code, lang)
	return lang
}

func (d *LanguageDetector) guess(code string) string {
	for _, sig := range d.signatures {
		if sig.match(code) {
			return sig.name
		}
	}
	return FallbackLanguage
}

// Len returns the number of cached guesses
func (d *LanguageDetector) Len() int {
	return d.cache.Len()
}

var (
	defaultDetectorMu sync.RWMutex
	defaultDetector   *LanguageDetector
)

func init() {
	d, err := NewLanguageDetector(DefaultLanguageCacheSize)
	if err != nil {
		panic("failed to initialize language detector: " + err.Error())
	}
	defaultDetector = d
}

// SetLanguageCacheSize replaces the shared detector with one of the given capacity
func SetLanguageCacheSize(size int) error {
	d, err := NewLanguageDetector(size)
	if err != nil {
		return err
	}
	defaultDetectorMu.Lock()
	defaultDetector = d
	defaultDetectorMu.Unlock()
	return nil
}

func sharedDetector() *LanguageDetector {
	defaultDetectorMu.RLock()
	defer defaultDetectorMu.RUnlock()
	return defaultDetector
}

// DetectLanguage guesses the language of code using the shared detector
func DetectLanguage(code string) string {
	return sharedDetector().Detect(code)
}

// guessLanguage answers like DetectLanguage but leaves the cache alone
func guessLanguage(code string) string {
	return sharedDetector().guess(code)
}
