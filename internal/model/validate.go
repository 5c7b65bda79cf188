package model

import (
	"encoding/json"
	"strings"

	"golang.org/x/text/language"
)

// ValidationError holds a list of field-level validation errors.
type ValidationError struct {
	Errors []FieldError
}

// FieldError represents a single validation failure on a named field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// Error formats the validation error as a semicolon-separated list of field messages.
func (e *ValidationError) Error() string {
	parts := make([]string, len(e.Errors))
	for i, fe := range e.Errors {
		parts[i] = fe.Field + ": " + fe.Message
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// HasErrors reports whether the validation error contains any field errors.
func (e *ValidationError) HasErrors() bool {
	return len(e.Errors) > 0
}

func (e *ValidationError) add(field, msg string) {
	e.Errors = append(e.Errors, FieldError{Field: field, Message: msg})
}

// NormalizeFilename returns the canonical suffix-less collection filename.
// A single trailing ".json" is removed; surrounding whitespace is trimmed.
func NormalizeFilename(name string) string {
	name = strings.TrimSpace(name)
	return strings.TrimSuffix(name, ".json")
}

// ValidLanguage reports whether lang is a BCP 47 tag usable as a key
// segment. The spelling is not canonicalized: "ar-ae" and "ar-AE" address
// different source directories, so the path segment is the key.
func ValidLanguage(lang string) bool {
	if !ValidKeySegment(lang) {
		return false
	}
	_, err := language.Parse(lang)
	return err == nil
}

// ValidKeySegment reports whether s can be one segment of a source path and
// of a cache key: no slashes, no ':' separators, no traversal.
func ValidKeySegment(s string) bool {
	return validName(s) && !strings.ContainsAny(s, "/:")
}

// validName rejects empty names and names that could escape the source root.
func validName(s string) bool {
	if s == "" || s == "." || s == ".." {
		return false
	}
	for _, seg := range strings.Split(s, "/") {
		if seg == "" || seg == "." || seg == ".." {
			return false
		}
	}
	return !strings.Contains(s, `\`)
}

// ValidateCollection checks a CollectionRecord before it is written and
// strips a ".json" suffix from its filename. The language is stored as given.
func ValidateCollection(c *CollectionRecord) error {
	var ve ValidationError

	c.Language = strings.TrimSpace(c.Language)
	if !ValidLanguage(c.Language) {
		ve.add("language", "must be a valid language tag")
	}

	if !c.Type.IsValid() {
		ve.add("type", "must be config or data")
	}

	c.Filename = NormalizeFilename(c.Filename)
	if !ValidKeySegment(c.Filename) {
		ve.add("filename", "must be a plain file name without ':'")
	}

	if len(c.Content) == 0 {
		ve.add("content", "is required")
	} else if !json.Valid(c.Content) {
		ve.add("content", "must be valid JSON")
	}

	if ve.HasErrors() {
		return &ve
	}
	return nil
}

// ValidateFlatFile checks a FlatFileRecord before it is written.
func ValidateFlatFile(f *FlatFileRecord) error {
	var ve ValidationError

	if !f.Table.IsFlat() {
		ve.add("table", "must be a flat file table")
	}
	f.Filename = strings.TrimSpace(f.Filename)
	if !validName(f.Filename) {
		ve.add("filename", "must be a relative file name")
	}
	if f.FileType == "json" {
		if len(f.Content) == 0 || !json.Valid(f.Content) {
			ve.add("content", "must be valid JSON for json files")
		}
	} else if len(f.Content) > 0 {
		ve.add("content", "only json files carry JSON content")
	}

	if ve.HasErrors() {
		return &ve
	}
	return nil
}

// ValidPath reports whether a relative, slash-separated path stays inside
// its root.
func ValidPath(p string) bool {
	return validName(p)
}
