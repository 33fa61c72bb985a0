// Package domain holds the portfolio content types mirrored by the entity
// stores, and the names of the content domains the remote service exposes.
package domain

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// Domain names one content area served by the remote content service.
type Domain string

const (
	Hero         Domain = "hero"
	About        Domain = "about"
	Projects     Domain = "projects"
	Skills       Domain = "skills"
	Blog         Domain = "blog"
	Resume       Domain = "resume"
	Testimonials Domain = "testimonials"
	SiteSettings Domain = "site-settings"
)

var collections = map[Domain]bool{
	Projects:     true,
	Skills:       true,
	Blog:         true,
	Testimonials: true,
}

// All returns every domain in bootstrap order.
func All() []Domain {
	return []Domain{Hero, About, Projects, Skills, Blog, Resume, Testimonials, SiteSettings}
}

func (d Domain) String() string { return string(d) }

// IsValid reports whether d is a known domain.
func (d Domain) IsValid() bool {
	for _, known := range All() {
		if d == known {
			return true
		}
	}
	return false
}

// IsCollection reports whether d holds a list of identified items rather
// than a single document.
func (d Domain) IsCollection() bool {
	return collections[d]
}

// Parse converts a user-supplied name into a Domain.
func Parse(s string) (Domain, error) {
	d := Domain(strings.ToLower(strings.TrimSpace(s)))
	if d == "settings" {
		d = SiteSettings
	}
	if !d.IsValid() {
		names := make([]string, 0, len(All()))
		for _, known := range All() {
			names = append(names, string(known))
		}
		return "", fmt.Errorf("unknown domain %q (valid: %s)", s, strings.Join(names, ", "))
	}
	return d, nil
}

// EmptyDocument is the representation of a domain that has no content yet.
func EmptyDocument(d Domain) json.RawMessage {
	if d.IsCollection() {
		return json.RawMessage("[]")
	}
	return json.RawMessage("{}")
}

// Validator is implemented by every content type.
type Validator interface {
	Validate() error
}

// Cloner is implemented by every content type. Clone returns a deep copy.
type Cloner[T any] interface {
	Clone() T
}

// Item is a member of a collection domain. WithID returns a copy carrying id.
type Item[T any] interface {
	Validator
	Cloner[T]
	ItemID() string
	WithID(id string) T
}

// FieldErrors maps a JSON field name to a human-readable problem. It is the
// structured detail carried by validation failures.
type FieldErrors map[string]string

func (f FieldErrors) Error() string {
	keys := make([]string, 0, len(f))
	for k := range f {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+f[k])
	}
	return "invalid fields: " + strings.Join(parts, "; ")
}

// orNil returns nil for an empty set so callers can `return errs.orNil()`.
func (f FieldErrors) orNil() error {
	if len(f) == 0 {
		return nil
	}
	return f
}

var itemTypes = map[Domain]func() Validator{
	Projects:     func() Validator { return &Project{} },
	Skills:       func() Validator { return &Skill{} },
	Blog:         func() Validator { return &BlogPost{} },
	Testimonials: func() Validator { return &Testimonial{} },
}

var documentTypes = map[Domain]func() Validator{
	Hero:         func() Validator { return &HeroSection{} },
	About:        func() Validator { return &AboutSection{} },
	Resume:       func() Validator { return &ResumeDocument{} },
	SiteSettings: func() Validator { return &Settings{} },
}

// ValidateItem decodes raw as one item of the collection domain d and
// validates it.
func ValidateItem(d Domain, raw []byte) error {
	newItem, ok := itemTypes[d]
	if !ok {
		return fmt.Errorf("domain %q is not a collection", d)
	}
	v := newItem()
	if err := json.Unmarshal(raw, v); err != nil {
		return FieldErrors{"body": "malformed JSON: " + err.Error()}
	}
	return v.Validate()
}

// ValidateDocument decodes raw as the document of domain d and validates it.
func ValidateDocument(d Domain, raw []byte) error {
	newDoc, ok := documentTypes[d]
	if !ok {
		return fmt.Errorf("domain %q is not a document", d)
	}
	v := newDoc()
	if err := json.Unmarshal(raw, v); err != nil {
		return FieldErrors{"body": "malformed JSON: " + err.Error()}
	}
	return v.Validate()
}
