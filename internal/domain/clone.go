package domain

import "slices"

// Clone methods return values that share no memory with the receiver. Nil
// slices stay nil.

func (h HeroSection) Clone() HeroSection {
	h.Roles = slices.Clone(h.Roles)
	return h
}

func (a AboutSection) Clone() AboutSection {
	a.Highlights = slices.Clone(a.Highlights)
	return a
}

func (p Project) Clone() Project {
	p.Tags = slices.Clone(p.Tags)
	return p
}

func (s Skill) Clone() Skill { return s }

func (b BlogPost) Clone() BlogPost {
	b.Tags = slices.Clone(b.Tags)
	if b.PublishedAt != nil {
		at := *b.PublishedAt
		b.PublishedAt = &at
	}
	return b
}

func (t Testimonial) Clone() Testimonial { return t }

func (e ResumeEntry) Clone() ResumeEntry {
	e.Highlights = slices.Clone(e.Highlights)
	return e
}

func (r ResumeDocument) Clone() ResumeDocument {
	r.Experience = cloneEntries(r.Experience)
	r.Education = cloneEntries(r.Education)
	r.Certifications = slices.Clone(r.Certifications)
	return r
}

func cloneEntries(entries []ResumeEntry) []ResumeEntry {
	if entries == nil {
		return nil
	}
	out := make([]ResumeEntry, len(entries))
	for i, e := range entries {
		out[i] = e.Clone()
	}
	return out
}

func (s Settings) Clone() Settings {
	s.Socials = slices.Clone(s.Socials)
	return s
}

// CloneItems deep-copies a collection snapshot.
func CloneItems[T Item[T]](items []T) []T {
	if items == nil {
		return nil
	}
	out := make([]T, len(items))
	for i, item := range items {
		out[i] = item.Clone()
	}
	return out
}
