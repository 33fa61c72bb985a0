package domain

import (
	"net/mail"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"
)

var slugPattern = regexp.MustCompile(`^[a-z0-9]+(?:-[a-z0-9]+)*$`)

// HeroSection is the landing page copy.
type HeroSection struct {
	Greeting    string   `json:"greeting,omitempty" yaml:"greeting,omitempty"`
	Name        string   `json:"name" yaml:"name"`
	Headline    string   `json:"headline" yaml:"headline"`
	Subheadline string   `json:"subheadline,omitempty" yaml:"subheadline,omitempty"`
	Roles       []string `json:"roles,omitempty" yaml:"roles,omitempty"`
	CTALabel    string   `json:"ctaLabel,omitempty" yaml:"ctaLabel,omitempty"`
	CTAHref     string   `json:"ctaHref,omitempty" yaml:"ctaHref,omitempty"`
}

func (h HeroSection) Validate() error {
	errs := FieldErrors{}
	if strings.TrimSpace(h.Name) == "" {
		errs["name"] = "required"
	}
	if strings.TrimSpace(h.Headline) == "" {
		errs["headline"] = "required"
	}
	if h.CTAHref != "" && !validHref(h.CTAHref) {
		errs["ctaHref"] = "must be an absolute URL or a site path"
	}
	if h.CTAHref != "" && h.CTALabel == "" {
		errs["ctaLabel"] = "required when ctaHref is set"
	}
	return errs.orNil()
}

// AboutSection is the bio block.
type AboutSection struct {
	Bio             string   `json:"bio" yaml:"bio"`
	AvatarURL       string   `json:"avatarUrl,omitempty" yaml:"avatarUrl,omitempty"`
	Location        string   `json:"location,omitempty" yaml:"location,omitempty"`
	Highlights      []string `json:"highlights,omitempty" yaml:"highlights,omitempty"`
	YearsExperience int      `json:"yearsExperience,omitempty" yaml:"yearsExperience,omitempty"`
}

func (a AboutSection) Validate() error {
	errs := FieldErrors{}
	if strings.TrimSpace(a.Bio) == "" {
		errs["bio"] = "required"
	}
	if a.AvatarURL != "" && !validHref(a.AvatarURL) {
		errs["avatarUrl"] = "must be an absolute URL or a site path"
	}
	if a.YearsExperience < 0 {
		errs["yearsExperience"] = "must not be negative"
	}
	return errs.orNil()
}

// Project is one portfolio entry.
type Project struct {
	ID          string    `json:"id" yaml:"id"`
	Title       string    `json:"title" yaml:"title"`
	Slug        string    `json:"slug,omitempty" yaml:"slug,omitempty"`
	Summary     string    `json:"summary" yaml:"summary"`
	Description string    `json:"description,omitempty" yaml:"description,omitempty"`
	Tags        []string  `json:"tags,omitempty" yaml:"tags,omitempty"`
	RepoURL     string    `json:"repoUrl,omitempty" yaml:"repoUrl,omitempty"`
	LiveURL     string    `json:"liveUrl,omitempty" yaml:"liveUrl,omitempty"`
	ImageURL    string    `json:"imageUrl,omitempty" yaml:"imageUrl,omitempty"`
	Featured    bool      `json:"featured,omitempty" yaml:"featured,omitempty"`
	CreatedAt   time.Time `json:"createdAt,omitempty" yaml:"createdAt,omitempty"`
	UpdatedAt   time.Time `json:"updatedAt,omitempty" yaml:"updatedAt,omitempty"`
}

func (p Project) ItemID() string { return p.ID }

func (p Project) WithID(id string) Project {
	p.ID = id
	return p
}

func (p Project) Validate() error {
	errs := FieldErrors{}
	if strings.TrimSpace(p.Title) == "" {
		errs["title"] = "required"
	}
	if strings.TrimSpace(p.Summary) == "" {
		errs["summary"] = "required"
	}
	if p.Slug != "" && !slugPattern.MatchString(p.Slug) {
		errs["slug"] = "must be lowercase words separated by hyphens"
	}
	for field, v := range map[string]string{"repoUrl": p.RepoURL, "liveUrl": p.LiveURL, "imageUrl": p.ImageURL} {
		if v != "" && !validHref(v) {
			errs[field] = "must be an absolute URL or a site path"
		}
	}
	return errs.orNil()
}

// SkillLevel is a self-assessed proficiency from 0 to 100.
type SkillLevel int

// Skill is one entry of the skills grid.
type Skill struct {
	ID       string     `json:"id" yaml:"id"`
	Name     string     `json:"name" yaml:"name"`
	Category string     `json:"category,omitempty" yaml:"category,omitempty"`
	Level    SkillLevel `json:"level" yaml:"level"`
	Icon     string     `json:"icon,omitempty" yaml:"icon,omitempty"`
}

func (s Skill) ItemID() string { return s.ID }

func (s Skill) WithID(id string) Skill {
	s.ID = id
	return s
}

func (s Skill) Validate() error {
	errs := FieldErrors{}
	if strings.TrimSpace(s.Name) == "" {
		errs["name"] = "required"
	}
	if s.Level < 0 || s.Level > 100 {
		errs["level"] = "must be between 0 and 100"
	}
	return errs.orNil()
}

// BlogPost is one article. Drafts have Published false and no PublishedAt.
type BlogPost struct {
	ID          string     `json:"id" yaml:"id"`
	Slug        string     `json:"slug" yaml:"slug"`
	Title       string     `json:"title" yaml:"title"`
	Excerpt     string     `json:"excerpt,omitempty" yaml:"excerpt,omitempty"`
	Body        string     `json:"body,omitempty" yaml:"body,omitempty"`
	Tags        []string   `json:"tags,omitempty" yaml:"tags,omitempty"`
	Published   bool       `json:"published" yaml:"published"`
	PublishedAt *time.Time `json:"publishedAt,omitempty" yaml:"publishedAt,omitempty"`
	UpdatedAt   time.Time  `json:"updatedAt,omitempty" yaml:"updatedAt,omitempty"`
}

func (b BlogPost) ItemID() string { return b.ID }

func (b BlogPost) WithID(id string) BlogPost {
	b.ID = id
	return b
}

func (b BlogPost) Validate() error {
	errs := FieldErrors{}
	if strings.TrimSpace(b.Title) == "" {
		errs["title"] = "required"
	}
	if !slugPattern.MatchString(b.Slug) {
		errs["slug"] = "must be lowercase words separated by hyphens"
	}
	if !b.Published && b.PublishedAt != nil {
		errs["publishedAt"] = "must be empty for drafts"
	}
	return errs.orNil()
}

// Testimonial is a quote from a colleague or client.
type Testimonial struct {
	ID        string `json:"id" yaml:"id"`
	Author    string `json:"author" yaml:"author"`
	Role      string `json:"role,omitempty" yaml:"role,omitempty"`
	Company   string `json:"company,omitempty" yaml:"company,omitempty"`
	Quote     string `json:"quote" yaml:"quote"`
	AvatarURL string `json:"avatarUrl,omitempty" yaml:"avatarUrl,omitempty"`
	Rating    int    `json:"rating,omitempty" yaml:"rating,omitempty"`
}

func (t Testimonial) ItemID() string { return t.ID }

func (t Testimonial) WithID(id string) Testimonial {
	t.ID = id
	return t
}

func (t Testimonial) Validate() error {
	errs := FieldErrors{}
	if strings.TrimSpace(t.Author) == "" {
		errs["author"] = "required"
	}
	if strings.TrimSpace(t.Quote) == "" {
		errs["quote"] = "required"
	}
	if t.Rating < 0 || t.Rating > 5 {
		errs["rating"] = "must be between 0 and 5"
	}
	return errs.orNil()
}

// ResumeEntry is one experience or education line.
type ResumeEntry struct {
	Title        string   `json:"title" yaml:"title"`
	Organization string   `json:"organization" yaml:"organization"`
	Location     string   `json:"location,omitempty" yaml:"location,omitempty"`
	Start        string   `json:"start" yaml:"start"`
	End          string   `json:"end,omitempty" yaml:"end,omitempty"` // empty means current
	Highlights   []string `json:"highlights,omitempty" yaml:"highlights,omitempty"`
}

// ResumeDocument is the structured résumé.
type ResumeDocument struct {
	Summary        string        `json:"summary,omitempty" yaml:"summary,omitempty"`
	Experience     []ResumeEntry `json:"experience,omitempty" yaml:"experience,omitempty"`
	Education      []ResumeEntry `json:"education,omitempty" yaml:"education,omitempty"`
	Certifications []string      `json:"certifications,omitempty" yaml:"certifications,omitempty"`
	DownloadURL    string        `json:"downloadUrl,omitempty" yaml:"downloadUrl,omitempty"`
}

func (r ResumeDocument) Validate() error {
	errs := FieldErrors{}
	check := func(section string, entries []ResumeEntry) {
		for i, e := range entries {
			prefix := section + "[" + strconv.Itoa(i) + "]"
			if strings.TrimSpace(e.Title) == "" {
				errs[prefix+".title"] = "required"
			}
			if strings.TrimSpace(e.Organization) == "" {
				errs[prefix+".organization"] = "required"
			}
			if strings.TrimSpace(e.Start) == "" {
				errs[prefix+".start"] = "required"
			}
		}
	}
	check("experience", r.Experience)
	check("education", r.Education)
	if r.DownloadURL != "" && !validHref(r.DownloadURL) {
		errs["downloadUrl"] = "must be an absolute URL or a site path"
	}
	return errs.orNil()
}

// SocialLink is one profile link in the footer.
type SocialLink struct {
	Platform string `json:"platform" yaml:"platform"`
	URL      string `json:"url" yaml:"url"`
}

// Settings is the site-wide configuration record edited from the admin.
type Settings struct {
	SiteTitle       string       `json:"siteTitle" yaml:"siteTitle"`
	Description     string       `json:"description,omitempty" yaml:"description,omitempty"`
	ContactEmail    string       `json:"contactEmail,omitempty" yaml:"contactEmail,omitempty"`
	Socials         []SocialLink `json:"socials,omitempty" yaml:"socials,omitempty"`
	MaintenanceMode bool         `json:"maintenanceMode,omitempty" yaml:"maintenanceMode,omitempty"`
	DefaultTheme    string       `json:"defaultTheme,omitempty" yaml:"defaultTheme,omitempty"`
	DefaultLocale   string       `json:"defaultLocale,omitempty" yaml:"defaultLocale,omitempty"`
	AnalyticsID     string       `json:"analyticsId,omitempty" yaml:"analyticsId,omitempty"`
}

func (s Settings) Validate() error {
	errs := FieldErrors{}
	if strings.TrimSpace(s.SiteTitle) == "" {
		errs["siteTitle"] = "required"
	}
	if s.ContactEmail != "" {
		if _, err := mail.ParseAddress(s.ContactEmail); err != nil {
			errs["contactEmail"] = "must be a valid email address"
		}
	}
	for i, link := range s.Socials {
		if link.Platform == "" {
			errs["socials["+strconv.Itoa(i)+"].platform"] = "required"
		}
		if !validAbsoluteURL(link.URL) {
			errs["socials["+strconv.Itoa(i)+"].url"] = "must be an absolute URL"
		}
	}
	switch s.DefaultTheme {
	case "", "light", "dark", "system":
	default:
		errs["defaultTheme"] = "must be light, dark or system"
	}
	return errs.orNil()
}

func validAbsoluteURL(raw string) bool {
	u, err := url.Parse(raw)
	return err == nil && (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

// validHref accepts absolute http(s) URLs and root-relative site paths.
func validHref(raw string) bool {
	if strings.HasPrefix(raw, "/") && !strings.HasPrefix(raw, "//") {
		return true
	}
	return validAbsoluteURL(raw)
}
