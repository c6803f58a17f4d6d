package sources

import (
	"context"
	"encoding/json"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/sells-group/strategy-pipeline/internal/model"
)

var enhancedSocialPatterns = map[string][]*regexp.Regexp{
	"instagram":        compileAll(`instagram\.com/([a-zA-Z0-9._]+)`),
	"tiktok":           compileAll(`tiktok\.com/@([a-zA-Z0-9._]+)`, `tiktok\.com/([a-zA-Z0-9._]+)`),
	"linkedin_company": compileAll(`linkedin\.com/company/([a-zA-Z0-9-]+)`),
	"linkedin_founder": compileAll(`linkedin\.com/in/([a-zA-Z0-9-]+)`),
	"facebook":         compileAll(`facebook\.com/([a-zA-Z0-9._]+)`),
	"twitter":          compileAll(`twitter\.com/([a-zA-Z0-9_]+)`, `x\.com/([a-zA-Z0-9_]+)`),
	"youtube":          compileAll(`youtube\.com/@([a-zA-Z0-9_-]+)`, `youtube\.com/c/([a-zA-Z0-9_-]+)`, `youtube\.com/channel/([a-zA-Z0-9_-]+)`),
}

var (
	whatsappPattern    = regexp.MustCompile(`(?i)wa\.me/(\d+)`)
	whatsappAPIPattern = regexp.MustCompile(`(?i)api\.whatsapp\.com/send\?phone=(\d+)`)
	phonePattern       = regexp.MustCompile(`\+?\d{1,3}[-.\s]?\(?\d{1,4}\)?[-.\s]?\d{1,4}[-.\s]?\d{1,9}`)
	mailtoPattern      = regexp.MustCompile(`(?i)^mailto:`)
	appleIconPattern   = regexp.MustCompile(`(?i)apple-touch-icon`)
	iconPattern        = regexp.MustCompile(`(?i)icon`)
	logoClassPattern   = regexp.MustCompile(`(?i)logo`)
)

// MetadataEnhancedAdapter extends MetadataAdapter with JSON-LD structured
// data, a wider social-profile sweep (Instagram, TikTok, YouTube),
// contact extraction (WhatsApp, phone, email), and a multi-source logo
// fallback chain.
type MetadataEnhancedAdapter struct {
	base *MetadataAdapter
}

func NewMetadataEnhancedAdapter() *MetadataEnhancedAdapter {
	return &MetadataEnhancedAdapter{base: NewMetadataAdapter()}
}

func (a *MetadataEnhancedAdapter) Name() string              { return "metadata_enhanced" }
func (a *MetadataEnhancedAdapter) EstimatedCostUSD() float64 { return metadataEstimatedCostUSD }

func (a *MetadataEnhancedAdapter) Fetch(ctx context.Context, company CompanyRef) (model.SourceResult, error) {
	base, err := a.base.Fetch(ctx, company)
	if err != nil {
		return model.SourceResult{}, err
	}
	if !base.Success {
		return base, nil
	}

	targetURL := company.Domain
	if !strings.HasPrefix(targetURL, "http://") && !strings.HasPrefix(targetURL, "https://") {
		targetURL = "https://" + targetURL
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, targetURL, nil)
	if err != nil {
		return base, nil
	}
	req.Header.Set("User-Agent", metadataUserAgent)

	resp, err := a.base.http.Do(req)
	if err != nil {
		return base, nil
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return base, nil
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return base, nil
	}

	fields := map[string]any{}
	for k, v := range base.Fields {
		fields[k] = v
	}

	structured := extractStructuredData(doc)
	for k, v := range structured {
		fields[k] = v
	}

	social := extractSocialMediaEnhanced(doc)
	if existing, ok := fields["social_media"].(map[string]string); ok {
		for k, v := range existing {
			if _, already := social[k]; !already {
				social[k] = v
			}
		}
	}
	if len(social) > 0 {
		fields["social_media"] = social
	}

	for k, v := range extractContactInfo(doc) {
		fields[k] = v
	}

	if logo := extractLogoEnhanced(doc, targetURL); logo != "" {
		fields["logo_url"] = logo
	}

	return model.SourceResult{
		Source:    a.Name(),
		Success:   true,
		Fields:    fields,
		FetchedAt: time.Now(),
	}, nil
}

type jsonLDItem struct {
	Type        string `json:"@type"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Logo        string `json:"logo"`
	Telephone   string `json:"telephone"`
	Address     struct {
		AddressLocality string `json:"addressLocality"`
		AddressRegion   string `json:"addressRegion"`
		AddressCountry  string `json:"addressCountry"`
	} `json:"address"`
	SameAs []string `json:"sameAs"`
}

var organizationSchemas = map[string]bool{"Organization": true, "LocalBusiness": true, "Corporation": true}

func extractStructuredData(doc *goquery.Document) map[string]any {
	out := map[string]any{}
	doc.Find(`script[type="application/ld+json"]`).Each(func(_ int, s *goquery.Selection) {
		var items []jsonLDItem
		raw := s.Text()
		if err := json.Unmarshal([]byte(raw), &items); err != nil {
			var single jsonLDItem
			if err := json.Unmarshal([]byte(raw), &single); err != nil {
				return
			}
			items = []jsonLDItem{single}
		}
		for _, item := range items {
			if !organizationSchemas[item.Type] {
				continue
			}
			if item.Name != "" {
				out["company_name"] = item.Name
			}
			if item.Description != "" {
				out["description"] = item.Description
			}
			if item.Logo != "" {
				out["logo_url"] = item.Logo
			}
			if item.Telephone != "" {
				out["phone"] = item.Telephone
			}
			if item.Address.AddressLocality != "" {
				out["city"] = item.Address.AddressLocality
			}
			if item.Address.AddressRegion != "" {
				out["region"] = item.Address.AddressRegion
			}
			if item.Address.AddressCountry != "" {
				out["country"] = item.Address.AddressCountry
			}
		}
	})
	return out
}

func extractSocialMediaEnhanced(doc *goquery.Document) map[string]string {
	social := map[string]string{}
	parseSocialLink := func(href string) {
		for platform, patterns := range enhancedSocialPatterns {
			if _, already := social[platform]; already {
				continue
			}
			for _, p := range patterns {
				if m := p.FindStringSubmatch(href); m != nil {
					social[platform] = formatSocialURL(platform, m[1])
					break
				}
			}
		}
	}
	doc.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
		href, _ := s.Attr("href")
		parseSocialLink(href)
	})
	return social
}

func formatSocialURL(platform, handle string) string {
	handle = strings.Trim(handle, "@/")
	switch platform {
	case "instagram":
		return "https://instagram.com/" + handle
	case "tiktok":
		return "https://tiktok.com/@" + handle
	case "linkedin_company":
		return "https://linkedin.com/company/" + handle
	case "linkedin_founder":
		return "https://linkedin.com/in/" + handle
	case "facebook":
		return "https://facebook.com/" + handle
	case "twitter":
		return "https://twitter.com/" + handle
	case "youtube":
		return "https://youtube.com/" + handle
	default:
		return "https://" + platform + ".com/" + handle
	}
}

func extractContactInfo(doc *goquery.Document) map[string]any {
	contacts := map[string]any{}
	html, _ := doc.Html()

	if m := whatsappPattern.FindStringSubmatch(html); m != nil {
		contacts["whatsapp"] = "+" + m[1]
	} else if m := whatsappAPIPattern.FindStringSubmatch(html); m != nil {
		contacts["whatsapp"] = "+" + m[1]
	}

	footerText := doc.Find("footer").Text()
	if footerText == "" {
		footerText = doc.Text()
	}
	if m := phonePattern.FindString(footerText); m != "" {
		contacts["phone"] = strings.TrimSpace(regexp.MustCompile(`\s+`).ReplaceAllString(m, " "))
	}

	doc.Find("a[href]").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		href, _ := s.Attr("href")
		if mailtoPattern.MatchString(href) {
			email := mailtoPattern.ReplaceAllString(href, "")
			if idx := strings.Index(email, "?"); idx >= 0 {
				email = email[:idx]
			}
			contacts["email"] = email
			return false
		}
		return true
	})

	return contacts
}

func extractLogoEnhanced(doc *goquery.Document, baseURL string) string {
	if content, ok := doc.Find(`meta[property="og:image"]`).Attr("content"); ok {
		if resolved := resolveURL(content, baseURL); resolved != "" {
			return resolved
		}
	}
	if href, ok := doc.Find("link").FilterFunction(func(_ int, s *goquery.Selection) bool {
		rel, _ := s.Attr("rel")
		return appleIconPattern.MatchString(rel)
	}).Attr("href"); ok {
		if resolved := resolveURL(href, baseURL); resolved != "" {
			return resolved
		}
	}
	if href, ok := doc.Find("link").FilterFunction(func(_ int, s *goquery.Selection) bool {
		rel, _ := s.Attr("rel")
		return iconPattern.MatchString(rel)
	}).Attr("href"); ok {
		if resolved := resolveURL(href, baseURL); resolved != "" {
			return resolved
		}
	}
	logoImg := doc.Find("img").FilterFunction(func(_ int, s *goquery.Selection) bool {
		class, _ := s.Attr("class")
		id, _ := s.Attr("id")
		return logoClassPattern.MatchString(class) || logoClassPattern.MatchString(id)
	}).First()
	if src, ok := logoImg.Attr("src"); ok {
		if resolved := resolveURL(src, baseURL); resolved != "" {
			return resolved
		}
	}
	return ""
}
