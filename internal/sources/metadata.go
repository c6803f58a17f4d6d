package sources

import (
	"context"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/rotisserie/eris"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/sells-group/strategy-pipeline/internal/model"
)

var titleCaser = cases.Title(language.English)

const (
	metadataEstimatedCostUSD = 0
	metadataUserAgent        = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"
)

var techPatterns = map[string][]*regexp.Regexp{
	"React":     compileAll(`react`, `__NEXT_DATA__`, `_reactRoot`),
	"Next.js":   compileAll(`__NEXT_DATA__`, `_next/static`, `next\.js`),
	"WordPress": compileAll(`wp-content`, `wp-includes`, `wordpress`),
	"Vercel":    compileAll(`vercel`, `_vercel`),
	"Shopify":   compileAll(`shopify`, `cdn\.shopify\.com`),
	"Wix":       compileAll(`wix\.com`, `parastorage`),
	"Webflow":   compileAll(`webflow`),
	"Django":    compileAll(`django`, `csrfmiddlewaretoken`),
	"Flask":     compileAll(`flask`),
	"Vue.js":    compileAll(`vue\.js`, `__vue__`),
	"Angular":   compileAll(`angular`, `ng-`),
	"Bootstrap": compileAll(`bootstrap`),
	"Tailwind":  compileAll(`tailwind`),
	"jQuery":    compileAll(`jquery`),
}

func compileAll(patterns ...string) []*regexp.Regexp {
	out := make([]*regexp.Regexp, len(patterns))
	for i, p := range patterns {
		out[i] = regexp.MustCompile(`(?i)` + p)
	}
	return out
}

var socialPatterns = map[string]*regexp.Regexp{
	"linkedin":  regexp.MustCompile(`(?i)linkedin\.com/company/([^/\s"]+)`),
	"twitter":   regexp.MustCompile(`(?i)twitter\.com/([^/\s"]+)`),
	"facebook":  regexp.MustCompile(`(?i)facebook\.com/([^/\s"]+)`),
	"instagram": regexp.MustCompile(`(?i)instagram\.com/([^/\s"]+)`),
}

// MetadataAdapter scrapes a company's website for its name, description,
// detected tech stack, and social links. Free and fast (trust "metadata":
// 60 in reconcile's trust table, since the data is self-reported by the
// site).
type MetadataAdapter struct {
	http *http.Client
}

func NewMetadataAdapter() *MetadataAdapter {
	return &MetadataAdapter{http: &http.Client{Timeout: 10 * time.Second}}
}

func (a *MetadataAdapter) Name() string              { return "metadata" }
func (a *MetadataAdapter) EstimatedCostUSD() float64 { return metadataEstimatedCostUSD }

func (a *MetadataAdapter) Fetch(ctx context.Context, company CompanyRef) (model.SourceResult, error) {
	if company.Domain == "" {
		return model.SourceResult{}, eris.New("sources: metadata adapter requires a domain")
	}
	targetURL := company.Domain
	if !strings.HasPrefix(targetURL, "http://") && !strings.HasPrefix(targetURL, "https://") {
		targetURL = "https://" + targetURL
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, targetURL, nil)
	if err != nil {
		return model.SourceResult{}, eris.Wrap(err, "sources: build metadata request")
	}
	req.Header.Set("User-Agent", metadataUserAgent)

	resp, err := a.http.Do(req)
	if err != nil {
		return model.SourceResult{}, eris.Wrap(err, "sources: metadata request")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return model.SourceResult{}, eris.Errorf("sources: metadata status %d", resp.StatusCode)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return model.SourceResult{}, eris.Wrap(err, "sources: parse metadata html")
	}

	fields := map[string]any{}
	if name := extractCompanyName(doc, company.Domain); name != "" {
		fields["company_name"] = name
	}
	if desc := extractDescription(doc); desc != "" {
		fields["description"] = desc
	}
	if keywords := extractKeywords(doc); len(keywords) > 0 {
		fields["meta_keywords"] = keywords
	}
	if tech := detectTechnologies(doc, resp.Header); len(tech) > 0 {
		fields["website_tech"] = tech
	}
	if logo := extractLogo(doc, targetURL); logo != "" {
		fields["logo_url"] = logo
	}
	if social := extractSocialMedia(doc); len(social) > 0 {
		fields["social_media"] = social
	}

	return model.SourceResult{
		Source:    a.Name(),
		Success:   true,
		Fields:    fields,
		FetchedAt: time.Now(),
	}, nil
}

func extractCompanyName(doc *goquery.Document, domain string) string {
	if content, ok := doc.Find(`meta[property="og:site_name"]`).Attr("content"); ok && strings.TrimSpace(content) != "" {
		return strings.TrimSpace(content)
	}
	if title := strings.TrimSpace(doc.Find("title").First().Text()); title != "" {
		for _, suffix := range []string{"- Home", "| Home", "- Official Website", "| Official Website"} {
			if idx := strings.Index(strings.ToLower(title), strings.ToLower(suffix)); idx >= 0 {
				title = strings.TrimSpace(title[:idx])
			}
		}
		return title
	}
	name := strings.TrimPrefix(domain, "www.")
	if dot := strings.Index(name, "."); dot >= 0 {
		name = name[:dot]
	}
	return titleCaser.String(name)
}

func extractDescription(doc *goquery.Document) string {
	if content, ok := doc.Find(`meta[property="og:description"]`).Attr("content"); ok && strings.TrimSpace(content) != "" {
		return strings.TrimSpace(content)
	}
	if content, ok := doc.Find(`meta[name="description"]`).Attr("content"); ok && strings.TrimSpace(content) != "" {
		return strings.TrimSpace(content)
	}
	if p := strings.TrimSpace(doc.Find("p").First().Text()); p != "" {
		if len(p) > 200 {
			p = p[:200]
		}
		return p
	}
	return ""
}

func extractKeywords(doc *goquery.Document) []string {
	content, ok := doc.Find(`meta[name="keywords"]`).Attr("content")
	if !ok {
		return nil
	}
	var out []string
	for _, k := range strings.Split(content, ",") {
		k = strings.TrimSpace(k)
		if k == "" {
			continue
		}
		out = append(out, k)
		if len(out) == 10 {
			break
		}
	}
	return out
}

func detectTechnologies(doc *goquery.Document, headers http.Header) []string {
	html, err := doc.Html()
	if err != nil {
		html = ""
	}
	seen := map[string]bool{}
	for tech, patterns := range techPatterns {
		for _, p := range patterns {
			if p.MatchString(html) {
				seen[tech] = true
				break
			}
		}
	}

	server := strings.ToLower(headers.Get("Server"))
	switch {
	case strings.Contains(server, "nginx"):
		seen["Nginx"] = true
	case strings.Contains(server, "apache"):
		seen["Apache"] = true
	case strings.Contains(server, "cloudflare"):
		seen["Cloudflare"] = true
	}

	poweredBy := strings.ToLower(headers.Get("X-Powered-By"))
	switch {
	case strings.Contains(poweredBy, "php"):
		seen["PHP"] = true
	case strings.Contains(poweredBy, "asp.net"):
		seen["ASP.NET"] = true
	}

	out := make([]string, 0, len(seen))
	for tech := range seen {
		out = append(out, tech)
	}
	return out
}

func extractLogo(doc *goquery.Document, baseURL string) string {
	if content, ok := doc.Find(`meta[property="og:image"]`).Attr("content"); ok {
		return resolveURL(content, baseURL)
	}
	if href, ok := doc.Find(`link[rel="icon"]`).Attr("href"); ok {
		return resolveURL(href, baseURL)
	}
	if href, ok := doc.Find(`link[rel="shortcut icon"]`).Attr("href"); ok {
		return resolveURL(href, baseURL)
	}
	return ""
}

func resolveURL(href, baseURL string) string {
	if strings.HasPrefix(href, "http") {
		return href
	}
	if strings.HasPrefix(href, "/") {
		return strings.TrimRight(baseURL, "/") + href
	}
	return ""
}

func extractSocialMedia(doc *goquery.Document) map[string]string {
	social := map[string]string{}
	doc.Find("a[href]").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		href, _ := s.Attr("href")
		for platform, pattern := range socialPatterns {
			if _, exists := social[platform]; exists {
				continue
			}
			if pattern.MatchString(href) {
				social[platform] = href
			}
		}
		return len(social) < len(socialPatterns)
	})
	return social
}
