// Package discover locates candidate PDF documents on an agency's listing
// page. Two strategies: a direct scan for links that are already PDFs, and
// a keyword scan used only when the direct scan finds nothing. Both are
// pure with respect to the supplied HTML; confirming keyword candidates
// via content-type probes is the caller's job.
package discover

import (
	"bytes"
	"fmt"
	"net/url"
	"path"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"editalwatch/collector-service/internal/model"
)

// containerSelectors are tried in order for the restricted keyword scan;
// listing content usually lives in one of these.
var containerSelectors = []string{"#content", "main", ".content", ".container", ".region", ".portlet"}

// DirectPDFLinks scans every hyperlink on the page and returns those whose
// path ends in .pdf, plus those whose query string carries a pdf
// indicator. Relative URLs resolve against the page's origin; anything
// that does not resolve to an absolute http(s) URL is dropped. The result
// has no duplicate (url, label) pairs and preserves document order per
// pass.
func DirectPDFLinks(pageURL string, html []byte) ([]model.CandidateLink, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("parse listing html: %w", err)
	}
	origin, err := originOf(pageURL)
	if err != nil {
		return nil, err
	}

	var links []model.CandidateLink
	seen := make(map[model.CandidateLink]bool)
	add := func(full, label string) {
		c := model.CandidateLink{URL: full, Label: label}
		if !seen[c] {
			seen[c] = true
			links = append(links, c)
		}
	}

	doc.Find("a[href]").Each(func(_ int, a *goquery.Selection) {
		href := strings.TrimSpace(a.AttrOr("href", ""))
		full := resolve(origin, href)
		if full == "" {
			return
		}
		if u, err := url.Parse(full); err == nil && strings.HasSuffix(strings.ToLower(u.Path), ".pdf") {
			add(full, labelFor(a, full))
		}
	})

	doc.Find("a[href]").Each(func(_ int, a *goquery.Selection) {
		href := strings.TrimSpace(a.AttrOr("href", ""))
		if !strings.Contains(href, "?") || !strings.Contains(strings.ToLower(href), "pdf") {
			return
		}
		full := resolve(origin, href)
		if full == "" {
			return
		}
		add(full, labelFor(a, full))
	})

	return links, nil
}

// KeywordCandidates scans hyperlinks whose visible text or URL matches any
// of the source's keywords, case-insensitively; URL matching strips spaces
// from the keyword first. Likely content containers are scanned before
// falling back to the whole page. A seen-set keyed by the URL with
// fragment stripped and trailing slashes removed filters near-duplicate
// anchored repeats of the same link.
func KeywordCandidates(pageURL string, html []byte, keywords []string) ([]model.CandidateLink, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("parse listing html: %w", err)
	}
	origin, err := originOf(pageURL)
	if err != nil {
		return nil, err
	}

	var out []model.CandidateLink
	seen := make(map[string]bool)

	scan := func(_ int, a *goquery.Selection) {
		href := strings.TrimSpace(a.AttrOr("href", ""))
		full := resolve(origin, href)
		if full == "" {
			return
		}

		key := strings.TrimRight(strings.SplitN(full, "#", 2)[0], "/")
		if seen[key] {
			return
		}
		seen[key] = true

		text := normalizeLabel(a.Text())
		lowText := strings.ToLower(text)
		lowHref := strings.ToLower(full)
		for _, kw := range keywords {
			kw = strings.ToLower(kw)
			if strings.Contains(lowText, kw) ||
				strings.Contains(lowHref, strings.ReplaceAll(kw, " ", "")) {
				label := text
				if label == "" {
					label = FilenameFromURL(full)
				}
				out = append(out, model.CandidateLink{URL: full, Label: label})
				return
			}
		}
	}

	for _, sel := range containerSelectors {
		doc.Find(sel).Each(func(_ int, block *goquery.Selection) {
			block.Find("a[href]").Each(scan)
		})
	}

	if len(out) == 0 {
		doc.Find("a[href]").Each(scan)
	}

	return out, nil
}

// FilenameFromURL returns the decoded final path segment of u, or empty
// when u has no usable path.
func FilenameFromURL(u string) string {
	parsed, err := url.Parse(u)
	if err != nil || parsed.Path == "" {
		return ""
	}
	base := path.Base(parsed.Path)
	if base == "." || base == "/" {
		return ""
	}
	if dec, err := url.PathUnescape(base); err == nil {
		return dec
	}
	return base
}

func originOf(pageURL string) (*url.URL, error) {
	u, err := url.Parse(pageURL)
	if err != nil {
		return nil, fmt.Errorf("parse page url %q: %w", pageURL, err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("page url %q is not absolute", pageURL)
	}
	return &url.URL{Scheme: u.Scheme, Host: u.Host}, nil
}

// resolve returns href as an absolute http(s) URL, resolving relative
// references against the page origin, or empty when that is impossible.
func resolve(origin *url.URL, href string) string {
	if href == "" {
		return ""
	}
	if strings.HasPrefix(href, "http://") || strings.HasPrefix(href, "https://") {
		return href
	}
	ref, err := url.Parse(href)
	if err != nil {
		return ""
	}
	full := origin.ResolveReference(ref)
	if full.Scheme != "http" && full.Scheme != "https" || full.Host == "" {
		return ""
	}
	return full.String()
}

func labelFor(a *goquery.Selection, full string) string {
	if text := normalizeLabel(a.Text()); text != "" {
		return text
	}
	return FilenameFromURL(full)
}

func normalizeLabel(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
