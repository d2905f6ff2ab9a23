package ledger

import (
	"fmt"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"github.com/credit-relay/internal/domain"
)

const (
	DefaultPage  = 1
	DefaultLimit = 10
)

var placeholderRe = regexp.MustCompile(`\{(memberId|productId|membershipTierId|page|limit)\}`)

// historyURLs expands every candidate endpoint into the ordered list of URLs
// to try: each template without, then with, a trailing slash. A configured
// override that does not form a URL is an error rather than a skipped candidate.
func (c *Client) historyURLs(q domain.HistoryQuery) ([]string, error) {
	templates := c.historyPaths
	if c.historyOverride != "" {
		templates = []string{c.historyOverride}
	}
	values := map[string]string{
		"memberId":         q.MemberID,
		"productId":        q.ProductID,
		"membershipTierId": q.MembershipTierID,
		"page":             strconv.Itoa(q.Page),
		"limit":            strconv.Itoa(q.Limit),
	}
	order := []string{"productId", "membershipTierId", "memberId", "page", "limit"}

	var urls []string
	seen := make(map[string]bool)
	for _, tmpl := range templates {
		used := make(map[string]bool)
		for _, m := range placeholderRe.FindAllStringSubmatch(tmpl, -1) {
			used[m[1]] = true
		}
		expanded := placeholderRe.ReplaceAllStringFunc(tmpl, func(m string) string {
			return escapeComponent(values[m[1:len(m)-1]])
		})
		u, err := url.Parse(c.resolve(expanded))
		if err != nil {
			if c.historyOverride != "" {
				return nil, fmt.Errorf("LEDGER_HISTORY_ENDPOINT %q is not a valid URL template: %w", tmpl, domain.ErrInvalidConfig)
			}
			continue
		}
		qs := u.Query()
		for _, k := range order {
			if !used[k] {
				qs.Set(k, values[k])
			}
		}
		u.RawQuery = qs.Encode()

		for _, slash := range []bool{false, true} {
			v := *u
			setTrailingSlash(&v, slash)
			s := v.String()
			if !seen[s] {
				seen[s] = true
				urls = append(urls, s)
			}
		}
	}
	return urls, nil
}

// resolve leaves absolute URLs alone and roots relative paths at the base URL.
func (c *Client) resolve(p string) string {
	if strings.HasPrefix(p, "http://") || strings.HasPrefix(p, "https://") {
		return p
	}
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	return c.baseURL + p
}

func setTrailingSlash(u *url.URL, slash bool) {
	trim := func(s string) string {
		s = strings.TrimRight(s, "/")
		if slash {
			s += "/"
		}
		return s
	}
	u.Path = trim(u.Path)
	if u.RawPath != "" {
		u.RawPath = trim(u.RawPath)
	}
}

// escapeComponent matches JavaScript's encodeURIComponent closely enough for ids.
func escapeComponent(s string) string {
	return strings.ReplaceAll(url.QueryEscape(s), "+", "%20")
}

// encodeQuery keeps parameter order, unlike url.Values.Encode.
func encodeQuery(kv [][2]string) string {
	parts := make([]string, 0, len(kv))
	for _, p := range kv {
		parts = append(parts, url.QueryEscape(p[0])+"="+url.QueryEscape(p[1]))
	}
	return strings.Join(parts, "&")
}

// balancePaths are tried in order; the first numeric value wins.
var balancePaths = [][]string{
	{"customerBalance"},
	{"customerBalanceMembership"},
	{"customerBalanceAddon"},
	{"balance"},
	{"data", "balance"},
	{"data", "available"},
	{"data", "remaining"},
	{"available"},
	{"remaining"},
}

// ExtractBalance probes a decoded JSON tree for a balance. Numeric strings do
// not count. It returns nil when nothing matches.
func ExtractBalance(tree any) *float64 {
	for _, path := range balancePaths {
		if v, ok := lookup(tree, path).(float64); ok {
			return &v
		}
	}
	return nil
}

func lookup(tree any, path []string) any {
	cur := tree
	for _, k := range path {
		m, ok := cur.(map[string]any)
		if !ok {
			return nil
		}
		cur = m[k]
	}
	return cur
}

// historyShapes are tried in order against the decoded payload.
var historyShapes = []func(any) (*domain.HistoryPage, bool){
	siblingsShape("items"),
	siblingsShape("data"),
	resultsShape,
	arrayShape,
}

// ParseHistory normalizes the known upstream shapes. An unrecognized payload
// yields an empty page.
func ParseHistory(tree any) *domain.HistoryPage {
	for _, shape := range historyShapes {
		if p, ok := shape(tree); ok {
			return p
		}
	}
	return &domain.HistoryPage{Items: []domain.HistoryEntry{}}
}

// siblingsShape matches {key: [...], total, totalPages, page, limit}.
func siblingsShape(key string) func(any) (*domain.HistoryPage, bool) {
	return func(tree any) (*domain.HistoryPage, bool) {
		m, ok := tree.(map[string]any)
		if !ok {
			return nil, false
		}
		arr, ok := m[key].([]any)
		if !ok {
			return nil, false
		}
		p := &domain.HistoryPage{
			Items:      entries(arr),
			TotalPages: intField(m, "totalPages"),
			Page:       intField(m, "page"),
			Limit:      intField(m, "limit"),
		}
		if t := intField(m, "total"); t != nil {
			p.Total = *t
		}
		return p, true
	}
}

func resultsShape(tree any) (*domain.HistoryPage, bool) {
	m, ok := tree.(map[string]any)
	if !ok {
		return nil, false
	}
	arr, ok := m["results"].([]any)
	if !ok {
		return nil, false
	}
	p := &domain.HistoryPage{Items: entries(arr)}
	if n := intField(m, "count"); n != nil {
		p.Total = *n
	}
	return p, true
}

func arrayShape(tree any) (*domain.HistoryPage, bool) {
	arr, ok := tree.([]any)
	if !ok {
		return nil, false
	}
	return &domain.HistoryPage{Items: entries(arr), Total: len(arr)}, true
}

func intField(m map[string]any, key string) *int {
	f, ok := m[key].(float64)
	if !ok {
		return nil
	}
	n := int(f)
	return &n
}

// entries keeps non-object elements as {"value": v} so item counts stay exact.
func entries(arr []any) []domain.HistoryEntry {
	out := make([]domain.HistoryEntry, 0, len(arr))
	for _, v := range arr {
		if m, ok := v.(map[string]any); ok {
			out = append(out, domain.HistoryEntry(m))
			continue
		}
		out = append(out, domain.HistoryEntry{"value": v})
	}
	return out
}
