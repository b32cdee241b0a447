package signals

import (
	"encoding/json"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// localBusinessTypes are schema.org types that describe a physical business.
var localBusinessTypes = map[string]bool{
	"LocalBusiness":           true,
	"SportsActivityLocation":  true,
	"ExerciseGym":             true,
	"HealthClub":              true,
	"SportsClub":              true,
	"HealthAndBeautyBusiness": true,
	"DaySpa":                  true,
}

func isLocalBusinessType(t string) bool {
	return localBusinessTypes[t]
}

// jsonLDTypes returns every @type found in the page's JSON-LD blocks,
// including nested objects and @graph members. Malformed blocks are skipped.
func jsonLDTypes(doc *goquery.Document) []string {
	var types []string
	doc.Find(`script[type="application/ld+json"]`).Each(func(_ int, s *goquery.Selection) {
		var v any
		if err := json.Unmarshal([]byte(strings.TrimSpace(s.Text())), &v); err != nil {
			return
		}
		walkTypes(v, &types)
	})
	return types
}

func walkTypes(v any, out *[]string) {
	switch t := v.(type) {
	case map[string]any:
		for k, child := range t {
			if k == "@type" {
				switch typ := child.(type) {
				case string:
					*out = append(*out, typ)
				case []any:
					for _, x := range typ {
						if s, ok := x.(string); ok {
							*out = append(*out, s)
						}
					}
				}
				continue
			}
			walkTypes(child, out)
		}
	case []any:
		for _, child := range t {
			walkTypes(child, out)
		}
	}
}
