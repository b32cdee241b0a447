// Package signals extracts the scoring signal bundle from a rendered page.
package signals

import (
	"net/url"
	"regexp"
	"slices"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"github.com/gurnoornatt/supergoodleadgen/internal/config"
	"github.com/gurnoornatt/supergoodleadgen/internal/model"
)

// Extractor turns a rendered page into a SignalBundle.
type Extractor struct {
	cfg       config.SignalsConfig
	heavy     int64
	veryHeavy int64
}

// New creates an Extractor from signal configuration.
func New(cfg config.SignalsConfig) (*Extractor, error) {
	heavy, veryHeavy, err := cfg.PageBytes()
	if err != nil {
		return nil, err
	}
	return &Extractor{cfg: cfg, heavy: heavy, veryHeavy: veryHeavy}, nil
}

// Extract computes every signal for page. Signals that cannot be determined
// stay nil so scoring treats them as neutral.
func (e *Extractor) Extract(page *model.Page) model.SignalBundle {
	var b model.SignalBundle
	if page == nil {
		return b
	}

	b.SSL = sslOf(page)

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(page.HTML))
	if err != nil || strings.TrimSpace(page.HTML) == "" {
		zap.L().Debug("signals: unparsable page", zap.String("url", page.URL), zap.Error(err))
		b.MobileScore = page.MobileScore
		return b
	}
	lower := strings.ToLower(page.HTML)

	b.OutdatedTech = outdatedTech(doc, lower)
	b.ModernTech = model.BoolPtr(len(b.OutdatedTech) == 0)
	b.LocalSEOComplete = model.BoolPtr(localSEOMarkers(doc, lower) >= e.cfg.LocalSEOMinMarkers)
	b.DetectedSoftware = detectSoftware(lower)

	if page.MobileScore != nil {
		b.MobileScore = page.MobileScore
	} else {
		b.MobileScore = model.IntPtr(e.mobileScore(doc, page))
	}
	return b
}

func sslOf(page *model.Page) *bool {
	raw := page.FinalURL
	if raw == "" {
		raw = page.URL
	}
	u, err := url.Parse(raw)
	if err != nil || u.Scheme == "" {
		return nil
	}
	return model.BoolPtr(strings.EqualFold(u.Scheme, "https"))
}

// mobileScore starts at 100 and deducts for mobile-hostile page traits.
func (e *Extractor) mobileScore(doc *goquery.Document, page *model.Page) int {
	score := 100

	viewport, _ := doc.Find(`meta[name="viewport"]`).Attr("content")
	if !strings.Contains(strings.ToLower(viewport), "width=device-width") {
		score -= 30
	}

	switch bytes := int64(page.Bytes); {
	case e.veryHeavy > 0 && bytes > e.veryHeavy:
		score -= 20
	case e.heavy > 0 && bytes > e.heavy:
		score -= 10
	}

	scripts := doc.Find("script").FilterFunction(func(_ int, s *goquery.Selection) bool {
		typ, _ := s.Attr("type")
		return !strings.Contains(strings.ToLower(typ), "json")
	}).Length()
	switch {
	case scripts > e.cfg.TooManyScripts:
		score -= 20
	case scripts > e.cfg.ManyScripts:
		score -= 10
	}

	blocking := doc.Find(`head link[rel="stylesheet"]`).FilterFunction(func(_ int, s *goquery.Selection) bool {
		media, ok := s.Attr("media")
		return !ok || media == "" || strings.EqualFold(media, "all") || strings.EqualFold(media, "screen")
	}).Length()
	if blocking > e.cfg.BlockingStylesheets {
		score -= 10
	}

	if lang, _ := doc.Find("html").Attr("lang"); strings.TrimSpace(lang) == "" {
		score -= 5
	}

	// Only the main document's timing counts, so resource blocking in the
	// renderer cannot move the score.
	switch ms := page.DocumentReady.Milliseconds(); {
	case ms > int64(e.cfg.VerySlowMillis):
		score -= 20
	case ms > int64(e.cfg.SlowMillis):
		score -= 10
	}

	return max(0, min(100, score))
}

var (
	jquery1Re   = regexp.MustCompile(`jquery(?:[-.]min)?[-.]?v?1\.\d+|/jquery/1\.\d+|jquery\.js\?ver=1\.`)
	angular1Re  = regexp.MustCompile(`angular(?:js)?/1\.\d+|angular(?:\.min)?\.js|\sng-app[\s=>]`)
	backboneRe  = regexp.MustCompile(`backbone(?:[-.]min)?\.js|/backbone\.js/`)
	prototypeRe = regexp.MustCompile(`prototype(?:[-.]min)?\.js|/prototype/1\.\d+`)
	php5Re      = regexp.MustCompile(`php/5\.\d+`)
)

// outdatedTech lists problematic technologies found on the page, in a
// stable order.
func outdatedTech(doc *goquery.Document, lower string) []string {
	var found []string
	add := func(name string, ok bool) {
		if ok {
			found = append(found, name)
		}
	}

	add("Flash", strings.Contains(lower, "application/x-shockwave-flash") ||
		doc.Find(`embed[src$=".swf"], object[data$=".swf"]`).Length() > 0)
	add("Silverlight", strings.Contains(lower, "application/x-silverlight"))
	add("ActiveX", doc.Find(`object[classid^="clsid:"]`).Length() > 0)
	add("Java applet", doc.Find("applet").Length() > 0 ||
		strings.Contains(lower, "application/x-java-applet"))
	add("jQuery 1.x", jquery1Re.MatchString(lower))
	add("PHP 5", php5Re.MatchString(lower))
	add("AngularJS 1.x", angular1Re.MatchString(lower))
	add("Backbone.js", backboneRe.MatchString(lower))
	add("Prototype.js", prototypeRe.MatchString(lower))
	return found
}

var phoneRe = regexp.MustCompile(`\(?\b\d{3}\)?[-.\s]\d{3}[-.\s]\d{4}\b`)

// localSEOMarkers counts the local-business markers present on the page.
func localSEOMarkers(doc *goquery.Document, lower string) int {
	types := jsonLDTypes(doc)
	n := 0

	if slices.ContainsFunc(types, isLocalBusinessType) {
		n++
	}
	if strings.TrimSpace(doc.Find("title").First().Text()) != "" {
		n++
	}
	if desc, _ := doc.Find(`meta[name="description"]`).Attr("content"); strings.TrimSpace(desc) != "" {
		n++
	}
	if doc.Find(`a[href^="tel:"]`).Length() > 0 || phoneRe.MatchString(doc.Find("body").Text()) {
		n++
	}
	if doc.Find(`address, [itemprop="address"]`).Length() > 0 ||
		slices.Contains(types, "PostalAddress") ||
		strings.Contains(lower, `"streetaddress"`) {
		n++
	}
	return n
}

type signature struct {
	name    string
	markers []string
}

var softwareSignatures = []signature{
	{"MindBody", []string{"mindbodyonline.com", "healcode", "brandedweb.mindbody"}},
	{"Zen Planner", []string{"zenplanner.com"}},
	{"Wodify", []string{"wodify.com", "wodify"}},
	{"Glofox", []string{"glofox"}},
	{"TeamUp", []string{"goteamup.com"}},
	{"WellnessLiving", []string{"wellnessliving"}},
	{"ClubReady", []string{"clubready"}},
	{"PushPress", []string{"pushpress"}},
	{"Pike13", []string{"pike13"}},
	{"Acuity", []string{"acuityscheduling.com"}},
	{"Calendly", []string{"calendly.com"}},
	{"ABC Financial", []string{"abcfinancial", "abcfitness.com"}},
	{"Perfect Gym", []string{"perfectgym"}},
	{"RhinoFit", []string{"rhinofit"}},
	{"Square", []string{"squareup.com", "square.site"}},
	{"Stripe", []string{"js.stripe.com"}},
}

func detectSoftware(lower string) []string {
	var found []string
	for _, sig := range softwareSignatures {
		for _, m := range sig.markers {
			if strings.Contains(lower, m) {
				found = append(found, sig.name)
				break
			}
		}
	}
	return found
}
