package i18n

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/message/catalog"
)

// Message keys double as the English text.
const (
	MsgInvalidBody        = "invalid request body"
	MsgInvalidJob         = "invalid job: %s"
	MsgJobNotFound        = "job %s not found"
	MsgJobProcessing      = "job %s is processing and cannot be removed"
	MsgNotReady           = "select a valid API key before starting the scheduler"
	MsgCredentialRequired = "api_key is required"
	MsgUnauthorized       = "authentication required"
	MsgRateLimited        = "too many requests, retry in %d seconds"
	MsgInternal           = "internal error"
	MsgBatchEmpty         = "batch must contain at least one job"
)

var (
	supported = []language.Tag{language.English, language.Indonesian}
	matcher   = language.NewMatcher(supported)
	messages  = newCatalog()
)

func newCatalog() *catalog.Builder {
	b := catalog.NewBuilder(catalog.Fallback(language.English))
	id := map[string]string{
		MsgInvalidBody:        "isi permintaan tidak valid",
		MsgInvalidJob:         "job tidak valid: %s",
		MsgJobNotFound:        "job %s tidak ditemukan",
		MsgJobProcessing:      "job %s sedang diproses dan tidak dapat dihapus",
		MsgNotReady:           "pilih API key yang valid sebelum menjalankan penjadwal",
		MsgCredentialRequired: "api_key wajib diisi",
		MsgUnauthorized:       "autentikasi diperlukan",
		MsgRateLimited:        "terlalu banyak permintaan, coba lagi dalam %d detik",
		MsgInternal:           "terjadi kesalahan internal",
		MsgBatchEmpty:         "batch harus berisi minimal satu job",
	}
	for key, text := range id {
		_ = b.SetString(language.English, key, key)
		_ = b.SetString(language.Indonesian, key, text)
	}
	return b
}

// Match picks the best supported locale for an Accept-Language style value.
// fallback is returned when nothing matches; "en" when fallback is empty.
func Match(raw, fallback string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return defaultLocale(fallback)
	}
	tags, _, err := language.ParseAcceptLanguage(strings.ReplaceAll(raw, "_", "-"))
	if err != nil || len(tags) == 0 {
		return defaultLocale(fallback)
	}
	_, idx, conf := matcher.Match(tags...)
	if conf == language.No {
		return defaultLocale(fallback)
	}
	return baseOf(supported[idx])
}

// ForCountry maps an ISO country code to a supported locale.
func ForCountry(country string) string {
	region, err := language.ParseRegion(strings.TrimSpace(country))
	if err != nil {
		return ""
	}
	tag, err := language.Compose(language.Und, region)
	if err != nil {
		return ""
	}
	if base, conf := tag.Base(); conf != language.No && base.String() == "id" {
		return "id"
	}
	return "en"
}

// Region returns the first explicit region named in an Accept-Language style
// value, upper-cased. Inferred regions ("id" implies ID) are not reported.
func Region(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	tags, _, err := language.ParseAcceptLanguage(strings.ReplaceAll(raw, "_", "-"))
	if err != nil {
		return ""
	}
	for _, tag := range tags {
		if region, conf := tag.Region(); conf == language.Exact {
			return region.String()
		}
	}
	return ""
}

// T renders key in locale.
func T(locale, key string, args ...any) string {
	tag, err := language.Parse(locale)
	if err != nil {
		tag = language.English
	}
	p := message.NewPrinter(tag, message.Catalog(messages))
	return p.Sprintf(key, args...)
}

// FoldLabel normalizes a label for case-insensitive comparison.
func FoldLabel(s string) string {
	// Casers are stateful; one per call.
	return cases.Fold().String(strings.TrimSpace(s))
}

func defaultLocale(fallback string) string {
	if fallback = strings.TrimSpace(fallback); fallback != "" {
		return Match(fallback, "en")
	}
	return "en"
}

func baseOf(tag language.Tag) string {
	base, _ := tag.Base()
	return base.String()
}
