package batcher

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"NewsRadar/internal/domain"
)

const (
	ColorMajor   = 0xE74C3C
	ColorMedium  = 0xF1C40F
	ColorRoutine = 0x2ECC71
	ColorHeader  = 0x95A5A6

	ellipsis = "…"
)

// Labels are the human-readable strings printed on cards.
type Labels struct {
	Level     string            `yaml:"level"`
	Market    string            `yaml:"market"`
	Source    string            `yaml:"source"`
	Published string            `yaml:"published"`
	Judgement string            `yaml:"judgement"`
	Sentiment string            `yaml:"sentiment"`
	Severity  map[string]string `yaml:"severity"`
	Verdict   map[string]string `yaml:"verdict"`
	Direction map[string]string `yaml:"direction"`
	NoNews    string            `yaml:"noNews"`
	Continued string            `yaml:"continued"`
}

// DefaultLabels are Traditional Chinese, matching the primary audience.
func DefaultLabels() Labels {
	return Labels{
		Level:     "🏷️ 等級",
		Market:    "📌 市場",
		Source:    "📰 新聞來源",
		Published: "🕒 發布時間",
		Judgement: "⚖️ 市場判斷",
		Sentiment: "📈 利多/利空",
		Severity: map[string]string{
			string(domain.SeverityMajor):   "重大",
			string(domain.SeverityMedium):  "中級",
			string(domain.SeverityRoutine): "一般",
		},
		Verdict: map[string]string{
			string(domain.SeverityMajor):   "市場波動",
			string(domain.SeverityMedium):  "關注事件",
			string(domain.SeverityRoutine): "例行更新",
		},
		Direction: map[string]string{
			string(domain.SentimentBullish): "利多",
			string(domain.SentimentBearish): "利空",
			string(domain.SentimentNeutral): "中性",
		},
		NoNews:    "✅ 無新內容",
		Continued: "續",
	}
}

func (l Labels) lookup(m map[string]string, key string) string {
	if v, ok := m[key]; ok && v != "" {
		return v
	}
	return key
}

// SeverityColor maps a tier onto the card colour.
func SeverityColor(s domain.Severity) int {
	switch s {
	case domain.SeverityMajor:
		return ColorMajor
	case domain.SeverityMedium:
		return ColorMedium
	default:
		return ColorRoutine
	}
}

// Truncate shortens s to at most max runes, marking the cut with an
// ellipsis. When a space sits close to the cut the text is cut there
// instead of mid-word.
func Truncate(s string, max int) string {
	if max <= 0 {
		return ""
	}
	if utf8.RuneCountInString(s) <= max {
		return s
	}
	if max == 1 {
		return ellipsis
	}

	runes := []rune(s)
	cut := max - 1
	window := cut / 5
	for i := cut; i > cut-window && i > 0; i-- {
		if runes[i] == ' ' {
			cut = i
			break
		}
	}
	return strings.TrimRight(string(runes[:cut]), " ") + ellipsis
}

var (
	twTickerExpr = regexp.MustCompile(`\b(\d{4}\.TW)\b`)
	symbolExpr   = regexp.MustCompile(`\b([A-Z]{2,6})\b`)
	notTickers   = map[string]struct{}{"OR": {}, "AND": {}, "THE": {}}
)

// TickerHint extracts a Taiwan listing code (2330.TW) or an upper-case
// symbol (TSLA, BTC) from a headline. It returns "" when nothing matches.
func TickerHint(headline string) string {
	if m := twTickerExpr.FindStringSubmatch(headline); m != nil {
		return m[1]
	}
	m := symbolExpr.FindStringSubmatch(headline)
	if m == nil {
		return ""
	}
	if _, skip := notTickers[m[1]]; skip {
		return ""
	}
	return m[1]
}

func runeLen(s string) int {
	return utf8.RuneCountInString(s)
}

func blockSize(b domain.Block) int {
	n := runeLen(b.Title) + runeLen(b.Description) + runeLen(b.Footer)
	for _, f := range b.Fields {
		n += runeLen(f.Name) + runeLen(f.Value)
	}
	return n
}
