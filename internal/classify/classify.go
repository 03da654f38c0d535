// Package classify decides whether an extracted document is a genuine
// funding call rather than unrelated institutional content. The decision
// is a deterministic sequence of cheap disqualifying gates followed by a
// score over independent weak signals; no single signal is reliable on
// its own.
package classify

import (
	"regexp"
	"strings"

	"editalwatch/collector-service/internal/dates"
)

// requiredTerms: at least one must appear in the title or the head of the
// text for the document to be considered at all.
var requiredTerms = []string{
	"edital", "chamada", "call", "convocatória", "seleção",
	"programa", "auxílio", "bolsa", "fomento", "pesquisa",
}

// blacklistTerms signal administrative or report documents, never calls.
var blacklistTerms = []string{
	"manual", "instruções", "tutorial", "declaração de imposto",
	"indicadores institucionais", "relatório", "ata", "prestação de contas",
	"resultado preliminar", "homologação", "retificação", "errata",
	"como acessar", "passo a passo", "orientações", "formulário",
	"www.", "http://", "https://", "obedecendo determinação",
}

// genericTitles are titles too generic to identify anything.
var genericTitles = []string{"chamada", "edital", "www.", "governo", "fundação"}

var proceduralTerms = []string{"prazo", "submissão", "inscrição", "cronograma"}

var (
	callNumberRE = regexp.MustCompile(`n[ºo°]\s*\d+/\d{4}`)
	currencyRE   = regexp.MustCompile(`r\$\s*[0-9.,]+`)
)

const (
	blacklistWindow  = 1000
	requiredWindow   = 2000
	proceduralWindow = 1000
	currencyWindow   = 2000
	minTitleLen      = 10
)

// Thresholds are the empirically chosen cutoffs of the scorer. They are
// configuration, not derived values.
type Thresholds struct {
	MinWords int // documents shorter than this are notices, not calls
	MinScore int // accept when the signal score reaches this
}

// DefaultThresholds returns the tuned production cutoffs.
func DefaultThresholds() Thresholds {
	return Thresholds{MinWords: 500, MinScore: 3}
}

// IsCall reports whether the document identified by title and text looks
// like a genuine call for proposals.
func IsCall(title, text string, th Thresholds) bool {
	if strings.TrimSpace(title) == "" {
		return false
	}

	titleLower := strings.ToLower(title)
	textLower := strings.ToLower(text)

	head := dates.Prefix(textLower, blacklistWindow)
	for _, term := range blacklistTerms {
		if strings.Contains(titleLower, term) || strings.Contains(head, term) {
			return false
		}
	}

	trimmed := strings.TrimSpace(title)
	if len([]rune(trimmed)) < minTitleLen {
		return false
	}
	for _, g := range genericTitles {
		if strings.EqualFold(trimmed, g) {
			return false
		}
	}

	requiredHead := dates.Prefix(textLower, requiredWindow)
	hasRequired := false
	for _, term := range requiredTerms {
		if strings.Contains(titleLower, term) || strings.Contains(requiredHead, term) {
			hasRequired = true
			break
		}
	}
	if !hasRequired {
		return false
	}

	if len(strings.Fields(text)) < th.MinWords {
		return false
	}

	score := 0
	if callNumberRE.MatchString(titleLower) {
		score += 3
	}
	if strings.Contains(titleLower, "edital") || strings.Contains(titleLower, "chamada") {
		score += 2
	}
	procHead := dates.Prefix(textLower, proceduralWindow)
	for _, term := range proceduralTerms {
		if strings.Contains(procHead, term) {
			score++
			break
		}
	}
	if currencyRE.MatchString(dates.Prefix(textLower, currencyWindow)) {
		score++
	}

	return score >= th.MinScore
}
