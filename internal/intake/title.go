package intake

import (
	"fmt"
	"path/filepath"
	"strings"
)

const fallbackTitle = "General Legal Request"

// Title generates a descriptive request title from the form snapshot
// using per-category heuristics.
func Title(form FormState) string {
	switch form.HelpType {
	case HelpTypeSignature:
		return signatureTitle(form)
	case HelpTypeContractPull:
		return contractPullTitle(form)
	case HelpTypeOther:
		return otherTitle(form)
	}
	return fallbackTitle
}

// signatureTitle builds "<file> - <signature type> - with <features>",
// e.g. "Acme NDA - Wet Ink - with Notarization, Stamp/Seal".
func signatureTitle(form FormState) string {
	var parts []string

	if len(form.Files) > 0 {
		name := truncate(stripExtension(form.Files[0].Name), 30)
		if len(form.Files) > 1 {
			name = fmt.Sprintf("%s +%d more", name, len(form.Files)-1)
		}
		parts = append(parts, name)
	}

	sigType := "E-Signature"
	if form.SignatureType == SignatureTypeWetInk {
		sigType = "Wet Ink"
	}
	parts = append(parts, sigType)

	var features []string
	if form.NeedsTranslation {
		features = append(features, "Translation")
	}
	if form.hasWetInkOption(WetInkOptionNotarize) {
		features = append(features, "Notarization")
	}
	if form.hasWetInkOption(WetInkOptionStampSeal) {
		features = append(features, "Stamp/Seal")
	}
	if len(features) > 0 {
		parts = append(parts, "with "+strings.Join(features, ", "))
	}

	if len(parts) == 1 {
		return "Signature Request - " + parts[0]
	}
	return strings.Join(parts, " - ")
}

// contractPullTitle builds "Contract Pull <agreement> (<companies>) - <Entity>".
func contractPullTitle(form FormState) string {
	parts := []string{"Contract Pull"}

	if name := strings.TrimSpace(form.AgreementName); name != "" {
		parts = append(parts, truncate(name, 40))
	}
	if companies := strings.TrimSpace(form.CompanyNames); companies != "" {
		parts = append(parts, "("+truncate(companies, 30)+")")
	}
	if form.OriginatingEntity != "" {
		parts = append(parts, "- "+titleCase(form.OriginatingEntity))
	}

	return strings.Join(parts, " ")
}

// otherTitle snips the first sentence (or the first 60 characters) of the
// free-form description.
func otherTitle(form FormState) string {
	description := strings.TrimSpace(form.OtherDescription)
	if description == "" {
		return fallbackTitle
	}

	firstSentence := strings.TrimSpace(splitSentence(description))
	snippet := firstSentence
	if snippet == "" || len(snippet) > 60 {
		snippet = strings.TrimSpace(truncateRaw(description, 60))
	}
	snippet = strings.TrimRight(snippet, ".,;:")
	if snippet == "" {
		return fallbackTitle
	}
	return snippet
}

func splitSentence(s string) string {
	if i := strings.IndexAny(s, ".!?"); i >= 0 {
		return s[:i]
	}
	return s
}

func stripExtension(name string) string {
	return strings.TrimSuffix(name, filepath.Ext(name))
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}

func truncateRaw(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max]
}

// titleCase upper-cases the first letter and breaks a camelCase value
// into spaced words ("outsideUS" stays a single token per word boundary).
func titleCase(s string) string {
	if s == "" {
		return s
	}
	var b strings.Builder
	for i, r := range s {
		if i == 0 {
			b.WriteRune(toUpper(r))
			continue
		}
		if r >= 'A' && r <= 'Z' {
			b.WriteByte(' ')
		}
		b.WriteRune(r)
	}
	return b.String()
}

func toUpper(r rune) rune {
	if r >= 'a' && r <= 'z' {
		return r - ('a' - 'A')
	}
	return r
}
