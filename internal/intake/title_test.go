package intake

import (
	"strings"
	"testing"

	"frontdoor/api/internal/store"
)

func TestSignatureTitle(t *testing.T) {
	form := FormState{
		HelpType:      HelpTypeSignature,
		Files:         []store.FileMeta{{Name: "Acme NDA.pdf"}},
		SignatureType: SignatureTypeWetInk,
		WetInkOptions: []string{WetInkOptionNotarize, WetInkOptionStampSeal},
	}

	got := Title(form)
	want := "Acme NDA - Wet Ink - with Notarization, Stamp/Seal"
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestSignatureTitleMultipleFilesAndTranslation(t *testing.T) {
	form := FormState{
		HelpType: HelpTypeSignature,
		Files: []store.FileMeta{
			{Name: "master-services-agreement-final-v12-signed.docx"},
			{Name: "annex-a.docx"},
			{Name: "annex-b.docx"},
		},
		SignatureType:    SignatureTypeESign,
		NeedsTranslation: true,
	}

	got := Title(form)
	if !strings.Contains(got, "+2 more") {
		t.Errorf("expected extra-file count, got %q", got)
	}
	if !strings.Contains(got, "...") {
		t.Errorf("expected long file name truncated, got %q", got)
	}
	if !strings.Contains(got, "E-Signature") || !strings.Contains(got, "with Translation") {
		t.Errorf("expected signature type and feature tag, got %q", got)
	}
}

func TestSignatureTitleWithoutFiles(t *testing.T) {
	form := FormState{HelpType: HelpTypeSignature, SignatureType: SignatureTypeWetInk}
	if got := Title(form); got != "Signature Request - Wet Ink" {
		t.Errorf("got %q", got)
	}
}

func TestContractPullTitle(t *testing.T) {
	form := FormState{
		HelpType:          HelpTypeContractPull,
		AgreementName:     "Cohesity-Acme MSA",
		CompanyNames:      "Acme Corp",
		OriginatingEntity: "domestic",
	}

	got := Title(form)
	want := "Contract Pull Cohesity-Acme MSA (Acme Corp) - Domestic"
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestContractPullTitleTruncatesLongNames(t *testing.T) {
	form := FormState{
		HelpType:      HelpTypeContractPull,
		AgreementName: strings.Repeat("A", 60),
	}
	got := Title(form)
	if !strings.Contains(got, strings.Repeat("A", 40)+"...") {
		t.Errorf("expected agreement truncated at 40, got %q", got)
	}
}

func TestOtherTitleSnipsFirstSentence(t *testing.T) {
	form := FormState{
		HelpType:         HelpTypeOther,
		OtherDescription: "Need guidance on a data processing addendum. The vendor insists on their own template.",
	}
	if got := Title(form); got != "Need guidance on a data processing addendum" {
		t.Errorf("got %q", got)
	}
}

func TestOtherTitleTruncatesLongFirstSentence(t *testing.T) {
	form := FormState{
		HelpType:         HelpTypeOther,
		OtherDescription: strings.Repeat("word ", 30) + ". Trailing.",
	}
	got := Title(form)
	if len(got) > 60 {
		t.Errorf("expected a 60-char snippet, got %d chars: %q", len(got), got)
	}
}

func TestOtherTitleFallback(t *testing.T) {
	if got := Title(FormState{HelpType: HelpTypeOther}); got != "General Legal Request" {
		t.Errorf("got %q", got)
	}
	if got := Title(FormState{}); got != "General Legal Request" {
		t.Errorf("expected fallback for unselected help type, got %q", got)
	}
}
