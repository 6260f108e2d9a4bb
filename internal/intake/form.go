// Package intake implements the multi-step legal intake form: the
// dependent-field graph selected by the help type, required-field
// computation, validation, content sanitization, autosave drafts, and
// submission payload assembly.
package intake

import "frontdoor/api/internal/store"

// FieldID names a form field. The IDs double as the wire names used by
// clients and in validation feedback.
type FieldID string

const (
	FieldHelpType FieldID = "helpType"

	// Signature branch.
	FieldFileToSign           FieldID = "fileToSign"
	FieldSignatureType        FieldID = "signatureType"
	FieldWetInkOptions        FieldID = "wetInkOptions"
	FieldNotarizationLocation FieldID = "notarizationLocation"
	FieldWetInkCopies         FieldID = "wetInkCopies"
	FieldScannedCopy          FieldID = "scannedCopy"
	FieldWetInkOriginals      FieldID = "wetInkOriginals"
	FieldNotarizationState    FieldID = "notarizationState"
	FieldNotarizationCountry  FieldID = "notarizationCountry"
	FieldApostilleCountry     FieldID = "apostilleCountry"
	FieldMailingRecipient     FieldID = "mailingRecipient"
	FieldMailingAddress       FieldID = "mailingAddress"
	FieldMailingCity          FieldID = "mailingCity"
	FieldMailingStateProv     FieldID = "mailingStateProvince"
	FieldMailingPostalCode    FieldID = "mailingPostalCode"
	FieldMailingCountry       FieldID = "mailingCountry"

	// Contract pull branch.
	FieldSalesContract    FieldID = "salesContract"
	FieldOriginatingEnt   FieldID = "originatingEntity"
	FieldAgreementName    FieldID = "agreementName"
	FieldContractPullDesc FieldID = "contractPullDescription"

	// Other branch.
	FieldOtherDescription FieldID = "otherDescription"
)

// Help type discriminator values.
const (
	HelpTypeSignature    = "signature"
	HelpTypeContractPull = "contractPull"
	HelpTypeOther        = "other"
)

// Signature branch values the graph keys on.
const (
	SignatureTypeWetInk = "wetInk"
	SignatureTypeESign  = "eSignature"

	WetInkOptionNotarize      = "notarize"
	WetInkOptionMailOriginals = "mailOriginals"
	WetInkOptionStampSeal     = "stampSeal"

	LocationUnitedStates = "unitedStates"
	LocationOutsideUS    = "outsideUS"

	OriginalsMail = "mailOriginals"
)

// FormState is a flat snapshot of every intake field. Fields outside the
// active branch are empty; ApplyVisibility enforces that before the
// snapshot is saved, validated, or submitted.
type FormState struct {
	HelpType string `json:"helpType"`

	// Always-optional inputs, never in the required set.
	SubmittingFor  string `json:"submittingFor,omitempty"`
	CompletionDate string `json:"completionDate,omitempty"`

	// Signature branch.
	Files                []store.FileMeta `json:"files"`
	SignatureType        string           `json:"signatureType"`
	NeedsTranslation     bool             `json:"needsTranslation"`
	SignatureNotes       string           `json:"signatureNotes"`
	WetInkOptions        []string         `json:"wetInkOptions"`
	NotarialActs         []string         `json:"notarialActs"`
	Apostille            string           `json:"apostille"`
	ApostilleCountry     string           `json:"apostilleCountry"`
	NotarizationLocation string           `json:"notarizationLocation"`
	NotarizationState    string           `json:"notarizationState"`
	NotarizationCountry  string           `json:"notarizationCountry"`
	WetInkCopies         int              `json:"wetInkCopies"`
	ScannedCopy          string           `json:"scannedCopy"`
	WetInkOriginals      string           `json:"wetInkOriginals"`

	MailingRecipient     string `json:"mailingRecipient"`
	MailingCompany       string `json:"mailingCompany"`
	MailingAddress       string `json:"mailingAddress"`
	MailingCity          string `json:"mailingCity"`
	MailingStateProvince string `json:"mailingStateProvince"`
	MailingPostalCode    string `json:"mailingPostalCode"`
	MailingCountry       string `json:"mailingCountry"`

	// Contract pull branch.
	SalesContract           string `json:"salesContract"`
	OriginatingEntity       string `json:"originatingEntity"`
	CompanyNames            string `json:"companyNames"`
	AgreementName           string `json:"agreementName"`
	ContractPullDescription string `json:"contractPullDescription"`

	// Other branch.
	OtherDescription string `json:"otherDescription"`
}

func (f FormState) hasWetInkOption(option string) bool {
	for _, o := range f.WetInkOptions {
		if o == option {
			return true
		}
	}
	return false
}

// TypeLabel is the human-readable request category for a help type; it
// becomes the created Request's type.
func TypeLabel(helpType string) string {
	switch helpType {
	case HelpTypeSignature:
		return "Signature Request"
	case HelpTypeContractPull:
		return "Contract Pull"
	case HelpTypeOther:
		return "Other Request"
	}
	return "General Request"
}
