package intake

import (
	"regexp"
	"strings"
)

// Per-field length caps applied at the final submission gate.
const (
	TitleMaxLength         = 200
	DescriptionMaxLength   = 5000
	AgreementNameMaxLength = 200
	CompanyNameMaxLength   = 500
	AddressMaxLength       = 500
	CityMaxLength          = 100
	StateMaxLength         = 100
	PostalCodeMaxLength    = 20
	CountryMaxLength       = 100
	RecipientMaxLength     = 200
	NotesMaxLength         = 2000
)

var whitespaceRuns = regexp.MustCompile(`\s+`)

// SanitizeText trims the value, strips null bytes, and collapses internal
// whitespace runs to single spaces.
func SanitizeText(s string) string {
	s = strings.TrimSpace(s)
	s = strings.ReplaceAll(s, "\x00", "")
	s = whitespaceRuns.ReplaceAllString(s, " ")
	return s
}

// SanitizeForm runs every free-text field through SanitizeText. Length
// caps are enforced separately by ValidateContent; sanitization never
// truncates.
func SanitizeForm(form FormState) FormState {
	form.SubmittingFor = SanitizeText(form.SubmittingFor)
	form.SignatureNotes = SanitizeText(form.SignatureNotes)
	form.ApostilleCountry = SanitizeText(form.ApostilleCountry)
	form.NotarizationState = SanitizeText(form.NotarizationState)
	form.NotarizationCountry = SanitizeText(form.NotarizationCountry)

	form.MailingRecipient = SanitizeText(form.MailingRecipient)
	form.MailingCompany = SanitizeText(form.MailingCompany)
	form.MailingAddress = SanitizeText(form.MailingAddress)
	form.MailingCity = SanitizeText(form.MailingCity)
	form.MailingStateProvince = SanitizeText(form.MailingStateProvince)
	form.MailingPostalCode = SanitizeText(form.MailingPostalCode)
	form.MailingCountry = SanitizeText(form.MailingCountry)

	form.CompanyNames = SanitizeText(form.CompanyNames)
	form.AgreementName = SanitizeText(form.AgreementName)
	form.ContractPullDescription = SanitizeText(form.ContractPullDescription)
	form.OtherDescription = SanitizeText(form.OtherDescription)
	return form
}
