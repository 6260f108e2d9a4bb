package intake

import (
	"fmt"
	"regexp"
	"strings"
)

// FieldError names a required field that is missing or unusable, with the
// human-readable label shown to the user.
type FieldError struct {
	Field   FieldID `json:"field"`
	Message string  `json:"message"`
}

// ValidationError reports every missing required field at once, not just
// the first. Fields preserves form order so a caller can highlight and
// scroll to the first offender.
type ValidationError struct {
	Fields []FieldError
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("form incomplete: %d required field(s) missing", len(e.Fields))
}

// ContentError reports length and format violations found at the final
// pre-persist gate. These block submission; values are never truncated.
type ContentError struct {
	Problems []string
}

func (e *ContentError) Error() string {
	return "content validation failed: " + strings.Join(e.Problems, "; ")
}

var fieldLabels = map[FieldID]string{
	FieldHelpType:             "Select help type",
	FieldFileToSign:           "Upload file to sign",
	FieldSignatureType:        "Select signature type",
	FieldWetInkOptions:        "Select Wet Ink options",
	FieldScannedCopy:          "Scanned copy preference",
	FieldWetInkOriginals:      "Wet Ink handling",
	FieldNotarizationLocation: "Notarization location",
	FieldWetInkCopies:         "Number of copies",
	FieldNotarizationState:    "Notarization State",
	FieldNotarizationCountry:  "Notarization Country",
	FieldApostilleCountry:     "Apostille country",
	FieldMailingRecipient:     "Recipient name",
	FieldMailingAddress:       "Mailing address",
	FieldMailingCity:          "City",
	FieldMailingStateProv:     "State/Province",
	FieldMailingPostalCode:    "Postal code",
	FieldMailingCountry:       "Mailing country",
	FieldSalesContract:        "Sales contract status",
	FieldOriginatingEnt:       "Originating entity",
	FieldAgreementName:        "Agreement name",
	FieldContractPullDesc:     "Description",
	FieldOtherDescription:     "Description",
}

// FieldLabel returns the display label for a field, falling back to the
// field ID itself.
func FieldLabel(field FieldID) string {
	if label, ok := fieldLabels[field]; ok {
		return label
	}
	return string(field)
}

// ValidateForm re-derives the required-field set from the snapshot and
// checks every member, returning one FieldError per incomplete field.
// This is the same function the progress display uses, re-run from
// scratch at submit time rather than trusting prior UI state.
func ValidateForm(form FormState) []FieldError {
	var errs []FieldError
	for _, field := range ComputeRequiredFields(form) {
		if !IsFieldComplete(field, form) {
			errs = append(errs, FieldError{Field: field, Message: FieldLabel(field)})
		}
	}
	return errs
}

var postalCodePattern = regexp.MustCompile(`^[a-zA-Z0-9\s\-]{1,20}$`)

// ValidateContent checks per-field length caps and formats on the final
// payload, including the generated title. Over-limit values produce a
// named problem instead of silent truncation.
func ValidateContent(form FormState, title string) []string {
	var problems []string

	over := func(value string, limit int, what string) {
		if len(value) > limit {
			problems = append(problems, fmt.Sprintf("%s must be %d characters or less", what, limit))
		}
	}

	over(title, TitleMaxLength, "Title")

	switch form.HelpType {
	case HelpTypeSignature:
		over(form.SignatureNotes, NotesMaxLength, "Additional notes")
		over(form.MailingRecipient, RecipientMaxLength, "Recipient name")
		over(form.MailingAddress, AddressMaxLength, "Street address")
		over(form.MailingCity, CityMaxLength, "City")
		if form.MailingPostalCode != "" && !postalCodePattern.MatchString(form.MailingPostalCode) {
			problems = append(problems, "Postal code contains invalid characters")
		}
		over(form.MailingCountry, CountryMaxLength, "Country")
		over(form.NotarizationCountry, CountryMaxLength, "Notarization country")
		over(form.ApostilleCountry, CountryMaxLength, "Apostille country")
	case HelpTypeContractPull:
		over(form.AgreementName, AgreementNameMaxLength, "Agreement name")
		over(form.CompanyNames, CompanyNameMaxLength, "Company names")
		over(form.ContractPullDescription, DescriptionMaxLength, "Description")
	case HelpTypeOther:
		over(form.OtherDescription, DescriptionMaxLength, "Description")
	}

	return problems
}
