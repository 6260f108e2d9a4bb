package intake

import "strings"

// ComputeRequiredFields derives the required-field set from the current
// form values. The result is ordered (form order), duplicate-free, and a
// pure function of the snapshot, so progress displays and the submit-time
// validator can never disagree.
func ComputeRequiredFields(form FormState) []FieldID {
	fields := []FieldID{FieldHelpType}

	switch form.HelpType {
	case HelpTypeSignature:
		fields = append(fields, FieldFileToSign, FieldSignatureType)
		if form.SignatureType != SignatureTypeWetInk {
			break
		}
		fields = append(fields, FieldWetInkOptions)

		mailingNeeded := form.hasWetInkOption(WetInkOptionMailOriginals)

		if form.hasWetInkOption(WetInkOptionNotarize) {
			fields = append(fields, FieldNotarizationLocation, FieldWetInkCopies, FieldScannedCopy, FieldWetInkOriginals)

			switch form.NotarizationLocation {
			case LocationUnitedStates:
				fields = append(fields, FieldNotarizationState)
			case LocationOutsideUS:
				fields = append(fields, FieldNotarizationCountry)
			}
			if form.Apostille == "yes" {
				fields = append(fields, FieldApostilleCountry)
			}
			if form.WetInkOriginals == OriginalsMail {
				mailingNeeded = true
			}
		}

		// Two independent triggers, one requirement: the mailing field
		// set appears exactly once no matter which (or both) fired.
		if mailingNeeded {
			fields = append(fields, mailingFields...)
		}

	case HelpTypeContractPull:
		fields = append(fields, FieldSalesContract, FieldOriginatingEnt, FieldAgreementName, FieldContractPullDesc)

	case HelpTypeOther:
		fields = append(fields, FieldOtherDescription)
	}

	return fields
}

var mailingFields = []FieldID{
	FieldMailingRecipient,
	FieldMailingAddress,
	FieldMailingCity,
	FieldMailingStateProv,
	FieldMailingPostalCode,
	FieldMailingCountry,
}

// IsFieldComplete reports whether a single field holds a usable value.
// Free-text fields must be non-blank after trimming; multi-selects need at
// least one entry; the copy count must be a positive integer.
func IsFieldComplete(field FieldID, form FormState) bool {
	switch field {
	case FieldHelpType:
		return form.HelpType != ""
	case FieldFileToSign:
		return len(form.Files) > 0
	case FieldSignatureType:
		return form.SignatureType != ""
	case FieldWetInkOptions:
		return len(form.WetInkOptions) > 0
	case FieldNotarizationLocation:
		return form.NotarizationLocation != ""
	case FieldWetInkCopies:
		return form.WetInkCopies >= 1
	case FieldScannedCopy:
		return form.ScannedCopy != ""
	case FieldWetInkOriginals:
		return form.WetInkOriginals != ""
	case FieldNotarizationState:
		return strings.TrimSpace(form.NotarizationState) != ""
	case FieldNotarizationCountry:
		return strings.TrimSpace(form.NotarizationCountry) != ""
	case FieldApostilleCountry:
		return strings.TrimSpace(form.ApostilleCountry) != ""
	case FieldMailingRecipient:
		return strings.TrimSpace(form.MailingRecipient) != ""
	case FieldMailingAddress:
		return strings.TrimSpace(form.MailingAddress) != ""
	case FieldMailingCity:
		return strings.TrimSpace(form.MailingCity) != ""
	case FieldMailingStateProv:
		return strings.TrimSpace(form.MailingStateProvince) != ""
	case FieldMailingPostalCode:
		return strings.TrimSpace(form.MailingPostalCode) != ""
	case FieldMailingCountry:
		return strings.TrimSpace(form.MailingCountry) != ""
	case FieldSalesContract:
		return form.SalesContract != ""
	case FieldOriginatingEnt:
		return form.OriginatingEntity != ""
	case FieldAgreementName:
		return strings.TrimSpace(form.AgreementName) != ""
	case FieldContractPullDesc:
		return strings.TrimSpace(form.ContractPullDescription) != ""
	case FieldOtherDescription:
		return strings.TrimSpace(form.OtherDescription) != ""
	}
	return false
}

// Progress reports completed and total required field counts plus the
// completion percentage (0 when nothing is required yet).
func Progress(form FormState) (completed, total int, percent float64) {
	required := ComputeRequiredFields(form)
	for _, field := range required {
		if IsFieldComplete(field, form) {
			completed++
		}
	}
	total = len(required)
	if total > 0 {
		percent = float64(completed) / float64(total) * 100
	}
	return completed, total, percent
}

// NextIncompleteField returns the first required field without a usable
// value, in form order, or "" when the form is complete.
func NextIncompleteField(form FormState) FieldID {
	for _, field := range ComputeRequiredFields(form) {
		if !IsFieldComplete(field, form) {
			return field
		}
	}
	return ""
}

// ApplyVisibility clears every field whose section is hidden by the
// current discriminator values. Deselecting an ancestor resets its
// descendants to their zero values, so stale hidden data never leaks into
// a saved draft or a submission.
func ApplyVisibility(form FormState) FormState {
	if form.HelpType != HelpTypeSignature {
		form.Files = nil
		form.SignatureType = ""
		form.NeedsTranslation = false
		form.SignatureNotes = ""
	}
	if form.SignatureType != SignatureTypeWetInk {
		form.WetInkOptions = nil
		form.WetInkOriginals = ""
		form.ScannedCopy = ""
	}
	if !form.hasWetInkOption(WetInkOptionNotarize) {
		form.NotarialActs = nil
		form.Apostille = ""
		form.NotarizationLocation = ""
		form.WetInkCopies = 0
		form.ScannedCopy = ""
		form.WetInkOriginals = ""
	}
	if form.NotarizationLocation != LocationUnitedStates {
		form.NotarizationState = ""
	}
	if form.NotarizationLocation != LocationOutsideUS {
		form.NotarizationCountry = ""
	}
	if form.Apostille != "yes" {
		form.ApostilleCountry = ""
	}
	if form.WetInkOriginals != OriginalsMail && !form.hasWetInkOption(WetInkOptionMailOriginals) {
		form.MailingRecipient = ""
		form.MailingCompany = ""
		form.MailingAddress = ""
		form.MailingCity = ""
		form.MailingStateProvince = ""
		form.MailingPostalCode = ""
		form.MailingCountry = ""
	}
	if form.HelpType != HelpTypeContractPull {
		form.SalesContract = ""
		form.OriginatingEntity = ""
		form.CompanyNames = ""
		form.AgreementName = ""
		form.ContractPullDescription = ""
	}
	if form.HelpType != HelpTypeOther {
		form.OtherDescription = ""
	}
	return form
}
