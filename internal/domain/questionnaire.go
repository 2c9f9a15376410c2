package domain

import "strconv"

// Questionnaire types are the two leading digits of a questionnaire id.
// The bands are fixed by the wider census system:
//
//	01-09  household questionnaires
//	11-19  household continuation questionnaires
//	21-29  individual questionnaires
//	31-39  communal establishment individual questionnaires
//	51,53  CCS interview / postback questionnaires
//	71-74  CCS questionnaires
type QuestionnaireType int

// QuestionnaireTypeOf extracts the questionnaire type from the two leading
// digits of a qid. A qid too short or non-numeric yields type 0, which
// classifies as none of the known bands.
func QuestionnaireTypeOf(qid string) QuestionnaireType {
	if len(qid) < 2 {
		return 0
	}

	qt, err := strconv.Atoi(qid[:2])
	if err != nil {
		return 0
	}

	return QuestionnaireType(qt)
}

// IsHousehold reports whether the type is a household questionnaire.
func (qt QuestionnaireType) IsHousehold() bool {
	return qt >= 1 && qt <= 9
}

// IsContinuation reports whether the type is a household continuation
// questionnaire. Continuation questionnaires never receipt a case.
func (qt QuestionnaireType) IsContinuation() bool {
	return qt >= 11 && qt <= 19
}

// IsIndividual reports whether the type is an individual questionnaire,
// either the household-individual or the CE-individual band.
func (qt QuestionnaireType) IsIndividual() bool {
	return (qt >= 21 && qt <= 29) || (qt >= 31 && qt <= 39)
}

// IsCCS reports whether the type belongs to the coverage survey.
func (qt QuestionnaireType) IsCCS() bool {
	return qt == 51 || qt == 53 || (qt >= 71 && qt <= 74)
}
