package logging

// Standardized field names for structured logging.
// These constants keep log output consistent across pipeline stages so
// runs can be filtered by email, user, or stage.
//
// Privacy rule: transaction amounts are never logged at warn level or
// above. FieldAmount exists for debug-level tracing only.
const (
	FieldEmailID   = "email_id"
	FieldUser      = "user"
	FieldStage     = "stage"
	FieldReason    = "reason"
	FieldMerchant  = "merchant"
	FieldCategory  = "category"
	FieldSubtype   = "subtype"
	FieldMethod    = "extraction_method"
	FieldStatus    = "status"
	FieldRecordID  = "record_id"
	FieldCount     = "count"
	FieldDuration  = "duration_ms"
	FieldOracle    = "oracle"
	FieldAttempt   = "attempt"
	FieldAmount    = "amount" // debug only
	FieldCurrency  = "currency"
	FieldInputFile = "input_file"
	FieldPeriod    = "period"
)
