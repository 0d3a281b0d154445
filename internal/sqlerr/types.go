package sqlerr

import "fmt"

// Code is the category of a driver error, independent of the SQLSTATE
// details the driver reports.
type Code string

const (
	Other               Code = "other"
	NotNullViolation    Code = "not_null_violation"
	ForeignKeyViolation Code = "foreign_key_violation"
	UniqueViolation     Code = "unique_violation"
	CheckViolation      Code = "check_violation"
	ExclusionViolation  Code = "exclusion_violation"
	InvalidText         Code = "invalid_text_representation"
	StringTooLong       Code = "string_data_right_truncation"
)

// Severity mirrors the PostgreSQL severity levels.
type Severity string

const (
	SeverityError   Severity = "ERROR"
	SeverityFatal   Severity = "FATAL"
	SeverityPanic   Severity = "PANIC"
	SeverityWarning Severity = "WARNING"
	SeverityNotice  Severity = "NOTICE"
	SeverityDebug   Severity = "DEBUG"
	SeverityInfo    Severity = "INFO"
	SeverityLog     Severity = "LOG"
)

// SQLSTATE values we branch on.
const (
	sqlStateNotNullViolation    = "23502"
	sqlStateForeignKeyViolation = "23503"
	sqlStateUniqueViolation     = "23505"
	sqlStateCheckViolation      = "23514"
	sqlStateExclusionViolation  = "23P01"
	sqlStateInvalidText         = "22P02"
	sqlStateStringTooLong       = "22001"
)

// Error is a normalised PostgreSQL error.
type Error struct {
	Code           Code
	Severity       Severity
	DatabaseCode   string
	Message        string
	SchemaName     string
	TableName      string
	ColumnName     string
	DataTypeName   string
	ConstraintName string
	driverErr      error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s %s: %s", e.Severity, e.DatabaseCode, e.Message)
}

func (e *Error) Unwrap() error {
	return e.driverErr
}

// MapCode converts a SQLSTATE into a Code.
func MapCode(sqlState string) Code {
	switch sqlState {
	case sqlStateNotNullViolation:
		return NotNullViolation
	case sqlStateForeignKeyViolation:
		return ForeignKeyViolation
	case sqlStateUniqueViolation:
		return UniqueViolation
	case sqlStateCheckViolation:
		return CheckViolation
	case sqlStateExclusionViolation:
		return ExclusionViolation
	case sqlStateInvalidText:
		return InvalidText
	case sqlStateStringTooLong:
		return StringTooLong
	default:
		return Other
	}
}

// MapSeverity converts the driver's severity string. Unknown values map to
// SeverityError.
func MapSeverity(severity string) Severity {
	switch Severity(severity) {
	case SeverityFatal, SeverityPanic, SeverityWarning, SeverityNotice,
		SeverityDebug, SeverityInfo, SeverityLog:
		return Severity(severity)
	default:
		return SeverityError
	}
}

// IsConstraintViolation reports whether code is an integrity constraint
// class the caller may want to turn into a business outcome.
func IsConstraintViolation(code Code) bool {
	switch code {
	case UniqueViolation, ForeignKeyViolation, NotNullViolation, CheckViolation, ExclusionViolation:
		return true
	}
	return false
}
