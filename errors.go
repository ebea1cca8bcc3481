package ldaprecord

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-ldap/ldap/v3"
)

// NotFoundError is returned when a single-result lookup matched no entries.
// It carries the executed filter and search base for diagnostics.
type NotFoundError struct {
	Query  string
	BaseDN string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("no entries found for filter [%s] in [%s]", e.Query, e.BaseDN)
}

// MultipleObjectsFoundError is returned when a lookup expecting at most one
// result found more than one.
type MultipleObjectsFoundError struct {
	Query  string
	BaseDN string
}

func (e *MultipleObjectsFoundError) Error() string {
	return fmt.Sprintf("multiple entries found for filter [%s] in [%s]", e.Query, e.BaseDN)
}

// InvalidUsageError indicates an operation inconsistent with the model's
// declarations, such as date-casting an attribute not declared as a date.
type InvalidUsageError struct {
	Message string
}

func (e *InvalidUsageError) Error() string {
	return e.Message
}

func invalidUsagef(format string, args ...any) *InvalidUsageError {
	return &InvalidUsageError{Message: fmt.Sprintf(format, args...)}
}

// OperationError wraps a directory-layer failure with the operation name,
// the LDAP result code, and the DN involved. The underlying error remains
// reachable through Unwrap, and its message is preserved verbatim in
// Error(), since benign-outcome matching may inspect it.
type OperationError struct {
	Operation  string
	DN         string
	ResultCode uint16
	Cause      error
}

func (e *OperationError) Error() string {
	var b strings.Builder
	b.WriteString("ldap ")
	b.WriteString(e.Operation)
	b.WriteString(" failed")
	if e.ResultCode > 0 {
		fmt.Fprintf(&b, " (code %d)", e.ResultCode)
	}
	if e.DN != "" {
		fmt.Fprintf(&b, " on %s", e.DN)
	}
	if e.Cause != nil {
		b.WriteString(": ")
		b.WriteString(e.Cause.Error())
	}
	return b.String()
}

func (e *OperationError) Unwrap() error {
	return e.Cause
}

// newOperationError wraps err, extracting the LDAP result code when present.
func newOperationError(operation, dn string, err error) *OperationError {
	if err == nil {
		return nil
	}
	opErr := &OperationError{
		Operation: operation,
		DN:        dn,
		Cause:     err,
	}
	if code, ok := resultCode(err); ok {
		opErr.ResultCode = code
	}
	return opErr
}

// resultCode extracts the LDAP result code from an error chain.
func resultCode(err error) (uint16, bool) {
	var ldapErr *ldap.Error
	if errors.As(err, &ldapErr) {
		return ldapErr.ResultCode, true
	}
	return 0, false
}

// hasResultCode reports whether the error chain carries one of the given
// LDAP result codes.
func hasResultCode(err error, codes ...uint16) bool {
	actual, ok := resultCode(err)
	if !ok {
		return false
	}
	for _, code := range codes {
		if actual == code {
			return true
		}
	}
	return false
}

// IsNotFound reports whether err is a NotFoundError.
func IsNotFound(err error) bool {
	var nf *NotFoundError
	return errors.As(err, &nf)
}

// IsMultipleObjectsFound reports whether err is a MultipleObjectsFoundError.
func IsMultipleObjectsFound(err error) bool {
	var mf *MultipleObjectsFoundError
	return errors.As(err, &mf)
}

// IsAlreadyExists reports whether err indicates that the attribute value or
// entry being created already exists on the server.
func IsAlreadyExists(err error) bool {
	return hasResultCode(err,
		ldap.LDAPResultAttributeOrValueExists,
		ldap.LDAPResultEntryAlreadyExists,
	)
}

// IsUnwillingToPerform reports whether err indicates the server refused a
// removal because the value is not present in the requested form.
func IsUnwillingToPerform(err error) bool {
	return hasResultCode(err,
		ldap.LDAPResultUnwillingToPerform,
		ldap.LDAPResultNoSuchAttribute,
	)
}

// truncatedBySizeLimit reports whether err is the server cutting a result
// set at a size limit the client asked for. Partial entries returned with
// such an error are complete up to the limit and safe to use.
func truncatedBySizeLimit(err error, sizeLimit int) bool {
	return sizeLimit > 0 && hasResultCode(err, ldap.LDAPResultSizeLimitExceeded)
}

// isRetryableResultCode reports whether an LDAP result code indicates a
// transient server condition.
func isRetryableResultCode(err error) bool {
	return hasResultCode(err,
		ldap.LDAPResultBusy,
		ldap.LDAPResultUnavailable,
		ldap.LDAPResultServerDown,
		ldap.LDAPResultConnectError,
	)
}

// isRetryableNetworkError classifies non-LDAP errors by message, since the
// transport surfaces raw network failures without result codes.
func isRetryableNetworkError(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	for _, pattern := range []string{
		"connection reset",
		"broken pipe",
		"timeout",
		"network",
		"temporary failure",
	} {
		if strings.Contains(msg, pattern) {
			return true
		}
	}
	return false
}

func isRetryableError(err error) bool {
	return isRetryableResultCode(err) || isRetryableNetworkError(err)
}
