package scan

import "errors"

// Expected scan outcomes. These are user-facing results, not faults: handlers
// map them to structured failure responses with a reason code, and they never
// surface as generic 500s.
var (
	ErrNotFound             = errors.New("no subject matches this QR code")
	ErrAlreadyCheckedIn     = errors.New("subject is already checked in")
	ErrAlreadyCheckedOut    = errors.New("subject is already checked out")
	ErrAlreadyConsumed      = errors.New("meal already taken today")
	ErrLabNotEligible       = errors.New("lab is not eligible for this meal service")
	ErrVolunteerNotEligible = errors.New("meal redemption is for participants only")
	ErrScannerNotAllowed    = errors.New("scanner is not on the allow-list for this meal service")
	ErrInvalidAction        = errors.New("unknown scan action")
)

// Reason codes for the wire contract.
const (
	ReasonNotFound             = "NotFound"
	ReasonAlreadyCheckedIn     = "AlreadyCheckedIn"
	ReasonAlreadyCheckedOut    = "AlreadyCheckedOut"
	ReasonAlreadyConsumed      = "AlreadyConsumed"
	ReasonLabNotEligible       = "LabNotEligible"
	ReasonVolunteerNotEligible = "VolunteerNotEligible"
	ReasonScannerNotAllowed    = "ScannerNotAllowed"
	ReasonValidationError      = "ValidationError"
)

// Reason maps an expected scan error to its wire reason code. It returns
// ("", false) for infrastructure failures, which callers log and surface as a
// generic try-again message.
func Reason(err error) (string, bool) {
	switch {
	case errors.Is(err, ErrNotFound):
		return ReasonNotFound, true
	case errors.Is(err, ErrAlreadyCheckedIn):
		return ReasonAlreadyCheckedIn, true
	case errors.Is(err, ErrAlreadyCheckedOut):
		return ReasonAlreadyCheckedOut, true
	case errors.Is(err, ErrAlreadyConsumed):
		return ReasonAlreadyConsumed, true
	case errors.Is(err, ErrLabNotEligible):
		return ReasonLabNotEligible, true
	case errors.Is(err, ErrVolunteerNotEligible):
		return ReasonVolunteerNotEligible, true
	case errors.Is(err, ErrScannerNotAllowed):
		return ReasonScannerNotAllowed, true
	case errors.Is(err, ErrInvalidAction):
		return ReasonValidationError, true
	}
	return "", false
}
