package app

import "fmt"

type ErrorKind int

const (
	KindValidation ErrorKind = iota
	KindNotFound
	KindForbidden
	KindInvalidTransition
	KindConflict
)

// DomainError is the service-boundary error. The HTTP layer decides how
// each kind renders: field errors redisplay the form, NotFound/Forbidden
// get error pages, InvalidTransition and Conflict become flashes.
type DomainError struct {
	Kind    ErrorKind
	Message string
	Fields  map[string]string
	From    string
	To      string
}

func (e *DomainError) Error() string {
	if e == nil {
		return ""
	}
	return e.Message
}

func validationError(fields map[string]string) *DomainError {
	return &DomainError{Kind: KindValidation, Message: "validation failed", Fields: fields}
}

func notFound(message string) *DomainError {
	return &DomainError{Kind: KindNotFound, Message: message}
}

func forbidden(message string) *DomainError {
	return &DomainError{Kind: KindForbidden, Message: message}
}

func invalidTransition(entity, from, to string) *DomainError {
	return &DomainError{
		Kind:    KindInvalidTransition,
		Message: fmt.Sprintf("cannot change %s status from %q to %q", entity, from, to),
		From:    from,
		To:      to,
	}
}

func conflict(message string) *DomainError {
	return &DomainError{Kind: KindConflict, Message: message}
}
