package crm

import (
	"encoding/json"
	"fmt"
	"strings"
)

// duplicateContactMarker is the literal the CRM embeds in the error body
// when a lead creation collides with an existing contact.
const duplicateContactMarker = "lead-with-same-contact-exists"

// APIError is any non-2xx CRM response. The raw body is kept: operators see
// it in the job's error tail and the duplicate-contact recovery reads it.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("crm: status %d: %s", e.StatusCode, e.Body)
}

// DuplicateContactError is a lead creation rejected because the contact
// already exists. ConflictingEmail is the address the CRM reported, empty
// when the body named none; recovery is only possible when it is set.
type DuplicateContactError struct {
	ConflictingEmail string
	API              *APIError
}

func (e *DuplicateContactError) Error() string {
	return e.API.Error()
}

func (e *DuplicateContactError) Unwrap() error {
	return e.API
}

// classifyError turns a non-2xx response into a typed error. Bodies carrying
// the duplicate-contact marker become DuplicateContactError: the conflicting
// email is read from the structured JSON body when possible, with a raw
// substring scan as fallback for non-JSON bodies.
func classifyError(status int, body []byte) error {
	apiErr := &APIError{StatusCode: status, Body: string(body)}
	if !strings.Contains(apiErr.Body, duplicateContactMarker) {
		return apiErr
	}

	var payload struct {
		Email string `json:"email"`
	}
	if err := json.Unmarshal(body, &payload); err == nil && payload.Email != "" {
		return &DuplicateContactError{ConflictingEmail: payload.Email, API: apiErr}
	}

	if email, ok := extractEmbeddedEmail(apiErr.Body); ok {
		return &DuplicateContactError{ConflictingEmail: email, API: apiErr}
	}
	return &DuplicateContactError{API: apiErr}
}

// extractEmbeddedEmail pulls the value of an `"email":"..."` fragment out of
// a free-text body.
func extractEmbeddedEmail(body string) (string, bool) {
	const marker = `"email":"`
	start := strings.Index(body, marker)
	if start < 0 {
		return "", false
	}
	rest := body[start+len(marker):]
	end := strings.IndexByte(rest, '"')
	if end <= 0 {
		return "", false
	}
	return rest[:end], true
}
