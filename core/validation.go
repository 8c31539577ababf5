// Copyright 2025 ChatDocs
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package core

import (
	"fmt"
	"strings"
)

const maxDocIDLength = 256

// ValidateClientID validates a tenant identifier.
//
// Client IDs are embedded in storage keys, so the key separator is not
// allowed inside them: "client_a" must never share a key prefix with
// "client_a:x".
func ValidateClientID(clientID string) error {
	if strings.TrimSpace(clientID) == "" {
		return fmt.Errorf("%w: client id cannot be empty", ErrInvalidInput)
	}
	if strings.ContainsRune(clientID, ':') {
		return fmt.Errorf("%w: client id cannot contain ':'", ErrInvalidInput)
	}
	return nil
}

// ValidateDocumentID validates a tenant-scoped document identifier.
//
// Document IDs are embedded in storage keys, so the key separator is not
// allowed inside them.
func ValidateDocumentID(docID string) error {
	if strings.TrimSpace(docID) == "" {
		return fmt.Errorf("%w: document id cannot be empty", ErrInvalidInput)
	}
	if len(docID) > maxDocIDLength {
		return fmt.Errorf("%w: document id exceeds %d characters", ErrInvalidInput, maxDocIDLength)
	}
	if strings.ContainsRune(docID, ':') {
		return fmt.Errorf("%w: document id cannot contain ':'", ErrInvalidInput)
	}
	return nil
}

// ValidateDocumentText validates raw document content before chunking.
func ValidateDocumentText(text string) error {
	if strings.TrimSpace(text) == "" {
		return fmt.Errorf("%w: document text cannot be empty", ErrInvalidInput)
	}
	return nil
}

// ValidateQueryText validates a user query before retrieval.
func ValidateQueryText(query string) error {
	if strings.TrimSpace(query) == "" {
		return fmt.Errorf("%w: query cannot be empty", ErrInvalidInput)
	}
	return nil
}

// ValidateTenant validates a Tenant according to domain rules.
//
// Validation rules:
//   - ClientID must not be empty
//   - Plan must be a known tier
//   - Status must be active or suspended
//
// NOT validated:
//   - CompanyName and ContactEmail (informational, set by the admin layer)
//   - Limits (negative means unlimited)
func ValidateTenant(tenant *Tenant) error {
	if tenant == nil {
		return fmt.Errorf("%w: tenant is nil", ErrInvalidInput)
	}
	if err := ValidateClientID(tenant.ClientID); err != nil {
		return err
	}
	switch tenant.Plan {
	case PlanFree, PlanBasic, PlanPro, PlanEnterprise:
	default:
		return fmt.Errorf("%w: unknown plan %d", ErrInvalidInput, tenant.Plan)
	}
	switch tenant.Status {
	case StatusActive, StatusSuspended:
	default:
		return fmt.Errorf("%w: unknown status %d", ErrInvalidInput, tenant.Status)
	}
	return nil
}
