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

import "errors"

// Error taxonomy crossing the engine boundary. Every internal failure is
// classified into one of these kinds before it reaches a caller; storage and
// transport errors never leak through.
var (
	// ErrInvalidInput indicates malformed caller input (empty doc ID, bad
	// chunk parameters). Rejected before any side effect.
	ErrInvalidInput = errors.New("invalid input")

	// ErrTenantNotFound indicates no tenant exists for the given client ID.
	ErrTenantNotFound = errors.New("tenant not found")

	// ErrTenantSuspended indicates the tenant exists but is suspended and
	// accepts no ingestions or queries, independent of remaining quota.
	ErrTenantSuspended = errors.New("tenant suspended")

	// ErrQuotaExceeded indicates a plan limit was hit. Wrapped variants in the
	// quota package say which limit.
	ErrQuotaExceeded = errors.New("quota exceeded")

	// ErrEmbeddingUnavailable indicates the embedding backend could not be
	// reached or failed to produce vectors. Fatal at startup.
	ErrEmbeddingUnavailable = errors.New("embedding service unavailable")

	// ErrCompletionUnavailable indicates the completion backend failed after
	// all retries. The synthesizer converts this into a degraded answer.
	ErrCompletionUnavailable = errors.New("completion service unavailable")
)
