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


package storage

import (
	"fmt"

	"github.com/chatdocs/ragengine/core"
)

// MarshalTenant serializes a Tenant to bytes.
func MarshalTenant(tenant *core.Tenant) []byte {
	buf := make([]byte, core.TenantMUS.Size(*tenant))
	core.TenantMUS.Marshal(*tenant, buf)
	return buf
}

// UnmarshalTenant deserializes a Tenant from bytes.
func UnmarshalTenant(data []byte) (*core.Tenant, error) {
	tenant, _, err := core.TenantMUS.Unmarshal(data)
	if err != nil {
		return nil, fmt.Errorf("%w: tenant: %w", ErrSerializationFailed, err)
	}
	return &tenant, nil
}

// MarshalChunk serializes a Chunk to bytes.
func MarshalChunk(chunk *core.Chunk) []byte {
	buf := make([]byte, core.ChunkMUS.Size(*chunk))
	core.ChunkMUS.Marshal(*chunk, buf)
	return buf
}

// UnmarshalChunk deserializes a Chunk from bytes.
func UnmarshalChunk(data []byte) (*core.Chunk, error) {
	chunk, _, err := core.ChunkMUS.Unmarshal(data)
	if err != nil {
		return nil, fmt.Errorf("%w: chunk: %w", ErrSerializationFailed, err)
	}
	return &chunk, nil
}

// MarshalDocumentInfo serializes a DocumentInfo to bytes.
func MarshalDocumentInfo(info *core.DocumentInfo) []byte {
	buf := make([]byte, core.DocumentInfoMUS.Size(*info))
	core.DocumentInfoMUS.Marshal(*info, buf)
	return buf
}

// UnmarshalDocumentInfo deserializes a DocumentInfo from bytes.
func UnmarshalDocumentInfo(data []byte) (*core.DocumentInfo, error) {
	info, _, err := core.DocumentInfoMUS.Unmarshal(data)
	if err != nil {
		return nil, fmt.Errorf("%w: document info: %w", ErrSerializationFailed, err)
	}
	return &info, nil
}

// MarshalUsageCounter serializes a UsageCounter to bytes.
func MarshalUsageCounter(usage *core.UsageCounter) []byte {
	buf := make([]byte, core.UsageCounterMUS.Size(*usage))
	core.UsageCounterMUS.Marshal(*usage, buf)
	return buf
}

// UnmarshalUsageCounter deserializes a UsageCounter from bytes.
func UnmarshalUsageCounter(data []byte) (*core.UsageCounter, error) {
	usage, _, err := core.UsageCounterMUS.Unmarshal(data)
	if err != nil {
		return nil, fmt.Errorf("%w: usage counter: %w", ErrSerializationFailed, err)
	}
	return &usage, nil
}
