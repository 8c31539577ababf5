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


package badger

import "github.com/chatdocs/ragengine/storage"

// Repositories bundles the three repository views over one backend.
type Repositories struct {
	Tenants   storage.TenantRepository
	Documents storage.DocumentRepository
	Usage     storage.UsageRepository
	Backend   *Backend
}

// Close closes the underlying backend.
func (r *Repositories) Close() error {
	return r.Backend.Close()
}

// NewRepositories creates all repositories over an already-open backend.
func NewRepositories(backend *Backend) *Repositories {
	return &Repositories{
		Tenants:   NewTenantRepository(backend),
		Documents: NewDocumentRepository(backend),
		Usage:     NewUsageRepository(backend),
		Backend:   backend,
	}
}

// NewMemoryRepositories creates in-memory repositories for testing.
// Caller must close the result when done.
func NewMemoryRepositories() (*Repositories, error) {
	backend, err := OpenBackend("", true)
	if err != nil {
		return nil, err
	}
	return NewRepositories(backend), nil
}
