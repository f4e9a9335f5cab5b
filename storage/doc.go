// Copyright 2025 Poiesic Systems
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


// Package storage provides the storage abstraction layer for indexed runbooks.
//
// This package defines repository interfaces that decouple the index store
// from the ingestion and search layers. The BadgerDB implementation lives in
// the badger subpackage.
//
// # Constructor Return Type Pattern
//
// Public constructors in implementation packages return the interface:
//
//	repo, err := badger.NewRunbookRepository(backend)  // returns storage.RunbookRepository
//
// # Data Layout
//
// A runbook is stored as one record keyed by its ID. Its content is split into
// chunks, each stored with its embedding vector under a key that sorts by
// runbook ID and chunk index, so all chunks of one runbook can be replaced in
// a single transaction.
//
// # Usage
//
//	backend, err := badger.OpenBackend("/path/to/db", false)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer backend.Close()
//	repo := badger.NewRunbookRepository(backend)
//
// Use in tests with in-memory storage:
//
//	repo, backend, err := badger.NewMemoryRepository()
//
// # Thread Safety
//
// All repository implementations must be thread-safe and support
// concurrent access from multiple goroutines. The ingestion executor saves
// runbooks from many items at once.
package storage
