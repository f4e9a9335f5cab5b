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


// Package source defines the document source collaborators consumed by bulk
// ingestion: fetching a raw page and extracting a runbook from it.
//
// The ingestion executor depends only on these interfaces. The Confluence
// implementation lives in source/confluence; test doubles live in source/mock.
//
// Implementations must be safe for concurrent use: the executor calls them
// from many worker goroutines at once.
package source
