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


package search

import "errors"

var (
	// ErrRepositoryRequired is returned when a runbook repository is not provided.
	ErrRepositoryRequired = errors.New("runbook repository required")

	// ErrAIProviderRequired is returned when an AI provider is not provided.
	ErrAIProviderRequired = errors.New("AI provider required")

	// ErrEmptyQuery is returned for a blank query.
	ErrEmptyQuery = errors.New("search query cannot be empty")

	// ErrInvalidLimit is returned when the number of hits is not positive.
	ErrInvalidLimit = errors.New("limit must be positive")

	// ErrInvalidSimilarity is returned for a similarity threshold outside [-1, 1].
	ErrInvalidSimilarity = errors.New("similarity threshold must be between -1 and 1")
)
