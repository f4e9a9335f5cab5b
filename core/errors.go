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


package core

import "errors"

// Domain validation errors
var (
	// ErrInvalidRunbook indicates a Runbook failed validation.
	ErrInvalidRunbook = errors.New("invalid runbook")

	// ErrInvalidRequest indicates a BulkRequest failed validation.
	ErrInvalidRequest = errors.New("invalid bulk request")

	// ErrEmptyContent indicates the content is empty.
	ErrEmptyContent = errors.New("content cannot be empty")

	// ErrContentTooLarge indicates the raw content exceeds MaxRawContentBytes.
	ErrContentTooLarge = errors.New("content too large")

	// ErrEmptyTitle indicates the runbook title is empty.
	ErrEmptyTitle = errors.New("title cannot be empty")

	// ErrEmptyPageID indicates the source page identifier is empty.
	ErrEmptyPageID = errors.New("page id cannot be empty")

	// ErrTooManyItems indicates a runbook list or tag set exceeds its bound.
	ErrTooManyItems = errors.New("too many items")
)
