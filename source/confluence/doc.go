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


// Package confluence implements the document source collaborators against
// the Confluence REST API.
//
// # Client
//
// Client fetches pages with basic authentication. Every request passes
// through a circuit breaker, and retryable failures (rate limiting, server
// errors, transport errors) are retried with exponential backoff:
//
//	cfg, err := confluence.ConfigFromEnv()
//	client, err := confluence.NewClient(cfg)
//	page, err := client.FetchPage(ctx, "123456")
//
// Errors returned by the API are reported as *APIError carrying the HTTP
// status code. Use IsRetryable to classify them.
//
// # Extractor
//
// Extractor converts a page's storage-format HTML into plain text and sorts
// its lines into procedures, troubleshooting steps and prerequisites by
// keyword:
//
//	rb, err := confluence.NewExtractor(nil).ExtractRunbook(page)
package confluence
