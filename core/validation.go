package core

import (
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

const (
	// MaxRawContentBytes bounds the extracted text of a single runbook.
	MaxRawContentBytes = 1_000_000
	// MaxTitleLength bounds runbook titles.
	MaxTitleLength = 500
	// MaxListItems bounds procedures, troubleshooting steps and prerequisites.
	MaxListItems = 100
	// MaxListItemLength bounds a single list entry.
	MaxListItemLength = 5000
	// MaxTags bounds the tags attached to a runbook.
	MaxTags = 20
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// NormalizeBulkRequest trims page identifiers and applies the default
// concurrency limit when none was given.
func NormalizeBulkRequest(req *BulkRequest) {
	for i, id := range req.PageIDs {
		req.PageIDs[i] = strings.TrimSpace(id)
	}
	req.SpaceKey = strings.TrimSpace(req.SpaceKey)
	if req.ConcurrencyLimit == 0 {
		req.ConcurrencyLimit = DefaultConcurrencyLimit
	}
}

// ValidateBulkRequest normalizes and validates a BulkRequest.
//
// Validation rules:
//   - 1 to 100 page ids, each non-empty and at most 50 characters after trimming
//   - no duplicate page ids
//   - concurrency limit between 1 and 20
func ValidateBulkRequest(req *BulkRequest) error {
	if req == nil {
		return fmt.Errorf("%w: request is nil", ErrInvalidRequest)
	}
	NormalizeBulkRequest(req)
	if err := validate.Struct(req); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidRequest, err)
	}
	return nil
}

// ValidateRunbook validates a Runbook according to domain rules.
//
// Validation rules:
//   - Metadata.PageID and Metadata.Title must not be empty
//   - RawContent must not be empty and must not exceed MaxRawContentBytes
//   - list sections hold at most MaxListItems non-empty entries
//   - at most MaxTags tags
//
// NOT validated (assigned by the index store):
//   - Id
//   - InsertedAt, UpdatedAt
func ValidateRunbook(rb *Runbook) error {
	if rb == nil {
		return fmt.Errorf("%w: runbook is nil", ErrInvalidRunbook)
	}
	if strings.TrimSpace(rb.Metadata.PageID) == "" {
		return fmt.Errorf("%w: %w", ErrInvalidRunbook, ErrEmptyPageID)
	}
	if strings.TrimSpace(rb.Metadata.Title) == "" {
		return fmt.Errorf("%w: %w", ErrInvalidRunbook, ErrEmptyTitle)
	}
	if len(rb.Metadata.Title) > MaxTitleLength {
		return fmt.Errorf("%w: title exceeds %d characters", ErrInvalidRunbook, MaxTitleLength)
	}
	if strings.TrimSpace(rb.RawContent) == "" {
		return fmt.Errorf("%w: %w", ErrInvalidRunbook, ErrEmptyContent)
	}
	if len(rb.RawContent) > MaxRawContentBytes {
		return fmt.Errorf("%w: %w", ErrInvalidRunbook, ErrContentTooLarge)
	}
	if len(rb.Metadata.Tags) > MaxTags {
		return fmt.Errorf("%w: %w: %d tags", ErrInvalidRunbook, ErrTooManyItems, len(rb.Metadata.Tags))
	}
	lists := map[string][]string{
		"procedures":            rb.Procedures,
		"troubleshooting_steps": rb.TroubleshootingSteps,
		"prerequisites":         rb.Prerequisites,
	}
	for name, items := range lists {
		if err := validateList(name, items); err != nil {
			return fmt.Errorf("%w: %w", ErrInvalidRunbook, err)
		}
	}
	return nil
}

func validateList(name string, items []string) error {
	if len(items) > MaxListItems {
		return fmt.Errorf("%w: %s has %d entries", ErrTooManyItems, name, len(items))
	}
	for _, item := range items {
		if strings.TrimSpace(item) == "" {
			return fmt.Errorf("%s: %w", name, ErrEmptyContent)
		}
		if len(item) > MaxListItemLength {
			return fmt.Errorf("%s: entry exceeds %d characters", name, MaxListItemLength)
		}
	}
	return nil
}
