// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package validation provides input validation utilities for
// user-provided identifiers.
//
// Framework IDs, class IDs and version labels arrive over the HTTP API
// and end up in storage keys and log lines. Using these validators
// keeps key prefix scans unambiguous and prevents path-style traversal
// through identifier fields.
package validation

import (
	"fmt"
	"regexp"
	"strings"
)

// identifierPattern matches framework and class identifiers.
// Allows: letters, digits, hyphens, underscores. Must start
// alphanumeric. Max length: 64 characters.
var identifierPattern = regexp.MustCompile(`^[a-zA-Z0-9][a-zA-Z0-9_\-]{0,63}$`)

// labelPattern matches version labels like "v1", "v2.1", "v10.3.2".
var labelPattern = regexp.MustCompile(`^v[0-9]+(\.[0-9]+){0,2}$`)

// ValidateIdentifier validates a framework or class identifier.
//
// Valid identifiers:
//   - 1-64 characters
//   - Letters, digits, hyphens, underscores
//   - First character alphanumeric
//
// Returns an error if the identifier is invalid.
//
// Example:
//
//	if err := validation.ValidateIdentifier(classID); err != nil {
//	    return nil, fmt.Errorf("invalid class id: %w", err)
//	}
func ValidateIdentifier(id string) error {
	if id == "" {
		return fmt.Errorf("identifier cannot be empty")
	}

	if !identifierPattern.MatchString(id) {
		return fmt.Errorf("invalid identifier: %q (must be 1-64 alphanumeric chars, hyphens, or underscores)", id)
	}

	return nil
}

// ValidateIdentifiers validates multiple identifiers. Returns an error
// listing all invalid ones if any fail validation.
func ValidateIdentifiers(ids []string) error {
	var invalid []string
	for _, id := range ids {
		if err := ValidateIdentifier(id); err != nil {
			invalid = append(invalid, id)
		}
	}

	if len(invalid) > 0 {
		return fmt.Errorf("invalid identifiers: %v", invalid)
	}
	return nil
}

// ValidateVersionLabel validates a version label such as "v2.1".
//
// Valid labels are a "v" followed by one to three dot-separated
// numeric segments.
func ValidateVersionLabel(label string) error {
	if label == "" {
		return fmt.Errorf("version label cannot be empty")
	}

	if !labelPattern.MatchString(label) {
		return fmt.Errorf("invalid version label: %q (expected v<major>[.<minor>[.<patch>]])", label)
	}

	return nil
}

// SanitizeLabel normalizes and validates a version label. Returns the
// lowercase label if valid, or an error if invalid.
//
// Use this when accepting labels from operators:
//
//	label, err := validation.SanitizeLabel(userInput)
//	if err != nil {
//	    return err
//	}
func SanitizeLabel(label string) (string, error) {
	normalized := strings.ToLower(strings.TrimSpace(label))
	if err := ValidateVersionLabel(normalized); err != nil {
		return "", err
	}
	return normalized, nil
}
