// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package validation

import (
	"strings"
	"testing"
)

func TestValidateIdentifier(t *testing.T) {
	valid := []string{
		"kct-a1",
		"class_42",
		"A",
		"0-starts-with-digit",
		strings.Repeat("x", 64),
	}
	for _, id := range valid {
		if err := ValidateIdentifier(id); err != nil {
			t.Errorf("ValidateIdentifier(%q) = %v, want nil", id, err)
		}
	}

	invalid := []string{
		"",
		"-leading-hyphen",
		"_leading_underscore",
		"has space",
		"has/slash",
		"has.dot",
		"../traversal",
		strings.Repeat("x", 65),
	}
	for _, id := range invalid {
		if err := ValidateIdentifier(id); err == nil {
			t.Errorf("ValidateIdentifier(%q) = nil, want error", id)
		}
	}
}

func TestValidateIdentifiersListsAllInvalid(t *testing.T) {
	err := ValidateIdentifiers([]string{"ok-1", "bad id", "ok-2", "also/bad"})
	if err == nil {
		t.Fatal("expected an error")
	}
	msg := err.Error()
	if !strings.Contains(msg, "bad id") || !strings.Contains(msg, "also/bad") {
		t.Errorf("error should name every invalid id, got: %s", msg)
	}
	if strings.Contains(msg, "ok-1") {
		t.Errorf("error should not name valid ids, got: %s", msg)
	}

	if err := ValidateIdentifiers([]string{"ok-1", "ok-2"}); err != nil {
		t.Errorf("all-valid list should pass, got %v", err)
	}
	if err := ValidateIdentifiers(nil); err != nil {
		t.Errorf("empty list should pass, got %v", err)
	}
}

func TestValidateVersionLabel(t *testing.T) {
	valid := []string{"v1", "v2.1", "v10.3.2", "v0.0.0"}
	for _, label := range valid {
		if err := ValidateVersionLabel(label); err != nil {
			t.Errorf("ValidateVersionLabel(%q) = %v, want nil", label, err)
		}
	}

	invalid := []string{"", "1.0", "v", "v1.2.3.4", "V1.0", "v1.a", "release-1"}
	for _, label := range invalid {
		if err := ValidateVersionLabel(label); err == nil {
			t.Errorf("ValidateVersionLabel(%q) = nil, want error", label)
		}
	}
}

func TestSanitizeLabel(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{"v1.0", "v1.0", false},
		{"V2.1", "v2.1", false},
		{"  v3  ", "v3", false},
		{"1.0", "", true},
		{"", "", true},
	}
	for _, tc := range tests {
		got, err := SanitizeLabel(tc.in)
		if tc.wantErr {
			if err == nil {
				t.Errorf("SanitizeLabel(%q) = %q, want error", tc.in, got)
			}
			continue
		}
		if err != nil {
			t.Errorf("SanitizeLabel(%q) error: %v", tc.in, err)
			continue
		}
		if got != tc.want {
			t.Errorf("SanitizeLabel(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}
