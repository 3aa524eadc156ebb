// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"

	"github.com/AleutianAI/CurriculumEngine/services/content"
	"github.com/AleutianAI/CurriculumEngine/services/rules"
)

// loadSnapshot reads a content snapshot from a JSON file.
func loadSnapshot(path string) (content.ContentSnapshot, error) {
	var snap content.ContentSnapshot
	raw, err := os.ReadFile(path)
	if err != nil {
		return snap, fmt.Errorf("read content file: %w", err)
	}
	if err := json.Unmarshal(raw, &snap); err != nil {
		return snap, fmt.Errorf("parse content file %s: %w", path, err)
	}
	if snap.SchemaVersion == 0 {
		snap.SchemaVersion = content.SchemaVersion
	}
	return snap, nil
}

// loadClasses reads class facts from a JSON file. The file holds
// either a single object or an array of them.
func loadClasses(path string) ([]rules.ClassFacts, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read classes file: %w", err)
	}
	var many []rules.ClassFacts
	if err := json.Unmarshal(raw, &many); err == nil {
		return many, nil
	}
	var one rules.ClassFacts
	if err := json.Unmarshal(raw, &one); err != nil {
		return nil, fmt.Errorf("parse classes file %s: %w", path, err)
	}
	return []rules.ClassFacts{one}, nil
}

// loadPolicy builds a rule store from the embedded defaults, layering
// the --policy file on top when given.
func loadPolicy() (*rules.Store, error) {
	store, err := rules.NewStore(slog.Default())
	if err != nil {
		return nil, err
	}
	if flagPolicyPath != "" {
		if err := store.LoadFile(flagPolicyPath); err != nil {
			return nil, err
		}
	}
	return store, nil
}

// printJSON writes v as indented JSON to stdout.
func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
