// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package mapping

import "github.com/AleutianAI/CurriculumEngine/services/rules"

// ClassRecord is the slice of a class entity this engine reads and
// writes. The class itself (enrollment, schedule, staffing) is owned
// by the external persistence collaborator; the engine consumes the
// facts and owns only the Applied field.
type ClassRecord struct {
	ClassID string           `json:"class_id"`
	Facts   rules.ClassFacts `json:"facts"`
	Applied *AppliedVersion  `json:"applied,omitempty"`

	// Revision is the store's optimistic-concurrency token.
	Revision int64 `json:"revision"`
}

// Clone returns a deep copy of the record.
func (c *ClassRecord) Clone() *ClassRecord {
	out := *c
	if c.Applied != nil {
		a := *c.Applied
		if c.Applied.LastValidation != nil {
			r := *c.Applied.LastValidation
			a.LastValidation = &r
		}
		if c.Applied.Previous != nil {
			p := *c.Applied.Previous
			a.Previous = &p
		}
		out.Applied = &a
	}
	return &out
}
