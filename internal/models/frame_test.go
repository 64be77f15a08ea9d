// Wardsight - Risk-Adaptive Video Stream Analytics
// Copyright 2026 Wardsight Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/wardsight/wardsight

package models

import "testing"

func detections(classes ...string) *FrameDetections {
	det := &FrameDetections{StreamID: "cam-1"}
	for _, c := range classes {
		det.Objects = append(det.Objects, DetectedObject{ClassName: c, Confidence: 0.8})
	}
	return det
}

func TestPersons(t *testing.T) {
	det := detections("person", "cell phone", "person")
	if got := len(det.Persons()); got != 2 {
		t.Errorf("Persons() returned %d, want 2", got)
	}
	if got := len(detections("chair").Persons()); got != 0 {
		t.Errorf("Persons() on no-person frame returned %d, want 0", got)
	}
}

func TestHasClass(t *testing.T) {
	det := detections("person", "cigarette")

	if !det.HasClass([]string{"cigarette", "lighter"}) {
		t.Error("HasClass missed a present class")
	}
	if det.HasClass([]string{"knife"}) {
		t.Error("HasClass matched an absent class")
	}
	if det.HasClass(nil) {
		t.Error("HasClass matched with no classes")
	}
}
