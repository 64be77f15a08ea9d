// Wardsight - Risk-Adaptive Video Stream Analytics
// Copyright 2026 Wardsight Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/wardsight/wardsight

package models

import "time"

// Frame is a single captured video frame as produced by a capture source.
// Data holds encoded image bytes; the core never inspects pixels itself.
type Frame struct {
	StreamID  string
	Data      []byte
	Format    string // "jpeg", "png"
	Timestamp time.Time
}

// BoundingBox is an axis-aligned detection box in pixel coordinates.
type BoundingBox struct {
	X1 float64 `json:"x1"`
	Y1 float64 `json:"y1"`
	X2 float64 `json:"x2"`
	Y2 float64 `json:"y2"`
}

// DetectedObject is one object reported by the external detector.
type DetectedObject struct {
	ClassName  string      `json:"class_name"`
	Confidence float64     `json:"confidence"`
	BBox       BoundingBox `json:"bbox"`
}

// Keypoint is a named 2D pose landmark in pixel coordinates.
type Keypoint struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// PoseResult is one person's pose estimate. Posture is an optional label
// assigned upstream ("standing", "sitting", "sleeping", "fallen"); rules
// fall back to keypoint heuristics when it is empty.
type PoseResult struct {
	Posture   string              `json:"posture,omitempty"`
	Keypoints map[string]Keypoint `json:"keypoints,omitempty"`
}

// FrameDetections is the per-frame result record consumed by the detection
// engine. Timestamp is the capture time carried end-to-end; dispatch
// completion order is not guaranteed, so the engine orders by this field
// rather than by arrival.
type FrameDetections struct {
	StreamID  string           `json:"stream_id"`
	Timestamp time.Time        `json:"timestamp"`
	Objects   []DetectedObject `json:"detected_objects"`
	Poses     []PoseResult     `json:"pose_results"`
}

// Persons returns the detected objects classified as persons.
func (f *FrameDetections) Persons() []DetectedObject {
	var persons []DetectedObject
	for _, obj := range f.Objects {
		if obj.ClassName == "person" {
			persons = append(persons, obj)
		}
	}
	return persons
}

// HasClass reports whether any detected object matches one of the classes.
func (f *FrameDetections) HasClass(classes []string) bool {
	for _, obj := range f.Objects {
		for _, c := range classes {
			if obj.ClassName == c {
				return true
			}
		}
	}
	return false
}
