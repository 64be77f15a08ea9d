// Wardsight - Risk-Adaptive Video Stream Analytics
// Copyright 2026 Wardsight Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/wardsight/wardsight

package engine

import "github.com/wardsight/wardsight/internal/models"

// Posture heuristics. The upstream pose model labels postures when it is
// confident; keypoint fallbacks cover unlabeled poses. Pixel coordinates
// grow downward, so larger Y means lower in the image.

const (
	// headBelowShoulderSlack is how far (pixels) the nose must sit below
	// the shoulder before an unlabeled pose counts as sleeping.
	headBelowShoulderSlack = 30.0

	// fallenHipY is the hip height below which an unlabeled pose counts as
	// fallen.
	fallenHipY = 350.0

	// defaultGroundLevel and defaultMinElevation tune the elevated-feet
	// check for the climbing predicate.
	defaultGroundLevel  = 400.0
	defaultMinElevation = 100.0
)

func isSleepingPose(p models.PoseResult) bool {
	if p.Posture == "sleeping" {
		return true
	}
	nose, okN := p.Keypoints["nose"]
	shoulder, okS := p.Keypoints["left_shoulder"]
	if okN && okS {
		return nose.Y > shoulder.Y+headBelowShoulderSlack
	}
	return false
}

func isFallenPose(p models.PoseResult) bool {
	if p.Posture == "fallen" {
		return true
	}
	if hip, ok := p.Keypoints["hip"]; ok {
		return hip.Y > fallenHipY
	}
	return false
}

// isElevated reports whether the lowest foot keypoint sits well above the
// ground line. Missing foot keypoints never count as elevated.
func isElevated(kps map[string]models.Keypoint, groundLevel, minElevation float64) bool {
	if groundLevel <= 0 {
		groundLevel = defaultGroundLevel
	}
	if minElevation <= 0 {
		minElevation = defaultMinElevation
	}

	found := false
	minY := 0.0
	for _, name := range []string{"left_ankle", "right_ankle", "left_foot", "right_foot"} {
		kp, ok := kps[name]
		if !ok {
			continue
		}
		if !found || kp.Y < minY {
			minY = kp.Y
			found = true
		}
	}
	if !found {
		return false
	}
	return groundLevel-minY > minElevation
}
