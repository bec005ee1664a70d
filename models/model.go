// Package models - Definitions for model output class styles and sets.
package models

// ModelFamily is the family of models.
type ModelFamily string

const (
	// ModelFamilyVOC is the Pascal VOC model family: 20 classes + background.
	ModelFamilyVOC ModelFamily = "voc"
)
