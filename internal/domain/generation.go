package domain

import "time"

// Style enumerates the rendering styles a generation can request.
type Style string

const (
	StyleRealistic Style = "realistic"
	StyleArtistic  Style = "artistic"
	StyleCartoon   Style = "cartoon"
	StyleVintage   Style = "vintage"
)

// Styles lists the accepted styles in display order.
var Styles = []Style{StyleRealistic, StyleArtistic, StyleCartoon, StyleVintage}

// ParseStyle reports whether s names a supported style.
func ParseStyle(s string) (Style, bool) {
	for _, style := range Styles {
		if string(style) == s {
			return style, true
		}
	}
	return "", false
}

// GenerationStatus enumerates the lifecycle states of a generation.
type GenerationStatus string

const (
	StatusProcessing GenerationStatus = "processing"
	StatusCompleted  GenerationStatus = "completed"
	StatusFailed     GenerationStatus = "failed"
)

// Terminal reports whether the status can no longer change.
func (s GenerationStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// Generation is a single simulated image generation job owned by one user.
type Generation struct {
	ID           string
	UserID       int64
	Prompt       string
	Style        Style
	Status       GenerationStatus
	OriginalPath string
	ResultPath   *string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// OwnedBy reports whether the generation belongs to userID.
func (g Generation) OwnedBy(userID int64) bool {
	return g.UserID == userID
}

// NewGeneration carries the fields required to create a generation row.
type NewGeneration struct {
	ID           string
	UserID       int64
	Prompt       string
	Style        Style
	OriginalPath string
}

// ValidateTransition checks a terminal write against the result path invariant.
func ValidateTransition(status GenerationStatus, resultPath *string) error {
	switch status {
	case StatusCompleted:
		if resultPath == nil || *resultPath == "" {
			return ErrInvalidTransition
		}
	case StatusFailed:
		if resultPath != nil {
			return ErrInvalidTransition
		}
	default:
		return ErrInvalidTransition
	}
	return nil
}
