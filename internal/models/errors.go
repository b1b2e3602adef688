package models

import (
	"fmt"
	"strings"
)

// MissingAttributeError reports a catalog record (or the whole feed, Position -1)
// lacking a required text attribute. The build is aborted.
type MissingAttributeError struct {
	Position  int
	ID        int
	Attribute string
}

func (e *MissingAttributeError) Error() string {
	if e.Position < 0 {
		return fmt.Sprintf("missing attribute: feed has no %q column", e.Attribute)
	}
	return fmt.Sprintf("missing attribute: record %d (id %d) has no %s", e.Position, e.ID, e.Attribute)
}

// InsufficientDataError reports a corpus too small to produce neighbours.
type InsufficientDataError struct {
	Movies int
	Min    int
}

func (e *InsufficientDataError) Error() string {
	return fmt.Sprintf("insufficient data: %d movie(s), need at least %d", e.Movies, e.Min)
}

// UnknownTitleError reports a query title with no exact match in the index.
// Suggestions are close titles the caller may offer instead.
type UnknownTitleError struct {
	Title       string
	Suggestions []string
}

func (e *UnknownTitleError) Error() string {
	if len(e.Suggestions) == 0 {
		return fmt.Sprintf("unknown title: %q", e.Title)
	}
	return fmt.Sprintf("unknown title: %q (did you mean: %s?)", e.Title, strings.Join(e.Suggestions, ", "))
}

// CorruptIndexError reports a persisted artifact whose parts disagree.
type CorruptIndexError struct {
	BuildID string
	Reason  string
}

func (e *CorruptIndexError) Error() string {
	if e.BuildID == "" {
		return "corrupt index: " + e.Reason
	}
	return fmt.Sprintf("corrupt index %s: %s", e.BuildID, e.Reason)
}
