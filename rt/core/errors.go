package core

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrInvalidGeometry           = errors.New("invalid geometry")
	ErrInvalidMaterial           = errors.New("invalid material")
	ErrDanglingMaterialReference = errors.New("dangling material reference")
	ErrSceneValidation           = errors.New("scene validation failed")
	ErrSceneFrozen               = errors.New("scene is finalized")
)

type Category string

const (
	CategoryLight    Category = "light"
	CategoryMaterial Category = "material"
	CategoryPlane    Category = "plane"
	CategorySphere   Category = "sphere"
	CategoryViewport Category = "viewport"
)

// Problem is one offending record found by Finalize. Index is -1 when the
// problem concerns a whole category.
type Problem struct {
	Category Category
	Index    int
	Reason   string
}

func (p Problem) String() string {
	if p.Index < 0 {
		return fmt.Sprintf("%s: %s", p.Category, p.Reason)
	}
	return fmt.Sprintf("%s[%d]: %s", p.Category, p.Index, p.Reason)
}

type SceneValidationError struct {
	Problems []Problem
}

func (e *SceneValidationError) Error() string {
	parts := make([]string, len(e.Problems))
	for i, p := range e.Problems {
		parts[i] = p.String()
	}
	return fmt.Sprintf("%s: %s", ErrSceneValidation, strings.Join(parts, "; "))
}

func (e *SceneValidationError) Unwrap() error { return ErrSceneValidation }

// Indices returns the offending record indices for one category.
func (e *SceneValidationError) Indices(c Category) []int {
	var out []int
	for _, p := range e.Problems {
		if p.Category == c && p.Index >= 0 {
			out = append(out, p.Index)
		}
	}
	return out
}
