package flags

import (
	"fmt"
	"regexp"
	"strings"
	"sync"

	"subquestion-challenge-service/internal/domain"
)

// Comparator decides whether a submission matches a flag.
type Comparator interface {
	Compare(flag domain.Flag, provided string) (bool, error)
}

// ComparatorFunc adapts a function to Comparator.
type ComparatorFunc func(flag domain.Flag, provided string) (bool, error)

func (f ComparatorFunc) Compare(flag domain.Flag, provided string) (bool, error) {
	return f(flag, provided)
}

// Registry routes comparisons by flag type.
type Registry struct {
	mu          sync.RWMutex
	comparators map[string]Comparator
}

// NewRegistry returns a registry with the static and regex comparators installed.
func NewRegistry() *Registry {
	return &Registry{
		comparators: map[string]Comparator{
			domain.FlagTypeStatic: ComparatorFunc(compareStatic),
			domain.FlagTypeRegex:  ComparatorFunc(compareRegex),
		},
	}
}

// Register installs or replaces the comparator for a flag type.
func (r *Registry) Register(flagType string, c Comparator) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.comparators[flagType] = c
}

// Compare looks up the flag's comparator and applies it.
func (r *Registry) Compare(flag domain.Flag, provided string) (bool, error) {
	r.mu.RLock()
	c, ok := r.comparators[flag.Type]
	r.mu.RUnlock()
	if !ok {
		return false, fmt.Errorf("%w: %q", domain.ErrUnknownFlagType, flag.Type)
	}
	return c.Compare(flag, provided)
}

func compareStatic(flag domain.Flag, provided string) (bool, error) {
	if flag.Data == domain.FlagDataCaseInsensitive {
		return strings.EqualFold(flag.Content, provided), nil
	}
	return flag.Content == provided, nil
}

func compareRegex(flag domain.Flag, provided string) (bool, error) {
	pattern := "^(?:" + flag.Content + ")$"
	if flag.Data == domain.FlagDataCaseInsensitive {
		pattern = "(?i)" + pattern
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		// a broken pattern never matches
		return false, nil
	}
	return re.MatchString(provided), nil
}
