package templates

import (
	_ "embed"
	"errors"
	"fmt"
	"sync"

	"gopkg.in/yaml.v3"

	"onepager/internal/domain"
)

//go:embed starters.yaml
var startersYAML []byte

var ErrStarterNotFound = errors.New("starter not found")

// Starter is a named set of prefilled form answers for a common kind of
// one-pager.
type Starter struct {
	ID          string          `yaml:"id" json:"id"`
	Name        string          `yaml:"name" json:"name"`
	Icon        string          `yaml:"icon" json:"icon"`
	Description string          `yaml:"description" json:"description"`
	Form        domain.FormData `yaml:"form" json:"form"`
}

// Apply fills form with the starter's answers. The project name is never
// touched since starters carry only placeholders for it.
func (s Starter) Apply(form *domain.FormData) {
	name := form.ProjectName
	*form = s.Form
	form.ProjectName = name
}

var loadStarters = sync.OnceValues(func() ([]Starter, error) {
	var out []Starter
	if err := yaml.Unmarshal(startersYAML, &out); err != nil {
		return nil, fmt.Errorf("parse starters: %w", err)
	}
	return out, nil
})

// Starters lists the built-in starters in display order.
func Starters() ([]Starter, error) {
	list, err := loadStarters()
	if err != nil {
		return nil, err
	}
	return append([]Starter(nil), list...), nil
}

// LookupStarter returns the starter with the given id.
func LookupStarter(id string) (Starter, error) {
	list, err := loadStarters()
	if err != nil {
		return Starter{}, err
	}
	for _, s := range list {
		if s.ID == id {
			return s, nil
		}
	}
	return Starter{}, fmt.Errorf("%w: %s", ErrStarterNotFound, id)
}
