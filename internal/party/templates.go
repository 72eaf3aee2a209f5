package party

import (
	"encoding/json"
	"os"

	"github.com/pkg/errors"
)

// TemplateLane is one lane blueprint within a template
type TemplateLane struct {
	Key      string `json:"key"`
	Name     string `json:"name"`
	Emoji    string `json:"emoji"`
	Capacity int    `json:"capacity"`
}

// Template is an externally configured blueprint for an event
type Template struct {
	ID       string         `json:"id"`
	Name     string         `json:"name"`
	ImageURL string         `json:"image_url"`
	Lanes    []TemplateLane `json:"lanes"`
}

// TemplateSet is the immutable template configuration, loaded once at
// startup and passed by reference into the lifecycle manager
type TemplateSet struct {
	byID  map[string]Template
	order []Template
}

type templateFile struct {
	Events []Template `json:"events"`
}

// LoadTemplates reads and validates the template configuration
func LoadTemplates(path string) (*TemplateSet, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read templates file")
	}

	var file templateFile
	if err := json.Unmarshal(data, &file); err != nil {
		return nil, errors.Wrap(err, "failed to parse templates file")
	}

	set := &TemplateSet{byID: make(map[string]Template, len(file.Events))}
	for _, tpl := range file.Events {
		if err := validateTemplate(tpl); err != nil {
			return nil, errors.Wrapf(err, "template %q", tpl.ID)
		}
		if _, dup := set.byID[tpl.ID]; dup {
			return nil, errors.Errorf("duplicate template id %q", tpl.ID)
		}
		set.byID[tpl.ID] = tpl
		set.order = append(set.order, tpl)
	}
	if len(set.order) == 0 {
		return nil, errors.New("no event templates configured")
	}
	return set, nil
}

func validateTemplate(tpl Template) error {
	if tpl.ID == "" || tpl.Name == "" {
		return errors.New("id and name are required")
	}
	if len(tpl.Lanes) == 0 {
		return errors.New("at least one lane is required")
	}
	for _, lane := range tpl.Lanes {
		if lane.Key == "" || lane.Name == "" {
			return errors.Errorf("lane %q needs a key and a name", lane.Key)
		}
		if lane.Capacity < 0 {
			return errors.Errorf("lane %q has a negative capacity", lane.Key)
		}
	}
	return nil
}

// Get looks up a template by id
func (s *TemplateSet) Get(id string) (Template, bool) {
	tpl, ok := s.byID[id]
	return tpl, ok
}

// All returns the templates in configuration order
func (s *TemplateSet) All() []Template {
	return s.order
}
