package scene

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/stratum-ui/stratum/internal/errors"
	"github.com/stratum-ui/stratum/pkg/shadow"
)

// Scene is one declarative scenario: an initial tree plus scripted steps.
type Scene struct {
	Name  string    `yaml:"name"`
	Root  *NodeSpec `yaml:"root"`
	Steps []Step    `yaml:"steps"`
}

// NodeSpec describes one node of the initial tree (or of an inserted
// subtree). Frame is [x, y, width, height].
type NodeSpec struct {
	Tag       shadow.Tag     `yaml:"tag"`
	Component string         `yaml:"component"`
	Traits    []string       `yaml:"traits"`
	Props     map[string]any `yaml:"props"`
	Frame     []float64      `yaml:"frame"`
	Order     int            `yaml:"order"`
	Children  []*NodeSpec    `yaml:"children"`
}

// Step is one scripted commit. Exactly one of the operation fields is set.
type Step struct {
	Name     string        `yaml:"name"`
	SetProps *SetPropsStep `yaml:"setProps"`
	SetFrame *SetFrameStep `yaml:"setFrame"`
	Insert   *InsertStep   `yaml:"insert"`
	Remove   *RemoveStep   `yaml:"remove"`
	Move     *MoveStep     `yaml:"move"`
}

// SetPropsStep replaces the props of one node.
type SetPropsStep struct {
	Tag   shadow.Tag     `yaml:"tag"`
	Props map[string]any `yaml:"props"`
}

// SetFrameStep replaces the layout frame of one node.
type SetFrameStep struct {
	Tag   shadow.Tag `yaml:"tag"`
	Frame []float64  `yaml:"frame"`
}

// InsertStep adds a new subtree under a parent. An index outside the
// child list appends.
type InsertStep struct {
	Parent shadow.Tag `yaml:"parent"`
	Index  int        `yaml:"index"`
	Node   *NodeSpec  `yaml:"node"`
}

// RemoveStep removes the subtree rooted at Tag.
type RemoveStep struct {
	Tag shadow.Tag `yaml:"tag"`
}

// MoveStep reparents the subtree rooted at Tag under Parent at Index,
// preserving its identity. An index outside the child list appends.
type MoveStep struct {
	Tag    shadow.Tag `yaml:"tag"`
	Parent shadow.Tag `yaml:"parent"`
	Index  int        `yaml:"index"`
}

// Kind returns the step's operation name for logging.
func (st *Step) Kind() string {
	switch {
	case st.SetProps != nil:
		return "setProps"
	case st.SetFrame != nil:
		return "setFrame"
	case st.Insert != nil:
		return "insert"
	case st.Remove != nil:
		return "remove"
	case st.Move != nil:
		return "move"
	}
	return "empty"
}

// Load reads and validates a scene file.
func Load(path string) (*Scene, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.New("E141").
				WithDetail("Scene file " + path + " does not exist")
		}
		return nil, errors.New("E142").Wrap(err)
	}
	s, err := Parse(data)
	if err != nil {
		return nil, err
	}
	if s.Name == "" {
		s.Name = path
	}
	return s, nil
}

// Parse parses and validates scene YAML.
func Parse(data []byte) (*Scene, error) {
	var s Scene
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, errors.New("E142").
			WithDetail("Failed to parse scene YAML: " + err.Error())
	}
	if err := s.validate(); err != nil {
		return nil, err
	}
	return &s, nil
}

func (s *Scene) validate() error {
	if s.Root == nil {
		return errors.New("E142").WithDetail("Scene has no root node")
	}
	seen := make(map[shadow.Tag]bool)
	if err := validateSpec(s.Root, seen); err != nil {
		return err
	}
	for i := range s.Steps {
		if err := s.Steps[i].validate(i); err != nil {
			return err
		}
	}
	return nil
}

func validateSpec(spec *NodeSpec, seen map[shadow.Tag]bool) error {
	if spec.Tag == 0 {
		return errors.New("E142").
			WithDetail("Node " + spec.Component + " has tag 0; tag 0 is reserved")
	}
	if seen[spec.Tag] {
		return errors.New("E142").
			WithDetail(fmt.Sprintf("Tag %d appears twice in the tree", spec.Tag))
	}
	seen[spec.Tag] = true
	if _, err := parseTraits(spec.Traits); err != nil {
		return err
	}
	if len(spec.Frame) != 0 && len(spec.Frame) != 4 {
		return errors.New("E142").
			WithDetail(fmt.Sprintf("Node %d frame must be [x, y, width, height], got %d values",
				spec.Tag, len(spec.Frame)))
	}
	for _, child := range spec.Children {
		if err := validateSpec(child, seen); err != nil {
			return err
		}
	}
	return nil
}

func (st *Step) validate(i int) error {
	ops := 0
	for _, set := range []bool{
		st.SetProps != nil, st.SetFrame != nil,
		st.Insert != nil, st.Remove != nil, st.Move != nil,
	} {
		if set {
			ops++
		}
	}
	if ops != 1 {
		return errors.New("E142").
			WithDetail(fmt.Sprintf("Step %d (%s) must name exactly one operation, got %d", i, st.Name, ops)).
			WithSuggestion("Use one of setProps, setFrame, insert, remove, move per step")
	}
	if st.Insert != nil {
		if st.Insert.Node == nil {
			return errors.New("E142").
				WithDetail(fmt.Sprintf("Step %d inserts without a node", i))
		}
		if err := validateSpec(st.Insert.Node, make(map[shadow.Tag]bool)); err != nil {
			return err
		}
	}
	return nil
}

func parseTraits(names []string) (shadow.Traits, error) {
	var t shadow.Traits
	for _, name := range names {
		switch name {
		case "view":
			t = t.With(shadow.TraitFormsView)
		case "stacking":
			t = t.With(shadow.TraitFormsStackingContext)
		case "hidden":
			t = t.With(shadow.TraitHidden)
		default:
			return 0, errors.New("E142").
				WithDetail("Unknown trait " + name).
				WithSuggestion(`Traits are "view", "stacking", "hidden"`)
		}
	}
	return t, nil
}
