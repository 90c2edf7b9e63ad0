package tables

import (
	"fmt"
	"regexp"
	"strings"

	"go.uber.org/zap"
)

// reservedPrefix marks names used internally by index data.
const reservedPrefix = "_i_"

var (
	identRE  = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)
	hiddenRE = regexp.MustCompile(`^_[pi]_`)
)

// checkName validates a node name. Names that are not identifiers are
// accepted with a warning.
func checkName(log *zap.Logger, name string) error {
	switch {
	case name == "":
		return fmt.Errorf("%w: empty name", ErrInvalidName)
	case name == ".":
		return fmt.Errorf("%w: %q", ErrInvalidName, name)
	case strings.Contains(name, "/"):
		return fmt.Errorf("%w: %q contains a slash", ErrInvalidName, name)
	case strings.HasPrefix(name, reservedPrefix):
		return fmt.Errorf("%w: %q uses the reserved prefix %q", ErrInvalidName, name, reservedPrefix)
	}
	if !identRE.MatchString(name) {
		log.Warn("name is not a valid identifier; natural naming will not work",
			zap.String("name", name))
	}
	return nil
}

// IsVisiblePath reports whether no component of path is hidden. Hidden
// names start with "_p_" or "_i_".
func IsVisiblePath(path string) bool {
	for _, part := range strings.Split(path, "/") {
		if hiddenRE.MatchString(part) {
			return false
		}
	}
	return true
}

// translator maps node names to stored names and back.
type translator struct {
	toH5 map[string]string
	toPT map[string]string
}

func newTranslator(m map[string]string) translator {
	t := translator{toH5: map[string]string{}, toPT: map[string]string{}}
	for pt, h5 := range m {
		t.toH5[pt] = h5
		t.toPT[h5] = pt
	}
	return t
}

func (t translator) h5Name(name string) string {
	if h5, ok := t.toH5[name]; ok {
		return h5
	}
	return name
}

func (t translator) ptName(h5 string) string {
	if pt, ok := t.toPT[h5]; ok {
		return pt
	}
	return h5
}
