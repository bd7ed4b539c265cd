package sharing

import (
	"fmt"
	"strings"
)

// ValidationGroup collects all messages for one entity group so the
// caller sees every problem at once instead of the first.
type ValidationGroup struct {
	Group    string   `json:"group"`
	Messages []string `json:"messages"`
}

// ValidationErrors is returned by validation passes that never fail
// fast. It is only an error when at least one group has messages.
type ValidationErrors struct {
	Groups []ValidationGroup `json:"groups"`
}

func (v *ValidationErrors) Add(group string, messages ...string) {
	if len(messages) == 0 {
		return
	}
	for i := range v.Groups {
		if v.Groups[i].Group == group {
			v.Groups[i].Messages = append(v.Groups[i].Messages, messages...)
			return
		}
	}
	v.Groups = append(v.Groups, ValidationGroup{Group: group, Messages: messages})
}

func (v *ValidationErrors) HasErrors() bool {
	return len(v.Groups) > 0
}

func (v *ValidationErrors) Error() string {
	var parts []string
	for _, g := range v.Groups {
		parts = append(parts, fmt.Sprintf("%s: %s", g.Group, strings.Join(g.Messages, "; ")))
	}
	return "validation failed: " + strings.Join(parts, " | ")
}
