package controller

import (
	"strings"

	"github.com/user/planbridge/internal/mention"
	"github.com/user/planbridge/internal/types"
)

// View is a render snapshot of the panel. It shares no memory with the
// controller.
type View struct {
	Phase     Phase             `json:"phase"`
	Draft     string            `json:"draft"`
	Cursor    int               `json:"cursor"`
	Messages  []types.Message   `json:"messages"`
	Streaming *types.MessageID  `json:"streaming,omitempty"`
	Completed bool              `json:"completed"`
	ReadOnly  bool              `json:"readOnly"`
	CanSubmit bool              `json:"canSubmit"`
	Copied    bool              `json:"copied"`
	Mention   MentionView       `json:"mention"`
	Models    ModelSelectorView `json:"models"`
}

type MentionView struct {
	mention.State
	Options []mention.Candidate `json:"options,omitempty"`
}

type ModelSelectorView struct {
	Open    bool                     `json:"open"`
	Active  types.APIConfiguration   `json:"active"`
	Chosen  *types.APIConfiguration  `json:"chosen,omitempty"`
	Options []types.APIConfiguration `json:"options,omitempty"`
}

// View returns the current snapshot.
func (c *Controller) View() View {
	v := View{
		Phase:     c.phase,
		Draft:     c.draft,
		Cursor:    c.cursor,
		Messages:  c.transcript.Messages(),
		Completed: c.completed,
		ReadOnly:  c.busy(),
		CanSubmit: !c.busy() && hasText(c.draft),
		Copied:    c.copied,
		Mention: MentionView{
			State:   c.menu.State(),
			Options: c.menu.Options(),
		},
	}
	if msg, ok := c.transcript.Streaming(); ok {
		id := msg.ID
		v.Streaming = &id
	}
	if c.settings != nil {
		v.Models.Active = c.settings.Active()
		v.Models.Options = c.settings.Models()
	}
	if c.selector.open {
		chosen := c.selector.chosen
		v.Models.Open = true
		v.Models.Chosen = &chosen
	}
	return v
}

func hasText(s string) bool {
	return strings.TrimSpace(s) != ""
}
