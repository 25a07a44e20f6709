package relay_test

import (
	"context"
	"testing"

	"github.com/danphilibin/relay/internal/assert"
	"github.com/danphilibin/relay/internal/relay"
	"github.com/danphilibin/relay/pkg/api"
)

func noop(context.Context, *relay.Run) error { return nil }

func TestRegistryRegister(t *testing.T) {
	as := assert.New(t)
	reg := relay.NewRegistry()

	def := &relay.Definition{Title: "Ask Name", Handler: noop}
	as.NoError(reg.Register(def))
	as.Equal(api.Slug("ask-name"), def.Slug)

	err := reg.Register(&relay.Definition{Title: "Ask Name", Handler: noop})
	as.ErrorIs(err, relay.ErrWorkflowExists)

	err = reg.Register(&relay.Definition{Handler: noop})
	as.ErrorIs(err, relay.ErrTitleRequired)

	err = reg.Register(&relay.Definition{Title: "Nothing"})
	as.ErrorIs(err, relay.ErrHandlerRequired)

	err = reg.Register(&relay.Definition{
		Title:   "Bad Input",
		Handler: noop,
		Input: api.InputSchema{
			{Key: "pick", FieldDef: api.FieldDef{
				Type: api.FieldSelect, Label: "Pick",
			}},
		},
	})
	as.ErrorIs(err, api.ErrSelectNoOptions)
}

func TestRegistryGet(t *testing.T) {
	as := assert.New(t)
	reg := relay.NewRegistry()
	as.NoError(reg.Register(&relay.Definition{
		Slug: "refund", Title: "Process Refund", Handler: noop,
	}))

	def, ok := reg.Get("refund")
	as.True(ok)
	as.Equal("Process Refund", def.Title)

	_, ok = reg.Get("Process Refund")
	as.False(ok)

	as.NoError(reg.Register(&relay.Definition{
		Title: "Ask Name", Handler: noop,
	}))
	def, ok = reg.Get("Ask Name")
	as.True(ok)
	as.Equal(api.Slug("ask-name"), def.Slug)

	_, ok = reg.Get("missing")
	as.False(ok)
}

func TestRegistryList(t *testing.T) {
	as := assert.New(t)
	reg := relay.NewRegistry()
	for _, title := range []string{"Zeta", "Alpha", "Mid"} {
		as.NoError(reg.Register(&relay.Definition{
			Title: title, Description: title + " flow", Handler: noop,
		}))
	}

	defs := reg.List()
	as.Len(defs, 3)
	as.Equal(api.Slug("alpha"), defs[0].Slug)
	as.Equal(api.Slug("mid"), defs[1].Slug)
	as.Equal(api.Slug("zeta"), defs[2].Slug)

	info := defs[0].Info()
	as.Equal("Alpha", info.Title)
	as.Equal("Alpha flow", info.Description)
}
