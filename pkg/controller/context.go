package controller

import (
	"github.com/downfa11-org/journal/pkg/journal"
	"github.com/google/uuid"
)

// ClientContext holds the readers a console client opened.
type ClientContext struct {
	Readers map[string]*journal.Reader[string]
	Last    string
}

func NewClientContext() *ClientContext {
	return &ClientContext{
		Readers: make(map[string]*journal.Reader[string]),
	}
}

func (ctx *ClientContext) addReader(r *journal.Reader[string]) string {
	id := uuid.New().String()
	ctx.Readers[id] = r
	ctx.Last = id
	return id
}

// reader resolves an id, falling back to the most recently opened reader.
func (ctx *ClientContext) reader(id string) (*journal.Reader[string], string, bool) {
	if id == "" {
		id = ctx.Last
	}
	r, ok := ctx.Readers[id]
	return r, id, ok
}

func (ctx *ClientContext) removeReader(id string) {
	delete(ctx.Readers, id)
	if ctx.Last == id {
		ctx.Last = ""
	}
}

// Close closes every reader of the client.
func (ctx *ClientContext) Close() {
	for id, r := range ctx.Readers {
		_ = r.Close()
		delete(ctx.Readers, id)
	}
	ctx.Last = ""
}
