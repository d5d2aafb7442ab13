package controller_test

import (
	"strings"
	"testing"

	"github.com/downfa11-org/journal/pkg/codec"
	"github.com/downfa11-org/journal/pkg/config"
	"github.com/downfa11-org/journal/pkg/controller"
	"github.com/downfa11-org/journal/pkg/journal"
	"github.com/downfa11-org/journal/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newHandler(t *testing.T) (*controller.CommandHandler, *controller.ClientContext) {
	t.Helper()
	cfg := config.Default()
	cfg.Name = "console"
	cfg.StorageLevel = types.StorageMemory
	cfg.MaxSegmentSize = 256

	j, err := journal.Open(cfg, codec.String())
	require.NoError(t, err)
	t.Cleanup(func() { _ = j.Close() })

	ctx := controller.NewClientContext()
	t.Cleanup(ctx.Close)
	return controller.NewCommandHandler(j), ctx
}

func TestHandleCommand_AppendReadNext(t *testing.T) {
	ch, ctx := newHandler(t)

	assert.Equal(t, "OK index=1", ch.HandleCommand("APPEND message=hello world", ctx))
	assert.Equal(t, "OK index=2", ch.HandleCommand("append message=second", ctx))
	assert.Equal(t, "1: hello world", ch.HandleCommand("READ index=1", ctx))
	assert.True(t, strings.HasPrefix(ch.HandleCommand("READ index=9", ctx), "ERROR:"))

	resp := ch.HandleCommand("OPEN index=1", ctx)
	require.True(t, strings.HasPrefix(resp, "OK reader="), resp)
	require.Len(t, ctx.Readers, 1)

	assert.Equal(t, "1: hello world\n2: second", ch.HandleCommand("NEXT", ctx))
	assert.Equal(t, "(no entries) next=3", ch.HandleCommand("NEXT", ctx))
}

func TestHandleCommand_CommittedReader(t *testing.T) {
	ch, ctx := newHandler(t)
	for rep := 0; rep < 3; rep++ {
		ch.HandleCommand("APPEND message=x", ctx)
	}

	resp := ch.HandleCommand("OPEN mode=commits", ctx)
	require.True(t, strings.HasPrefix(resp, "OK reader="), resp)
	id := strings.Fields(strings.TrimPrefix(resp, "OK reader="))[0]

	assert.Equal(t, "(no entries) next=1", ch.HandleCommand("NEXT reader="+id, ctx))
	assert.Equal(t, "OK last=3 commit=2", ch.HandleCommand("COMMIT index=2", ctx))
	assert.Equal(t, "1: x\n2: x", ch.HandleCommand("NEXT reader="+id, ctx))

	assert.Equal(t, "OK reader="+id+" closed", ch.HandleCommand("CLOSE reader="+id, ctx))
	assert.Empty(t, ctx.Readers)
	assert.True(t, strings.HasPrefix(ch.HandleCommand("NEXT reader="+id, ctx), "ERROR:"))
}

func TestHandleCommand_TruncateResetCompact(t *testing.T) {
	ch, ctx := newHandler(t)
	for rep := 0; rep < 20; rep++ {
		ch.HandleCommand("APPEND message=entry", ctx)
	}

	assert.Equal(t, "OK last=15 commit=0", ch.HandleCommand("TRUNCATE index=15", ctx))
	assert.Equal(t, "OK last=9 commit=0", ch.HandleCommand("RESET index=10", ctx))
	assert.Equal(t, "OK last=9 commit=5", ch.HandleCommand("COMMIT index=5", ctx))
	assert.True(t, strings.HasPrefix(ch.HandleCommand("TRUNCATE index=2", ctx), "ERROR:"))

	resp := ch.HandleCommand("COMPACT index=6", ctx)
	assert.True(t, strings.HasPrefix(resp, "OK removed="), resp)

	stat := ch.HandleCommand("STAT", ctx)
	assert.Contains(t, stat, "journal=console")
	assert.Contains(t, stat, "last=9")
	assert.Contains(t, stat, "commit=5")
}

func TestHandleCommand_Errors(t *testing.T) {
	ch, ctx := newHandler(t)

	tests := []string{
		"",
		"APPEND",
		"READ",
		"READ index=abc",
		"COMMIT",
		"NEXT",
		"CLOSE reader=missing",
		"OPEN mode=sideways",
		"FROB",
	}
	for _, cmd := range tests {
		t.Run(cmd, func(t *testing.T) {
			resp := ch.HandleCommand(cmd, ctx)
			assert.True(t, strings.HasPrefix(resp, "ERROR:"), "command %q returned %q", cmd, resp)
		})
	}
}

func TestHandleCommand_Help(t *testing.T) {
	ch, ctx := newHandler(t)
	help := ch.HandleCommand("help", ctx)
	for _, name := range []string{"APPEND", "OPEN", "NEXT", "COMMIT", "TRUNCATE", "RESET", "COMPACT", "STAT", "EXIT"} {
		assert.Contains(t, help, name)
	}
}
