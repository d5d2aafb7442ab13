package controller

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/downfa11-org/journal/pkg/journal"
	"github.com/downfa11-org/journal/pkg/types"
	"github.com/downfa11-org/journal/util"
)

const DefaultMaxRead = 100

type CommandHandler struct {
	Journal *journal.Journal[string]
}

func NewCommandHandler(j *journal.Journal[string]) *CommandHandler {
	return &CommandHandler{Journal: j}
}

func (ch *CommandHandler) logCommandResult(cmd, response string) {
	status := "SUCCESS"
	if strings.HasPrefix(response, "ERROR:") {
		status = "FAILURE"
	}
	cleanResponse := strings.ReplaceAll(response, "\n", " ")
	util.Debug("status: '%s', command: '%s' to Response '%s'", status, cmd, cleanResponse)
}

// HandleCommand executes one console command and returns its response.
func (ch *CommandHandler) HandleCommand(rawCmd string, ctx *ClientContext) string {
	cmd := strings.TrimSpace(rawCmd)
	if cmd == "" {
		resp := "ERROR: empty command"
		ch.logCommandResult(rawCmd, resp)
		return resp
	}

	name, rest, _ := strings.Cut(cmd, " ")
	args := parseKeyValueArgs(rest)

	var resp string
	switch strings.ToUpper(name) {
	case "HELP":
		resp = ch.handleHelp()
	case "APPEND":
		resp = ch.handleAppend(args)
	case "READ":
		resp = ch.handleRead(args)
	case "OPEN":
		resp = ch.handleOpen(args, ctx)
	case "NEXT":
		resp = ch.handleNext(args, ctx)
	case "CLOSE":
		resp = ch.handleClose(args, ctx)
	case "COMMIT":
		resp = ch.withIndex("COMMIT", args, func(index uint64) error {
			return ch.Journal.Writer().Commit(index)
		})
	case "TRUNCATE":
		resp = ch.withIndex("TRUNCATE", args, func(index uint64) error {
			return ch.Journal.Writer().Truncate(index)
		})
	case "RESET":
		resp = ch.withIndex("RESET", args, func(index uint64) error {
			return ch.Journal.Writer().Reset(index)
		})
	case "COMPACT":
		resp = ch.handleCompact(args)
	case "STAT":
		resp = ch.handleStat()
	default:
		resp = "ERROR: unknown command: " + cmd
	}

	ch.logCommandResult(rawCmd, resp)
	return resp
}

func (ch *CommandHandler) handleHelp() string {
	return `Available commands:
APPEND message=<text> - append an entry
READ index=<N> - read a single entry
OPEN [index=<N>] [mode=<all|commits>] - open a reader (default index=1, mode=all)
NEXT [reader=<id>] [max=<N>] - read up to N entries from a reader (default=100)
CLOSE [reader=<id>] - close a reader
COMMIT index=<N> - raise the commit index
TRUNCATE index=<N> - discard entries above index
RESET index=<N> - make index the next index to write
COMPACT index=<N> - remove segments below index
STAT - show journal state
HELP - show this help
EXIT - exit`
}

func (ch *CommandHandler) handleAppend(args map[string]string) string {
	message, ok := args["message"]
	if !ok || message == "" {
		return "ERROR: missing message parameter. Expected: APPEND message=<text>"
	}
	indexed, err := ch.Journal.Writer().Append(message)
	if err != nil {
		return fmt.Sprintf("ERROR: %v", err)
	}
	return fmt.Sprintf("OK index=%d", indexed.Index)
}

func (ch *CommandHandler) handleRead(args map[string]string) string {
	index, err := requireIndex("READ", args)
	if err != nil {
		return err.Error()
	}
	entry, ok, err := ch.Journal.Get(index)
	if err != nil {
		return fmt.Sprintf("ERROR: %v", err)
	}
	if !ok {
		return fmt.Sprintf("ERROR: entry %d not found", index)
	}
	return formatEntry(entry)
}

func (ch *CommandHandler) handleOpen(args map[string]string, ctx *ClientContext) string {
	index := uint64(1)
	if s, ok := args["index"]; ok {
		n, err := strconv.ParseUint(s, 10, 64)
		if err != nil {
			return "ERROR: index must be a non-negative integer"
		}
		index = n
	}
	mode, err := types.ParseReaderMode(args["mode"])
	if err != nil {
		return fmt.Sprintf("ERROR: %v", err)
	}

	r, err := ch.Journal.OpenReader(index, mode)
	if err != nil {
		return fmt.Sprintf("ERROR: %v", err)
	}
	id := ctx.addReader(r)
	return fmt.Sprintf("OK reader=%s next=%d mode=%s", id, r.NextIndex(), mode)
}

func (ch *CommandHandler) handleNext(args map[string]string, ctx *ClientContext) string {
	r, id, ok := ctx.reader(args["reader"])
	if !ok {
		return "ERROR: unknown reader. Use OPEN first"
	}

	limit := DefaultMaxRead
	if s, ok := args["max"]; ok {
		n, err := strconv.Atoi(s)
		if err != nil || n <= 0 {
			return "ERROR: max must be a positive integer"
		}
		limit = n
	}

	var lines []string
	for len(lines) < limit && r.HasNext() {
		entry, err := r.Next()
		if errors.Is(err, journal.ErrNoSuchElement) {
			break
		}
		if err != nil {
			return fmt.Sprintf("ERROR: reader %s: %v", id, err)
		}
		lines = append(lines, formatEntry(entry))
	}
	if len(lines) == 0 {
		return fmt.Sprintf("(no entries) next=%d", r.NextIndex())
	}
	return strings.Join(lines, "\n")
}

func (ch *CommandHandler) handleClose(args map[string]string, ctx *ClientContext) string {
	r, id, ok := ctx.reader(args["reader"])
	if !ok {
		return "ERROR: unknown reader"
	}
	_ = r.Close()
	ctx.removeReader(id)
	return fmt.Sprintf("OK reader=%s closed", id)
}

func (ch *CommandHandler) handleCompact(args map[string]string) string {
	index, err := requireIndex("COMPACT", args)
	if err != nil {
		return err.Error()
	}
	removed, err := ch.Journal.Compact(index)
	if err != nil {
		return fmt.Sprintf("ERROR: %v", err)
	}
	return fmt.Sprintf("OK removed=%d first=%d", removed, ch.Journal.FirstIndex())
}

func (ch *CommandHandler) handleStat() string {
	st, err := ch.Journal.Stats()
	if err != nil {
		return fmt.Sprintf("ERROR: %v", err)
	}
	return fmt.Sprintf("journal=%s level=%s segments=%d first=%d last=%d commit=%d readers=%d bytes=%d",
		st.Name, st.Level, st.Segments, st.FirstIndex, st.LastIndex, st.CommitIndex, st.Readers, st.SizeBytes)
}

func (ch *CommandHandler) withIndex(name string, args map[string]string, fn func(uint64) error) string {
	index, err := requireIndex(name, args)
	if err != nil {
		return err.Error()
	}
	if err := fn(index); err != nil {
		return fmt.Sprintf("ERROR: %v", err)
	}
	w := ch.Journal.Writer()
	return fmt.Sprintf("OK last=%d commit=%d", w.LastIndex(), ch.Journal.CommitIndex())
}

func requireIndex(name string, args map[string]string) (uint64, error) {
	s, ok := args["index"]
	if !ok || s == "" {
		return 0, fmt.Errorf("ERROR: missing index parameter. Expected: %s index=<N>", name)
	}
	index, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("ERROR: index must be a non-negative integer")
	}
	return index, nil
}

func formatEntry(entry journal.Indexed[string]) string {
	return fmt.Sprintf("%d: %s", entry.Index, entry.Entry)
}

// parseKeyValueArgs splits "k=v" pairs. Everything after "message=" is taken
// verbatim so messages may contain spaces.
func parseKeyValueArgs(argsStr string) map[string]string {
	result := make(map[string]string)

	messageIdx := strings.Index(argsStr, "message=")
	if messageIdx != -1 {
		result["message"] = strings.TrimSpace(argsStr[messageIdx+8:])
		argsStr = argsStr[:messageIdx]
	}
	for _, part := range strings.Fields(argsStr) {
		kv := strings.SplitN(part, "=", 2)
		if len(kv) == 2 {
			result[kv[0]] = kv[1]
		}
	}
	return result
}
