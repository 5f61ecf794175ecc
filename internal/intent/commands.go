package intent

import (
	"context"
	"strings"

	"github.com/ahricool/raise/internal/stockcode"
)

var listCommands = map[string]struct{}{
	"/positions": {},
	"/position":  {},
	"持仓":         {},
	"查看持仓":       {},
	"我的持仓":       {},
}

var deleteCommandPrefixes = []string{"/position_delete", "/delete_position"}

// "删除持仓" also starts with "删除".
const deleteKeyword = "删除"

type ListCommand struct{}

func (ListCommand) Name() string { return "list_command" }

func (ListCommand) Attempt(_ context.Context, in Input) (Intent, bool) {
	text := strings.ToLower(strings.TrimSpace(in.Content))
	if strings.HasPrefix(text, "/") {
		// Group chats address commands as /positions@SomeBot.
		if cmd, _, ok := strings.Cut(text, "@"); ok && !strings.ContainsAny(cmd, " \t\n") {
			text = cmd
		}
	}
	if _, ok := listCommands[text]; !ok {
		return Intent{}, false
	}
	return Intent{Kind: KindList}, true
}

// DeleteCommand handles "/position_delete 600519 AAPL". Without any valid
// code the message falls through to the next strategy.
type DeleteCommand struct{}

func (DeleteCommand) Name() string { return "delete_command" }

func (DeleteCommand) Attempt(_ context.Context, in Input) (Intent, bool) {
	lowered := strings.ToLower(in.Content)
	matched := false
	for _, prefix := range deleteCommandPrefixes {
		if strings.HasPrefix(lowered, prefix) {
			matched = true
			break
		}
	}
	if !matched {
		return Intent{}, false
	}
	fields := strings.Fields(in.Content)
	codes := make([]string, 0, len(fields))
	for _, arg := range fields[1:] {
		if code := stockcode.Normalize(arg); code != "" {
			codes = append(codes, code)
		}
	}
	if len(codes) == 0 {
		return Intent{}, false
	}
	return Intent{Kind: KindDelete, DeleteCodes: codes}, true
}

// DeletePhrase handles free text such as "删除持仓 600519 和 000001".
type DeletePhrase struct{}

func (DeletePhrase) Name() string { return "delete_phrase" }

func (DeletePhrase) Attempt(_ context.Context, in Input) (Intent, bool) {
	if !strings.HasPrefix(in.Content, deleteKeyword) {
		return Intent{}, false
	}
	codes := stockcode.Extract(in.Content, 0)
	if len(codes) == 0 {
		return Intent{}, false
	}
	return Intent{Kind: KindDelete, DeleteCodes: codes}, true
}

// EmptyContent stops the chain for messages with neither text nor image.
type EmptyContent struct{}

func (EmptyContent) Name() string { return "empty_content" }

func (EmptyContent) Attempt(_ context.Context, in Input) (Intent, bool) {
	if in.Content != "" || in.ImageFileID != "" {
		return Intent{}, false
	}
	return Intent{Kind: KindEmpty}, true
}
