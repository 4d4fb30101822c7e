package executor

import (
	"context"
	"fmt"
	"strings"
)

const echoPreviewLimit = 200

// Echo is the default executor: it proves the pipeline end-to-end by
// echoing the inbound text prefixed with the bound bot version.
type Echo struct{}

// NewEcho creates the default echo executor.
func NewEcho() *Echo {
	return &Echo{}
}

// HandleInbound replies to the originating chat with the message body
// truncated to 200 characters.
func (e *Echo) HandleInbound(_ context.Context, req *Request) ([]Reply, error) {
	version := req.BotVersionID
	if version == "" {
		version = "no-bot"
	}

	body := fmt.Sprintf("Echo (%s)", version)
	if preview := strings.TrimSpace(req.Message.Body); preview != "" {
		body = fmt.Sprintf("Echo (%s): %s", version, truncate(preview, echoPreviewLimit))
	}

	chat := req.Message.ChatJID
	if chat == "" {
		chat = req.Message.From
	}

	return []Reply{{ChatJID: chat, Kind: ReplyKindText, Body: body}}, nil
}

// truncate limits s to maxLen characters without splitting a rune.
func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	runes := []rune(s)
	if len(runes) <= maxLen {
		return s
	}
	return string(runes[:maxLen])
}
