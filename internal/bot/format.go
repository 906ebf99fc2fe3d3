package bot

import (
	"bytes"
	"fmt"
	"strings"
	"unicode/utf8"

	json "github.com/goccy/go-json"
)

// maxMessageLen is Telegram's limit for a single message. It counts UTF-16
// units, so staying under it in bytes is always safe.
const maxMessageLen = 4096

// partHeadroom leaves room for the " (i/n)" suffix added to split titles.
const partHeadroom = 32

// rawResult formats an exchange payload as "<title>:" plus a JSON code block.
func rawResult(title string) func(json.RawMessage, error) (reply, error) {
	return func(raw json.RawMessage, err error) (reply, error) {
		if err != nil {
			return reply{}, err
		}
		return codeReply(title, prettyJSON(raw)), nil
	}
}

func listResult(title string) func([]json.RawMessage, error) (reply, error) {
	return func(raws []json.RawMessage, err error) (reply, error) {
		if err != nil {
			return reply{}, err
		}
		if raws == nil {
			raws = []json.RawMessage{}
		}
		return formatValue(title, raws)
	}
}

func formatValue(title string, v any) (reply, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return reply{}, err
	}
	return codeReply(title, prettyJSON(b)), nil
}

func prettyJSON(raw []byte) string {
	if len(bytes.TrimSpace(raw)) == 0 {
		return "null"
	}
	var buf bytes.Buffer
	if err := json.Indent(&buf, raw, "", "  "); err != nil {
		return string(raw)
	}
	return buf.String()
}

func codeBlock(title, body string) string {
	return title + ":\n```\n" + body + "\n```"
}

// codeReply renders body as a titled code block, split across messages on
// line boundaries when it does not fit in one.
func codeReply(title, body string) reply {
	if text := codeBlock(title, body); len(text) <= maxMessageLen {
		return reply{parts: []string{text}, markdown: true}
	}
	chunks := splitBody(body, maxMessageLen-len(codeBlock(title, ""))-partHeadroom)
	parts := make([]string, len(chunks))
	for i, chunk := range chunks {
		parts[i] = codeBlock(fmt.Sprintf("%s (%d/%d)", title, i+1, len(chunks)), chunk)
	}
	return reply{parts: parts, markdown: true}
}

func splitBody(body string, limit int) []string {
	var (
		chunks []string
		cur    strings.Builder
	)
	flush := func() {
		if cur.Len() > 0 {
			chunks = append(chunks, cur.String())
			cur.Reset()
		}
	}
	for _, line := range strings.Split(body, "\n") {
		for len(line) > limit {
			flush()
			cut := limit
			for cut > 0 && !utf8.RuneStart(line[cut]) {
				cut--
			}
			chunks = append(chunks, line[:cut])
			line = line[cut:]
		}
		if cur.Len() > 0 && cur.Len()+1+len(line) > limit {
			flush()
		}
		if cur.Len() > 0 {
			cur.WriteByte('\n')
		}
		cur.WriteString(line)
	}
	flush()
	return chunks
}
