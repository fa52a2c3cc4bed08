package chatstream

import (
	"bytes"
	"encoding/json"
	"strings"
)

// Decoder turns raw server-sent event bytes into content tokens. Chunks
// may split records at arbitrary byte offsets, so incomplete trailing
// data stays buffered until the next chunk completes it.
type Decoder struct {
	buf bytes.Buffer
}

type streamEvent struct {
	Choices []struct {
		Delta struct {
			Content string `json:"content"`
		} `json:"delta"`
	} `json:"choices"`
}

// Decode appends the chunk to the internal buffer and returns every
// content token that can be extracted from complete lines. A trailing
// line without a newline is held back; so is a trailing complete line
// whose JSON payload fails to parse, since the payload itself may have
// been split across chunks.
func (d *Decoder) Decode(chunk []byte) []string {
	d.buf.Write(chunk)

	var tokens []string
	for {
		raw := d.buf.Bytes()
		idx := bytes.IndexByte(raw, '\n')
		if idx < 0 {
			break
		}
		line := string(raw[:idx])
		d.buf.Next(idx + 1)

		token, ok, incomplete := parseLine(line)
		if incomplete && d.buf.Len() == 0 {
			// The payload may continue in the next chunk. Reattach the
			// line and wait for more bytes. Only the trailing line is
			// eligible, otherwise a permanently broken line would wedge
			// the stream.
			d.buf.WriteString(line)
			d.buf.WriteString("\n")
			break
		}
		if ok {
			tokens = append(tokens, token)
		}
	}
	return tokens
}

// parseLine extracts the content token from one SSE line. incomplete
// marks a data line whose JSON did not parse, which can mean the
// payload was split mid-record.
func parseLine(line string) (token string, ok bool, incomplete bool) {
	line = strings.TrimRight(line, "\r")
	if line == "" {
		return "", false, false
	}
	if strings.HasPrefix(line, ":") {
		return "", false, false // SSE comment / keepalive
	}
	payload, found := strings.CutPrefix(line, "data:")
	if !found {
		return "", false, false
	}
	payload = strings.TrimSpace(payload)
	if payload == "" || payload == "[DONE]" {
		return "", false, false
	}
	var event streamEvent
	if err := json.Unmarshal([]byte(payload), &event); err != nil {
		return "", false, true
	}
	for _, choice := range event.Choices {
		if choice.Delta.Content != "" {
			return choice.Delta.Content, true, false
		}
	}
	return "", false, false
}

// Flush parses whatever remains buffered as a final line. Streams that
// end without a trailing newline still yield their last token.
func (d *Decoder) Flush() []string {
	if d.buf.Len() == 0 {
		return nil
	}
	line := d.buf.String()
	d.buf.Reset()

	var tokens []string
	for _, part := range strings.Split(line, "\n") {
		if token, ok, _ := parseLine(part); ok {
			tokens = append(tokens, token)
		}
	}
	return tokens
}
