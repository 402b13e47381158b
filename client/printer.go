package client

import (
	"chat-relay/codec"
	"chat-relay/domain"
	"chat-relay/domain/event"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/gookit/color"
	"github.com/olekukonko/tablewriter"
)

// Printer renders server events for a terminal.
type Printer struct {
	out     io.Writer
	key     string
	colours bool
}

func NewPrinter(out io.Writer, key string, colours bool) *Printer {
	return &Printer{out: out, key: key, colours: colours}
}

func (p *Printer) Print(evt event.Outbound) {
	switch e := evt.(type) {
	case event.UserJoined:
		p.line(color.FgGreen, "%s %s joined", clock(e.Timestamp), e.Username)
		p.presence(e.Users)
	case event.UserLeft:
		p.line(color.FgYellow, "%s %s left", clock(e.Timestamp), e.Username)
		p.presence(e.Users)
	case event.ChatMessage:
		text, err := codec.Decrypt(e.Message, p.key)
		if err != nil {
			p.line(color.FgRed, "%s %s: <undecodable message>", clock(e.Timestamp), e.Username)
			return
		}
		p.line(color.FgWhite, "%s %s: %s", clock(e.Timestamp), p.paint(color.FgCyan, e.Username), text)
	case event.FileUpload:
		p.line(color.FgMagenta, "%s %s shared %s (%s) %s",
			clock(e.Timestamp), e.Username, e.OriginalName, humanize.IBytes(uint64(e.Size)), e.URL)
	case event.UserTyping:
		p.line(color.FgGray, "%s is typing...", e.Username)
	case event.UserStopTyping:
		p.line(color.FgGray, "%s stopped typing", e.Username)
	}
}

func (p *Printer) presence(users []string) {
	table := tablewriter.NewWriter(p.out)
	table.SetHeader([]string{"#", "Participant"})
	table.SetAutoFormatHeaders(true)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetBorder(false)
	for i, u := range users {
		table.Append([]string{fmt.Sprint(i + 1), u})
	}
	table.Render()
}

func (p *Printer) line(c color.Color, format string, args ...any) {
	fmt.Fprintln(p.out, p.paint(c, fmt.Sprintf(format, args...)))
}

func (p *Printer) paint(c color.Color, s string) string {
	if !p.colours {
		return s
	}
	return c.Render(s)
}

// clock shows an ISO timestamp as local wall time, or as received when it does not parse.
func clock(ts string) string {
	t, err := domain.ParseISOTimestamp(ts)
	if err != nil {
		return "[" + ts + "]"
	}
	return "[" + t.Local().Format(time.TimeOnly) + "]"
}

// ParseLine turns a line typed by the user into an inbound event.
// "/typing" and "/stop" send typing signals; blank lines send nothing.
func ParseLine(line string) (event.Inbound, bool) {
	line = strings.TrimSpace(line)
	switch line {
	case "":
		return nil, false
	case "/typing":
		return event.TypingStarted{}, true
	case "/stop":
		return event.TypingStopped{}, true
	default:
		return event.ChatMessageRequest{Message: line}, true
	}
}
