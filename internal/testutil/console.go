// Package testutil provides test helpers that stand in for a management console.
package testutil

import (
	"context"
	"strings"
	"sync"
)

// Prompt is the prompt line appended to every scripted reply.
const Prompt = "$ "

// Reply builds raw console output the way an interactive session returns it:
// the echoed command, the body lines, then the prompt.
func Reply(command string, lines ...string) string {
	var b strings.Builder
	b.WriteString(command)
	b.WriteByte('\n')
	for _, l := range lines {
		b.WriteString(l)
		b.WriteByte('\n')
	}
	b.WriteString(Prompt)
	return b.String()
}

// Console is a scripted racadm transport. Each command has a queue of raw
// replies; the last reply repeats once the queue drains. Commands without a
// script get an empty reply.
type Console struct {
	mu      sync.Mutex
	replies map[string][]string
	errs    map[string]error
	sent    []string
}

// NewConsole returns an empty script.
func NewConsole() *Console {
	return &Console{
		replies: make(map[string][]string),
		errs:    make(map[string]error),
	}
}

// On queues replies for command. Each reply is a body; lines are separated by '\n'.
// An empty body produces a reply with nothing between echo and prompt.
func (c *Console) On(command string, bodies ...string) *Console {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, body := range bodies {
		var lines []string
		if body != "" {
			lines = strings.Split(body, "\n")
		}
		c.replies[command] = append(c.replies[command], Reply(command, lines...))
	}
	return c
}

// OnRepeat queues n copies of body for command.
func (c *Console) OnRepeat(command, body string, n int) *Console {
	for i := 0; i < n; i++ {
		c.On(command, body)
	}
	return c
}

// Fail makes every send of command return err.
func (c *Console) Fail(command string, err error) *Console {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.errs[command] = err
	return c
}

// Send implements racadm.Transport.
func (c *Console) Send(ctx context.Context, command string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sent = append(c.sent, command)
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if err := c.errs[command]; err != nil {
		return "", err
	}
	queue := c.replies[command]
	switch len(queue) {
	case 0:
		return Reply(command), nil
	case 1:
		return queue[0], nil
	default:
		c.replies[command] = queue[1:]
		return queue[0], nil
	}
}

// Sent returns every command line received, in order.
func (c *Console) Sent() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.sent...)
}

// Count returns how many times command was sent.
func (c *Console) Count(command string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, s := range c.sent {
		if s == command {
			n++
		}
	}
	return n
}
