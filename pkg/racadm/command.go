// Package racadm talks to a RAC/CMC management console through its racadm
// command line. It renders commands, sends them over a Transport and parses
// the console's loosely structured text replies into a Response.
package racadm

import "strings"

// Program is the console binary every command line starts with.
const Program = "racadm"

// Flag is a single-character switch and its value. An empty Value renders the
// switch alone ("-d").
type Flag struct {
	Name  string
	Value string
}

// Flags are rendered in slice order.
type Flags []Flag

// F builds a Flag.
func F(name, value string) Flag {
	return Flag{Name: name, Value: value}
}

// With returns a copy of fs with more flags appended; fs itself is never modified.
func (fs Flags) With(more ...Flag) Flags {
	out := make(Flags, 0, len(fs)+len(more))
	out = append(out, fs...)
	return append(out, more...)
}

// Command is a racadm invocation. Build it once and render it with String.
type Command struct {
	Verb   string
	Params []string
	Flags  Flags
}

// String renders the command line sent to the console.
func (c Command) String() string {
	return Encode(c.Verb, c.Flags, c.Params)
}

// Encode renders "racadm <verb>", the positional parameters (joined by single
// spaces, one leading space) and then " -<flag> <value>" for every flag in order.
// Values are not quoted; callers embed quoting where the console needs it.
func Encode(verb string, flags Flags, params []string) string {
	var b strings.Builder
	b.WriteString(Program)
	b.WriteByte(' ')
	b.WriteString(verb)
	if len(params) > 0 {
		b.WriteByte(' ')
		b.WriteString(strings.Join(params, " "))
	}
	appendFlags(&b, flags)
	return b.String()
}

// EncodeConfigSet renders "racadm config -g <group> -o <object> <value>" plus flags.
func EncodeConfigSet(group, object, value string, flags Flags) string {
	var b strings.Builder
	b.WriteString(Program)
	b.WriteString(" config -g ")
	b.WriteString(group)
	b.WriteString(" -o ")
	b.WriteString(object)
	b.WriteByte(' ')
	b.WriteString(value)
	appendFlags(&b, flags)
	return b.String()
}

// EncodeGetConfig renders "racadm getconfig", adding -g and -o only when set.
func EncodeGetConfig(group, object string, flags Flags) string {
	var selector Flags
	if group != "" {
		selector = append(selector, F("g", group))
	}
	if object != "" {
		selector = append(selector, F("o", object))
	}
	return Encode("getconfig", selector.With(flags...), nil)
}

func appendFlags(b *strings.Builder, flags Flags) {
	for _, f := range flags {
		b.WriteString(" -")
		b.WriteString(f.Name)
		if f.Value != "" {
			b.WriteByte(' ')
			b.WriteString(f.Value)
		}
	}
}
