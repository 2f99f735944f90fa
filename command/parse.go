package command

import "strings"

// Parse splits a raw chat line into a command name and argument tokens.
// It returns ok=false when the line is not a command: no prefix match, or
// nothing but whitespace after the prefix. The command token is folded to
// lowercase; arguments keep their original case. Runs of whitespace act as
// a single separator.
func Parse(raw, prefix string) (name string, args []string, ok bool) {
	if prefix == "" || !strings.HasPrefix(raw, prefix) {
		return "", nil, false
	}
	fields := strings.Fields(raw[len(prefix):])
	if len(fields) == 0 {
		return "", nil, false
	}
	return strings.ToLower(fields[0]), fields[1:], true
}

// ExtractQuoted returns all "..." spans of text in order. Handlers that take
// multi-word arguments (polls) call this on Invocation.Raw themselves; it is
// deliberately not part of Parse so normal whitespace splitting stays intact.
func ExtractQuoted(text string) []string {
	var spans []string
	for {
		start := strings.IndexByte(text, '"')
		if start < 0 {
			break
		}
		end := strings.IndexByte(text[start+1:], '"')
		if end < 0 {
			break
		}
		spans = append(spans, text[start+1:start+1+end])
		text = text[start+2+end:]
	}
	return spans
}
