package command

import (
	"math/rand"
	"strconv"
	"strings"
)

// defaultRandomMax is used for a bare {random} placeholder.
const defaultRandomMax = 100

// ExpandTemplate substitutes the placeholders a custom command template may
// carry: {username}, {channel}, and {random[N]} which draws a uniform
// integer in [1, N] ({random} alone means N=100). Unknown placeholders are
// left as-is so a typo stays visible to the moderator who wrote it.
func ExpandTemplate(template string, inv *Invocation) string {
	out := strings.ReplaceAll(template, "{username}", inv.Username)
	out = strings.ReplaceAll(out, "{channel}", inv.ChannelID)
	for {
		start := strings.Index(out, "{random")
		if start < 0 {
			break
		}
		end := strings.IndexByte(out[start:], '}')
		if end < 0 {
			break
		}
		token := out[start : start+end+1]
		n := defaultRandomMax
		if inner := strings.TrimSuffix(strings.TrimPrefix(token, "{random"), "}"); inner != "" {
			v, err := strconv.Atoi(strings.Trim(inner, "[]"))
			if err != nil || v < 1 {
				// Malformed bound: leave the token untouched and stop
				// scanning to avoid looping on it forever.
				break
			}
			n = v
		}
		out = out[:start] + strconv.Itoa(rand.Intn(n)+1) + out[start+end+1:]
	}
	return out
}
