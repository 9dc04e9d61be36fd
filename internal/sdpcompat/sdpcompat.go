// Package sdpcompat applies best-effort compatibility hints to session
// descriptions sent by mobile browsers.
package sdpcompat

import (
	"strings"
)

const (
	allowMixed = "a=extmap-allow-mixed"
	opusClock  = "opus/48000"
)

// Patch returns desc with two hints applied:
//   - an a=extmap-allow-mixed line right after the video m-line, when the
//     description has none;
//   - the audio payload type mapped to opus/48000 moved to the front of the
//     audio m-line format list.
//
// Input without "v=0" and "m=" markers is returned unchanged. Patch never
// fails: any unexpected condition yields the original text. It is idempotent.
func Patch(desc string) (out string) {
	defer func() {
		if r := recover(); r != nil {
			out = desc
		}
	}()

	if !strings.Contains(desc, "v=0") || !strings.Contains(desc, "m=") {
		return desc
	}

	lines := strings.SplitAfter(desc, "\n")
	if !strings.Contains(desc, allowMixed) {
		lines = insertAllowMixed(lines)
	}
	preferOpus(lines)

	return strings.Join(lines, "")
}

// insertAllowMixed adds the marker after the first terminated video m-line,
// reusing that line's terminator.
func insertAllowMixed(lines []string) []string {
	for i, line := range lines {
		if !strings.HasPrefix(line, "m=video ") {
			continue
		}
		eol := lineEnding(line)
		if eol == "" {
			return lines
		}
		out := make([]string, 0, len(lines)+1)
		out = append(out, lines[:i+1]...)
		out = append(out, allowMixed+eol)
		return append(out, lines[i+1:]...)
	}
	return lines
}

// preferOpus rewrites the audio m-line in place.
func preferOpus(lines []string) {
	audio := -1
	for i, line := range lines {
		if strings.HasPrefix(line, "m=audio ") {
			audio = i
			break
		}
	}
	if audio < 0 {
		return
	}

	opus := ""
	for _, line := range lines[audio+1:] {
		if strings.HasPrefix(line, "m=") {
			break
		}
		pt, codec, ok := rtpmap(line)
		if ok && strings.HasPrefix(codec, opusClock) {
			opus = pt
			break
		}
	}
	if opus == "" {
		return
	}

	eol := lineEnding(lines[audio])
	fields := strings.Fields(strings.TrimSuffix(lines[audio], eol))
	// m=audio <port> <proto> <fmt> ...
	if len(fields) < 4 {
		return
	}
	formats := fields[3:]
	idx := -1
	for i, f := range formats {
		if f == opus {
			idx = i
			break
		}
	}
	if idx <= 0 {
		return
	}

	reordered := make([]string, 0, len(formats))
	reordered = append(reordered, opus)
	reordered = append(reordered, formats[:idx]...)
	reordered = append(reordered, formats[idx+1:]...)

	lines[audio] = strings.Join(append(fields[:3:3], reordered...), " ") + eol
}

// rtpmap splits "a=rtpmap:<pt> <codec>" into its payload type and codec.
func rtpmap(line string) (pt, codec string, ok bool) {
	rest, found := strings.CutPrefix(strings.TrimRight(line, "\r\n"), "a=rtpmap:")
	if !found {
		return "", "", false
	}
	pt, codec, ok = strings.Cut(rest, " ")
	if !ok || pt == "" {
		return "", "", false
	}
	return pt, codec, true
}

func lineEnding(line string) string {
	switch {
	case strings.HasSuffix(line, "\r\n"):
		return "\r\n"
	case strings.HasSuffix(line, "\n"):
		return "\n"
	default:
		return ""
	}
}
