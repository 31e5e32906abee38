package console

import (
	"bufio"
	"io"
	"strings"
	"unicode"
	"unicode/utf8"
)

type keyKind int

const (
	keyRune keyKind = iota
	keyEnter
	keyExecute
	keyBreakLine
	keyBackspace
	keyDelete
	keyEscape
	keyLeft
	keyRight
	keyUp
	keyDown
	keyHome
	keyEnd
	keyPageUp
	keyPageDown
	keyTab
	keyCtrlA
	keyCtrlC
	keyCtrlD
	keyCtrlE
	keyCtrlK
	keyCtrlL
	keyCtrlU
	keyCtrlV
	keyCtrlX
	keyCtrlY
	keyCtrlZ
	keyAltC
)

type modifier int

const (
	modShift modifier = 1 << iota
	modAlt
	modCtrl
)

type key struct {
	kind keyKind
	mod  modifier
	r    rune
}

func (k key) has(m modifier) bool {
	return k.mod&m == m
}

// readKeys decodes terminal input until r fails, then closes out.
func readKeys(r io.Reader, out chan<- key) {
	defer close(out)
	br := bufio.NewReader(r)
	lastWasCR := false
	for {
		b, err := br.ReadByte()
		if err != nil {
			return
		}
		if lastWasCR {
			lastWasCR = false
			if b == '\n' {
				continue
			}
		}
		switch b {
		case 0x1b:
			if !readEscape(br, out) {
				return
			}
		case '\r':
			out <- key{kind: keyEnter}
			lastWasCR = true
		case '\n':
			out <- key{kind: keyBreakLine}
		case 0x7f, 0x08:
			out <- key{kind: keyBackspace}
		case 0x09:
			out <- key{kind: keyTab}
		default:
			if k, ok := ctrlKeys[b]; ok {
				out <- key{kind: k}
				continue
			}
			if b < 0x20 {
				continue
			}
			if b < utf8.RuneSelf {
				out <- key{kind: keyRune, r: rune(b)}
				continue
			}
			_ = br.UnreadByte()
			rn, _, err := br.ReadRune()
			if err != nil {
				return
			}
			out <- key{kind: keyRune, r: rn}
		}
	}
}

var ctrlKeys = map[byte]keyKind{
	0x01: keyCtrlA,
	0x03: keyCtrlC,
	0x04: keyCtrlD,
	0x05: keyCtrlE,
	0x0b: keyCtrlK,
	0x0c: keyCtrlL,
	0x15: keyCtrlU,
	0x16: keyCtrlV,
	0x18: keyCtrlX,
	0x19: keyCtrlY,
	0x1a: keyCtrlZ,
}

// readEscape decodes the bytes after ESC. A lone ESC with nothing buffered
// behind it is the Escape key. It returns false when the reader failed.
func readEscape(br *bufio.Reader, out chan<- key) bool {
	if br.Buffered() == 0 {
		out <- key{kind: keyEscape}
		return true
	}
	b, err := br.ReadByte()
	if err != nil {
		return false
	}
	switch b {
	case '[':
		return readCSI(br, out)
	case 'O':
		return readSS3(br, out)
	case '\r', '\n':
		out <- key{kind: keyExecute}
	case 'c', 'C':
		out <- key{kind: keyAltC}
	case 0x1b:
		out <- key{kind: keyEscape}
		return readEscape(br, out)
	}
	return true
}

func readCSI(br *bufio.Reader, out chan<- key) bool {
	seq := []byte{}
	for {
		b, err := br.ReadByte()
		if err != nil {
			return false
		}
		seq = append(seq, b)
		if b == '~' || unicode.IsLetter(rune(b)) {
			break
		}
		if len(seq) > 8 {
			return true
		}
	}
	if k, ok := decodeCSI(string(seq)); ok {
		out <- k
	}
	return true
}

// decodeCSI maps a CSI body such as "A", "1;3A" or "3~" to a key. The
// xterm modifier parameter is 1 plus a bit set of shift, alt and ctrl.
func decodeCSI(seq string) (key, bool) {
	if seq == "" {
		return key{}, false
	}
	final := seq[len(seq)-1]
	params := seq[:len(seq)-1]
	var mod modifier
	if i := strings.IndexByte(params, ';'); i >= 0 {
		n := 0
		for _, c := range params[i+1:] {
			if c < '0' || c > '9' {
				return key{}, false
			}
			n = n*10 + int(c-'0')
		}
		if n > 1 {
			mod = modifier(n - 1)
		}
		params = params[:i]
	}
	if final == '~' {
		switch params {
		case "1", "7":
			return key{kind: keyHome, mod: mod}, true
		case "4", "8":
			return key{kind: keyEnd, mod: mod}, true
		case "3":
			return key{kind: keyDelete, mod: mod}, true
		case "5":
			return key{kind: keyPageUp, mod: mod}, true
		case "6":
			return key{kind: keyPageDown, mod: mod}, true
		}
		return key{}, false
	}
	switch final {
	case 'A':
		return key{kind: keyUp, mod: mod}, true
	case 'B':
		return key{kind: keyDown, mod: mod}, true
	case 'C':
		return key{kind: keyRight, mod: mod}, true
	case 'D':
		return key{kind: keyLeft, mod: mod}, true
	case 'H':
		return key{kind: keyHome, mod: mod}, true
	case 'F':
		return key{kind: keyEnd, mod: mod}, true
	case 'u':
		if params == "13" {
			return enterKey(mod), true
		}
	}
	return key{}, false
}

// enterKey maps a modified Enter reported as CSI 13;<mod>u.
func enterKey(mod modifier) key {
	switch {
	case mod&(modCtrl|modAlt) != 0:
		return key{kind: keyExecute}
	case mod&modShift != 0:
		return key{kind: keyBreakLine}
	}
	return key{kind: keyEnter}
}

func readSS3(br *bufio.Reader, out chan<- key) bool {
	b, err := br.ReadByte()
	if err != nil {
		return false
	}
	switch b {
	case 'H':
		out <- key{kind: keyHome}
	case 'F':
		out <- key{kind: keyEnd}
	case 'A':
		out <- key{kind: keyUp}
	case 'B':
		out <- key{kind: keyDown}
	case 'C':
		out <- key{kind: keyRight}
	case 'D':
		out <- key{kind: keyLeft}
	}
	return true
}

