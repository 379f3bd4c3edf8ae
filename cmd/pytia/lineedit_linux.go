//go:build linux

package main

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/sys/unix"
)

var interactiveHistory []string

// readInteractiveLine reads one line with in-place editing and history when
// stdin is a terminal, and falls back to plain buffered reads for pipes.
func readInteractiveLine(prompt string) (string, error) {
	if !stdinIsTTY() {
		r := bufio.NewReader(os.Stdin)
		s, err := r.ReadString('\n')
		if err != nil && err != io.EOF {
			return "", err
		}
		if err == io.EOF && s == "" {
			return "", io.EOF
		}
		return trimTrailingNewline(s), nil
	}

	fd := int(os.Stdin.Fd())
	oldState, err := unix.IoctlGetTermios(fd, unix.TCGETS)
	if err != nil {
		return "", err
	}
	newState := *oldState
	newState.Lflag &^= unix.ICANON | unix.ECHO
	newState.Cc[unix.VMIN] = 1
	newState.Cc[unix.VTIME] = 0
	if err := unix.IoctlSetTermios(fd, unix.TCSETS, &newState); err != nil {
		return "", err
	}
	defer func() {
		_ = unix.IoctlSetTermios(fd, unix.TCSETS, oldState)
	}()

	fmt.Print(prompt)
	line := make([]byte, 0, 256)
	cursor := 0
	histPos := len(interactiveHistory)
	histDraft := ""
	browsing := false

	redraw := func() {
		fmt.Printf("\r%s%s\x1b[K", prompt, string(line))
		if cursor < len(line) {
			fmt.Printf("\r%s%s", prompt, string(line[:cursor]))
		}
	}
	recall := func(s string) {
		line = append(line[:0], s...)
		cursor = len(line)
		redraw()
	}
	deleteWordBack := func() {
		start := cursor
		for start > 0 && line[start-1] == ' ' {
			start--
		}
		for start > 0 && line[start-1] != ' ' {
			start--
		}
		line = append(line[:start], line[cursor:]...)
		cursor = start
		redraw()
	}

	var buf [16]byte
	escState := 0
	var escSeq strings.Builder
	for {
		n, err := os.Stdin.Read(buf[:])
		if err != nil {
			return "", err
		}
		for i := 0; i < n; i++ {
			b := buf[i]
			if escState == 1 {
				if b == '[' {
					escState = 2
					escSeq.Reset()
				} else {
					escState = 0
				}
				continue
			}
			if escState == 2 {
				escSeq.WriteByte(b)
				if (b >= 'A' && b <= 'Z') || (b >= 'a' && b <= 'z') || b == '~' {
					escState = 0
					switch escSeq.String() {
					case "A": // up
						if len(interactiveHistory) == 0 {
							break
						}
						if !browsing {
							histDraft = string(line)
							browsing = true
							histPos = len(interactiveHistory)
						}
						if histPos > 0 {
							histPos--
							recall(interactiveHistory[histPos])
						}
					case "B": // down
						if !browsing {
							break
						}
						if histPos < len(interactiveHistory)-1 {
							histPos++
							recall(interactiveHistory[histPos])
						} else {
							browsing = false
							recall(histDraft)
						}
					case "D":
						if cursor > 0 {
							cursor--
							redraw()
						}
					case "C":
						if cursor < len(line) {
							cursor++
							redraw()
						}
					case "H":
						cursor = 0
						redraw()
					case "F":
						cursor = len(line)
						redraw()
					case "3~": // delete
						if cursor < len(line) {
							line = append(line[:cursor], line[cursor+1:]...)
							redraw()
						}
					}
				}
				continue
			}

			switch b {
			case 27: // ESC
				escState = 1
			case '\r', '\n':
				fmt.Print("\r\n")
				out := string(line)
				if strings.TrimSpace(out) != "" {
					interactiveHistory = append(interactiveHistory, out)
				}
				return out, nil
			case 3: // Ctrl+C
				fmt.Print("^C\r\n")
				return "", io.EOF
			case 4: // Ctrl+D
				if len(line) == 0 {
					fmt.Print("\r\n")
					return "", io.EOF
				}
			case 127, 8: // backspace
				if cursor > 0 {
					line = append(line[:cursor-1], line[cursor:]...)
					cursor--
					redraw()
				}
			case 1: // Ctrl+A
				cursor = 0
				redraw()
			case 5: // Ctrl+E
				cursor = len(line)
				redraw()
			case 23: // Ctrl+W
				deleteWordBack()
			default:
				if b >= 32 {
					line = append(line, 0)
					copy(line[cursor+1:], line[cursor:])
					line[cursor] = b
					cursor++
					redraw()
				}
			}
		}
	}
}

func trimTrailingNewline(s string) string {
	if len(s) > 0 && s[len(s)-1] == '\n' {
		s = s[:len(s)-1]
	}
	if len(s) > 0 && s[len(s)-1] == '\r' {
		s = s[:len(s)-1]
	}
	return s
}
