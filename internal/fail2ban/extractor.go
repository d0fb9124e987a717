package fail2ban

import (
	"bufio"
	"io"
	"os"
)

// scanBufferSize bounds single-line reads; fail2ban lines are short but
// rotated logs occasionally contain binary garbage.
const scanBufferSize = 1024 * 1024

// Extract scans r line by line and returns every classified event whose
// timestamp falls inside w. Unclassifiable lines are skipped; a scanner
// error mid-stream returns the partial extraction.
func Extract(r io.Reader, w Window) (Extraction, error) {
	var out Extraction

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), scanBufferSize)

	for scanner.Scan() {
		ev, ok := Classify(scanner.Text())
		if !ok || !w.Contains(ev.Timestamp) {
			continue
		}
		switch ev.Kind {
		case KindBan:
			out.Bans = append(out.Bans, ev)
		case KindUnban:
			out.Unbans = append(out.Unbans, ev)
		case KindFound:
			out.Found = append(out.Found, ev)
			out.FailedAttempts++
		}
	}
	if err := scanner.Err(); err != nil {
		return out, err
	}
	return out, nil
}

// ExtractFile runs Extract over the log file at path. A missing or
// unreadable file yields an empty extraction and a nil error: the
// reporting cycle must survive log rotation.
func ExtractFile(path string, w Window) (Extraction, error) {
	f, err := os.Open(path)
	if err != nil {
		return Extraction{}, nil
	}
	defer f.Close()

	return Extract(f, w)
}
