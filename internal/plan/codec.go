package plan

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"
)

const (
	headerTitle     = "# dupsweep action list"
	headerFormat    = "# Format: ACTION|PATH|SIZE|DIGEST"
	headerLegend    = "# KEEP = stays in place, DUPLICATE = may be moved to quarantine"
	headerSeparator = "#" + "==============================================================="

	// maxLineSize bounds a single plan line; paths beyond this are not plausible.
	maxLineSize = 1 << 20
)

// Encode writes p to w: the header comment block, then each set as one KEEP
// line and its DUPLICATE lines, with exactly one blank line between sets.
// It fails without writing anything if any path is unrepresentable.
func Encode(w io.Writer, p *Plan) error {
	for _, set := range p.Sets {
		for _, f := range set.Files {
			if !Representable(f.Path) {
				return fmt.Errorf("%w: %q", ErrUnrepresentable, f.Path)
			}
		}
	}

	bw := bufio.NewWriter(w)
	writeHeader(bw, p.Header)

	for i, set := range p.Sets {
		if i > 0 {
			bw.WriteString("\n")
		}
		for j, f := range set.Files {
			action := ActionDuplicate
			if j == 0 {
				action = ActionKeep
			}
			fmt.Fprintf(bw, "%s|%s|%d|%s\n", action, f.Path, set.Size, set.Digest)
		}
	}
	return bw.Flush()
}

func writeHeader(w *bufio.Writer, h Header) {
	w.WriteString(headerTitle + "\n")
	w.WriteString(headerFormat + "\n")
	w.WriteString(headerLegend + "\n")
	writeHeaderField(w, "plan_id", h.PlanID)
	writeHeaderField(w, "root", h.Root)
	if !h.GeneratedAt.IsZero() {
		writeHeaderField(w, "generated_at", h.GeneratedAt.UTC().Format(time.RFC3339))
	}
	writeHeaderField(w, "algorithm", h.Algorithm)
	w.WriteString(headerSeparator + "\n\n")
}

// writeHeaderField writes "# key: value". An empty value, or one with a line
// break that would spill into an entry line, is left out.
func writeHeaderField(w *bufio.Writer, key, value string) {
	if value == "" || strings.ContainsAny(value, "\r\n") {
		return
	}
	fmt.Fprintf(w, "# %s: %s\n", key, value)
}

// LineError describes a line Decode skipped.
type LineError struct {
	Line   int    `json:"line"`
	Text   string `json:"text"`
	Reason string `json:"reason"`
}

func (e LineError) Error() string {
	return fmt.Sprintf("line %d: %s", e.Line, e.Reason)
}

// Document is the result of decoding an action list.
type Document struct {
	Header  Header
	Entries []Entry
	Errors  []LineError
}

// Decode reads an action list. Blank lines and '#' comments are skipped;
// recognised "# key: value" comments fill in the Header. A malformed entry
// line is recorded in Errors and parsing continues. Only a read failure is
// returned as an error.
func Decode(r io.Reader) (*Document, error) {
	doc := &Document{}
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), maxLineSize)

	n := 0
	for sc.Scan() {
		n++
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		if strings.HasPrefix(line, "#") {
			parseHeaderLine(&doc.Header, line)
			continue
		}

		entry, reason := parseEntry(line)
		if reason != "" {
			doc.Errors = append(doc.Errors, LineError{Line: n, Text: line, Reason: reason})
			continue
		}
		doc.Entries = append(doc.Entries, entry)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("reading action list: %w", err)
	}
	return doc, nil
}

func parseEntry(line string) (Entry, string) {
	fields := strings.Split(line, "|")
	if len(fields) != 4 {
		return Entry{}, fmt.Sprintf("expected 4 fields, got %d", len(fields))
	}

	action := Action(fields[0])
	if !action.Valid() {
		return Entry{}, fmt.Sprintf("unknown action %q", fields[0])
	}
	if fields[1] == "" {
		return Entry{}, "empty path"
	}

	sizeField := strings.TrimSpace(fields[2])
	if sizeField == "" || strings.IndexFunc(sizeField, func(r rune) bool { return r < '0' || r > '9' }) >= 0 {
		return Entry{}, fmt.Sprintf("size %q is not a non-negative integer", fields[2])
	}
	size, err := strconv.ParseInt(sizeField, 10, 64)
	if err != nil {
		return Entry{}, fmt.Sprintf("size %q out of range", fields[2])
	}

	return Entry{Action: action, Path: fields[1], Size: size, Digest: strings.TrimSpace(fields[3])}, ""
}

// parseHeaderLine fills h from a "# key: value" comment. Unknown keys and
// other comments are ignored.
func parseHeaderLine(h *Header, line string) {
	key, value, ok := strings.Cut(strings.TrimSpace(strings.TrimPrefix(line, "#")), ":")
	if !ok {
		return
	}
	value = strings.TrimSpace(value)
	switch strings.TrimSpace(key) {
	case "plan_id":
		h.PlanID = value
	case "root":
		h.Root = value
	case "generated_at":
		if t, err := time.Parse(time.RFC3339, value); err == nil {
			h.GeneratedAt = t
		}
	case "algorithm":
		h.Algorithm = value
	}
}
