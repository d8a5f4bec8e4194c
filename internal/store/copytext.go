package store

import (
	"bufio"
	"fmt"
	"io"
	"strings"
)

// maxCopyLine bounds one line of a bulk file; documents for hub variants
// carry thousands of loci.
const maxCopyLine = 64 << 20

var copyEscaper = strings.NewReplacer(`\`, `\\`, "\n", `\n`, "\r", `\r`, "\t", `\t`)

// WriteCopyLine writes field as one single-column line of PostgreSQL COPY
// text format.
func WriteCopyLine(w io.Writer, field string) error {
	if _, err := copyEscaper.WriteString(w, field); err != nil {
		return err
	}
	_, err := io.WriteString(w, "\n")
	return err
}

// DecodeCopyField reverses the COPY text escaping of one field. The NULL
// marker \N is rejected since documents are never null.
func DecodeCopyField(line string) (string, error) {
	if !strings.Contains(line, `\`) {
		return line, nil
	}
	var b strings.Builder
	b.Grow(len(line))
	for i := 0; i < len(line); i++ {
		c := line[i]
		if c != '\\' {
			b.WriteByte(c)
			continue
		}
		i++
		if i == len(line) {
			return "", fmt.Errorf("dangling escape")
		}
		switch line[i] {
		case '\\':
			b.WriteByte('\\')
		case 'n':
			b.WriteByte('\n')
		case 'r':
			b.WriteByte('\r')
		case 't':
			b.WriteByte('\t')
		case 'N':
			return "", fmt.Errorf("null field not supported")
		default:
			return "", fmt.Errorf("unknown escape \\%c", line[i])
		}
	}
	return b.String(), nil
}

// ReadCopyLines decodes every line of a single-column COPY text stream.
func ReadCopyLines(r io.Reader, fn func(field string) error) error {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), maxCopyLine)
	line := 0
	for sc.Scan() {
		line++
		field, err := DecodeCopyField(sc.Text())
		if err != nil {
			return fmt.Errorf("copy line %d: %w", line, err)
		}
		if err := fn(field); err != nil {
			return err
		}
	}
	return sc.Err()
}
