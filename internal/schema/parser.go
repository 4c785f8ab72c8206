package schema

import (
	"regexp"
	"strings"
)

// -:12: element Foo: Schemas validity error : Element 'ram:Foo': This element is not expected.
var diagnosticPattern = regexp.MustCompile(`^(?:-|[^:]+):(\d+):\s*(?:element [^:]+:\s*)?(?:Schemas validity error|parser error|validity error)\s*:\s*(.+)$`)

// ParseXMLLintOutput extracts one message per diagnostic from xmllint
// output. Summary lines such as "- fails to validate" are dropped; lines that
// do not follow the diagnostic layout are kept verbatim.
func ParseXMLLintOutput(output string) []string {
	messages := make([]string, 0)
	for _, line := range strings.Split(output, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || isSummaryLine(line) {
			continue
		}
		if m := diagnosticPattern.FindStringSubmatch(line); len(m) == 3 {
			messages = append(messages, "line "+m[1]+": "+strings.TrimSpace(m[2]))
			continue
		}
		// caret lines under parser errors
		if strings.Trim(line, "^ ") == "" {
			continue
		}
		messages = append(messages, line)
	}
	return messages
}

func isSummaryLine(line string) bool {
	return strings.HasSuffix(line, " validates") ||
		strings.HasSuffix(line, " fails to validate") ||
		strings.HasSuffix(line, " validation generated an internal error")
}
