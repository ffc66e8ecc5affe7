package conversation

import "strings"

// markdownParses reports whether Telegram's legacy Markdown parser would
// accept s. Entities are *bold*, _italic_, `code`, ```pre``` and [text](url);
// they do not nest, and a marker outside an entity may be escaped with "\".
func markdownParses(s string) bool {
	for i := 0; i < len(s); {
		switch c := s[i]; c {
		case '\\':
			i += 2
		case '*', '_':
			end := strings.IndexByte(s[i+1:], c)
			if end < 0 {
				return false
			}
			i += end + 2
		case '`':
			if strings.HasPrefix(s[i:], "```") {
				end := strings.Index(s[i+3:], "```")
				if end < 0 {
					return false
				}
				i += end + 6
				continue
			}
			end := strings.IndexByte(s[i+1:], '`')
			if end < 0 {
				return false
			}
			i += end + 2
		case '[':
			end := strings.IndexByte(s[i+1:], ']')
			if end < 0 {
				return false
			}
			i += end + 2
			if i < len(s) && s[i] == '(' {
				url := strings.IndexByte(s[i:], ')')
				if url < 0 {
					return false
				}
				i += url + 1
			}
		default:
			i++
		}
	}
	return true
}
