package parser

import (
	"regexp"
	"strings"

	"blockstream/types"
)

// scanStatus is the outcome of one classifier at one line
type scanStatus int

const (
	scanNoMatch scanStatus = iota
	scanMatched
	// scanOpen means the classifier needs a line that has not arrived yet
	scanOpen
)

// lineScanner walks message text line by line and classifies runs of lines
// into blocks.
//
// In final mode every line takes part in decisions and unterminated runs close
// at the end of input. In streaming mode only lines terminated by '\n' are
// trusted; the one exception is a closing code fence on the incomplete last
// line, since more text can never turn it back into content.
type lineScanner struct {
	lines    []string
	starts   []int // byte offset of each line
	size     int
	complete int // lines[:complete] may drive decisions
	final    bool
	preview  bool // blocks are provisional and never settle
}

func newLineScanner(text string, final bool) *lineScanner {
	s := &lineScanner{final: final, size: len(text)}
	offset := 0
	for {
		idx := strings.IndexByte(text[offset:], '\n')
		if idx < 0 {
			break
		}
		s.add(text[offset:offset+idx], offset)
		offset += idx + 1
	}
	s.complete = len(s.lines)

	switch {
	case !final:
		// Always present, possibly empty: the line still being written
		s.add(text[offset:], offset)
	case offset < len(text):
		s.add(text[offset:], offset)
		s.complete++
	}
	return s
}

func (s *lineScanner) add(line string, offset int) {
	s.lines = append(s.lines, strings.TrimSuffix(line, "\r"))
	s.starts = append(s.starts, offset)
}

func (s *lineScanner) has(i int) bool {
	return i < s.complete
}

// offset returns the byte offset where line i starts
func (s *lineScanner) offset(i int) int {
	if i < len(s.starts) {
		return s.starts[i]
	}
	return s.size
}

// scanResult is the outcome of one pass over the text
type scanResult struct {
	blocks []types.MessageBlock
	// settled is the line index just past the last emitted block
	settled int
	// partialAt is the first line of the open block, -1 when nothing is open
	partialAt int
}

type classifier func(s *lineScanner, i int) (types.MessageBlock, int, scanStatus)

// Priority order; the first classifier that matches wins. Text is the
// fallback and is tried last.
var classifiers = []classifier{
	(*lineScanner).tryCode,
	(*lineScanner).tryTable,
	(*lineScanner).tryTaskList,
	(*lineScanner).tryList,
	(*lineScanner).tryHeading,
	(*lineScanner).tryBlockquote,
	(*lineScanner).tryContainer,
	(*lineScanner).tryDivider,
	(*lineScanner).tryImage,
}

func (s *lineScanner) scan() scanResult {
	res := scanResult{partialAt: -1}
	i := 0
	for {
		for s.has(i) && isBlank(s.lines[i]) {
			i++
		}
		if !s.has(i) {
			if i < len(s.lines) && !isBlank(s.lines[i]) {
				res.partialAt = i
			}
			return res
		}

		block, next, status := s.classify(i)
		if status == scanOpen {
			res.partialAt = i
			return res
		}
		res.blocks = append(res.blocks, block)
		res.settled = next
		i = next
	}
}

func (s *lineScanner) classify(i int) (types.MessageBlock, int, scanStatus) {
	for _, try := range classifiers {
		if block, next, status := try(s, i); status != scanNoMatch {
			return block, next, status
		}
	}
	return s.tryText(i)
}

// partial returns the tentative block starting at line i: what the final
// rules would make of everything from there on.
func (s *lineScanner) partial(i int) types.MessageBlock {
	lines := s.lines[i:]
	if n := len(lines); n > 0 && isFencePrefix(lines[n-1]) {
		lines = lines[:n-1]
	}
	if len(lines) == 0 {
		return nil
	}
	tail := &lineScanner{lines: lines, complete: len(lines), final: true, preview: true}
	res := tail.scan()
	if len(res.blocks) == 0 {
		return nil
	}
	return res.blocks[0]
}

// startsBlock reports whether line j opens a non-text block. decided is false
// when the answer depends on a line that has not arrived yet.
func (s *lineScanner) startsBlock(j int) (starts, decided bool) {
	line := s.lines[j]
	if _, _, ok := fenceOpen(line); ok {
		return true, true
	}
	if isTableRow(line) {
		if !s.has(j + 1) {
			return false, s.final
		}
		return isTableSeparator(s.lines[j+1]), true
	}
	if _, ok := taskItem(line); ok {
		return true, true
	}
	if _, _, ok := listItem(line); ok {
		return true, true
	}
	if _, _, ok := parseHeading(line); ok {
		return true, true
	}
	if isQuote(line) {
		return true, true
	}
	if _, ok := containerOpen(line); ok {
		return true, true
	}
	if isDivider(line) {
		return true, true
	}
	if _, _, ok := parseImage(line); ok {
		return true, true
	}
	return false, true
}

// unavailable is what a classifier reports when it runs out of trusted lines
func (s *lineScanner) unavailable() scanStatus {
	if s.final {
		return scanMatched
	}
	return scanOpen
}

func (s *lineScanner) tryCode(i int) (types.MessageBlock, int, scanStatus) {
	marker, lang, ok := fenceOpen(s.lines[i])
	if !ok {
		return nil, 0, scanNoMatch
	}

	var body []string
	j := i + 1
	for ; j < len(s.lines); j++ {
		line := s.lines[j]
		if isFenceClose(line, marker) {
			return s.codeBlock(lang, body), j + 1, scanMatched
		}
		if !s.has(j) {
			return nil, 0, scanOpen
		}
		body = append(body, line)
	}
	if s.final {
		return s.codeBlock(lang, body), j, scanMatched
	}
	return nil, 0, scanOpen
}

// codeBlock builds a fenced block. Provisional blocks are guessed without
// touching the shared cache, since their content changes on every chunk.
func (s *lineScanner) codeBlock(lang string, body []string) *types.CodeBlock {
	content := strings.Join(body, "\n")
	switch {
	case lang != "":
	case s.preview:
		lang = guessLanguage(content)
	default:
		lang = DetectLanguage(content)
	}
	return &types.CodeBlock{Language: lang, Content: content}
}

func (s *lineScanner) tryTable(i int) (types.MessageBlock, int, scanStatus) {
	if !isTableRow(s.lines[i]) {
		return nil, 0, scanNoMatch
	}
	if !s.has(i + 1) {
		if s.final {
			return nil, 0, scanNoMatch
		}
		return nil, 0, scanOpen
	}
	if !isTableSeparator(s.lines[i+1]) {
		return nil, 0, scanNoMatch
	}

	table := &types.TableBlock{Headers: splitRow(s.lines[i]), Rows: [][]string{}}
	j := i + 2
	for {
		if !s.has(j) {
			if status := s.unavailable(); status == scanOpen {
				return nil, 0, status
			}
			break
		}
		line := s.lines[j]
		if isTableRow(line) {
			if !isTableSeparator(line) {
				table.Rows = append(table.Rows, splitRow(line))
			}
			j++
			continue
		}
		if isBlank(line) {
			if !s.has(j + 1) {
				if status := s.unavailable(); status == scanOpen {
					return nil, 0, status
				}
				break
			}
			if isTableRow(s.lines[j+1]) {
				j++
				continue
			}
		}
		break
	}
	return table, j, scanMatched
}

func (s *lineScanner) tryTaskList(i int) (types.MessageBlock, int, scanStatus) {
	first, ok := taskItem(s.lines[i])
	if !ok {
		return nil, 0, scanNoMatch
	}

	tasks := &types.TaskListBlock{Items: []types.TaskItem{first}}
	j := i + 1
	for {
		if !s.has(j) {
			if status := s.unavailable(); status == scanOpen {
				return nil, 0, status
			}
			break
		}
		if item, ok := taskItem(s.lines[j]); ok {
			tasks.Items = append(tasks.Items, item)
			j++
			continue
		}
		if isBlank(s.lines[j]) {
			if !s.has(j + 1) {
				if status := s.unavailable(); status == scanOpen {
					return nil, 0, status
				}
				break
			}
			if item, ok := taskItem(s.lines[j+1]); ok {
				tasks.Items = append(tasks.Items, item)
				j += 2
				continue
			}
		}
		break
	}
	return tasks, j, scanMatched
}

func (s *lineScanner) tryList(i int) (types.MessageBlock, int, scanStatus) {
	ordered, first, ok := listItem(s.lines[i])
	if !ok {
		return nil, 0, scanNoMatch
	}

	list := &types.ListBlock{Items: []string{first}, Ordered: ordered}
	last := func() *string { return &list.Items[len(list.Items)-1] }
	j := i + 1
	for {
		if !s.has(j) {
			if status := s.unavailable(); status == scanOpen {
				return nil, 0, status
			}
			break
		}
		line := s.lines[j]

		if isBlank(line) {
			if !s.has(j + 1) {
				if status := s.unavailable(); status == scanOpen {
					return nil, 0, status
				}
				break
			}
			if o, item, ok := listItem(s.lines[j+1]); ok && o == ordered {
				list.Items = append(list.Items, item)
				j += 2
				continue
			}
			break
		}

		if o, item, ok := listItem(line); ok {
			if o == ordered {
				list.Items = append(list.Items, item)
				j++
				continue
			}
			if !isIndented(line) {
				break
			}
		} else if !isIndented(line) {
			break
		}

		// Indented continuation of the previous item
		if _, _, fence := fenceOpen(line); fence {
			break
		}
		if _, task := taskItem(line); task {
			break
		}
		*last() += "\n" + strings.TrimSpace(line)
		j++
	}
	return list, j, scanMatched
}

func (s *lineScanner) tryHeading(i int) (types.MessageBlock, int, scanStatus) {
	level, content, ok := parseHeading(s.lines[i])
	if !ok {
		return nil, 0, scanNoMatch
	}
	return &types.HeadingBlock{Level: level, Content: content}, i + 1, scanMatched
}

func (s *lineScanner) tryBlockquote(i int) (types.MessageBlock, int, scanStatus) {
	if !isQuote(s.lines[i]) {
		return nil, 0, scanNoMatch
	}

	var body []string
	j := i
	for {
		if !s.has(j) {
			if status := s.unavailable(); status == scanOpen {
				return nil, 0, status
			}
			break
		}
		if !isQuote(s.lines[j]) {
			break
		}
		body = append(body, stripQuote(s.lines[j]))
		j++
	}
	return &types.BlockquoteBlock{Content: strings.Join(body, "\n")}, j, scanMatched
}

func (s *lineScanner) tryContainer(i int) (types.MessageBlock, int, scanStatus) {
	opener, ok := containerOpen(s.lines[i])
	if !ok {
		return nil, 0, scanNoMatch
	}

	var body []string
	j := i + 1
	for {
		if !s.has(j) {
			if status := s.unavailable(); status == scanOpen {
				return nil, 0, status
			}
			break
		}
		if isContainerClose(s.lines[j]) {
			j++
			break
		}
		body = append(body, s.lines[j])
		j++
	}
	return buildContainer(opener, body), j, scanMatched
}

func (s *lineScanner) tryDivider(i int) (types.MessageBlock, int, scanStatus) {
	if !isDivider(s.lines[i]) {
		return nil, 0, scanNoMatch
	}
	return &types.DividerBlock{}, i + 1, scanMatched
}

func (s *lineScanner) tryImage(i int) (types.MessageBlock, int, scanStatus) {
	alt, src, ok := parseImage(s.lines[i])
	if !ok {
		return nil, 0, scanNoMatch
	}
	return &types.ImageBlock{Src: src, Alt: alt}, i + 1, scanMatched
}

// tryText always matches. A paragraph runs across single blank lines and
// stops at two blank lines in a row or at a line that opens another block.
func (s *lineScanner) tryText(i int) (types.MessageBlock, int, scanStatus) {
	last := i
	j := i + 1
	for {
		if !s.has(j) {
			if status := s.unavailable(); status == scanOpen {
				return nil, 0, status
			}
			break
		}
		if isBlank(s.lines[j]) {
			if !s.has(j + 1) {
				if status := s.unavailable(); status == scanOpen {
					return nil, 0, status
				}
				break
			}
			if isBlank(s.lines[j+1]) {
				break
			}
			j++
			continue
		}
		starts, decided := s.startsBlock(j)
		if !decided {
			return nil, 0, scanOpen
		}
		if starts {
			break
		}
		last = j
		j++
	}
	content := strings.Join(s.lines[i:last+1], "\n")
	return &types.TextBlock{Content: content}, last + 1, scanMatched
}

// Line recognizers

var (
	orderedItemPattern = regexp.MustCompile(`^\d{1,9}[.)]\s+(\S.*)$`)
	bulletItemPattern  = regexp.MustCompile(`^[-*+•]\s+(\S.*)$`)
	taskItemPattern    = regexp.MustCompile(`^(?:[-*+]\s+)?\[([ xX])\](?:\s+(.*))?$`)
	imagePattern       = regexp.MustCompile(`^!\[([^\]]*)\]\(\s*(\S+?)(?:\s+"[^"]*")?\s*\)$`)
	containerPattern   = regexp.MustCompile(`^:::\s*([A-Za-z_]+)\s*(.*)$`)
)

var fenceMarkers = []string{"```", "~~~"}

func isBlank(line string) bool {
	return strings.TrimSpace(line) == ""
}

func isIndented(line string) bool {
	return strings.HasPrefix(line, " ") || strings.HasPrefix(line, "\t")
}

// fenceOpen returns the fence marker and language of an opening fence line
func fenceOpen(line string) (marker, lang string, ok bool) {
	trimmed := strings.TrimSpace(line)
	for _, m := range fenceMarkers {
		if strings.HasPrefix(trimmed, m) {
			rest := strings.TrimLeft(trimmed, m[:1])
			if fields := strings.Fields(rest); len(fields) > 0 {
				lang = fields[0]
			}
			return m, lang, true
		}
	}
	return "", "", false
}

func isFenceClose(line, marker string) bool {
	return strings.HasPrefix(strings.TrimLeft(line, " \t"), marker)
}

// isFencePrefix reports whether an unfinished line could still become a fence
func isFencePrefix(line string) bool {
	trimmed := strings.TrimLeft(line, " \t")
	if trimmed == "" {
		return false
	}
	for _, m := range fenceMarkers {
		if len(trimmed) < len(m) && strings.HasPrefix(m, trimmed) {
			return true
		}
	}
	return false
}

func isTableRow(line string) bool {
	return strings.HasPrefix(strings.TrimSpace(line), "|")
}

func isTableSeparator(line string) bool {
	trimmed := strings.TrimSpace(line)
	if !strings.Contains(trimmed, "-") || !strings.Contains(trimmed, "|") {
		return false
	}
	for _, r := range trimmed {
		if !strings.ContainsRune("|-: ", r) {
			return false
		}
	}
	return true
}

func splitRow(line string) []string {
	trimmed := strings.TrimSpace(line)
	trimmed = strings.TrimPrefix(trimmed, "|")
	trimmed = strings.TrimSuffix(trimmed, "|")
	cells := strings.Split(trimmed, "|")
	for i := range cells {
		cells[i] = strings.TrimSpace(cells[i])
	}
	return cells
}

func taskItem(line string) (types.TaskItem, bool) {
	m := taskItemPattern.FindStringSubmatch(strings.TrimSpace(line))
	if m == nil {
		return types.TaskItem{}, false
	}
	return types.TaskItem{Text: strings.TrimSpace(m[2]), Checked: m[1] != " "}, true
}

// listItem recognizes bullet and ordinal items. Task lines and dividers are
// not list items.
func listItem(line string) (ordered bool, content string, ok bool) {
	trimmed := strings.TrimSpace(line)
	if isDivider(trimmed) {
		return false, "", false
	}
	if _, task := taskItem(trimmed); task {
		return false, "", false
	}
	if m := orderedItemPattern.FindStringSubmatch(trimmed); m != nil {
		return true, strings.TrimSpace(m[1]), true
	}
	if m := bulletItemPattern.FindStringSubmatch(trimmed); m != nil {
		return false, strings.TrimSpace(m[1]), true
	}
	return false, "", false
}

// parseHeading returns the clamped level and text of an ATX heading line
func parseHeading(line string) (int, string, bool) {
	trimmed := strings.TrimLeft(line, " ")
	level := 0
	for level < len(trimmed) && trimmed[level] == '#' {
		level++
	}
	if level == 0 || level >= len(trimmed) || (trimmed[level] != ' ' && trimmed[level] != '\t') {
		return 0, "", false
	}

	content := strings.TrimSpace(trimmed[level:])
	// A closing run of '#' only counts when separated by a space
	if t := strings.TrimRight(content, "#"); t != content && strings.HasSuffix(t, " ") {
		content = strings.TrimSpace(t)
	}
	if content == "" {
		return 0, "", false
	}
	if level > 3 {
		level = 3
	}
	return level, content, true
}

func isQuote(line string) bool {
	return strings.HasPrefix(strings.TrimLeft(line, " \t"), ">")
}

func stripQuote(line string) string {
	rest := strings.TrimLeft(line, " \t")[1:]
	return strings.TrimPrefix(rest, " ")
}

func isDivider(line string) bool {
	compact := strings.ReplaceAll(strings.TrimSpace(line), " ", "")
	if len(compact) < 3 {
		return false
	}
	c := compact[0]
	if c != '-' && c != '*' && c != '_' {
		return false
	}
	for i := 1; i < len(compact); i++ {
		if compact[i] != c {
			return false
		}
	}
	return true
}

func parseImage(line string) (alt, src string, ok bool) {
	m := imagePattern.FindStringSubmatch(strings.TrimSpace(line))
	if m == nil {
		return "", "", false
	}
	return m[1], m[2], true
}
