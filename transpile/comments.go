package transpile

import (
	"fmt"
	"regexp"
	"strings"
)

// commentIndex binds free-form source comments to statement signatures so
// they can be re-emitted before the lowered statement. Lookup is exact and
// consuming; a signature seen twice gets a #2 suffix, and same-line trailing
// comments live under "#trailing".
type commentIndex struct {
	comments map[string][]string
	used     map[string]bool
}

var (
	sigProcRe    = regexp.MustCompile(`(?i)CREATE\s+(?:OR\s+ALTER\s+)?(?:PROCEDURE|PROC)\s+(?:\w+\.)*(\w+)`)
	sigDeclareRe = regexp.MustCompile(`(?i)DECLARE\s+@(\w+)`)
	sigSetRe     = regexp.MustCompile(`(?i)SET\s+@(\w+)`)
	sigIfRe      = regexp.MustCompile(`(?i)IF\s*\(?@?(\w+)`)
	sigWhileRe   = regexp.MustCompile(`(?i)WHILE\s*\(?@?(\w+)`)
	sigPrintRe   = regexp.MustCompile(`(?i)PRINT\s+['"]?(\w+)`)
)

// signatureOf synthesizes the lookup key for a statement line, or "".
func signatureOf(line string) string {
	line = strings.TrimSpace(line)
	upper := strings.ToUpper(line)

	switch {
	case strings.HasPrefix(upper, "CREATE PROC") || strings.HasPrefix(upper, "CREATE OR ALTER PROC"):
		if m := sigProcRe.FindStringSubmatch(line); m != nil {
			return "PROC:" + strings.ToLower(m[1])
		}
	case strings.HasPrefix(upper, "DECLARE"):
		if m := sigDeclareRe.FindStringSubmatch(line); m != nil {
			return "DECLARE:" + strings.ToLower(m[1])
		}
	case strings.HasPrefix(upper, "SET") && strings.Contains(line, "@"):
		if m := sigSetRe.FindStringSubmatch(line); m != nil {
			return "SET:" + strings.ToLower(m[1])
		}
	case strings.HasPrefix(upper, "IF ") || strings.HasPrefix(upper, "IF("):
		if m := sigIfRe.FindStringSubmatch(line); m != nil {
			return "IF:" + strings.ToLower(m[1])
		}
		return "IF"
	case strings.HasPrefix(upper, "WHILE"):
		if m := sigWhileRe.FindStringSubmatch(line); m != nil {
			return "WHILE:" + strings.ToLower(m[1])
		}
		return "WHILE"
	case strings.HasPrefix(upper, "RETURN"):
		return "RETURN"
	case strings.HasPrefix(upper, "PRINT"):
		if m := sigPrintRe.FindStringSubmatch(line); m != nil {
			return "PRINT:" + strings.ToLower(m[1])
		}
		return "PRINT"
	}
	return ""
}

// indexComments scans the raw source once. The same text always produces the
// same index.
func indexComments(source string) *commentIndex {
	ci := &commentIndex{
		comments: make(map[string][]string),
		used:     make(map[string]bool),
	}

	var pending []string
	for _, raw := range strings.Split(source, "\n") {
		line := strings.TrimSpace(raw)

		if strings.HasPrefix(line, "--") {
			if text := strings.TrimSpace(line[2:]); text != "" {
				pending = append(pending, text)
			}
			continue
		}
		if strings.HasPrefix(line, "/*") {
			if end := strings.Index(line, "*/"); end >= 0 {
				if text := strings.TrimSpace(line[2:end]); text != "" {
					pending = append(pending, text)
				}
			}
			continue
		}
		if line == "" {
			continue
		}

		if sig := signatureOf(line); sig != "" && len(pending) > 0 {
			key := sig
			for n := 2; ci.comments[key] != nil; n++ {
				key = fmt.Sprintf("%s#%d", sig, n)
			}
			ci.comments[key] = pending
			pending = nil
		}

		// Same-line trailing comment.
		if idx := strings.Index(line, "--"); idx > 0 {
			if sig := signatureOf(line[:idx]); sig != "" {
				if text := strings.TrimSpace(line[idx+2:]); text != "" {
					ci.comments[sig+"#trailing"] = []string{text}
				}
			}
		}
	}
	return ci
}

// leading returns and consumes the leading comments for sig.
func (ci *commentIndex) leading(sig string) []string {
	if ci == nil {
		return nil
	}
	if cs, ok := ci.comments[sig]; ok && !ci.used[sig] {
		ci.used[sig] = true
		return cs
	}
	for n := 2; n < 100; n++ {
		key := fmt.Sprintf("%s#%d", sig, n)
		if cs, ok := ci.comments[key]; ok && !ci.used[key] {
			ci.used[key] = true
			return cs
		}
	}
	return nil
}

// trailing returns and consumes the same-line comment for sig, or "".
func (ci *commentIndex) trailing(sig string) string {
	if ci == nil {
		return ""
	}
	key := sig + "#trailing"
	if cs, ok := ci.comments[key]; ok && len(cs) > 0 && !ci.used[key] {
		ci.used[key] = true
		return cs[0]
	}
	return ""
}
