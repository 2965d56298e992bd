package sql

import (
	"strings"

	libinjection "github.com/corazawaf/libinjection-go"
)

// InjectionFinding describes a string literal inside a generated statement
// that libinjection flagged as a SQL injection pattern.
type InjectionFinding struct {
	Literal     string // the offending literal, without quotes
	Fingerprint string // libinjection fingerprint of the detected pattern
}

// ScreenLiterals runs every string literal in the statement through
// libinjection. Generated SQL embeds user-derived values as literals, so a
// crafted question can smuggle injection payloads through the model; literals
// that fingerprint as SQLi are rejected before execution.
//
// Returns one finding per flagged literal, or nil when the statement is clean.
func ScreenLiterals(sqlQuery string) []*InjectionFinding {
	var findings []*InjectionFinding
	for _, lit := range extractStringLiterals(sqlQuery) {
		// Short fragments like 'CA' or '%sf%' fingerprint as noise; skip
		// anything too small to carry a payload.
		if len(lit) < 4 {
			continue
		}
		if isSQLi, fingerprint := libinjection.IsSQLi(lit); isSQLi {
			findings = append(findings, &InjectionFinding{
				Literal:     lit,
				Fingerprint: string(fingerprint),
			})
		}
	}
	return findings
}

// extractStringLiterals returns the contents of single-quoted literals,
// with doubled-quote escapes collapsed.
func extractStringLiterals(sqlQuery string) []string {
	var literals []string
	runes := []rune(sqlQuery)
	i := 0

	for i < len(runes) {
		if runes[i] != '\'' {
			i++
			continue
		}
		i++
		var sb strings.Builder
		for i < len(runes) {
			if runes[i] == '\'' {
				if i+1 < len(runes) && runes[i+1] == '\'' {
					sb.WriteRune('\'')
					i += 2
					continue
				}
				i++
				break
			}
			sb.WriteRune(runes[i])
			i++
		}
		literals = append(literals, sb.String())
	}

	return literals
}
