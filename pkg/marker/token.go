// Package marker implements the marker grammar shared by every waymark dialect:
// token validation and normalization, the legacy compact payload lexer, and the
// nesting-aware marker list splitter.
package marker

import (
	"encoding/json"
	"regexp"
	"strings"
)

// MaxTokenLength is the longest marker token accepted by ValidateToken.
const MaxTokenLength = 50

var tokenPattern = regexp.MustCompile(`^[a-zA-Z][a-zA-Z0-9]{0,49}$`)

// ValidateToken reports whether token is a well-formed marker token: a letter
// followed by up to 49 letters or digits.
func ValidateToken(token string) bool {
	return tokenPattern.MatchString(token)
}

// NormalizeToken trims surrounding whitespace and lowercases token.
// It does not validate.
func NormalizeToken(token string) string {
	return strings.ToLower(strings.TrimSpace(token))
}

// ExtractTokens returns the marker tokens carried by a legacy compact payload
// such as ":ga:tldr", ":ga:[fix,todo]" or `:ga:{"token":"fix"}`.
//
// The result is deduplicated case-insensitively in first-seen order. Invalid
// tokens are dropped and malformed brackets or JSON yield an empty result.
func ExtractTokens(payload, sigil string) []string {
	body := strings.TrimSpace(payload)
	if sigil != "" {
		body = strings.TrimPrefix(body, sigil)
	}
	body = strings.TrimSpace(body)
	if body == "" {
		return []string{}
	}

	switch body[0] {
	case '[':
		return extractArray(body)
	case '{':
		return extractObject(body)
	}

	token := NormalizeToken(body)
	if !ValidateToken(token) {
		return []string{}
	}
	return []string{token}
}

func extractArray(body string) []string {
	if !strings.HasSuffix(body, "]") || !balanced(body) {
		return []string{}
	}

	seen := make(map[string]bool)
	tokens := []string{}
	for _, item := range Split(body[1 : len(body)-1]) {
		token := NormalizeToken(item)
		if !ValidateToken(token) || seen[token] {
			continue
		}
		seen[token] = true
		tokens = append(tokens, token)
	}
	return tokens
}

// tokenObject is the JSON form of a legacy payload.
type tokenObject struct {
	Token *string `json:"token"`
}

func extractObject(body string) []string {
	obj, ok := decodeTokenObject(body)
	if !ok || obj.Token == nil {
		return []string{}
	}

	token := NormalizeToken(*obj.Token)
	if !ValidateToken(token) {
		return []string{}
	}
	return []string{token}
}

// decodeTokenObject is a fallible decode: a payload whose token property is
// not a string counts as a failed decode.
func decodeTokenObject(body string) (tokenObject, bool) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal([]byte(body), &raw); err != nil {
		return tokenObject{}, false
	}
	value, ok := raw["token"]
	if !ok {
		return tokenObject{}, true
	}
	var token string
	if err := json.Unmarshal(value, &token); err != nil {
		return tokenObject{}, false
	}
	return tokenObject{Token: &token}, true
}

// balanced reports whether every bracket and parenthesis in s is closed in order.
func balanced(s string) bool {
	var stack []byte
	for i := 0; i < len(s); i++ {
		switch c := s[i]; c {
		case '(', '[', '{':
			stack = append(stack, c)
		case ')', ']', '}':
			if len(stack) == 0 || stack[len(stack)-1] != opening(c) {
				return false
			}
			stack = stack[:len(stack)-1]
		}
	}
	return len(stack) == 0
}

func opening(c byte) byte {
	switch c {
	case ')':
		return '('
	case ']':
		return '['
	}
	return '{'
}
