package sqlscan

import "github.com/postgrestools/pgtools/text"

// Token is one significant token with its leading trivia. The final EOF
// token carries any trailing trivia of the document.
type Token struct {
	Kind    Kind
	Range   text.Range
	Leading []Trivia
}

// Trivia is a whitespace or comment run preceding a token.
type Trivia struct {
	Kind  Kind
	Range text.Range
}

// Text returns the token's bytes in input.
func (t Token) Text(input string) string {
	return t.Range.Slice(input)
}

// Lex scans the whole input and returns the significant tokens in order,
// each with its leading trivia, terminated by an EOF token.
func Lex(input string) []Token {
	var (
		tokens  []Token
		leading []Trivia
	)
	s := NewScanner(input)
	for {
		kind := s.Next()
		if kind.IsTrivia() {
			leading = append(leading, Trivia{Kind: kind, Range: s.Range()})
			continue
		}
		tokens = append(tokens, Token{Kind: kind, Range: s.Range(), Leading: leading})
		leading = nil
		if kind == EOF {
			return tokens
		}
	}
}
