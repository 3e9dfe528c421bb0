package ddl

type TokenType int

const (
	Word TokenType = iota
	QuotedIdentifier
	String
	Number
	Symbol
	EOF
)

type Token struct {
	Type  TokenType
	Value string
}

type Lexer struct {
	sql          string
	position     int
	readPosition int
	ch           byte
}

func NewLexer(sql string) *Lexer {
	lexer := &Lexer{sql: sql}
	lexer.readChar()
	return lexer
}

func (lexer *Lexer) readChar() {
	if lexer.readPosition >= len(lexer.sql) {
		lexer.ch = 0
	} else {
		lexer.ch = lexer.sql[lexer.readPosition]
	}
	lexer.position = lexer.readPosition
	lexer.readPosition++
}

func (lexer *Lexer) peekChar() byte {
	if lexer.readPosition >= len(lexer.sql) {
		return 0
	}
	return lexer.sql[lexer.readPosition]
}

// NextToken returns the next token, skipping whitespace and comments
func (lexer *Lexer) NextToken() Token {
	lexer.skipWhitespaceAndComments()

	if lexer.ch == 0 {
		return Token{Type: EOF}
	}

	switch {
	case lexer.ch == '\'':
		return Token{Type: String, Value: lexer.readString()}
	case lexer.ch == '"':
		return Token{Type: QuotedIdentifier, Value: lexer.readQuotedIdentifier()}
	case lexer.ch == '$' && lexer.peekChar() == '$':
		return Token{Type: String, Value: lexer.readDollarQuoted()}
	case isDigit(lexer.ch):
		return Token{Type: Number, Value: lexer.readNumber()}
	case isWordChar(lexer.ch):
		return Token{Type: Word, Value: lexer.readWord()}
	default:
		token := Token{Type: Symbol, Value: string(lexer.ch)}
		lexer.readChar()
		return token
	}
}

func (lexer *Lexer) skipWhitespaceAndComments() {
	for {
		for lexer.ch == ' ' || lexer.ch == '\t' || lexer.ch == '\n' || lexer.ch == '\r' {
			lexer.readChar()
		}

		if lexer.ch == '-' && lexer.peekChar() == '-' {
			for lexer.ch != '\n' && lexer.ch != 0 {
				lexer.readChar()
			}
			continue
		}

		if lexer.ch == '/' && lexer.peekChar() == '*' {
			lexer.readChar()
			lexer.readChar()
			for lexer.ch != 0 && !(lexer.ch == '*' && lexer.peekChar() == '/') {
				lexer.readChar()
			}
			if lexer.ch != 0 {
				lexer.readChar() // '*'
				lexer.readChar() // '/'
			}
			continue
		}

		return
	}
}

func (lexer *Lexer) readWord() string {
	position := lexer.position
	for isWordChar(lexer.ch) || isDigit(lexer.ch) || lexer.ch == '.' {
		lexer.readChar()
	}
	return lexer.sql[position:lexer.position]
}

func (lexer *Lexer) readNumber() string {
	position := lexer.position
	for isDigit(lexer.ch) || lexer.ch == '.' {
		lexer.readChar()
	}
	return lexer.sql[position:lexer.position]
}

// readString reads a single-quoted literal, keeping '' escapes intact
func (lexer *Lexer) readString() string {
	position := lexer.position
	lexer.readChar() // opening quote
	for lexer.ch != 0 {
		if lexer.ch == '\'' {
			if lexer.peekChar() == '\'' {
				lexer.readChar()
				lexer.readChar()
				continue
			}
			lexer.readChar() // closing quote
			break
		}
		lexer.readChar()
	}
	return lexer.sql[position:lexer.position]
}

// readQuotedIdentifier reads a double-quoted identifier including quotes,
// preserving it byte-for-byte
func (lexer *Lexer) readQuotedIdentifier() string {
	position := lexer.position
	lexer.readChar() // opening quote
	for lexer.ch != '"' && lexer.ch != 0 {
		lexer.readChar()
	}
	if lexer.ch == '"' {
		lexer.readChar()
	}
	return lexer.sql[position:lexer.position]
}

// readDollarQuoted reads a $$-quoted body (function definitions) verbatim
func (lexer *Lexer) readDollarQuoted() string {
	position := lexer.position
	lexer.readChar() // '$'
	lexer.readChar() // '$'
	for lexer.ch != 0 && !(lexer.ch == '$' && lexer.peekChar() == '$') {
		lexer.readChar()
	}
	if lexer.ch != 0 {
		lexer.readChar()
		lexer.readChar()
	}
	return lexer.sql[position:lexer.position]
}

func isDigit(ch byte) bool {
	return '0' <= ch && ch <= '9'
}

func isWordChar(ch byte) bool {
	return ('a' <= ch && ch <= 'z') || ('A' <= ch && ch <= 'Z') || ch == '_'
}
