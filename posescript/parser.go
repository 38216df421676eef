package posescript

import (
	"io/ioutil"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"github.com/timtadh/lexmachine"
	"github.com/timtadh/lexmachine/machines"

	"github.com/mogaika/skinned_mesh/config"
	"github.com/mogaika/skinned_mesh/utils"
)

const (
	TOKEN_WORD = iota
	TOKEN_NUMBER
	TOKEN_STRING
	TOKEN_NEWLINE
	TOKEN_COMMENT
)

var lexer *lexmachine.Lexer

func init() {
	lexer = lexmachine.NewLexer()
	lexer.Add([]byte(`[a-zA-Z_][a-zA-Z0-9_\.]*`), getToken(TOKEN_WORD))
	lexer.Add([]byte(`[\+\-]?[0-9]*\.?[0-9]+`), getToken(TOKEN_NUMBER))
	lexer.Add([]byte(`(\n|\r|\n\r)+`), getToken(TOKEN_NEWLINE))
	lexer.Add([]byte(`//[^\n]*`), getToken(TOKEN_COMMENT))
	lexer.Add([]byte(`[ \t]+`), skip)
	lexer.Add([]byte(`"(\\.|[^"])*"`), getToken(TOKEN_STRING))
	if err := lexer.Compile(); err != nil {
		panic(err)
	}
}

func getToken(tokenType int) lexmachine.Action {
	return func(s *lexmachine.Scanner, m *machines.Match) (interface{}, error) {
		return s.Token(tokenType, string(m.Bytes), m), nil
	}
}

func skip(scan *lexmachine.Scanner, match *machines.Match) (interface{}, error) {
	return nil, nil
}

// Load reads a script file. Files that are not UTF-8 are decoded with the
// configured script encoding.
func Load(path string) ([]*Command, error) {
	data, err := ioutil.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "Failed to read script %q", path)
	}
	text, err := utils.DecodeText(data, config.GetEncoding())
	if err != nil {
		return nil, err
	}
	cmds, err := ParseScript([]byte(text))
	if err != nil {
		return nil, errors.Wrapf(err, "Script %q", path)
	}
	return cmds, nil
}

func ParseScript(text []byte) ([]*Command, error) {
	scanner, err := lexer.Scanner(text)
	if err != nil {
		return nil, errors.Wrapf(err, "Failed to create lexer scanner")
	}

	result := make([]*Command, 0, 16)
	var line []*lexmachine.Token
	var comment string

	flush := func() error {
		if len(line) == 0 {
			comment = ""
			return nil
		}
		cmd, err := parseCommand(line)
		if err != nil {
			return err
		}
		cmd.Comment = comment
		result = append(result, cmd)
		line = line[:0]
		comment = ""
		return nil
	}

	for Itok, err, eos := scanner.Next(); !eos; Itok, err, eos = scanner.Next() {
		if err != nil {
			return nil, errors.Wrapf(err, "Failed to parse token")
		}
		tok := Itok.(*lexmachine.Token)

		switch tok.Type {
		case TOKEN_NEWLINE:
			if err := flush(); err != nil {
				return nil, err
			}
		case TOKEN_COMMENT:
			comment = strings.TrimSpace(string(tok.Lexeme[2:]))
		default:
			line = append(line, tok)
		}
	}
	if err := flush(); err != nil {
		return nil, err
	}

	return result, nil
}

func parseCommand(tokens []*lexmachine.Token) (*Command, error) {
	head := tokens[0]
	if head.Type != TOKEN_WORD {
		return nil, errors.Errorf("Expected statement on line %v, got %q", head.StartLine, head.Lexeme)
	}
	op, ok := opByName[string(head.Lexeme)]
	if !ok {
		return nil, errors.Errorf("Unknown statement on line %v (%q)", head.StartLine, head.Lexeme)
	}

	cmd := &Command{Op: op, Line: head.StartLine}
	args := tokens[1:]

	if op.takesBone() {
		if len(args) == 0 {
			return nil, errors.Errorf("Missed bone name on line %v", head.StartLine)
		}
		switch args[0].Type {
		case TOKEN_WORD:
			cmd.Bone = string(args[0].Lexeme)
		case TOKEN_STRING:
			s, err := strconv.Unquote(string(args[0].Lexeme))
			if err != nil {
				return nil, errors.Errorf("Unknown string format on line %v (%q)", head.StartLine, args[0].Lexeme)
			}
			cmd.Bone = s
		default:
			return nil, errors.Errorf("Expected bone name on line %v, got %q", head.StartLine, args[0].Lexeme)
		}
		args = args[1:]
	}

	if op.takesVector() {
		if len(args) != 3 {
			return nil, errors.Errorf("Expected 3 numbers on line %v, got %d arguments", head.StartLine, len(args))
		}
		for i, tok := range args {
			if tok.Type != TOKEN_NUMBER {
				return nil, errors.Errorf("Expected number on line %v (%q)", head.StartLine, tok.Lexeme)
			}
			f, err := strconv.ParseFloat(string(tok.Lexeme), 32)
			if err != nil {
				return nil, errors.Errorf("Unknown number format on line %v (%q)", head.StartLine, tok.Lexeme)
			}
			cmd.Vector[i] = float32(f)
		}
		args = nil
	}

	if len(args) != 0 {
		return nil, errors.Errorf("Unexpected arguments on line %v (%q)", head.StartLine, args[0].Lexeme)
	}
	return cmd, nil
}

