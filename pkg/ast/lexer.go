// Copyright Consensys Software Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with
// the License. You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on
// an "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied. See the License for the
// specific language governing permissions and limitations under the License.
//
// SPDX-License-Identifier: Apache-2.0
package ast

import (
	"github.com/basecode-lang/basecode/pkg/source"
	"github.com/basecode-lang/basecode/pkg/source/lex"
)

// lexical tags. These are internal to the tokenizer; the parser maps them
// onto ast.Kind/Token values.
const (
	tagEOF uint = iota
	tagWhitespace
	tagLineComment
	tagBlockComment
	tagIdent
	tagNumber
	tagString
	tagKeyword
	tagColonColon
	tagColonEquals
	tagColon
	tagSemicolon
	tagComma
	tagArrow
	tagLParen
	tagRParen
	tagLBrace
	tagRBrace
	tagLBracket
	tagRBracket
	tagHash
	tagAt
	tagShl
	tagShr
	tagEqEq
	tagNotEq
	tagLtEq
	tagGtEq
	tagAndAnd
	tagOrOr
	tagLt
	tagGt
	tagPlus
	tagMinus
	tagStar
	tagSlash
	tagPercent
	tagAmp
	tagPipe
	tagCaret
	tagTilde
	tagBang
	tagEquals
)

// keywords recognized by the tokenizer; any identifier-shaped token that
// matches one of these (with a word boundary following) is tagged
// tagKeyword instead of tagIdent, and carries the keyword text as its
// value.
var keywords = map[string]bool{
	"proc": true, "struct": true, "union": true, "enum": true,
	"namespace": true, "module": true, "if": true, "elseif": true, "else": true,
	"while": true, "return": true, "import": true, "from": true,
	"cast": true, "transmute": true, "alias": true,
	"true": true, "false": true, "null": true,
}

// isIdentStart/isIdentCont classify identifier characters: ASCII letters
// and underscore to start, plus digits to continue.
func isIdentStart(r rune) bool {
	return r == '_' || (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z')
}

func isIdentCont(r rune) bool {
	return isIdentStart(r) || (r >= '0' && r <= '9')
}

func isDigit(r rune) bool {
	return r >= '0' && r <= '9'
}

// scanIdentOrKeyword implements lex.Scanner[rune] by maximal-munch over
// identifier characters; keyword-vs-identifier classification happens in
// tokenize since this scanner only reports the length consumed.
func scanIdentOrKeyword(items []rune) uint {
	if len(items) == 0 || !isIdentStart(items[0]) {
		return 0
	}

	n := uint(1)
	for n < uint(len(items)) && isIdentCont(items[n]) {
		n++
	}

	return n
}

// scanNumber implements lex.Scanner[rune], accepting decimal integers,
// decimal floats, and 0x-prefixed hexadecimal integers.
func scanNumber(items []rune) uint {
	if len(items) == 0 || !isDigit(items[0]) {
		return 0
	}

	if items[0] == '0' && len(items) > 1 && (items[1] == 'x' || items[1] == 'X') {
		n := uint(2)
		for n < uint(len(items)) && isHexDigit(items[n]) {
			n++
		}

		return n
	}

	n := uint(1)
	for n < uint(len(items)) && isDigit(items[n]) {
		n++
	}

	if n < uint(len(items)) && items[n] == '.' && n+1 < uint(len(items)) && isDigit(items[n+1]) {
		n++
		for n < uint(len(items)) && isDigit(items[n]) {
			n++
		}
	}

	return n
}

func isHexDigit(r rune) bool {
	return isDigit(r) || (r >= 'a' && r <= 'f') || (r >= 'A' && r <= 'F')
}

// scanString implements lex.Scanner[rune] for a double-quoted string
// literal with a minimal backslash-escape grammar.
func scanString(items []rune) uint {
	if len(items) == 0 || items[0] != '"' {
		return 0
	}

	n := uint(1)
	for n < uint(len(items)) {
		switch items[n] {
		case '\\':
			n += 2
		case '"':
			return n + 1
		default:
			n++
		}
	}
	// Unterminated string: consume to EOF: the parser reports a syntax
	// error for this token.
	return n
}

// scanBlockComment implements lex.Scanner[rune] for `/* ... */` comments.
func scanBlockComment(items []rune) uint {
	if len(items) < 2 || items[0] != '/' || items[1] != '*' {
		return 0
	}

	n := uint(2)
	for n+1 < uint(len(items)) {
		if items[n] == '*' && items[n+1] == '/' {
			return n + 2
		}

		n++
	}

	return uint(len(items))
}

// lexRules defines the tokenizer's rule table in priority order: the first
// rule that matches wins regardless of match length, so multi-character
// operators must precede their single-character prefixes (see
// pkg/source/lex.Lexer.scan).
var lexRules = []lex.LexRule[rune]{
	lex.Rule(lex.Many(lex.Or(lex.Unit(' '), lex.Unit('\t'), lex.Unit('\r'), lex.Unit('\n'))), tagWhitespace),
	lex.Rule(lex.SequenceNullableLast[rune](lex.Unit('/'), lex.Unit('/'), lex.Until(rune('\n'))), tagLineComment),
	lex.Rule(scanBlockComment, tagBlockComment),
	lex.Rule(scanString, tagString),
	lex.Rule(scanNumber, tagNumber),
	lex.Rule(scanIdentOrKeyword, tagIdent),
	lex.Rule(lex.Unit(':', ':'), tagColonColon),
	lex.Rule(lex.Unit(':', '='), tagColonEquals),
	lex.Rule(lex.Unit('-', '>'), tagArrow),
	lex.Rule(lex.Unit('<', '<'), tagShl),
	lex.Rule(lex.Unit('>', '>'), tagShr),
	lex.Rule(lex.Unit('=', '='), tagEqEq),
	lex.Rule(lex.Unit('!', '='), tagNotEq),
	lex.Rule(lex.Unit('<', '='), tagLtEq),
	lex.Rule(lex.Unit('>', '='), tagGtEq),
	lex.Rule(lex.Unit('&', '&'), tagAndAnd),
	lex.Rule(lex.Unit('|', '|'), tagOrOr),
	lex.Rule(lex.Unit(':'), tagColon),
	lex.Rule(lex.Unit(';'), tagSemicolon),
	lex.Rule(lex.Unit(','), tagComma),
	lex.Rule(lex.Unit('('), tagLParen),
	lex.Rule(lex.Unit(')'), tagRParen),
	lex.Rule(lex.Unit('{'), tagLBrace),
	lex.Rule(lex.Unit('}'), tagRBrace),
	lex.Rule(lex.Unit('['), tagLBracket),
	lex.Rule(lex.Unit(']'), tagRBracket),
	lex.Rule(lex.Unit('#'), tagHash),
	lex.Rule(lex.Unit('@'), tagAt),
	lex.Rule(lex.Unit('<'), tagLt),
	lex.Rule(lex.Unit('>'), tagGt),
	lex.Rule(lex.Unit('+'), tagPlus),
	lex.Rule(lex.Unit('-'), tagMinus),
	lex.Rule(lex.Unit('*'), tagStar),
	lex.Rule(lex.Unit('/'), tagSlash),
	lex.Rule(lex.Unit('%'), tagPercent),
	lex.Rule(lex.Unit('&'), tagAmp),
	lex.Rule(lex.Unit('|'), tagPipe),
	lex.Rule(lex.Unit('^'), tagCaret),
	lex.Rule(lex.Unit('~'), tagTilde),
	lex.Rule(lex.Unit('!'), tagBang),
	lex.Rule(lex.Unit('='), tagEquals),
	lex.Rule(lex.Eof[rune](), tagEOF),
}

// scannedToken pairs a lex.Token with the file it was scanned from, so the
// parser can compute line/column locations lazily.
type scannedToken struct {
	tag  uint
	span source.Span
}

// tokenize runs the rule table over a file's contents, discarding
// whitespace but retaining comments as their own tokens (the parser turns
// them into line_comment/block_comment nodes). Identifier-shaped tokens
// whose text matches the keyword table are reclassified here, since the
// scanner itself only reports match length, not content.
func tokenize(file *source.File) []scannedToken {
	contents := file.Contents()
	lexer := lex.NewLexer[rune](contents, lexRules...)

	var out []scannedToken

	for lexer.HasNext() {
		tok := lexer.Next()
		if tok.Kind == tagWhitespace {
			continue
		}

		kind := tok.Kind
		if kind == tagIdent {
			text := string(contents[tok.Span.Start():tok.Span.End()])
			if keywords[text] {
				kind = tagKeyword
			}
		}

		out = append(out, scannedToken{kind, tok.Span})
	}

	return out
}
