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
	"github.com/basecode-lang/basecode/pkg/common"
	"github.com/basecode-lang/basecode/pkg/source"
)

// Parser is a hand-written recursive-descent parser over the token stream
// produced by tokenize, turning Basecode source into a tree of ast.Node.
type Parser struct {
	file   *source.File
	toks   []scannedToken
	pos    int
	result *common.Result
}

// Parse tokenizes and parses a single source file into a module node (one
// module per file, combined later by the session driver).
func Parse(file *source.File) (*Node, *common.Result) {
	p := &Parser{file: file, toks: tokenize(file), result: common.NewResult()}

	start := p.here()
	children := p.parseStatements(tagEOF)
	node := NewNode(KindModule, p.span(start))
	node.Children = children
	node.Label = file.Filename()

	return node, p.result
}

// --- token stream helpers -------------------------------------------------

func (p *Parser) here() int {
	return p.pos
}

func (p *Parser) peek() scannedToken {
	if p.pos >= len(p.toks) {
		return scannedToken{tag: tagEOF}
	}

	return p.toks[p.pos]
}

func (p *Parser) peekTag() uint {
	return p.peek().tag
}

func (p *Parser) text(tok scannedToken) string {
	contents := p.file.Contents()

	return string(contents[tok.span.Start():tok.span.End()])
}

func (p *Parser) advance() scannedToken {
	tok := p.peek()
	if p.pos < len(p.toks) {
		p.pos++
	}

	return tok
}

// accept consumes and returns true if the next token has the given tag.
func (p *Parser) accept(tag uint) bool {
	if p.peekTag() == tag {
		p.advance()
		return true
	}

	return false
}

// expect consumes a token of the given tag, reporting diagnostic code P001
// (syntax error) if the next token does not match.
func (p *Parser) expect(tag uint, what string) scannedToken {
	if p.peekTag() != tag {
		p.result.AddError("P001", p.loc(p.peek()), p.file.Filename(), "expected %s", what)
		return p.peek()
	}

	return p.advance()
}

func (p *Parser) loc(tok scannedToken) *source.Location {
	l := p.file.Location(tok.span)
	return &l
}

// span computes the location spanning from a remembered start index (as
// returned by here()) to the current position, for use on a just-completed
// node.
func (p *Parser) span(start int) source.Location {
	startTok := p.toks[min(start, max(0, len(p.toks)-1))]

	var endTok scannedToken
	if p.pos > 0 && p.pos <= len(p.toks) {
		endTok = p.toks[p.pos-1]
	} else {
		endTok = startTok
	}

	if len(p.toks) == 0 {
		return source.Location{}
	}

	startLoc := p.file.Location(startTok.span)
	endLoc := p.file.Location(endTok.span)

	return source.Location{Start: startLoc.Start, End: endLoc.End}
}

// --- statements ------------------------------------------------------------

// parseStatements parses statements until a token of the given terminator
// tag is seen (consumed by the caller) or EOF is reached.
func (p *Parser) parseStatements(terminator uint) []*Node {
	var stmts []*Node

	for p.peekTag() != terminator && p.peekTag() != tagEOF {
		stmt := p.parseStatement()
		if stmt != nil {
			stmts = append(stmts, stmt)
		}
	}

	return stmts
}

func (p *Parser) parseStatement() *Node {
	switch p.peekTag() {
	case tagLineComment:
		return p.parseComment(KindLineComment)
	case tagBlockComment:
		return p.parseComment(KindBlockComment)
	case tagHash:
		return p.parseDirective()
	case tagKeyword:
		switch p.text(p.peek()) {
		case "return":
			return p.parseReturn()
		case "import":
			return p.parseImport()
		case "namespace":
			return p.parseNamespace()
		}
	case tagLBrace:
		return p.parseBlock()
	}

	return p.parseSimpleStatement()
}

func (p *Parser) parseComment(kind Kind) *Node {
	start := p.here()
	tok := p.advance()
	node := NewNode(kind, p.spanOf(start))
	node.Token = Token{Type: "comment", Value: p.text(tok)}

	return node
}

func (p *Parser) spanOf(start int) source.Location {
	return p.span(start)
}

// parseBlock parses a brace-delimited sequence of statements into a
// basic_block node.
func (p *Parser) parseBlock() *Node {
	start := p.here()
	p.expect(tagLBrace, "'{'")

	children := p.parseStatements(tagRBrace)
	p.expect(tagRBrace, "'}'")

	node := NewNode(KindBasicBlock, p.span(start))
	node.Children = children

	return node
}

// parseDirective parses directive/attribute syntax, written either as
// `#name(key: value, ...)` or as space-separated `key=value` pairs (e.g.
// #foreign library="libc" alias="puts"). An attribute name may be an
// identifier or a keyword.
func (p *Parser) parseDirective() *Node {
	start := p.here()
	p.expect(tagHash, "'#'")

	nameTok := p.expect(tagIdent, "directive name")
	node := NewNode(KindDirective, p.span(start))
	node.Label = p.text(nameTok)

	if p.accept(tagLParen) {
		for p.peekTag() != tagRParen && p.peekTag() != tagEOF {
			attrStart := p.here()
			keyTok := p.peek()
			if keyTok.tag == tagKeyword {
				p.advance()
			} else {
				keyTok = p.expect(tagIdent, "attribute name")
			}
			p.expect(tagColon, "':'")
			value := p.parseExpression()

			attr := NewNode(KindAttribute, p.span(attrStart))
			attr.Label = p.text(keyTok)
			attr.Rhs = value
			node.Children = append(node.Children, attr)

			if !p.accept(tagComma) {
				break
			}
		}

		p.expect(tagRParen, "')'")
	} else {
		for (p.peekTag() == tagIdent || p.peekTag() == tagKeyword) && p.pos+1 < len(p.toks) && p.toks[p.pos+1].tag == tagEquals {
			attrStart := p.here()
			keyTok := p.advance()
			p.advance()
			value := p.parseExpression()

			attr := NewNode(KindAttribute, p.span(attrStart))
			attr.Label = p.text(keyTok)
			attr.Rhs = value
			node.Children = append(node.Children, attr)
		}
	}

	p.accept(tagSemicolon)

	return node
}

func (p *Parser) parseReturn() *Node {
	start := p.here()
	p.advance() // "return"

	node := NewNode(KindReturnStatement, p.span(start))
	if p.peekTag() != tagSemicolon {
		node.Lhs = p.parseExpression()
	}

	p.accept(tagSemicolon)
	node.Location = p.span(start)

	return node
}

func (p *Parser) parseImport() *Node {
	start := p.here()
	p.advance() // "import"

	node := NewNode(KindImportExpression, p.span(start))
	node.Lhs = p.parseQualifiedSymbol()

	if p.peekTag() == tagKeyword && p.text(p.peek()) == "from" {
		p.advance()
		node.Rhs = p.parsePrimary()
	}

	p.accept(tagSemicolon)
	node.Location = p.span(start)

	return node
}

func (p *Parser) parseNamespace() *Node {
	start := p.here()
	p.advance() // "namespace"

	node := NewNode(KindNamespaceExpression, p.span(start))
	node.Lhs = p.parseQualifiedSymbol()
	node.Rhs = p.parseBlock()
	node.Location = p.span(start)

	return node
}

// parseNamespaceExpr parses the expression-position form `namespace { ... }`
// used on the right-hand side of a `name :: namespace { ... }` constant
// declaration, where the namespace's name comes from the enclosing
// declaration rather than an embedded qualified symbol. Contrast
// parseNamespace, the statement-position form that carries its own name.
func (p *Parser) parseNamespaceExpr() *Node {
	start := p.here()
	p.advance() // "namespace"

	node := NewNode(KindNamespaceExpression, p.span(start))
	node.Rhs = p.parseBlock()
	node.Location = p.span(start)

	return node
}

// parseSimpleStatement handles the three declaration forms (`x: u32 := 1;`,
// `x := 1;`, `N :: 1;`), plain assignment to an existing identifier, and
// bare expression statements: only a single, unqualified leading
// identifier may be a declaration/assignment target.
func (p *Parser) parseSimpleStatement() *Node {
	start := p.here()

	if p.peekTag() == tagIdent && p.isDeclOrAssignAhead() {
		nameTok := p.advance()

		node := NewNode(KindAssignment, p.span(start))
		symbol := NewNode(KindSymbol, *p.loc(nameTok))
		symbol.Token = Token{Type: "identifier", Value: p.text(nameTok)}
		node.Lhs = symbol

		switch p.peekTag() {
		case tagColon:
			p.advance()
			node.TypeName = p.parseTypeName()
			p.expect(tagColonEquals, "':='")
			node.Rhs = p.parseExpression()
		case tagColonEquals:
			p.advance()
			node.Rhs = p.parseExpression()
		case tagColonColon:
			p.advance()
			node.IsConstantDecl = true
			node.Rhs = p.parseExpression()
		case tagEquals:
			p.advance()
			node.Rhs = p.parseExpression()
		}

		p.accept(tagSemicolon)
		node.Location = p.span(start)

		return node
	}

	expr := p.parseExpression()
	node := NewNode(KindStatement, p.span(start))
	node.Lhs = expr
	p.accept(tagSemicolon)
	node.Location = p.span(start)

	return node
}

// isDeclOrAssignAhead reports whether the identifier at the current
// position is immediately followed by one of `:`, `:=`, `::`, `=`: the set
// of tokens that can start a declaration or assignment continuation. Any
// other follower (e.g. `(`, `.`, an operator) means this identifier is
// just the head of a larger expression.
func (p *Parser) isDeclOrAssignAhead() bool {
	if p.pos+1 >= len(p.toks) {
		return false
	}

	switch p.toks[p.pos+1].tag {
	case tagColon, tagColonEquals, tagColonColon, tagEquals:
		return true
	default:
		return false
	}
}

// parseTypeName parses a (possibly qualified, possibly array/pointer)
// type reference appearing after `:` in a typed declaration.
func (p *Parser) parseTypeName() *Node {
	start := p.here()

	isPointer := p.accept(tagCaret)

	isArray := false
	var arraySize uint64
	if p.accept(tagLBracket) {
		isArray = true
		if p.peekTag() == tagNumber {
			tok := p.advance()
			arraySize, _ = ParseUint64(p.text(tok))
		}
		p.expect(tagRBracket, "']'")
	}

	name := p.parseQualifiedSymbol()
	name.IsPointer = isPointer
	name.IsArray = isArray
	name.ArraySize = arraySize
	name.Location = p.span(start)

	return name
}

// --- expressions -------------------------------------------------------

// precedence table for binary operators, loosely following C-family
// operator-precedence groupings.
var binaryPrecedence = map[uint]int{
	tagOrOr:   1,
	tagAndAnd: 2,
	tagPipe:   3,
	tagCaret:  4,
	tagAmp:    5,
	tagEqEq:   6, tagNotEq: 6,
	tagLt: 7, tagGt: 7, tagLtEq: 7, tagGtEq: 7,
	tagShl: 8, tagShr: 8,
	tagPlus: 9, tagMinus: 9,
	tagStar: 10, tagSlash: 10, tagPercent: 10,
}

func (p *Parser) parseExpression() *Node {
	return p.parseBinary(0)
}

func (p *Parser) parseBinary(minPrec int) *Node {
	start := p.here()
	lhs := p.parseUnary()

	for {
		prec, ok := binaryPrecedence[p.peekTag()]
		if !ok || prec < minPrec {
			break
		}

		opTok := p.advance()
		rhs := p.parseBinary(prec + 1)

		node := NewNode(KindBinaryOperator, p.span(start))
		node.Label = p.text(opTok)
		node.Lhs = lhs
		node.Rhs = rhs
		lhs = node
	}

	return lhs
}

func (p *Parser) parseUnary() *Node {
	start := p.here()

	switch p.peekTag() {
	case tagMinus, tagBang, tagTilde, tagAmp, tagStar:
		opTok := p.advance()
		operand := p.parseUnary()
		node := NewNode(KindUnaryOperator, p.span(start))
		node.Label = p.text(opTok)
		node.Lhs = operand

		return node
	}

	return p.parsePostfix()
}

func (p *Parser) parsePostfix() *Node {
	start := p.here()
	node := p.parsePrimary()

	for p.peekTag() == tagLParen {
		node = p.parseCall(node, start)
	}

	return node
}

func (p *Parser) parseCall(callee *Node, start int) *Node {
	p.advance() // '('

	args := NewNode(KindArgumentList, p.span(start))
	for p.peekTag() != tagRParen && p.peekTag() != tagEOF {
		args.Children = append(args.Children, p.parseExpression())
		if !p.accept(tagComma) {
			break
		}
	}

	p.expect(tagRParen, "')'")

	node := NewNode(KindProcCall, p.span(start))
	node.Lhs = callee
	node.Rhs = args

	return node
}

func (p *Parser) parsePrimary() *Node {
	start := p.here()

	switch p.peekTag() {
	case tagNumber:
		tok := p.advance()
		text := p.text(tok)
		node := NewNode(KindNumberLiteral, p.span(start))

		nt := NumberInteger
		for _, r := range text {
			if r == '.' {
				nt = NumberFloating
				break
			}
		}

		node.Token = Token{Type: "number", Value: text, NumberType: nt}

		return node

	case tagString:
		tok := p.advance()
		raw := p.text(tok)
		node := NewNode(KindStringLiteral, p.span(start))
		node.Token = Token{Type: "string", Value: unescape(raw)}

		return node

	case tagLParen:
		p.advance()
		expr := p.parseExpression()
		p.expect(tagRParen, "')'")

		return expr

	case tagLBrace:
		return p.parseBlock()

	case tagIdent:
		return p.parseQualifiedSymbol()

	case tagKeyword:
		switch p.text(p.peek()) {
		case "true", "false":
			tok := p.advance()
			node := NewNode(KindBooleanLiteral, p.span(start))
			node.Token = Token{Type: "boolean", Value: p.text(tok)}

			return node
		case "null":
			p.advance()
			return NewNode(KindNullLiteral, p.span(start))
		case "if":
			return p.parseIf()
		case "while":
			return p.parseWhile()
		case "proc":
			return p.parseProc()
		case "struct":
			return p.parseAggregate(KindStructExpression)
		case "union":
			return p.parseAggregate(KindUnionExpression)
		case "enum":
			return p.parseAggregate(KindEnumExpression)
		case "cast":
			return p.parseConversion(KindCastExpression)
		case "transmute":
			return p.parseConversion(KindTransmuteExpression)
		case "alias":
			return p.parseConversion(KindAliasExpression)
		case "namespace":
			return p.parseNamespaceExpr()
		case "module":
			return p.parseModuleExpr()
		}
	}

	p.result.AddError("P001", p.loc(p.peek()), p.file.Filename(), "unexpected token")
	p.advance()

	return NewNode(KindNullLiteral, p.span(start))
}

// parseQualifiedSymbol parses a possibly `::`-separated identifier chain
// (e.g. `math::pi`) into a single symbol node. Declaration targets never
// reach this path with a
// trailing `::` continuation, since parseSimpleStatement only calls this
// for the type-name and RHS-reference positions.
func (p *Parser) parseQualifiedSymbol() *Node {
	start := p.here()
	tok := p.expect(tagIdent, "identifier")

	parts := []string{p.text(tok)}

	for p.peekTag() == tagColonColon && p.toks[min(p.pos+1, len(p.toks)-1)].tag == tagIdent {
		p.advance()
		next := p.advance()
		parts = append(parts, p.text(next))
	}

	node := NewNode(KindSymbol, p.span(start))
	node.Token = Token{Type: "identifier", Value: joinParts(parts)}
	node.IsQualifiedSymbol = len(parts) > 1

	return node
}

func joinParts(parts []string) string {
	out := parts[0]
	for _, part := range parts[1:] {
		out += "::" + part
	}

	return out
}

// unescape expands the minimal backslash-escape grammar accepted by
// scanString, dropping the surrounding quotes.
func unescape(raw string) string {
	if len(raw) < 2 {
		return raw
	}

	body := raw[1 : len(raw)-1]

	out := make([]byte, 0, len(body))
	for i := 0; i < len(body); i++ {
		if body[i] == '\\' && i+1 < len(body) {
			i++

			switch body[i] {
			case 'n':
				out = append(out, '\n')
			case 't':
				out = append(out, '\t')
			case '"':
				out = append(out, '"')
			case '\\':
				out = append(out, '\\')
			default:
				out = append(out, body[i])
			}

			continue
		}

		out = append(out, body[i])
	}

	return string(out)
}

// parseModuleExpr parses `module <expr>`, whose expression must evaluate
// to a constant string path naming the source file to compile in.
func (p *Parser) parseModuleExpr() *Node {
	start := p.here()
	p.advance() // "module"

	node := NewNode(KindModuleExpression, p.span(start))
	node.Lhs = p.parseExpression()
	node.Location = p.span(start)

	return node
}

func (p *Parser) parseIf() *Node {
	start := p.here()
	p.advance() // "if"

	node := NewNode(KindIfExpression, p.span(start))
	node.Lhs = p.parseExpression()
	node.Rhs = p.parseBlock()

	for p.peekTag() == tagKeyword && p.text(p.peek()) == "elseif" {
		elseifStart := p.here()
		p.advance()

		elseif := NewNode(KindElseIfExpression, p.span(elseifStart))
		elseif.Lhs = p.parseExpression()
		elseif.Rhs = p.parseBlock()
		node.Children = append(node.Children, elseif)
	}

	if p.peekTag() == tagKeyword && p.text(p.peek()) == "else" {
		elseStart := p.here()
		p.advance()

		elseNode := NewNode(KindElseExpression, p.span(elseStart))
		elseNode.Lhs = p.parseBlock()
		node.Children = append(node.Children, elseNode)
	}

	node.Location = p.span(start)

	return node
}

func (p *Parser) parseWhile() *Node {
	start := p.here()
	p.advance() // "while"

	node := NewNode(KindWhileExpression, p.span(start))
	node.Lhs = p.parseExpression()
	node.Rhs = p.parseBlock()
	node.Location = p.span(start)

	return node
}

// parseProc parses a proc_expression: `proc(params) -> returns { body }`,
// handling both bare-name and assignment-form parameters.
func (p *Parser) parseProc() *Node {
	start := p.here()
	p.advance() // "proc"

	p.expect(tagLParen, "'('")

	params := NewNode(KindArgumentList, p.span(start))
	for p.peekTag() != tagRParen && p.peekTag() != tagEOF {
		params.Children = append(params.Children, p.parseParam())
		if !p.accept(tagComma) {
			break
		}
	}

	p.expect(tagRParen, "')'")

	var returns *Node
	if p.accept(tagArrow) {
		returns = p.parseTypeName()
	}

	node := NewNode(KindProcExpression, p.span(start))
	node.Lhs = params
	node.TypeName = returns

	// A proc declared without a body (e.g. the target of a #foreign
	// directive) is just a type.
	if p.peekTag() == tagLBrace {
		node.Rhs = p.parseBlock()
	}

	node.Location = p.span(start)

	return node
}

// parseParam parses a single parameter, either bare (`name: type`) or
// assignment-form with a default value (`name: type := default`).
func (p *Parser) parseParam() *Node {
	start := p.here()
	nameTok := p.expect(tagIdent, "parameter name")

	node := NewNode(KindAssignment, p.span(start))
	symbol := NewNode(KindSymbol, *p.loc(nameTok))
	symbol.Token = Token{Type: "identifier", Value: p.text(nameTok)}
	node.Lhs = symbol

	if p.accept(tagColon) {
		node.TypeName = p.parseTypeName()
	}

	if p.accept(tagColonEquals) {
		node.Rhs = p.parseExpression()
	}

	node.Location = p.span(start)

	return node
}

// parseAggregate parses struct/union/enum bodies, which share the same
// brace-delimited member-list surface grammar.
func (p *Parser) parseAggregate(kind Kind) *Node {
	start := p.here()
	p.advance() // "struct" | "union" | "enum"

	node := NewNode(kind, p.span(start))
	node.Rhs = p.parseBlock()
	node.Location = p.span(start)

	return node
}

// parseConversion parses `cast(type, expr)`, `transmute(type, expr)`, and
// `alias(type)` forms.
func (p *Parser) parseConversion(kind Kind) *Node {
	start := p.here()
	p.advance() // keyword

	p.expect(tagLParen, "'('")

	node := NewNode(kind, p.span(start))
	node.TypeName = p.parseTypeName()

	if p.accept(tagComma) {
		node.Lhs = p.parseExpression()
	}

	p.expect(tagRParen, "')'")
	node.Location = p.span(start)

	return node
}
