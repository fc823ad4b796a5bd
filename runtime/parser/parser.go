// Package parser builds bloom syntax trees inside an arena.
//
// Parsing allocates the node, parameter and return-type arrays provisionally,
// each sized to the token count, fills them by recursive descent and then
// compacts them into tight arrays at the same arena offset. Every handle in
// the tree is rebased onto the compacted arrays; handles carry the block
// generation they were issued for, so a read through a provisional handle
// after compaction panics instead of returning stale data.
package parser

import (
	"fmt"
	"time"
	"unsafe"

	"github.com/aledsdavies/bloom/core/arena"
	"github.com/aledsdavies/bloom/core/invariant"
	"github.com/aledsdavies/bloom/runtime/lexer"
)

// arenaSlack covers alignment padding of the parser's allocations.
const arenaSlack = 8 * 8

// Parse parses pre-lexed tokens, allocating the tree into a. The tokens must
// end with END. Tree.Source is nil; use ParseSource to keep the text.
func Parse(tokens []lexer.Token, a *arena.Arena, opts ...ParserOpt) *Tree {
	return parse(nil, tokens, a, newConfig(opts))
}

// ParseSource tokenizes source into a and parses the tokens. Only a fatal
// tokenization error is returned; parse errors are recorded in Tree.Errors.
func ParseSource(source []byte, a *arena.Arena, opts ...ParserOpt) (*Tree, error) {
	config := newConfig(opts)

	start := time.Now()
	tokens, err := lexer.Tokenize(source, a)
	if err != nil {
		return nil, fmt.Errorf("tokenize: %w", err)
	}
	lexTime := time.Since(start)

	tree := parse(source, tokens, a, config)
	if tree.Telemetry != nil {
		tree.Telemetry.LexTime = lexTime
		tree.Telemetry.TotalTime += lexTime
	}
	return tree, nil
}

// ParseString is a convenience wrapper for tests
func ParseString(input string, a *arena.Arena, opts ...ParserOpt) (*Tree, error) {
	return ParseSource([]byte(input), a, opts...)
}

// RequiredArenaSize returns an arena budget that always fits ParseSource on
// an input of n bytes with the given options.
func RequiredArenaSize(n int, opts ...ParserOpt) int {
	config := newConfig(opts)
	tokens := n + 1
	perToken := int(unsafe.Sizeof(Node{}) + unsafe.Sizeof(Param{}) + unsafe.Sizeof(TypeAnnotation{}))
	errorLog := max(config.errorCapacity, 0) * int(unsafe.Sizeof(ParseError{}))

	// Provisional arrays plus their tight copies, both sized for the worst case.
	return lexer.RequiredArenaSize(n) + errorLog + 2*tokens*perToken + arenaSlack
}

func parse(source []byte, tokens []lexer.Token, a *arena.Arena, config *ParserConfig) *Tree {
	invariant.NotNil(a, "arena")
	invariant.Precondition(len(tokens) > 0 && tokens[len(tokens)-1].Type == lexer.END,
		"token stream must end with END")

	var telemetry *ParseTelemetry
	var startTotal time.Time
	if config.telemetry >= TelemetryTiming {
		startTotal = time.Now()
		telemetry = &ParseTelemetry{TokenCount: len(tokens)}
	}

	var debugEvents []DebugEvent
	if config.debug > DebugOff {
		debugEvents = make([]DebugEvent, 0, 100)
	}

	// The log sits below the initial marker so compaction never moves it.
	errors := newErrorLog(a, config.errorCapacity)

	initial := a.Mark()
	p := &parser{
		tokens:      tokens,
		arena:       a,
		nodes:       arena.Allocate[Node](a, len(tokens)),
		params:      arena.Allocate[Param](a, len(tokens)),
		types:       arena.Allocate[TypeAnnotation](a, len(tokens)),
		errors:      errors,
		ctx:         parseContext{proc: NoNode},
		config:      config,
		debugEvents: debugEvents,
	}
	if telemetry != nil {
		telemetry.ProvisionalBytes = a.Since(initial)
	}

	var startParse time.Time
	if telemetry != nil {
		startParse = time.Now()
	}

	p.file()

	if telemetry != nil {
		telemetry.ParseTime = time.Since(startParse)
		startParse = time.Now()
	}

	final := p.compact(initial)

	if telemetry != nil {
		telemetry.CompactTime = time.Since(startParse)
		telemetry.TotalTime = time.Since(startTotal)
		telemetry.NodeCount = final.nodes.Len()
		telemetry.ParamCount = final.params.Len()
		telemetry.TypeCount = final.types.Len()
		telemetry.ErrorCount = errors.Len() + errors.Dropped()
		telemetry.FinalBytes = final.bytes
		telemetry.ReclaimedBytes = final.reclaimed
	}

	return &Tree{
		Source:      source,
		Tokens:      tokens,
		Nodes:       final.nodes.Items,
		Params:      final.params.Items,
		Types:       final.types.Items,
		Errors:      errors,
		Telemetry:   telemetry,
		DebugEvents: p.debugEvents,
		nodes:       final.nodes,
		params:      final.params,
		types:       final.types,
	}
}

// parseContext is the state threaded through the descent.
type parseContext struct {
	binder lexer.Token // identifier bound to the procedure being parsed
	proc   NodeRef     // innermost enclosing procedure, NoNode at top level
	depth  int         // indent level of the current body
}

// checkpoint captures the cursors at the start of a top-level construct.
type checkpoint struct {
	pos, nodes, params, types int
}

// parser is the internal parser state
type parser struct {
	tokens []lexer.Token
	pos    int
	arena  *arena.Arena

	nodes      arena.Block[Node]
	nodeCount  int
	params     arena.Block[Param]
	paramCount int
	types      arena.Block[TypeAnnotation]
	typeCount  int

	errors      *ErrorLog
	ctx         parseContext
	config      *ParserConfig
	debugEvents []DebugEvent
}

// recordDebugEvent records debug events when debug tracing is enabled
func (p *parser) recordDebugEvent(event, context string) {
	if p.config.debug == DebugOff || p.debugEvents == nil {
		return
	}

	p.debugEvents = append(p.debugEvents, DebugEvent{
		Timestamp: time.Now(),
		Event:     event,
		TokenPos:  p.pos,
		Context:   context,
	})
}

// file parses top-level definitions until END. A failed definition is
// discarded and parsing resumes at the next top-level binder, or stops when
// WithAbortOnError is set.
func (p *parser) file() {
	if p.config.debug > DebugOff {
		p.recordDebugEvent("enter_file", "parsing source")
	}

	for {
		p.skipBlankLines()
		if p.at(lexer.END) {
			break
		}

		start := p.checkpoint()
		if p.topLevel() {
			continue
		}
		p.rollback(start)
		if p.config.abortOnError {
			break
		}
		p.synchronize(start.pos)
	}

	if p.config.debug > DebugOff {
		p.recordDebugEvent("exit_file", fmt.Sprintf("%d nodes", p.nodeCount))
	}
}

// topLevel parses: identifier '::' (INTEGER | proc ...)
func (p *parser) topLevel() bool {
	name, ok := p.expect(lexer.IDENTIFIER)
	if !ok {
		return false
	}
	if _, ok := p.expect(lexer.CONST_DEF); !ok {
		return false
	}
	p.ctx.binder = name

	switch p.current().Type {
	case lexer.INTEGER:
		ref := p.varDef(name, NoNode, true)
		p.nodes.Items[ref].Value = p.integerLiteral(ref)
		return p.expectLineEnd()
	case lexer.KEYWORD_PROC:
		_, ok := p.procDef(NoNode)
		return ok
	default:
		p.unexpected(Tokens(lexer.INTEGER, lexer.KEYWORD_PROC))
		return false
	}
}

// procDef parses: proc '(' params ')' ['->' identifier] NEWLINE body
// for the binder in p.ctx.
func (p *parser) procDef(parent NodeRef) (NodeRef, bool) {
	binder := p.ctx.binder
	if p.config.debug > DebugOff {
		p.recordDebugEvent("enter_procDef", "binder at "+binder.Position.String())
	}

	if _, ok := p.expect(lexer.KEYWORD_PROC); !ok {
		return NoNode, false
	}
	if _, ok := p.expect(lexer.LPAREN); !ok {
		return NoNode, false
	}

	paramStart := p.paramCount
	if !p.paramList() {
		return NoNode, false
	}

	var returnType arena.Handle
	if p.at(lexer.ARROW) {
		p.advance()
		typ, ok := p.expect(lexer.IDENTIFIER)
		if !ok {
			return NoNode, false
		}
		returnType = p.appendType(TypeAnnotation{Name: typ.Text, Position: typ.Position})
	}

	p.skipTrailingRun()
	if _, ok := p.expect(lexer.NEWLINE); !ok {
		return NoNode, false
	}

	ref := p.appendNode(Node{
		Kind:       NodeProcDef,
		Parent:     parent,
		Value:      NoNode,
		Position:   binder.Position,
		Name:       binder.Text,
		Params:     p.params.Handle(paramStart, p.paramCount-paramStart),
		ReturnType: returnType,
	})

	saved := p.ctx
	p.ctx.proc = ref
	p.ctx.depth++
	ok := p.body()
	p.ctx = saved

	if p.config.debug > DebugOff {
		p.recordDebugEvent("exit_procDef", fmt.Sprintf("ok=%t", ok))
	}
	return ref, ok
}

// paramList parses: (identifier ':' identifier ','?)* ')'
func (p *parser) paramList() bool {
	for {
		switch p.current().Type {
		case lexer.RPAREN:
			p.advance()
			return true
		case lexer.COMMA:
			p.advance() // trailing and repeated commas are skipped
		case lexer.IDENTIFIER:
			name := p.current()
			p.advance()
			if _, ok := p.expect(lexer.TYPE_SEPARATOR); !ok {
				return false
			}
			typ, ok := p.expect(lexer.IDENTIFIER)
			if !ok {
				return false
			}
			p.appendParam(Param{Name: name.Text, Type: typ.Text, Position: name.Position})
		case lexer.NEWLINE, lexer.END:
			p.missing(Tokens(lexer.RPAREN))
			return false
		default:
			p.unexpected(Tokens(lexer.IDENTIFIER, lexer.COMMA, lexer.RPAREN))
			return false
		}
	}
}

// body parses one or more lines indented at the current depth into the
// procedure in p.ctx. A trailing addition gets a synthesized Return that
// adopts it.
func (p *parser) body() bool {
	proc := p.ctx.proc
	start := p.nodeCount
	last := NoNode

	for {
		p.skipBlankLines()
		tok := p.current()
		if tok.Type != lexer.INDENT || int(tok.Value) < p.ctx.depth {
			break
		}
		if int(tok.Value) > p.ctx.depth {
			p.unexpected(Tokens(lexer.IDENTIFIER, lexer.KEYWORD_PASS))
			return false
		}
		p.advance()

		stmt, ok := p.statement()
		if !ok || !p.expectLineEnd() {
			return false
		}
		last = stmt
	}

	if last == NoNode {
		p.unexpected(Tokens(lexer.INDENT))
		return false
	}

	if p.nodes.Items[last].Kind == NodeBinaryAdd {
		ret := p.appendNode(Node{
			Kind:     NodeReturn,
			Parent:   proc,
			Value:    last,
			Position: p.nodes.Items[last].Position,
		})
		p.nodes.Items[last].Parent = ret
	}

	p.nodes.Items[proc].Children = p.nodes.Handle(start, p.nodeCount-start)
	return true
}

// statement parses a call, a binding, an addition or pass
func (p *parser) statement() (NodeRef, bool) {
	proc := p.ctx.proc
	tok := p.current()
	switch tok.Type {
	case lexer.KEYWORD_PASS:
		p.advance()
		return p.appendNode(Node{Kind: NodePass, Parent: proc, Value: NoNode, Position: tok.Position}), true

	case lexer.IDENTIFIER:
		p.advance()
		switch p.current().Type {
		case lexer.LPAREN:
			return p.procCall(tok)
		case lexer.VAR_DEF:
			return p.binding(tok)
		case lexer.ADD:
			return p.binaryAdd(tok)
		}
		p.unexpected(Tokens(lexer.LPAREN, lexer.VAR_DEF, lexer.ADD))
		return NoNode, false

	default:
		p.unexpected(Tokens(lexer.IDENTIFIER, lexer.KEYWORD_PASS))
		return NoNode, false
	}
}

// procCall parses: '(' ((identifier | STRING) ','?)* ')'
func (p *parser) procCall(callee lexer.Token) (NodeRef, bool) {
	p.advance() // consume '('

	ref := p.appendNode(Node{
		Kind:     NodeProcCall,
		Parent:   p.ctx.proc,
		Value:    NoNode,
		Position: callee.Position,
		Name:     callee.Text,
	})
	start := p.nodeCount

	for {
		tok := p.current()
		switch tok.Type {
		case lexer.RPAREN:
			p.advance()
			p.nodes.Items[ref].Children = p.nodes.Handle(start, p.nodeCount-start)
			return ref, true
		case lexer.COMMA:
			p.advance()
		case lexer.IDENTIFIER:
			p.advance()
			p.appendNode(Node{Kind: NodeIdentifier, Parent: ref, Value: NoNode, Position: tok.Position, Name: tok.Text})
		case lexer.STRING:
			p.advance()
			p.appendNode(Node{Kind: NodeStringLiteral, Parent: ref, Value: NoNode, Position: tok.Position, Name: tok.Text})
		case lexer.NEWLINE, lexer.END:
			p.missing(Tokens(lexer.RPAREN))
			return NoNode, false
		default:
			p.unexpected(Tokens(lexer.IDENTIFIER, lexer.STRING, lexer.RPAREN))
			return NoNode, false
		}
	}
}

// binding parses: ':=' (INTEGER | proc ...)
func (p *parser) binding(name lexer.Token) (NodeRef, bool) {
	p.advance() // consume ':='
	ref := p.varDef(name, p.ctx.proc, false)
	p.ctx.binder = name

	switch p.current().Type {
	case lexer.INTEGER:
		p.nodes.Items[ref].Value = p.integerLiteral(ref)
		return ref, true
	case lexer.KEYWORD_PROC:
		inner, ok := p.procDef(ref)
		if !ok {
			return NoNode, false
		}
		p.nodes.Items[ref].Value = inner
		return ref, true
	default:
		p.unexpected(Tokens(lexer.INTEGER, lexer.KEYWORD_PROC))
		return NoNode, false
	}
}

// binaryAdd parses: '+' identifier
func (p *parser) binaryAdd(left lexer.Token) (NodeRef, bool) {
	p.advance() // consume '+'

	right, ok := p.expect(lexer.IDENTIFIER)
	if !ok {
		return NoNode, false
	}

	return p.appendNode(Node{
		Kind:     NodeBinaryAdd,
		Parent:   p.ctx.proc,
		Value:    NoNode,
		Position: left.Position,
		Left:     left.Text,
		Right:    right.Text,
	}), true
}

func (p *parser) varDef(name lexer.Token, parent NodeRef, constant bool) NodeRef {
	return p.appendNode(Node{
		Kind:     NodeVarDef,
		Parent:   parent,
		Value:    NoNode,
		Position: name.Position,
		Name:     name.Text,
		Constant: constant,
	})
}

func (p *parser) integerLiteral(parent NodeRef) NodeRef {
	tok := p.current()
	p.advance()
	return p.appendNode(Node{
		Kind:     NodeIntegerLiteral,
		Parent:   parent,
		Value:    NoNode,
		Position: tok.Position,
		Name:     tok.Text,
		Int:      tok.Value,
	})
}

// expectLineEnd accepts the end of a statement: a NEWLINE, END, or a line
// already finished by a nested body.
func (p *parser) expectLineEnd() bool {
	p.skipTrailingRun()
	switch {
	case p.at(lexer.NEWLINE):
		p.advance()
		return true
	case p.at(lexer.END):
		return true
	case p.pos > 0 && p.tokens[p.pos-1].Type == lexer.NEWLINE:
		return true
	default:
		p.unexpected(Tokens(lexer.NEWLINE))
		return false
	}
}

func (p *parser) appendNode(n Node) NodeRef {
	invariant.Invariant(p.nodeCount < p.nodes.Len(),
		"node count exceeds provisional capacity %d", p.nodes.Len())
	p.nodes.Items[p.nodeCount] = n
	p.nodeCount++
	return NodeRef(p.nodeCount - 1)
}

func (p *parser) appendParam(param Param) {
	invariant.Invariant(p.paramCount < p.params.Len(),
		"parameter count exceeds provisional capacity %d", p.params.Len())
	p.params.Items[p.paramCount] = param
	p.paramCount++
}

func (p *parser) appendType(t TypeAnnotation) arena.Handle {
	invariant.Invariant(p.typeCount < p.types.Len(),
		"type count exceeds provisional capacity %d", p.types.Len())
	p.types.Items[p.typeCount] = t
	p.typeCount++
	return p.types.Handle(p.typeCount-1, 1)
}

func (p *parser) checkpoint() checkpoint {
	return checkpoint{pos: p.pos, nodes: p.nodeCount, params: p.paramCount, types: p.typeCount}
}

// rollback drops everything appended since c. The token position is kept.
func (p *parser) rollback(c checkpoint) {
	p.nodeCount = c.nodes
	p.paramCount = c.params
	p.typeCount = c.types
	p.ctx = parseContext{proc: NoNode}

	if p.config.debug > DebugOff {
		p.recordDebugEvent("rollback", fmt.Sprintf("to %d nodes", c.nodes))
	}
}

// synchronize skips to the next top-level binder, always making progress.
func (p *parser) synchronize(from int) {
	if p.pos == from {
		p.advance()
	}
	for !p.at(lexer.END) && !p.atTopLevelBinder() {
		p.advance()
	}
}

// atTopLevelBinder reports whether the current tokens are `identifier ::` in column 1
func (p *parser) atTopLevelBinder() bool {
	tok := p.current()
	return tok.Type == lexer.IDENTIFIER && tok.Position.Column == 1 &&
		p.pos+1 < len(p.tokens) && p.tokens[p.pos+1].Type == lexer.CONST_DEF
}

// skipBlankLines skips empty lines and lines holding only spaces
func (p *parser) skipBlankLines() {
	for p.at(lexer.NEWLINE) || p.atTrailingRun() {
		p.advance()
	}
}

func (p *parser) skipTrailingRun() {
	if p.atTrailingRun() {
		p.advance()
	}
}

// atTrailingRun reports whether the current token is a space run that ends
// its line. Such a run carries no structure.
func (p *parser) atTrailingRun() bool {
	if !p.at(lexer.INDENT) || p.pos+1 >= len(p.tokens) {
		return false
	}
	next := p.tokens[p.pos+1].Type
	return next == lexer.NEWLINE || next == lexer.END
}

// expect consumes a token of type typ or records an UnexpectedToken error
func (p *parser) expect(typ lexer.TokenType) (lexer.Token, bool) {
	tok := p.current()
	if tok.Type != typ {
		p.unexpected(Tokens(typ))
		return tok, false
	}
	p.advance()
	return tok, true
}

func (p *parser) unexpected(expected TokenSet) {
	p.report(UnexpectedToken, expected)
}

func (p *parser) missing(expected TokenSet) {
	p.report(MissingDelimiter, expected)
}

func (p *parser) report(kind ErrorKind, expected TokenSet) {
	tok := p.current()
	err := ParseError{Kind: kind, Position: tok.Position, Found: tok.Type, Expected: expected}
	p.errors.add(err)

	if p.config.debug > DebugOff {
		p.recordDebugEvent("error", err.Error())
	}
}

// at checks if current token is of given type
func (p *parser) at(typ lexer.TokenType) bool {
	return p.current().Type == typ
}

// current returns the current token
func (p *parser) current() lexer.Token {
	return p.tokens[p.pos]
}

// advance moves to the next token, never past END
func (p *parser) advance() {
	if p.tokens[p.pos].Type != lexer.END {
		p.pos++
	}
}
