package parsing

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"unicode"

	"github.com/shopspring/decimal"

	"github.com/cloudx-io/openclearing/core"
)

// GML node attribute values for the bipartite key.
const (
	gmlSeller = 0
	gmlBuyer  = 1
)

type gmlKind int

const (
	gmlNumber gmlKind = iota
	gmlString
	gmlList
)

type gmlValue struct {
	kind gmlKind
	text string
	list []gmlPair
	line int
}

type gmlPair struct {
	key   string
	value gmlValue
}

func (v gmlValue) describe() string {
	switch v.kind {
	case gmlNumber:
		return "number"
	case gmlString:
		return "string"
	default:
		return "list"
	}
}

type gmlToken struct {
	text   string
	quoted bool
	line   int
}

type gmlLexer struct {
	r    *bufio.Reader
	line int
}

func newGMLLexer(r io.Reader) *gmlLexer {
	return &gmlLexer{r: bufio.NewReader(r), line: 1}
}

// next returns the next token, or io.EOF.
func (l *gmlLexer) next() (gmlToken, error) {
	for {
		c, _, err := l.r.ReadRune()
		if err != nil {
			return gmlToken{}, err
		}
		switch {
		case c == '\n':
			l.line++
		case unicode.IsSpace(c):
		case c == '#':
			if _, err := l.r.ReadString('\n'); err != nil && !errors.Is(err, io.EOF) {
				return gmlToken{}, err
			}
			l.line++
		case c == '[' || c == ']':
			return gmlToken{text: string(c), line: l.line}, nil
		case c == '"':
			return l.readString()
		default:
			if err := l.r.UnreadRune(); err != nil {
				return gmlToken{}, err
			}
			return l.readWord()
		}
	}
}

func (l *gmlLexer) readString() (gmlToken, error) {
	start := l.line
	var sb strings.Builder
	for {
		c, _, err := l.r.ReadRune()
		if errors.Is(err, io.EOF) {
			return gmlToken{}, fmt.Errorf("line %d: unterminated string", start)
		}
		if err != nil {
			return gmlToken{}, err
		}
		if c == '"' {
			return gmlToken{text: unescapeGML(sb.String()), quoted: true, line: start}, nil
		}
		if c == '\n' {
			l.line++
		}
		sb.WriteRune(c)
	}
}

func (l *gmlLexer) readWord() (gmlToken, error) {
	var sb strings.Builder
	for {
		c, _, err := l.r.ReadRune()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return gmlToken{}, err
		}
		if unicode.IsSpace(c) || c == '[' || c == ']' || c == '"' || c == '#' {
			if err := l.r.UnreadRune(); err != nil {
				return gmlToken{}, err
			}
			break
		}
		sb.WriteRune(c)
	}
	return gmlToken{text: sb.String(), line: l.line}, nil
}

// GML strings escape quotes and ampersands as HTML character entities.
var gmlEntities = strings.NewReplacer("&quot;", `"`, "&amp;", "&", "&lt;", "<", "&gt;", ">", "&#34;", `"`, "&#38;", "&")

func unescapeGML(s string) string {
	if !strings.Contains(s, "&") {
		return s
	}
	return gmlEntities.Replace(s)
}

func isGMLKey(s string) bool {
	if s == "" {
		return false
	}
	for i, c := range s {
		if c == '_' || unicode.IsLetter(c) || (i > 0 && unicode.IsDigit(c)) {
			continue
		}
		return false
	}
	return true
}

// parseGMLList reads key-value pairs until a closing bracket (nested) or EOF
// (top level).
func parseGMLList(l *gmlLexer, nested bool) ([]gmlPair, error) {
	var pairs []gmlPair
	for {
		tok, err := l.next()
		if errors.Is(err, io.EOF) {
			if nested {
				return nil, fmt.Errorf("line %d: missing ']'", l.line)
			}
			return pairs, nil
		}
		if err != nil {
			return nil, err
		}
		if tok.text == "]" && !tok.quoted {
			if !nested {
				return nil, fmt.Errorf("line %d: unexpected ']'", tok.line)
			}
			return pairs, nil
		}
		if tok.quoted || !isGMLKey(tok.text) {
			return nil, fmt.Errorf("line %d: expected key, got %q", tok.line, tok.text)
		}

		value, err := parseGMLValue(l)
		if err != nil {
			return nil, err
		}
		pairs = append(pairs, gmlPair{key: tok.text, value: value})
	}
}

func parseGMLValue(l *gmlLexer) (gmlValue, error) {
	tok, err := l.next()
	if errors.Is(err, io.EOF) {
		return gmlValue{}, fmt.Errorf("line %d: missing value", l.line)
	}
	if err != nil {
		return gmlValue{}, err
	}
	switch {
	case tok.quoted:
		return gmlValue{kind: gmlString, text: tok.text, line: tok.line}, nil
	case tok.text == "[":
		list, err := parseGMLList(l, true)
		if err != nil {
			return gmlValue{}, err
		}
		return gmlValue{kind: gmlList, list: list, line: tok.line}, nil
	case tok.text == "]":
		return gmlValue{}, fmt.Errorf("line %d: missing value before ']'", tok.line)
	default:
		if _, err := decimal.NewFromString(tok.text); err != nil {
			return gmlValue{}, fmt.Errorf("line %d: invalid number %q", tok.line, tok.text)
		}
		return gmlValue{kind: gmlNumber, text: tok.text, line: tok.line}, nil
	}
}

type gmlNode struct {
	name  string
	role  int
	price int64
	line  int
}

type gmlEdge struct {
	source, target string
	valuation      decimal.Decimal
	line           int
}

// ParseGML reads a bipartite market graph in GML. Nodes carry an integer id,
// an optional label (used as the node name), bipartite (1 for buyers, 0 for
// sellers) and an optional non-negative integer price, which buyers ignore.
// Edges carry source, target and valuation.
func ParseGML(r io.Reader) (*core.Market, error) {
	top, err := parseGMLList(newGMLLexer(r), false)
	if err != nil {
		return nil, err
	}

	var graph *gmlValue
	for i := range top {
		if top[i].key == "graph" {
			if graph != nil {
				return nil, fmt.Errorf("line %d: more than one graph", top[i].value.line)
			}
			graph = &top[i].value
		}
	}
	if graph == nil || graph.kind != gmlList {
		return nil, errors.New("no graph found")
	}

	var (
		nodes []gmlNode
		edges []gmlEdge
		byID  = make(map[string]int)
	)
	for _, pair := range graph.list {
		switch pair.key {
		case "node":
			node, id, err := decodeGMLNode(pair.value)
			if err != nil {
				return nil, err
			}
			if _, dup := byID[id]; dup {
				return nil, fmt.Errorf("line %d: duplicate node id %s", node.line, id)
			}
			byID[id] = len(nodes)
			nodes = append(nodes, node)
		case "edge":
			edge, err := decodeGMLEdge(pair.value)
			if err != nil {
				return nil, err
			}
			edges = append(edges, edge)
		}
	}

	m := core.NewMarket()
	for _, n := range nodes {
		if n.role == gmlBuyer {
			if err := m.AddBuyer(n.name); err != nil {
				return nil, fmt.Errorf("line %d: %w", n.line, err)
			}
		}
	}
	for _, n := range nodes {
		if n.role == gmlSeller {
			if err := m.AddSeller(n.name, n.price); err != nil {
				return nil, fmt.Errorf("line %d: %w", n.line, err)
			}
		}
	}

	seen := make(map[[2]string]bool, len(edges))
	for _, e := range edges {
		si, ok := byID[e.source]
		if !ok {
			return nil, fmt.Errorf("line %d: edge references unknown node %s", e.line, e.source)
		}
		ti, ok := byID[e.target]
		if !ok {
			return nil, fmt.Errorf("line %d: edge references unknown node %s", e.line, e.target)
		}
		src, dst := nodes[si], nodes[ti]
		if src.role == dst.role {
			return nil, fmt.Errorf("line %d: edge %s-%s joins two nodes of the same side", e.line, src.name, dst.name)
		}
		buyer, seller := src, dst
		if buyer.role != gmlBuyer {
			buyer, seller = dst, src
		}

		key := [2]string{buyer.name, seller.name}
		if seen[key] {
			return nil, fmt.Errorf("line %d: duplicate edge %s-%s", e.line, buyer.name, seller.name)
		}
		seen[key] = true

		if err := m.SetValuation(buyer.name, seller.name, e.valuation); err != nil {
			return nil, fmt.Errorf("line %d: %w", e.line, err)
		}
	}
	return m, nil
}

func decodeGMLNode(v gmlValue) (gmlNode, string, error) {
	if v.kind != gmlList {
		return gmlNode{}, "", fmt.Errorf("line %d: node must be a list, got %s", v.line, v.describe())
	}
	node := gmlNode{role: -1, line: v.line}
	var id string
	for _, attr := range v.list {
		switch attr.key {
		case "id":
			if attr.value.kind != gmlNumber {
				return gmlNode{}, "", fmt.Errorf("line %d: node id must be a number", attr.value.line)
			}
			n, err := strconv.ParseInt(attr.value.text, 10, 64)
			if err != nil {
				return gmlNode{}, "", fmt.Errorf("line %d: node id must be an integer, got %s", attr.value.line, attr.value.text)
			}
			id = strconv.FormatInt(n, 10)
		case "label":
			if attr.value.kind != gmlString {
				return gmlNode{}, "", fmt.Errorf("line %d: node label must be a string", attr.value.line)
			}
			node.name = attr.value.text
		case "bipartite":
			n, err := gmlInt(attr.value)
			if err != nil || (n != gmlBuyer && n != gmlSeller) {
				return gmlNode{}, "", fmt.Errorf("line %d: bipartite must be 0 or 1", attr.value.line)
			}
			node.role = int(n)
		case "price":
			n, err := gmlInt(attr.value)
			if err != nil {
				return gmlNode{}, "", fmt.Errorf("line %d: price: %w", attr.value.line, err)
			}
			if n < 0 {
				return gmlNode{}, "", fmt.Errorf("line %d: price must not be negative", attr.value.line)
			}
			node.price = n
		}
	}
	if id == "" {
		return gmlNode{}, "", fmt.Errorf("line %d: node without id", v.line)
	}
	if node.name == "" {
		node.name = id
	}
	if node.role < 0 {
		return gmlNode{}, "", fmt.Errorf("line %d: node %s has no bipartite attribute", v.line, node.name)
	}
	return node, id, nil
}

func decodeGMLEdge(v gmlValue) (gmlEdge, error) {
	if v.kind != gmlList {
		return gmlEdge{}, fmt.Errorf("line %d: edge must be a list, got %s", v.line, v.describe())
	}
	edge := gmlEdge{line: v.line}
	hasValuation := false
	for _, attr := range v.list {
		switch attr.key {
		case "source", "target":
			n, err := gmlInt(attr.value)
			if err != nil {
				return gmlEdge{}, fmt.Errorf("line %d: %s: %w", attr.value.line, attr.key, err)
			}
			if attr.key == "source" {
				edge.source = strconv.FormatInt(n, 10)
			} else {
				edge.target = strconv.FormatInt(n, 10)
			}
		case "valuation":
			if attr.value.kind != gmlNumber {
				return gmlEdge{}, fmt.Errorf("line %d: valuation must be a number", attr.value.line)
			}
			d, err := decimal.NewFromString(attr.value.text)
			if err != nil {
				return gmlEdge{}, fmt.Errorf("line %d: valuation: %w", attr.value.line, err)
			}
			edge.valuation = d
			hasValuation = true
		}
	}
	if edge.source == "" || edge.target == "" {
		return gmlEdge{}, fmt.Errorf("line %d: edge needs source and target", v.line)
	}
	if !hasValuation {
		return gmlEdge{}, fmt.Errorf("line %d: edge %s-%s has no valuation", v.line, edge.source, edge.target)
	}
	return edge, nil
}

func gmlInt(v gmlValue) (int64, error) {
	if v.kind != gmlNumber {
		return 0, fmt.Errorf("expected a number, got %s", v.describe())
	}
	d, err := decimal.NewFromString(v.text)
	if err != nil {
		return 0, err
	}
	if !d.IsInteger() {
		return 0, fmt.Errorf("expected an integer, got %s", v.text)
	}
	return d.IntPart(), nil
}
