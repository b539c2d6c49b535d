package binding

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"

	"github.com/polisai/polis-bindings/pkg/domain"
)

// ServicesEnv holds the platform binding document.
const ServicesEnv = "VCAP_SERVICES"

var errTrailingData = errors.New("unexpected data after top-level object")

// Parser reads binding documents of the form
//
//	{"<label>": [{"name": "...", "tags": ["..."], "credentials": {"k": "v"}}]}
//
// A Parser holds no state between calls and is safe for concurrent use.
type Parser struct {
	Logger *slog.Logger
}

// NewParser creates a parser that reports skipped bindings to logger.
func NewParser(logger *slog.Logger) *Parser {
	return &Parser{Logger: logger}
}

func (p *Parser) logger() *slog.Logger {
	if p != nil && p.Logger != nil {
		return p.Logger
	}
	return slog.Default()
}

// FromEnv parses the document in VCAP_SERVICES. A missing or blank variable
// yields an empty catalog.
func (p *Parser) FromEnv(lookup func(string) (string, bool)) ([]domain.ServiceInstance, error) {
	blob, ok := lookup(ServicesEnv)
	if !ok || strings.TrimSpace(blob) == "" {
		p.logger().Debug("No platform binding information present", "env", ServicesEnv)
		return nil, nil
	}
	instances, err := p.Parse(strings.NewReader(blob))
	var perr *domain.ParseError
	if errors.As(err, &perr) {
		perr.Source = ServicesEnv
	}
	return instances, err
}

// Parse reads a binding document in one forward pass. Syntax errors and a
// non-object top level are reported as *domain.ParseError. Individual
// bindings of the wrong shape are skipped with a warning.
func (p *Parser) Parse(r io.Reader) ([]domain.ServiceInstance, error) {
	c := newCursor(r)

	instances, err := p.parseCatalog(c)
	if err != nil {
		return nil, &domain.ParseError{Offset: c.offset(), Err: err}
	}
	return instances, nil
}

func (p *Parser) parseCatalog(c *cursor) ([]domain.ServiceInstance, error) {
	if err := c.expect('{'); err != nil {
		return nil, err
	}

	var instances []domain.ServiceInstance
	for c.more() {
		keyTok, err := c.next()
		if err != nil {
			return nil, err
		}
		label, _ := keyTok.(string)

		tok, err := c.next()
		if err != nil {
			return nil, err
		}
		if !isDelim(tok, '[') {
			p.logger().Warn("Skipping binding label with non-array value",
				"label", label, "found", describeToken(tok))
			if err := c.skipFrom(tok); err != nil {
				return nil, err
			}
			continue
		}

		for index := 0; c.more(); index++ {
			instance, ok, err := p.parseBinding(c, label, index)
			if err != nil {
				return nil, err
			}
			if ok {
				instances = append(instances, instance)
			}
		}
		if err := c.expect(']'); err != nil {
			return nil, err
		}
	}
	if err := c.expect('}'); err != nil {
		return nil, err
	}

	if tok, err := c.next(); err != io.EOF {
		if err != nil {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %s", errTrailingData, describeToken(tok))
	}
	return instances, nil
}

// parseBinding reads one array element. It returns ok=false for elements
// that are skipped; err is only set when the document itself is broken.
func (p *Parser) parseBinding(c *cursor, label string, index int) (domain.ServiceInstance, bool, error) {
	tok, err := c.next()
	if err != nil {
		return domain.ServiceInstance{}, false, err
	}
	if !isDelim(tok, '{') {
		p.warnSkipped(label, index, "binding is not an object")
		return domain.ServiceInstance{}, false, c.skipFrom(tok)
	}

	b := domain.NewServiceInstanceBuilder(label)
	var problem string
	for c.more() {
		keyTok, err := c.next()
		if err != nil {
			return domain.ServiceInstance{}, false, err
		}
		key, _ := keyTok.(string)

		var reason string
		switch key {
		case "name":
			reason, err = readName(c, b)
		case "tags":
			reason, err = readTags(c, b)
		case "credentials":
			reason, err = p.readCredentials(c, b, label)
		default:
			err = c.skip()
		}
		if err != nil {
			return domain.ServiceInstance{}, false, err
		}
		if problem == "" {
			problem = reason
		}
	}
	if err := c.expect('}'); err != nil {
		return domain.ServiceInstance{}, false, err
	}

	if problem != "" {
		p.warnSkipped(label, index, problem)
		return domain.ServiceInstance{}, false, nil
	}
	if !b.HasName() {
		p.logger().Debug("Dropping binding without name", "label", label, "index", index)
		return domain.ServiceInstance{}, false, nil
	}
	return b.Build(), true, nil
}

func (p *Parser) warnSkipped(label string, index int, reason string) {
	p.logger().Warn("Skipping malformed binding", "label", label, "index", index, "reason", reason)
}

func readName(c *cursor, b *domain.ServiceInstanceBuilder) (string, error) {
	tok, err := c.next()
	if err != nil {
		return "", err
	}
	switch v := tok.(type) {
	case string:
		b.Name(v)
		return "", nil
	case nil:
		return "", nil
	default:
		return "name is not a string", c.skipFrom(tok)
	}
}

func readTags(c *cursor, b *domain.ServiceInstanceBuilder) (string, error) {
	tok, err := c.next()
	if err != nil {
		return "", err
	}
	if tok == nil {
		return "", nil
	}
	if !isDelim(tok, '[') {
		return "tags is not an array", c.skipFrom(tok)
	}

	var reason string
	for c.more() {
		tok, err := c.next()
		if err != nil {
			return "", err
		}
		tag, ok := tok.(string)
		if !ok {
			reason = "tag is not a string"
			if err := c.skipFrom(tok); err != nil {
				return "", err
			}
			continue
		}
		b.Tag(tag)
	}
	return reason, c.expect(']')
}

func (p *Parser) readCredentials(c *cursor, b *domain.ServiceInstanceBuilder, label string) (string, error) {
	tok, err := c.next()
	if err != nil {
		return "", err
	}
	if tok == nil {
		return "", nil
	}
	if !isDelim(tok, '{') {
		return "credentials is not an object", c.skipFrom(tok)
	}

	for c.more() {
		keyTok, err := c.next()
		if err != nil {
			return "", err
		}
		key, _ := keyTok.(string)

		tok, err := c.next()
		if err != nil {
			return "", err
		}
		switch v := tok.(type) {
		case string:
			b.Credential(key, v)
		case json.Number:
			b.Credential(key, v.String())
		case bool:
			b.Credential(key, strconv.FormatBool(v))
		case nil:
		default:
			p.logger().Debug("Ignoring non-scalar credential", "label", label, "key", key)
			if err := c.skipFrom(tok); err != nil {
				return "", err
			}
		}
	}
	return "", c.expect('}')
}
