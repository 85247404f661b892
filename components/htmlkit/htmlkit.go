// Package htmlkit is a sample plugin class exposing HTML sanitising filters,
// a markdown filter and a block tag backed by bluemonday policies.
package htmlkit

import (
	"bytes"
	"fmt"
	"strings"
	"sync"

	"github.com/flosch/pongo2/v6"
	"github.com/gomarkdown/markdown"
	mdhtml "github.com/gomarkdown/markdown/html"
	mdparser "github.com/gomarkdown/markdown/parser"
	"github.com/microcosm-cc/bluemonday"

	"github.com/goliatone/go-plugkit/pkg/plugin"
	"github.com/goliatone/go-plugkit/pkg/settings"
)

// ClassName is the plugin type name used in configuration.
const ClassName = "htmlkit"

// Policy names accepted by the policy setting.
const (
	PolicyUGC    = "ugc"
	PolicyStrict = "strict"
)

// Schema describes htmlkit instance settings.
var Schema = settings.MustParse(`{
  "type": "object",
  "properties": {
    "policy": {"type": "string", "enum": ["ugc", "strict"], "default": "ugc"}
  }
}`)

// SanitizeFilters holds the public sanitising filters.
var SanitizeFilters = &plugin.FilterModule{
	Name: "sanitize",
	Methods: map[string]plugin.FilterFunc{
		"sanitize":   sanitize,
		"strip_html": stripHTML,
	},
}

// MarkdownFilters renders markdown and sanitises the result with the
// instance policy.
var MarkdownFilters = &plugin.FilterModule{
	Name: "markdown",
	Methods: map[string]plugin.FilterFunc{
		"markdown": renderMarkdown,
	},
}

// Class is the htmlkit plugin class.
var Class = &plugin.Class{
	Name: ClassName,
	Tags: map[string]pongo2.TagParser{
		"safe": parseSafe,
	},
	Filters:  []*plugin.FilterModule{SanitizeFilters, MarkdownFilters},
	Settings: Schema,
	New: func(values map[string]any) (plugin.Instance, error) {
		policy, _ := values["policy"].(string)
		return New(policy), nil
	},
}

// Kit is one htmlkit instance.
type Kit struct {
	Policy string
}

// New constructs an instance; unknown policies fall back to ugc.
func New(policy string) *Kit {
	policy = strings.ToLower(strings.TrimSpace(policy))
	if policy != PolicyStrict {
		policy = PolicyUGC
	}
	return &Kit{Policy: policy}
}

// Class implements plugin.Instance.
func (k *Kit) Class() *plugin.Class { return Class }

// ToDrop implements plugin.Instance.
func (k *Kit) ToDrop() any {
	return map[string]any{"policy": k.Policy}
}

var (
	policyOnce   sync.Once
	ugcPolicy    *bluemonday.Policy
	strictPolicy *bluemonday.Policy
)

func policies() (*bluemonday.Policy, *bluemonday.Policy) {
	policyOnce.Do(func() {
		ugcPolicy = bluemonday.UGCPolicy()
		strictPolicy = bluemonday.StrictPolicy()
	})
	return ugcPolicy, strictPolicy
}

// policyFor returns the policy named by name.
func policyFor(name string) *bluemonday.Policy {
	ugc, strict := policies()
	if name == PolicyStrict {
		return strict
	}
	return ugc
}

// instancePolicy names the policy of the instance recv was invoked for,
// or ugc outside an instance.
func instancePolicy(recv plugin.Receiver) string {
	if self, ok := recv.Self(); ok {
		if v, ok := self.Get("policy"); ok {
			return fmt.Sprint(v)
		}
	}
	return PolicyUGC
}

func sanitize(recv plugin.Receiver, input any) (any, error) {
	if input == nil {
		return plugin.SafeHTML(""), nil
	}
	return plugin.SafeHTML(strings.TrimSpace(policyFor(instancePolicy(recv)).Sanitize(fmt.Sprint(input)))), nil
}

func stripHTML(_ plugin.Receiver, input any) (any, error) {
	if input == nil {
		return "", nil
	}
	return strings.TrimSpace(policyFor(PolicyStrict).Sanitize(fmt.Sprint(input))), nil
}

func renderMarkdown(recv plugin.Receiver, input any) (any, error) {
	if input == nil {
		return plugin.SafeHTML(""), nil
	}
	name := instancePolicy(recv)
	// parsers keep state between calls
	parser := mdparser.NewWithExtensions(mdparser.CommonExtensions | mdparser.AutoHeadingIDs)
	renderer := mdhtml.NewRenderer(mdhtml.RendererOptions{Flags: mdhtml.CommonFlags})
	out := markdown.ToHTML([]byte(fmt.Sprint(input)), parser, renderer)
	return plugin.SafeHTML(strings.TrimSpace(string(policyFor(name).SanitizeBytes(out)))), nil
}

type safeNode struct {
	prefix  string
	wrapper *pongo2.NodeWrapper
}

// parseSafe sanitises its rendered body with the instance policy. Close with
// "end" plus the tag name as written.
func parseSafe(doc *pongo2.Parser, start *pongo2.Token, arguments *pongo2.Parser) (pongo2.INodeTag, *pongo2.Error) {
	if arguments.Remaining() > 0 {
		return nil, arguments.Error("safe takes no arguments", nil)
	}
	wrapper, endArgs, err := doc.WrapUntilTag("end" + start.Val)
	if err != nil {
		return nil, err
	}
	if endArgs.Remaining() > 0 {
		return nil, endArgs.Error("arguments not allowed on the closing safe tag", nil)
	}
	return &safeNode{prefix: plugin.TagPrefix(start, "safe"), wrapper: wrapper}, nil
}

func (n *safeNode) Execute(ctx *pongo2.ExecutionContext, writer pongo2.TemplateWriter) *pongo2.Error {
	var body bytes.Buffer
	if err := n.wrapper.Execute(ctx, &body); err != nil {
		return err
	}
	name := PolicyUGC
	if d, ok := plugin.ExecutionDrop(ctx, n.prefix); ok {
		if v, ok := d.Get("policy"); ok {
			name = fmt.Sprint(v)
		}
	}
	if _, err := writer.WriteString(policyFor(name).Sanitize(body.String())); err != nil {
		return ctx.OrigError(err, nil)
	}
	return nil
}
