package extract

import (
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/JakeFAU/cidades-pipeline/internal/crawler"
)

// RuleKind selects how a matched element is turned into a string.
type RuleKind int

// Extraction rule kinds.
const (
	RuleText RuleKind = iota
	RuleAttrHref
	RuleAttrValue
)

func (k RuleKind) String() string {
	switch k {
	case RuleText:
		return "text"
	case RuleAttrHref:
		return "attr:href"
	case RuleAttrValue:
		return "attr:value"
	default:
		return "unknown"
	}
}

// Field names a CityDetail slot.
type Field string

// Detail page fields.
const (
	FieldSubtitulo    Field = "subtitulo"
	FieldDescricao    Field = "descricao"
	FieldImagens      Field = "imagens"
	FieldAcomodacoes  Field = "acomodacoes"
	FieldRestaurantes Field = "restaurantes"
)

// Rule binds a field to a selector and an extraction kind.
type Rule struct {
	Field    Field
	Selector string
	Kind     RuleKind
	// Chunked text is split with Chunk before it is stored.
	Chunked bool
}

// DetailRules is the fixed selector table for city detail pages.
var DetailRules = []Rule{
	{Field: FieldSubtitulo, Selector: ".subtitulo", Kind: RuleText},
	{Field: FieldDescricao, Selector: ".subtitulo + br + p", Kind: RuleText, Chunked: true},
	{Field: FieldImagens, Selector: "a.fancybox", Kind: RuleAttrHref},
	{Field: FieldAcomodacoes, Selector: "select.form-control > option[value^='/hospedagem']", Kind: RuleAttrValue},
	{Field: FieldRestaurantes, Selector: "select.form-control > option[value^='/gastronomia']", Kind: RuleAttrValue},
}

// DetailExtractor parses city detail pages.
type DetailExtractor struct {
	width int
}

// NewDetailExtractor constructs a DetailExtractor chunking descriptions at width runes.
func NewDetailExtractor(width int) *DetailExtractor {
	if width <= 0 {
		width = DefaultChunkWidth
	}
	return &DetailExtractor{width: width}
}

// Extract applies DetailRules to the document. Fields whose selector matches
// nothing come back empty.
func (e *DetailExtractor) Extract(doc *goquery.Document) crawler.CityDetail {
	var detail crawler.CityDetail
	for _, rule := range DetailRules {
		values := Apply(doc.Selection, rule.Selector, rule.Kind)
		if rule.Chunked {
			values = ChunkAll(values, e.width)
		}
		assign(&detail, rule.Field, values)
	}
	return detail
}

// Apply collects one string per element matching selector under root,
// preserving document order. Elements lacking the requested attribute are skipped.
func Apply(root *goquery.Selection, selector string, kind RuleKind) []string {
	matches := root.Find(selector)
	out := make([]string, 0, matches.Length())
	matches.Each(func(_ int, s *goquery.Selection) {
		switch kind {
		case RuleText:
			out = append(out, strings.TrimSpace(s.Text()))
		case RuleAttrHref:
			if v, ok := s.Attr("href"); ok {
				out = append(out, v)
			}
		case RuleAttrValue:
			if v, ok := s.Attr("value"); ok {
				out = append(out, v)
			}
		}
	})
	return out
}

func assign(detail *crawler.CityDetail, field Field, values []string) {
	switch field {
	case FieldSubtitulo:
		detail.Subtitulo = values
	case FieldDescricao:
		detail.Descricao = values
	case FieldImagens:
		detail.Imagens = values
	case FieldAcomodacoes:
		detail.Acomodacoes = values
	case FieldRestaurantes:
		detail.Restaurantes = values
	}
}
