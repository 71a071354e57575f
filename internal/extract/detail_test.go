package extract

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

const detailPage = `<html><body>
<h2 class="subtitulo">Sobre a cidade</h2><br><p>São Paulo é a maior cidade do país e reúne uma das cenas gastronômicas mais diversas do mundo inteiro.</p>
<h2 class="subtitulo">Clima</h2><br><p>Subtropical.</p>
<a class="fancybox" href="/img/1.jpg">1</a>
<a class="fancybox" href="/img/2.jpg">2</a>
<a class="fancybox">sem href</a>
<select class="form-control">
  <option value="">Selecione</option>
  <option value="/hospedagem/hotel-a">Hotel A</option>
  <option value="/gastronomia/bistro-b">Bistrô B</option>
  <option value="/hospedagem/pousada-c">Pousada C</option>
</select>
</body></html>`

func TestDetailExtractAppliesRuleTable(t *testing.T) {
	t.Parallel()

	detail := NewDetailExtractor(40).Extract(mustDoc(t, detailPage))

	assert.Equal(t, []string{"Sobre a cidade", "Clima"}, detail.Subtitulo)
	assert.Equal(t, []string{"/img/1.jpg", "/img/2.jpg"}, detail.Imagens)
	assert.Equal(t, []string{"/hospedagem/hotel-a", "/hospedagem/pousada-c"}, detail.Acomodacoes)
	assert.Equal(t, []string{"/gastronomia/bistro-b"}, detail.Restaurantes)

	// Descriptions are chunked across paragraphs and flattened.
	assert.Greater(t, len(detail.Descricao), 2)
	assert.Equal(t, "Subtropical.", detail.Descricao[len(detail.Descricao)-1])
	for _, c := range detail.Descricao {
		assert.LessOrEqual(t, len([]rune(c)), 40)
	}
	first := strings.Join(detail.Descricao[:len(detail.Descricao)-1], " ")
	assert.True(t, strings.HasPrefix(first, "São Paulo é a maior cidade"))
}

func TestDetailExtractMissingElementsYieldEmpty(t *testing.T) {
	t.Parallel()

	detail := NewDetailExtractor(0).Extract(mustDoc(t, "<html><body><p>nada</p></body></html>"))

	assert.Empty(t, detail.Subtitulo)
	assert.Empty(t, detail.Descricao)
	assert.Empty(t, detail.Imagens)
	assert.Empty(t, detail.Acomodacoes)
	assert.Empty(t, detail.Restaurantes)
}

func TestApplyRuleKinds(t *testing.T) {
	t.Parallel()

	doc := mustDoc(t, `<div><a href="/a" value="v1"> texto </a><a value="v2">sem</a></div>`)

	assert.Equal(t, []string{"texto", "sem"}, Apply(doc.Selection, "a", RuleText))
	assert.Equal(t, []string{"/a"}, Apply(doc.Selection, "a", RuleAttrHref))
	assert.Equal(t, []string{"v1", "v2"}, Apply(doc.Selection, "a", RuleAttrValue))
	assert.Empty(t, Apply(doc.Selection, "span", RuleText))
	assert.Equal(t, "attr:href", RuleAttrHref.String())
}
