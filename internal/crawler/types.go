package crawler

// Sub-listing categories crawled for every city.
const (
	FieldHospedagem  = "hospedagem"
	FieldGastronomia = "gastronomia"
)

// CityStub is the minimal city identifier scraped from the directory page.
type CityStub struct {
	UF   string `json:"uf"`
	Nome string `json:"nome"`
	Href string `json:"href"`
}

// StubMessage is the queue payload that carries a stub to the detail stage.
type StubMessage struct {
	CityStub
	Timestamp string `json:"timestamp"`
}

// CityDetail holds the fields parsed from a city detail page.
type CityDetail struct {
	Subtitulo    []string
	Descricao    []string
	Imagens      []string
	Acomodacoes  []string
	Restaurantes []string
}

// CityDetailRecord is the enriched per-city document persisted to the store.
type CityDetailRecord struct {
	Subtitulo    []string `json:"subtitulo"`
	Descricao    []string `json:"descricao"`
	Imagens      []string `json:"imagens"`
	Acomodacoes  []string `json:"acomodacoes"`
	Restaurantes []string `json:"restaurantes"`
	Hospedagem   []string `json:"hospedagem"`
	Gastronomia  []string `json:"gastronomia"`
	Timestamp    string   `json:"timestamp"`
}

// NewCityDetailRecord merges extractor output with the crawled sub-listings.
// Nil slices are normalized so the JSON document always carries arrays.
func NewCityDetailRecord(detail CityDetail, hospedagem, gastronomia []string, timestamp string) CityDetailRecord {
	return CityDetailRecord{
		Subtitulo:    nonNil(detail.Subtitulo),
		Descricao:    nonNil(detail.Descricao),
		Imagens:      nonNil(detail.Imagens),
		Acomodacoes:  nonNil(detail.Acomodacoes),
		Restaurantes: nonNil(detail.Restaurantes),
		Hospedagem:   nonNil(hospedagem),
		Gastronomia:  nonNil(gastronomia),
		Timestamp:    timestamp,
	}
}

// Field returns the list-valued field addressed by its JSON name.
func (r CityDetailRecord) Field(name string) ([]string, bool) {
	switch name {
	case "subtitulo":
		return r.Subtitulo, true
	case "descricao":
		return r.Descricao, true
	case "imagens":
		return r.Imagens, true
	case "acomodacoes":
		return r.Acomodacoes, true
	case "restaurantes":
		return r.Restaurantes, true
	case FieldHospedagem:
		return r.Hospedagem, true
	case FieldGastronomia:
		return r.Gastronomia, true
	default:
		return nil, false
	}
}

// IndexEntry describes a stored record for the optional relational index.
type IndexEntry struct {
	UF          string
	Nome        string
	Key         string
	URI         string
	ContentHash string
	GeneratedAt string
}

// Result is the structured outcome an invocation reports to its trigger.
type Result struct {
	StatusCode int    `json:"statusCode"`
	Body       string `json:"body"`
}

func nonNil(values []string) []string {
	if values == nil {
		return []string{}
	}
	return values
}
