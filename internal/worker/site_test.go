package worker

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
)

// fakeSite serves a miniature tourism directory: a city index, one detail
// page per city, a two-page lodging listing and a single-page dining listing.
type fakeSite struct {
	mu   sync.Mutex
	hits map[string]int
	// failPrefix makes every path with this prefix answer 503.
	failPrefix string
}

var directoryAnchors = []struct{ title, href string }{
	{"sao-paulo/SP", "/cidades/SP/sao-paulo/193"},
	{"", "/cidades/RJ/sem-titulo/1"},
	{"paraty/RJ", "/cidades/RJ/paraty/210"},
	{"ouro-preto/MG", "/cidades/MG/ouro-preto/88"},
	{"", "/cidades/BA/sem-titulo/2"},
	{"gramado/RS", "/cidades/RS/gramado/77"},
	{"bonito/MS", "/cidades/MS/bonito/55"},
}

func newFakeSite(t *testing.T) (*fakeSite, *httptest.Server) {
	t.Helper()
	site := &fakeSite{hits: map[string]int{}}
	srv := httptest.NewServer(site)
	t.Cleanup(srv.Close)
	return site, srv
}

func (s *fakeSite) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	s.hits[r.URL.Path]++
	fail := s.failPrefix != "" && strings.HasPrefix(r.URL.Path, s.failPrefix)
	s.mu.Unlock()
	if fail {
		w.WriteHeader(http.StatusServiceUnavailable)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	path := r.URL.Path
	switch {
	case path == "/cidades":
		_, _ = fmt.Fprint(w, directoryPage())
	case strings.HasPrefix(path, "/cidades/"):
		_, _ = fmt.Fprint(w, detailPage(path))
	case strings.HasPrefix(path, "/hospedagem/2/") && strings.HasSuffix(path, "/1"):
		_, _ = fmt.Fprint(w, listingPage(4, path+"/hotel-c", path+"/hotel-d"))
	case strings.HasPrefix(path, "/hospedagem/2/"):
		_, _ = fmt.Fprint(w, listingPage(4, path+"/hotel-a", path+"/hotel-b"))
	case strings.HasPrefix(path, "/gastronomia/3/"):
		_, _ = fmt.Fprint(w, listingPage(0))
	default:
		http.NotFound(w, r)
	}
}

func (s *fakeSite) count(prefix string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for p, c := range s.hits {
		if strings.HasPrefix(p, prefix) {
			n += c
		}
	}
	return n
}

func directoryPage() string {
	var b strings.Builder
	b.WriteString("<html><body><div class=\"cidades\">")
	for _, a := range directoryAnchors {
		if a.title == "" {
			fmt.Fprintf(&b, `<a class="link-cidades" href="%s">sem título</a>`, a.href)
			continue
		}
		fmt.Fprintf(&b, `<a class="link-cidades" href="%s" title="%s">%s</a>`, a.href, a.title, a.title)
	}
	b.WriteString("</div></body></html>")
	return b.String()
}

func detailPage(path string) string {
	return fmt.Sprintf(`<html><body>
<h2 class="subtitulo">Cidade %[1]s</h2><br><p>Uma cidade com praias, museus e restaurantes.</p>
<a class="fancybox" href="/img%[1]s/1.jpg">foto</a>
<select class="form-control">
  <option value="">Escolha</option>
  <option value="/hospedagem%[1]s">Hotéis</option>
  <option value="/gastronomia%[1]s">Restaurantes</option>
</select>
</body></html>`, path)
}

func listingPage(controls int, hrefs ...string) string {
	var b strings.Builder
	b.WriteString("<html><body>")
	for _, h := range hrefs {
		fmt.Fprintf(&b, `<div class="col-xs-10 text-left"><a href="%s">item</a></div>`, h)
	}
	b.WriteString(`<ul class="pagination">`)
	for i := 0; i < controls; i++ {
		b.WriteString("<li>x</li>")
	}
	b.WriteString("</ul></body></html>")
	return b.String()
}
