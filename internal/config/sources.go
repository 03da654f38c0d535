package config

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"editalwatch/collector-service/internal/model"
)

// ErrNoSources means a sources file was supplied but defines no sources.
var ErrNoSources = errors.New("at least one source is required")

// defaultKeywords apply to any source that configures none.
var defaultKeywords = []string{"edital", "chamada"}

// Sources returns the crawl plan: the YAML file at path when given,
// otherwise the built-in agency list. The plan is loaded once at startup
// and immutable afterwards.
func Sources(path string) ([]model.Source, error) {
	if path == "" {
		return DefaultSources(), nil
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read sources file: %w", err)
	}

	var plan struct {
		Sources []model.Source `yaml:"sources"`
	}
	if err := yaml.Unmarshal(raw, &plan); err != nil {
		return nil, fmt.Errorf("parse sources file: %w", err)
	}
	if len(plan.Sources) == 0 {
		return nil, ErrNoSources
	}

	for i := range plan.Sources {
		s := &plan.Sources[i]
		if s.URL == "" {
			return nil, fmt.Errorf("source %d: url is required", i)
		}
		if s.Agency == "" {
			return nil, fmt.Errorf("source %d: agency is required", i)
		}
		if len(s.Keywords) == 0 {
			s.Keywords = defaultKeywords
		}
	}
	return plan.Sources, nil
}

// DefaultSources is the built-in crawl plan: the national and state
// research-funding agencies plus a handful of international funders.
func DefaultSources() []model.Source {
	return []model.Source{
		{URL: "http://memoria2.cnpq.br/web/guest/chamadas-publicas", Agency: "CNPq", Keywords: []string{"edital", "chamada", "chamadas", "call"}},
		{URL: "https://www.gov.br/capes/pt-br/assuntos/editais", Agency: "CAPES", Keywords: []string{"edital", "chamada"}},
		{URL: "https://www.finep.gov.br/pt-br", Agency: "FINEP", Keywords: []string{"edital", "chamada", "chamadas", "programa"}},
		{URL: "https://www.confap.org.br/", Agency: "CONFAP", Keywords: []string{"edital", "chamada", "chamadas"}},
		{URL: "https://fapesp.br/chamadas", Agency: "FAPESP (SP)", Keywords: []string{"chamada", "edital", "call", "proposal"}},
		{URL: "https://www.faperj.br/", Agency: "FAPERJ (RJ)", Keywords: []string{"edital", "chamada", "resultado"}},
		{URL: "https://fapemig.br/", Agency: "FAPEMIG (MG)", Keywords: []string{"edital", "chamada"}},
		{URL: "https://www.fapes.es.gov.br/", Agency: "FAPES (ES)", Keywords: []string{"edital", "chamada"}},
		{URL: "https://www.facepe.br/", Agency: "FACEPE (PE)", Keywords: []string{"edital", "chamada"}},
		{URL: "https://www.fapesq.rpp.br/", Agency: "FAPESQ (PB)", Keywords: []string{"edital", "chamada"}},
		{URL: "https://www.fapeal.br/", Agency: "FAPEAL (AL)", Keywords: []string{"edital", "chamada"}},
		{URL: "https://www.funcap.ce.gov.br/", Agency: "FUNCAP (CE)", Keywords: []string{"edital", "chamada"}},
		{URL: "https://www.fapesb.ba.gov.br/", Agency: "FAPESB (BA)", Keywords: []string{"edital", "chamada"}},
		{URL: "https://www.fapern.rn.gov.br/", Agency: "FAPERN (RN)", Keywords: []string{"edital", "chamada"}},
		{URL: "https://www.fapepi.pi.gov.br/", Agency: "FAPEPI (PI)", Keywords: []string{"edital", "chamada"}},
		{URL: "https://www.fapitec.se.gov.br/", Agency: "FAPITEC (SE)", Keywords: []string{"edital", "chamada"}},
		{URL: "https://www.fapema.br/", Agency: "FAPEMA (MA)", Keywords: []string{"edital", "chamada"}},
		{URL: "https://www.fapergs.rs.gov.br/", Agency: "FAPERGS (RS)", Keywords: []string{"edital", "chamada"}},
		{URL: "https://www.fapesc.sc.gov.br/", Agency: "FAPESC (SC)", Keywords: []string{"edital", "chamada"}},
		{URL: "https://www.fappr.pr.gov.br/", Agency: "Fundação Araucária (PR)", Keywords: []string{"edital", "chamada"}},
		{URL: "https://www.fap.df.gov.br/", Agency: "FAPDF (DF)", Keywords: []string{"edital", "chamada"}},
		{URL: "https://www.fundect.ms.gov.br/", Agency: "FUNDECT (MS)", Keywords: []string{"edital", "chamada"}},
		{URL: "https://www.fapeg.go.gov.br/", Agency: "FAPEG (GO)", Keywords: []string{"edital", "chamada"}},
		{URL: "https://www.fapeam.am.gov.br/", Agency: "FAPEAM (AM)", Keywords: []string{"edital", "chamada"}},
		{URL: "https://www.fapespa.pa.gov.br/", Agency: "FAPESPA (PA)", Keywords: []string{"edital", "chamada"}},
		{URL: "https://fapac.ac.gov.br/", Agency: "FAPEAC (AC)", Keywords: []string{"edital", "chamada"}},
		{URL: "https://www.fapero.ro.gov.br/", Agency: "FAPERO (RO)", Keywords: []string{"edital", "chamada"}},
		{URL: "https://www.to.gov.br/fapt", Agency: "FAPTO (TO)", Keywords: []string{"edital", "chamada"}},
		{URL: "https://www.fapeap.ap.gov.br/", Agency: "FAPEAP (AP)", Keywords: []string{"edital", "chamada"}},
		{URL: "https://www.usaid.gov/work-usaid/partnership-opportunities", Agency: "USAID (EUA)", Keywords: []string{"call for proposals", "funding", "notice", "grant", "opportunity"}},
		{URL: "https://www.nsf.gov/funding/", Agency: "NSF (EUA)", Keywords: []string{"funding", "opportunity", "solicitation", "call"}},
		{URL: "https://ec.europa.eu/info/funding-tenders/opportunities/portal/screen/home", Agency: "União Europeia (Horizon)", Keywords: []string{"call", "funding", "grant", "opportunity"}},
		{URL: "https://www.afd.fr/en/search?type=calls-for-projects", Agency: "AFD (França)", Keywords: []string{"call", "notice", "funding", "appel à projets"}},
		{URL: "https://www.aecid.es/ES/convocatorias", Agency: "AECID (Espanha)", Keywords: []string{"convocatoria", "call", "notice", "grant"}},
		{URL: "https://www.ukri.org/opportunity/", Agency: "UKRI (Reino Unido)", Keywords: []string{"funding", "opportunity", "call"}},
		{URL: "https://www.nserc-crsng.gc.ca/Professors-Professeurs/Grants-Subs/index_eng.asp", Agency: "NSERC (Canadá)", Keywords: []string{"funding", "opportunity", "competition"}},
		{URL: "https://aca-secretariat.be/", Agency: "ACA (Academic Cooperation)", Keywords: []string{"call", "funding", "opportunity", "grant", "programme"}},
	}
}
