// Package e2e drives the HTTP API end to end over a generated corpus of engineering documents.
package e2e

import (
	"fmt"
	"strings"

	"github.com/hyperjump/devflow/internal/indexer"
	"github.com/hyperjump/devflow/internal/models"
)

// E2EDocument is a document entry in the E2E corpus.
type E2EDocument struct {
	ID      string
	Title   string
	Content string

	phrase string
}

// QueryTestCase selects a document by a topic phrase it contains. The query text sent to the
// index is derived from the document itself (see QueryText), so the expected document must
// rank among the nearest chunks.
type QueryTestCase struct {
	Phrase      string
	DocID       string
	Description string
}

// Corpus holds documents and query test cases for E2E tests.
type Corpus struct {
	Documents    []E2EDocument
	TestCases    []QueryTestCase
	TotalDocs    int
	TotalQueries int
}

// BuildCorpus returns 100 documents, one per service and document kind, and a query case for
// every other document. Each document carries a "<service> <kind>" phrase no other document has.
func BuildCorpus() *Corpus {
	docs := buildDocuments()
	cases := buildQueryTestCases(docs)
	return &Corpus{
		Documents:    docs,
		TestCases:    cases,
		TotalDocs:    len(docs),
		TotalQueries: len(cases),
	}
}

var corpusServices = []string{
	"billing", "checkout", "gateway", "search", "ledger",
	"notifier", "scheduler", "inventory", "identity", "analytics",
}

var corpusKinds = []struct {
	title string
	body  string
}{
	{"Runbook", "When the %[1]s runbook pages you, check the dashboard first, then drain traffic from the unhealthy pods and restart them one at a time."},
	{"Postmortem", "The %[1]s postmortem covers a forty minute outage caused by an expired certificate. Action items: automate renewal and alert two weeks ahead."},
	{"Design Note", "This %[1]s design note proposes splitting reads from writes so the hot path never waits on the primary database."},
	{"Onboarding", "The %[1]s onboarding checklist: clone the repository, run the local stack with make dev, and pair with an owner on your first change."},
	{"Release Notes", "The %[1]s release notes list a faster cold start, a new retry budget for upstream calls, and removal of the deprecated v1 endpoints."},
	{"API Reference", "The %[1]s API reference documents every endpoint, its request body, its error codes, and the pagination cursor format."},
	{"On-call Handbook", "The %[1]s on-call handbook explains escalation: acknowledge within five minutes, open an incident channel, and page the secondary after fifteen."},
	{"Migration Plan", "The %[1]s migration plan moves the schema in three steps: add nullable columns, backfill in batches, then enforce constraints."},
	{"SLO Report", "The %[1]s SLO report shows availability at 99.95 percent for the quarter with most of the error budget spent during the March deploy freeze."},
	{"Decision Record", "The %[1]s decision record chooses a message queue over direct calls so bursts are absorbed and consumers can be scaled independently."},
}

func buildDocuments() []E2EDocument {
	out := make([]E2EDocument, 0, len(corpusServices)*len(corpusKinds))
	for _, svc := range corpusServices {
		for _, kind := range corpusKinds {
			phrase := svc + " " + strings.ToLower(kind.title)
			out = append(out, E2EDocument{
				ID:      fmt.Sprintf("e2e-doc-%03d", len(out)+1),
				Title:   strings.ToUpper(svc[:1]) + svc[1:] + " " + kind.title,
				Content: fmt.Sprintf(kind.body, svc),
				phrase:  phrase,
			})
		}
	}
	return out
}

func buildQueryTestCases(docs []E2EDocument) []QueryTestCase {
	var cases []QueryTestCase
	for i := 0; i < len(docs); i += 2 {
		d := docs[i]
		cases = append(cases, QueryTestCase{
			Phrase:      d.phrase,
			DocID:       d.ID,
			Description: fmt.Sprintf("%s query returns doc %s", d.phrase, d.ID),
		})
	}
	return cases
}

func containsPhrase(d E2EDocument, phrase string) bool {
	return strings.Contains(strings.ToLower(d.Title), phrase) || strings.Contains(d.Content, phrase)
}

// Document returns the corpus document with the given ID.
func (c *Corpus) Document(id string) (E2EDocument, bool) {
	for _, d := range c.Documents {
		if d.ID == id {
			return d, true
		}
	}
	return E2EDocument{}, false
}

// SameContent returns the IDs of every document whose content equals content; identical chunks
// tie, so any of them is a correct answer.
func (c *Corpus) SameContent(content string) []string {
	var ids []string
	for _, d := range c.Documents {
		if d.Content == content {
			ids = append(ids, d.ID)
		}
	}
	return ids
}

// URL is the document URL recorded at ingestion; results are matched back to documents by it.
func (d E2EDocument) URL() string {
	return "e2e://" + d.ID
}

// QueryText is the normalized form of text as the indexer stores it, so a query built from a
// document's own text lands on that document's chunk.
func QueryText(text string) string {
	return indexer.Preprocess(text)
}

// ToDocumentInputs converts the corpus documents to models.DocumentInput for indexing.
func (c *Corpus) ToDocumentInputs() []*models.DocumentInput {
	out := make([]*models.DocumentInput, len(c.Documents))
	for i := range c.Documents {
		d := &c.Documents[i]
		out[i] = &models.DocumentInput{
			Text:  d.Content,
			Title: d.Title,
			URL:   d.URL(),
		}
	}
	return out
}
