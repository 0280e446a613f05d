package state

import (
	"sync"

	"github.com/google/uuid"
)

// CollectionLinkSummary mirrors the subset of a CollectionLink that meta.json
// retains (spec §3's SiteMeta.collectionLinks).
type CollectionLinkSummary struct {
	Link       string `json:"link"`
	Name       string `json:"name,omitempty"`
	BlockCount int    `json:"blockCount,omitempty"`
}

// SiteMeta is the per-run summary of spec §3. Save writes the in-memory
// record over meta.json without re-reading it; values from a prior run's
// meta.json are carried over only through Load.
type SiteMeta struct {
	mu sync.Mutex

	RunID           string                  `json:"runId"`
	StartURL        string                  `json:"startUrl"`
	CollectionLinks []CollectionLinkSummary `json:"collectionLinks"`

	TotalLinksDisplayed int `json:"totalLinksDisplayed"`
	TotalLinksActual    int `json:"totalLinksActual"`
	TotalBlocksExpected int `json:"totalBlocksExpected"`
	TotalBlocksActual   int `json:"totalBlocksActual"`

	FreePagesTotal  int `json:"freePagesTotal"`
	FreeBlocksTotal int `json:"freeBlocksTotal"`

	StartTime  string `json:"startTime"`
	EndTime    string `json:"endTime,omitempty"`
	DurationMs int64  `json:"durationMs,omitempty"`

	IsComplete bool `json:"isComplete"`
}

// NewSiteMeta starts a fresh per-run record, stamping a new run ID rather
// than inheriting one from a resumed run's meta.json — each invocation of
// the crawler is its own run even when it resumes prior progress.
func NewSiteMeta(startURL string) *SiteMeta {
	return &SiteMeta{RunID: uuid.New().String(), StartURL: startURL, StartTime: nowISO()}
}

// Load merges an existing meta.json into m, keeping m's in-progress fields
// where they've already been set and only borrowing from disk what hasn't
// been filled in yet: the collection links, the displayed link total and the
// expected block total. Other fields of the prior run are not carried over.
func (m *SiteMeta) Load(path string) error {
	var prior SiteMeta
	found, err := loadJSON(path, &prior)
	if err != nil {
		return err
	}
	if !found {
		return nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.CollectionLinks) == 0 {
		m.CollectionLinks = prior.CollectionLinks
	}
	if m.TotalLinksDisplayed == 0 {
		m.TotalLinksDisplayed = prior.TotalLinksDisplayed
	}
	if m.TotalBlocksExpected == 0 {
		m.TotalBlocksExpected = prior.TotalBlocksExpected
	}
	return nil
}

func (m *SiteMeta) SetCollectionLinks(links []CollectionLinkSummary, totalDisplayed, totalBlocksExpected int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.CollectionLinks = links
	m.TotalLinksDisplayed = totalDisplayed
	m.TotalBlocksExpected = totalBlocksExpected
}

func (m *SiteMeta) SetTotals(totalLinksActual, totalBlocksActual, freePages, freeBlocks int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.TotalLinksActual = totalLinksActual
	m.TotalBlocksActual = totalBlocksActual
	m.FreePagesTotal = freePages
	m.FreeBlocksTotal = freeBlocks
}

func (m *SiteMeta) Finish(complete bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.EndTime = nowISO()
	m.IsComplete = complete
}

func (m *SiteMeta) snapshot() SiteMeta {
	m.mu.Lock()
	defer m.mu.Unlock()
	return *m
}

func (m *SiteMeta) Save(path string) error {
	snap := m.snapshot()
	return atomicSaveJSON(path, snap)
}

func (m *SiteMeta) SaveSync(path string) error {
	return m.Save(path)
}
