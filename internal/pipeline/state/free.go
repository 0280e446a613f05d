package state

import "sync"

// FreeRecord is the skip catalog of spec §3: two sets (pages, blocks) and a
// derived grouping blocksByPage. Loaded at startup, extended during the run.
type FreeRecord struct {
	mu sync.RWMutex

	pages        map[string]struct{}
	blocks       map[string]struct{}
	blocksByPage map[string]map[string]struct{}
	lastUpdate   string
}

func NewFreeRecord() *FreeRecord {
	return &FreeRecord{
		pages:        make(map[string]struct{}),
		blocks:       make(map[string]struct{}),
		blocksByPage: make(map[string]map[string]struct{}),
	}
}

type freeFile struct {
	LastUpdate   string              `json:"lastUpdate"`
	TotalPages   int                 `json:"totalPages"`
	TotalBlocks  int                 `json:"totalBlocks"`
	Pages        []string            `json:"pages"`
	Blocks       []string            `json:"blocks"`
	BlocksByPage map[string][]string `json:"blocksByPage"`
}

func (f *FreeRecord) Load(path string) error {
	var ff freeFile
	found, err := loadJSON(path, &ff)
	if err != nil {
		return err
	}
	if !found {
		return nil
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	for _, p := range ff.Pages {
		f.pages[p] = struct{}{}
	}
	for _, b := range ff.Blocks {
		f.blocks[b] = struct{}{}
	}
	for page, names := range ff.BlocksByPage {
		set := make(map[string]struct{}, len(names))
		for _, n := range names {
			set[n] = struct{}{}
		}
		f.blocksByPage[page] = set
	}
	f.lastUpdate = ff.LastUpdate
	return nil
}

// IsPageFree reports whether path was previously recorded free.
func (f *FreeRecord) IsPageFree(path string) bool {
	f.mu.RLock()
	defer f.mu.RUnlock()
	_, ok := f.pages[path]
	return ok
}

// AddFreePage records path as free.
func (f *FreeRecord) AddFreePage(path string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pages[path] = struct{}{}
	f.lastUpdate = nowISO()
}

// AddFreeBlock records blockName as free under page.
func (f *FreeRecord) AddFreeBlock(page, blockName string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	blockPath := page + "/" + blockName
	f.blocks[blockPath] = struct{}{}
	set, ok := f.blocksByPage[page]
	if !ok {
		set = make(map[string]struct{})
		f.blocksByPage[page] = set
	}
	set[blockName] = struct{}{}
	f.lastUpdate = nowISO()
}

// PageCount and BlockCount back meta.json's free totals (§3, invariant 4).
func (f *FreeRecord) PageCount() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return len(f.pages)
}

func (f *FreeRecord) BlockCount() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return len(f.blocks)
}

func (f *FreeRecord) snapshot() freeFile {
	f.mu.RLock()
	defer f.mu.RUnlock()
	ff := freeFile{
		LastUpdate:   f.lastUpdate,
		TotalPages:   len(f.pages),
		TotalBlocks:  len(f.blocks),
		BlocksByPage: make(map[string][]string, len(f.blocksByPage)),
	}
	for p := range f.pages {
		ff.Pages = append(ff.Pages, p)
	}
	for b := range f.blocks {
		ff.Blocks = append(ff.Blocks, b)
	}
	for page, names := range f.blocksByPage {
		for n := range names {
			ff.BlocksByPage[page] = append(ff.BlocksByPage[page], n)
		}
	}
	return ff
}

// Save writes free.json atomically, skipping the write when both sets are
// empty (§4.I).
func (f *FreeRecord) Save(path string) error {
	ff := f.snapshot()
	if ff.TotalPages == 0 && ff.TotalBlocks == 0 {
		return nil
	}
	return atomicSaveJSON(path, ff)
}

func (f *FreeRecord) SaveSync(path string) error {
	return f.Save(path)
}
