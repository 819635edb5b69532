package Placement

// TaxonCleaner, BatchCleaner and GlobalCleaner are the three cleanup hooks
// the driver calls after a taxon, a batch, or the whole run is done (spec
// §9's design note: each is a closed tagged union with a no-op variant,
// since the original ships only the no-op and leaves the slot for future
// work).
type TaxonCleaner interface {
	CleanAfterTaxon(taxon *TaxonToPlace)
}

type BatchCleaner interface {
	CleanAfterBatch(batch []*TaxonToPlace)
}

type GlobalCleaner interface {
	CleanAfterRun()
}

// NoopTaxonCleaner, NoopBatchCleaner and NoopGlobalCleaner are the only
// variants actually shipped.
type NoopTaxonCleaner struct{}
type NoopBatchCleaner struct{}
type NoopGlobalCleaner struct{}

func (NoopTaxonCleaner) CleanAfterTaxon(*TaxonToPlace)    {}
func (NoopBatchCleaner) CleanAfterBatch([]*TaxonToPlace)  {}
func (NoopGlobalCleaner) CleanAfterRun()                  {}
