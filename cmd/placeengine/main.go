// Command placeengine is the thin CLI wrapper spec.md §1 calls out of
// scope for the engine itself ("the command-line / configuration
// surface"): it reads a newick tree and a FASTA alignment, grows the tree
// by every alignment taxon not already a leaf, and writes the resulting
// newick tree. All placement logic lives in Run/Placement/Parsimony; this
// file only wires file I/O, the Config string, and the default FitchKernel
// together, the way every complete repository in the corpus ships a
// cmd/ entry point around its library packages.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/g-m-twostay/phyloplace/Alignment"
	"github.com/g-m-twostay/phyloplace/Config"
	"github.com/g-m-twostay/phyloplace/FitchKernel"
	"github.com/g-m-twostay/phyloplace/Kernel"
	"github.com/g-m-twostay/phyloplace/Logging"
	"github.com/g-m-twostay/phyloplace/Newick"
	"github.com/g-m-twostay/phyloplace/Placement"
	"github.com/g-m-twostay/phyloplace/Run"
	"github.com/g-m-twostay/phyloplace/Tree"
)

var (
	treePath  string
	alignPath string
	configStr string
	outPath   string
	verbosity string
	useFussy  bool
	maxKeep   int
)

var rootCmd = &cobra.Command{
	Use:   "placeengine",
	Short: "Grow a phylogenetic tree by placing new taxa onto it",
	Long: `placeengine reads an existing newick tree and a FASTA alignment
covering every leaf plus the taxa to add, places the taxa absent from the
tree at their parsimony-optimal branch one batch at a time, and writes the
resulting newick tree.`,
	RunE: runPlace,
}

func init() {
	rootCmd.Flags().StringVar(&treePath, "tree", "", "input newick tree file (required)")
	rootCmd.Flags().StringVar(&alignPath, "alignment", "", "FASTA alignment covering existing leaves and new taxa (required)")
	rootCmd.Flags().StringVar(&configStr, "config", "", "placement configuration string, e.g. \"C{SMP}+B10+I50%\"")
	rootCmd.Flags().StringVar(&outPath, "out", "", "output newick path (default: stdout)")
	rootCmd.Flags().StringVar(&verbosity, "verbosity", "MIN", "log verbosity: MIN, MED, MAX, or DEBUG")
	rootCmd.Flags().BoolVar(&useFussy, "less-fussy", false, "keep a top-k placement list per taxon instead of only the single best")
	rootCmd.Flags().IntVar(&maxKeep, "max-keep", 5, "top-k size when --less-fussy is set")
	_ = rootCmd.MarkFlagRequired("tree")
	_ = rootCmd.MarkFlagRequired("alignment")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func parseVerbosity(s string) Logging.Level {
	switch s {
	case "MED":
		return Logging.Med
	case "MAX":
		return Logging.Max
	case "DEBUG":
		return Logging.Debug
	default:
		return Logging.Min
	}
}

func newLogger(level Logging.Level) (*Logging.Logger, error) {
	cfg := zap.NewProductionConfig()
	if level == Logging.Debug {
		cfg.Development = true
		cfg.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	}
	z, err := cfg.Build()
	if err != nil {
		return nil, fmt.Errorf("placeengine: building logger: %w", err)
	}
	return Logging.New(z.Sugar(), level), nil
}

func runPlace(cmd *cobra.Command, args []string) error {
	treeBytes, err := os.ReadFile(treePath)
	if err != nil {
		return fmt.Errorf("placeengine: reading tree: %w", err)
	}
	t, _, err := Newick.Parse(string(treeBytes))
	if err != nil {
		return fmt.Errorf("placeengine: parsing newick: %w", err)
	}

	alignFile, err := os.Open(alignPath)
	if err != nil {
		return fmt.Errorf("placeengine: opening alignment: %w", err)
	}
	defer alignFile.Close()
	aln, err := Alignment.LoadFASTA(alignFile)
	if err != nil {
		return fmt.Errorf("placeengine: parsing alignment: %w", err)
	}

	cfg, err := Config.Parse(configStr)
	if err != nil {
		return fmt.Errorf("placeengine: %w", err)
	}

	newTaxonIDs, newTaxonNames, err := reconcileTaxonIDs(t, aln)
	if err != nil {
		return err
	}

	logger, err := newLogger(parseVerbosity(verbosity))
	if err != nil {
		return err
	}
	defer logger.Sync()

	if cfg.CostFunction == Config.MaximumLikelihoodMidpoint || cfg.CostFunction == Config.MaximumLikelihoodAnywhere {
		return fmt.Errorf("placeengine: %w: cost function %s needs a likelihood kernel, which this command does not ship", Config.ErrConfigurationInvalid, cfg.CostFunction)
	}

	kernel := parsimonyKernelFor(cfg)
	run := &Run.PlacementRun{
		Tree:             t,
		Alignment:        aln,
		Config:           cfg,
		ParsimonyKernel:  kernel,
		CostCalculator:   costCalculatorFor(cfg, kernel),
		Heuristic:        Placement.GlobalHeuristic{},
		TaxonCleaner:     Placement.NoopTaxonCleaner{},
		BatchCleaner:     Placement.NoopBatchCleaner{},
		GlobalCleaner:    Placement.NoopGlobalCleaner{},
		Logger:           logger,
		UseLessFussyTaxa: useFussy,
		MaxKeep:          maxKeep,
	}

	inserted, err := run.AddNewTaxa(newTaxonIDs, newTaxonNames)
	if err != nil {
		return fmt.Errorf("placeengine: %w", err)
	}
	logger.Min("done", "inserted", inserted, "requested", len(newTaxonIDs))

	out := Newick.Write(t, Tree.NodeID(0))
	if outPath == "" {
		fmt.Println(out)
		return nil
	}
	return os.WriteFile(outPath, []byte(out+"\n"), 0o644)
}

// reconcileTaxonIDs repoints every existing leaf's TaxonID at its row in
// aln (newick parsing assigns ids by parse order, which rarely matches the
// alignment's own row order) and returns, in alignment order, the ids and
// names of every alignment taxon that is not already a tree leaf — exactly
// the taxonIDs/names slice Run.PlacementRun.AddNewTaxa wants.
func reconcileTaxonIDs(t *Tree.Tree, aln *Alignment.Alignment) ([]int, []string, error) {
	present := make(map[int]bool, t.LeafNum)
	for i := range t.Nodes {
		if !t.Nodes[i].IsLeaf {
			continue
		}
		id := aln.TaxonID(t.Nodes[i].Name)
		if id < 0 {
			return nil, nil, fmt.Errorf("placeengine: tree leaf %q has no row in the alignment", t.Nodes[i].Name)
		}
		t.Nodes[i].TaxonID = id
		present[id] = true
	}

	var ids []int
	var names []string
	for id := 0; id < aln.NumTaxa(); id++ {
		if present[id] {
			continue
		}
		ids = append(ids, id)
		names = append(names, aln.TaxonName(id))
	}
	return ids, names, nil
}

func parsimonyKernelFor(cfg *Config.Config) Kernel.ParsimonyKernel {
	if cfg.CostFunction == Config.SankoffParsimony {
		return FitchKernel.NewSankoff(nil)
	}
	return FitchKernel.Fitch{}
}

// costCalculatorFor wires the CLI's two runnable cost functions (MP, SMP)
// to a ParsimonyCost/SankoffCost calculator. ML/FML need a concrete
// Kernel.LikelihoodKernel, which this module intentionally does not ship
// (spec.md §1: the likelihood kernel is an external collaborator) — asking
// for them from the CLI is a configuration error, not a silent fallback.
func costCalculatorFor(cfg *Config.Config, kernel Kernel.ParsimonyKernel) Placement.CostCalculator {
	base := Placement.ParsimonyCost{Kernel: kernel, HalfBranchLength: 0.1, NewTaxonBranchLength: 0.1}
	switch cfg.CostFunction {
	case Config.SankoffParsimony:
		return Placement.SankoffCost{ParsimonyCost: base}
	default:
		return base
	}
}
