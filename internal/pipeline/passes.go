package pipeline

import (
	"slices"

	"github.com/roach88/parsynth/internal/rewrite"
)

// Pass names accepted in Config.Passes.
const (
	PassCoalesceDataParallel = "coalesce-data-parallel"
	PassSplitDataParallel    = "split-data-parallel"
	PassFuseUnzipMapZip      = "fuse-unzip-map-zip"
	PassRemoveRedundant      = "remove-redundant"
	PassConvertZipWith1      = "convert-zipwith1"
	PassCoalesceParallelMap  = "coalesce-parallel-map"
)

// Pass is one named rewrite. Run returns how many rewrites it performed.
type Pass struct {
	Name string
	Run  func(r *rewrite.Rewriter) (int, error)
}

var passes = []Pass{
	{PassCoalesceDataParallel, (*rewrite.Rewriter).CoalesceDataParallelLeafs},
	{PassSplitDataParallel, (*rewrite.Rewriter).SplitDataParallelSegments},
	{PassFuseUnzipMapZip, (*rewrite.Rewriter).FuseUnzipMapZipLeafs},
	{PassRemoveRedundant, (*rewrite.Rewriter).RemoveRedundantLeafs},
	{PassConvertZipWith1, (*rewrite.Rewriter).ConvertZipWith1ToMap},
	{PassCoalesceParallelMap, (*rewrite.Rewriter).CoalesceParallelMapChains},
}

func lookupPass(name string) (Pass, bool) {
	i := slices.IndexFunc(passes, func(p Pass) bool { return p.Name == name })
	if i < 0 {
		return Pass{}, false
	}
	return passes[i], true
}

// PassNames lists every known pass in default CUDA order.
func PassNames() []string {
	names := make([]string, len(passes))
	for i, p := range passes {
		names[i] = p.Name
	}
	return names
}
